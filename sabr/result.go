package sabr

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

// EndCriteria records why the optimizer stopped.
type EndCriteria int

const (
	EndNone EndCriteria = iota
	EndMaxIterations
	EndStationaryPoint
	EndStationaryFunctionValue
	EndFunctionThreshold
	EndFailure
	// EndFixed marks a fit with no free parameters.
	EndFixed
)

func (e EndCriteria) String() string {
	switch e {
	case EndNone:
		return "None"
	case EndMaxIterations:
		return "MaxIterations"
	case EndStationaryPoint:
		return "StationaryPoint"
	case EndStationaryFunctionValue:
		return "StationaryFunctionValue"
	case EndFunctionThreshold:
		return "FunctionThreshold"
	case EndFailure:
		return "Failure"
	case EndFixed:
		return "Fixed"
	default:
		return fmt.Sprintf("EndCriteria(%d)", int(e))
	}
}

func endCriteriaOf(s optimize.Status) EndCriteria {
	switch s {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit,
		optimize.GradientEvaluationLimit, optimize.HessianEvaluationLimit,
		optimize.RuntimeLimit:
		return EndMaxIterations
	case optimize.Success, optimize.GradientThreshold, optimize.StepConvergence, optimize.MethodConverge:
		return EndStationaryPoint
	case optimize.FunctionConvergence:
		return EndStationaryFunctionValue
	case optimize.FunctionThreshold:
		return EndFunctionThreshold
	case optimize.Failure:
		return EndFailure
	default:
		return EndNone
	}
}

// Layer positions of a fit result stored in a parameter grid.
const (
	LayerAlpha = iota
	LayerBeta
	LayerNu
	LayerRho
	LayerForward
	LayerRMSError
	LayerMaxError
	LayerEndCriteria
	NumLayers
)

// PrimaryLayers is the number of leading model-parameter layers.
const PrimaryLayers = LayerForward

// FitResult is the outcome of one knot calibration.
type FitResult struct {
	Params      Parameters
	Forward     float64
	RMSError    float64
	MaxError    float64
	EndCriteria EndCriteria
	// Attempts is the number of optimizer runs used.
	Attempts int
	// Strikes is the number of strikes that survived the cutoff filter.
	Strikes int
}

// Layers returns the result in grid layer order.
func (r FitResult) Layers() []float64 {
	out := make([]float64, NumLayers)
	out[LayerAlpha] = r.Params.Alpha
	out[LayerBeta] = r.Params.Beta
	out[LayerNu] = r.Params.Nu
	out[LayerRho] = r.Params.Rho
	out[LayerForward] = r.Forward
	out[LayerRMSError] = r.RMSError
	out[LayerMaxError] = r.MaxError
	out[LayerEndCriteria] = float64(r.EndCriteria)
	return out
}

// ResultFromLayers reads a result back from grid layer values.
func ResultFromLayers(v []float64) FitResult {
	return FitResult{
		Params:      ParametersFromSlice(v[:PrimaryLayers]),
		Forward:     v[LayerForward],
		RMSError:    v[LayerRMSError],
		MaxError:    v[LayerMaxError],
		EndCriteria: EndCriteria(int(v[LayerEndCriteria] + 0.5)),
	}
}
