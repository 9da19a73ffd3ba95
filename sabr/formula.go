// Package sabr implements the shifted-lognormal SABR smile and its
// per-knot calibration.
package sabr

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidParameters is returned for parameters outside the SABR domain.
	ErrInvalidParameters = errors.New("sabr: invalid parameters")
	// ErrInvalidInput is returned for malformed calibration inputs.
	ErrInvalidInput = errors.New("sabr: invalid input")
	// ErrTooFewStrikes is returned when fewer strikes survive the cutoff
	// filter than there are free parameters.
	ErrTooFewStrikes = errors.New("sabr: too few strikes")
	// ErrCalibration is returned when no attempt meets the acceptance test.
	ErrCalibration = errors.New("sabr: calibration failed")
)

// Parameters are the four SABR parameters.
type Parameters struct {
	Alpha float64
	Beta  float64
	Nu    float64
	Rho   float64
}

// Slice returns {alpha, beta, nu, rho}.
func (p Parameters) Slice() []float64 {
	return []float64{p.Alpha, p.Beta, p.Nu, p.Rho}
}

// ParametersFromSlice is the inverse of Slice.
func ParametersFromSlice(x []float64) Parameters {
	return Parameters{Alpha: x[0], Beta: x[1], Nu: x[2], Rho: x[3]}
}

func (p Parameters) String() string {
	return fmt.Sprintf("alpha=%.6g beta=%.6g nu=%.6g rho=%.6g", p.Alpha, p.Beta, p.Nu, p.Rho)
}

// Validate checks alpha > 0, beta in [0,1], nu >= 0 and |rho| < 1.
func (p Parameters) Validate() error {
	switch {
	case !(p.Alpha > 0):
		return fmt.Errorf("%w: alpha %g must be positive", ErrInvalidParameters, p.Alpha)
	case !(p.Beta >= 0 && p.Beta <= 1):
		return fmt.Errorf("%w: beta %g not in [0,1]", ErrInvalidParameters, p.Beta)
	case !(p.Nu >= 0):
		return fmt.Errorf("%w: nu %g must be non-negative", ErrInvalidParameters, p.Nu)
	case !(p.Rho > -1 && p.Rho < 1):
		return fmt.Errorf("%w: rho %g not in (-1,1)", ErrInvalidParameters, p.Rho)
	}
	return nil
}

const smallZ = 2.220446049250313e-16 * 10

// Volatility is Hagan's lognormal SABR expansion for a shifted forward and
// strike. It does not validate p; invalid parameters may produce NaN.
func Volatility(strike, forward, t float64, p Parameters, shift float64) float64 {
	f := forward + shift
	k := strike + shift
	return lognormalVol(k, f, t, p)
}

func lognormalVol(k, f, t float64, p Parameters) float64 {
	alpha, beta, nu, rho := p.Alpha, p.Beta, p.Nu, p.Rho
	oneMinusBeta := 1 - beta
	a := math.Pow(f*k, oneMinusBeta)
	sqrtA := math.Sqrt(a)

	var logM float64
	if math.Abs(f-k) > 1e-15*math.Max(math.Abs(f), math.Abs(k)) {
		logM = math.Log(f / k)
	} else {
		eps := (f - k) / k
		logM = eps - 0.5*eps*eps
	}

	z := (nu / alpha) * sqrtA * logM
	b := 1 - 2*rho*z + z*z
	c := oneMinusBeta * oneMinusBeta * logM * logM
	d := sqrtA * (1 + c/24 + c*c/1920)
	e := 1 + t*(oneMinusBeta*oneMinusBeta*alpha*alpha/(24*a)+
		0.25*rho*beta*nu*alpha/sqrtA+
		(2-3*rho*rho)*nu*nu/24)

	var multiplier float64
	if math.Abs(z*z) > smallZ {
		xx := math.Log((math.Sqrt(b) + z - rho) / (1 - rho))
		multiplier = z / xx
	} else {
		multiplier = 1 - 0.5*rho*z - (3*rho*rho-2)*z*z/12
	}
	return alpha / d * multiplier * e
}
