package sabr_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/volcube/config"
	"github.com/meenmo/volcube/sabr"
)

func TestVolatilityLognormalLimit(t *testing.T) {
	p := sabr.Parameters{Alpha: 0.2, Beta: 1, Nu: 0, Rho: 0}
	for _, k := range []float64{0.01, 0.03, 0.08} {
		assert.InDelta(t, 0.2, sabr.Volatility(k, 0.03, 2, p, 0), 1e-14, "strike %g", k)
	}
}

func TestVolatilitySymmetricInLogMoneyness(t *testing.T) {
	p := sabr.Parameters{Alpha: 0.25, Beta: 1, Nu: 0.5, Rho: 0}
	f := 0.03
	for _, m := range []float64{0.1, 0.4, 0.9} {
		up := sabr.Volatility(f*math.Exp(m), f, 1.5, p, 0)
		down := sabr.Volatility(f*math.Exp(-m), f, 1.5, p, 0)
		assert.InDelta(t, up, down, 1e-12, "log-moneyness %g", m)
		assert.Greater(t, up, sabr.Volatility(f, f, 1.5, p, 0))
	}
}

func TestVolatilityContinuousAtTheMoney(t *testing.T) {
	p := sabr.Parameters{Alpha: 0.04, Beta: 0.5, Nu: 0.4, Rho: -0.3}
	atm := sabr.Volatility(0.03, 0.03, 5, p, 0.01)
	near := sabr.Volatility(0.03+1e-9, 0.03, 5, p, 0.01)
	assert.InDelta(t, atm, near, 1e-7)
	assert.False(t, math.IsNaN(atm))
}

func TestParametersValidate(t *testing.T) {
	assert.NoError(t, sabr.Parameters{Alpha: 0.1, Beta: 0.5, Nu: 0.3, Rho: 0.2}.Validate())
	for _, p := range []sabr.Parameters{
		{Alpha: 0, Beta: 0.5},
		{Alpha: 0.1, Beta: 1.5},
		{Alpha: 0.1, Beta: 0.5, Nu: -1},
		{Alpha: 0.1, Beta: 0.5, Rho: 1},
	} {
		assert.True(t, errors.Is(p.Validate(), sabr.ErrInvalidParameters), "%v", p)
	}
}

func TestFilterStrikes(t *testing.T) {
	strikes := []float64{-0.02, -0.005, 0.0, 0.01}
	vols := []float64{0.5, 0.4, 0.3, 0.2}
	ks, vs := sabr.FilterStrikes(strikes, vols, 0.01, 0.005)
	assert.Equal(t, []float64{-0.005, 0.0, 0.01}, ks)
	assert.Equal(t, []float64{0.4, 0.3, 0.2}, vs)

	ks2, vs2 := sabr.FilterStrikes(strikes, vols, 0.01, 0.005)
	assert.Equal(t, ks, ks2)
	assert.Equal(t, vs, vs2)
	for _, k := range ks {
		assert.GreaterOrEqual(t, k+0.01, 0.005)
	}
}

func smile(p sabr.Parameters, f, t, shift float64, strikes []float64) []float64 {
	out := make([]float64, len(strikes))
	for i, k := range strikes {
		out[i] = sabr.Volatility(k, f, t, p, shift)
	}
	return out
}

func TestCalibrateRecoversSmile(t *testing.T) {
	truth := sabr.Parameters{Alpha: 0.035, Beta: 0.5, Nu: 0.45, Rho: -0.25}
	strikes := []float64{0.01, 0.02, 0.025, 0.03, 0.035, 0.04, 0.06}
	in := sabr.Input{
		Strikes: strikes,
		Vols:    smile(truth, 0.03, 2, 0.0, strikes),
		Forward: 0.03,
		Time:    2,
	}
	opts := sabr.OptionsFromConfig(config.DefaultConfig)
	opts.Tolerance = 1e-4
	opts.Fixed = [4]bool{false, true, false, false}
	opts.Guess.Beta = 0.5

	res, err := sabr.Calibrate(in, opts)
	require.NoError(t, err)
	assert.Less(t, res.RMSError, 1e-4)
	assert.NotEqual(t, sabr.EndMaxIterations, res.EndCriteria)
	assert.Equal(t, 0.5, res.Params.Beta, "fixed beta is untouched")
	assert.Equal(t, 0.03, res.Forward)
	assert.Equal(t, len(strikes), res.Strikes)

	ss := sabr.NewSmileSection(res.Params, in.Forward, in.Time, in.Shift, opts.CutoffStrike)
	for i, k := range strikes {
		assert.InDelta(t, in.Vols[i], ss.Volatility(k), 5e-4, "strike %g", k)
	}
}

func TestCalibrateWithOptimizers(t *testing.T) {
	strikes := []float64{0.02, 0.03, 0.04}
	for _, name := range []string{"simplex", "bfgs", "lbfgs"} {
		t.Run(name, func(t *testing.T) {
			opts := sabr.OptionsFromConfig(config.DefaultConfig)
			opts.Optimizer = name
			opts.Guess = sabr.Parameters{Alpha: 0.1, Beta: 1, Nu: 0, Rho: 0}
			opts.Fixed = [4]bool{false, true, true, true}
			res, err := sabr.Calibrate(sabr.Input{
				Strikes: strikes,
				Vols:    []float64{0.2, 0.2, 0.2},
				Forward: 0.03,
				Time:    1,
			}, opts)
			require.NoError(t, err)
			assert.InDelta(t, 0.2, res.Params.Alpha, 1e-3)
		})
	}
}

func TestCalibrateDeterministic(t *testing.T) {
	strikes := []float64{0.01, 0.02, 0.03, 0.04, 0.05}
	in := sabr.Input{
		Strikes: strikes,
		Vols:    []float64{0.35, 0.27, 0.22, 0.21, 0.215},
		Forward: 0.03,
		Shift:   0.01,
		Time:    5,
	}
	opts := sabr.OptionsFromConfig(config.DefaultConfig)
	opts.MaxGuesses = 4
	a, errA := sabr.Calibrate(in, opts)
	b, errB := sabr.Calibrate(in, opts)
	assert.Equal(t, errA == nil, errB == nil)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("repeated calibration differs (-first +second):\n%s", diff)
	}
}

func TestCalibrateTooFewStrikes(t *testing.T) {
	opts := sabr.OptionsFromConfig(config.DefaultConfig)
	opts.CutoffStrike = 0.02
	opts.RequiredStrikes = 2
	_, err := sabr.Calibrate(sabr.Input{
		Strikes: []float64{0.005, 0.01, 0.015, 0.03},
		Vols:    []float64{0.3, 0.3, 0.3, 0.3},
		Forward: 0.03,
		Time:    1,
	}, opts)
	assert.True(t, errors.Is(err, sabr.ErrTooFewStrikes), "got %v", err)
}

func TestCalibrateFewerStrikesThanParameters(t *testing.T) {
	opts := sabr.OptionsFromConfig(config.DefaultConfig)
	require.Equal(t, 1, opts.MinStrikes())
	require.Equal(t, 4, opts.FreeParameters())

	strikes := []float64{0.02, 0.03, 0.04}
	res, err := sabr.Calibrate(sabr.Input{
		Strikes: strikes,
		Vols:    []float64{0.2, 0.2, 0.2},
		Forward: 0.03,
		Time:    1,
	}, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Strikes)
	assert.Less(t, res.RMSError, opts.Tolerance)
	for _, k := range strikes {
		assert.InDelta(t, 0.2, sabr.Volatility(k, 0.03, 1, res.Params, 0), 2e-3, "strike %g", k)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	d := sabr.OptionsFromConfig(config.DefaultConfig)
	o := sabr.Options{
		Fixed:        [4]bool{false, true, false, false},
		UseMaxError:  true,
		Acceptance:   0.5,
		CutoffStrike: 0.02,
	}.WithDefaults(d)

	assert.True(t, o.UseMaxError)
	assert.Equal(t, 0.5, o.Acceptance)
	assert.Equal(t, 0.02, o.CutoffStrike)
	assert.Equal(t, [4]bool{false, true, false, false}, o.Fixed)
	assert.Equal(t, d.Tolerance, o.Tolerance)
	assert.Equal(t, d.MaxGuesses, o.MaxGuesses)
	assert.Equal(t, d.MaxIterations, o.MaxIterations)
	assert.Equal(t, d.Optimizer, o.Optimizer)
	assert.Equal(t, d.Seed, o.Seed)
	assert.Equal(t, d.Guess, o.Guess)
	assert.NoError(t, o.Validate())

	bad := o
	bad.Optimizer = "newton"
	assert.True(t, errors.Is(bad.Validate(), config.ErrInvalidConfig))
}

func TestCalibrateInvalidInput(t *testing.T) {
	opts := sabr.OptionsFromConfig(config.DefaultConfig)
	_, err := sabr.Calibrate(sabr.Input{Strikes: []float64{0.01}, Vols: nil, Forward: 0.03, Time: 1}, opts)
	assert.True(t, errors.Is(err, sabr.ErrInvalidInput))
	_, err = sabr.Calibrate(sabr.Input{Strikes: []float64{0.01}, Vols: []float64{0.2}, Forward: 0.03, Time: 0}, opts)
	assert.True(t, errors.Is(err, sabr.ErrInvalidInput))
}

func TestCalibrateFailureReturnsBest(t *testing.T) {
	opts := sabr.OptionsFromConfig(config.DefaultConfig)
	opts.MaxGuesses = 3
	opts.Tolerance = 1e-6
	opts.Guess = sabr.Parameters{Alpha: 0.2, Beta: 1, Nu: 0, Rho: 0}
	opts.Fixed = [4]bool{false, true, true, true}
	res, err := sabr.Calibrate(sabr.Input{
		Strikes: []float64{0.02, 0.03, 0.04},
		Vols:    []float64{0.1, 0.3, 0.1},
		Forward: 0.03,
		Time:    1,
	}, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sabr.ErrCalibration))
	assert.Equal(t, 3, res.Attempts)
	assert.Greater(t, res.RMSError, 1e-6)
	assert.InDelta(t, 0.1, res.MaxError, 0.1)
}

func TestCalibrateAllFixed(t *testing.T) {
	opts := sabr.OptionsFromConfig(config.DefaultConfig)
	opts.Guess = sabr.Parameters{Alpha: 0.2, Beta: 1, Nu: 0, Rho: 0}
	opts.Fixed = [4]bool{true, true, true, true}
	in := sabr.Input{Strikes: []float64{0.03}, Vols: []float64{0.2}, Forward: 0.03, Time: 1}

	res, err := sabr.Calibrate(in, opts)
	require.NoError(t, err)
	assert.Equal(t, sabr.EndFixed, res.EndCriteria)
	assert.InDelta(t, 0, res.RMSError, 1e-14)

	in.Vols = []float64{0.3}
	_, err = sabr.Calibrate(in, opts)
	assert.True(t, errors.Is(err, sabr.ErrCalibration))
}

func TestUseMaxError(t *testing.T) {
	opts := sabr.OptionsFromConfig(config.DefaultConfig)
	opts.Guess = sabr.Parameters{Alpha: 0.2, Beta: 1, Nu: 0, Rho: 0}
	opts.Fixed = [4]bool{true, true, true, true}
	opts.UseMaxError = true
	opts.Acceptance = 0.02
	opts.Tolerance = 1e-9
	in := sabr.Input{Strikes: []float64{0.02, 0.03}, Vols: []float64{0.21, 0.2}, Forward: 0.03, Time: 1}

	res, err := sabr.Calibrate(in, opts)
	require.NoError(t, err, "max error 0.01 is within acceptance")
	assert.InDelta(t, 0.01, res.MaxError, 1e-12)
}

func TestSmileSectionCutoff(t *testing.T) {
	p := sabr.Parameters{Alpha: 0.2, Beta: 1, Nu: 0.5, Rho: 0}
	ss := sabr.NewSmileSection(p, 0.01, 1, 0.005, 0.002)
	assert.Equal(t, ss.Volatility(-0.003), ss.Volatility(-0.004), "strikes below the cutoff share its vol")
	assert.Equal(t, 0.005, ss.Shift())
	assert.Equal(t, 0.01, ss.ATMLevel())
	v := ss.Volatility(0.01)
	assert.InDelta(t, v*v, ss.Variance(0.01), 1e-15)
}

func TestFitResultLayers(t *testing.T) {
	r := sabr.FitResult{
		Params:      sabr.Parameters{Alpha: 0.1, Beta: 0.5, Nu: 0.3, Rho: -0.2},
		Forward:     0.025,
		RMSError:    1e-4,
		MaxError:    2e-4,
		EndCriteria: sabr.EndStationaryFunctionValue,
	}
	v := r.Layers()
	require.Len(t, v, sabr.NumLayers)
	got := sabr.ResultFromLayers(v)
	if diff := cmp.Diff(r, got, cmpopts.EquateApprox(0, 1e-15)); diff != "" {
		t.Fatalf("layers round trip (-want +got):\n%s", diff)
	}
}
