package sabr

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meenmo/volcube/config"
)

// Options controls one knot calibration.
type Options struct {
	// Guess seeds the first attempt. A non-positive alpha is replaced by
	// 0.2 * (forward+shift)^(1-beta).
	Guess Parameters
	// Fixed holds alpha, beta, nu, rho at their guess values.
	Fixed [4]bool

	VegaWeighted bool
	Tolerance    float64
	Acceptance   float64
	UseMaxError  bool

	MaxIterations           int
	MaxStationaryIterations int
	FunctionEpsilon         float64
	MaxGuesses              int

	// RequiredStrikes is the fewest strikes above the cutoff a fit needs.
	// Values below 1 mean 1.
	RequiredStrikes int

	CutoffStrike float64
	Optimizer    string
	Seed         uint64
}

// DefaultGuess is the conventional starting point with alpha left to be
// derived from the forward.
var DefaultGuess = Parameters{Alpha: 0, Beta: 0.5, Nu: math.Sqrt(0.4), Rho: 0}

// DefaultOptions builds options from the active config.
func DefaultOptions() Options {
	return OptionsFromConfig(config.GetConfig())
}

// OptionsFromConfig builds options from c with DefaultGuess and no fixed
// parameters.
func OptionsFromConfig(c config.Config) Options {
	return Options{
		Guess:                   DefaultGuess,
		VegaWeighted:            c.VegaWeighted,
		Tolerance:               c.Tolerance,
		Acceptance:              c.Acceptance,
		UseMaxError:             c.UseMaxError,
		MaxIterations:           c.MaxIterations,
		MaxStationaryIterations: c.MaxStationaryIterations,
		FunctionEpsilon:         c.FunctionEpsilon,
		MaxGuesses:              c.MaxGuesses,
		RequiredStrikes:         c.MinStrikes,
		CutoffStrike:            c.CutoffStrike,
		Optimizer:               c.Optimizer,
		Seed:                    c.Seed,
	}
}

// FreeParameters counts the parameters that are not fixed.
func (o Options) FreeParameters() int {
	n := 0
	for _, f := range o.Fixed {
		if !f {
			n++
		}
	}
	return n
}

// MinStrikes is the fewest strikes a fit needs. Fits with fewer strikes
// than free parameters are underdetermined but allowed.
func (o Options) MinStrikes() int {
	return max(o.RequiredStrikes, 1)
}

// WithDefaults returns o with every zero-valued numeric or string field taken
// from d. A zero Guess takes d's guess. Fixed and the boolean switches are
// kept as given.
func (o Options) WithDefaults(d Options) Options {
	if o.Guess == (Parameters{}) {
		o.Guess = d.Guess
	}
	if o.Tolerance == 0 {
		o.Tolerance = d.Tolerance
	}
	if o.Acceptance == 0 {
		o.Acceptance = d.Acceptance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.MaxStationaryIterations == 0 {
		o.MaxStationaryIterations = d.MaxStationaryIterations
	}
	if o.FunctionEpsilon == 0 {
		o.FunctionEpsilon = d.FunctionEpsilon
	}
	if o.MaxGuesses == 0 {
		o.MaxGuesses = d.MaxGuesses
	}
	if o.RequiredStrikes == 0 {
		o.RequiredStrikes = d.RequiredStrikes
	}
	if o.CutoffStrike == 0 {
		o.CutoffStrike = d.CutoffStrike
	}
	if o.Optimizer == "" {
		o.Optimizer = d.Optimizer
	}
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	return o
}

// Validate checks the solver settings the way config.Validate checks a
// loaded file.
func (o Options) Validate() error {
	return config.Config{
		Tolerance:               o.Tolerance,
		Acceptance:              o.Acceptance,
		UseMaxError:             o.UseMaxError,
		VegaWeighted:            o.VegaWeighted,
		MaxIterations:           o.MaxIterations,
		MaxStationaryIterations: o.MaxStationaryIterations,
		FunctionEpsilon:         o.FunctionEpsilon,
		MaxGuesses:              o.MaxGuesses,
		MinStrikes:              o.MinStrikes(),
		CutoffStrike:            o.CutoffStrike,
		Optimizer:               o.Optimizer,
		Seed:                    o.Seed,
	}.Validate()
}

// Input is one knot's market smile.
type Input struct {
	Strikes []float64
	Vols    []float64
	Forward float64
	Shift   float64
	Time    float64
}

// FilterStrikes keeps the pairs whose shifted strike is at least cutoff.
// The order of surviving pairs is preserved.
func FilterStrikes(strikes, vols []float64, shift, cutoff float64) ([]float64, []float64) {
	ks := make([]float64, 0, len(strikes))
	vs := make([]float64, 0, len(vols))
	for i, k := range strikes {
		if k+shift >= cutoff {
			ks = append(ks, k)
			vs = append(vs, vols[i])
		}
	}
	return ks, vs
}

// Calibrate fits SABR parameters to in. Strikes below the cutoff are
// dropped first. Up to MaxGuesses attempts are made; the first acceptable
// fit is returned. When none is acceptable the best attempt is returned
// together with an error wrapping ErrCalibration.
func Calibrate(in Input, opts Options) (FitResult, error) {
	if len(in.Strikes) != len(in.Vols) {
		return FitResult{}, fmt.Errorf("%w: %d strikes, %d vols", ErrInvalidInput, len(in.Strikes), len(in.Vols))
	}
	if !(in.Time > 0) || !(in.Forward+in.Shift > 0) {
		return FitResult{}, fmt.Errorf("%w: time %g, shifted forward %g", ErrInvalidInput, in.Time, in.Forward+in.Shift)
	}
	strikes, vols := FilterStrikes(in.Strikes, in.Vols, in.Shift, opts.CutoffStrike)
	if len(strikes) < opts.MinStrikes() {
		return FitResult{}, fmt.Errorf("%w: %d of %d strikes above cutoff %g, need %d",
			ErrTooFewStrikes, len(strikes), len(in.Strikes), opts.CutoffStrike, opts.MinStrikes())
	}

	c := &calibration{
		in:      in,
		opts:    opts,
		strikes: strikes,
		vols:    vols,
		model:   make([]float64, len(strikes)),
	}
	c.guess = opts.Guess
	if !(c.guess.Alpha > 0) {
		c.guess.Alpha = 0.2 * math.Pow(in.Forward+in.Shift, 1-c.guess.Beta)
	}
	c.weights = weights(strikes, vols, in, opts.VegaWeighted)

	if opts.FreeParameters() == 0 {
		res := c.evaluate(c.guess, EndFixed)
		res.Attempts = 0
		if !c.acceptable(res) {
			opsf("fixed parameters rejected: %s rms=%.3g max=%.3g", res.Params, res.RMSError, res.MaxError)
			return res, fmt.Errorf("%w: %s, rms %.3g, max error %.3g", ErrCalibration, res.Params, res.RMSError, res.MaxError)
		}
		return res, nil
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	best := FitResult{RMSError: math.Inf(1), MaxError: math.Inf(1)}
	attempts := max(opts.MaxGuesses, 1)
	for n := 0; n < attempts; n++ {
		start := c.guess
		if n > 0 {
			start = c.randomGuess(rng)
		}
		res := c.run(start)
		res.Attempts = n + 1
		tracef("attempt %d: %s rms=%.3g max=%.3g end=%s", n+1, res.Params, res.RMSError, res.MaxError, res.EndCriteria)
		if c.metric(res) < c.metric(best) || n == 0 {
			best = res
		}
		if c.acceptable(res) {
			diagf("accepted after %d attempt(s): %s rms=%.3g", n+1, res.Params, res.RMSError)
			return res, nil
		}
	}
	best.Attempts = attempts
	opsf("no acceptable fit in %d attempts: best %s rms=%.3g max=%.3g end=%s",
		attempts, best.Params, best.RMSError, best.MaxError, best.EndCriteria)
	return best, fmt.Errorf("%w after %d attempts: %s, rms %.3g, max error %.3g, end %s",
		ErrCalibration, attempts, best.Params, best.RMSError, best.MaxError, best.EndCriteria)
}

type calibration struct {
	in      Input
	opts    Options
	strikes []float64
	vols    []float64
	weights []float64
	guess   Parameters
	model   []float64
}

// weights are normalized Black vegas, or equal weights.
func weights(strikes, vols []float64, in Input, vega bool) []float64 {
	w := make([]float64, len(strikes))
	if vega {
		f := in.Forward + in.Shift
		sqrtT := math.Sqrt(in.Time)
		for i, k := range strikes {
			sd := vols[i] * sqrtT
			if !(sd > 0) {
				continue
			}
			d1 := (math.Log(f/(k+in.Shift)) + 0.5*sd*sd) / sd
			w[i] = f * distuv.UnitNormal.Prob(d1) * sqrtT
		}
	}
	sum := floats.Sum(w)
	if !(sum > 0) {
		floats.AddConst(1, w)
		sum = float64(len(w))
	}
	floats.Scale(1/sum, w)
	return w
}

func (c *calibration) metric(r FitResult) float64 {
	if c.opts.UseMaxError {
		return r.MaxError
	}
	return r.RMSError
}

func (c *calibration) acceptable(r FitResult) bool {
	if r.EndCriteria == EndMaxIterations {
		return false
	}
	if c.opts.UseMaxError {
		return r.MaxError < c.opts.Acceptance
	}
	return r.RMSError < c.opts.Tolerance
}

// evaluate fills errors for p.
func (c *calibration) evaluate(p Parameters, end EndCriteria) FitResult {
	n := len(c.strikes)
	var sq, maxErr float64
	for i, k := range c.strikes {
		e := Volatility(k, c.in.Forward, c.in.Time, p, c.in.Shift) - c.vols[i]
		sq += c.weights[i] * e * e
		maxErr = math.Max(maxErr, math.Abs(e))
	}
	rms := math.Sqrt(float64(n) * sq / float64(max(n-1, 1)))
	if math.IsNaN(rms) {
		rms, maxErr = math.Inf(1), math.Inf(1)
	}
	return FitResult{
		Params:      p,
		Forward:     c.in.Forward,
		RMSError:    rms,
		MaxError:    maxErr,
		EndCriteria: end,
		Strikes:     n,
	}
}

// objective is the weighted squared error in transformed coordinates.
func (c *calibration) objective(x []float64) float64 {
	p := c.direct(x)
	var f float64
	for i, k := range c.strikes {
		e := Volatility(k, c.in.Forward, c.in.Time, p, c.in.Shift) - c.vols[i]
		f += c.weights[i] * e * e
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1e10
	}
	return f
}

func (c *calibration) method() (optimize.Method, bool) {
	switch c.opts.Optimizer {
	case "bfgs":
		return &optimize.BFGS{}, true
	case "lbfgs":
		return &optimize.LBFGS{}, true
	default:
		return &optimize.NelderMead{}, false
	}
}

func (c *calibration) run(start Parameters) FitResult {
	method, needsGrad := c.method()
	problem := optimize.Problem{Func: c.objective}
	if needsGrad {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, c.objective, x, nil)
		}
	}
	settings := &optimize.Settings{
		MajorIterations: c.opts.MaxIterations,
		FuncEvaluations: 20 * c.opts.MaxIterations,
		Converger: &stationaryConverger{
			epsilon:    c.opts.FunctionEpsilon,
			iterations: c.opts.MaxStationaryIterations,
			threshold:  functionThreshold,
		},
	}
	x0 := c.inverse(start)
	result, err := optimize.Minimize(problem, x0, settings, method)
	if result == nil {
		tracef("optimizer error: %v", err)
		return c.evaluate(start, EndFailure)
	}
	end := endCriteriaOf(result.Status)
	if err != nil {
		tracef("optimizer stopped with %s: %v", result.Status, err)
		if end == EndNone {
			end = EndFailure
		}
	}
	return c.evaluate(c.direct(result.X), end)
}

// randomGuess draws the free parameters; fixed ones keep the guess.
func (c *calibration) randomGuess(rng *rand.Rand) Parameters {
	p := c.guess
	if !c.opts.Fixed[1] {
		p.Beta = rng.Float64()
	}
	if !c.opts.Fixed[0] {
		scale := math.Pow(c.in.Forward+c.in.Shift, 1-p.Beta)
		p.Alpha = (0.01 + 0.99*rng.Float64()) * scale
	}
	if !c.opts.Fixed[2] {
		p.Nu = 0.01 + 1.99*rng.Float64()
	}
	if !c.opts.Fixed[3] {
		p.Rho = -0.95 + 1.9*rng.Float64()
	}
	return p
}

// functionThreshold stops a run on a practically exact fit.
const functionThreshold = 1e-20

// stationaryConverger ends a run when the objective falls below threshold or
// has not improved by more than epsilon times its current value for the given
// number of iterations.
type stationaryConverger struct {
	epsilon    float64
	iterations int
	threshold  float64

	best  float64
	count int
}

func (s *stationaryConverger) Init(int) {
	s.best = math.Inf(1)
	s.count = 0
}

func (s *stationaryConverger) Converged(loc *optimize.Location) optimize.Status {
	if loc.F <= s.threshold {
		return optimize.FunctionThreshold
	}
	if s.best-loc.F > s.epsilon*math.Abs(loc.F) {
		s.best = loc.F
		s.count = 0
		return optimize.NotTerminated
	}
	s.count++
	if s.count >= s.iterations {
		return optimize.FunctionConvergence
	}
	return optimize.NotTerminated
}
