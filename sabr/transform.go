package sabr

import "math"

// Free parameters are optimized in unconstrained coordinates:
// alpha = x^2 (linear in |x| past 5), beta = exp(-x^2), nu like alpha and
// rho = 0.9999 sin(x).
const (
	eps1 = 1e-7
	eps2 = 0.9999
)

func positiveDirect(x float64) float64 {
	if math.Abs(x) < 5 {
		return x*x + eps1
	}
	return 10*math.Abs(x) - 25 + eps1
}

func positiveInverse(y float64) float64 {
	if y < 25+eps1 {
		return math.Sqrt(math.Max(eps1, y-eps1))
	}
	return (y - eps1 + 25) / 10
}

func betaDirect(x float64) float64 {
	if math.Abs(x) < math.Sqrt(-math.Log(eps1)) {
		return math.Exp(-x * x)
	}
	return eps1
}

func betaInverse(y float64) float64 {
	return math.Sqrt(-math.Log(math.Min(1, math.Max(eps1, y))))
}

func rhoDirect(x float64) float64 {
	if math.Abs(x) < 2.5*math.Pi {
		return eps2 * math.Sin(x)
	}
	return math.Copysign(eps2, x)
}

func rhoInverse(y float64) float64 {
	return math.Asin(math.Max(-1, math.Min(1, y/eps2)))
}

var (
	directs  = [4]func(float64) float64{positiveDirect, betaDirect, positiveDirect, rhoDirect}
	inverses = [4]func(float64) float64{positiveInverse, betaInverse, positiveInverse, rhoInverse}
)

// direct maps optimizer coordinates to parameters, filling fixed
// parameters from the guess.
func (c *calibration) direct(x []float64) Parameters {
	out := c.guess.Slice()
	n := 0
	for i := range out {
		if c.opts.Fixed[i] {
			continue
		}
		out[i] = directs[i](x[n])
		n++
	}
	return ParametersFromSlice(out)
}

// inverse maps the free parameters of p to optimizer coordinates.
func (c *calibration) inverse(p Parameters) []float64 {
	in := p.Slice()
	x := make([]float64, 0, len(in))
	for i, v := range in {
		if c.opts.Fixed[i] {
			continue
		}
		x = append(x, inverses[i](v))
	}
	return x
}
