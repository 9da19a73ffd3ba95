package sabr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/optimize"
)

func TestTransformsRoundTrip(t *testing.T) {
	c := &calibration{guess: Parameters{Alpha: 0.1, Beta: 0.5, Nu: 0.3, Rho: 0}}
	for _, p := range []Parameters{
		{Alpha: 0.03, Beta: 0.5, Nu: 0.4, Rho: -0.3},
		{Alpha: 0.2, Beta: 1, Nu: 0.01, Rho: 0.9},
		{Alpha: 30, Beta: 0.01, Nu: 2, Rho: -0.99},
	} {
		got := c.direct(c.inverse(p))
		assert.InDelta(t, p.Alpha, got.Alpha, 1e-6*math.Max(1, p.Alpha))
		assert.InDelta(t, p.Beta, got.Beta, 1e-9)
		assert.InDelta(t, p.Nu, got.Nu, 1e-6)
		assert.InDelta(t, p.Rho, got.Rho, 1e-9)
	}
}

func TestTransformsKeepFixed(t *testing.T) {
	c := &calibration{
		guess: Parameters{Alpha: 0.1, Beta: 0.7, Nu: 0.3, Rho: 0.1},
		opts:  Options{Fixed: [4]bool{false, true, false, true}},
	}
	x := c.inverse(Parameters{Alpha: 0.2, Beta: 0.1, Nu: 0.5, Rho: -0.5})
	assert.Len(t, x, 2)
	p := c.direct(x)
	assert.Equal(t, 0.7, p.Beta)
	assert.Equal(t, 0.1, p.Rho)
	assert.InDelta(t, 0.2, p.Alpha, 1e-9)
}

func TestTransformsStayInDomain(t *testing.T) {
	for _, x := range []float64{-100, -3, 0, 0.5, 7, 100} {
		assert.Greater(t, positiveDirect(x), 0.0)
		b := betaDirect(x)
		assert.True(t, b > 0 && b <= 1)
		assert.Less(t, math.Abs(rhoDirect(x)), 1.0)
	}
}

func TestStationaryConverger(t *testing.T) {
	s := &stationaryConverger{epsilon: 1e-8, iterations: 3, threshold: 1e-20}
	s.Init(1)
	assert.Equal(t, optimize.NotTerminated, s.Converged(&optimize.Location{F: 1}))
	assert.Equal(t, optimize.NotTerminated, s.Converged(&optimize.Location{F: 0.5}))
	assert.Equal(t, optimize.NotTerminated, s.Converged(&optimize.Location{F: 0.5}))
	assert.Equal(t, optimize.NotTerminated, s.Converged(&optimize.Location{F: 0.5}))
	assert.Equal(t, optimize.FunctionConvergence, s.Converged(&optimize.Location{F: 0.5}))

	s.Init(1)
	assert.Equal(t, optimize.FunctionThreshold, s.Converged(&optimize.Location{F: 0}))
}

func TestWeightsNormalized(t *testing.T) {
	in := Input{Forward: 0.03, Time: 2}
	strikes := []float64{0.01, 0.03, 0.05}
	w := weights(strikes, []float64{0.3, 0.2, 0.25}, in, true)
	assert.InDelta(t, 1.0, w[0]+w[1]+w[2], 1e-12)
	assert.Greater(t, w[1], w[0], "ATM carries the most vega")

	eq := weights(strikes, []float64{0.3, 0.2, 0.25}, in, false)
	for _, v := range eq {
		assert.InDelta(t, 1.0/3, v, 1e-12)
	}
}
