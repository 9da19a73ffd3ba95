package sabr

import (
	"math"

	"github.com/meenmo/volcube/volatility"
)

// SmileSection is the SABR smile at one expiry and swap length.
type SmileSection struct {
	Params  Parameters
	Forward float64
	Time    float64
	Displ   float64
	// Cutoff floors the shifted strike.
	Cutoff float64
}

// NewSmileSection returns the smile for p at forward and expiry t.
func NewSmileSection(p Parameters, forward, t, shift, cutoff float64) *SmileSection {
	return &SmileSection{Params: p, Forward: forward, Time: t, Displ: shift, Cutoff: cutoff}
}

// Volatility evaluates the smile. Shifted strikes below the cutoff are
// evaluated at the cutoff.
func (s *SmileSection) Volatility(strike float64) float64 {
	k := math.Max(strike+s.Displ, s.Cutoff)
	return lognormalVol(k, s.Forward+s.Displ, s.Time, s.Params)
}

func (s *SmileSection) Variance(strike float64) float64 {
	v := s.Volatility(strike)
	return v * v * s.Time
}

func (s *SmileSection) ExerciseTime() float64 { return s.Time }
func (s *SmileSection) Shift() float64        { return s.Displ }
func (s *SmileSection) ATMLevel() float64     { return s.Forward }

var _ volatility.SmileSection = (*SmileSection)(nil)
