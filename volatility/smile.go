package volatility

import "math"

// SmileSection is the volatility as a function of strike at one expiry and
// swap length.
type SmileSection interface {
	Volatility(strike float64) float64
	Variance(strike float64) float64
	ExerciseTime() float64
	Shift() float64
	// ATMLevel is the forward, NaN when unknown.
	ATMLevel() float64
}

// FlatSmileSection has the same volatility at every strike.
type FlatSmileSection struct {
	Vol      float64
	Time     float64
	Displace float64
	Forward  float64
}

// NewFlatSmileSection returns a flat smile. Pass math.NaN() for an unknown
// forward.
func NewFlatSmileSection(vol, t, shift, forward float64) *FlatSmileSection {
	return &FlatSmileSection{Vol: vol, Time: t, Displace: shift, Forward: forward}
}

func (f *FlatSmileSection) Volatility(float64) float64 { return f.Vol }
func (f *FlatSmileSection) Variance(float64) float64   { return f.Vol * f.Vol * f.Time }
func (f *FlatSmileSection) ExerciseTime() float64      { return f.Time }
func (f *FlatSmileSection) Shift() float64             { return f.Displace }
func (f *FlatSmileSection) ATMLevel() float64          { return f.Forward }

// spreadedSmileSection adds a constant spread to a base smile.
type spreadedSmileSection struct {
	base   SmileSection
	spread float64
}

func (s spreadedSmileSection) Volatility(k float64) float64 {
	return s.base.Volatility(k) + s.spread
}

func (s spreadedSmileSection) Variance(k float64) float64 {
	v := s.Volatility(k)
	return v * v * s.ExerciseTime()
}

func (s spreadedSmileSection) ExerciseTime() float64 { return s.base.ExerciseTime() }
func (s spreadedSmileSection) Shift() float64        { return s.base.Shift() }
func (s spreadedSmileSection) ATMLevel() float64     { return s.base.ATMLevel() }

var _ SmileSection = (*FlatSmileSection)(nil)
var _ SmileSection = spreadedSmileSection{}

// nan is the unknown forward of surfaces that do not carry one.
var nan = math.NaN()
