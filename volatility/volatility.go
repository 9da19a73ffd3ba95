// Package volatility defines the swaption volatility surface contract and
// its simple variants.
package volatility

import (
	"errors"
	"fmt"
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/tenor"
)

var (
	// ErrOutOfRange is returned by queries beyond the surface range when
	// extrapolation is not enabled.
	ErrOutOfRange = errors.New("volatility: query out of range")
	// ErrNotShiftedLognormal is returned when a shifted-lognormal surface is
	// required.
	ErrNotShiftedLognormal = errors.New("volatility: surface is not shifted lognormal")
	// ErrInvalidTenor is returned for empty, unordered or non-monthly tenors.
	ErrInvalidTenor = errors.New("volatility: invalid tenor")
	// ErrShape is returned when quote matrices do not match the tenor axes.
	ErrShape = errors.New("volatility: shape mismatch")
)

// Type is the volatility quoting convention.
type Type int

const (
	ShiftedLognormal Type = iota
	Normal
)

func (t Type) String() string {
	switch t {
	case ShiftedLognormal:
		return "ShiftedLognormal"
	case Normal:
		return "Normal"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Surface is a swaption volatility surface indexed by option time, swap
// length and strike. Times are year fractions from ReferenceDate under
// DayCount; swap lengths are in years.
type Surface interface {
	quote.Observable

	ReferenceDate() time.Time
	Calendar() calendar.CalendarID
	BusinessDayConvention() calendar.BusinessDayConvention
	DayCount() market.DayCount
	VolatilityType() Type
	MaxSwapTenor() tenor.Period
	AllowsExtrapolation() bool

	Volatility(optionTime, swapLength, strike float64, extrapolate bool) (float64, error)
	Shift(optionTime, swapLength float64, extrapolate bool) (float64, error)
	SmileSection(optionTime, swapLength float64, extrapolate bool) (SmileSection, error)
}

// GridSurface is a surface quoted on a discrete (option, swap) grid.
type GridSurface interface {
	Surface
	OptionDates() []time.Time
	SwapTenors() []tenor.Period
}

// SwapLength converts a swap tenor to years. Only month and year tenors of
// positive length are accepted.
func SwapLength(p tenor.Period) (float64, error) {
	m, err := p.Months()
	if err != nil || m <= 0 {
		return 0, fmt.Errorf("%w: swap tenor %s", ErrInvalidTenor, p)
	}
	if p.Unit == tenor.Years {
		return float64(p.Length), nil
	}
	return float64(m) / 12.0, nil
}

// OptionDateFromTenor rolls the surface reference date forward by p.
func OptionDateFromTenor(s Surface, p tenor.Period) time.Time {
	return calendar.Advance(s.Calendar(), s.ReferenceDate(), p, s.BusinessDayConvention(), false)
}

// TimeFromReference is the year fraction from the reference date to d.
func TimeFromReference(s Surface, d time.Time) float64 {
	return s.DayCount().YearFraction(s.ReferenceDate(), d)
}

// VolatilityByDate queries s by option date and swap tenor.
func VolatilityByDate(s Surface, optionDate time.Time, swapTenor tenor.Period, strike float64, extrapolate bool) (float64, error) {
	l, err := SwapLength(swapTenor)
	if err != nil {
		return 0, err
	}
	return s.Volatility(TimeFromReference(s, optionDate), l, strike, extrapolate)
}

// ShiftByDate queries the shift by option date and swap tenor.
func ShiftByDate(s Surface, optionDate time.Time, swapTenor tenor.Period, extrapolate bool) (float64, error) {
	l, err := SwapLength(swapTenor)
	if err != nil {
		return 0, err
	}
	return s.Shift(TimeFromReference(s, optionDate), l, extrapolate)
}

// BlackVariance returns vol^2 * t.
func BlackVariance(s Surface, optionTime, swapLength, strike float64, extrapolate bool) (float64, error) {
	v, err := s.Volatility(optionTime, swapLength, strike, extrapolate)
	if err != nil {
		return 0, err
	}
	return v * v * optionTime, nil
}

// RequireShiftedLognormal returns ErrNotShiftedLognormal for other types.
func RequireShiftedLognormal(s Surface) error {
	if s.VolatilityType() != ShiftedLognormal {
		return fmt.Errorf("%w: got %s", ErrNotShiftedLognormal, s.VolatilityType())
	}
	return nil
}
