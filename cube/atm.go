package cube

import (
	"fmt"
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/index"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/volatility"
)

// ATMPoint is the at-the-money state of one (option date, swap tenor).
type ATMPoint struct {
	Forward float64
	Vol     float64
	Shift   float64
}

// Layer positions of ATM points stored in a grid.
const (
	atmForwardLayer = iota
	atmVolLayer
	atmShiftLayer
	atmLayers
)

func (p ATMPoint) layers() []float64 {
	return []float64{p.Forward, p.Vol, p.Shift}
}

func atmPointFromLayers(v []float64) ATMPoint {
	return ATMPoint{Forward: v[atmForwardLayer], Vol: v[atmVolLayer], Shift: v[atmShiftLayer]}
}

// ATMAdapter resolves ATM forwards from a pair of swap indices and ATM
// volatilities and shifts from a shifted-lognormal surface.
type ATMAdapter struct {
	surface volatility.Surface
	long    *index.SwapIndex
	short   *index.SwapIndex
}

// NewATMAdapter checks that surface is shifted lognormal and that the short
// index tenor is strictly shorter than the long one.
func NewATMAdapter(surface volatility.Surface, long, short *index.SwapIndex) (*ATMAdapter, error) {
	if surface == nil || long == nil || short == nil {
		return nil, fmt.Errorf("%w: ATM surface and both swap indices are required", ErrInvalidInput)
	}
	if err := volatility.RequireShiftedLognormal(surface); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !short.Tenor().Less(long.Tenor()) {
		return nil, fmt.Errorf("%w: short index tenor %s is not shorter than long index tenor %s",
			ErrInvalidInput, short.Tenor(), long.Tenor())
	}
	return &ATMAdapter{surface: surface, long: long, short: short}, nil
}

// Surface returns the wrapped ATM surface.
func (a *ATMAdapter) Surface() volatility.Surface { return a.surface }

// indexFor picks the long index when swapTenor is longer than the short
// index tenor.
func (a *ATMAdapter) indexFor(swapTenor tenor.Period) *index.SwapIndex {
	if a.short.Tenor().Less(swapTenor) {
		return a.long
	}
	return a.short
}

// Forward is the ATM forward swap rate fixed on optionDate. Dates that are
// not fixing dates of the index roll to the next business day.
func (a *ATMAdapter) Forward(optionDate time.Time, swapTenor tenor.Period) (float64, error) {
	ix, err := a.indexFor(swapTenor).Clone(swapTenor)
	if err != nil {
		return 0, err
	}
	defer ix.Close()
	d := calendar.AdjustFollowing(ix.Convention().Calendar, optionDate)
	return ix.Fixing(d)
}

// Vol is the ATM volatility at strike.
func (a *ATMAdapter) Vol(optionDate time.Time, swapTenor tenor.Period, strike float64) (float64, error) {
	return volatility.VolatilityByDate(a.surface, optionDate, swapTenor, strike, true)
}

// Shift is the ATM surface shift.
func (a *ATMAdapter) Shift(optionDate time.Time, swapTenor tenor.Period) (float64, error) {
	return volatility.ShiftByDate(a.surface, optionDate, swapTenor, true)
}

// Point resolves forward, volatility and shift together.
func (a *ATMAdapter) Point(optionDate time.Time, swapTenor tenor.Period) (ATMPoint, error) {
	f, err := a.Forward(optionDate, swapTenor)
	if err != nil {
		return ATMPoint{}, fmt.Errorf("atm forward: %w", err)
	}
	v, err := a.Vol(optionDate, swapTenor, f)
	if err != nil {
		return ATMPoint{}, fmt.Errorf("atm vol: %w", err)
	}
	s, err := a.Shift(optionDate, swapTenor)
	if err != nil {
		return ATMPoint{}, fmt.Errorf("atm shift: %w", err)
	}
	return ATMPoint{Forward: f, Vol: v, Shift: s}, nil
}
