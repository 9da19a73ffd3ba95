package volatility

import (
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/tenor"
)

// SpreadedSurface adds a quoted spread to every volatility of a base
// surface. Shifts are those of the base.
type SpreadedSurface struct {
	quote.Notifier

	base   Surface
	spread quote.Quote
	subs   []*quote.Subscription
}

// NewSpreadedSurface wraps base with spread.
func NewSpreadedSurface(base Surface, spread quote.Quote) *SpreadedSurface {
	s := &SpreadedSurface{base: base, spread: spread}
	s.subs = append(s.subs, base.Subscribe(s.Notify), spread.Subscribe(s.Notify))
	return s
}

// Close drops the base and spread subscriptions.
func (s *SpreadedSurface) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *SpreadedSurface) ReferenceDate() time.Time      { return s.base.ReferenceDate() }
func (s *SpreadedSurface) Calendar() calendar.CalendarID { return s.base.Calendar() }
func (s *SpreadedSurface) BusinessDayConvention() calendar.BusinessDayConvention {
	return s.base.BusinessDayConvention()
}
func (s *SpreadedSurface) DayCount() market.DayCount  { return s.base.DayCount() }
func (s *SpreadedSurface) VolatilityType() Type       { return s.base.VolatilityType() }
func (s *SpreadedSurface) MaxSwapTenor() tenor.Period { return s.base.MaxSwapTenor() }
func (s *SpreadedSurface) AllowsExtrapolation() bool  { return s.base.AllowsExtrapolation() }

func (s *SpreadedSurface) Volatility(t, length, strike float64, extrapolate bool) (float64, error) {
	v, err := s.base.Volatility(t, length, strike, extrapolate)
	if err != nil {
		return 0, err
	}
	sp, err := quote.ValueOf(s.spread)
	if err != nil {
		return 0, err
	}
	return v + sp, nil
}

func (s *SpreadedSurface) Shift(t, length float64, extrapolate bool) (float64, error) {
	return s.base.Shift(t, length, extrapolate)
}

func (s *SpreadedSurface) SmileSection(t, length float64, extrapolate bool) (SmileSection, error) {
	base, err := s.base.SmileSection(t, length, extrapolate)
	if err != nil {
		return nil, err
	}
	sp, err := quote.ValueOf(s.spread)
	if err != nil {
		return nil, err
	}
	return spreadedSmileSection{base: base, spread: sp}, nil
}

var _ Surface = (*SpreadedSurface)(nil)
