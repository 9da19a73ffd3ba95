package volatility

import (
	"fmt"
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/settings"
	"github.com/meenmo/volcube/tenor"
)

// ConstantSurface returns one quoted volatility everywhere.
type ConstantSurface struct {
	quote.Notifier

	referenceDate time.Time
	cal           calendar.CalendarID
	bdc           calendar.BusinessDayConvention
	dc            market.DayCount
	vol           quote.Quote
	shift         float64
	typ           Type
	sub           *quote.Subscription
}

// NewConstantSurface builds a flat surface on vol. A zero referenceDate
// follows the evaluation date.
func NewConstantSurface(referenceDate time.Time, cal calendar.CalendarID, bdc calendar.BusinessDayConvention, dc market.DayCount, vol quote.Quote, typ Type, shift float64) *ConstantSurface {
	s := &ConstantSurface{
		referenceDate: referenceDate,
		cal:           cal,
		bdc:           bdc,
		dc:            dc,
		vol:           vol,
		shift:         shift,
		typ:           typ,
	}
	if vol != nil {
		s.sub = vol.Subscribe(s.Notify)
	}
	return s
}

// Close drops the quote subscription.
func (s *ConstantSurface) Close() { s.sub.Unsubscribe() }

func (s *ConstantSurface) ReferenceDate() time.Time {
	if s.referenceDate.IsZero() {
		return settings.EvaluationDate()
	}
	return s.referenceDate
}

func (s *ConstantSurface) Calendar() calendar.CalendarID { return s.cal }
func (s *ConstantSurface) BusinessDayConvention() calendar.BusinessDayConvention {
	return s.bdc
}
func (s *ConstantSurface) DayCount() market.DayCount  { return s.dc }
func (s *ConstantSurface) VolatilityType() Type       { return s.typ }
func (s *ConstantSurface) MaxSwapTenor() tenor.Period { return tenor.New(100, tenor.Years) }
func (s *ConstantSurface) AllowsExtrapolation() bool  { return true }

func (s *ConstantSurface) check(t, length float64) error {
	if t < 0 || length <= 0 {
		return fmt.Errorf("%w: option time %g, swap length %g", ErrOutOfRange, t, length)
	}
	return nil
}

func (s *ConstantSurface) Volatility(t, length, _ float64, _ bool) (float64, error) {
	if err := s.check(t, length); err != nil {
		return 0, err
	}
	return quote.ValueOf(s.vol)
}

func (s *ConstantSurface) Shift(t, length float64, _ bool) (float64, error) {
	if err := s.check(t, length); err != nil {
		return 0, err
	}
	return s.shift, nil
}

func (s *ConstantSurface) SmileSection(t, length float64, extrapolate bool) (SmileSection, error) {
	v, err := s.Volatility(t, length, 0, extrapolate)
	if err != nil {
		return nil, err
	}
	return NewFlatSmileSection(v, t, s.shift, nan), nil
}

var _ Surface = (*ConstantSurface)(nil)
