package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/curve"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
)

var (
	// ErrInvalidConvention is returned for inconsistent index conventions.
	ErrInvalidConvention = errors.New("index: invalid convention")
	// ErrNoCurve is returned when forecasting without a linked curve.
	ErrNoCurve = errors.New("index: no forecasting curve linked")
	// ErrInvalidFixingDate is returned for fixing dates that are not business days.
	ErrInvalidFixingDate = errors.New("index: invalid fixing date")
	// ErrPastFixing is returned when a fixing before the curve settlement is requested.
	ErrPastFixing = errors.New("index: fixing date before curve settlement")
)

// IborIndex is a term-rate index forecast off a projection curve.
type IborIndex struct {
	Name                  market.ReferenceIndex
	Tenor                 tenor.Period
	FixingDays            int
	Currency              market.Currency
	Calendar              calendar.CalendarID
	BusinessDayConvention calendar.BusinessDayConvention
	EndOfMonth            bool
	DayCount              market.DayCount
	ForwardingCurve       *curve.Handle
}

// Validate checks the index conventions.
func (ix *IborIndex) Validate() error {
	if ix == nil {
		return fmt.Errorf("%w: nil ibor index", ErrInvalidConvention)
	}
	if _, err := ix.Tenor.Months(); err != nil || ix.Tenor.Length <= 0 {
		return fmt.Errorf("%w: ibor tenor %s", ErrInvalidConvention, ix.Tenor)
	}
	if ix.FixingDays < 0 {
		return fmt.Errorf("%w: negative fixing days", ErrInvalidConvention)
	}
	if !ix.DayCount.Valid() {
		return fmt.Errorf("%w: day count %q", ErrInvalidConvention, ix.DayCount)
	}
	return nil
}

// IsValidFixingDate reports whether d is a business day on the index calendar.
func (ix *IborIndex) IsValidFixingDate(d time.Time) bool {
	return calendar.IsBusinessDay(ix.Calendar, d)
}

// ValueDate returns the accrual start for a fixing on d.
func (ix *IborIndex) ValueDate(d time.Time) time.Time {
	return calendar.AddBusinessDays(ix.Calendar, d, ix.FixingDays)
}

// MaturityDate returns the accrual end for a value date.
func (ix *IborIndex) MaturityDate(valueDate time.Time) time.Time {
	return calendar.Advance(ix.Calendar, valueDate, ix.Tenor, ix.BusinessDayConvention, ix.EndOfMonth)
}

// ForecastFixing returns the simple forward rate for a fixing on d.
func (ix *IborIndex) ForecastFixing(d time.Time) (float64, error) {
	if ix.ForwardingCurve.Empty() {
		return 0, ErrNoCurve
	}
	start := ix.ValueDate(d)
	return ix.forwardRate(ix.ForwardingCurve.Current(), start, ix.MaturityDate(start))
}

func (ix *IborIndex) forwardRate(c curve.DiscountCurve, start, end time.Time) (float64, error) {
	alpha := ix.DayCount.YearFraction(start, end)
	if alpha <= 0 {
		return 0, fmt.Errorf("%w: empty accrual %s-%s", ErrInvalidFixingDate, utils.FormatDate(start), utils.FormatDate(end))
	}
	return (c.DF(start)/c.DF(end) - 1.0) / alpha, nil
}
