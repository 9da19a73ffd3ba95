package index

import (
	"fmt"
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/curve"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
)

// SwapConvention groups everything except the tenor that defines a swap
// rate index: fixing lag and calendar, fixed leg schedule and day count, the
// floating index and an optional discounting curve.
type SwapConvention struct {
	FamilyName         string
	FixingDays         int
	Currency           market.Currency
	Calendar           calendar.CalendarID
	FixedLegTenor      tenor.Period
	FixedLegConvention calendar.BusinessDayConvention
	FixedLegDayCount   market.DayCount
	IborIndex          *IborIndex
	// DiscountingCurve is optional. When empty the ibor forwarding curve
	// discounts too (single-curve fixing).
	DiscountingCurve *curve.Handle
}

// Validate checks the convention fields.
func (c SwapConvention) Validate() error {
	if c.FamilyName == "" {
		return fmt.Errorf("%w: empty family name", ErrInvalidConvention)
	}
	if c.FixingDays < 0 {
		return fmt.Errorf("%w: negative fixing days", ErrInvalidConvention)
	}
	if m, err := c.FixedLegTenor.Months(); err != nil || m <= 0 {
		return fmt.Errorf("%w: fixed leg tenor %s", ErrInvalidConvention, c.FixedLegTenor)
	}
	if !c.FixedLegDayCount.Valid() {
		return fmt.Errorf("%w: fixed leg day count %q", ErrInvalidConvention, c.FixedLegDayCount)
	}
	return c.IborIndex.Validate()
}

// SwapIndex is a swap rate index of a given tenor, fixed as the par rate of
// the underlying forward-starting swap.
type SwapIndex struct {
	quote.Notifier
	convention SwapConvention
	tenor      tenor.Period
	subs       []*quote.Subscription
}

// NewSwapIndex validates conv and returns the index for the given tenor.
// The index forwards notifications from its curves.
func NewSwapIndex(conv SwapConvention, t tenor.Period) (*SwapIndex, error) {
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	if m, err := t.Months(); err != nil || m <= 0 {
		return nil, fmt.Errorf("%w: swap tenor %s", ErrInvalidConvention, t)
	}
	s := &SwapIndex{convention: conv, tenor: t}
	if conv.IborIndex.ForwardingCurve != nil {
		s.subs = append(s.subs, conv.IborIndex.ForwardingCurve.Subscribe(s.Notify))
	}
	if conv.DiscountingCurve != nil {
		s.subs = append(s.subs, conv.DiscountingCurve.Subscribe(s.Notify))
	}
	return s, nil
}

// Close drops the curve subscriptions.
func (s *SwapIndex) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

// Name returns e.g. "EuriborSwapIsdaFixA10Y".
func (s *SwapIndex) Name() string {
	return s.convention.FamilyName + s.tenor.String()
}

// Tenor returns the swap tenor.
func (s *SwapIndex) Tenor() tenor.Period { return s.tenor }

// Convention returns the index conventions.
func (s *SwapIndex) Convention() SwapConvention { return s.convention }

// Clone returns the same family with another tenor. The caller owns the clone
// and should Close it when done.
func (s *SwapIndex) Clone(t tenor.Period) (*SwapIndex, error) {
	return NewSwapIndex(s.convention, t)
}

// IsValidFixingDate reports whether d is a business day on the index calendar.
func (s *SwapIndex) IsValidFixingDate(d time.Time) bool {
	return calendar.IsBusinessDay(s.convention.Calendar, d)
}

// fixedLeg returns the start, unadjusted maturity and fixed leg schedule of
// the swap fixed on d.
func (s *SwapIndex) fixedLeg(d time.Time) (start, maturity time.Time, fixed []Period, err error) {
	conv := s.convention
	start = calendar.AddBusinessDays(conv.Calendar, d, conv.FixingDays)
	months, _ := s.tenor.Months()
	maturity = utils.AddMonth(start, months)
	fixedMonths, _ := conv.FixedLegTenor.Months()
	fixed, err = BackwardSchedule(start, maturity, fixedMonths, conv.Calendar, conv.FixedLegConvention)
	return start, maturity, fixed, err
}

// MaturityDate is the adjusted end date of the swap fixed on d.
func (s *SwapIndex) MaturityDate(d time.Time) (time.Time, error) {
	_, _, fixed, err := s.fixedLeg(d)
	if err != nil {
		return time.Time{}, err
	}
	return fixed[len(fixed)-1].EndDate, nil
}

// Fixing returns the forward par swap rate for a fixing on d.
func (s *SwapIndex) Fixing(d time.Time) (float64, error) {
	conv := s.convention
	if !s.IsValidFixingDate(d) {
		return 0, fmt.Errorf("%w: %s is not a %s business day", ErrInvalidFixingDate, utils.FormatDate(d), conv.Calendar)
	}
	forwarding := conv.IborIndex.ForwardingCurve.Current()
	if forwarding == nil {
		return 0, ErrNoCurve
	}
	if d.Before(forwarding.Settlement()) {
		return 0, fmt.Errorf("%w: %s", ErrPastFixing, utils.FormatDate(d))
	}
	discounting := forwarding
	multiCurve := !conv.DiscountingCurve.Empty()
	if multiCurve {
		discounting = conv.DiscountingCurve.Current()
	}

	start, maturity, fixed, err := s.fixedLeg(d)
	if err != nil {
		return 0, err
	}
	annuity := 0.0
	for _, p := range fixed {
		annuity += conv.FixedLegDayCount.YearFraction(p.StartDate, p.EndDate) * discounting.DF(p.PayDate)
	}
	if annuity <= 0 {
		return 0, fmt.Errorf("index: non-positive annuity for %s", s.Name())
	}

	var floatPV float64
	if !multiCurve {
		end := fixed[len(fixed)-1].EndDate
		floatPV = forwarding.DF(fixed[0].StartDate) - forwarding.DF(end)
	} else {
		ibor := conv.IborIndex
		floatMonths, _ := ibor.Tenor.Months()
		floating, err := BackwardSchedule(start, maturity, floatMonths, conv.Calendar, ibor.BusinessDayConvention)
		if err != nil {
			return 0, err
		}
		for _, p := range floating {
			fwd, err := ibor.forwardRate(forwarding, p.StartDate, p.EndDate)
			if err != nil {
				return 0, err
			}
			floatPV += fwd * ibor.DayCount.YearFraction(p.StartDate, p.EndDate) * discounting.DF(p.PayDate)
		}
	}
	return floatPV / annuity, nil
}
