package index

import (
	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/curve"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/tenor"
)

// Euribor returns a EURIBOR index of the given tenor: ACT/360, T+2, TARGET.
func Euribor(t tenor.Period, forwarding *curve.Handle) *IborIndex {
	name := market.EURIBOR6M
	if t.Equal(tenor.New(3, tenor.Months)) {
		name = market.EURIBOR3M
	}
	return &IborIndex{
		Name:                  name,
		Tenor:                 t,
		FixingDays:            2,
		Currency:              market.EUR,
		Calendar:              calendar.TARGET,
		BusinessDayConvention: calendar.ModifiedFollowing,
		EndOfMonth:            true,
		DayCount:              market.Act360,
		ForwardingCurve:       forwarding,
	}
}

// Tibor returns a TIBOR index of the given tenor: ACT/365F, T+2, JPN.
func Tibor(t tenor.Period, forwarding *curve.Handle) *IborIndex {
	name := market.TIBOR6M
	if t.Equal(tenor.New(3, tenor.Months)) {
		name = market.TIBOR3M
	}
	return &IborIndex{
		Name:                  name,
		Tenor:                 t,
		FixingDays:            2,
		Currency:              market.JPY,
		Calendar:              calendar.JPN,
		BusinessDayConvention: calendar.ModifiedFollowing,
		DayCount:              market.Act365F,
		ForwardingCurve:       forwarding,
	}
}

// EuriborSwapIsdaFixA is the EUR swap rate convention: annual 30/360 fixed
// leg against EURIBOR. Tenors above one year use EURIBOR 6M, the one-year
// tenor uses EURIBOR 3M.
func EuriborSwapIsdaFixA(forwarding, discounting *curve.Handle, swapTenor tenor.Period) SwapConvention {
	floatTenor := tenor.New(6, tenor.Months)
	if !tenor.New(1, tenor.Years).Less(swapTenor) {
		floatTenor = tenor.New(3, tenor.Months)
	}
	return SwapConvention{
		FamilyName:         "EuriborSwapIsdaFixA",
		FixingDays:         2,
		Currency:           market.EUR,
		Calendar:           calendar.TARGET,
		FixedLegTenor:      tenor.New(1, tenor.Years),
		FixedLegConvention: calendar.ModifiedFollowing,
		FixedLegDayCount:   market.Dc30360,
		IborIndex:          Euribor(floatTenor, forwarding),
		DiscountingCurve:   discounting,
	}
}

// JpyTiborSwap is the JPY swap rate convention: semiannual ACT/365F fixed leg
// against TIBOR 6M.
func JpyTiborSwap(forwarding, discounting *curve.Handle) SwapConvention {
	return SwapConvention{
		FamilyName:         "JpyTiborSwap",
		FixingDays:         2,
		Currency:           market.JPY,
		Calendar:           calendar.JPN,
		FixedLegTenor:      tenor.New(6, tenor.Months),
		FixedLegConvention: calendar.ModifiedFollowing,
		FixedLegDayCount:   market.Act365F,
		IborIndex:          Tibor(tenor.New(6, tenor.Months), forwarding),
		DiscountingCurve:   discounting,
	}
}
