package market

import (
	"time"

	"github.com/meenmo/volcube/utils"
)

// ReferenceIndex enumerates supported floating benchmarks.
type ReferenceIndex string

const (
	ESTR      ReferenceIndex = "ESTR"
	EURIBOR3M ReferenceIndex = "EURIBOR3M"
	EURIBOR6M ReferenceIndex = "EURIBOR6M"
	TONAR     ReferenceIndex = "TONAR"
	TIBOR3M   ReferenceIndex = "TIBOR3M"
	TIBOR6M   ReferenceIndex = "TIBOR6M"
	SOFR      ReferenceIndex = "SOFR"
)

// IsOvernight reports whether the reference rate is an overnight index.
func IsOvernight(r ReferenceIndex) bool {
	switch r {
	case ESTR, TONAR, SOFR:
		return true
	default:
		return false
	}
}

// Currency is an ISO currency code.
type Currency string

const (
	EUR Currency = "EUR"
	JPY Currency = "JPY"
	USD Currency = "USD"
)

// Frequency enumerates payment/reset frequencies in months.
type Frequency int

const (
	FreqAnnual    Frequency = 12
	FreqSemi      Frequency = 6
	FreqQuarterly Frequency = 3
	FreqMonthly   Frequency = 1
)

// DayCount enum.
type DayCount string

const (
	Act360  DayCount = "ACT/360"
	Act365  DayCount = "ACT/365"
	Act365F DayCount = "ACT/365F"
	Dc30360 DayCount = "30/360"
	Dc30E   DayCount = "30E/360"
)

// YearFraction returns the accrual fraction between two dates.
func (dc DayCount) YearFraction(start, end time.Time) float64 {
	return utils.YearFraction(start, end, string(dc))
}

// Valid reports whether dc is one of the supported conventions.
func (dc DayCount) Valid() bool {
	switch dc {
	case Act360, Act365, Act365F, Dc30360, Dc30E:
		return true
	default:
		return false
	}
}
