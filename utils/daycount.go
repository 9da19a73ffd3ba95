package utils

import (
	"time"
)

// YearFraction is the accrual between start and end under a day count
// name: ACT/360, ACT/365F (ACT/365 is read the same way) or 30E/360 (also
// accepted as 30/360). Unknown names fall back to ACT/365F.
func YearFraction(start, end time.Time, convention string) float64 {
	switch convention {
	case "ACT/360":
		return Days(start, end) / 360.0
	case "30E/360", "30/360":
		return thirtyE360(start, end)
	default:
		return Days(start, end) / 365.0
	}
}

// thirtyE360 caps both day-of-month values at 30 (Eurobond basis).
func thirtyE360(start, end time.Time) float64 {
	d1, d2 := min(start.Day(), 30), min(end.Day(), 30)
	months := 12*(end.Year()-start.Year()) + int(end.Month()) - int(start.Month())
	return float64(30*months+d2-d1) / 360.0
}
