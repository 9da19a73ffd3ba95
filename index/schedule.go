package index

import (
	"fmt"
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/utils"
)

// Period is one accrual period of a leg, business-day adjusted.
type Period struct {
	StartDate time.Time
	EndDate   time.Time
	PayDate   time.Time
}

// BackwardSchedule rolls periods of the given number of months backward from
// maturity, so regular dates align with maturity and any stub falls at the
// front. A first rolled date within 7 days of effective is dropped to avoid a
// tiny stub.
func BackwardSchedule(effective, maturity time.Time, months int, cal calendar.CalendarID, bdc calendar.BusinessDayConvention) ([]Period, error) {
	if !maturity.After(effective) {
		return nil, fmt.Errorf("schedule: maturity %s not after effective %s", utils.FormatDate(maturity), utils.FormatDate(effective))
	}
	if months <= 0 {
		return nil, fmt.Errorf("schedule: unsupported period of %d months", months)
	}

	var unadjustedDates []time.Time
	current := maturity
	for n := 1; current.After(effective); n++ {
		unadjustedDates = append([]time.Time{current}, unadjustedDates...)
		current = utils.AddMonth(maturity, -months*n)
	}

	if len(unadjustedDates) > 0 {
		daysDiff := int(utils.Days(effective, unadjustedDates[0]))
		if daysDiff > 0 && daysDiff <= 7 && len(unadjustedDates) > 1 {
			unadjustedDates = unadjustedDates[1:]
		}
	}
	unadjustedDates = append([]time.Time{effective}, unadjustedDates...)

	periods := make([]Period, 0, len(unadjustedDates)-1)
	for i := 0; i < len(unadjustedDates)-1; i++ {
		start := calendar.AdjustWith(cal, unadjustedDates[i], bdc)
		end := calendar.AdjustWith(cal, unadjustedDates[i+1], bdc)
		periods = append(periods, Period{StartDate: start, EndDate: end, PayDate: end})
	}
	return periods, nil
}
