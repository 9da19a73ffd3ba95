package calendar

import (
	"sync"
	"time"

	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
)

// CalendarID identifies a holiday calendar.
type CalendarID string

const (
	TARGET       CalendarID = "TARGET"
	JPN          CalendarID = "JPN"
	USD          CalendarID = "USD"
	WeekendsOnly CalendarID = "WEEKENDS"
	// NullCalendar treats every day as a business day.
	NullCalendar CalendarID = "NULL"
)

// BusinessDayConvention selects how a date falling on a holiday is rolled.
type BusinessDayConvention string

const (
	Unadjusted        BusinessDayConvention = "UNADJUSTED"
	Following         BusinessDayConvention = "FOLLOWING"
	ModifiedFollowing BusinessDayConvention = "MODIFIED_FOLLOWING"
	Preceding         BusinessDayConvention = "PRECEDING"
)

var (
	holidayMu    sync.Mutex
	holidayCache = map[CalendarID]map[int]map[string]struct{}{}
)

func holidaysFor(cal CalendarID, year int) map[string]struct{} {
	holidayMu.Lock()
	defer holidayMu.Unlock()
	byYear, ok := holidayCache[cal]
	if !ok {
		byYear = make(map[int]map[string]struct{})
		holidayCache[cal] = byYear
	}
	set, ok := byYear[year]
	if !ok {
		set = make(map[string]struct{})
		for _, d := range holidayRules(cal, year) {
			set[d.Format("2006-01-02")] = struct{}{}
		}
		byYear[year] = set
	}
	return set
}

func isHoliday(cal CalendarID, t time.Time) bool {
	_, ok := holidaysFor(cal, t.Year())[t.Format("2006-01-02")]
	return ok
}

// IsBusinessDay checks weekends and holiday sets.
func IsBusinessDay(cal CalendarID, t time.Time) bool {
	if cal == NullCalendar {
		return true
	}
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !isHoliday(cal, t)
}

// Adjust applies Modified Following.
func Adjust(cal CalendarID, t time.Time) time.Time {
	origMonth := t.Month()
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, 1)
	}
	if t.Month() != origMonth {
		t = t.AddDate(0, 0, -1)
		for !IsBusinessDay(cal, t) {
			t = t.AddDate(0, 0, -1)
		}
	}
	return t
}

// AdjustFollowing applies a simple Following convention (no month preservation).
func AdjustFollowing(cal CalendarID, t time.Time) time.Time {
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AdjustPreceding rolls back to the previous business day.
func AdjustPreceding(cal CalendarID, t time.Time) time.Time {
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// AdjustWith applies the given business day convention.
func AdjustWith(cal CalendarID, t time.Time, bdc BusinessDayConvention) time.Time {
	switch bdc {
	case Following:
		return AdjustFollowing(cal, t)
	case ModifiedFollowing:
		return Adjust(cal, t)
	case Preceding:
		return AdjustPreceding(cal, t)
	default:
		return t
	}
}

// AddBusinessDays advances n business days (n can be negative).
func AddBusinessDays(cal CalendarID, t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		t = t.AddDate(0, 0, step)
		if IsBusinessDay(cal, t) {
			n -= step
		}
	}
	return t
}

// Advance moves t by the period p. Day periods count business days; week,
// month and year periods move calendar time and are then rolled with bdc.
// With endOfMonth set, a start on the last business day of a month lands on
// the last business day of the target month.
func Advance(cal CalendarID, t time.Time, p tenor.Period, bdc BusinessDayConvention, endOfMonth bool) time.Time {
	switch p.Unit {
	case tenor.Days:
		if p.Length == 0 {
			return AdjustWith(cal, t, bdc)
		}
		return AddBusinessDays(cal, t, p.Length)
	case tenor.Weeks:
		return AdjustWith(cal, t.AddDate(0, 0, 7*p.Length), bdc)
	default:
		months, _ := p.Months()
		target := utils.AddMonth(t, months)
		if endOfMonth && IsEndOfMonth(cal, t) {
			return LastBusinessDayOfMonth(cal, target)
		}
		return AdjustWith(cal, target, bdc)
	}
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LastBusinessDayOfMonth returns the last business day of the month containing t.
func LastBusinessDayOfMonth(cal CalendarID, t time.Time) time.Time {
	last := time.Date(t.Year(), t.Month(), daysInMonth(t.Year(), t.Month()), 0, 0, 0, 0, time.UTC)
	return AdjustPreceding(cal, last)
}

// IsEndOfMonth checks if t is the last business day of its month.
func IsEndOfMonth(cal CalendarID, t time.Time) bool {
	return t.Equal(LastBusinessDayOfMonth(cal, t))
}
