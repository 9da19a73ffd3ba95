package calendar

import "time"

func holidayRules(cal CalendarID, year int) []time.Time {
	d := func(m time.Month, day int) time.Time {
		return time.Date(year, m, day, 0, 0, 0, 0, time.UTC)
	}
	switch cal {
	case TARGET:
		easter := easterSunday(year)
		return []time.Time{
			d(time.January, 1),
			easter.AddDate(0, 0, -2), // Good Friday
			easter.AddDate(0, 0, 1),  // Easter Monday
			d(time.May, 1),
			d(time.December, 25),
			d(time.December, 26),
		}
	case JPN:
		return []time.Time{
			d(time.January, 1),
			d(time.January, 2),
			d(time.January, 3),
			d(time.May, 3),
			d(time.May, 4),
			d(time.May, 5),
			d(time.December, 31),
		}
	case USD:
		return []time.Time{
			observed(d(time.January, 1)),
			nthWeekday(year, time.January, time.Monday, 3),
			nthWeekday(year, time.February, time.Monday, 3),
			lastWeekday(year, time.May, time.Monday),
			observed(d(time.June, 19)),
			observed(d(time.July, 4)),
			nthWeekday(year, time.September, time.Monday, 1),
			nthWeekday(year, time.November, time.Thursday, 4),
			observed(d(time.December, 25)),
		}
	default:
		return nil
	}
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func observed(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for t.Weekday() != wd {
		t = t.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	t := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for t.Weekday() != wd {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
