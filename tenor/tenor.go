package tenor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPeriod is returned when a tenor string cannot be parsed or a
// period has an unsupported unit for the requested conversion.
var ErrInvalidPeriod = errors.New("tenor: invalid period")

// Unit is the time unit of a Period.
type Unit int

const (
	Days Unit = iota
	Weeks
	Months
	Years
)

func (u Unit) String() string {
	switch u {
	case Days:
		return "D"
	case Weeks:
		return "W"
	case Months:
		return "M"
	case Years:
		return "Y"
	default:
		return "?"
	}
}

// Period is a length of time expressed in whole units, e.g. 3M or 10Y.
type Period struct {
	Length int
	Unit   Unit
}

// New returns a Period of n units.
func New(n int, u Unit) Period {
	return Period{Length: n, Unit: u}
}

// Parse converts tenor strings like "1W", "3M", "10Y" to a Period.
func Parse(s string) (Period, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if len(s) < 2 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	var u Unit
	switch s[len(s)-1] {
	case 'D':
		u = Days
	case 'W':
		u = Weeks
	case 'M':
		u = Months
	case 'Y':
		u = Years
	default:
		return Period{}, fmt.Errorf("%w: unknown unit in %q", ErrInvalidPeriod, s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Period{Length: n, Unit: u}, nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(s string) Period {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseAll parses a list of tenor strings.
func ParseAll(ss []string) ([]Period, error) {
	out := make([]Period, len(ss))
	for i, s := range ss {
		p, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (p Period) String() string {
	return strconv.Itoa(p.Length) + p.Unit.String()
}

// IsZero reports whether the period has zero length.
func (p Period) IsZero() bool {
	return p.Length == 0
}

// Months returns the period in months. Day and week periods are not
// convertible and return ErrInvalidPeriod.
func (p Period) Months() (int, error) {
	switch p.Unit {
	case Months:
		return p.Length, nil
	case Years:
		return 12 * p.Length, nil
	default:
		return 0, fmt.Errorf("%w: %s has no whole-month length", ErrInvalidPeriod, p)
	}
}

// Years returns an approximate length in years, used for ordering and for
// swap lengths. Days count as 1/365 and weeks as 7/365.
func (p Period) Years() float64 {
	switch p.Unit {
	case Days:
		return float64(p.Length) / 365.0
	case Weeks:
		return float64(p.Length) * 7.0 / 365.0
	case Months:
		return float64(p.Length) / 12.0
	default:
		return float64(p.Length)
	}
}

// days gives a comparable length in days; months use 30 and years 365 so that
// 12M == 1Y compares equal through the month path below.
func (p Period) days() int {
	switch p.Unit {
	case Days:
		return p.Length
	case Weeks:
		return 7 * p.Length
	case Months:
		return 30 * p.Length
	default:
		return 365 * p.Length
	}
}

// Compare orders two periods. Month and year periods are compared exactly in
// months, everything else by approximate day count.
func (p Period) Compare(q Period) int {
	pm, errP := p.Months()
	qm, errQ := q.Months()
	if errP == nil && errQ == nil {
		switch {
		case pm < qm:
			return -1
		case pm > qm:
			return 1
		default:
			return 0
		}
	}
	pd, qd := p.days(), q.days()
	switch {
	case pd < qd:
		return -1
	case pd > qd:
		return 1
	default:
		return 0
	}
}

// Less reports p < q.
func (p Period) Less(q Period) bool { return p.Compare(q) < 0 }

// Equal reports p == q in the Compare sense (12M equals 1Y).
func (p Period) Equal(q Period) bool { return p.Compare(q) == 0 }

// Normalize rewrites whole-year month periods as years (24M -> 2Y).
func (p Period) Normalize() Period {
	if p.Unit == Months && p.Length != 0 && p.Length%12 == 0 {
		return Period{Length: p.Length / 12, Unit: Years}
	}
	return p
}
