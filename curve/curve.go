package curve

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/utils"
)

// ErrNoPillars is returned when a curve is built without discount factors.
var ErrNoPillars = errors.New("curve: no pillars")

// DiscountCurve provides discount factors for valuation and forecasting.
type DiscountCurve interface {
	DF(t time.Time) float64
	Settlement() time.Time
}

// Curve is a discount curve on explicit pillar dates, log-linear in DF
// between pillars (flat forward).
type Curve struct {
	settlement      time.Time
	pillars         []time.Time
	discountFactors map[time.Time]float64
	dayCount        market.DayCount
}

// NewCurveFromDFs creates a curve from explicitly provided discount factors.
// A settlement pillar with DF 1 is added when missing.
func NewCurveFromDFs(settlement time.Time, dfs map[time.Time]float64, dc market.DayCount) (*Curve, error) {
	if len(dfs) == 0 {
		return nil, ErrNoPillars
	}
	c := &Curve{
		settlement:      settlement,
		discountFactors: make(map[time.Time]float64, len(dfs)+1),
		dayCount:        dc,
	}
	for t, df := range dfs {
		if df <= 0 || math.IsNaN(df) {
			return nil, fmt.Errorf("curve: non-positive discount factor %g at %s", df, utils.FormatDate(t))
		}
		c.discountFactors[t] = df
		c.pillars = append(c.pillars, t)
	}
	if _, ok := c.discountFactors[settlement]; !ok {
		c.discountFactors[settlement] = 1.0
		c.pillars = append(c.pillars, settlement)
	}
	utils.SortDates(c.pillars)
	return c, nil
}

// NewFlatCurve returns a curve with a constant continuously compounded zero
// rate (decimal) on the given day count.
func NewFlatCurve(settlement time.Time, rate float64, dc market.DayCount) *FlatCurve {
	return &FlatCurve{settlement: settlement, rate: rate, dayCount: dc}
}

// FlatCurve discounts at a single continuously compounded rate.
type FlatCurve struct {
	settlement time.Time
	rate       float64
	dayCount   market.DayCount
}

func (f *FlatCurve) DF(t time.Time) float64 {
	return math.Exp(-f.rate * f.dayCount.YearFraction(f.settlement, t))
}

func (f *FlatCurve) Settlement() time.Time { return f.settlement }

// Rate returns the continuously compounded zero rate.
func (f *FlatCurve) Rate() float64 { return f.rate }

// findBracketOrBoundary finds two adjacent dates that bracket the target.
// If the target is outside the range, returns the nearest boundary pair.
func findBracketOrBoundary(dates []time.Time, target time.Time) (d1, d2 time.Time) {
	// Binary search for first date >= target
	idx := sort.Search(len(dates), func(i int) bool {
		return !dates[i].Before(target)
	})

	if idx <= 0 {
		return dates[0], dates[1]
	}
	if idx >= len(dates) {
		return dates[len(dates)-2], dates[len(dates)-1]
	}
	return dates[idx-1], dates[idx]
}

func (c *Curve) DF(t time.Time) float64 {
	if df, ok := c.discountFactors[t]; ok {
		return df
	}
	if len(c.pillars) < 2 {
		return c.discountFactors[c.pillars[0]]
	}
	d1, d2 := findBracketOrBoundary(c.pillars, t)
	df1 := c.discountFactors[d1]
	df2 := c.discountFactors[d2]

	t1 := c.dayCount.YearFraction(c.settlement, d1)
	t2 := c.dayCount.YearFraction(c.settlement, d2)
	tTarget := c.dayCount.YearFraction(c.settlement, t)

	if t2 == t1 {
		return df1
	}
	forwardRate := math.Log(df1/df2) / (t2 - t1)
	return df1 * math.Exp(-forwardRate*(tTarget-t1))
}

// ZeroRateAt returns the continuously compounded zero rate in percent.
func (c *Curve) ZeroRateAt(t time.Time) float64 {
	yearFrac := c.dayCount.YearFraction(c.settlement, t)
	if yearFrac == 0 {
		return 0
	}
	return -math.Log(c.DF(t)) / yearFrac * 100
}

// Settlement returns the curve's settlement date.
func (c *Curve) Settlement() time.Time {
	return c.settlement
}

// Pillars returns the curve's pillar dates in ascending order.
func (c *Curve) Pillars() []time.Time {
	out := make([]time.Time, len(c.pillars))
	copy(out, c.pillars)
	return out
}
