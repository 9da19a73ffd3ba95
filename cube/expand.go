package cube

import (
	"fmt"
	"sort"
	"time"

	"github.com/meenmo/volcube/knotgrid"
	"github.com/meenmo/volcube/sabr"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
	"github.com/meenmo/volcube/volatility"
)

// unionAxes merges the quoted axes with the ATM surface grid. Under
// ExpandSkipOutside, ATM entries outside the quoted range are dropped.
func (c *SabrCube) unionAxes(market *knotgrid.Grid) ([]time.Time, []tenor.Period) {
	dates := market.OptionDates()
	tenors := market.SwapTenors()
	gs, ok := c.atm.Surface().(volatility.GridSurface)
	if !ok {
		return dates, tenors
	}
	first, last := dates[0], dates[len(dates)-1]
	for _, d := range gs.OptionDates() {
		if c.expansion == ExpandSkipOutside && (d.Before(first) || d.After(last)) {
			continue
		}
		if !d.After(c.timeline.ReferenceDate()) {
			continue
		}
		if !containsDate(dates, d) {
			dates = append(dates, d)
		}
	}
	shortest, longest := tenors[0], tenors[len(tenors)-1]
	for _, p := range gs.SwapTenors() {
		if c.expansion == ExpandSkipOutside && (p.Less(shortest) || longest.Less(p)) {
			continue
		}
		if _, err := volatility.SwapLength(p); err != nil {
			continue
		}
		if !containsTenor(tenors, p) {
			tenors = append(tenors, p)
		}
	}
	utils.SortDates(dates)
	sort.SliceStable(tenors, func(a, b int) bool { return tenors[a].Less(tenors[b]) })
	return dates, tenors
}

func containsDate(ds []time.Time, d time.Time) bool {
	for _, x := range ds {
		if x.Equal(d) {
			return true
		}
	}
	return false
}

func containsTenor(ps []tenor.Period, p tenor.Period) bool {
	_, ok := indexOfTenor(ps, p)
	return ok
}

// expand builds the ATM-calibrated volatility cube on the union grid and the
// matching ATM point grid. Quoted knots keep their market volatilities; the
// rest are synthesized by synthesize.
func (c *SabrCube) expand(market, atmGrid, sparse *knotgrid.Grid) (*knotgrid.Grid, *knotgrid.Grid, error) {
	dates, tenors := c.unionAxes(market)
	vols := market.Clone()
	atmDense := atmGrid.Clone()
	inserted := 0
	for _, d := range dates {
		t := c.timeline.TimeFromReference(d)
		_, quotedRow := market.OptionIndex(d)
		for _, p := range tenors {
			_, quotedCol := market.SwapIndex(p)
			if quotedRow && quotedCol {
				continue
			}
			l, err := volatility.SwapLength(p)
			if err != nil {
				return nil, nil, err
			}
			pt, err := c.atm.Point(d, p)
			if err != nil {
				return nil, nil, fmt.Errorf("cube: ATM point %s x %s: %w", utils.FormatDate(d), p, err)
			}
			v, err := c.synthesize(market, atmGrid, sparse, t, l, pt)
			if err != nil {
				return nil, nil, fmt.Errorf("cube: expand %s x %s: %w", utils.FormatDate(d), p, err)
			}
			if _, _, err := vols.InsertKnot(d, p, t, l, v); err != nil {
				return nil, nil, err
			}
			if _, _, err := atmDense.InsertKnot(d, p, t, l, pt.layers()); err != nil {
				return nil, nil, err
			}
			inserted++
		}
	}
	expandedKnots.Add(float64(inserted))
	r, cols := vols.Dims()
	diagf("expanded %d knots onto %dx%d grid", inserted, r, cols)
	return vols, atmDense, nil
}

// synthesize returns one volatility per strike spread at (t, length). For
// each target strike it fixes the moneyness (F+s)/(K+s), reads the smile
// spread over ATM at the equivalent strike of each bracketing quoted knot,
// interpolates those spreads to the target and adds the target ATM vol.
func (c *SabrCube) synthesize(market, atmGrid, sparse *knotgrid.Grid, t, length float64, target ATMPoint) ([]float64, error) {
	rows := bracket(market.OptionTimes(), t)
	cols := bracket(market.SwapLengths(), length)

	axes := knotgrid.Axes{}
	for _, i := range rows {
		axes.OptionDates = append(axes.OptionDates, market.OptionDate(i))
		axes.OptionTimes = append(axes.OptionTimes, market.OptionTime(i))
	}
	for _, j := range cols {
		axes.SwapTenors = append(axes.SwapTenors, market.SwapTenor(j))
		axes.SwapLengths = append(axes.SwapLengths, market.SwapLength(j))
	}

	type corner struct {
		atm   ATMPoint
		smile *sabr.SmileSection
	}
	corners := make([][]corner, len(rows))
	for a, i := range rows {
		corners[a] = make([]corner, len(cols))
		for b, j := range cols {
			av, err := atmGrid.Point(i, j)
			if err != nil {
				return nil, err
			}
			pv, err := sparse.Point(i, j)
			if err != nil {
				return nil, err
			}
			pt := atmPointFromLayers(av)
			p := sabr.ParametersFromSlice(pv[:sabr.PrimaryLayers])
			corners[a][b] = corner{
				atm:   pt,
				smile: sabr.NewSmileSection(p, pt.Forward, market.OptionTime(i), pt.Shift, c.opts.CutoffStrike),
			}
		}
	}

	out := make([]float64, len(c.spreads))
	for k, s := range c.spreads {
		strike := target.Forward + s
		moneyness := (target.Forward + target.Shift) / (strike + target.Shift)
		g, err := knotgrid.New(axes, 1, 0)
		if err != nil {
			return nil, err
		}
		for a := range rows {
			for b := range cols {
				cn := corners[a][b]
				local := (cn.atm.Forward+cn.atm.Shift)/moneyness - cn.atm.Shift
				if err := g.SetValue(0, a, b, cn.smile.Volatility(local)-cn.atm.Vol); err != nil {
					return nil, err
				}
			}
		}
		spread, err := g.Values(t, length)
		if err != nil {
			return nil, err
		}
		out[k] = target.Vol + spread[0]
	}
	return out, nil
}

// bracket returns the indices of xs enclosing x: the matching index when x
// is a knot, the boundary pair when x is outside, otherwise the two
// neighbours.
func bracket(xs []float64, x float64) []int {
	n := len(xs)
	if n == 1 {
		return []int{0}
	}
	i := sort.SearchFloat64s(xs, x)
	switch {
	case i < n && xs[i] == x:
		return []int{i}
	case i == 0:
		return []int{0, 1}
	case i == n:
		return []int{n - 2, n - 1}
	default:
		return []int{i - 1, i}
	}
}
