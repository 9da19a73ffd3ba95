package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/curve"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
)

// ErrBootstrap is returned when a pillar discount factor cannot be solved.
var ErrBootstrap = errors.New("index: curve bootstrap failed")

// ParQuote is a spot-starting par swap rate (decimal) for one tenor.
type ParQuote struct {
	Tenor tenor.Period
	Rate  float64
}

// ConventionFunc returns the swap convention of a family for a tenor, with
// the given handle as forwarding curve.
type ConventionFunc func(forwarding *curve.Handle, t tenor.Period) SwapConvention

const (
	bootstrapTolerance = 1e-12
	bootstrapMaxIter   = 50
	bootstrapBump      = 1e-7
)

// BootstrapCurve builds a single curve on which every par quote reprices
// through its swap index. Pillars sit at the swap end dates; each pillar DF
// is solved by Newton iteration with the earlier pillars held, log-linear
// in between.
func BootstrapCurve(settlement time.Time, conv ConventionFunc, quotes []ParQuote, dc market.DayCount) (*curve.Curve, error) {
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: no par quotes", ErrBootstrap)
	}
	qs := append([]ParQuote(nil), quotes...)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Tenor.Less(qs[j].Tenor) })

	h := curve.NewHandle(nil)
	dfs := make(map[time.Time]float64, len(qs))
	var c *curve.Curve
	prev, prevDF := settlement, 1.0

	for _, q := range qs {
		ix, err := NewSwapIndex(conv(h, q.Tenor), q.Tenor)
		if err != nil {
			return nil, err
		}
		fixingDate := calendar.AdjustFollowing(ix.Convention().Calendar, settlement)
		pillar, err := ix.MaturityDate(fixingDate)
		if err != nil {
			ix.Close()
			return nil, err
		}
		if !pillar.After(prev) {
			ix.Close()
			return nil, fmt.Errorf("%w: %s pillar %s does not follow %s", ErrBootstrap, q.Tenor, utils.FormatDate(pillar), utils.FormatDate(prev))
		}

		parRate := func(x float64) (float64, error) {
			dfs[pillar] = x
			var err error
			if c, err = curve.NewCurveFromDFs(settlement, dfs, dc); err != nil {
				return 0, err
			}
			h.LinkTo(c)
			return ix.Fixing(fixingDate)
		}

		x := prevDF
		solved := false
		for iter := 0; iter < bootstrapMaxIter; iter++ {
			r, err := parRate(x)
			if err != nil {
				ix.Close()
				return nil, err
			}
			f := r - q.Rate
			if math.Abs(f) < bootstrapTolerance {
				solved = true
				break
			}
			rb, err := parRate(x + bootstrapBump)
			if err != nil {
				ix.Close()
				return nil, err
			}
			fPrime := (rb - r) / bootstrapBump
			if math.Abs(fPrime) < 1e-15 {
				break
			}
			x -= f / fPrime
			if !(x > 0) {
				x = prevDF / 2
			}
		}
		ix.Close()
		if !solved {
			return nil, fmt.Errorf("%w: %s at %.6f did not converge", ErrBootstrap, q.Tenor, q.Rate)
		}
		prev, prevDF = pillar, x
	}
	return c, nil
}
