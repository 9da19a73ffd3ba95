package index_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/volcube/curve"
	"github.com/meenmo/volcube/index"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
)

func eurConvention(h *curve.Handle, t tenor.Period) index.SwapConvention {
	return index.EuriborSwapIsdaFixA(h, nil, t)
}

func TestBootstrapCurveReprices(t *testing.T) {
	t.Parallel()

	settlement := utils.Date(2025, time.January, 6)
	quotes := []index.ParQuote{
		{Tenor: tenor.MustParse("10Y"), Rate: 0.029},
		{Tenor: tenor.MustParse("1Y"), Rate: 0.025},
		{Tenor: tenor.MustParse("2Y"), Rate: 0.026},
		{Tenor: tenor.MustParse("5Y"), Rate: 0.0275},
	}
	c, err := index.BootstrapCurve(settlement, eurConvention, quotes, market.Act365F)
	require.NoError(t, err)
	assert.Len(t, c.Pillars(), 5)

	h := curve.NewHandle(c)
	for _, q := range quotes {
		ix, err := index.NewSwapIndex(eurConvention(h, q.Tenor), q.Tenor)
		require.NoError(t, err)
		r, err := ix.Fixing(settlement)
		require.NoError(t, err)
		assert.InDelta(t, q.Rate, r, 1e-10, q.Tenor.String())
		ix.Close()
	}

	prev := 1.0
	for _, p := range c.Pillars() {
		df := c.DF(p)
		assert.LessOrEqual(t, df, prev)
		prev = df
	}
}

func TestBootstrapCurveErrors(t *testing.T) {
	t.Parallel()

	settlement := utils.Date(2025, time.January, 6)
	_, err := index.BootstrapCurve(settlement, eurConvention, nil, market.Act365F)
	assert.ErrorIs(t, err, index.ErrBootstrap)

	dup := []index.ParQuote{
		{Tenor: tenor.MustParse("12M"), Rate: 0.02},
		{Tenor: tenor.MustParse("1Y"), Rate: 0.02},
	}
	_, err = index.BootstrapCurve(settlement, eurConvention, dup, market.Act365F)
	assert.ErrorIs(t, err, index.ErrBootstrap)
}
