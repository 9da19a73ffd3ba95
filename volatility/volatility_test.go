package volatility_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/settings"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
	"github.com/meenmo/volcube/volatility"
)

var refDate = utils.Date(2025, time.January, 6)

func timelineConfig() volatility.TimelineConfig {
	return volatility.TimelineConfig{
		ReferenceDate:         refDate,
		Calendar:              calendar.TARGET,
		BusinessDayConvention: calendar.ModifiedFollowing,
		DayCount:              market.Act365F,
		OptionTenors:          []tenor.Period{tenor.MustParse("1Y"), tenor.MustParse("5Y")},
		SwapTenors:            []tenor.Period{tenor.MustParse("2Y"), tenor.MustParse("10Y")},
	}
}

func TestSwapLength(t *testing.T) {
	for in, want := range map[string]float64{"18M": 1.5, "2Y": 2, "12M": 1} {
		got, err := volatility.SwapLength(tenor.MustParse(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"1W", "10D", "0Y"} {
		_, err := volatility.SwapLength(tenor.MustParse(in))
		assert.True(t, errors.Is(err, volatility.ErrInvalidTenor), in)
	}
}

func TestTimeline(t *testing.T) {
	tl, err := volatility.NewTimeline(timelineConfig())
	require.NoError(t, err)
	defer tl.Close()

	dates := tl.OptionDates()
	assert.Equal(t, utils.Date(2026, time.January, 6), dates[0])
	assert.Equal(t, utils.Date(2030, time.January, 7), dates[1], "Sunday rolls to Monday")

	times := tl.OptionTimes()
	assert.InDelta(t, 1.0, times[0], 1e-12)
	assert.InDelta(t, 1827.0/365.0, times[1], 1e-12)
	assert.Equal(t, []float64{2, 10}, tl.SwapLengths())
	assert.Equal(t, "10Y", tl.MaxSwapTenor().String())

	assert.InDelta(t, 1.0, tl.OptionTimeFromDate(dates[0]), 1e-12)
	assert.Equal(t, dates[0], tl.OptionDateFromTime(1.0))
	assert.Equal(t, dates[1], tl.OptionDateFromTime(times[1]))
	// Linear extrapolation past the last date.
	later := dates[1].AddDate(0, 0, 365)
	assert.InDelta(t, times[1]+1.0, tl.OptionTimeFromDate(later), 1e-9)
}

func TestTimelineRangeChecks(t *testing.T) {
	tl, err := volatility.NewTimeline(timelineConfig())
	require.NoError(t, err)
	defer tl.Close()

	assert.NoError(t, tl.CheckRange(3, false))
	assert.True(t, errors.Is(tl.CheckRange(-0.1, true), volatility.ErrOutOfRange))
	assert.True(t, errors.Is(tl.CheckRange(6, false), volatility.ErrOutOfRange))
	assert.NoError(t, tl.CheckRange(6, true))

	assert.NoError(t, tl.CheckSwapTenor(10, false))
	assert.True(t, errors.Is(tl.CheckSwapTenor(0, true), volatility.ErrOutOfRange))
	assert.True(t, errors.Is(tl.CheckSwapTenor(30, false), volatility.ErrOutOfRange))

	tl.EnableExtrapolation(true)
	assert.NoError(t, tl.CheckSwapTenor(30, false))
	assert.NoError(t, tl.CheckRange(60, false))
}

func TestTimelineValidation(t *testing.T) {
	cfg := timelineConfig()
	cfg.OptionTenors = []tenor.Period{tenor.MustParse("5Y"), tenor.MustParse("1Y")}
	_, err := volatility.NewTimeline(cfg)
	assert.True(t, errors.Is(err, volatility.ErrInvalidTenor))

	cfg = timelineConfig()
	cfg.SwapTenors = []tenor.Period{tenor.MustParse("1W")}
	_, err = volatility.NewTimeline(cfg)
	assert.True(t, errors.Is(err, volatility.ErrInvalidTenor))

	cfg = timelineConfig()
	cfg.SwapTenors = nil
	_, err = volatility.NewTimeline(cfg)
	assert.True(t, errors.Is(err, volatility.ErrInvalidTenor))
}

func TestTimelineFollowsEvaluationDate(t *testing.T) {
	settings.SetEvaluationDate(refDate)
	defer settings.SetEvaluationDate(time.Time{})

	cfg := timelineConfig()
	cfg.ReferenceDate = time.Time{}
	tl, err := volatility.NewTimeline(cfg)
	require.NoError(t, err)
	defer tl.Close()

	notified := 0
	tl.Subscribe(func() { notified++ })
	assert.Equal(t, utils.Date(2026, time.January, 6), tl.OptionDates()[0])

	settings.SetEvaluationDate(utils.Date(2025, time.February, 3))
	assert.Equal(t, 1, notified)
	assert.Equal(t, utils.Date(2025, time.February, 3), tl.ReferenceDate())
	assert.Equal(t, utils.Date(2026, time.February, 3), tl.OptionDates()[0])
}

// yearEndConfig has option tenors that collide when the reference date
// moves into the TARGET Christmas closure.
func yearEndConfig() volatility.TimelineConfig {
	cfg := timelineConfig()
	cfg.ReferenceDate = time.Time{}
	cfg.OptionTenors = []tenor.Period{tenor.MustParse("4D"), tenor.MustParse("1W"), tenor.MustParse("1Y")}
	return cfg
}

func TestTimelineRebuildFailureIsReported(t *testing.T) {
	settings.SetEvaluationDate(utils.Date(2025, time.December, 1))
	defer settings.SetEvaluationDate(time.Time{})

	tl, err := volatility.NewTimeline(yearEndConfig())
	require.NoError(t, err)
	defer tl.Close()
	require.NoError(t, tl.Refresh())
	good := tl.OptionDates()
	assert.Equal(t, utils.Date(2025, time.December, 5), good[0])
	assert.Equal(t, utils.Date(2025, time.December, 8), good[1])

	// 4D rolls to Dec 30 and 1W to Dec 29.
	settings.SetEvaluationDate(utils.Date(2025, time.December, 22))
	err = tl.Refresh()
	assert.True(t, errors.Is(err, volatility.ErrInvalidTenor), "got %v", err)
	assert.True(t, errors.Is(tl.CheckRange(0.1, false), volatility.ErrInvalidTenor))
	assert.Equal(t, good, tl.OptionDates(), "last good axes are kept")
	assert.True(t, errors.Is(tl.Refresh(), volatility.ErrInvalidTenor), "error persists")

	settings.SetEvaluationDate(utils.Date(2025, time.December, 1))
	require.NoError(t, tl.Refresh())
	assert.NoError(t, tl.CheckRange(0.1, false))
}

func TestMatrixSurfaceFailsOnTimelineError(t *testing.T) {
	settings.SetEvaluationDate(utils.Date(2025, time.December, 1))
	defer settings.SetEvaluationDate(time.Time{})

	vols := make([][]quote.Quote, 3)
	for i := range vols {
		vols[i] = []quote.Quote{quote.NewSimpleQuote(0.2 + 0.01*float64(i)), quote.NewSimpleQuote(0.25)}
	}
	s, err := volatility.NewMatrixSurface(volatility.MatrixConfig{
		TimelineConfig: yearEndConfig(),
		Vols:           vols,
		Type:           volatility.ShiftedLognormal,
	})
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Volatility(0.5, 2, 0, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.21, v, 0.01)

	settings.SetEvaluationDate(utils.Date(2025, time.December, 22))
	_, err = s.Volatility(0.5, 2, 0, false)
	assert.True(t, errors.Is(err, volatility.ErrInvalidTenor), "got %v", err)
	_, err = s.Shift(0.5, 2, true)
	assert.True(t, errors.Is(err, volatility.ErrInvalidTenor), "got %v", err)

	settings.SetEvaluationDate(utils.Date(2025, time.December, 1))
	v, err = s.Volatility(0.5, 2, 0, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.21, v, 0.01)
}

func newMatrix(t *testing.T) (*volatility.MatrixSurface, [][]*quote.SimpleQuote) {
	t.Helper()
	raw := [][]*quote.SimpleQuote{
		{quote.NewSimpleQuote(0.20), quote.NewSimpleQuote(0.30)},
		{quote.NewSimpleQuote(0.40), quote.NewSimpleQuote(0.50)},
	}
	vols := make([][]quote.Quote, len(raw))
	for i, row := range raw {
		for _, q := range row {
			vols[i] = append(vols[i], q)
		}
	}
	s, err := volatility.NewMatrixSurface(volatility.MatrixConfig{
		TimelineConfig: timelineConfig(),
		Vols:           vols,
		Shifts:         [][]float64{{0.01, 0.01}, {0.02, 0.02}},
		Type:           volatility.ShiftedLognormal,
	})
	require.NoError(t, err)
	return s, raw
}

func TestMatrixSurface(t *testing.T) {
	s, raw := newMatrix(t)
	defer s.Close()

	times := s.OptionTimes()
	v, err := s.Volatility(times[0], 2, 0.03, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, v, 1e-12)

	v, err = s.Volatility(times[1], 10, 0.03, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.50, v, 1e-12)

	v, err = s.Volatility(times[0], 6, 0.03, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v, 1e-12)

	sh, err := s.Shift(times[1], 5, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, sh, 1e-12)

	// Inside the timeline but before the first knot: flat.
	v, err = s.Volatility(0.5, 2, 0, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, v, 1e-12)

	_, err = s.Volatility(times[1]+1, 2, 0, false)
	assert.True(t, errors.Is(err, volatility.ErrOutOfRange))
	v, err = s.Volatility(times[1]+1, 20, 0, true)
	require.NoError(t, err)
	assert.InDelta(t, 0.50, v, 1e-12)

	notified := 0
	s.Subscribe(func() { notified++ })
	raw[0][0].SetValue(0.22)
	assert.Equal(t, 1, notified)
	v, err = s.Volatility(times[0], 2, 0, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.22, v, 1e-12)

	ss, err := s.SmileSection(times[0], 2, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.22, ss.Volatility(0.10), 1e-12)
	assert.InDelta(t, 0.01, ss.Shift(), 1e-12)
	assert.True(t, math.IsNaN(ss.ATMLevel()))

	assert.Equal(t, 2, len(s.OptionDates()))
	assert.NoError(t, volatility.RequireShiftedLognormal(s))
}

func TestMatrixSurfaceShape(t *testing.T) {
	_, err := volatility.NewMatrixSurface(volatility.MatrixConfig{
		TimelineConfig: timelineConfig(),
		Vols:           [][]quote.Quote{{quote.NewSimpleQuote(0.2), quote.NewSimpleQuote(0.2)}},
	})
	assert.True(t, errors.Is(err, volatility.ErrShape))
}

func TestMatrixSurfaceInvalidQuote(t *testing.T) {
	s, raw := newMatrix(t)
	defer s.Close()
	raw[1][1].Reset()
	_, err := s.Volatility(1, 2, 0, false)
	assert.True(t, errors.Is(err, quote.ErrInvalidQuote))
}

func TestConstantAndSpreadedSurface(t *testing.T) {
	vol := quote.NewSimpleQuote(0.2)
	base := volatility.NewConstantSurface(refDate, calendar.TARGET, calendar.ModifiedFollowing, market.Act365F, vol, volatility.Normal, 0)
	defer base.Close()

	assert.True(t, errors.Is(volatility.RequireShiftedLognormal(base), volatility.ErrNotShiftedLognormal))

	spread := quote.NewSimpleQuote(0.01)
	s := volatility.NewSpreadedSurface(base, spread)
	defer s.Close()

	notified := 0
	s.Subscribe(func() { notified++ })

	v, err := s.Volatility(2, 5, 0.03, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.21, v, 1e-12)

	vol.SetValue(0.25)
	spread.SetValue(0.02)
	assert.Equal(t, 2, notified)

	ss, err := s.SmileSection(2, 5, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.27, ss.Volatility(0.05), 1e-12)
	assert.InDelta(t, 0.27*0.27*2, ss.Variance(0.05), 1e-12)

	variance, err := volatility.BlackVariance(s, 2, 5, 0.03, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.27*0.27*2, variance, 1e-12)

	_, err = s.Volatility(-1, 5, 0, true)
	assert.True(t, errors.Is(err, volatility.ErrOutOfRange))
}

func TestByDateHelpers(t *testing.T) {
	s, _ := newMatrix(t)
	defer s.Close()

	d := volatility.OptionDateFromTenor(s, tenor.MustParse("1Y"))
	assert.Equal(t, utils.Date(2026, time.January, 6), d)
	assert.InDelta(t, 1.0, volatility.TimeFromReference(s, d), 1e-12)

	v, err := volatility.VolatilityByDate(s, d, tenor.MustParse("10Y"), 0.03, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.30, v, 1e-12)

	sh, err := volatility.ShiftByDate(s, d, tenor.MustParse("2Y"), false)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, sh, 1e-12)

	_, err = volatility.VolatilityByDate(s, d, tenor.MustParse("1W"), 0.03, false)
	assert.True(t, errors.Is(err, volatility.ErrInvalidTenor))
}
