// Package cube builds a SABR swaption volatility cube from an ATM surface
// and strike-spread quotes. The cube calibrates the quoted grid and, in
// ATM-calibrated mode, expands it onto the ATM surface grid and calibrates
// again.
package cube

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/index"
	"github.com/meenmo/volcube/knotgrid"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/sabr"
	"github.com/meenmo/volcube/settings"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/volatility"
)

// ExpansionPolicy decides what happens to ATM grid knots outside the quoted
// grid during expansion.
type ExpansionPolicy int

const (
	// ExpandExtrapolate synthesizes them from the nearest quoted knots.
	ExpandExtrapolate ExpansionPolicy = iota
	// ExpandSkipOutside leaves them out of the dense grid.
	ExpandSkipOutside
)

// Config is the construction input of a SabrCube.
type Config struct {
	// ATMSurface must be shifted lognormal. In ATM-calibrated mode its native
	// grid is merged into the dense cube when it is a volatility.GridSurface.
	ATMSurface volatility.Surface
	// ReferenceDate fixes the cube origin; zero follows the evaluation date.
	ReferenceDate time.Time

	OptionTenors  []tenor.Period
	SwapTenors    []tenor.Period
	StrikeSpreads []float64
	// SpreadQuotes has one row per (option, swap) pair, option-major, each
	// holding one quote per strike spread.
	SpreadQuotes [][]quote.Quote

	LongIndex  *index.SwapIndex
	ShortIndex *index.SwapIndex

	// Guesses holds initial parameters per (option, swap) pair, option-major.
	// Nil uses Calibration.Guess everywhere.
	Guesses []sabr.Parameters
	// Calibration carries fixed flags, tolerances and optimizer settings.
	// Its Guess is the default for knots without one.
	Calibration sabr.Options

	ATMCalibrated bool
	// BackwardFlat interpolates the model parameters backward flat in swap
	// length.
	BackwardFlat bool
	Expansion    ExpansionPolicy
	// Extrapolate allows queries past the last option and swap tenors.
	Extrapolate bool
}

// state is the output of one recompute.
type state struct {
	market *knotgrid.Grid
	atm    *knotgrid.Grid
	guess  *knotgrid.Grid
	sparse *knotgrid.Grid

	atmCube  *knotgrid.Grid
	atmDense *knotgrid.Grid
	dense    *knotgrid.Grid
}

// SabrCube is a calibrated SABR swaption volatility cube. Market inputs are
// observed; any change marks the cube stale and the next query recomputes
// it. A SabrCube is not safe for concurrent use.
type SabrCube struct {
	notifier quote.Notifier
	timeline *volatility.Timeline
	atm      *ATMAdapter

	spreads []float64
	quotes  [][]quote.Quote
	guesses [][]sabr.Parameters
	opts    sabr.Options

	atmCalibrated bool
	backwardFlat  bool
	expansion     ExpansionPolicy

	subs []*quote.Subscription

	dirty      bool
	computing  bool
	recomputes int
	st         *state
}

// New validates cfg and subscribes to every market input. Calibration is
// deferred to the first query.
func New(cfg Config) (*SabrCube, error) {
	if cfg.ATMSurface == nil {
		return nil, fmt.Errorf("%w: no ATM surface", ErrInvalidInput)
	}
	atm, err := NewATMAdapter(cfg.ATMSurface, cfg.LongIndex, cfg.ShortIndex)
	if err != nil {
		return nil, err
	}
	nOpt, nSwap := len(cfg.OptionTenors), len(cfg.SwapTenors)
	if nOpt == 0 || nSwap == 0 {
		return nil, fmt.Errorf("%w: %d option tenors, %d swap tenors", ErrInvalidInput, nOpt, nSwap)
	}
	if err := validateSpreadTable(nOpt, nSwap, cfg.StrikeSpreads, cfg.SpreadQuotes); err != nil {
		return nil, err
	}
	opts := cfg.Calibration.WithDefaults(sabr.DefaultOptions())
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if len(cfg.StrikeSpreads) < opts.MinStrikes() {
		return nil, fmt.Errorf("%w: %d strike spreads, model needs %d", ErrInvalidInput, len(cfg.StrikeSpreads), opts.MinStrikes())
	}
	if cfg.Guesses != nil && len(cfg.Guesses) != nOpt*nSwap {
		return nil, fmt.Errorf("%w: %d guesses for %d knots", ErrInvalidInput, len(cfg.Guesses), nOpt*nSwap)
	}

	tl, err := volatility.NewTimeline(volatility.TimelineConfig{
		ReferenceDate:         cfg.ReferenceDate,
		Calendar:              cfg.ATMSurface.Calendar(),
		BusinessDayConvention: cfg.ATMSurface.BusinessDayConvention(),
		DayCount:              cfg.ATMSurface.DayCount(),
		OptionTenors:          cfg.OptionTenors,
		SwapTenors:            cfg.SwapTenors,
		Extrapolate:           cfg.Extrapolate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	guesses := make([][]sabr.Parameters, nOpt)
	for i := range guesses {
		guesses[i] = make([]sabr.Parameters, nSwap)
		for j := range guesses[i] {
			g := opts.Guess
			if cfg.Guesses != nil {
				g = cfg.Guesses[i*nSwap+j]
			}
			guesses[i][j] = g
		}
	}

	c := &SabrCube{
		timeline:      tl,
		atm:           atm,
		spreads:       append([]float64(nil), cfg.StrikeSpreads...),
		quotes:        cfg.SpreadQuotes,
		guesses:       guesses,
		opts:          opts,
		atmCalibrated: cfg.ATMCalibrated,
		backwardFlat:  cfg.BackwardFlat,
		expansion:     cfg.Expansion,
		dirty:         true,
	}
	c.subs = append(c.subs,
		tl.Subscribe(c.markDirty),
		settings.SubscribeEvaluationDate(c.markDirty),
		cfg.ATMSurface.Subscribe(c.markDirty),
		cfg.LongIndex.Subscribe(c.markDirty),
		cfg.ShortIndex.Subscribe(c.markDirty),
	)
	for _, row := range cfg.SpreadQuotes {
		for _, q := range row {
			c.subs = append(c.subs, q.Subscribe(c.markDirty))
		}
	}
	return c, nil
}

// Close drops every subscription.
func (c *SabrCube) Close() {
	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
	c.timeline.Close()
}

// markDirty flags the cube stale and notifies observers once per stale
// period.
func (c *SabrCube) markDirty() {
	if c.dirty {
		return
	}
	c.dirty = true
	c.notifier.Notify()
}

// Subscribe registers fn for cube changes.
func (c *SabrCube) Subscribe(fn func()) *quote.Subscription {
	return c.notifier.Subscribe(fn)
}

// Update forces a recompute on the next query.
func (c *SabrCube) Update() { c.markDirty() }

// calculate recomputes the cube if stale. A failed recompute keeps the
// previous state and leaves the cube stale.
func (c *SabrCube) calculate() error {
	if !c.dirty {
		return nil
	}
	if c.computing {
		return ErrReentrantRecompute
	}
	c.computing = true
	defer func() { c.computing = false }()

	c.recomputes++
	recomputeTotal.Inc()
	st, err := c.compute()
	if err != nil {
		recomputeFailures.Inc()
		opsf("recompute %d failed: %v", c.recomputes, err)
		return err
	}
	c.st = st
	c.dirty = false
	return nil
}

// Calculate runs a pending recompute.
func (c *SabrCube) Calculate() error { return c.calculate() }

func (c *SabrCube) axes() knotgrid.Axes {
	return knotgrid.Axes{
		OptionDates: c.timeline.OptionDates(),
		OptionTimes: c.timeline.OptionTimes(),
		SwapTenors:  c.timeline.SwapTenors(),
		SwapLengths: c.timeline.SwapLengths(),
	}
}

func (c *SabrCube) compute() (*state, error) {
	start := time.Now()
	if err := c.timeline.Refresh(); err != nil {
		return nil, err
	}
	axes := c.axes()
	market, atmGrid, err := buildMarketCube(axes, c.atm, c.spreads, c.quotes)
	if err != nil {
		return nil, err
	}
	guess, err := c.guessGrid(axes)
	if err != nil {
		return nil, err
	}
	sparse, err := c.calibrateGrid("sparse", market, atmGrid, guess, nil, nil)
	if err != nil {
		return nil, err
	}
	st := &state{market: market, atm: atmGrid, guess: guess, sparse: sparse}
	if c.atmCalibrated {
		if err := c.densify(st); err != nil {
			return nil, err
		}
	}
	r, cols := market.Dims()
	diagf("recompute %d: %dx%d market knots, %d strikes, dense=%v in %s",
		c.recomputes, r, cols, len(c.spreads), c.atmCalibrated, time.Since(start))
	return st, nil
}

// densify runs the expansion and the dense calibration on st.
func (c *SabrCube) densify(st *state) error {
	atmCube, atmDense, err := c.expand(st.market, st.atm, st.sparse)
	if err != nil {
		return err
	}
	dense, err := c.calibrateGrid("dense", atmCube, atmDense, st.guess, nil, nil)
	if err != nil {
		return err
	}
	st.atmCube, st.atmDense, st.dense = atmCube, atmDense, dense
	return nil
}

func (c *SabrCube) guessGrid(axes knotgrid.Axes) (*knotgrid.Grid, error) {
	bf := 0
	if c.backwardFlat {
		bf = sabr.PrimaryLayers
	}
	g, err := knotgrid.New(axes, sabr.PrimaryLayers, bf)
	if err != nil {
		return nil, err
	}
	for i, row := range c.guesses {
		for j, p := range row {
			if err := g.SetPoint(i, j, p.Slice()); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// parameters returns the grid that queries read.
func (c *SabrCube) parameters() *knotgrid.Grid {
	if c.atmCalibrated {
		return c.st.dense
	}
	return c.st.sparse
}

func (c *SabrCube) ReferenceDate() time.Time      { return c.timeline.ReferenceDate() }
func (c *SabrCube) Calendar() calendar.CalendarID { return c.timeline.Calendar() }
func (c *SabrCube) BusinessDayConvention() calendar.BusinessDayConvention {
	return c.timeline.BusinessDayConvention()
}
func (c *SabrCube) DayCount() market.DayCount           { return c.timeline.DayCount() }
func (c *SabrCube) VolatilityType() volatility.Type     { return volatility.ShiftedLognormal }
func (c *SabrCube) MaxSwapTenor() tenor.Period          { return c.timeline.MaxSwapTenor() }
func (c *SabrCube) AllowsExtrapolation() bool           { return c.timeline.AllowsExtrapolation() }
func (c *SabrCube) OptionTenors() []tenor.Period        { return c.timeline.OptionTenors() }
func (c *SabrCube) OptionDates() []time.Time            { return c.timeline.OptionDates() }
func (c *SabrCube) SwapTenors() []tenor.Period          { return c.timeline.SwapTenors() }
func (c *SabrCube) StrikeSpreads() []float64            { return append([]float64(nil), c.spreads...) }
func (c *SabrCube) Timeline() *volatility.Timeline      { return c.timeline }
func (c *SabrCube) ATMAdapter() *ATMAdapter             { return c.atm }
func (c *SabrCube) CalibrationOptions() sabr.Options    { return c.opts }
func (c *SabrCube) OptionDateFromTenor(p tenor.Period) time.Time {
	return c.timeline.OptionDateFromTenor(p)
}

func (c *SabrCube) check(t, length float64, extrapolate bool) error {
	if err := c.timeline.CheckRange(t, extrapolate); err != nil {
		return err
	}
	return c.timeline.CheckSwapTenor(length, extrapolate)
}

// SmileSection returns the SABR smile at (t, length) from interpolated
// parameters and forward. The shift is the ATM surface shift.
func (c *SabrCube) SmileSection(t, length float64, extrapolate bool) (volatility.SmileSection, error) {
	return c.sabrSmile(t, length, extrapolate)
}

func (c *SabrCube) sabrSmile(t, length float64, extrapolate bool) (*sabr.SmileSection, error) {
	if err := c.check(t, length, extrapolate); err != nil {
		return nil, err
	}
	if err := c.calculate(); err != nil {
		return nil, err
	}
	v, err := c.parameters().Values(t, length)
	if err != nil {
		return nil, err
	}
	shift, err := c.atm.Surface().Shift(t, length, true)
	if err != nil {
		return nil, err
	}
	p := sabr.ParametersFromSlice(v[:sabr.PrimaryLayers])
	return sabr.NewSmileSection(p, v[sabr.LayerForward], t, shift, c.opts.CutoffStrike), nil
}

// Volatility is the smile volatility at strike.
func (c *SabrCube) Volatility(t, length, strike float64, extrapolate bool) (float64, error) {
	s, err := c.sabrSmile(t, length, extrapolate)
	if err != nil {
		return 0, err
	}
	return s.Volatility(strike), nil
}

// Shift is the ATM surface shift at (t, length).
func (c *SabrCube) Shift(t, length float64, extrapolate bool) (float64, error) {
	if err := c.check(t, length, extrapolate); err != nil {
		return 0, err
	}
	return c.atm.Surface().Shift(t, length, true)
}

// BlackVariance is vol^2 * t at strike.
func (c *SabrCube) BlackVariance(t, length, strike float64, extrapolate bool) (float64, error) {
	return volatility.BlackVariance(c, t, length, strike, extrapolate)
}

func (c *SabrCube) tenorCoordinates(optionTenor, swapTenor tenor.Period) (float64, float64, error) {
	l, err := volatility.SwapLength(swapTenor)
	if err != nil {
		return 0, 0, err
	}
	return c.timeline.TimeFromReference(c.timeline.OptionDateFromTenor(optionTenor)), l, nil
}

// VolatilityForTenors queries by option tenor and swap tenor.
func (c *SabrCube) VolatilityForTenors(optionTenor, swapTenor tenor.Period, strike float64, extrapolate bool) (float64, error) {
	t, l, err := c.tenorCoordinates(optionTenor, swapTenor)
	if err != nil {
		return 0, err
	}
	return c.Volatility(t, l, strike, extrapolate)
}

// SmileSectionForTenors queries by option tenor and swap tenor.
func (c *SabrCube) SmileSectionForTenors(optionTenor, swapTenor tenor.Period, extrapolate bool) (volatility.SmileSection, error) {
	t, l, err := c.tenorCoordinates(optionTenor, swapTenor)
	if err != nil {
		return nil, err
	}
	return c.SmileSection(t, l, extrapolate)
}

// ATMForward is the ATM forward swap rate for option tenor and swap tenor.
func (c *SabrCube) ATMForward(optionTenor, swapTenor tenor.Period) (float64, error) {
	return c.atm.Forward(c.timeline.OptionDateFromTenor(optionTenor), swapTenor)
}

// MarketVolCube dumps the market volatilities, one row per knot: option
// time, swap length, then one column per strike spread.
func (c *SabrCube) MarketVolCube() (*mat.Dense, error) {
	if err := c.calculate(); err != nil {
		return nil, err
	}
	return c.st.market.Flatten(), nil
}

// SparseParameters dumps the sparse fit results, one row per knot: option
// time, swap length, then alpha, beta, nu, rho, forward, rms error, max
// error and end criteria.
func (c *SabrCube) SparseParameters() (*mat.Dense, error) {
	if err := c.calculate(); err != nil {
		return nil, err
	}
	return c.st.sparse.Flatten(), nil
}

// ATMCalibratedCube dumps the expanded volatilities in the MarketVolCube
// layout.
func (c *SabrCube) ATMCalibratedCube() (*mat.Dense, error) {
	if !c.atmCalibrated {
		return nil, ErrNotATMCalibrated
	}
	if err := c.calculate(); err != nil {
		return nil, err
	}
	return c.st.atmCube.Flatten(), nil
}

// DenseParameters dumps the dense fit results in the SparseParameters
// layout.
func (c *SabrCube) DenseParameters() (*mat.Dense, error) {
	if !c.atmCalibrated {
		return nil, ErrNotATMCalibrated
	}
	if err := c.calculate(); err != nil {
		return nil, err
	}
	return c.st.dense.Flatten(), nil
}

// SparseResult is the sparse fit result at a quoted knot.
func (c *SabrCube) SparseResult(optionTenor, swapTenor tenor.Period) (sabr.FitResult, error) {
	if err := c.calculate(); err != nil {
		return sabr.FitResult{}, err
	}
	i, ok := indexOfTenor(c.timeline.OptionTenors(), optionTenor)
	j, ok2 := indexOfTenor(c.timeline.SwapTenors(), swapTenor)
	if !ok || !ok2 {
		return sabr.FitResult{}, fmt.Errorf("%w: %s x %s is not a quoted knot", ErrInvalidInput, optionTenor, swapTenor)
	}
	v, err := c.st.sparse.Point(i, j)
	if err != nil {
		return sabr.FitResult{}, err
	}
	return sabr.ResultFromLayers(v), nil
}

func indexOfTenor(ps []tenor.Period, p tenor.Period) (int, bool) {
	for i, q := range ps {
		if q.Equal(p) {
			return i, true
		}
	}
	return -1, false
}

var _ volatility.Surface = (*SabrCube)(nil)
