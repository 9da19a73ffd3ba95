package volatility

import (
	"fmt"

	"github.com/meenmo/volcube/knotgrid"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/utils"
)

// MatrixConfig describes an ATM volatility matrix quoted on option x swap
// tenors.
type MatrixConfig struct {
	TimelineConfig
	// Vols holds one quote per option tenor (rows) and swap tenor (columns).
	Vols [][]quote.Quote
	// Shifts has the same shape as Vols; nil means zero shifts.
	Shifts [][]float64
	Type   Type
}

// MatrixSurface interpolates a matrix of volatility quotes bilinearly in
// option time and swap length, flat outside the quoted grid.
type MatrixSurface struct {
	*Timeline

	notifier quote.Notifier
	vols     [][]quote.Quote
	shifts   [][]float64
	typ      Type
	subs     []*quote.Subscription

	grid  *knotgrid.Grid
	dirty bool
}

const (
	matrixVolLayer = iota
	matrixShiftLayer
	matrixLayers
)

// NewMatrixSurface validates the quote shape and subscribes to every quote.
func NewMatrixSurface(cfg MatrixConfig) (*MatrixSurface, error) {
	tl, err := NewTimeline(cfg.TimelineConfig)
	if err != nil {
		return nil, err
	}
	rows, cols := len(cfg.OptionTenors), len(cfg.SwapTenors)
	if err := checkShape(rows, cols, len(cfg.Vols), func(i int) int { return len(cfg.Vols[i]) }); err != nil {
		tl.Close()
		return nil, fmt.Errorf("vols: %w", err)
	}
	if cfg.Shifts != nil {
		if err := checkShape(rows, cols, len(cfg.Shifts), func(i int) int { return len(cfg.Shifts[i]) }); err != nil {
			tl.Close()
			return nil, fmt.Errorf("shifts: %w", err)
		}
	}
	s := &MatrixSurface{
		Timeline: tl,
		vols:     cfg.Vols,
		shifts:   cfg.Shifts,
		typ:      cfg.Type,
		dirty:    true,
	}
	s.subs = append(s.subs, tl.Subscribe(s.update))
	for _, row := range cfg.Vols {
		for _, q := range row {
			if q == nil {
				s.Close()
				return nil, fmt.Errorf("%w: nil vol quote", ErrShape)
			}
			s.subs = append(s.subs, q.Subscribe(s.update))
		}
	}
	return s, nil
}

func checkShape(rows, cols, n int, rowLen func(int) int) error {
	if n != rows {
		return fmt.Errorf("%w: %d rows for %d option tenors", ErrShape, n, rows)
	}
	for i := 0; i < n; i++ {
		if rowLen(i) != cols {
			return fmt.Errorf("%w: row %d has %d entries for %d swap tenors", ErrShape, i, rowLen(i), cols)
		}
	}
	return nil
}

func (s *MatrixSurface) update() {
	s.dirty = true
	s.notifier.Notify()
}

// Subscribe registers fn for quote and reference date changes.
func (s *MatrixSurface) Subscribe(fn func()) *quote.Subscription {
	return s.notifier.Subscribe(fn)
}

// Close drops all subscriptions, including the timeline's.
func (s *MatrixSurface) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
	s.Timeline.Close()
}

func (s *MatrixSurface) VolatilityType() Type { return s.typ }

func (s *MatrixSurface) calculate() error {
	if !s.dirty {
		return nil
	}
	if err := s.Timeline.Refresh(); err != nil {
		return err
	}
	axes := knotgrid.Axes{
		OptionDates: s.Timeline.OptionDates(),
		OptionTimes: s.Timeline.OptionTimes(),
		SwapTenors:  s.Timeline.SwapTenors(),
		SwapLengths: s.Timeline.SwapLengths(),
	}
	g, err := knotgrid.New(axes, matrixLayers, 0)
	if err != nil {
		return err
	}
	for i, row := range s.vols {
		for j, q := range row {
			v, err := quote.ValueOf(q)
			if err != nil {
				return fmt.Errorf("vol %s x %s: %w", utils.FormatDate(axes.OptionDates[i]), axes.SwapTenors[j], err)
			}
			shift := 0.0
			if s.shifts != nil {
				shift = s.shifts[i][j]
			}
			if err := g.SetPoint(i, j, []float64{v, shift}); err != nil {
				return err
			}
		}
	}
	if err := g.RebuildInterpolators(); err != nil {
		return err
	}
	s.grid = g
	s.dirty = false
	return nil
}

func (s *MatrixSurface) values(t, length float64, extrapolate bool) ([]float64, error) {
	if err := s.CheckRange(t, extrapolate); err != nil {
		return nil, err
	}
	if err := s.CheckSwapTenor(length, extrapolate); err != nil {
		return nil, err
	}
	if err := s.calculate(); err != nil {
		return nil, err
	}
	return s.grid.Values(t, length)
}

func (s *MatrixSurface) Volatility(t, length, _ float64, extrapolate bool) (float64, error) {
	v, err := s.values(t, length, extrapolate)
	if err != nil {
		return 0, err
	}
	return v[matrixVolLayer], nil
}

func (s *MatrixSurface) Shift(t, length float64, extrapolate bool) (float64, error) {
	v, err := s.values(t, length, extrapolate)
	if err != nil {
		return 0, err
	}
	return v[matrixShiftLayer], nil
}

func (s *MatrixSurface) SmileSection(t, length float64, extrapolate bool) (SmileSection, error) {
	v, err := s.values(t, length, extrapolate)
	if err != nil {
		return nil, err
	}
	return NewFlatSmileSection(v[matrixVolLayer], t, v[matrixShiftLayer], nan), nil
}

var _ GridSurface = (*MatrixSurface)(nil)
