// Package knotgrid stores N layers of values on a shared (option time, swap
// length) grid and interpolates each layer in two dimensions.
package knotgrid

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/meenmo/volcube/interpolation"
	"github.com/meenmo/volcube/tenor"
)

var (
	// ErrNotIncreasing is returned when an axis is not strictly increasing.
	ErrNotIncreasing = errors.New("knotgrid: axis not strictly increasing")
	// ErrShape is returned for empty axes, mismatched axis pairs, or
	// matrices and value vectors of the wrong size.
	ErrShape = errors.New("knotgrid: shape mismatch")
	// ErrIndex is returned for out-of-range layer, row or column indices.
	ErrIndex = errors.New("knotgrid: index out of range")
)

// Axes are the paired option and swap axes of a grid. OptionDates and
// OptionTimes run in parallel, as do SwapTenors and SwapLengths.
type Axes struct {
	OptionDates []time.Time
	OptionTimes []float64
	SwapTenors  []tenor.Period
	SwapLengths []float64
}

// Validate checks that every axis is non-empty, that paired axes have equal
// length and that times and lengths are strictly increasing.
func (a Axes) Validate() error {
	if len(a.OptionTimes) == 0 || len(a.SwapLengths) == 0 {
		return fmt.Errorf("%w: empty axis (%d option times, %d swap lengths)", ErrShape, len(a.OptionTimes), len(a.SwapLengths))
	}
	if len(a.OptionDates) != len(a.OptionTimes) {
		return fmt.Errorf("%w: %d option dates, %d option times", ErrShape, len(a.OptionDates), len(a.OptionTimes))
	}
	if len(a.SwapTenors) != len(a.SwapLengths) {
		return fmt.Errorf("%w: %d swap tenors, %d swap lengths", ErrShape, len(a.SwapTenors), len(a.SwapLengths))
	}
	for i := 1; i < len(a.OptionTimes); i++ {
		if !(a.OptionTimes[i] > a.OptionTimes[i-1]) {
			return fmt.Errorf("%w: option time %g follows %g", ErrNotIncreasing, a.OptionTimes[i], a.OptionTimes[i-1])
		}
	}
	for i := 1; i < len(a.SwapLengths); i++ {
		if !(a.SwapLengths[i] > a.SwapLengths[i-1]) {
			return fmt.Errorf("%w: swap length %g follows %g", ErrNotIncreasing, a.SwapLengths[i], a.SwapLengths[i-1])
		}
	}
	return nil
}

func (a Axes) clone() Axes {
	return Axes{
		OptionDates: append([]time.Time(nil), a.OptionDates...),
		OptionTimes: append([]float64(nil), a.OptionTimes...),
		SwapTenors:  append([]tenor.Period(nil), a.SwapTenors...),
		SwapLengths: append([]float64(nil), a.SwapLengths...),
	}
}

// Grid is an N-layer value store on a rectangular knot grid. Every layer is
// a rows x cols matrix indexed [option][swap]. A Grid is not safe for
// concurrent mutation.
type Grid struct {
	axes         Axes
	layers       []*mat.Dense
	backwardFlat int

	interps []interpolation.Interpolator2D
	stale   bool
}

// New returns a zero-filled grid with nLayers layers. The first
// backwardFlatLayers layers interpolate backward-flat along swap length and
// linearly along option time; the rest are bilinear.
func New(axes Axes, nLayers, backwardFlatLayers int) (*Grid, error) {
	if err := axes.Validate(); err != nil {
		return nil, err
	}
	if nLayers < 1 {
		return nil, fmt.Errorf("%w: %d layers", ErrShape, nLayers)
	}
	r, c := len(axes.OptionTimes), len(axes.SwapLengths)
	g := &Grid{
		axes:         axes.clone(),
		layers:       make([]*mat.Dense, nLayers),
		backwardFlat: backwardFlatLayers,
		stale:        true,
	}
	for k := range g.layers {
		g.layers[k] = mat.NewDense(r, c, nil)
	}
	return g, nil
}

// Layers returns the number of layers.
func (g *Grid) Layers() int { return len(g.layers) }

// Dims returns the number of option rows and swap columns.
func (g *Grid) Dims() (rows, cols int) {
	return len(g.axes.OptionTimes), len(g.axes.SwapLengths)
}

// Axes returns a copy of the grid axes.
func (g *Grid) Axes() Axes { return g.axes.clone() }

// OptionDates returns a copy of the option date axis.
func (g *Grid) OptionDates() []time.Time { return append([]time.Time(nil), g.axes.OptionDates...) }

// OptionTimes returns a copy of the option time axis.
func (g *Grid) OptionTimes() []float64 { return append([]float64(nil), g.axes.OptionTimes...) }

// SwapTenors returns a copy of the swap tenor axis.
func (g *Grid) SwapTenors() []tenor.Period { return append([]tenor.Period(nil), g.axes.SwapTenors...) }

// SwapLengths returns a copy of the swap length axis.
func (g *Grid) SwapLengths() []float64 { return append([]float64(nil), g.axes.SwapLengths...) }

func (g *Grid) OptionDate(row int) time.Time   { return g.axes.OptionDates[row] }
func (g *Grid) OptionTime(row int) float64     { return g.axes.OptionTimes[row] }
func (g *Grid) SwapTenor(col int) tenor.Period { return g.axes.SwapTenors[col] }
func (g *Grid) SwapLength(col int) float64     { return g.axes.SwapLengths[col] }

// BackwardFlatLayers returns the number of leading backward-flat layers.
func (g *Grid) BackwardFlatLayers() int { return g.backwardFlat }

// OptionIndex returns the row whose option date equals d.
func (g *Grid) OptionIndex(d time.Time) (int, bool) {
	for i, od := range g.axes.OptionDates {
		if od.Equal(d) {
			return i, true
		}
	}
	return -1, false
}

// SwapIndex returns the column whose swap tenor equals p.
func (g *Grid) SwapIndex(p tenor.Period) (int, bool) {
	for j, st := range g.axes.SwapTenors {
		if st.Equal(p) {
			return j, true
		}
	}
	return -1, false
}

func (g *Grid) check(layer, row, col int) error {
	r, c := g.Dims()
	if layer < 0 || layer >= len(g.layers) || row < 0 || row >= r || col < 0 || col >= c {
		return fmt.Errorf("%w: layer %d row %d col %d on %d layers of %dx%d", ErrIndex, layer, row, col, len(g.layers), r, c)
	}
	return nil
}

// SetValue writes x into one cell.
func (g *Grid) SetValue(layer, row, col int, x float64) error {
	if err := g.check(layer, row, col); err != nil {
		return err
	}
	g.layers[layer].Set(row, col, x)
	g.stale = true
	return nil
}

// Value reads one cell.
func (g *Grid) Value(layer, row, col int) (float64, error) {
	if err := g.check(layer, row, col); err != nil {
		return 0, err
	}
	return g.layers[layer].At(row, col), nil
}

// Point returns all layer values at one knot.
func (g *Grid) Point(row, col int) ([]float64, error) {
	if err := g.check(0, row, col); err != nil {
		return nil, err
	}
	out := make([]float64, len(g.layers))
	for k, l := range g.layers {
		out[k] = l.At(row, col)
	}
	return out, nil
}

// SetPoint writes all layer values at one knot.
func (g *Grid) SetPoint(row, col int, values []float64) error {
	if err := g.check(0, row, col); err != nil {
		return err
	}
	if len(values) != len(g.layers) {
		return fmt.Errorf("%w: %d values for %d layers", ErrShape, len(values), len(g.layers))
	}
	for k, v := range values {
		g.layers[k].Set(row, col, v)
	}
	g.stale = true
	return nil
}

// SetLayer replaces one layer with the contents of m.
func (g *Grid) SetLayer(layer int, m mat.Matrix) error {
	if layer < 0 || layer >= len(g.layers) {
		return fmt.Errorf("%w: layer %d of %d", ErrIndex, layer, len(g.layers))
	}
	r, c := g.Dims()
	mr, mc := m.Dims()
	if mr != r || mc != c {
		return fmt.Errorf("%w: layer %dx%d, grid %dx%d", ErrShape, mr, mc, r, c)
	}
	g.layers[layer].Copy(m)
	g.stale = true
	return nil
}

// Layer returns a copy of one layer.
func (g *Grid) Layer(layer int) (*mat.Dense, error) {
	if layer < 0 || layer >= len(g.layers) {
		return nil, fmt.Errorf("%w: layer %d of %d", ErrIndex, layer, len(g.layers))
	}
	return mat.DenseCopyOf(g.layers[layer]), nil
}

// InsertKnot places values at (t, length). An axis entry equal to the new
// coordinate is reused; otherwise the axis grows by one and every layer is
// remapped so existing cells keep their values and new cells are zero. It
// returns the row and column of the knot.
func (g *Grid) InsertKnot(date time.Time, p tenor.Period, t, length float64, values []float64) (row, col int, err error) {
	if len(values) != len(g.layers) {
		return -1, -1, fmt.Errorf("%w: %d values for %d layers", ErrShape, len(values), len(g.layers))
	}
	row, newRow := insertionPoint(g.axes.OptionTimes, t)
	col, newCol := insertionPoint(g.axes.SwapLengths, length)

	if newRow {
		g.axes.OptionTimes = insertAt(g.axes.OptionTimes, row, t)
		g.axes.OptionDates = insertAt(g.axes.OptionDates, row, date)
	}
	if newCol {
		g.axes.SwapLengths = insertAt(g.axes.SwapLengths, col, length)
		g.axes.SwapTenors = insertAt(g.axes.SwapTenors, col, p)
	}
	if newRow || newCol {
		g.remap(row, newRow, col, newCol)
	}
	for k, v := range values {
		g.layers[k].Set(row, col, v)
	}
	g.stale = true
	return row, col, nil
}

// remap reallocates every layer to the current axis sizes. Old row i maps to
// i, or i+1 at and after an inserted row; columns likewise.
func (g *Grid) remap(row int, newRow bool, col int, newCol bool) {
	r, c := g.Dims()
	rowOf := func(i int) int {
		if newRow && i >= row {
			return i + 1
		}
		return i
	}
	colOf := func(j int) int {
		if newCol && j >= col {
			return j + 1
		}
		return j
	}
	for k, old := range g.layers {
		or, oc := old.Dims()
		next := mat.NewDense(r, c, nil)
		for i := 0; i < or; i++ {
			for j := 0; j < oc; j++ {
				next.Set(rowOf(i), colOf(j), old.At(i, j))
			}
		}
		g.layers[k] = next
	}
}

// insertionPoint returns the index of the first entry >= x and whether x is
// absent from xs.
func insertionPoint(xs []float64, x float64) (int, bool) {
	i := sort.SearchFloat64s(xs, x)
	return i, i == len(xs) || xs[i] != x
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// RebuildInterpolators regenerates the per-layer interpolators. Queries
// rebuild lazily, so calling this is only needed to surface errors early.
func (g *Grid) RebuildInterpolators() error {
	interps := make([]interpolation.Interpolator2D, len(g.layers))
	for k, l := range g.layers {
		method := interpolation.MethodLinear
		if k < g.backwardFlat {
			method = interpolation.MethodBackwardFlat
		}
		ip, err := interpolation.New2D(method, g.axes.SwapLengths, g.axes.OptionTimes, l)
		if err != nil {
			return fmt.Errorf("knotgrid: layer %d: %w", k, err)
		}
		interps[k] = interpolation.NewFlatExtrapolation(ip, g.axes.SwapLengths, g.axes.OptionTimes)
	}
	g.interps = interps
	g.stale = false
	return nil
}

// Values interpolates every layer at (t, length). Outside the grid the
// nearest boundary value is returned.
func (g *Grid) Values(t, length float64) ([]float64, error) {
	if g.stale {
		if err := g.RebuildInterpolators(); err != nil {
			return nil, err
		}
	}
	out := make([]float64, len(g.interps))
	for k, ip := range g.interps {
		out[k] = ip.Value(length, t)
	}
	return out, nil
}

// Flatten dumps the grid with one row per knot, option-major. Columns are
// option time, swap length, then one column per layer.
func (g *Grid) Flatten() *mat.Dense {
	r, c := g.Dims()
	out := mat.NewDense(r*c, 2+len(g.layers), nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			n := i*c + j
			out.Set(n, 0, g.axes.OptionTimes[i])
			out.Set(n, 1, g.axes.SwapLengths[j])
			for k, l := range g.layers {
				out.Set(n, 2+k, l.At(i, j))
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		axes:         g.axes.clone(),
		layers:       make([]*mat.Dense, len(g.layers)),
		backwardFlat: g.backwardFlat,
		stale:        true,
	}
	for k, l := range g.layers {
		out.layers[k] = mat.DenseCopyOf(l)
	}
	return out
}
