// Package interpolation provides the 1-D and 2-D interpolators used by the
// volatility grids. 1-D schemes wrap gonum's interp package; 2-D schemes
// compose a 1-D scheme along x with linear interpolation along y.
package interpolation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTooFewPoints is returned when no knots are supplied.
	ErrTooFewPoints = errors.New("interpolation: too few points")
	// ErrNotIncreasing is returned when abscissas are not strictly increasing.
	ErrNotIncreasing = errors.New("interpolation: abscissas not strictly increasing")
	// ErrShape is returned when ordinates do not match the abscissas.
	ErrShape = errors.New("interpolation: shape mismatch")
)

// Interpolator is a 1-D interpolator.
type Interpolator interface {
	Value(x float64) float64
}

// Interpolator2D is a 2-D interpolator over a rectangular grid; x indexes
// columns and y indexes rows.
type Interpolator2D interface {
	Value(x, y float64) float64
}

// Method selects the 1-D scheme used along x.
type Method int

const (
	// MethodLinear interpolates linearly between knots.
	MethodLinear Method = iota
	// MethodBackwardFlat holds the value of the right knot on each interval.
	MethodBackwardFlat
)

func (m Method) String() string {
	switch m {
	case MethodLinear:
		return "linear"
	case MethodBackwardFlat:
		return "backward-flat"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

func checkAxis(xs []float64) error {
	if len(xs) == 0 {
		return ErrTooFewPoints
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return fmt.Errorf("%w: x[%d]=%g, x[%d]=%g", ErrNotIncreasing, i-1, xs[i-1], i, xs[i])
		}
	}
	return nil
}

type constant float64

func (c constant) Value(float64) float64 { return float64(c) }

// predictor adapts gonum's interp.Predictor to Interpolator, clamping x to the
// knot range so out-of-range queries saturate.
type predictor struct {
	p          interp.Predictor
	xMin, xMax float64
}

func (p predictor) Value(x float64) float64 {
	return p.p.Predict(clamp(x, p.xMin, p.xMax))
}

// New1D builds a 1-D interpolator with flat extrapolation. A single knot
// yields a constant.
func New1D(method Method, xs, ys []float64) (Interpolator, error) {
	if err := checkAxis(xs); err != nil {
		return nil, err
	}
	if len(ys) != len(xs) {
		return nil, fmt.Errorf("%w: %d abscissas, %d ordinates", ErrShape, len(xs), len(ys))
	}
	if len(xs) == 1 {
		return constant(ys[0]), nil
	}
	var fitter interp.FittablePredictor
	switch method {
	case MethodBackwardFlat:
		fitter = &interp.PiecewiseConstant{}
	default:
		fitter = &interp.PiecewiseLinear{}
	}
	if err := fitter.Fit(xs, ys); err != nil {
		return nil, err
	}
	return predictor{p: fitter, xMin: xs[0], xMax: xs[len(xs)-1]}, nil
}

// Linear is a 1-D linear interpolator that extrapolates along the end
// segments instead of saturating.
type Linear struct {
	xs, ys []float64
	inner  Interpolator
}

// NewLinear builds a linear interpolator with linear extrapolation. At least
// two knots are required.
func NewLinear(xs, ys []float64) (*Linear, error) {
	if len(xs) < 2 {
		return nil, ErrTooFewPoints
	}
	inner, err := New1D(MethodLinear, xs, ys)
	if err != nil {
		return nil, err
	}
	return &Linear{xs: append([]float64(nil), xs...), ys: append([]float64(nil), ys...), inner: inner}, nil
}

func (l *Linear) Value(x float64) float64 {
	n := len(l.xs)
	switch {
	case x < l.xs[0]:
		slope := (l.ys[1] - l.ys[0]) / (l.xs[1] - l.xs[0])
		return l.ys[0] + slope*(x-l.xs[0])
	case x > l.xs[n-1]:
		slope := (l.ys[n-1] - l.ys[n-2]) / (l.xs[n-1] - l.xs[n-2])
		return l.ys[n-1] + slope*(x-l.xs[n-1])
	default:
		return l.inner.Value(x)
	}
}

// grid2D interpolates each row along x with the chosen method and then
// linearly along y between the two bracketing rows.
type grid2D struct {
	xs, ys []float64
	rows   []Interpolator
}

// New2D builds a 2-D interpolator on z (len(ys) rows by len(xs) columns).
// MethodLinear gives bilinear interpolation; MethodBackwardFlat is
// backward-flat along x and linear along y. The result is not extrapolating;
// wrap it with FlatExtrapolation.
func New2D(method Method, xs, ys []float64, z mat.Matrix) (Interpolator2D, error) {
	if err := checkAxis(xs); err != nil {
		return nil, fmt.Errorf("x axis: %w", err)
	}
	if err := checkAxis(ys); err != nil {
		return nil, fmt.Errorf("y axis: %w", err)
	}
	r, c := z.Dims()
	if r != len(ys) || c != len(xs) {
		return nil, fmt.Errorf("%w: matrix %dx%d, axes %dx%d", ErrShape, r, c, len(ys), len(xs))
	}
	g := &grid2D{
		xs:   append([]float64(nil), xs...),
		ys:   append([]float64(nil), ys...),
		rows: make([]Interpolator, r),
	}
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, z)
		ip, err := New1D(method, xs, row)
		if err != nil {
			return nil, err
		}
		g.rows[i] = ip
	}
	return g, nil
}

func (g *grid2D) Value(x, y float64) float64 {
	n := len(g.ys)
	if n == 1 {
		return g.rows[0].Value(x)
	}
	j := sort.SearchFloat64s(g.ys, y)
	switch {
	case j <= 0:
		j = 1
	case j >= n:
		j = n - 1
	}
	y0, y1 := g.ys[j-1], g.ys[j]
	v0, v1 := g.rows[j-1].Value(x), g.rows[j].Value(x)
	w := (y - y0) / (y1 - y0)
	return v0 + w*(v1-v0)
}

// FlatExtrapolation wraps a 2-D interpolator so that queries outside the
// knot rectangle are clamped to its boundary.
type FlatExtrapolation struct {
	inner      Interpolator2D
	xMin, xMax float64
	yMin, yMax float64
}

// NewFlatExtrapolation wraps inner, clamping x to [xs[0], xs[n-1]] and y to
// [ys[0], ys[m-1]].
func NewFlatExtrapolation(inner Interpolator2D, xs, ys []float64) *FlatExtrapolation {
	return &FlatExtrapolation{
		inner: inner,
		xMin:  xs[0], xMax: xs[len(xs)-1],
		yMin: ys[0], yMax: ys[len(ys)-1],
	}
}

func (f *FlatExtrapolation) Value(x, y float64) float64 {
	return f.inner.Value(clamp(x, f.xMin, f.xMax), clamp(y, f.yMin, f.yMax))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
