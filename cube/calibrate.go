package cube

import (
	"time"

	"github.com/meenmo/volcube/knotgrid"
	"github.com/meenmo/volcube/sabr"
)

// calibrateGrid fits every knot of vols, or only the given columns, and
// writes the results into into (a new parameter grid when nil). The first
// failing knot aborts the pass.
func (c *SabrCube) calibrateGrid(stage string, vols, atmGrid, guess, into *knotgrid.Grid, cols []int) (*knotgrid.Grid, error) {
	if into == nil {
		bf := 0
		if c.backwardFlat {
			bf = sabr.PrimaryLayers
		}
		var err error
		into, err = knotgrid.New(vols.Axes(), sabr.NumLayers, bf)
		if err != nil {
			return nil, err
		}
	}
	rows, nCols := vols.Dims()
	if cols == nil {
		cols = make([]int, nCols)
		for j := range cols {
			cols[j] = j
		}
	}
	for _, j := range cols {
		for i := 0; i < rows; i++ {
			res, err := c.calibrateKnot(stage, vols, atmGrid, guess, i, j)
			if err != nil {
				return nil, err
			}
			if err := into.SetPoint(i, j, res.Layers()); err != nil {
				return nil, err
			}
		}
	}
	if err := into.RebuildInterpolators(); err != nil {
		return nil, err
	}
	return into, nil
}

func (c *SabrCube) calibrateKnot(stage string, vols, atmGrid, guess *knotgrid.Grid, i, j int) (sabr.FitResult, error) {
	t, l := vols.OptionTime(i), vols.SwapLength(j)
	pv, err := atmGrid.Point(i, j)
	if err != nil {
		return sabr.FitResult{}, err
	}
	pt := atmPointFromLayers(pv)
	mv, err := vols.Point(i, j)
	if err != nil {
		return sabr.FitResult{}, err
	}
	g, err := guess.Values(t, l)
	if err != nil {
		return sabr.FitResult{}, err
	}

	strikes := make([]float64, len(c.spreads))
	for k, s := range c.spreads {
		strikes[k] = pt.Forward + s
	}
	opts := c.opts
	opts.Guess = sabr.ParametersFromSlice(g)

	start := time.Now()
	res, err := sabr.Calibrate(sabr.Input{
		Strikes: strikes,
		Vols:    mv,
		Forward: pt.Forward,
		Shift:   pt.Shift,
		Time:    t,
	}, opts)
	knotFitDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		knotCalibrations.WithLabelValues(stage, "failed").Inc()
		kerr := &KnotError{
			Stage:      stage,
			OptionDate: vols.OptionDate(i),
			OptionTime: t,
			SwapTenor:  vols.SwapTenor(j),
			Result:     res,
			Err:        err,
		}
		opsf("%v", kerr)
		return res, kerr
	}
	knotCalibrations.WithLabelValues(stage, "ok").Inc()
	tracef("%s %.4f x %s: %s rms=%.3g attempts=%d end=%s",
		stage, t, vols.SwapTenor(j), res.Params, res.RMSError, res.Attempts, res.EndCriteria)
	return res, nil
}
