package cube

import (
	"fmt"

	"github.com/meenmo/volcube/sabr"
	"github.com/meenmo/volcube/tenor"
)

// Recalibrate sets the beta guess of every option expiry in the swapTenor
// column to beta and recalibrates that column.
func (c *SabrCube) Recalibrate(beta float64, swapTenor tenor.Period) error {
	betas := make([]float64, len(c.guesses))
	for i := range betas {
		betas[i] = beta
	}
	return c.RecalibrateBetas(betas, swapTenor)
}

// RecalibrateBetas sets one beta guess per option expiry in the swapTenor
// column and recalibrates only that column of the sparse cube. In
// ATM-calibrated mode the expansion and dense calibration run again in
// full. The new guesses persist into later recomputes. On error the cube
// and its guesses are unchanged.
func (c *SabrCube) RecalibrateBetas(betas []float64, swapTenor tenor.Period) error {
	if err := c.calculate(); err != nil {
		return err
	}
	j, ok := indexOfTenor(c.timeline.SwapTenors(), swapTenor)
	if !ok {
		return fmt.Errorf("%w: swap tenor %s is not quoted", ErrInvalidInput, swapTenor)
	}
	if len(betas) != len(c.guesses) {
		return fmt.Errorf("%w: %d betas for %d option tenors", ErrInvalidInput, len(betas), len(c.guesses))
	}
	for i, b := range betas {
		if !(b >= 0 && b <= 1) {
			return fmt.Errorf("%w: beta %g for option %s not in [0,1]", ErrInvalidInput, b, c.timeline.OptionTenors()[i])
		}
	}

	saved := make([]sabr.Parameters, len(c.guesses))
	for i, b := range betas {
		saved[i] = c.guesses[i][j]
		c.guesses[i][j].Beta = b
	}
	restore := func() {
		for i := range saved {
			c.guesses[i][j] = saved[i]
		}
	}

	guess, err := c.guessGrid(c.st.market.Axes())
	if err != nil {
		restore()
		return err
	}
	st := &state{market: c.st.market, atm: c.st.atm, guess: guess}
	st.sparse, err = c.calibrateGrid("sparse", st.market, st.atm, guess, c.st.sparse.Clone(), []int{j})
	if err != nil {
		restore()
		return err
	}
	if c.atmCalibrated {
		if err := c.densify(st); err != nil {
			restore()
			return err
		}
	} else {
		st.atmCube, st.atmDense, st.dense = c.st.atmCube, c.st.atmDense, c.st.dense
	}
	c.st = st
	diagf("recalibrated %s column with betas %v", swapTenor, betas)
	c.notifier.Notify()
	return nil
}
