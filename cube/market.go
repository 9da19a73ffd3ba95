package cube

import (
	"fmt"

	"github.com/meenmo/volcube/knotgrid"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/utils"
)

// validateSpreadTable checks that quotes has one row per (option, swap)
// pair, option-major, each with one quote per strike spread.
func validateSpreadTable(nOptions, nSwaps int, spreads []float64, quotes [][]quote.Quote) error {
	if len(spreads) == 0 {
		return fmt.Errorf("%w: no strike spreads", ErrInvalidInput)
	}
	for k := 1; k < len(spreads); k++ {
		if !(spreads[k] > spreads[k-1]) {
			return fmt.Errorf("%w: strike spread %g follows %g", ErrInvalidInput, spreads[k], spreads[k-1])
		}
	}
	if len(quotes) != nOptions*nSwaps {
		return fmt.Errorf("%w: %d spread rows for %d option x %d swap tenors", ErrInvalidInput, len(quotes), nOptions, nSwaps)
	}
	for r, row := range quotes {
		if len(row) != len(spreads) {
			return fmt.Errorf("%w: spread row %d has %d quotes for %d strike spreads", ErrInvalidInput, r, len(row), len(spreads))
		}
		for k, q := range row {
			if q == nil {
				return fmt.Errorf("%w: nil spread quote at row %d column %d", ErrInvalidInput, r, k)
			}
		}
	}
	return nil
}

// buildMarketCube writes atmVol + spread into one layer per strike spread
// and records the ATM point of every knot.
func buildMarketCube(axes knotgrid.Axes, atm *ATMAdapter, spreads []float64, quotes [][]quote.Quote) (market, atmGrid *knotgrid.Grid, err error) {
	market, err = knotgrid.New(axes, len(spreads), 0)
	if err != nil {
		return nil, nil, err
	}
	atmGrid, err = knotgrid.New(axes, atmLayers, 0)
	if err != nil {
		return nil, nil, err
	}
	nSwaps := len(axes.SwapTenors)
	vols := make([]float64, len(spreads))
	for i, d := range axes.OptionDates {
		for j, p := range axes.SwapTenors {
			pt, err := atm.Point(d, p)
			if err != nil {
				return nil, nil, fmt.Errorf("cube: ATM point %s x %s: %w", utils.FormatDate(d), p, err)
			}
			for k, q := range quotes[i*nSwaps+j] {
				s, err := quote.ValueOf(q)
				if err != nil {
					return nil, nil, fmt.Errorf("cube: spread %g at %s x %s: %w", spreads[k], utils.FormatDate(d), p, err)
				}
				vols[k] = pt.Vol + s
			}
			if err := market.SetPoint(i, j, vols); err != nil {
				return nil, nil, err
			}
			if err := atmGrid.SetPoint(i, j, pt.layers()); err != nil {
				return nil, nil, err
			}
		}
	}
	return market, atmGrid, nil
}
