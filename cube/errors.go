package cube

import (
	"errors"
	"fmt"
	"time"

	"github.com/meenmo/volcube/sabr"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
)

var (
	// ErrInvalidInput is returned for construction inputs that cannot form
	// a cube.
	ErrInvalidInput = errors.New("cube: invalid input")
	// ErrReentrantRecompute is returned when a recompute is triggered from
	// inside a recompute.
	ErrReentrantRecompute = errors.New("cube: recompute re-entered")
	// ErrNotATMCalibrated is returned for dense-cube requests on a cube
	// built without ATM calibration.
	ErrNotATMCalibrated = errors.New("cube: cube is not ATM calibrated")
)

// KnotError reports a knot whose calibration failed.
type KnotError struct {
	// Stage is "sparse" or "dense".
	Stage      string
	OptionDate time.Time
	OptionTime float64
	SwapTenor  tenor.Period
	// Result holds the best parameters found, when any were.
	Result sabr.FitResult
	Err    error
}

func (e *KnotError) Error() string {
	return fmt.Sprintf("cube: %s calibration at %s (t=%.4f) x %s: %s, rms %.3g, max error %.3g: %v",
		e.Stage, utils.FormatDate(e.OptionDate), e.OptionTime, e.SwapTenor,
		e.Result.Params, e.Result.RMSError, e.Result.MaxError, e.Err)
}

func (e *KnotError) Unwrap() error { return e.Err }
