package volatility

import (
	"fmt"
	"time"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/interpolation"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/settings"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
)

// TimelineConfig describes the discrete option and swap axes of a surface.
type TimelineConfig struct {
	// ReferenceDate fixes the surface origin. A zero date follows the
	// evaluation date and the timeline rebuilds when it changes.
	ReferenceDate         time.Time
	Calendar              calendar.CalendarID
	BusinessDayConvention calendar.BusinessDayConvention
	DayCount              market.DayCount
	OptionTenors          []tenor.Period
	SwapTenors            []tenor.Period
	// Extrapolate allows queries beyond the last option date and swap tenor.
	Extrapolate bool
}

// Timeline maps option tenors to dates and times and swap tenors to lengths,
// and converts between option dates and times. It notifies subscribers when
// a moving reference date changes.
type Timeline struct {
	quote.Notifier

	cfg TimelineConfig
	sub *quote.Subscription

	stale         bool
	err           error
	referenceDate time.Time
	optionDates   []time.Time
	optionTimes   []float64
	swapLengths   []float64
	timeOfSerial  *interpolation.Linear
	serialOfTime  *interpolation.Linear
}

// NewTimeline validates cfg and builds the axes.
func NewTimeline(cfg TimelineConfig) (*Timeline, error) {
	if len(cfg.OptionTenors) == 0 || len(cfg.SwapTenors) == 0 {
		return nil, fmt.Errorf("%w: %d option tenors, %d swap tenors", ErrInvalidTenor, len(cfg.OptionTenors), len(cfg.SwapTenors))
	}
	if !cfg.DayCount.Valid() {
		return nil, fmt.Errorf("volatility: unsupported day count %q", cfg.DayCount)
	}
	if err := checkIncreasing("option", cfg.OptionTenors); err != nil {
		return nil, err
	}
	if err := checkIncreasing("swap", cfg.SwapTenors); err != nil {
		return nil, err
	}
	if cfg.OptionTenors[0].Length <= 0 {
		return nil, fmt.Errorf("%w: option tenor %s", ErrInvalidTenor, cfg.OptionTenors[0])
	}
	lengths := make([]float64, len(cfg.SwapTenors))
	for j, p := range cfg.SwapTenors {
		l, err := SwapLength(p)
		if err != nil {
			return nil, err
		}
		lengths[j] = l
	}
	cfg.OptionTenors = append([]tenor.Period(nil), cfg.OptionTenors...)
	cfg.SwapTenors = append([]tenor.Period(nil), cfg.SwapTenors...)

	tl := &Timeline{cfg: cfg, swapLengths: lengths, stale: true}
	if err := tl.rebuild(); err != nil {
		return nil, err
	}
	if cfg.ReferenceDate.IsZero() {
		tl.sub = settings.SubscribeEvaluationDate(tl.evaluationDateChanged)
	}
	return tl, nil
}

func checkIncreasing(axis string, ps []tenor.Period) error {
	for i := 1; i < len(ps); i++ {
		if !ps[i-1].Less(ps[i]) {
			return fmt.Errorf("%w: %s tenor %s follows %s", ErrInvalidTenor, axis, ps[i], ps[i-1])
		}
	}
	return nil
}

// Close drops the evaluation date subscription.
func (tl *Timeline) Close() {
	tl.sub.Unsubscribe()
}

func (tl *Timeline) evaluationDateChanged() {
	tl.stale = true
	tl.Notify()
}

// ensure rebuilds a stale timeline. On failure the previous axes stay in
// place, the error is kept and the next call retries.
func (tl *Timeline) ensure() {
	if tl.stale {
		tl.err = tl.rebuild()
	}
}

// Refresh rebuilds a stale timeline and returns the rebuild error, if any.
// While it is non-nil the axes describe the last good reference date.
func (tl *Timeline) Refresh() error {
	tl.ensure()
	return tl.err
}

func (tl *Timeline) rebuild() error {
	ref := tl.cfg.ReferenceDate
	if ref.IsZero() {
		ref = settings.EvaluationDate()
	}
	dates := make([]time.Time, len(tl.cfg.OptionTenors))
	times := make([]float64, len(dates))
	serials := []float64{utils.Serial(ref)}
	knots := []float64{0}
	for i, p := range tl.cfg.OptionTenors {
		d := calendar.Advance(tl.cfg.Calendar, ref, p, tl.cfg.BusinessDayConvention, false)
		if i > 0 && !d.After(dates[i-1]) {
			return fmt.Errorf("%w: option tenor %s rolls to %s, not after %s of %s", ErrInvalidTenor,
				p, utils.FormatDate(d), utils.FormatDate(dates[i-1]), tl.cfg.OptionTenors[i-1])
		}
		dates[i] = d
		times[i] = tl.cfg.DayCount.YearFraction(ref, d)
		if times[i] > knots[len(knots)-1] {
			serials = append(serials, utils.Serial(d))
			knots = append(knots, times[i])
		}
	}
	if len(knots) < 2 {
		return fmt.Errorf("%w: option dates do not follow the reference date", ErrInvalidTenor)
	}
	timeOfSerial, err := interpolation.NewLinear(serials, knots)
	if err != nil {
		return err
	}
	serialOfTime, err := interpolation.NewLinear(knots, serials)
	if err != nil {
		return err
	}
	tl.referenceDate = ref
	tl.optionDates = dates
	tl.optionTimes = times
	tl.timeOfSerial = timeOfSerial
	tl.serialOfTime = serialOfTime
	tl.stale = false
	return nil
}

func (tl *Timeline) ReferenceDate() time.Time {
	tl.ensure()
	return tl.referenceDate
}

func (tl *Timeline) Calendar() calendar.CalendarID { return tl.cfg.Calendar }
func (tl *Timeline) DayCount() market.DayCount     { return tl.cfg.DayCount }
func (tl *Timeline) BusinessDayConvention() calendar.BusinessDayConvention {
	return tl.cfg.BusinessDayConvention
}

// AllowsExtrapolation reports whether out-of-range queries are accepted.
func (tl *Timeline) AllowsExtrapolation() bool { return tl.cfg.Extrapolate }

// EnableExtrapolation switches range checking off or on.
func (tl *Timeline) EnableExtrapolation(on bool) { tl.cfg.Extrapolate = on }

func (tl *Timeline) OptionTenors() []tenor.Period {
	return append([]tenor.Period(nil), tl.cfg.OptionTenors...)
}

func (tl *Timeline) OptionDates() []time.Time {
	tl.ensure()
	return append([]time.Time(nil), tl.optionDates...)
}

func (tl *Timeline) OptionTimes() []float64 {
	tl.ensure()
	return append([]float64(nil), tl.optionTimes...)
}

func (tl *Timeline) SwapTenors() []tenor.Period {
	return append([]tenor.Period(nil), tl.cfg.SwapTenors...)
}

func (tl *Timeline) SwapLengths() []float64 {
	return append([]float64(nil), tl.swapLengths...)
}

// MaxSwapTenor is the longest swap tenor on the axis.
func (tl *Timeline) MaxSwapTenor() tenor.Period {
	return tl.cfg.SwapTenors[len(tl.cfg.SwapTenors)-1]
}

// MaxSwapLength is MaxSwapTenor in years.
func (tl *Timeline) MaxSwapLength() float64 {
	return tl.swapLengths[len(tl.swapLengths)-1]
}

// MaxDate is the last option date.
func (tl *Timeline) MaxDate() time.Time {
	tl.ensure()
	return tl.optionDates[len(tl.optionDates)-1]
}

// MaxTime is the last option time.
func (tl *Timeline) MaxTime() float64 {
	tl.ensure()
	return tl.optionTimes[len(tl.optionTimes)-1]
}

// OptionDateFromTenor rolls the reference date by p.
func (tl *Timeline) OptionDateFromTenor(p tenor.Period) time.Time {
	return calendar.Advance(tl.cfg.Calendar, tl.ReferenceDate(), p, tl.cfg.BusinessDayConvention, false)
}

// TimeFromReference is the year fraction from the reference date to d.
func (tl *Timeline) TimeFromReference(d time.Time) float64 {
	return tl.cfg.DayCount.YearFraction(tl.ReferenceDate(), d)
}

// OptionTimeFromDate interpolates the option time of d on the
// (date, time) knots, extrapolating linearly.
func (tl *Timeline) OptionTimeFromDate(d time.Time) float64 {
	tl.ensure()
	return tl.timeOfSerial.Value(utils.Serial(d))
}

// OptionDateFromTime is the inverse of OptionTimeFromDate, rounded to the
// nearest day.
func (tl *Timeline) OptionDateFromTime(t float64) time.Time {
	tl.ensure()
	return utils.FromSerial(tl.serialOfTime.Value(t))
}

// CheckRange fails while the timeline cannot be rebuilt. It rejects negative
// times, and times past MaxTime unless extrapolation is requested or allowed.
func (tl *Timeline) CheckRange(t float64, extrapolate bool) error {
	if err := tl.Refresh(); err != nil {
		return err
	}
	if t < 0 {
		return fmt.Errorf("%w: negative option time %g", ErrOutOfRange, t)
	}
	if !extrapolate && !tl.cfg.Extrapolate && t > tl.MaxTime() {
		return fmt.Errorf("%w: option time %g past max %g", ErrOutOfRange, t, tl.MaxTime())
	}
	return nil
}

// CheckSwapTenor rejects non-positive lengths, and lengths past
// MaxSwapLength unless extrapolation is requested or allowed.
func (tl *Timeline) CheckSwapTenor(length float64, extrapolate bool) error {
	if length <= 0 {
		return fmt.Errorf("%w: non-positive swap length %g", ErrOutOfRange, length)
	}
	if !extrapolate && !tl.cfg.Extrapolate && length > tl.MaxSwapLength() {
		return fmt.Errorf("%w: swap length %g past max %g", ErrOutOfRange, length, tl.MaxSwapLength())
	}
	return nil
}
