package main

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/meenmo/volcube/calendar"
	"github.com/meenmo/volcube/cube"
	"github.com/meenmo/volcube/curve"
	"github.com/meenmo/volcube/index"
	"github.com/meenmo/volcube/market"
	"github.com/meenmo/volcube/quote"
	"github.com/meenmo/volcube/sabr"
	"github.com/meenmo/volcube/settings"
	"github.com/meenmo/volcube/tenor"
	"github.com/meenmo/volcube/utils"
	"github.com/meenmo/volcube/volatility"
)

// ScenarioInput defines the JSON input schema for one cube calibration.
//
// Conventions:
// - rates and vols are in percent (e.g., 20 means 20%)
// - strike spreads and strikes are in bp relative to the ATM forward
type ScenarioInput struct {
	TaskID string `json:"task_id,omitempty"`

	ReferenceDate string `json:"reference_date"` // "2025-01-06"

	// Currency selects the swap index family: EUR (EuriborSwapIsdaFixA) or
	// JPY (JpyTiborSwap).
	Currency        string     `json:"currency"`
	Curve           CurveInput `json:"curve"`
	ShortIndexTenor string     `json:"short_index_tenor"`
	LongIndexTenor  string     `json:"long_index_tenor"`

	ATM ATMInput `json:"atm"`

	OptionTenors    []string  `json:"option_tenors"`
	SwapTenors      []string  `json:"swap_tenors"`
	StrikeSpreadsBP []float64 `json:"strike_spreads_bp"`
	// SpreadVols holds one row per (option, swap) pair, option-major, with
	// one vol spread over ATM per strike spread.
	SpreadVols [][]float64 `json:"spread_vols"`

	Guess  ParamsInput `json:"guess"`
	Fixed  FixedInput  `json:"fixed"`
	Method string      `json:"optimizer,omitempty"`

	ATMCalibrated bool   `json:"atm_calibrated"`
	BackwardFlat  bool   `json:"backward_flat"`
	Expansion     string `json:"expansion,omitempty"` // "extrapolate" (default) or "skip"
	Extrapolate   bool   `json:"extrapolate"`

	Recalibrate []RecalibrateInput `json:"recalibrate,omitempty"`
	Queries     []QueryInput       `json:"queries"`
	Dump        bool               `json:"dump"`
}

// CurveInput is one of a flat continuously compounded rate, discount
// factors keyed by date, or par swap rates keyed by tenor that are
// bootstrapped on the currency's swap index.
type CurveInput struct {
	FlatRatePct     *float64           `json:"flat_rate,omitempty"`
	DiscountFactors map[string]float64 `json:"discount_factors,omitempty"`
	ParRatesPct     map[string]float64 `json:"par_rates,omitempty"`
	DayCount        string             `json:"day_count,omitempty"` // default ACT/365F
}

// ATMInput is the ATM volatility matrix.
type ATMInput struct {
	OptionTenors []string    `json:"option_tenors"`
	SwapTenors   []string    `json:"swap_tenors"`
	VolsPct      [][]float64 `json:"vols"`
	ShiftsPct    [][]float64 `json:"shifts,omitempty"`
}

// ParamsInput overrides individual SABR guess parameters.
type ParamsInput struct {
	Alpha *float64 `json:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
	Nu    *float64 `json:"nu,omitempty"`
	Rho   *float64 `json:"rho,omitempty"`
}

// FixedInput marks SABR parameters held at their guess.
type FixedInput struct {
	Alpha bool `json:"alpha"`
	Beta  bool `json:"beta"`
	Nu    bool `json:"nu"`
	Rho   bool `json:"rho"`
}

// RecalibrateInput refits one swap tenor column with a new beta.
type RecalibrateInput struct {
	SwapTenor string  `json:"swap_tenor"`
	Beta      float64 `json:"beta"`
}

// QueryInput requests a smile.
type QueryInput struct {
	OptionTenor string    `json:"option_tenor"`
	SwapTenor   string    `json:"swap_tenor"`
	StrikesBP   []float64 `json:"strikes_bp"`
}

// ScenarioOutput defines the JSON output schema.
type ScenarioOutput struct {
	TaskID        string        `json:"task_id,omitempty"`
	ReferenceDate string        `json:"reference_date,omitempty"`
	Smiles        []SmileOutput `json:"smiles,omitempty"`
	Knots         []KnotOutput  `json:"knots,omitempty"`

	MarketVolCube     [][]float64 `json:"market_vol_cube,omitempty"`
	SparseParameters  [][]float64 `json:"sparse_parameters,omitempty"`
	ATMCalibratedCube [][]float64 `json:"atm_calibrated_cube,omitempty"`
	DenseParameters   [][]float64 `json:"dense_parameters,omitempty"`

	Error string `json:"error,omitempty"`
}

// SmileOutput is one queried smile.
type SmileOutput struct {
	OptionTenor string    `json:"option_tenor"`
	SwapTenor   string    `json:"swap_tenor"`
	OptionTime  float64   `json:"option_time"`
	ForwardPct  float64   `json:"forward"`
	ShiftPct    float64   `json:"shift"`
	StrikesPct  []float64 `json:"strikes"`
	VolsPct     []float64 `json:"vols"`
}

// KnotOutput is the sparse fit at one quoted knot.
type KnotOutput struct {
	OptionTenor string  `json:"option_tenor"`
	SwapTenor   string  `json:"swap_tenor"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	Nu          float64 `json:"nu"`
	Rho         float64 `json:"rho"`
	ForwardPct  float64 `json:"forward"`
	RMSError    float64 `json:"rms_error"`
	MaxError    float64 `json:"max_error"`
	EndCriteria string  `json:"end_criteria"`
	Attempts    int     `json:"attempts"`
}

type currencyPreset struct {
	calendar   calendar.CalendarID
	convention index.ConventionFunc
}

var currencyPresets = map[string]currencyPreset{
	"EUR": {
		calendar: calendar.TARGET,
		convention: func(h *curve.Handle, t tenor.Period) index.SwapConvention {
			return index.EuriborSwapIsdaFixA(h, nil, t)
		},
	},
	"JPY": {
		calendar: calendar.JPN,
		convention: func(h *curve.Handle, _ tenor.Period) index.SwapConvention {
			return index.JpyTiborSwap(h, nil)
		},
	},
}

func (p currencyPreset) swapIndex(h *curve.Handle, t tenor.Period) (*index.SwapIndex, error) {
	return index.NewSwapIndex(p.convention(h, t), t)
}

// scenario holds the objects built from a ScenarioInput.
type scenario struct {
	ref   time.Time
	cube  *cube.SabrCube
	atm   *volatility.MatrixSurface
	long  *index.SwapIndex
	short *index.SwapIndex
}

func (s *scenario) Close() {
	if s.cube != nil {
		s.cube.Close()
	}
	if s.atm != nil {
		s.atm.Close()
	}
	if s.long != nil {
		s.long.Close()
	}
	if s.short != nil {
		s.short.Close()
	}
}

func runScenario(in ScenarioInput) (*ScenarioOutput, error) {
	s, err := buildScenario(in)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	for _, r := range in.Recalibrate {
		p, err := tenor.Parse(r.SwapTenor)
		if err != nil {
			return nil, fmt.Errorf("invalid recalibrate swap_tenor: %v", err)
		}
		if err := s.cube.Recalibrate(r.Beta, p); err != nil {
			return nil, err
		}
	}

	out := &ScenarioOutput{TaskID: in.TaskID, ReferenceDate: utils.FormatDate(s.ref)}
	for _, q := range in.Queries {
		smile, err := querySmile(s.cube, q, in.Extrapolate)
		if err != nil {
			return nil, err
		}
		out.Smiles = append(out.Smiles, smile)
	}

	knots, err := sparseKnots(s.cube)
	if err != nil {
		return nil, err
	}
	out.Knots = knots

	if in.Dump {
		if err := dump(s.cube, out, in.ATMCalibrated); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func buildScenario(in ScenarioInput) (*scenario, error) {
	ref, err := utils.ParseDate(in.ReferenceDate)
	if err != nil {
		return nil, fmt.Errorf("invalid reference_date: %v", err)
	}
	settings.SetEvaluationDate(ref)

	ccy := strings.ToUpper(strings.TrimSpace(in.Currency))
	if ccy == "" {
		ccy = "EUR"
	}
	preset, ok := currencyPresets[ccy]
	if !ok {
		return nil, fmt.Errorf("unsupported currency %q", in.Currency)
	}

	h, err := buildCurve(ref, in.Curve, preset.convention)
	if err != nil {
		return nil, err
	}

	s := &scenario{ref: ref}
	fail := func(err error) (*scenario, error) {
		s.Close()
		return nil, err
	}

	shortTenor, err := tenor.Parse(in.ShortIndexTenor)
	if err != nil {
		return fail(fmt.Errorf("invalid short_index_tenor: %v", err))
	}
	longTenor, err := tenor.Parse(in.LongIndexTenor)
	if err != nil {
		return fail(fmt.Errorf("invalid long_index_tenor: %v", err))
	}
	if s.short, err = preset.swapIndex(h, shortTenor); err != nil {
		return fail(err)
	}
	if s.long, err = preset.swapIndex(h, longTenor); err != nil {
		return fail(err)
	}

	tl := volatility.TimelineConfig{
		ReferenceDate:         ref,
		Calendar:              preset.calendar,
		BusinessDayConvention: calendar.ModifiedFollowing,
		DayCount:              market.Act365F,
		Extrapolate:           in.Extrapolate,
	}
	if s.atm, err = buildATM(tl, in.ATM); err != nil {
		return fail(err)
	}

	optionTenors, err := tenor.ParseAll(in.OptionTenors)
	if err != nil {
		return fail(fmt.Errorf("invalid option_tenors: %v", err))
	}
	swapTenors, err := tenor.ParseAll(in.SwapTenors)
	if err != nil {
		return fail(fmt.Errorf("invalid swap_tenors: %v", err))
	}

	spreads := make([]float64, len(in.StrikeSpreadsBP))
	for i, bp := range in.StrikeSpreadsBP {
		spreads[i] = bp / 1e4
	}
	rows := make([][]quote.Quote, len(in.SpreadVols))
	for i, row := range in.SpreadVols {
		rows[i] = make([]quote.Quote, len(row))
		for k, v := range row {
			rows[i][k] = quote.NewSimpleQuote(v / 100)
		}
	}

	opts := sabr.DefaultOptions()
	opts.Guess = in.Guess.apply(opts.Guess)
	opts.Fixed = [4]bool{in.Fixed.Alpha, in.Fixed.Beta, in.Fixed.Nu, in.Fixed.Rho}
	if in.Method != "" {
		opts.Optimizer = in.Method
	}

	expansion := cube.ExpandExtrapolate
	switch strings.ToLower(strings.TrimSpace(in.Expansion)) {
	case "", "extrapolate":
	case "skip":
		expansion = cube.ExpandSkipOutside
	default:
		return fail(fmt.Errorf("unknown expansion %q", in.Expansion))
	}

	s.cube, err = cube.New(cube.Config{
		ATMSurface:    s.atm,
		ReferenceDate: ref,
		OptionTenors:  optionTenors,
		SwapTenors:    swapTenors,
		StrikeSpreads: spreads,
		SpreadQuotes:  rows,
		LongIndex:     s.long,
		ShortIndex:    s.short,
		Calibration:   opts,
		ATMCalibrated: in.ATMCalibrated,
		BackwardFlat:  in.BackwardFlat,
		Expansion:     expansion,
		Extrapolate:   in.Extrapolate,
	})
	if err != nil {
		return fail(err)
	}
	return s, nil
}

func buildCurve(ref time.Time, in CurveInput, conv index.ConventionFunc) (*curve.Handle, error) {
	dc := market.Act365F
	if in.DayCount != "" {
		dc = market.DayCount(strings.ToUpper(in.DayCount))
		if !dc.Valid() {
			return nil, fmt.Errorf("invalid curve day_count %q", in.DayCount)
		}
	}
	set := 0
	if in.FlatRatePct != nil {
		set++
	}
	if len(in.DiscountFactors) > 0 {
		set++
	}
	if len(in.ParRatesPct) > 0 {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("curve: set exactly one of flat_rate, discount_factors or par_rates")
	}

	switch {
	case in.FlatRatePct != nil:
		return curve.NewHandle(curve.NewFlatCurve(ref, *in.FlatRatePct/100, dc)), nil
	case len(in.DiscountFactors) > 0:
		dfs := make(map[time.Time]float64, len(in.DiscountFactors))
		for k, v := range in.DiscountFactors {
			d, err := utils.ParseDate(k)
			if err != nil {
				return nil, fmt.Errorf("invalid discount factor date %q: %v", k, err)
			}
			dfs[d] = v
		}
		c, err := curve.NewCurveFromDFs(ref, dfs, dc)
		if err != nil {
			return nil, err
		}
		return curve.NewHandle(c), nil
	default:
		quotes := make([]index.ParQuote, 0, len(in.ParRatesPct))
		for k, v := range in.ParRatesPct {
			p, err := tenor.Parse(k)
			if err != nil {
				return nil, fmt.Errorf("invalid par rate tenor: %v", err)
			}
			quotes = append(quotes, index.ParQuote{Tenor: p, Rate: v / 100})
		}
		c, err := index.BootstrapCurve(ref, conv, quotes, dc)
		if err != nil {
			return nil, err
		}
		return curve.NewHandle(c), nil
	}
}

func buildATM(tl volatility.TimelineConfig, in ATMInput) (*volatility.MatrixSurface, error) {
	var err error
	if tl.OptionTenors, err = tenor.ParseAll(in.OptionTenors); err != nil {
		return nil, fmt.Errorf("invalid atm option_tenors: %v", err)
	}
	if tl.SwapTenors, err = tenor.ParseAll(in.SwapTenors); err != nil {
		return nil, fmt.Errorf("invalid atm swap_tenors: %v", err)
	}
	vols := make([][]quote.Quote, len(in.VolsPct))
	for i, row := range in.VolsPct {
		vols[i] = make([]quote.Quote, len(row))
		for j, v := range row {
			vols[i][j] = quote.NewSimpleQuote(v / 100)
		}
	}
	var shifts [][]float64
	if in.ShiftsPct != nil {
		shifts = make([][]float64, len(in.ShiftsPct))
		for i, row := range in.ShiftsPct {
			shifts[i] = make([]float64, len(row))
			for j, v := range row {
				shifts[i][j] = v / 100
			}
		}
	}
	m, err := volatility.NewMatrixSurface(volatility.MatrixConfig{
		TimelineConfig: tl,
		Vols:           vols,
		Shifts:         shifts,
		Type:           volatility.ShiftedLognormal,
	})
	if err != nil {
		return nil, fmt.Errorf("atm: %w", err)
	}
	return m, nil
}

func (p ParamsInput) apply(base sabr.Parameters) sabr.Parameters {
	if p.Alpha != nil {
		base.Alpha = *p.Alpha
	}
	if p.Beta != nil {
		base.Beta = *p.Beta
	}
	if p.Nu != nil {
		base.Nu = *p.Nu
	}
	if p.Rho != nil {
		base.Rho = *p.Rho
	}
	return base
}

func querySmile(c *cube.SabrCube, q QueryInput, extrapolate bool) (SmileOutput, error) {
	opt, err := tenor.Parse(q.OptionTenor)
	if err != nil {
		return SmileOutput{}, fmt.Errorf("invalid query option_tenor: %v", err)
	}
	swp, err := tenor.Parse(q.SwapTenor)
	if err != nil {
		return SmileOutput{}, fmt.Errorf("invalid query swap_tenor: %v", err)
	}
	ss, err := c.SmileSectionForTenors(opt, swp, extrapolate)
	if err != nil {
		return SmileOutput{}, fmt.Errorf("%s x %s: %w", opt, swp, err)
	}
	fwd := ss.ATMLevel()
	out := SmileOutput{
		OptionTenor: opt.String(),
		SwapTenor:   swp.String(),
		OptionTime:  ss.ExerciseTime(),
		ForwardPct:  fwd * 100,
		ShiftPct:    ss.Shift() * 100,
	}
	for _, bp := range q.StrikesBP {
		k := fwd + bp/1e4
		out.StrikesPct = append(out.StrikesPct, k*100)
		out.VolsPct = append(out.VolsPct, ss.Volatility(k)*100)
	}
	return out, nil
}

func sparseKnots(c *cube.SabrCube) ([]KnotOutput, error) {
	var out []KnotOutput
	for _, opt := range c.OptionTenors() {
		for _, swp := range c.SwapTenors() {
			r, err := c.SparseResult(opt, swp)
			if err != nil {
				return nil, err
			}
			out = append(out, KnotOutput{
				OptionTenor: opt.String(),
				SwapTenor:   swp.String(),
				Alpha:       r.Params.Alpha,
				Beta:        r.Params.Beta,
				Nu:          r.Params.Nu,
				Rho:         r.Params.Rho,
				ForwardPct:  r.Forward * 100,
				RMSError:    r.RMSError,
				MaxError:    r.MaxError,
				EndCriteria: r.EndCriteria.String(),
				Attempts:    r.Attempts,
			})
		}
	}
	return out, nil
}

func dump(c *cube.SabrCube, out *ScenarioOutput, dense bool) error {
	m, err := c.MarketVolCube()
	if err != nil {
		return err
	}
	out.MarketVolCube = rowsOf(m)
	if m, err = c.SparseParameters(); err != nil {
		return err
	}
	out.SparseParameters = rowsOf(m)
	if !dense {
		return nil
	}
	if m, err = c.ATMCalibratedCube(); err != nil {
		return err
	}
	out.ATMCalibratedCube = rowsOf(m)
	if m, err = c.DenseParameters(); err != nil {
		return err
	}
	out.DenseParameters = rowsOf(m)
	return nil
}

func rowsOf(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
