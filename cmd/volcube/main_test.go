package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/volcube/config"
	"github.com/meenmo/volcube/cube"
	"github.com/meenmo/volcube/sabr"
	"github.com/meenmo/volcube/settings"
)

const flatScenario = `{
  "task_id": "flat",
  "reference_date": "2025-01-06",
  "currency": "EUR",
  "curve": {"flat_rate": 3.0},
  "short_index_tenor": "1Y",
  "long_index_tenor": "10Y",
  "atm": {
    "option_tenors": ["1Y", "3Y", "5Y"],
    "swap_tenors": ["2Y", "5Y", "10Y"],
    "vols": [[20, 20, 20], [20, 20, 20], [20, 20, 20]]
  },
  "option_tenors": ["1Y", "5Y"],
  "swap_tenors": ["2Y", "10Y"],
  "strike_spreads_bp": [-100, 0, 100],
  "spread_vols": [[0, 0, 0], [0, 0, 0], [0, 0, 0], [0, 0, 0]],
  "guess": {"alpha": 0.1, "beta": 1, "nu": 0, "rho": 0},
  "fixed": {"beta": true, "nu": true, "rho": true},
  "atm_calibrated": true,
  "queries": [{"option_tenor": "3Y", "swap_tenor": "5Y", "strikes_bp": [-50, 0, 50]}],
  "dump": true
}`

func runCLI(t *testing.T, input string, args ...string) (int, string, string) {
	t.Helper()
	t.Cleanup(func() {
		settings.SetEvaluationDate(time.Time{})
		config.SetConfig(config.DefaultConfig)
		cube.SetLogWriters(nil, nil, nil)
		sabr.SetLogWriters(nil, nil, nil)
	})
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(input), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunFlatScenario(t *testing.T) {
	code, stdout, stderr := runCLI(t, flatScenario)
	require.Equal(t, 0, code, stdout+stderr)

	var out ScenarioOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Empty(t, out.Error)
	assert.Equal(t, "flat", out.TaskID)
	assert.Equal(t, "2025-01-06", out.ReferenceDate)

	require.Len(t, out.Smiles, 1)
	s := out.Smiles[0]
	assert.Equal(t, "3Y", s.OptionTenor)
	assert.InDelta(t, 3.0, s.ForwardPct, 0.5)
	require.Len(t, s.VolsPct, 3)
	for _, v := range s.VolsPct {
		assert.InDelta(t, 20.0, v, 0.2)
	}

	require.Len(t, out.Knots, 4)
	for _, k := range out.Knots {
		assert.InDelta(t, 0.20, k.Alpha, 2e-3, "%s x %s", k.OptionTenor, k.SwapTenor)
		assert.Equal(t, 1.0, k.Beta)
	}
	assert.Len(t, out.MarketVolCube, 4)
	assert.Len(t, out.SparseParameters, 4)
	assert.Len(t, out.ATMCalibratedCube, 9)
	assert.Len(t, out.DenseParameters, 9)
}

func TestRunArrayAndErrors(t *testing.T) {
	bad := strings.Replace(flatScenario, `"task_id": "flat"`, `"task_id": "bad", "currency": "GBP"`, 1)
	bad = strings.Replace(bad, `"currency": "EUR",`, ``, 1)
	code, stdout, _ := runCLI(t, "["+flatScenario+","+bad+"]")
	assert.Equal(t, 1, code)

	var outs []ScenarioOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &outs))
	require.Len(t, outs, 2)
	assert.Empty(t, outs[0].Error)
	assert.Equal(t, "bad", outs[1].TaskID)
	assert.Contains(t, outs[1].Error, "GBP")
}

func TestRunInputErrors(t *testing.T) {
	code, stdout, _ := runCLI(t, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "empty input")

	code, stdout, _ = runCLI(t, "{not json")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "failed to parse JSON input")

	missingRow := strings.Replace(flatScenario, `[[0, 0, 0], [0, 0, 0], [0, 0, 0], [0, 0, 0]]`, `[[0, 0, 0]]`, 1)
	code, stdout, _ = runCLI(t, missingRow)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "spread rows")
}

func TestRunConfigAndPlot(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "calib.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("tolerance: 0.002\nmax_guesses: 5\n"), 0o644))
	plotPath := filepath.Join(dir, "smiles.png")

	code, stdout, stderr := runCLI(t, flatScenario, "-config", cfgPath, "-plot", plotPath, "-v")
	require.Equal(t, 0, code, stdout+stderr)
	assert.Equal(t, 0.002, config.GetConfig().Tolerance)
	assert.Contains(t, stderr, "recompute 1:")

	info, err := os.Stat(plotPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunBadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "calib.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("optimizer: newton\n"), 0o644))
	code, stdout, _ := runCLI(t, flatScenario, "-config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "unknown optimizer")
}

func TestRunBootstrappedCurve(t *testing.T) {
	in := strings.Replace(flatScenario, `"curve": {"flat_rate": 3.0}`,
		`"curve": {"par_rates": {"1Y": 2.5, "2Y": 2.6, "5Y": 2.75, "10Y": 2.9, "20Y": 3.0}}`, 1)
	code, stdout, stderr := runCLI(t, in)
	require.Equal(t, 0, code, stdout+stderr)

	var out ScenarioOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out.Smiles, 1)
	assert.InDelta(t, 2.9, out.Smiles[0].ForwardPct, 0.3)

	both := strings.Replace(flatScenario, `"curve": {"flat_rate": 3.0}`,
		`"curve": {"flat_rate": 3.0, "par_rates": {"1Y": 2.5}}`, 1)
	code, stdout, _ = runCLI(t, both)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "exactly one")
}
