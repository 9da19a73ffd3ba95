package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/volcube/config"
)

func TestSetGetConfig(t *testing.T) {
	orig := config.GetConfig()
	defer config.SetConfig(orig)

	c := config.DefaultConfig
	c.MaxGuesses = 3
	config.SetConfig(c)
	assert.Equal(t, 3, config.GetConfig().MaxGuesses)
}

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, config.DefaultConfig.Validate())
}

func TestDefaultSolverBudget(t *testing.T) {
	c := config.DefaultConfig
	assert.Equal(t, 1, c.MinStrikes)
	assert.GreaterOrEqual(t, c.MaxIterations, 50*c.MaxStationaryIterations)
	assert.Greater(t, c.FunctionEpsilon, 1e-12)
}

func TestParseOverlay(t *testing.T) {
	c, err := config.Parse([]byte("tolerance: 0.0005\noptimizer: bfgs\nvega_weighted: false\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0005, c.Tolerance)
	assert.Equal(t, "bfgs", c.Optimizer)
	assert.False(t, c.VegaWeighted)
	assert.Equal(t, config.DefaultConfig.MaxGuesses, c.MaxGuesses)
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown optimizer": "optimizer: newton\n",
		"unknown key":       "tolerence: 0.1\n",
		"zero guesses":      "max_guesses: 0\n",
		"zero min strikes":  "min_strikes: 0\n",
		"bad acceptance":    "use_max_error: true\nacceptance: 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(doc))
			assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: 500\nseed: 7\n"), 0o600))
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, c.MaxIterations)
	assert.Equal(t, uint64(7), c.Seed)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
