// Package config holds the calibration solver defaults shared by the sabr and
// cube packages.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is returned by Validate and Load for unusable settings.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds smile calibration parameters.
type Config struct {
	// Tolerance bounds the root-mean-square fit error of an accepted knot.
	Tolerance float64 `yaml:"tolerance"`

	// Acceptance bounds the largest pointwise fit error when UseMaxError is set.
	Acceptance float64 `yaml:"acceptance"`

	// UseMaxError switches the acceptance test from RMS to max error.
	UseMaxError bool `yaml:"use_max_error"`

	// VegaWeighted weights each quote by its normalized Black vega.
	VegaWeighted bool `yaml:"vega_weighted"`

	// MaxIterations is the optimizer iteration limit per attempt. Hitting it
	// fails the attempt.
	MaxIterations int `yaml:"max_iterations"`

	// MaxStationaryIterations ends an attempt once the objective has not
	// moved by more than FunctionEpsilon for this many iterations.
	MaxStationaryIterations int `yaml:"max_stationary_iterations"`

	// FunctionEpsilon is the stationarity threshold on the objective,
	// relative to its current value.
	FunctionEpsilon float64 `yaml:"function_epsilon"`

	// MaxGuesses is the number of calibration attempts per knot; attempts
	// after the first start from random guesses.
	MaxGuesses int `yaml:"max_guesses"`

	// MinStrikes is the fewest strikes above the cutoff a knot needs before a
	// fit is attempted. An underdetermined fit is allowed.
	MinStrikes int `yaml:"min_strikes"`

	// CutoffStrike is the lowest admissible shifted strike.
	CutoffStrike float64 `yaml:"cutoff_strike"`

	// Optimizer is one of "simplex", "bfgs" or "lbfgs".
	Optimizer string `yaml:"optimizer"`

	// Seed drives the random restart guesses.
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig provides production defaults.
var DefaultConfig = Config{
	Tolerance:               1e-3,
	Acceptance:              2e-3,
	UseMaxError:             false,
	VegaWeighted:            true,
	MaxIterations:           10000,
	MaxStationaryIterations: 100,
	FunctionEpsilon:         1e-8,
	MaxGuesses:              50,
	MinStrikes:              1,
	CutoffStrike:            1e-4,
	Optimizer:               "simplex",
	Seed:                    42,
}

// cfg is the active configuration. Defaults to DefaultConfig.
var cfg = DefaultConfig

// SetConfig replaces the active configuration.
func SetConfig(c Config) {
	cfg = c
}

// GetConfig returns the active configuration.
func GetConfig() Config {
	return cfg
}

// Validate checks ranges and the optimizer name.
func (c Config) Validate() error {
	switch {
	case c.Tolerance <= 0:
		return fmt.Errorf("%w: tolerance %g must be positive", ErrInvalidConfig, c.Tolerance)
	case c.UseMaxError && c.Acceptance <= 0:
		return fmt.Errorf("%w: acceptance %g must be positive", ErrInvalidConfig, c.Acceptance)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max_iterations %d", ErrInvalidConfig, c.MaxIterations)
	case c.MaxStationaryIterations < 1:
		return fmt.Errorf("%w: max_stationary_iterations %d", ErrInvalidConfig, c.MaxStationaryIterations)
	case c.FunctionEpsilon < 0:
		return fmt.Errorf("%w: function_epsilon %g", ErrInvalidConfig, c.FunctionEpsilon)
	case c.MaxGuesses < 1:
		return fmt.Errorf("%w: max_guesses %d", ErrInvalidConfig, c.MaxGuesses)
	case c.MinStrikes < 1:
		return fmt.Errorf("%w: min_strikes %d", ErrInvalidConfig, c.MinStrikes)
	}
	switch c.Optimizer {
	case "simplex", "bfgs", "lbfgs":
	default:
		return fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, c.Optimizer)
	}
	return nil
}

// Parse overlays YAML settings on DefaultConfig. Keys absent from data keep
// their defaults.
func Parse(data []byte) (Config, error) {
	c := DefaultConfig
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads a YAML file and overlays it on DefaultConfig.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}
