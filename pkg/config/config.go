// Package config provides configuration loading and management for needle.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Estimator method names accepted in Estimator.Method
const (
	MethodCovariance = "covariance"
	MethodGaussian   = "gaussian"
)

// Batch failure policies accepted in Batch.FailurePolicy
const (
	PolicySkip  = "skip"
	PolicyAbort = "abort"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Preprocessing parameters
	Preprocessing struct {
		// PrimarySigma is the threshold, in standard deviations above the
		// mean, used to isolate the wire in the raw frame
		PrimarySigma float64 `yaml:"primarySigma"`

		// BlurSigma is the Gaussian blur sigma applied to the cropped ROI
		BlurSigma float64 `yaml:"blurSigma"`

		// MaskSigma is the threshold used to crush near-black pixels after blurring
		MaskSigma float64 `yaml:"maskSigma"`

		// PaddingFraction widens the ROI by this fraction of the largest image dimension
		PaddingFraction float64 `yaml:"paddingFraction"`

		// MaskEnabled toggles the final re-mask step
		MaskEnabled bool `yaml:"maskEnabled"`

		// Connectivity is 4 or 8
		Connectivity int `yaml:"connectivity"`
	} `yaml:"preprocessing"`

	// Estimator parameters
	Estimator struct {
		// Method selects the orientation estimator: covariance or gaussian
		Method string `yaml:"method"`

		// GuessSigma is the initial Gaussian width guess for row fitting
		GuessSigma float64 `yaml:"guessSigma"`

		// MaxIterations bounds the number of rotations the aligner may apply
		MaxIterations int `yaml:"maxIterations"`

		// ToleranceDegrees is the residual angle below which alignment stops
		ToleranceDegrees float64 `yaml:"toleranceDegrees"`
	} `yaml:"estimator"`

	// Batch parameters
	Batch struct {
		// Workers is the number of frames processed concurrently
		Workers int `yaml:"workers"`

		// FailurePolicy is skip or abort
		FailurePolicy string `yaml:"failurePolicy"`

		// Rectify applies the circular range minimizer to the finished series
		Rectify bool `yaml:"rectify"`

		// Period is the angular period in degrees used by rectification
		Period float64 `yaml:"period"`
	} `yaml:"batch"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// SaveIntermediaryResults writes each processed ROI to IntermediaryDir
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where processed ROIs are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// SeriesFile is the CSV file the angle series is written to
		SeriesFile string `yaml:"seriesFile"`

		// PlotFile is the image file the angle series is plotted to, empty to skip
		PlotFile string `yaml:"plotFile"`

		// AxesDir receives a principal-axes overlay per frame, empty to skip
		AxesDir string `yaml:"axesDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Preprocessing.PrimarySigma = 3
	cfg.Preprocessing.BlurSigma = 1
	cfg.Preprocessing.MaskSigma = -0.5
	cfg.Preprocessing.PaddingFraction = 0.03
	cfg.Preprocessing.MaskEnabled = true
	cfg.Preprocessing.Connectivity = 4

	cfg.Estimator.Method = MethodCovariance
	cfg.Estimator.GuessSigma = 3
	cfg.Estimator.MaxIterations = 20
	cfg.Estimator.ToleranceDegrees = 5

	cfg.Batch.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Batch.FailurePolicy = PolicySkip
	cfg.Batch.Rectify = false
	cfg.Batch.Period = 180

	cfg.Output.Verbose = false
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.SeriesFile = "angles.csv"

	return cfg
}

// Validate checks that every option holds a usable value
func (c *Config) Validate() error {
	switch c.Estimator.Method {
	case MethodCovariance, MethodGaussian:
	default:
		return fmt.Errorf("unknown estimator method %q", c.Estimator.Method)
	}
	switch c.Batch.FailurePolicy {
	case PolicySkip, PolicyAbort:
	default:
		return fmt.Errorf("unknown failure policy %q", c.Batch.FailurePolicy)
	}
	if c.Preprocessing.Connectivity != 4 && c.Preprocessing.Connectivity != 8 {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", c.Preprocessing.Connectivity)
	}
	if c.Preprocessing.PaddingFraction < 0 {
		return fmt.Errorf("paddingFraction must be non-negative, got %g", c.Preprocessing.PaddingFraction)
	}
	if c.Estimator.GuessSigma <= 0 {
		return fmt.Errorf("guessSigma must be positive, got %g", c.Estimator.GuessSigma)
	}
	if c.Estimator.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be non-negative, got %d", c.Estimator.MaxIterations)
	}
	if c.Estimator.ToleranceDegrees <= 0 {
		return fmt.Errorf("toleranceDegrees must be positive, got %g", c.Estimator.ToleranceDegrees)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Batch.Period <= 0 {
		return fmt.Errorf("period must be positive, got %g", c.Batch.Period)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Keys missing from the file keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
