// Package config handles workspace configuration for virtual-pointer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: VPOINTER_OUTPUTDIR,
// VPOINTER_DURATIONS_PRESS and so on.
const EnvPrefix = "VPOINTER"

// FileNames are the config files LoadFromDir looks for, in order.
var FileNames = []string{"virtual-pointer.yaml", "virtual-pointer.yml"}

// Config represents the workspace configuration (virtual-pointer.yaml).
type Config struct {
	// Flow selection
	Flows       []string `mapstructure:"flows"`       // Files or directories to run
	IncludeTags []string `mapstructure:"includeTags"` // Tags to include
	ExcludeTags []string `mapstructure:"excludeTags"` // Tags to exclude
	Scene       string   `mapstructure:"scene"`       // Scene for flows that name none

	// Execution settings
	Env         map[string]string `mapstructure:"env"`         // Variables for every flow
	Durations   Durations         `mapstructure:"durations"`   // Pointer timing tunables
	AutoReset   *bool             `mapstructure:"autoReset"`   // nil keeps the pointer default
	Touch       *bool             `mapstructure:"touch"`       // nil probes the scene
	StepTimeout int               `mapstructure:"stepTimeout"` // ms per gesture, 0 = none
	Parallelism int               `mapstructure:"parallelism"` // Concurrent flows, 0 = sequential

	// Simulated time: gestures run on a fake clock advanced TickResolution
	// per zero-delay tick instead of waiting on the wall clock.
	Simulate       bool `mapstructure:"simulate"`
	TickResolution int  `mapstructure:"tickResolution"` // ms

	// Output
	OutputDir string `mapstructure:"outputDir"`
	LogLevel  string `mapstructure:"logLevel"`

	// Source is the file the config was read from, empty for defaults.
	Source string `mapstructure:"-"`
}

// Durations are the pointer timing tunables in milliseconds.
type Durations struct {
	Press     int `mapstructure:"press"`
	DoubleTap int `mapstructure:"doubleTap"`
	Flick     int `mapstructure:"flick"`
}

// DefaultConfig provides the defaults every load starts from.
var DefaultConfig = Config{
	Durations: Durations{
		Press:     25,
		DoubleTap: 25,
		Flick:     25,
	},
	StepTimeout:    30000,
	TickResolution: 1,
	OutputDir:      "reports",
	LogLevel:       "info",
}

// StepTimeoutDuration returns StepTimeout as a time.Duration.
func (c *Config) StepTimeoutDuration() time.Duration {
	return time.Duration(c.StepTimeout) * time.Millisecond
}

// TickResolutionDuration returns TickResolution as a time.Duration.
func (c *Config) TickResolutionDuration() time.Duration {
	return time.Duration(c.TickResolution) * time.Millisecond
}

// Validate reports settings no run can use.
func (c *Config) Validate() error {
	var errs []error
	if c.Durations.Press < 0 || c.Durations.DoubleTap < 0 || c.Durations.Flick < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.StepTimeout < 0 {
		errs = append(errs, errors.New("stepTimeout must not be negative"))
	}
	if c.Parallelism < 0 {
		errs = append(errs, errors.New("parallelism must not be negative"))
	}
	if c.TickResolution <= 0 {
		errs = append(errs, errors.New("tickResolution must be positive"))
	}
	return errors.Join(errs...)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("durations.press", DefaultConfig.Durations.Press)
	v.SetDefault("durations.doubleTap", DefaultConfig.Durations.DoubleTap)
	v.SetDefault("durations.flick", DefaultConfig.Durations.Flick)
	v.SetDefault("stepTimeout", DefaultConfig.StepTimeout)
	v.SetDefault("parallelism", DefaultConfig.Parallelism)
	v.SetDefault("simulate", DefaultConfig.Simulate)
	v.SetDefault("tickResolution", DefaultConfig.TickResolution)
	v.SetDefault("outputDir", DefaultConfig.OutputDir)
	v.SetDefault("logLevel", DefaultConfig.LogLevel)
	v.SetDefault("scene", DefaultConfig.Scene)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are only seen by Unmarshal when bound
	_ = v.BindEnv("autoReset")
	_ = v.BindEnv("touch")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfg.Source, err)
	}
	return cfg, nil
}

// Load loads configuration from a file, then applies environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return decode(v)
}

// LoadFromDir looks for virtual-pointer.yaml or virtual-pointer.yml in the
// directory. Without one it returns the defaults with environment overrides.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}
	return decode(newViper())
}

// Discover loads the config an invocation should use: the explicit path when
// given, else the working directory's file, else the one in GetHome.
func Discover(explicit, workDir string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	for _, dir := range []string{workDir, GetHome()} {
		for _, name := range FileNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return LoadFromDir(dir)
			}
		}
	}
	return LoadFromDir(workDir)
}
