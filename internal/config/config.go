// Package config loads the engine configuration. All fields have working
// defaults; a missing file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/samwillis/solidtype-core/internal/numeric"
)

// Tolerances overrides the numeric context.
type Tolerances struct {
	Length float64 `yaml:"length"`
	Angle  float64 `yaml:"angle"`
	Volume float64 `yaml:"volume"`
	Solve  float64 `yaml:"solve"`
}

// Config is the engine configuration.
type Config struct {
	LogLevel    string `yaml:"logLevel"`
	Development bool   `yaml:"development"`

	// DebounceMillis is the invalidation window; a burst of edits inside it
	// produces one rebuild.
	DebounceMillis int `yaml:"debounceMillis"`

	// ThroughAllDistance is the conventional magnitude for through-all
	// extents, in millimetres.
	ThroughAllDistance float64 `yaml:"throughAllDistance"`

	// DatumPlaneExtent is the display extent of datum planes.
	DatumPlaneExtent float64 `yaml:"datumPlaneExtent"`

	// Palette is cycled for bodies without an explicit color.
	Palette []string `yaml:"palette"`

	Tolerances Tolerances `yaml:"tolerances"`
}

// DefaultPalette is the six-entry body color cycle.
var DefaultPalette = []string{
	"#6699cc", "#99cc99", "#cc9999", "#cccc99", "#cc99cc", "#99cccc",
}

// Default returns the shipped configuration.
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		DebounceMillis:     16,
		ThroughAllDistance: 1000,
		DatumPlaneExtent:   100,
		Palette:            append([]string(nil), DefaultPalette...),
		Tolerances: Tolerances{
			Length: 1e-6,
			Angle:  1e-9,
			Volume: 1e-9,
			Solve:  1e-9,
		},
	}
}

// Load reads a yaml config file, filling unset fields with defaults. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DebounceMillis <= 0 {
		cfg.DebounceMillis = 16
	}
	if cfg.ThroughAllDistance <= 0 {
		cfg.ThroughAllDistance = 1000
	}
	if len(cfg.Palette) == 0 {
		cfg.Palette = append([]string(nil), DefaultPalette...)
	}
	return cfg, nil
}

// NumericContext materializes the tolerance settings.
func (c *Config) NumericContext() numeric.Context {
	ctx := numeric.Default()
	if c.Tolerances.Length > 0 {
		ctx.LengthEps = c.Tolerances.Length
	}
	if c.Tolerances.Angle > 0 {
		ctx.AngleEps = c.Tolerances.Angle
	}
	if c.Tolerances.Volume > 0 {
		ctx.VolumeEps = c.Tolerances.Volume
	}
	if c.Tolerances.Solve > 0 {
		ctx.SolveEps = c.Tolerances.Solve
	}
	return ctx
}
