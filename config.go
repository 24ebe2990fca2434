// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package castor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/castor/frame"
)

// Config is the engine configuration. The zero value is not valid; start
// from DefaultConfig.
type Config struct {
	// Renderer names the renderer plugin. Empty picks the best available.
	Renderer string `toml:"renderer"`
	// Technique names the render technique plugin.
	Technique   string   `toml:"technique"`
	ToneMapping string   `toml:"tone_mapping"`
	PostEffects []string `toml:"post_effects"`
	// PluginDirs are scanned for plugin libraries at startup.
	PluginDirs  []string `toml:"plugin_dirs"`
	Width       uint32   `toml:"width"`
	Height      uint32   `toml:"height"`
	SampleCount uint32   `toml:"sample_count"`
	// FrameRate caps Run at this many frames per second. Zero is unpaced.
	FrameRate int `toml:"frame_rate"`
	// EventFailurePolicy is "abort" or "continue".
	EventFailurePolicy string `toml:"event_failure_policy"`
	LogLevel           string `toml:"log_level"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Technique:          "forward",
		ToneMapping:        "linear",
		Width:              800,
		Height:             600,
		SampleCount:        4,
		FrameRate:          60,
		EventFailurePolicy: "abort",
		LogLevel:           "info",
	}
}

// LoadConfig reads a TOML configuration file. Keys missing from the file
// keep their DefaultConfig value.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("castor: load config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w (%s)", err, path)
	}
	return cfg, nil
}

// ParseConfig decodes TOML data over DefaultConfig and validates the
// result. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfig, strings.TrimSpace(strict.String()))
		}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return Config{}, fmt.Errorf("%w: line %d column %d: %v", ErrConfig, row, col, de)
		}
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Technique == "":
		return fmt.Errorf("%w: technique is empty", ErrConfig)
	case c.Width == 0 || c.Height == 0:
		return fmt.Errorf("%w: size %dx%d", ErrConfig, c.Width, c.Height)
	case c.FrameRate < 0:
		return fmt.Errorf("%w: frame rate %d", ErrConfig, c.FrameRate)
	}
	switch c.SampleCount {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: sample count %d", ErrConfig, c.SampleCount)
	}
	if _, err := frame.ParseFailurePolicy(c.EventFailurePolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Policy returns the frame event failure policy.
func (c Config) Policy() frame.FailurePolicy {
	p, _ := frame.ParseFailurePolicy(c.EventFailurePolicy)
	return p
}

// Level returns the log level. An empty level is Info.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrConfig, c.LogLevel)
	}
	return l, nil
}
