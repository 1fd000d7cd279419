// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/avialle/rescan/pkg/logging"
	"github.com/avialle/rescan/services/analysis"
)

// Config is the rescan CLI configuration, loaded from
// ~/.rescan/rescan.yaml (or --config).
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Serve    ServeConfig    `yaml:"serve"`
}

// LogConfig controls CLI logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables file logging; supports ~ expansion.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`

	// Quiet disables stderr output.
	Quiet bool `yaml:"quiet"`
}

// ParsedLevel maps the configured level name to a logging.Level.
func (l LogConfig) ParsedLevel() logging.Level {
	switch l.Level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// AnalysisConfig tunes the analysis engine.
type AnalysisConfig struct {
	// ManageServers controls long-lived server management.
	ManageServers bool `yaml:"manage_servers"`

	// LogTailLines is how many server log lines "server log" shows.
	LogTailLines int `yaml:"log_tail_lines" validate:"gte=0,lte=10000"`

	// MaxConcurrentRuns bounds multi-file analyze fan-out.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" validate:"gte=0,lte=64"`

	// DebounceMillis is the watch-mode save debounce window.
	DebounceMillis int `yaml:"debounce_millis" validate:"gte=0,lte=60000"`
}

// ServiceConfig converts the YAML view into the engine configuration.
func (a AnalysisConfig) ServiceConfig() analysis.Config {
	svcCfg := analysis.DefaultConfig()
	svcCfg.ManageServers = a.ManageServers
	if a.LogTailLines > 0 {
		svcCfg.LogTailLines = a.LogTailLines
	}
	if a.MaxConcurrentRuns > 0 {
		svcCfg.MaxConcurrentRuns = a.MaxConcurrentRuns
	}
	return svcCfg
}

// Debounce returns the configured debounce window, or zero to use the
// watcher default.
func (a AnalysisConfig) Debounce() time.Duration {
	return time.Duration(a.DebounceMillis) * time.Millisecond
}

// ServeConfig configures the HTTP surface.
type ServeConfig struct {
	// Port for the HTTP listener.
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
			Dir:   "~/.rescan/logs",
		},
		Analysis: AnalysisConfig{
			ManageServers:     true,
			LogTailLines:      100,
			MaxConcurrentRuns: 4,
			DebounceMillis:    300,
		},
		Serve: ServeConfig{
			Port: 12270,
		},
	}
}

// LoadConfig reads and validates the configuration file, creating a
// default one on first run when the default path is used.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("could not find the user's home directory: %w", err)
		}
		path = filepath.Join(home, ".rescan", "rescan.yaml")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return Config{}, fmt.Errorf("config file %s does not exist", path)
		}
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	loaded := DefaultConfig()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := validator.New().Struct(loaded); err != nil {
		return Config{}, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return loaded, nil
}

// createDefault writes the default config file.
func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
