// Package config loads Bridge configuration from an optional per-project
// YAML file plus UNITYCTL_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved bridge daemon configuration.
type Config struct {
	// Listen is the loopback host the HTTP front end binds to. The bridge
	// never binds a non-loopback address.
	Listen string

	// Port is the requested listen port; 0 picks an ephemeral port.
	Port int

	// LogBufferSize is the capacity of the unified log ring.
	LogBufferSize int

	// EditorLogPath is the file the editor writes its own log to, tailed as
	// source=editor entries. Relative paths resolve against the project root.
	EditorLogPath string

	// HistoryPath is the bbolt journal of completed RPCs.
	HistoryPath string

	Timeouts Timeouts
}

// Timeouts holds the logical deadlines for peer operations.
type Timeouts struct {
	Default           time.Duration
	Refresh           time.Duration
	Test              time.Duration
	Build             time.Duration
	ReloadGrace       time.Duration
	Ready             time.Duration
	ExitCompileWindow time.Duration
}

// fileConfig is the YAML shape of .unityctl/config.yaml. Durations are
// strings parsed by time.ParseDuration.
type fileConfig struct {
	Listen string `yaml:"listen"`
	Port   int    `yaml:"port"`
	Logs   struct {
		BufferSize    int    `yaml:"buffer_size"`
		EditorLogPath string `yaml:"editor_log_path"`
	} `yaml:"logs"`
	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`
	Timeouts struct {
		Default           string `yaml:"default"`
		Refresh           string `yaml:"refresh"`
		Test              string `yaml:"test"`
		Build             string `yaml:"build"`
		ReloadGrace       string `yaml:"reload_grace"`
		Ready             string `yaml:"ready"`
		ExitCompileWindow string `yaml:"exit_compile_window"`
	} `yaml:"timeouts"`
}

// Load resolves the configuration for a project root: defaults, then the
// optional YAML file, then UNITYCTL_* environment variables (which win).
func Load(projectRoot string) (*Config, error) {
	cfg := defaults(projectRoot)

	path := filepath.Join(projectRoot, ".unityctl", "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
		applyFile(cfg, &fc, projectRoot)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults(projectRoot string) *Config {
	return &Config{
		Listen:        "127.0.0.1",
		Port:          0,
		LogBufferSize: 1000,
		EditorLogPath: filepath.Join(projectRoot, ".unityctl", "editor.log"),
		HistoryPath:   filepath.Join(projectRoot, ".unityctl", "history.db"),
		Timeouts: Timeouts{
			Default:           30 * time.Second,
			Refresh:           120 * time.Second,
			Test:              600 * time.Second,
			Build:             600 * time.Second,
			ReloadGrace:       60 * time.Second,
			Ready:             5 * time.Second,
			ExitCompileWindow: 2 * time.Second,
		},
	}
}

func applyFile(cfg *Config, fc *fileConfig, projectRoot string) {
	if fc.Listen != "" {
		cfg.Listen = fc.Listen
	}
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.Logs.BufferSize > 0 {
		cfg.LogBufferSize = fc.Logs.BufferSize
	}
	if fc.Logs.EditorLogPath != "" {
		cfg.EditorLogPath = resolvePath(projectRoot, fc.Logs.EditorLogPath)
	}
	if fc.History.Path != "" {
		cfg.HistoryPath = resolvePath(projectRoot, fc.History.Path)
	}
	t := &cfg.Timeouts
	t.Default = ParseDuration(fc.Timeouts.Default, t.Default)
	t.Refresh = ParseDuration(fc.Timeouts.Refresh, t.Refresh)
	t.Test = ParseDuration(fc.Timeouts.Test, t.Test)
	t.Build = ParseDuration(fc.Timeouts.Build, t.Build)
	t.ReloadGrace = ParseDuration(fc.Timeouts.ReloadGrace, t.ReloadGrace)
	t.Ready = ParseDuration(fc.Timeouts.Ready, t.Ready)
	t.ExitCompileWindow = ParseDuration(fc.Timeouts.ExitCompileWindow, t.ExitCompileWindow)
}

// ParseDuration parses a duration string with a fallback.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func resolvePath(projectRoot, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectRoot, p)
}
