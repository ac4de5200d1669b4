package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unityctl/unityctl/internal/protocol"
)

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != "127.0.0.1" {
		t.Errorf("Listen = %q, want loopback", cfg.Listen)
	}
	if cfg.Port != 0 {
		t.Errorf("Port = %d, want 0 (ephemeral)", cfg.Port)
	}
	if cfg.LogBufferSize != 1000 {
		t.Errorf("LogBufferSize = %d, want 1000", cfg.LogBufferSize)
	}
	if cfg.Timeouts.Default != 30*time.Second {
		t.Errorf("Default = %v, want 30s", cfg.Timeouts.Default)
	}
	if cfg.Timeouts.Refresh != 120*time.Second {
		t.Errorf("Refresh = %v, want 120s", cfg.Timeouts.Refresh)
	}
	if cfg.Timeouts.Test != 600*time.Second {
		t.Errorf("Test = %v, want 600s", cfg.Timeouts.Test)
	}
	if cfg.Timeouts.ReloadGrace != 60*time.Second {
		t.Errorf("ReloadGrace = %v, want 60s", cfg.Timeouts.ReloadGrace)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".unityctl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `
listen: 127.0.0.1
port: 43750
logs:
  buffer_size: 500
  editor_log_path: logs/editor.log
timeouts:
  default: 10s
  refresh: 1m
  reload_grace: 90s
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 43750 {
		t.Errorf("Port = %d, want 43750", cfg.Port)
	}
	if cfg.LogBufferSize != 500 {
		t.Errorf("LogBufferSize = %d, want 500", cfg.LogBufferSize)
	}
	if want := filepath.Join(root, "logs", "editor.log"); cfg.EditorLogPath != want {
		t.Errorf("EditorLogPath = %q, want %q", cfg.EditorLogPath, want)
	}
	if cfg.Timeouts.Default != 10*time.Second {
		t.Errorf("Default = %v, want 10s", cfg.Timeouts.Default)
	}
	if cfg.Timeouts.Refresh != time.Minute {
		t.Errorf("Refresh = %v, want 1m", cfg.Timeouts.Refresh)
	}
	if cfg.Timeouts.ReloadGrace != 90*time.Second {
		t.Errorf("ReloadGrace = %v, want 90s", cfg.Timeouts.ReloadGrace)
	}
	// Unset keys keep their defaults.
	if cfg.Timeouts.Test != 600*time.Second {
		t.Errorf("Test = %v, want the 600s default", cfg.Timeouts.Test)
	}
}

func TestLoadBadYAML(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".unityctl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("listen: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestEnvOverridesWin(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvTimeoutDefault, "45")
	t.Setenv(EnvTimeoutRefresh, "180")
	t.Setenv(EnvTimeoutTest, "900")
	t.Setenv(EnvTimeoutBuild, "1200")
	t.Setenv(EnvDomainReloadGrace, "120")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeouts.Default != 45*time.Second {
		t.Errorf("Default = %v, want 45s", cfg.Timeouts.Default)
	}
	if cfg.Timeouts.Refresh != 180*time.Second {
		t.Errorf("Refresh = %v, want 180s", cfg.Timeouts.Refresh)
	}
	if cfg.Timeouts.Test != 900*time.Second {
		t.Errorf("Test = %v, want 900s", cfg.Timeouts.Test)
	}
	if cfg.Timeouts.Build != 1200*time.Second {
		t.Errorf("Build = %v, want 1200s", cfg.Timeouts.Build)
	}
	if cfg.Timeouts.ReloadGrace != 120*time.Second {
		t.Errorf("ReloadGrace = %v, want 120s", cfg.Timeouts.ReloadGrace)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvTimeoutDefault, "not-a-number")
	t.Setenv(EnvTimeoutRefresh, "-5")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeouts.Default != 30*time.Second {
		t.Errorf("Default = %v, want the 30s default", cfg.Timeouts.Default)
	}
	if cfg.Timeouts.Refresh != 120*time.Second {
		t.Errorf("Refresh = %v, want the 120s default", cfg.Timeouts.Refresh)
	}
}

func TestTimeoutsFor(t *testing.T) {
	tm := Timeouts{
		Default: 30 * time.Second,
		Refresh: 120 * time.Second,
		Test:    600 * time.Second,
		Build:   600 * time.Second,
	}

	cases := []struct {
		command string
		args    map[string]any
		want    time.Duration
	}{
		{protocol.CmdSceneList, nil, 30 * time.Second},
		{protocol.CmdAssetRefresh, nil, 120 * time.Second},
		{protocol.CmdAssetReimportAll, nil, 120 * time.Second},
		{protocol.CmdTestRun, nil, 600 * time.Second},
		{protocol.CmdBuildPlayer, nil, 600 * time.Second},
		{protocol.CmdPlayEnter, nil, 120 * time.Second},
		{protocol.CmdPlayToggle, nil, 120 * time.Second},
		{protocol.CmdRecordStart, map[string]any{"duration": 10.0}, 70 * time.Second},
		{protocol.CmdRecordStart, map[string]any{"duration": 30}, 90 * time.Second},
		{protocol.CmdRecordStart, nil, 30 * time.Second},
		{protocol.CmdRecordStop, nil, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := tm.For(tc.command, tc.args); got != tc.want {
			t.Errorf("For(%q, %v) = %v, want %v", tc.command, tc.args, got, tc.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	if d := ParseDuration("90s", time.Second); d != 90*time.Second {
		t.Errorf("ParseDuration(90s) = %v", d)
	}
	if d := ParseDuration("", 5*time.Second); d != 5*time.Second {
		t.Errorf("empty string fallback = %v", d)
	}
	if d := ParseDuration("bogus", 5*time.Second); d != 5*time.Second {
		t.Errorf("bad string fallback = %v", d)
	}
}
