package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variables recognized by the Bridge. Each is an integer number
// of seconds and overrides the corresponding file/default value.
const (
	EnvTimeoutDefault    = "UNITYCTL_TIMEOUT_DEFAULT"
	EnvTimeoutRefresh    = "UNITYCTL_TIMEOUT_REFRESH"
	EnvTimeoutTest       = "UNITYCTL_TIMEOUT_TEST"
	EnvTimeoutBuild      = "UNITYCTL_TIMEOUT_BUILD"
	EnvDomainReloadGrace = "UNITYCTL_DOMAIN_RELOAD_GRACE"
)

func applyEnv(cfg *Config) {
	t := &cfg.Timeouts
	t.Default = envSeconds(EnvTimeoutDefault, t.Default)
	t.Refresh = envSeconds(EnvTimeoutRefresh, t.Refresh)
	t.Test = envSeconds(EnvTimeoutTest, t.Test)
	t.Build = envSeconds(EnvTimeoutBuild, t.Build)
	t.ReloadGrace = envSeconds(EnvDomainReloadGrace, t.ReloadGrace)
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
