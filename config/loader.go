package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the INSITU_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Timeouts are whole
// seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	// Listener
	if v := os.Getenv("INSITU_BIND"); v != "" {
		cfg.BindAddress = v
	}
	if v := envInt("INSITU_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("INSITU_MAX_SESSIONS"); v > 0 {
		cfg.MaxSessions = v
	}
	if envBool("INSITU_REUSE_PORT") {
		cfg.ReusePort = true
	}

	// Session timeouts
	if v := envInt("INSITU_READ_TIMEOUT"); v > 0 {
		cfg.ReadTimeout = secondsDuration(v)
	}
	if v := envInt("INSITU_CONNECT_TIMEOUT"); v > 0 {
		cfg.ConnectTimeout = secondsDuration(v)
	}
	if v := envInt("INSITU_WRITE_TIMEOUT"); v > 0 {
		cfg.WriteTimeout = secondsDuration(v)
	}

	// SSH tunnel
	if v := os.Getenv("INSITU_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("INSITU_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("INSITU_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("INSITU_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("INSITU_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("INSITU_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Probe
	if v := os.Getenv("INSITU_PROBE"); v != "" {
		cfg.ProbeTarget = v
	}

	// Output
	if v := envInt("INSITU_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("INSITU_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
