package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultBindAddress listens on every IPv4 interface.
	DefaultBindAddress = "0.0.0.0"

	// DefaultPort is the listener port clients connect to.
	DefaultPort = 9999

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultMaxSessions of 0 leaves the worker pool unbounded.
	DefaultMaxSessions = 0

	// DefaultConnTimeout bounds the SSH gateway handshake.
	DefaultConnTimeout = 30 * time.Second

	// DefaultGracePeriod is how long shutdown waits for in-flight
	// sessions after their sockets are closed.
	DefaultGracePeriod = 5 * time.Second

	// DefaultProbeTimeout bounds each network step of a probe.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultProbeRetries is the number of attempts the probe makes to
	// reach the server.
	DefaultProbeRetries = 3

	// DefaultVerbosity shows the per-session status lines.
	DefaultVerbosity = 1
)
