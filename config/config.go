// Package config defines the runtime configuration for insitu and
// provides helpers for parsing tunnel specifications.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	ncerr "insitu/internal/errors"
	"insitu/util"
)

// Config holds every tuneable for one insitu process.
type Config struct {
	// ── Listener ─────────────────────────────────────────────────────
	BindAddress string
	Port        int
	MaxSessions int // worker pool capacity, 0 = unbounded
	ReusePort   bool

	// ── Session (0 = block, the default) ─────────────────────────────
	ReadTimeout    time.Duration
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// ── SSH tunnel for callback dials ────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Probe ────────────────────────────────────────────────────────
	ProbeTarget  string // raw host[:port] from -P
	ProbeHost    string
	ProbePort    int
	CallbackPort int // 0 = ephemeral
	ProbeTimeout time.Duration
	ProbeRetries int
	DNSHost      string
	DNSExpect    string

	// ── Output ───────────────────────────────────────────────────────
	Verbose     int
	LogFile     string
	ShowMetrics bool
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		BindAddress:  DefaultBindAddress,
		Port:         DefaultPort,
		MaxSessions:  DefaultMaxSessions,
		ProbeTimeout: DefaultProbeTimeout,
		ProbeRetries: DefaultProbeRetries,
		Verbose:      DefaultVerbosity,
	}
}

// ListenAddress is the host:port the listener binds.
func (c *Config) ListenAddress() string {
	return util.FormatAddr(c.BindAddress, c.Port)
}

// Probing reports whether the process runs the client-side probe
// instead of the listener.
func (c *Config) Probing() bool { return c.ProbeTarget != "" }

// ResolveProbeTarget splits ProbeTarget into ProbeHost/ProbePort,
// defaulting the port to the configured listener port.
func (c *Config) ResolveProbeTarget() error {
	host, port, err := util.SplitHostPortDefault(c.ProbeTarget, c.Port)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "probe",
			Value:   c.ProbeTarget,
			Message: err.Error(),
			Hint:    "expected host or host:port, e.g. --probe insitu.example.com:9999",
		}
	}
	c.ProbeHost = host
	c.ProbePort = port
	return nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    "the default listener port is 9999",
		}
	}

	if c.Probing() {
		return c.validateProbe()
	}

	if net.ParseIP(c.BindAddress) == nil {
		return &ncerr.ConfigError{
			Field:   "bind",
			Value:   c.BindAddress,
			Message: "not an IP address",
			Hint:    "use 0.0.0.0 to listen on every interface",
		}
	}
	if c.MaxSessions < 0 {
		return &ncerr.ConfigError{
			Field:   "max-sessions",
			Value:   c.MaxSessions,
			Message: "must not be negative",
			Hint:    "0 leaves the pool unbounded",
		}
	}
	for _, d := range []struct {
		field string
		v     time.Duration
	}{
		{"read-timeout", c.ReadTimeout},
		{"connect-timeout", c.ConnectTimeout},
		{"write-timeout", c.WriteTimeout},
	} {
		if d.v < 0 {
			return &ncerr.ConfigError{Field: d.field, Value: d.v, Message: "must not be negative"}
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	return nil
}

func (c *Config) validateProbe() error {
	if c.TunnelEnabled {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "not supported with --probe",
			Hint:    "the server would call back the SSH gateway instead of this host",
		}
	}
	if c.ProbeHost == "" {
		if err := c.ResolveProbeTarget(); err != nil {
			return err
		}
	}
	if c.CallbackPort < 0 || c.CallbackPort > 65535 {
		return &ncerr.ConfigError{
			Field:   "callback-port",
			Value:   c.CallbackPort,
			Message: "out of range 0-65535",
			Hint:    "0 picks an ephemeral port",
		}
	}
	if c.ProbeTimeout <= 0 {
		return &ncerr.ConfigError{Field: "probe-timeout", Value: c.ProbeTimeout, Message: "must be positive"}
	}
	if c.ProbeRetries < 1 {
		return &ncerr.ConfigError{Field: "retries", Value: c.ProbeRetries, Message: "must be at least 1"}
	}
	if c.DNSExpect != "" {
		if c.DNSHost == "" {
			return &ncerr.ConfigError{
				Field:   "dns-host",
				Message: "required with --dns-expect",
				Hint:    "name the host whose A record should match",
			}
		}
		if net.ParseIP(c.DNSExpect) == nil {
			return &ncerr.ConfigError{Field: "dns-expect", Value: c.DNSExpect, Message: "not an IP address"}
		}
	}
	return nil
}
