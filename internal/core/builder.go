package core

import (
	"time"

	"insitu/config"
	"insitu/internal/capability"
	"insitu/internal/metrics"
	"insitu/internal/retry"
	"insitu/internal/transport"
	"insitu/tunnel"
	"insitu/util"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	if cfg.Probing() {
		return buildProbe(cfg, logger)
	}
	return buildListen(cfg, logger, m), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildListen(cfg *config.Config, logger *util.Logger, m *metrics.Collector) Mode {
	dialer := buildDialer(cfg, cfg.ConnectTimeout, logger)
	return &ListenMode{
		Address:     cfg.ListenAddress(),
		ReusePort:   cfg.ReusePort,
		MaxSessions: cfg.MaxSessions,
		Capability: &capability.CallbackEcho{
			Dialer:       dialer,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Metrics:      m,
		},
		Dialer:  dialer,
		Metrics: m,
		Logger:  logger,
	}
}

func buildProbe(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.ProbeHost == "" {
		if err := cfg.ResolveProbeTarget(); err != nil {
			return nil, err
		}
	}

	b := retry.DefaultBackoff()
	b.MaxAttempts = cfg.ProbeRetries

	return &ProbeMode{
		Dialer:       buildDialer(cfg, cfg.ProbeTimeout, logger),
		Server:       util.FormatAddr(cfg.ProbeHost, cfg.ProbePort),
		CallbackPort: cfg.CallbackPort,
		Timeout:      cfg.ProbeTimeout,
		Backoff:      b,
		DNSHost:      cfg.DNSHost,
		DNSExpect:    cfg.DNSExpect,
		Logger:       logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, timeout time.Duration, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(tunnel.NewSSHConfig(cfg), timeout, logger)
	}
	return &transport.TCPDialer{Timeout: timeout}
}
