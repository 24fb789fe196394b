package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"insitu/tunnel"
	"insitu/util"
)

// SSHDialer routes connections through an SSH tunnel.  The tunnel is
// connected lazily on the first Dial, re-established if the gateway
// drops it between sessions, and torn down on Close.
type SSHDialer struct {
	Timeout time.Duration // per-dial bound, 0 = none

	tunnel    tunnel.Tunnel
	logger    *util.Logger
	mu        sync.Mutex
	connected bool
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH tunnel to the configured gateway.
func NewSSHDialer(cfg *tunnel.SSHConfig, timeout time.Duration, logger *util.Logger) *SSHDialer {
	return NewTunnelDialer(tunnel.NewSSHTunnel(cfg, logger), timeout, logger)
}

// NewTunnelDialer wraps an arbitrary Tunnel.
func NewTunnelDialer(t tunnel.Tunnel, timeout time.Duration, logger *util.Logger) *SSHDialer {
	return &SSHDialer{Timeout: timeout, tunnel: t, logger: logger}
}

// connect establishes the tunnel if it is not up.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		if d.tunnel.IsAlive() {
			return nil
		}
		d.logger.Warn("ssh tunnel lost, reconnecting")
		d.tunnel.Close() //nolint:errcheck
		d.connected = false
	}

	d.logger.Verbose("establishing ssh tunnel")
	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}

	d.connected = true
	d.logger.Verbose("ssh tunnel established")
	return nil
}

// Dial connects to address through the SSH tunnel.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		d.connected = false
		return d.tunnel.Close()
	}
	return nil
}
