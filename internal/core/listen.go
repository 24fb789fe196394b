package core

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/panjf2000/ants/v2"

	"insitu/config"
	"insitu/internal/capability"
	ncerr "insitu/internal/errors"
	"insitu/internal/metrics"
	"insitu/internal/session"
	"insitu/internal/transport"
	"insitu/util"
)

// ListenMode accepts inbound connections and runs a capability on each
// one inside a worker pool.  A failing session never stops the loop.
type ListenMode struct {
	Address     string // "host:port"
	ReusePort   bool
	MaxSessions int // pool capacity, 0 = unbounded
	Capability  capability.Capability
	Dialer      transport.Dialer // closed once in-flight sessions finish, may be nil
	Metrics     *metrics.Collector
	Logger      *util.Logger
}

// Run binds Address and serves until ctx is cancelled.
func (m *ListenMode) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	if m.ReusePort {
		lc.Control = reuseControl
	}
	ln, err := lc.Listen(ctx, "tcp", m.Address)
	if err != nil {
		return ncerr.Wrap("listen", m.Address, err)
	}
	return m.Serve(ctx, ln)
}

// Serve runs the accept loop on ln and closes it before returning.
func (m *ListenMode) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	pool, err := ants.NewPool(m.MaxSessions,
		ants.WithPanicHandler(func(p interface{}) {
			m.Logger.Error("session panic: %v", p)
		}))
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	defer func() {
		if err := pool.ReleaseTimeout(config.DefaultGracePeriod); err != nil {
			m.Logger.Warn("sessions still running at shutdown: %v", err)
		}
		if m.Dialer != nil {
			if err := m.Dialer.Close(); err != nil {
				m.Logger.Warn("closing callback dialer: %v", err)
			}
		}
	}()

	// Shut the listener down when the context expires.
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	m.Logger.Info("listening on %s", ln.Addr())

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ncerr.IsRetryable(err) {
				delay = acceptDelay(delay)
				m.Logger.Warn("accept: %v; retrying in %v", err, delay)
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			return ncerr.Wrap("accept", ln.Addr().String(), err)
		}
		delay = 0

		m.Logger.Verbose("connection from %s", conn.RemoteAddr())

		if err := pool.Submit(func() { m.serveConn(ctx, conn) }); err != nil {
			m.Logger.Error("dropping %s: %v", conn.RemoteAddr(), err)
			conn.Close()
		}
	}
}

// acceptDelay backs off temporary accept failures from 5ms up to 1s.
func acceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	if prev *= 2; prev > time.Second {
		prev = time.Second
	}
	return prev
}

func (m *ListenMode) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	m.Metrics.SessionOpened()
	defer m.Metrics.SessionClosed()

	sess := session.New(conn, m.Logger)
	err := m.Capability.Handle(ctx, sess)
	if err == nil {
		m.Logger.Debug("session with %s done", sess.ClientAddress)
		return
	}
	if ctx.Err() != nil && util.IsHarmless(err) {
		return
	}

	m.Metrics.RecordError(err.Error())
	switch ncerr.Kind(err) {
	case "parse":
		m.Logger.Warn("%s: %v", sess.ClientAddress, err)
	default:
		m.Logger.Error("%s: %v", sess.ClientAddress, err)
	}
}
