package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	ncerr "insitu/internal/errors"
	"insitu/internal/probe"
	"insitu/internal/retry"
	"insitu/internal/transport"
	"insitu/util"
)

// ProbeMode runs the client-side checks against a remote insitu server
// and prints one result per check.
type ProbeMode struct {
	Dialer       transport.Dialer
	Server       string // host:port
	CallbackPort int    // 0 = ephemeral
	Timeout      time.Duration
	Backoff      *retry.Backoff
	DNSHost      string
	DNSExpect    string
	Logger       *util.Logger

	// Resolver defaults to net.DefaultResolver, LocalIPs to
	// probe.LocalIPv4 and Out to os.Stdout.
	Resolver probe.Resolver
	LocalIPs func() ([]net.IP, error)
	Out      io.Writer
}

func (m *ProbeMode) out() io.Writer {
	if m.Out != nil {
		return m.Out
	}
	return os.Stdout
}

// Run executes every check in order and reports ErrProbeFailed when
// any of them failed.
func (m *ProbeMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	var rep probe.Report
	rep.Add(m.checkIP())

	if m.DNSHost != "" {
		resolver := m.Resolver
		if resolver == nil {
			resolver = net.DefaultResolver
		}
		rep.Add(probe.CheckDNS(ctx, resolver, m.DNSHost, m.DNSExpect))
	}

	cl, err := probe.ListenCallback(ctx, m.CallbackPort)
	if err != nil {
		rep.WriteTo(m.out()) //nolint:errcheck
		return err
	}
	defer cl.Close()
	m.Logger.Verbose("waiting for callbacks on port %d", cl.Port())

	b := retry.DefaultBackoff()
	if m.Backoff != nil {
		*b = *m.Backoff
	}
	if b.OnRetry == nil {
		b.OnRetry = func(attempt int, err error, wait time.Duration) {
			m.Logger.Verbose("connect attempt %d failed: %v (retrying in %v)", attempt, err, wait)
		}
	}
	echo := &probe.Echo{
		Dialer:  m.Dialer,
		Backoff: b,
		Server:  m.Server,
		Timeout: m.Timeout,
		Logger:  m.Logger,
	}
	er := echo.Run(ctx, cl.Port())

	switch {
	case er.Status == probe.Passed:
		rep.Add(er)
		rep.Add(cl.Wait(ctx, m.Timeout))
	case er.NoReply():
		// The server dials back before it echoes.
		cr := cl.Wait(ctx, m.Timeout)
		if cr.Status != probe.Passed {
			er = probe.Unanswered(er)
		}
		rep.Add(er)
		rep.Add(cr)
	default:
		rep.Add(er)
		rep.Add(probe.Skipped())
	}

	if _, err := rep.WriteTo(m.out()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if rep.Failed() {
		return fmt.Errorf("%s: %w", m.Server, ncerr.ErrProbeFailed)
	}
	return nil
}

func (m *ProbeMode) checkIP() probe.Result {
	local := m.LocalIPs
	if local == nil {
		local = probe.LocalIPv4
	}
	ips, err := local()
	if err != nil {
		return probe.Result{Status: probe.Failed, Problem: "Interface listing failed", Description: err.Error()}
	}
	return probe.CheckIPAddresses(ips)
}
