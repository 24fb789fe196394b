package core

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"insitu/internal/capability"
	ncerr "insitu/internal/errors"
	"insitu/internal/metrics"
	"insitu/internal/retry"
	"insitu/internal/transport"
	"insitu/util"
)

type staticResolver []net.IP

func (r staticResolver) LookupIP(context.Context, string, string) ([]net.IP, error) {
	return r, nil
}

func privateIPs() ([]net.IP, error) {
	return []net.IP{net.ParseIP("192.168.1.20")}, nil
}

func newProbeMode(server string, out *bytes.Buffer) *ProbeMode {
	return &ProbeMode{
		Dialer:   &transport.TCPDialer{},
		Server:   server,
		Timeout:  2 * time.Second,
		Backoff:  &retry.Backoff{InitialDelay: 10 * time.Millisecond, MaxAttempts: 2},
		Logger:   util.NewLogger(0),
		LocalIPs: privateIPs,
		Out:      out,
	}
}

// The probe runs end to end against a real listener on loopback.
func TestProbeMode_AgainstListener(t *testing.T) {
	addr := startServe(t, newListenMode(metrics.New()))

	var out bytes.Buffer
	mode := newProbeMode(addr, &out)
	mode.DNSHost = "probe.example.net"
	mode.DNSExpect = "1.2.3.4"
	mode.Resolver = staticResolver{net.ParseIP("1.2.3.4")}

	require.NoError(t, mode.Run(context.Background()))

	want := strings.Join([]string{
		"Passed: Private non-routable IP address found",
		"192.168.1.20",
		"Passed: DNS resolution worked",
		"query of probe.example.net returned the expected 1.2.3.4",
		"Passed: TCP Echo test works",
		"The message was relayed by the server",
		"Passed: Callback connection received",
	}, "\n")
	assert.True(t, strings.HasPrefix(out.String(), want), out.String())
}

func TestProbeMode_ServerDown(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)

	var out bytes.Buffer
	mode := newProbeMode(util.FormatAddr("127.0.0.1", port), &out)

	err = mode.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ncerr.ErrProbeFailed))
	assert.Contains(t, out.String(), "Failed: error connecting to server")
	assert.Contains(t, out.String(), "Not Completed: Callback check skipped")
	assert.NotContains(t, out.String(), "DNS", "DNS check only runs with a host")
}

// A server that echoes but never calls back yields a warning, not a
// failure.
func TestProbeMode_NoCallback(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n]) //nolint:errcheck
	}()

	var out bytes.Buffer
	mode := newProbeMode(ln.Addr().String(), &out)
	mode.Timeout = 200 * time.Millisecond

	require.NoError(t, mode.Run(context.Background()))
	assert.Contains(t, out.String(), "Passed: TCP Echo test works")
	assert.Contains(t, out.String(), "Warning: No callback connection received")
}

// refusingDialer fails every callback, as a firewall in front of the
// probing host would.
type refusingDialer struct{}

func (refusingDialer) Dial(context.Context, string, string) (net.Conn, error) {
	return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func (refusingDialer) Close() error { return nil }

// When the server cannot call back it never echoes; both checks warn
// and the run still succeeds.
func TestProbeMode_CallbackBlocked(t *testing.T) {
	m := metrics.New()
	server := newListenMode(m)
	server.Capability = &capability.CallbackEcho{Dialer: refusingDialer{}, Metrics: m}
	addr := startServe(t, server)

	var out bytes.Buffer
	mode := newProbeMode(addr, &out)
	mode.Timeout = 300 * time.Millisecond

	require.NoError(t, mode.Run(context.Background()))
	assert.Contains(t, out.String(), "Warning: No echo received")
	assert.Contains(t, out.String(), "Warning: No callback connection received")
	assert.NotContains(t, out.String(), "Failed")
	assert.NotContains(t, out.String(), "Not Completed")
	assert.EqualValues(t, 1, m.CallbackFailures())
}

func TestProbeMode_LinkLocalFails(t *testing.T) {
	addr := startServe(t, newListenMode(nil))

	var out bytes.Buffer
	mode := newProbeMode(addr, &out)
	mode.LocalIPs = func() ([]net.IP, error) {
		return []net.IP{net.ParseIP("169.254.3.3")}, nil
	}

	err := mode.Run(context.Background())
	assert.ErrorIs(t, err, ncerr.ErrProbeFailed)
	assert.Contains(t, out.String(), "Failed: Private Link Local IP address found")
}
