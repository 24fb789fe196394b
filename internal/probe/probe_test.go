package probe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"insitu/internal/retry"
	"insitu/internal/transport"
	"insitu/util"
)

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Not Completed", NotCompleted.String())
	assert.Equal(t, "Passed", Passed.String())
	assert.Equal(t, "Warning", Warning.String())
	assert.Equal(t, "No Result", NoResult.String())
	assert.Equal(t, "Failed", Failed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestReport(t *testing.T) {
	var rep Report
	rep.Add(newResult(Passed, "TCP Echo test works", "relayed"))
	assert.False(t, rep.Failed())

	rep.Add(newResult(Failed, "DNS resolution failed", "no answer"))
	assert.True(t, rep.Failed())

	var buf bytes.Buffer
	_, err := rep.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t,
		"Passed: TCP Echo test works\nrelayed\nFailed: DNS resolution failed\nno answer\n",
		buf.String())
}

func TestCheckIPAddresses(t *testing.T) {
	ips := func(s ...string) []net.IP {
		var out []net.IP
		for _, v := range s {
			out = append(out, net.ParseIP(v))
		}
		return out
	}

	tests := []struct {
		name    string
		in      []net.IP
		status  Status
		problem string
		desc    string
	}{
		{"none", nil, NoResult, "No IPv4 address found", ""},
		{"link local", ips("169.254.10.1"), Failed, "Private Link Local IP address found", "169.254.10.1"},
		{"ten", ips("10.1.2.3"), Passed, "Private non-routable IP address found", "10.1.2.3"},
		{"one nine two", ips("192.168.0.7"), Passed, "Private non-routable IP address found", "192.168.0.7"},
		{"one seven two", ips("172.20.0.1"), Passed, "Private non-routable IP address found", "172.20.0.1"},
		{"routable", ips("8.8.4.4", "1.2.3.4"), Passed, "Routable IP addresses found.", "1.2.3.4"},
		{"first match wins", ips("8.8.4.4", "169.254.1.1", "10.0.0.1"), Failed, "Private Link Local IP address found", "169.254.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CheckIPAddresses(tt.in)
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, tt.problem, r.Problem)
			if tt.desc != "" {
				assert.Equal(t, tt.desc, r.Description)
			}
		})
	}
}

type fakeResolver struct {
	ips []net.IP
	err error
}

func (f fakeResolver) LookupIP(context.Context, string, string) ([]net.IP, error) {
	return f.ips, f.err
}

func TestCheckDNS(t *testing.T) {
	ctx := context.Background()
	answer := fakeResolver{ips: []net.IP{net.ParseIP("1.2.3.4")}}

	r := CheckDNS(ctx, answer, "probe.example.net", "1.2.3.4")
	assert.Equal(t, Passed, r.Status)
	assert.Contains(t, r.Description, "expected 1.2.3.4")

	r = CheckDNS(ctx, answer, "probe.example.net", "5.6.7.8")
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, "DNS resolution failed", r.Problem)

	r = CheckDNS(ctx, answer, "probe.example.net", "")
	assert.Equal(t, Passed, r.Status)

	r = CheckDNS(ctx, fakeResolver{err: errors.New("no such host")}, "probe.example.net", "")
	assert.Equal(t, Failed, r.Status)
	assert.Contains(t, r.Description, "no such host")

	r = CheckDNS(ctx, fakeResolver{}, "probe.example.net", "")
	assert.Equal(t, Failed, r.Status)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, []byte("9999\x00"), Message(9999))
}

// serve runs a one-shot server that answers with reply(request).
func serve(t *testing.T, reply func([]byte) []byte) string {
	t.Helper()
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, util.ReadSize)
		n, _ := conn.Read(buf)
		conn.Write(reply(buf[:n])) //nolint:errcheck
	}()
	return ln.Addr().String()
}

func fastBackoff(attempts int) *retry.Backoff {
	return &retry.Backoff{InitialDelay: 10 * time.Millisecond, MaxAttempts: attempts}
}

func TestEcho_Passed(t *testing.T) {
	addr := serve(t, func(b []byte) []byte { return b })
	e := &Echo{
		Dialer:  &transport.TCPDialer{},
		Backoff: fastBackoff(1),
		Server:  addr,
		Timeout: 2 * time.Second,
		Logger:  util.NewLogger(0),
	}
	r := e.Run(context.Background(), 4242)
	assert.Equal(t, Passed, r.Status, r.String())
	assert.Equal(t, "TCP Echo test works", r.Problem)
}

func TestEcho_WrongPayload(t *testing.T) {
	addr := serve(t, func(b []byte) []byte { return bytes.ToUpper(append([]byte("x"), b[1:]...)) })
	e := &Echo{
		Dialer:  &transport.TCPDialer{},
		Backoff: fastBackoff(1),
		Server:  addr,
		Timeout: 2 * time.Second,
		Logger:  util.NewLogger(0),
	}
	r := e.Run(context.Background(), 4242)
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, "TCP Echo test failed", r.Problem)
}

func TestEcho_NoReply(t *testing.T) {
	addr := serve(t, func([]byte) []byte { return nil })
	e := &Echo{
		Dialer:  &transport.TCPDialer{},
		Backoff: fastBackoff(1),
		Server:  addr,
		Timeout: 2 * time.Second,
		Logger:  util.NewLogger(0),
	}
	r := e.Run(context.Background(), 4242)
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, ProblemNoReply, r.Problem)
	assert.True(t, r.NoReply())
}

// A server that keeps the connection open without answering counts as
// no reply once the deadline passes.
func TestEcho_Silent(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer ln.Close()

	release := make(chan struct{})
	defer close(release)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}()

	e := &Echo{
		Dialer:  &transport.TCPDialer{},
		Backoff: fastBackoff(1),
		Server:  ln.Addr().String(),
		Timeout: 100 * time.Millisecond,
		Logger:  util.NewLogger(0),
	}
	r := e.Run(context.Background(), 4242)
	assert.Equal(t, Failed, r.Status)
	assert.True(t, r.NoReply(), r.String())
}

func TestEcho_PartialReply(t *testing.T) {
	addr := serve(t, func(b []byte) []byte { return b[:1] })
	e := &Echo{
		Dialer:  &transport.TCPDialer{},
		Backoff: fastBackoff(1),
		Server:  addr,
		Timeout: 2 * time.Second,
		Logger:  util.NewLogger(0),
	}
	r := e.Run(context.Background(), 4242)
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, "Could not read data from the server", r.Problem)
	assert.False(t, r.NoReply())
}

func TestUnanswered(t *testing.T) {
	r := Unanswered(newResult(Failed, ProblemNoReply, "EOF"))
	assert.Equal(t, Warning, r.Status)
	assert.Equal(t, "No echo received", r.Problem)
	assert.Contains(t, r.Description, "EOF")
}

func TestEcho_Unreachable(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)

	var retries int
	b := fastBackoff(3)
	b.OnRetry = func(int, error, time.Duration) { retries++ }

	e := &Echo{
		Dialer:  &transport.TCPDialer{},
		Backoff: b,
		Server:  util.FormatAddr("127.0.0.1", port),
		Timeout: time.Second,
		Logger:  util.NewLogger(0),
	}
	r := e.Run(context.Background(), 4242)
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, "error connecting to server", r.Problem)
	assert.Equal(t, 2, retries)
}

func TestCallbackListener(t *testing.T) {
	ctx := context.Background()

	t.Run("arrives", func(t *testing.T) {
		cl, err := ListenCallback(ctx, 0)
		require.NoError(t, err)
		defer cl.Close()
		require.NotZero(t, cl.Port())

		conn, err := net.Dial("tcp", util.FormatAddr("127.0.0.1", cl.Port()))
		require.NoError(t, err)
		defer conn.Close()

		r := cl.Wait(ctx, 2*time.Second)
		assert.Equal(t, Passed, r.Status)
		assert.Equal(t, "Callback connection received", r.Problem)

		// The listener hangs up after noting the callback.
		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
		_, err = io.ReadAll(conn)
		assert.NoError(t, err)
	})

	t.Run("times out", func(t *testing.T) {
		cl, err := ListenCallback(ctx, 0)
		require.NoError(t, err)
		defer cl.Close()

		r := cl.Wait(ctx, 50*time.Millisecond)
		assert.Equal(t, Warning, r.Status)
		assert.Equal(t, "No callback connection received", r.Problem)
	})
}

func TestSkipped(t *testing.T) {
	assert.Equal(t, NotCompleted, Skipped().Status)
}
