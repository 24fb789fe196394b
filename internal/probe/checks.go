package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"insitu/config"
	ncerr "insitu/internal/errors"
	"insitu/internal/retry"
	"insitu/internal/transport"
	"insitu/util"
)

// ── IP address ───────────────────────────────────────────────────────

// LocalIPv4 returns the IPv4 addresses of every interface that is up,
// loopback excluded.
func LocalIPv4() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if v4 := ipn.IP.To4(); v4 != nil {
				ips = append(ips, v4)
			}
		}
	}
	return ips, nil
}

// CheckIPAddresses classifies the host's addresses.  The first
// link-local or private address decides the result; otherwise the
// host is considered routable.
func CheckIPAddresses(ips []net.IP) Result {
	if len(ips) == 0 {
		return newResult(NoResult, "No IPv4 address found", "no interface is up with an IPv4 address")
	}
	for _, ip := range ips {
		switch {
		case ip.IsLinkLocalUnicast():
			return newResult(Failed, "Private Link Local IP address found", ip.String())
		case ip.IsPrivate():
			return newResult(Passed, "Private non-routable IP address found", ip.String())
		}
	}
	return newResult(Passed, "Routable IP addresses found.", ips[len(ips)-1].String())
}

// ── DNS ──────────────────────────────────────────────────────────────

// Resolver is the subset of *net.Resolver the DNS check needs.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// CheckDNS resolves host.  With a non-empty expect the first IPv4
// answer must equal it.
func CheckDNS(ctx context.Context, r Resolver, host, expect string) Result {
	ips, err := r.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		desc := fmt.Sprintf("query of %s returned no address", host)
		if err != nil {
			desc = fmt.Sprintf("query of %s: %v", host, err)
		}
		return newResult(Failed, "DNS resolution failed", desc)
	}
	got := ips[0].String()
	if expect == "" {
		return newResult(Passed, "DNS resolution worked",
			fmt.Sprintf("query of %s returned %s", host, got))
	}
	if !ips[0].Equal(net.ParseIP(expect)) {
		return newResult(Failed, "DNS resolution failed",
			fmt.Sprintf("query of %s returned %s, not the expected %s", host, got, expect))
	}
	return newResult(Passed, "DNS resolution worked",
		fmt.Sprintf("query of %s returned the expected %s", host, expect))
}

// ── Echo ─────────────────────────────────────────────────────────────

// Echo connects to an insitu server and checks that it reflects the
// callback request.
type Echo struct {
	Dialer  transport.Dialer
	Backoff *retry.Backoff
	Server  string // host:port
	Timeout time.Duration
	Logger  *util.Logger
}

// ProblemNoReply is the echo problem when the request was sent but the
// server hung up or stayed silent without answering.
const ProblemNoReply = "No reply from the server"

// Message is the payload sent for a callback on port.  The server
// drops the final byte before parsing.
func Message(port int) []byte {
	return []byte(fmt.Sprintf("%d\x00", port))
}

// Run sends the request for callbackPort and compares the echo.
func (e *Echo) Run(ctx context.Context, callbackPort int) Result {
	b := e.Backoff
	if b == nil {
		b = retry.DefaultBackoff()
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = config.DefaultProbeTimeout
	}

	var conn net.Conn
	err := b.Do(ctx, func(attempt int) error {
		dctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		c, err := e.Dialer.Dial(dctx, "tcp", e.Server)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(err)
			}
			return ncerr.Wrap("connect", e.Server, err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return newResult(Failed, "error connecting to server", err.Error())
	}
	defer conn.Close()

	e.Logger.Verbose("connected to %s", conn.RemoteAddr())
	conn.SetDeadline(time.Now().Add(timeout)) //nolint:errcheck

	msg := Message(callbackPort)
	if _, err := util.WriteAll(conn, msg); err != nil {
		return newResult(Failed, "Could not send data to the server", err.Error())
	}

	got := make([]byte, len(msg))
	if _, err := io.ReadFull(conn, got); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
			return newResult(Failed, ProblemNoReply, err.Error())
		}
		return newResult(Failed, "Could not read data from the server", err.Error())
	}
	if !bytes.Equal(got, msg) {
		return newResult(Failed, "TCP Echo test failed",
			fmt.Sprintf("Payload was not as expected: got %q, want %q", got, msg))
	}
	return newResult(Passed, "TCP Echo test works", "The message was relayed by the server")
}

// ── Callback ─────────────────────────────────────────────────────────

// CallbackListener waits for the server's callback connection.
type CallbackListener struct {
	ln      net.Listener
	arrived chan net.Addr
}

// ListenCallback opens the listener the server will call back.  Port 0
// picks an ephemeral port.
func ListenCallback(ctx context.Context, port int) (*CallbackListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", util.FormatAddr("", port))
	if err != nil {
		return nil, ncerr.Wrap("listen", util.FormatAddr("", port), err)
	}
	cl := &CallbackListener{ln: ln, arrived: make(chan net.Addr, 1)}
	go cl.accept()
	return cl, nil
}

func (cl *CallbackListener) accept() {
	conn, err := cl.ln.Accept()
	if err != nil {
		return
	}
	cl.arrived <- conn.RemoteAddr()
	conn.Close()
}

// Port is the bound port.
func (cl *CallbackListener) Port() int {
	return cl.ln.Addr().(*net.TCPAddr).Port
}

// Wait reports whether a callback arrived within timeout.
func (cl *CallbackListener) Wait(ctx context.Context, timeout time.Duration) Result {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case from := <-cl.arrived:
		return newResult(Passed, "Callback connection received",
			fmt.Sprintf("the server connected back from %s", from))
	case <-t.C:
	case <-ctx.Done():
	}
	return newResult(Warning, "No callback connection received",
		fmt.Sprintf("nothing reached port %d; inbound connections may be blocked or behind NAT", cl.Port()))
}

// Close stops listening.
func (cl *CallbackListener) Close() error { return cl.ln.Close() }

// Unanswered downgrades a no-reply echo result when no callback arrived
// either.  The server echoes only after its callback connects, so both
// point at the callback port being unreachable from the server.
func Unanswered(echo Result) Result {
	return newResult(Warning, "No echo received",
		fmt.Sprintf("the server closed without echoing (%s); it echoes only after calling back", echo.Description))
}

// Skipped is reported for the callback check when the echo failed.
func Skipped() Result {
	return newResult(NotCompleted, "Callback check skipped", "the echo check did not succeed")
}
