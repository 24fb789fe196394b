package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ncerr "insitu/internal/errors"
	"insitu/internal/metrics"
	"insitu/internal/session"
	"insitu/internal/transport"
	"insitu/util"
)

var errEmptyPayload = errors.New("empty payload")

// CallbackEcho reads one control message, dials back to the client on
// the port it names, and echoes the message on the inbound connection.
//
// Zero timeouts leave the corresponding step blocking.
type CallbackEcho struct {
	Dialer       transport.Dialer
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Metrics      *metrics.Collector
}

// Handle runs the read → parse → callback → echo exchange.  The
// callback connection is closed before Handle returns; the inbound
// connection is left to the caller.
func (h *CallbackEcho) Handle(ctx context.Context, sess *session.Session) error {
	defer sess.Close() //nolint:errcheck

	if err := h.read(sess); err != nil {
		sess.Abort()
		return err
	}
	sess.Logger.Info("%s wrote: %q", sess.ClientAddress, sess.RawData)

	sess.Advance(session.StateParsing)
	port, err := ParseCallbackPort(sess.RawData)
	if err != nil {
		sess.Abort()
		h.Metrics.ParseFailed()
		return err
	}
	sess.CallbackPort = port

	sess.Advance(session.StateConnectingCallback)
	addr := sess.CallbackAddress()
	sess.Logger.Info("calling back %s", addr)
	cb, err := h.Dialer.Dial(ctx, "tcp", addr)
	if err != nil {
		sess.Abort()
		h.Metrics.CallbackFailed()
		return ncerr.Wrap("callback", addr, err)
	}
	sess.Callback = cb
	h.Metrics.CallbackOpened()

	sess.Advance(session.StateEchoing)
	if err := h.echo(sess); err != nil {
		sess.Abort()
		return err
	}
	h.Metrics.Echoed()
	sess.Advance(session.StateDone)
	return nil
}

// read performs the single bounded Read.  A short read is accepted
// as-is; EOF with no data yields an empty payload.
func (h *CallbackEcho) read(sess *session.Session) error {
	if h.ReadTimeout > 0 {
		sess.Conn.SetReadDeadline(time.Now().Add(h.ReadTimeout)) //nolint:errcheck
	}

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	n, err := sess.Conn.Read(buf.B[:util.ReadSize])
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		return ncerr.Wrap("read", sess.Conn.RemoteAddr().String(), err)
	}
	h.Metrics.BytesReceived(int64(n))

	// Copy out of the pooled buffer.
	sess.RawData = append([]byte(nil), util.TrimTrailingSpace(buf.B[:n])...)
	return nil
}

func (h *CallbackEcho) echo(sess *session.Session) error {
	if h.WriteTimeout > 0 {
		sess.Conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout)) //nolint:errcheck
	}
	n, err := util.WriteAll(sess.Conn, sess.RawData)
	h.Metrics.BytesSent(int64(n))
	if err != nil {
		return ncerr.Wrap("write", sess.Conn.RemoteAddr().String(), err)
	}
	return nil
}

// ParseCallbackPort interprets everything but the last byte of payload
// as a decimal port number.  Surrounding spaces and a leading sign are
// tolerated; anything else, an empty remnant, or a value outside
// 1-65535 is a *errors.ParseError.
func ParseCallbackPort(payload []byte) (int, error) {
	if len(payload) == 0 {
		return 0, &ncerr.ParseError{Input: "", Err: errEmptyPayload}
	}
	remnant := strings.TrimSpace(string(payload[:len(payload)-1]))
	port, err := strconv.Atoi(remnant)
	if err != nil {
		return 0, &ncerr.ParseError{Input: string(payload), Err: err}
	}
	if port < 1 || port > 65535 {
		return 0, &ncerr.ParseError{
			Input: string(payload),
			Err:   fmt.Errorf("port %d out of range 1-65535", port),
		}
	}
	return port, nil
}
