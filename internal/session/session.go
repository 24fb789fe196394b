// Package session represents a single inbound connection's lifecycle:
// the accepted socket, the payload read from it, the callback port it
// names and the callback connection opened for it.
//
// A Session is created when the listener accepts a connection and is
// discarded when the handler returns.  Sessions never share state.
package session

import (
	"net"

	"insitu/util"
)

// State is the step a Session has reached.  Transitions are strictly
// sequential: Reading → Parsing → ConnectingCallback → Echoing → Done,
// or Aborted from any step.
type State int

const (
	StateReading State = iota
	StateParsing
	StateConnectingCallback
	StateEchoing
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateParsing:
		return "parsing"
	case StateConnectingCallback:
		return "connecting-callback"
	case StateEchoing:
		return "echoing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Conn          net.Conn
	ClientAddress string // remote IP of Conn
	RawData       []byte // payload with trailing whitespace stripped
	CallbackPort  int
	Callback      net.Conn // outbound connection to ClientAddress:CallbackPort
	State         State
	Logger        *util.Logger
}

// New creates a Session bound to the given inbound connection.
func New(conn net.Conn, logger *util.Logger) *Session {
	return &Session{
		Conn:          conn,
		ClientAddress: util.HostOf(conn.RemoteAddr()),
		State:         StateReading,
		Logger:        logger,
	}
}

// CallbackAddress is the host:port the callback connection targets.
func (s *Session) CallbackAddress() string {
	return util.FormatAddr(s.ClientAddress, s.CallbackPort)
}

// Advance moves the session to the next state.  Once Done or Aborted
// the state no longer changes.
func (s *Session) Advance(to State) {
	if s.State == StateDone || s.State == StateAborted {
		return
	}
	s.State = to
}

// Abort marks the session as failed.
func (s *Session) Abort() { s.Advance(StateAborted) }

// Close releases the callback connection, if one was opened.  The
// inbound connection belongs to the listener.
func (s *Session) Close() error {
	if s.Callback == nil {
		return nil
	}
	err := s.Callback.Close()
	s.Callback = nil
	return err
}
