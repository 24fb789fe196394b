// Package capability defines what happens over an accepted connection.
// A Capability operates on a Session rather than a raw net.Conn, which
// keeps the per-connection protocol testable and decoupled from the
// listener that accepted it.
package capability

import (
	"context"

	"insitu/internal/session"
)

// Capability handles a single connection according to a specific
// behaviour.  The listener's implementation is CallbackEcho.
type Capability interface {
	// Handle runs the capability against the given session.  It
	// blocks until the exchange is finished or fails; the returned
	// error is local to this session.
	Handle(ctx context.Context, sess *session.Session) error
}
