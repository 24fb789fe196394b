// Package transport provides abstractions for outbound connection
// establishment.  The handler dials its callback connections and the
// probe dials the server through a Dialer, so either can run over a
// plain TCP socket or an SSH-tunnelled channel.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
