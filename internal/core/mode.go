// Package core is the orchestration layer.  It composes transports
// and capabilities into complete operational modes and provides a
// builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  capability  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of insitu (the callback-echo
// listener or the client probe).  Each mode owns its full lifecycle
// from socket setup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
