// Package core is the orchestration layer.  It composes a transport,
// the session engine, playback sinks and the console into a complete
// client and provides a builder that assembles it from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  playback / console  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete runnable client.  It owns its full lifecycle from
// the first directory connect to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
