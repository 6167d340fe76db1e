package session

import (
	"sync"

	"tierstream/internal/protocol"
)

// State is the consumer-visible phase of the whole session.  It
// survives hand-offs and decides what is re-requested when the session
// falls back to the directory.
type State int32

const (
	StateStartup State = iota
	StateLoggedIn
	StateStreaming
	StateQuitting
)

func (s State) String() string {
	switch s {
	case StateStartup:
		return "startup"
	case StateLoggedIn:
		return "logged-in"
	case StateStreaming:
		return "streaming"
	case StateQuitting:
		return "quitting"
	default:
		return "unknown"
	}
}

// restoreRole is the server role to ask the directory for after an
// unplanned return to it.
func (s State) restoreRole() protocol.Role {
	switch s {
	case StateLoggedIn, StateStreaming:
		return protocol.RoleStreaming
	default:
		return protocol.RoleLogin
	}
}

// Phase is the one-way lifecycle of a single connection.
type Phase int32

const (
	PhaseConnected Phase = iota
	PhaseDisconnecting
)

func (p Phase) String() string {
	if p == PhaseConnected {
		return "connected"
	}
	return "disconnecting"
}

// handoff is where the session goes after the current connection ends.
type handoff struct {
	mu        sync.Mutex
	next      protocol.Endpoint
	nextRole  protocol.Role
	hint      protocol.Role // role asked for by the last GETSERVER
	directory protocol.Endpoint
}

// setNext records an explicit next hop.  RoleNone takes the role of
// the last GETSERVER.
func (h *handoff) setNext(ep protocol.Endpoint, role protocol.Role) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if role == protocol.RoleNone {
		role = h.hint
	}
	h.next, h.nextRole = ep, role
}

// toDirectory records the last resolved directory as the next hop.
func (h *handoff) toDirectory() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next, h.nextRole = h.directory, protocol.RoleDirectory
}

func (h *handoff) clear() {
	h.mu.Lock()
	h.next, h.nextRole = protocol.Endpoint{}, protocol.RoleNone
	h.mu.Unlock()
}

// take returns and clears the recorded next hop.
func (h *handoff) take() (protocol.Endpoint, protocol.Role, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, role := h.next, h.nextRole
	h.next, h.nextRole = protocol.Endpoint{}, protocol.RoleNone
	return ep, role, !ep.IsZero()
}

func (h *handoff) setHint(r protocol.Role) {
	h.mu.Lock()
	h.hint = r
	h.mu.Unlock()
}

func (h *handoff) setDirectory(ep protocol.Endpoint) {
	h.mu.Lock()
	h.directory = ep
	h.mu.Unlock()
}
