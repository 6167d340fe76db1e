package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tierstream/internal/protocol"
	"tierstream/util"
)

// connection is one live socket and the signals its Reader and Writer
// share.  A new one is made for every hand-off.
type connection struct {
	conn     net.Conn
	endpoint protocol.Endpoint
	role     protocol.Role

	closing   chan struct{} // closed when the phase becomes Disconnecting
	closeOnce sync.Once

	// dead is set by the writer when a send fails; the reader then
	// treats its own exit as unexpected even though the phase is
	// already Disconnecting.
	dead atomic.Bool

	// writerDone is closed exactly once when the writer returns.
	writerDone chan struct{}
}

func newConnection(conn net.Conn, ep protocol.Endpoint, role protocol.Role) *connection {
	return &connection{
		conn:       conn,
		endpoint:   ep,
		role:       role,
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// disconnect moves the connection to Disconnecting.  It reports whether
// this call made the transition.
func (c *connection) disconnect() bool {
	first := false
	c.closeOnce.Do(func() {
		close(c.closing)
		first = true
	})
	return first
}

func (c *connection) phase() Phase {
	select {
	case <-c.closing:
		return PhaseDisconnecting
	default:
		return PhaseConnected
	}
}

// sent handles a DISCONNECT we put on the wire: the reader may keep
// draining for grace, then its blocked receive returns.
func (c *connection) sent(grace time.Duration) {
	c.disconnect()
	util.ArmDeadline(c.conn, grace)
}

// markDead records a failed send and wakes the reader immediately.
func (c *connection) markDead() {
	c.dead.Store(true)
	c.disconnect()
	util.ArmDeadline(c.conn, 0)
}

// shutdown is the externally forced end of the connection: both
// directions are unblocked at once.
func (c *connection) shutdown() {
	c.disconnect()
	c.conn.SetDeadline(time.Now()) //nolint:errcheck
}

// send writes one encoded command.
func (c *connection) send(cmd protocol.Command) (int, error) {
	return c.conn.Write(cmd.Encode())
}
