package session

import (
	"time"

	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
)

// write is the Writer worker.  It drains the outbound queue onto the
// socket until the connection is Disconnecting, and closes
// c.writerDone exactly once on return.
func (m *Manager) write(c *connection) error {
	defer close(c.writerDone)
	log := m.log.Named("writer")

	poll := time.NewTicker(writerPoll)
	defer poll.Stop()

	for {
		if c.phase() == PhaseDisconnecting {
			return nil
		}

		cmd, ok := m.mb.DequeueOutbound()
		if !ok {
			select {
			case <-c.closing:
				return nil
			case <-m.mb.OutboundReady():
			case <-poll.C:
			}
			continue
		}

		switch cmd.Tag {
		case protocol.TagHeartbeat:
			if c.role != protocol.RoleDirectory {
				log.Debug("dropping HEARTBEAT on %s connection", c.role)
				continue
			}
		case protocol.TagGetServer:
			m.hop.setHint(cmd.Role())
		}

		n, err := c.send(cmd)
		if err != nil {
			if c.phase() == PhaseDisconnecting {
				if !tserr.IsClosed(err) {
					log.Debug("%s not sent after disconnect: %v", cmd.Tag, err)
				}
				return nil
			}
			c.markDead()
			return tserr.Wrap("write", c.endpoint.String(), err)
		}
		m.metrics.FrameSent(n)
		log.Debug("%s → %s", c.role, redact(cmd))

		if cmd.Tag == protocol.TagDisconnect {
			c.sent(m.opts.DisconnectGrace)
			return nil
		}
	}
}

// redact hides credentials in debug output.
func redact(cmd protocol.Command) string {
	switch cmd.Tag {
	case protocol.TagLogin, protocol.TagCreate:
		return string(cmd.Tag) + ":***"
	default:
		return cmd.String()
	}
}
