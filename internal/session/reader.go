package session

import (
	"context"

	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
	"tierstream/util"
)

// read is the Reader worker.  It receives one frame per read, parses
// it once and dispatches on the role of the connection.  It returns
// when the server says DISCONNECT or the socket read fails.
func (m *Manager) read(ctx context.Context, c *connection) error {
	r := &reader{
		m:   m,
		c:   c,
		log: m.log.Named("reader"),
		asm: NewAssembler(m.mb, m.metrics),
	}
	buf := make([]byte, m.opts.FrameBufferSize)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			stop, serr := r.dispatch(ctx, buf[:n])
			if stop {
				return nil
			}
			if serr != nil {
				err = serr
			}
		}
		if err != nil {
			return r.failed(err)
		}
	}
}

type reader struct {
	m   *Manager
	c   *connection
	log *util.Logger
	asm *Assembler
}

// failed ends the reader after a receive error.  Errors after a
// DISCONNECT (EOF, grace deadline, forced shutdown) are the normal end
// of a connection; anything else means the socket died under us and
// the session must go back to the directory.
func (r *reader) failed(err error) error {
	unexpected := r.c.dead.Load() || r.c.phase() == PhaseConnected
	r.c.disconnect()
	if !unexpected {
		if tserr.IsTimeout(err) {
			r.log.Debug("no close from %s within the grace period", r.c.endpoint)
		}
		return nil
	}

	r.m.hop.clear()
	if r.c.dead.Load() {
		// the writer already reported it
		return nil
	}
	return tserr.Wrap("read", r.c.endpoint.String(), err)
}

// dispatch handles one received frame.  stop reports that the reader
// is done with this connection; err is a socket error hit while
// streaming a song payload.
func (r *reader) dispatch(ctx context.Context, frame []byte) (stop bool, err error) {
	if r.c.role == protocol.RoleStreaming {
		if rest, ok := protocol.SongHeader(frame); ok {
			r.m.metrics.FrameReceived(len(frame) - len(rest))
			r.log.Verbose("receiving song")
			return false, r.asm.Stream(r.c.conn, rest)
		}
	}

	raw := protocol.DecodeFrame(frame)
	if raw == "" {
		return false, nil
	}
	r.m.metrics.FrameReceived(len(frame))
	resp := protocol.ParseResponse(raw)
	r.log.Debug("%s ← %s", r.c.role, raw)

	switch r.c.role {
	case protocol.RoleDirectory:
		return r.onDirectory(resp), nil
	case protocol.RoleLogin:
		return r.onLogin(ctx, resp), nil
	case protocol.RoleStreaming:
		return r.onStreaming(ctx, resp), nil
	default:
		r.ignore(resp, "connection has no role")
		return false, nil
	}
}

// ── Per-role handling ────────────────────────────────────────────────

func (r *reader) onDirectory(resp protocol.Response) bool {
	switch resp.Tag {
	case protocol.TagError:
		r.m.mb.EnqueueInbound(resp)
	case protocol.TagIP:
		ep, err := resp.Endpoint()
		if err != nil {
			r.ignore(resp, err.Error())
			return false
		}
		r.m.hop.setNext(ep, protocol.RoleNone)
		r.m.mb.EnqueueOutboundPriority(protocol.Disconnect())
		r.log.Verbose("next server %s", ep)
	case protocol.TagDisconnect:
		r.c.disconnect()
		return true
	case protocol.TagHeartbeat:
		r.m.metrics.RecordHeartbeat()
	case protocol.TagTypeStored:
		r.log.Debug("directory acknowledged registration")
	default:
		r.ignore(resp, "unexpected from directory")
	}
	return false
}

func (r *reader) onLogin(ctx context.Context, resp protocol.Response) bool {
	switch resp.Tag {
	case protocol.TagAdded, protocol.TagError:
		r.m.mb.EnqueueInbound(resp)
	case protocol.TagAuth:
		r.m.mb.EnqueueInbound(resp)
		r.pivot(ctx, true, protocol.Client(), protocol.GetServer(protocol.RoleStreaming))
	case protocol.TagDisconnect:
		r.c.disconnect()
		return true
	default:
		r.ignore(resp, "unexpected from login server")
	}
	return false
}

func (r *reader) onStreaming(ctx context.Context, resp protocol.Response) bool {
	switch resp.Tag {
	case protocol.TagAdded, protocol.TagRemoved, protocol.TagSongs,
		protocol.TagError, protocol.TagRecommendation:
		r.m.mb.EnqueueInbound(resp)
	case protocol.TagDisconnect:
		r.c.disconnect()
		r.pivot(ctx, false, protocol.Client())
		return true
	case protocol.TagUnsupported:
		r.ignore(resp, "server rejected the last command")
	default:
		r.ignore(resp, "unexpected from streaming server")
	}
	return false
}

// pivot sends the session back to the directory.  With closeLeg a
// priority DISCONNECT ends this connection first.  The commands for
// the next connection are queued only after this connection's writer
// has exited, so none of them can reach the old socket.
func (r *reader) pivot(ctx context.Context, closeLeg bool, next ...protocol.Command) {
	r.m.hop.toDirectory()
	if closeLeg && r.c.phase() == PhaseConnected {
		r.m.mb.EnqueueOutboundPriority(protocol.Disconnect())
	}

	select {
	case <-r.c.writerDone:
	case <-ctx.Done():
		return
	}
	for _, cmd := range next {
		r.m.mb.EnqueueOutbound(cmd)
	}
}

func (r *reader) ignore(resp protocol.Response, reason string) {
	r.m.metrics.FrameIgnored()
	r.log.Verbose("%v", tserr.Protocol(r.c.role.String(), resp.Raw, reason))
}
