// Package mailbox bridges the network workers and application
// consumers.  It holds three independently locked stores:
//
//   - the outbound command queue (consumed by one writer at a time),
//   - the inbound response queue (consumed by the application, with a
//     notification fan-out on every enqueue),
//   - the song buffers being assembled from the streaming tier.
//
// A Mailbox is created once per process and passed explicitly to every
// component that needs it.
package mailbox

import (
	"bytes"
	"sync"

	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
)

// Mailbox is safe for concurrent use.
type Mailbox struct {
	outMu    sync.Mutex
	outbound []protocol.Command
	priority int // leading entries inserted with EnqueueOutboundPriority
	outReady chan struct{}

	inMu    sync.Mutex
	inbound []protocol.Response
	subMu   sync.RWMutex
	subs    map[int]func()
	nextSub int

	songMu    sync.Mutex
	songs     []*song
	songReady chan struct{}
}

type song struct {
	data     bytes.Buffer
	complete bool
}

// New returns an empty Mailbox.
func New() *Mailbox {
	return &Mailbox{
		outReady:  make(chan struct{}, 1),
		subs:      make(map[int]func()),
		songReady: make(chan struct{}, 1),
	}
}

// ── Outbound ─────────────────────────────────────────────────────────

// EnqueueOutbound appends cmd to the back of the outbound queue.
func (m *Mailbox) EnqueueOutbound(cmd protocol.Command) {
	m.outMu.Lock()
	m.outbound = append(m.outbound, cmd)
	m.outMu.Unlock()
	poke(m.outReady)
}

// EnqueueOutboundPriority puts cmd in front of everything already
// queued.  Used once per hand-off to get DISCONNECT on the wire first.
func (m *Mailbox) EnqueueOutboundPriority(cmd protocol.Command) {
	m.outMu.Lock()
	m.outbound = append([]protocol.Command{cmd}, m.outbound...)
	m.priority++
	m.outMu.Unlock()
	poke(m.outReady)
}

// DequeueOutbound pops the front command.  ok is false when the queue
// is empty; it never blocks.
func (m *Mailbox) DequeueOutbound() (cmd protocol.Command, ok bool) {
	m.outMu.Lock()
	defer m.outMu.Unlock()

	if len(m.outbound) == 0 {
		return protocol.Command{}, false
	}
	cmd = m.outbound[0]
	m.outbound[0] = protocol.Command{}
	m.outbound = m.outbound[1:]
	if m.priority > 0 {
		m.priority--
	}
	return cmd, true
}

// DropPriority removes priority commands that were never dequeued and
// returns how many were dropped.  A priority command belongs to the
// connection it was queued for; once that connection is gone it must
// not reach the next server.
func (m *Mailbox) DropPriority() int {
	m.outMu.Lock()
	defer m.outMu.Unlock()

	n := m.priority
	if n == 0 {
		return 0
	}
	clear(m.outbound[:n])
	m.outbound = m.outbound[n:]
	m.priority = 0
	return n
}

// OutboundReady is signalled after every outbound enqueue.  A writer
// that found the queue empty waits on it instead of spinning; the
// signal is coalesced, so the queue must be re-polled after it fires.
func (m *Mailbox) OutboundReady() <-chan struct{} { return m.outReady }

// ResetOutbound discards every pending outbound command.
func (m *Mailbox) ResetOutbound() {
	m.outMu.Lock()
	m.outbound = nil
	m.priority = 0
	m.outMu.Unlock()
}

// OutboundLen returns the number of pending outbound commands.
func (m *Mailbox) OutboundLen() int {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	return len(m.outbound)
}

// ── Inbound ──────────────────────────────────────────────────────────

// EnqueueInbound appends resp and then calls every current subscriber
// exactly once.  Subscribers run on the caller's goroutine after the
// queue lock is released, so they may dequeue immediately.
func (m *Mailbox) EnqueueInbound(resp protocol.Response) {
	m.inMu.Lock()
	m.inbound = append(m.inbound, resp)
	m.inMu.Unlock()

	m.subMu.RLock()
	fns := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// DequeueInbound pops the front response, or returns
// [tserr.ErrEmptyQueue] when nothing is pending.
func (m *Mailbox) DequeueInbound() (protocol.Response, error) {
	m.inMu.Lock()
	defer m.inMu.Unlock()

	if len(m.inbound) == 0 {
		return protocol.Response{}, tserr.ErrEmptyQueue
	}
	resp := m.inbound[0]
	m.inbound[0] = protocol.Response{}
	m.inbound = m.inbound[1:]
	return resp, nil
}

// InboundLen returns the number of undelivered responses.
func (m *Mailbox) InboundLen() int {
	m.inMu.Lock()
	defer m.inMu.Unlock()
	return len(m.inbound)
}

// Subscribe registers fn to be called on every inbound enqueue.  The
// returned function removes the subscription.
func (m *Mailbox) Subscribe(fn func()) (cancel func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// ── Reset ────────────────────────────────────────────────────────────

// Reset clears all three stores.  Subscriptions are kept.
func (m *Mailbox) Reset() {
	m.ResetOutbound()

	m.inMu.Lock()
	m.inbound = nil
	m.inMu.Unlock()

	m.songMu.Lock()
	m.songs = nil
	m.songMu.Unlock()
}

// poke performs a non-blocking send on a 1-buffered signal channel.
func poke(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
