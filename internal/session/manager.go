// Package session runs the client side of a streaming session: one TCP
// connection at a time, driven by a Reader and a Writer goroutine, and
// handed off from the directory server to the login and streaming
// servers it names.
//
// The Manager owns the hand-off state machine:
//
//	resolve directory → connect → Active(role) → decide next hop → …
//
// Application code talks to it only through the Mailbox-backed
// methods (Submit, NextResponse, Subscribe) and SetState/RequestQuit.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tierstream/config"
	tserr "tierstream/internal/errors"
	"tierstream/internal/mailbox"
	"tierstream/internal/metrics"
	"tierstream/internal/protocol"
	"tierstream/internal/retry"
	"tierstream/internal/transport"
	"tierstream/util"
)

// writerPoll bounds how long the writer sleeps on an empty queue
// before re-polling, in case a readiness signal was coalesced away.
const writerPoll = 250 * time.Millisecond

var (
	errQuitting       = tserr.New("session is quitting")
	errAlreadyRunning = tserr.New("session: Run called twice")
)

// DirectoryResolver returns the directory server's address.  A
// *errors.ConfigError is fatal; any other error is retried.
type DirectoryResolver interface {
	ResolveDirectory() (protocol.Endpoint, error)
}

// ResolverFunc adapts a function to [DirectoryResolver].
type ResolverFunc func() (protocol.Endpoint, error)

// ResolveDirectory calls f.
func (f ResolverFunc) ResolveDirectory() (protocol.Endpoint, error) { return f() }

// PlaybackSink consumes completed songs, one at a time and in arrival
// order.
type PlaybackSink interface {
	Play(ctx context.Context, song []byte) error
}

// Options configures a Manager.  Mailbox, Dialer and Resolver are
// required; zero values elsewhere take the config package defaults.
type Options struct {
	Mailbox  *mailbox.Mailbox
	Dialer   transport.Dialer
	Resolver DirectoryResolver
	Sink     PlaybackSink // nil leaves songs in the Mailbox
	Logger   *util.Logger
	Metrics  *metrics.Collector

	FrameBufferSize   int
	DisconnectGrace   time.Duration
	DirectoryAttempts int
	DirectoryDelay    time.Duration // wait between directory attempts
	HeartbeatInterval time.Duration // 0 disables HEARTBEAT
}

// Manager is the session engine.  Create one with [New] and drive it
// with [Manager.Run].
type Manager struct {
	opts    Options
	mb      *mailbox.Mailbox
	log     *util.Logger
	metrics *metrics.Collector

	state   atomic.Int32
	hop     handoff
	running atomic.Bool

	curMu   sync.Mutex
	current *connection

	quit     chan struct{}
	quitOnce sync.Once
}

// New validates opts and returns a Manager ready to Run.
func New(opts Options) (*Manager, error) {
	switch {
	case opts.Mailbox == nil:
		return nil, tserr.New("session: Mailbox is required")
	case opts.Dialer == nil:
		return nil, tserr.New("session: Dialer is required")
	case opts.Resolver == nil:
		return nil, tserr.New("session: Resolver is required")
	}
	if opts.Logger == nil {
		opts.Logger = util.NopLogger()
	}
	if opts.FrameBufferSize <= 0 {
		opts.FrameBufferSize = config.DefaultFrameBufferSize
	}
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = config.DefaultDisconnectGrace
	}
	if opts.DirectoryAttempts <= 0 {
		opts.DirectoryAttempts = config.DefaultDirectoryAttempts
	}
	return &Manager{
		opts:    opts,
		mb:      opts.Mailbox,
		log:     opts.Logger.Named("session"),
		metrics: opts.Metrics,
		quit:    make(chan struct{}),
	}, nil
}

// ── Consumer API ─────────────────────────────────────────────────────

// SubmitCommand parses a raw command line such as "SONG:blue" and
// queues it for the current server.
func (m *Manager) SubmitCommand(raw string) error {
	cmd, err := protocol.ParseCommand(raw)
	if err != nil {
		return err
	}
	m.Submit(cmd)
	return nil
}

// Submit queues cmd for the current server.
func (m *Manager) Submit(cmd protocol.Command) { m.mb.EnqueueOutbound(cmd) }

// NextResponse pops the oldest server response.  It returns
// errors.ErrEmptyQueue when nothing is waiting.
func (m *Manager) NextResponse() (protocol.Response, error) { return m.mb.DequeueInbound() }

// Subscribe registers fn to run once per inbound response.
func (m *Manager) Subscribe(fn func()) (cancel func()) { return m.mb.Subscribe(fn) }

// Mailbox returns the Mailbox the session works on.
func (m *Manager) Mailbox() *mailbox.Mailbox { return m.mb }

// State returns the session state.
func (m *Manager) State() State { return State(m.state.Load()) }

// SetState records the consumer's view of the session.  Quitting is
// terminal: once set, later calls are ignored.
func (m *Manager) SetState(s State) {
	for {
		cur := m.state.Load()
		if State(cur) == StateQuitting || cur == int32(s) {
			return
		}
		if m.state.CompareAndSwap(cur, int32(s)) {
			m.log.Debug("state %s → %s", State(cur), s)
			return
		}
	}
}

// RequestQuit asks the session to end.  The current server is sent
// DISCONNECT and no further connection is opened.
func (m *Manager) RequestQuit() {
	m.SetState(StateQuitting)
	m.quitOnce.Do(func() {
		close(m.quit)
		m.mb.EnqueueOutbound(protocol.Disconnect())
		m.log.Verbose("quit requested")
	})
}

// Role returns the role of the live connection, or RoleNone between
// connections.
func (m *Manager) Role() protocol.Role {
	m.curMu.Lock()
	defer m.curMu.Unlock()
	if m.current == nil {
		return protocol.RoleNone
	}
	return m.current.role
}

// ── Run loop ─────────────────────────────────────────────────────────

// Run connects to the directory and keeps the session alive until
// RequestQuit or ctx is cancelled, both of which return nil.  It fails
// with a *errors.ConfigError when the directory cannot be resolved, or
// with errors.ErrDirectoryUnreachable once every directory attempt in
// a row has failed.  A dial error that is not retryable (a rejected
// gateway login, say) fails on the first attempt.
func (m *Manager) Run(parent context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var bg errgroup.Group
	if m.opts.Sink != nil {
		bg.Go(func() error { m.playback(ctx); return nil })
	}
	if m.opts.HeartbeatInterval > 0 {
		bg.Go(func() error { m.heartbeat(ctx); return nil })
	}

	err := m.loop(ctx)
	cancel()
	bg.Wait() //nolint:errcheck

	switch {
	case tserr.Is(err, errQuitting):
		return nil
	case err != nil && parent.Err() != nil && !tserr.IsConfig(err):
		return nil
	}
	return err
}

func (m *Manager) loop(ctx context.Context) error {
	c, err := m.connectDirectory(ctx, true)
	if err != nil {
		return err
	}

	for {
		m.active(ctx, c)

		if ctx.Err() != nil || m.State() == StateQuitting {
			m.log.Verbose("session ended (%d commands unsent, %d responses unread, %d songs held)",
				m.mb.OutboundLen(), m.mb.InboundLen(), m.mb.PendingSongs())
			return nil
		}

		if ep, role, ok := m.hop.take(); ok {
			next, err := m.dialNext(ctx, ep, role)
			if err == nil {
				m.metrics.Handoff()
				c = next
				continue
			}
			if tserr.Is(err, errQuitting) {
				return nil
			}
			m.log.Warn("hand-off to %s %s failed: %v", role, ep, err)
		}

		c, err = m.restore(ctx)
		if err != nil {
			return err
		}
	}
}

// dialNext opens a planned hand-off connection.
func (m *Manager) dialNext(ctx context.Context, ep protocol.Endpoint, role protocol.Role) (*connection, error) {
	if role == protocol.RoleNone {
		return nil, fmt.Errorf("no role known for %s", ep)
	}
	if m.State() == StateQuitting {
		return nil, errQuitting
	}
	m.log.Verbose("handing off to %s server %s", role, ep)
	return m.dial(ctx, ep, role)
}

// restore reconnects to the directory after an unplanned end and asks
// again for whatever the session state needs.
func (m *Manager) restore(ctx context.Context) (*connection, error) {
	m.metrics.DirectoryFallback()
	m.log.Verbose("falling back to directory (state %s)", m.State())

	c, err := m.connectDirectory(ctx, false)
	if err != nil {
		return nil, err
	}
	m.mb.ResetOutbound()
	m.mb.EnqueueOutbound(protocol.Client())
	m.mb.EnqueueOutbound(protocol.GetServer(m.State().restoreRole()))
	return c, nil
}

// connectDirectory resolves and dials the directory with the retry
// policy.  With greet the CLIENT greeting is written straight to the
// new socket.
func (m *Manager) connectDirectory(ctx context.Context, greet bool) (*connection, error) {
	qctx, stop := m.untilQuit(ctx)
	defer stop()

	policy := retry.DirectoryBackoff(m.opts.DirectoryAttempts)
	if m.opts.DirectoryDelay > 0 {
		policy = retry.Fixed(m.opts.DirectoryDelay, m.opts.DirectoryAttempts)
	}
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.log.Warn("directory attempt %d failed: %v (retrying in %v)", attempt, err, wait.Truncate(time.Millisecond))
	}

	var c *connection
	err := policy.Do(qctx, func(int) error {
		if m.State() == StateQuitting {
			return retry.Permanent(errQuitting)
		}
		ep, err := m.opts.Resolver.ResolveDirectory()
		if err != nil {
			if tserr.IsConfig(err) {
				return retry.Permanent(err)
			}
			return err
		}
		m.hop.setDirectory(ep)

		conn, err := m.dial(qctx, ep, protocol.RoleDirectory)
		if err != nil {
			if !tserr.IsRetryable(err) && qctx.Err() == nil {
				return retry.Permanent(err)
			}
			return err
		}
		if greet {
			n, err := conn.send(protocol.Client())
			if err != nil {
				conn.conn.Close()
				return tserr.Wrap("write", ep.String(), err)
			}
			m.metrics.FrameSent(n)
		}
		c = conn
		return nil
	})

	switch {
	case err == nil:
		return c, nil
	case tserr.Is(err, errQuitting), m.State() == StateQuitting:
		return nil, errQuitting
	case tserr.IsConfig(err):
		return nil, err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		m.metrics.RecordError(err.Error())
		return nil, fmt.Errorf("%w: %w", tserr.ErrDirectoryUnreachable, err)
	}
}

func (m *Manager) dial(ctx context.Context, ep protocol.Endpoint, role protocol.Role) (*connection, error) {
	conn, err := m.opts.Dialer.Dial(ctx, ep)
	if err != nil {
		return nil, err
	}
	m.log.Verbose("connected to %s server %s", role, ep)
	return newConnection(conn, ep, role), nil
}

// untilQuit derives a context that is also cancelled by RequestQuit,
// so retry waits end promptly.
func (m *Manager) untilQuit(ctx context.Context) (context.Context, context.CancelFunc) {
	qctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-m.quit:
			cancel()
		case <-qctx.Done():
		}
	}()
	return qctx, cancel
}

// ── Active phase ─────────────────────────────────────────────────────

// active runs the Reader and Writer on c and returns once both have
// exited and the socket is closed.
func (m *Manager) active(ctx context.Context, c *connection) {
	m.metrics.ConnectionOpened()
	defer m.metrics.ConnectionClosed()

	m.curMu.Lock()
	m.current = c
	m.curMu.Unlock()

	stop := context.AfterFunc(ctx, c.shutdown)

	var g errgroup.Group
	g.Go(func() error { return m.read(ctx, c) })
	g.Go(func() error { return m.write(c) })
	err := g.Wait()

	stop()
	c.conn.Close()

	m.curMu.Lock()
	m.current = nil
	m.curMu.Unlock()

	if n := m.mb.DropPriority(); n > 0 {
		m.log.Debug("dropped %d unsent priority command(s) for %s", n, c.endpoint)
	}
	if err != nil {
		m.metrics.RecordError(err.Error())
		m.log.Verbose("%s connection %s ended: %v", c.role, c.endpoint, err)
		return
	}
	m.log.Debug("%s connection %s closed", c.role, c.endpoint)
}

// ── Background loops ─────────────────────────────────────────────────

// playback hands completed songs to the sink in arrival order.
func (m *Manager) playback(ctx context.Context) {
	log := m.log.Named("playback")
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.mb.SongReady():
		}
		for {
			song, err := m.mb.TakeCompletedSong()
			if err != nil {
				break
			}
			log.Verbose("playing %d bytes", len(song))
			if err := m.opts.Sink.Play(ctx, song); err != nil {
				m.metrics.RecordError(err.Error())
				log.Error("%v", err)
			}
		}
	}
}

// heartbeat queues HEARTBEAT while the directory is the live server.
func (m *Manager) heartbeat(ctx context.Context) {
	tick := time.NewTicker(m.opts.HeartbeatInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if m.Role() == protocol.RoleDirectory {
				m.mb.EnqueueOutbound(protocol.Heartbeat())
			}
		}
	}
}
