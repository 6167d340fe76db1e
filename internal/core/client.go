package core

import (
	"context"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"tierstream/config"
	"tierstream/console"
	"tierstream/internal/mailbox"
	"tierstream/internal/metrics"
	"tierstream/internal/playback"
	"tierstream/internal/retry"
	"tierstream/internal/session"
	"tierstream/internal/transport"
	"tierstream/util"
)

// ClientMode runs the session engine with the interactive console on
// top of it.
type ClientMode struct {
	Config   *config.Config
	Dialer   transport.Dialer
	Resolver session.DirectoryResolver
	Sink     playback.Sink // nil keeps songs in the Mailbox
	Breaker  *retry.CircuitBreaker
	Metrics  *metrics.Collector
	Logger   *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ClientMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ClientMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run starts the session and the console and returns when the session
// ends.  The transport is closed when Run returns.
func (m *ClientMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	mb := mailbox.New()
	opts := session.Options{
		Mailbox:           mb,
		Dialer:            m.Dialer,
		Resolver:          m.Resolver,
		Logger:            m.Logger,
		Metrics:           m.Metrics,
		FrameBufferSize:   m.Config.FrameBufferSize,
		DisconnectGrace:   m.Config.DisconnectGrace,
		DirectoryAttempts: m.Config.DirectoryAttempts,
		HeartbeatInterval: m.Config.HeartbeatInterval,
	}
	if m.Sink != nil {
		opts.Sink = m.Sink
	}
	mgr, err := session.New(opts)
	if err != nil {
		return err
	}

	con := &console.Console{
		Session:    mgr,
		In:         m.stdin(),
		Out:        m.stdout(),
		Logger:     m.Logger,
		RetryDelay: m.Config.DiscoveryRetryDelay,
		Breaker:    m.Breaker,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The console only asks the session to quit; the session's own end
	// is what stops the console.
	var g errgroup.Group
	g.Go(func() error {
		defer cancel()
		return mgr.Run(ctx)
	})
	g.Go(func() error { return con.Run(ctx) })
	err = g.Wait()

	// Full reset: nothing queued for this session outlives it.
	mb.Reset()
	return err
}
