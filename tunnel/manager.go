package tunnel

import (
	"context"
	"net"
	"sync"
	"time"

	"tierstream/internal/protocol"
	"tierstream/util"
)

// Manager owns the gateway connection for a session.  It connects
// lazily, probes the gateway while the session runs and reconnects
// once if the gateway dropped between two hand-offs.
type Manager struct {
	tunnel *SSHTunnel
	logger *util.Logger

	mu        sync.Mutex
	connected bool
	stop      context.CancelFunc
}

// NewManager returns a Manager for the given tunnel.
func NewManager(t *SSHTunnel, logger *util.Logger) *Manager {
	if logger == nil {
		logger = util.NopLogger()
	}
	return &Manager{tunnel: t, logger: logger.Named("gateway")}
}

// Dial forwards a connection to ep, (re)establishing the gateway first
// when it is down.
func (m *Manager) Dial(ctx context.Context, ep protocol.Endpoint) (net.Conn, error) {
	if err := m.ensure(ctx); err != nil {
		return nil, err
	}
	return m.tunnel.Dial(ctx, ep)
}

// Stop ends keepalive probing and closes the gateway connection.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	m.connected = false
	return m.tunnel.Close()
}

func (m *Manager) ensure(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected && m.tunnel.IsAlive() {
		return nil
	}
	if m.connected {
		m.logger.Warn("connection lost, reconnecting")
		if m.stop != nil {
			m.stop()
		}
		m.tunnel.Close() //nolint:errcheck
	}

	cfg := m.tunnel.config
	m.logger.Verbose("connecting to %s@%s", cfg.User, cfg.Addr())
	if err := m.tunnel.Connect(ctx); err != nil {
		m.connected = false
		return err
	}
	m.connected = true

	if cfg.KeepaliveInterval > 0 {
		kctx, cancel := context.WithCancel(context.Background())
		m.stop = cancel
		go m.keepalive(kctx, cfg.KeepaliveInterval, m.tunnel.Lost())
	}
	return nil
}

func (m *Manager) keepalive(ctx context.Context, every time.Duration, lost <-chan struct{}) {
	tick := time.NewTicker(every)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lost:
			return
		case <-tick.C:
			if err := m.tunnel.ping(); err != nil {
				m.logger.Error("keepalive failed: %v", err)
				m.tunnel.Close() //nolint:errcheck
				return
			}
		}
	}
}
