package transport

import (
	"context"
	"net"

	"tierstream/internal/protocol"
	"tierstream/tunnel"
	"tierstream/util"
)

// SSHDialer routes server connections through an SSH gateway.  The
// gateway is connected lazily on the first Dial, reconnected if it
// dropped between hand-offs, and torn down on Close.
type SSHDialer struct {
	manager *tunnel.Manager
}

// NewSSHDialer creates a dialer that forwards connections through the
// gateway described by cfg.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{
		manager: tunnel.NewManager(tunnel.NewSSHTunnel(cfg, logger), logger),
	}
}

// Dial connects to ep through the gateway.
func (d *SSHDialer) Dial(ctx context.Context, ep protocol.Endpoint) (net.Conn, error) {
	return d.manager.Dial(ctx, ep)
}

// Close tears down the gateway connection.
func (d *SSHDialer) Close() error {
	return d.manager.Stop()
}
