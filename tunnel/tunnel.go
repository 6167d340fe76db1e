// Package tunnel reaches the directory, login and streaming servers
// through an SSH gateway when they sit on a private network.  Every
// hand-off opens a fresh forwarded channel over one long-lived SSH
// connection.
package tunnel

import (
	"context"
	"net"

	"tierstream/internal/protocol"
)

// Tunnel abstracts an encrypted channel through which server
// connections are forwarded.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a forwarded connection to ep.
	Dial(ctx context.Context, ep protocol.Endpoint) (net.Conn, error)

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}
