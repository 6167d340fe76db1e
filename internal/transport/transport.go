// Package transport opens the TCP connections a session uses to reach
// the directory, login and streaming servers.  Transports handle how
// the bytes get there, either directly or through an SSH gateway,
// independent of the protocol spoken over the connection.
package transport

import (
	"context"
	"net"

	"tierstream/internal/protocol"
)

// Dialer opens connections to backend servers.
type Dialer interface {
	// Dial establishes a connection to ep.  Failures are returned as
	// *errors.NetworkError with Op "dial".
	Dial(ctx context.Context, ep protocol.Endpoint) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
