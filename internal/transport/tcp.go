package transport

import (
	"context"
	"net"
	"time"

	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
)

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	Timeout time.Duration
	// KeepAlive is the TCP keep-alive period; zero uses the OS default
	// and a negative value disables keep-alives.
	KeepAlive time.Duration
}

// Dial connects to ep over TCP with Nagle disabled, since frames are
// small and each one is a complete request.
func (d *TCPDialer) Dial(ctx context.Context, ep protocol.Endpoint) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}

	conn, err := dialer.DialContext(ctx, "tcp", ep.String())
	if err != nil {
		return nil, tserr.Wrap("dial", ep.String(), err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true) //nolint:errcheck
	}
	return conn, nil
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
