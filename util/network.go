package util

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// ArmDeadline sets a read deadline d from now on conn, or an immediate
// one when d is zero, so a blocked Read returns.  Errors are ignored:
// a connection that cannot take a deadline is already closed.
func ArmDeadline(conn net.Conn, d time.Duration) {
	conn.SetReadDeadline(time.Now().Add(d)) //nolint:errcheck
}
