package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Role selects which response grammar applies to a connection.
type Role int

const (
	RoleNone Role = iota
	RoleDirectory
	RoleLogin
	RoleStreaming
)

func (r Role) String() string {
	switch r {
	case RoleDirectory:
		return "DIRECTORY"
	case RoleLogin:
		return "LOGIN"
	case RoleStreaming:
		return "STREAMING"
	default:
		return "NONE"
	}
}

// ParseRole is case-insensitive.  COMMUNICATION is accepted as an alias
// for the directory role.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DIRECTORY", "COMMUNICATION":
		return RoleDirectory
	case "LOGIN":
		return RoleLogin
	case "STREAMING":
		return RoleStreaming
	default:
		return RoleNone
	}
}

// Endpoint is the address of a backend server.  The zero value is not
// a usable endpoint; see [Endpoint.IsZero].
type Endpoint struct {
	host string
	port int
}

// NewEndpoint validates host and a decimal port.
func NewEndpoint(host, port string) (Endpoint, error) {
	p, err := strconv.Atoi(port)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid port %q", port)
	}
	return EndpointOf(host, p)
}

// EndpointOf validates host and port.
func EndpointOf(host string, port int) (Endpoint, error) {
	if host == "" {
		return Endpoint{}, fmt.Errorf("host is required")
	}
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return Endpoint{host: host, port: port}, nil
}

// ParseEndpoint accepts "host:port" (IPv6 in brackets).
func ParseEndpoint(s string) (Endpoint, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}
	return NewEndpoint(host, port)
}

// Host returns the host part.
func (e Endpoint) Host() string { return e.host }

// Port returns the port.
func (e Endpoint) Port() int { return e.port }

// IsZero reports whether e is the zero value.
func (e Endpoint) IsZero() bool { return e.host == "" && e.port == 0 }

// String returns "host:port".
func (e Endpoint) String() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}
