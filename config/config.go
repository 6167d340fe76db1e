// Package config defines the runtime configuration for a tierstream
// session and the parsers for its directory bootstrap sources.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
)

// Config holds every tuneable for a single session.
type Config struct {
	// ── Directory ────────────────────────────────────────────────────
	Directory     string // host:port given with -d
	DirectoryFile string // bootstrap file with IP:/PORT: lines

	// ── Session ──────────────────────────────────────────────────────
	ConnTimeout       time.Duration
	DisconnectGrace   time.Duration
	FrameBufferSize   int
	DirectoryAttempts int
	HeartbeatInterval time.Duration // 0 disables HEARTBEAT

	// ── Console ──────────────────────────────────────────────────────
	DiscoveryRetryDelay  time.Duration
	DiscoveryMaxFailures int
	SongDir              string // completed songs are written here
	Player               string // command each song is piped to

	// ── SSH gateway ──────────────────────────────────────────────────
	GatewaySpec      string // raw user@host[:port] from -g
	GatewayEnabled   bool
	GatewayUser      string
	GatewayHost      string
	GatewayPort      int
	GatewayKeepAlive time.Duration
	SSHKeyPath       string
	SSHPassword      bool // true → prompt interactively
	UseSSHAgent      bool
	StrictHostKey    bool
	KnownHostsPath   string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	Stats   bool
	DryRun  bool
}

// Default returns a Config with every tuneable at its default.
func Default() *Config {
	return &Config{
		DirectoryFile:        DefaultDirectoryFile,
		ConnTimeout:          DefaultConnTimeout,
		DisconnectGrace:      DefaultDisconnectGrace,
		FrameBufferSize:      DefaultFrameBufferSize,
		DirectoryAttempts:    DefaultDirectoryAttempts,
		DiscoveryRetryDelay:  DefaultDiscoveryRetryDelay,
		DiscoveryMaxFailures: DefaultDiscoveryMaxFailures,
		SongDir:              DefaultSongDir,
		GatewayKeepAlive:     DefaultGatewayKeepAlive,
		Verbose:              1,
	}
}

// ResolveDirectory returns the directory endpoint from -d or, failing
// that, the bootstrap file.  It is re-run before every directory
// connect so an edited bootstrap file takes effect on reconnect.
// Failures are *errors.ConfigError.
func (c *Config) ResolveDirectory() (protocol.Endpoint, error) {
	if c.Directory != "" {
		ep, err := parseDirectory(c.Directory)
		if err != nil {
			return protocol.Endpoint{}, &tserr.ConfigError{
				Field:   "directory",
				Value:   c.Directory,
				Message: err.Error(),
				Hint:    "use host or host:port, e.g. -d 10.0.0.2:57313",
			}
		}
		return ep, nil
	}
	if c.DirectoryFile == "" {
		return protocol.Endpoint{}, &tserr.ConfigError{
			Field:   "directory",
			Message: "no directory server configured",
			Hint:    "pass -d host:port or --directory-file",
		}
	}
	return LoadDirectoryFile(c.DirectoryFile)
}

// parseDirectory accepts host:port or a bare host, which gets
// [DefaultDirectoryPort].  A bare IPv6 address may omit the brackets.
func parseDirectory(s string) (protocol.Endpoint, error) {
	s = strings.TrimSpace(s)
	if _, _, err := net.SplitHostPort(s); err != nil {
		host := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		var addrErr *net.AddrError
		if net.ParseIP(host) != nil ||
			(tserr.As(err, &addrErr) && addrErr.Err == "missing port in address") {
			return protocol.EndpointOf(host, DefaultDirectoryPort)
		}
	}
	return protocol.ParseEndpoint(s)
}

// ── Gateway-spec parser ──────────────────────────────────────────────

// gatewayRe matches [user@]host[:port].
var gatewayRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseGatewaySpec extracts user, host, and port from a string such as
// "stream@bastion.example.com:2222".  Port defaults to 22.
func ParseGatewaySpec(spec string) (user, host string, port int, err error) {
	m := gatewayRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid gateway spec %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid gateway port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Every failure is a *errors.ConfigError.
func (c *Config) Validate() error {
	if c.Directory == "" && c.DirectoryFile == "" {
		return &tserr.ConfigError{
			Field:   "directory",
			Message: "no directory server configured",
			Hint:    "pass -d host:port or --directory-file",
		}
	}
	if c.Directory != "" {
		if _, err := parseDirectory(c.Directory); err != nil {
			return &tserr.ConfigError{
				Field:   "directory",
				Value:   c.Directory,
				Message: err.Error(),
				Hint:    "use host or host:port, e.g. -d 10.0.0.2:57313",
			}
		}
	}

	if c.FrameBufferSize < 64 || c.FrameBufferSize > MaxFrameBufferSize {
		return &tserr.ConfigError{
			Field:   "frame-size",
			Value:   c.FrameBufferSize,
			Message: fmt.Sprintf("must be between 64 and %d bytes", MaxFrameBufferSize),
		}
	}
	if c.DirectoryAttempts < 1 {
		return &tserr.ConfigError{
			Field:   "directory-attempts",
			Value:   c.DirectoryAttempts,
			Message: "must be at least 1",
		}
	}
	if c.ConnTimeout < 0 {
		return &tserr.ConfigError{Field: "timeout", Value: c.ConnTimeout, Message: "must not be negative"}
	}
	if c.DisconnectGrace <= 0 {
		return &tserr.ConfigError{
			Field:   "disconnect-grace",
			Value:   c.DisconnectGrace,
			Message: "must be positive",
			Hint:    "the reader needs a bound on how long it waits for the server to close",
		}
	}
	if c.HeartbeatInterval < 0 {
		return &tserr.ConfigError{Field: "heartbeat", Value: c.HeartbeatInterval, Message: "must not be negative"}
	}
	if c.DiscoveryRetryDelay < 0 {
		return &tserr.ConfigError{Field: "retry-delay", Value: c.DiscoveryRetryDelay, Message: "must not be negative"}
	}

	if c.GatewayEnabled && c.GatewayHost == "" {
		return &tserr.ConfigError{
			Field:   "gateway",
			Message: "gateway host is required",
			Hint:    "use -g [user@]host[:port]",
		}
	}
	if !c.GatewayEnabled && (c.SSHKeyPath != "" || c.SSHPassword || c.UseSSHAgent) {
		return &tserr.ConfigError{
			Field:   "gateway",
			Message: "SSH credentials given without a gateway",
			Hint:    "add -g [user@]host[:port] or drop the --gateway-* flags",
		}
	}
	return nil
}
