package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, environment variable loading and the bootstrap
// file.

const (
	// DefaultDirectoryPort is the port the directory server listens on
	// when the bootstrap source names only a host.
	DefaultDirectoryPort = 57313

	// DefaultDirectoryFile is the bootstrap file consulted when no
	// directory address is given on the command line.
	DefaultDirectoryFile = "CommunicationServerIP.txt"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 10 * time.Second

	// DefaultDisconnectGrace bounds how long the reader keeps draining
	// after a DISCONNECT was sent, waiting for the server to close.
	DefaultDisconnectGrace = 5 * time.Second

	// DefaultFrameBufferSize is the receive buffer for one control frame.
	DefaultFrameBufferSize = 4096

	// DefaultDirectoryAttempts is how many times in a row the directory
	// is resolved and dialled before the session gives up.
	DefaultDirectoryAttempts = 2

	// DefaultDiscoveryRetryDelay is how long the console waits before
	// asking again after "No server of the requested type".
	DefaultDiscoveryRetryDelay = 4 * time.Second

	// DefaultDiscoveryMaxFailures opens the discovery circuit after this
	// many consecutive "No server" replies.
	DefaultDiscoveryMaxFailures = 5

	// DefaultSongDir is where completed songs are saved.
	DefaultSongDir = "songs"

	// DefaultGatewayKeepAlive is the SSH gateway keepalive interval.
	DefaultGatewayKeepAlive = 30 * time.Second

	// MaxFrameBufferSize caps --frame-size.
	MaxFrameBufferSize = 1 << 20
)
