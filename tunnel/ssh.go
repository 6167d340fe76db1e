package tunnel

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
	"tierstream/util"
)

// SSHConfig holds everything needed to dial the SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepaliveInterval is how often the gateway is probed; zero
	// disables probing.
	KeepaliveInterval time.Duration

	// Prompt reads a secret (password or key passphrase) from the
	// user.  Nil means read it from the terminal.
	Prompt func(label string) ([]byte, error)
}

// Addr returns the gateway's "host:port".
func (c *SSHConfig) Addr() string {
	return util.FormatAddr(c.Host, c.Port)
}

// SSHTunnel implements [Tunnel] over an ssh.Client, forwarding each
// server connection as a direct-tcpip channel.
type SSHTunnel struct {
	config *SSHConfig
	client *ssh.Client
	logger *util.Logger
	mu     sync.RWMutex
	alive  bool
	lost   chan struct{}
}

// NewSSHTunnel creates a tunnel that is ready to [SSHTunnel.Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = util.NopLogger()
	}
	return &SSHTunnel{config: cfg, logger: logger.Named("gateway")}
}

// Connect dials the SSH gateway and completes the handshake.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	authMethods, err := BuildAuthMethods(t.config)
	if err != nil {
		return tserr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return tserr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := t.config.Addr()
	t.logger.Debug("dialing %s as %s", addr, t.config.User)

	dialer := net.Dialer{Timeout: t.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return tserr.Wrap("dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return tserr.WrapSSH("auth", t.config.Host, t.config.Port, fmt.Errorf("%w: %w", tserr.ErrAuthFailed, err))
		}
		return tserr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	lost := make(chan struct{})

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.lost = lost
	t.mu.Unlock()

	go t.monitor(client, lost)
	return nil
}

// Dial forwards a connection to ep through the gateway.
func (t *SSHTunnel) Dial(ctx context.Context, ep protocol.Endpoint) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	alive := t.alive
	t.mu.RUnlock()

	if !alive || client == nil {
		return nil, tserr.ErrTunnelClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.logger.Debug("forwarding to %s", ep)
	conn, err := client.Dial("tcp", ep.String())
	if err != nil {
		return nil, tserr.Wrap("dial", ep.String(), fmt.Errorf("via gateway: %w", err))
	}
	return conn, nil
}

// Close shuts down the SSH connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// Lost is closed when the current gateway connection ends.  It is nil
// before the first Connect.
func (t *SSHTunnel) Lost() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lost
}

// ping sends an OpenSSH keepalive request and waits for the reply.
func (t *SSHTunnel) ping() error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return tserr.ErrTunnelClosed
	}
	_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
	return err
}

// monitor blocks until the SSH connection closes and flips the alive flag.
func (t *SSHTunnel) monitor(client *ssh.Client, lost chan struct{}) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client || t.client == nil {
		t.alive = false
	}
	t.mu.Unlock()
	close(lost)

	if err != nil {
		t.logger.Debug("closed: %v", err)
	} else {
		t.logger.Debug("closed")
	}
}
