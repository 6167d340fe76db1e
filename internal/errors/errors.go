// Package errors provides domain-specific error types for tierstream.
//
// These types carry structured context (operation, address, server role,
// retryability) that lets the session engine decide whether a failure is
// fatal, recoverable by falling back to the directory server, or merely
// worth logging.
package errors

import (
	"errors"
	"fmt"
	"net"
	"unicode/utf8"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrEmptyQueue           = errors.New("inbound queue is empty")
	ErrNoCompletedSong      = errors.New("no completed song queued")
	ErrDirectoryUnreachable = errors.New("directory server unreachable")
	ErrTunnelClosed         = errors.New("tunnel is closed")
	ErrAuthFailed           = errors.New("authentication failed")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.  A dial
// failure is a connect error; read and write failures are socket errors.
type NetworkError struct {
	Op        string // operation: "dial", "read", "write"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsConnect reports whether the failure happened while dialing.
func (e *NetworkError) IsConnect() bool { return e.Op == "dial" }

// ProtocolError describes a frame the reader could not make sense of
// for the role of the current connection.  It is logged, never fatal.
type ProtocolError struct {
	Role   string // role of the connection the frame arrived on
	Frame  string // raw frame text (possibly truncated)
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol (%s): %s: %q", e.Role, e.Reason, e.Frame)
}

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid or missing configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Protocol creates a ProtocolError, truncating long frames so binary
// noise does not flood the log.
func Protocol(role, frame, reason string) *ProtocolError {
	const maxFrame = 64
	if len(frame) > maxFrame {
		cut := maxFrame
		for cut > 0 && !utf8.RuneStart(frame[cut]) {
			cut--
		}
		frame = frame[:cut] + "…"
	}
	return &ProtocolError{Role: role, Frame: frame, Reason: reason}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsClosed reports whether err is the expected result of reading or
// writing a connection that was already closed, either by us or by the
// remote side.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			// refused or unreachable servers may come back after a
			// directory round-trip
			return true
		}
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
