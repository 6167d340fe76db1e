package errors

import (
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "10.0.0.5:9000", Err: io.EOF, Retryable: true},
			want: "dial 10.0.0.5:9000: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "write", Addr: "10.0.0.5:9000", Err: fmt.Errorf("broken pipe")},
			want: "write 10.0.0.5:9000: broken pipe",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_UnwrapAndKind(t *testing.T) {
	err := Wrap("dial", "x:1", io.EOF)
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
	if !err.IsConnect() {
		t.Error("dial should be a connect error")
	}
	if Wrap("read", "x:1", io.EOF).IsConnect() {
		t.Error("read should not be a connect error")
	}
}

func TestProtocolError_Truncates(t *testing.T) {
	long := strings.Repeat("A", 200)
	err := Protocol("STREAMING", long, "unexpected frame")
	if len(err.Frame) > 70 {
		t.Errorf("frame not truncated: %d bytes", len(err.Frame))
	}
	if !strings.Contains(err.Error(), "STREAMING") {
		t.Errorf("error should mention role: %v", err)
	}
}

func TestProtocolError_TruncatesOnRuneBoundary(t *testing.T) {
	// "é" straddles the 64-byte cut.
	frame := strings.Repeat("A", 63) + "é" + strings.Repeat("B", 20)
	err := Protocol("LOGIN", frame, "unexpected frame")
	if !utf8.ValidString(err.Frame) {
		t.Fatalf("truncated frame is not valid UTF-8: %q", err.Frame)
	}
	if want := strings.Repeat("A", 63) + "…"; err.Frame != want {
		t.Errorf("frame = %q, want %q", err.Frame, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "directory",
				Value:   "nowhere",
				Message: "expected host:port",
				Hint:    "e.g. --directory 127.0.0.1:57313",
			},
			want: "config: --directory=nowhere: expected host:port\n  hint: e.g. --directory 127.0.0.1:57313",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "directory",
				Message: "required",
			},
			want: "config: --directory: required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestIsConfig(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", &ConfigError{Field: "directory", Message: "missing"})
	if !IsConfig(wrapped) {
		t.Error("wrapped ConfigError should be detected")
	}
	if IsConfig(io.EOF) {
		t.Error("io.EOF is not a ConfigError")
	}
}

func TestIsClosed(t *testing.T) {
	if !IsClosed(net.ErrClosed) {
		t.Error("net.ErrClosed should be closed")
	}
	if !IsClosed(&net.OpError{Op: "read", Err: net.ErrClosed}) {
		t.Error("OpError wrapping ErrClosed should be closed")
	}
	if IsClosed(io.EOF) || IsClosed(nil) {
		t.Error("EOF/nil are not closed errors")
	}
}

func TestIsTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now()) //nolint:errcheck
	_, err = conn.Read(make([]byte, 1))
	if !IsTimeout(err) {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: false}, false},
		{"dial op error", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("refused")}, true},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrEmptyQueue, ErrNoCompletedSong, ErrDirectoryUnreachable,
		ErrTunnelClosed, ErrAuthFailed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
