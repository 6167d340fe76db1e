package config

// loader.go - configuration loading from environment variables and the
// directory bootstrap file.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tserr "tierstream/internal/errors"
	"tierstream/internal/protocol"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the TIERSTREAM_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("750ms") or whole seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TIERSTREAM_DIRECTORY"); v != "" {
		cfg.Directory = v
	}
	if v := os.Getenv("TIERSTREAM_DIRECTORY_FILE"); v != "" {
		cfg.DirectoryFile = v
	}
	if v, ok := envDuration("TIERSTREAM_TIMEOUT"); ok {
		cfg.ConnTimeout = v
	}
	if v, ok := envDuration("TIERSTREAM_DISCONNECT_GRACE"); ok {
		cfg.DisconnectGrace = v
	}
	if v, ok := envDuration("TIERSTREAM_HEARTBEAT"); ok {
		cfg.HeartbeatInterval = v
	}
	if v := envInt("TIERSTREAM_FRAME_SIZE"); v > 0 {
		cfg.FrameBufferSize = v
	}
	if v := envInt("TIERSTREAM_DIRECTORY_ATTEMPTS"); v > 0 {
		cfg.DirectoryAttempts = v
	}
	if v, ok := envDuration("TIERSTREAM_RETRY_DELAY"); ok {
		cfg.DiscoveryRetryDelay = v
	}
	if v := os.Getenv("TIERSTREAM_SONG_DIR"); v != "" {
		cfg.SongDir = v
	}
	if v := os.Getenv("TIERSTREAM_PLAYER"); v != "" {
		cfg.Player = v
	}

	// SSH gateway
	if v := os.Getenv("TIERSTREAM_GATEWAY"); v != "" {
		cfg.GatewaySpec = v
	}
	if v := os.Getenv("TIERSTREAM_GATEWAY_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("TIERSTREAM_GATEWAY_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("TIERSTREAM_GATEWAY_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("TIERSTREAM_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("TIERSTREAM_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("TIERSTREAM_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("TIERSTREAM_STATS") {
		cfg.Stats = true
	}
}

// ── Bootstrap file ───────────────────────────────────────────────────

// LoadDirectoryFile reads the directory endpoint from a bootstrap file
// of "IP:<address>" and "PORT:<port>" lines.  Whitespace anywhere in a
// line is ignored, as are blank lines, "#" comments and unknown keys.
// A missing PORT line falls back to [DefaultDirectoryPort].  Every
// failure is a *errors.ConfigError.
func LoadDirectoryFile(path string) (protocol.Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return protocol.Endpoint{}, &tserr.ConfigError{
			Field:   "directory-file",
			Value:   path,
			Message: err.Error(),
			Hint:    "create it with IP:<address> and PORT:<port> lines, or pass -d host:port",
		}
	}
	defer f.Close()

	var host string
	port := DefaultDirectoryPort
	sc := bufio.NewScanner(f)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.Join(strings.Fields(sc.Text()), "")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, protocol.Separator)
		if !ok {
			continue
		}
		switch strings.ToUpper(key) {
		case "IP":
			host = val
		case "PORT":
			p, err := strconv.Atoi(val)
			if err != nil {
				return protocol.Endpoint{}, &tserr.ConfigError{
					Field:   "directory-file",
					Value:   path,
					Message: fmt.Sprintf("line %d: invalid port %q", lineNo, val),
				}
			}
			port = p
		}
	}
	if err := sc.Err(); err != nil {
		return protocol.Endpoint{}, &tserr.ConfigError{Field: "directory-file", Value: path, Message: err.Error()}
	}

	ep, err := protocol.EndpointOf(host, port)
	if err != nil {
		return protocol.Endpoint{}, &tserr.ConfigError{
			Field:   "directory-file",
			Value:   path,
			Message: err.Error(),
			Hint:    "expected an IP:<address> line",
		}
	}
	return ep, nil
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
