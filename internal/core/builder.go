package core

import (
	"os"

	"tierstream/config"
	"tierstream/internal/metrics"
	"tierstream/internal/playback"
	"tierstream/internal/retry"
	"tierstream/internal/transport"
	"tierstream/tunnel"
	"tierstream/util"
)

// Build constructs the client from a validated configuration.  mc may
// be nil.
func Build(cfg *config.Config, logger *util.Logger, mc *metrics.Collector) (Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ClientMode{
		Config:   cfg,
		Dialer:   buildDialer(cfg, logger),
		Resolver: cfg,
		Sink:     buildSink(cfg, logger),
		Breaker:  buildBreaker(cfg, logger),
		Metrics:  mc,
		Logger:   logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.GatewayEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:              cfg.GatewayUser,
			Host:              cfg.GatewayHost,
			Port:              cfg.GatewayPort,
			KeyPath:           cfg.SSHKeyPath,
			PromptPass:        cfg.SSHPassword,
			UseAgent:          cfg.UseSSHAgent,
			StrictHostKey:     cfg.StrictHostKey,
			KnownHosts:        cfg.KnownHostsPath,
			ConnTimeout:       cfg.ConnTimeout,
			KeepaliveInterval: cfg.GatewayKeepAlive,
		}, logger)
	}

	return &transport.TCPDialer{Timeout: cfg.ConnTimeout}
}

// buildSink selects what happens to completed songs: saved under
// SongDir, piped to Player, or both.
func buildSink(cfg *config.Config, logger *util.Logger) playback.Sink {
	var tee playback.Tee
	if cfg.SongDir != "" {
		tee = append(tee, &playback.File{Dir: cfg.SongDir, Logger: logger})
	}
	if cfg.Player != "" {
		tee = append(tee, &playback.Exec{Command: cfg.Player, Stderr: os.Stderr, Logger: logger})
	}
	switch len(tee) {
	case 0:
		return nil
	case 1:
		return tee[0]
	default:
		return tee
	}
}

// buildBreaker bounds how often the console re-asks the directory
// after "No server of the requested type".
func buildBreaker(cfg *config.Config, logger *util.Logger) *retry.CircuitBreaker {
	return retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		MaxFailures:  cfg.DiscoveryMaxFailures,
		ResetTimeout: 30 * cfg.DiscoveryRetryDelay,
		HalfOpenMax:  1,
		OnStateChange: func(from, to retry.State) {
			logger.Verbose("server discovery circuit %s → %s", from, to)
		},
	})
}
