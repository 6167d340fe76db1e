// Package cmd wires up the CLI flags and starts the streaming client.
package cmd

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"tierstream/config"
	"tierstream/internal/core"
	"tierstream/internal/metrics"
	"tierstream/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tierstream/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the client.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)
	fs := flag.NewFlagSet("tierstream", flag.ContinueOnError)

	// ── directory ────────────────────────────────────────────────
	fs.StringVarP(&cfg.Directory, "directory", "d", cfg.Directory, "Directory server host[:port]")
	fs.StringVar(&cfg.DirectoryFile, "directory-file", cfg.DirectoryFile, "Bootstrap file with IP:/PORT: lines")
	fs.IntVar(&cfg.DirectoryAttempts, "directory-attempts", cfg.DirectoryAttempts, "Directory connect attempts before giving up")

	// ── session ──────────────────────────────────────────────────
	fs.DurationVarP(&cfg.ConnTimeout, "timeout", "w", cfg.ConnTimeout, "Connect timeout")
	fs.DurationVar(&cfg.DisconnectGrace, "grace", cfg.DisconnectGrace, "How long to wait for a server to close after DISCONNECT")
	fs.IntVar(&cfg.FrameBufferSize, "frame-size", cfg.FrameBufferSize, "Receive buffer for one control frame")
	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat", cfg.HeartbeatInterval, "Directory HEARTBEAT interval (0 disables)")
	fs.DurationVar(&cfg.DiscoveryRetryDelay, "retry-delay", cfg.DiscoveryRetryDelay, "Wait before asking again when no server is available")

	// ── playback ─────────────────────────────────────────────────
	fs.StringVar(&cfg.SongDir, "song-dir", cfg.SongDir, "Save completed songs here (empty disables)")
	fs.StringVar(&cfg.Player, "player", cfg.Player, "Shell command each song is piped to, e.g. \"mpv -\"")

	// ── SSH gateway ──────────────────────────────────────────────
	fs.StringVarP(&cfg.GatewaySpec, "gateway", "g", cfg.GatewaySpec, "Reach the servers through SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "gateway-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "gateway-password", cfg.SSHPassword, "Prompt for the SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "gateway-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print session metrics as JSON on exit")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("tierstream %s\n", version)
		return nil
	}
	if verbose > 0 {
		cfg.Verbose += verbose
	}

	// ── positional arguments ─────────────────────────────────────
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		if fs.Changed("directory") {
			return fmt.Errorf("directory given twice: -d %s and %s", cfg.Directory, rest[0])
		}
		cfg.Directory = rest[0]
	default:
		return fmt.Errorf("too many arguments (use --help for usage)")
	}

	// ── gateway spec ─────────────────────────────────────────────
	if cfg.GatewaySpec != "" {
		user, host, port, err := config.ParseGatewaySpec(cfg.GatewaySpec)
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		cfg.GatewayEnabled = true
		cfg.GatewayUser = user
		cfg.GatewayHost = host
		cfg.GatewayPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		return dryRun(cfg)
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	mc := metrics.New()

	mode, err := core.Build(cfg, logger, mc)
	if err != nil {
		return err
	}
	err = mode.Run(ctx)
	if cfg.Stats {
		fmt.Fprintln(os.Stderr, mc.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// dryRun resolves the directory once, without dialling, and prints
// what a real run would use.
func dryRun(cfg *config.Config) error {
	ep, err := cfg.ResolveDirectory()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "directory: %s\n", ep)
	if cfg.GatewayEnabled {
		fmt.Fprintf(os.Stderr, "gateway:   %s@%s:%d\n", cfg.GatewayUser, cfg.GatewayHost, cfg.GatewayPort)
	}
	if cfg.SongDir != "" {
		fmt.Fprintf(os.Stderr, "songs:     %s\n", cfg.SongDir)
	}
	if cfg.Player != "" {
		fmt.Fprintf(os.Stderr, "player:    %s\n", cfg.Player)
	}
	fmt.Fprintln(os.Stderr, "configuration OK")
	return nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tierstream: music streaming client v%s

Finds a login server through the directory, logs in, then streams from
a streaming server, following every hand-off the servers ask for.

Usage:
  tierstream [options] [directory-host[:port]]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  tierstream                                  Use %s
  tierstream 10.0.0.2:57313                   Explicit directory
  tierstream -v --player "mpv -" 10.0.0.2     Pipe songs to a player
  tierstream -g ops@bastion 10.0.0.2:57313    Through an SSH gateway

Environment:
  TIERSTREAM_DIRECTORY, TIERSTREAM_GATEWAY, TIERSTREAM_VERBOSE, ... mirror the flags.
`, config.DefaultDirectoryFile)
}
