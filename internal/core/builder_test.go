package core

import (
	"testing"

	"tierstream/config"
	tserr "tierstream/internal/errors"
	"tierstream/internal/playback"
	"tierstream/internal/transport"
	"tierstream/util"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Directory = "127.0.0.1:57313"
	cfg.SongDir = ""
	return cfg
}

// TestBuild_Client verifies that Build produces a ClientMode over
// plain TCP by default.
func TestBuild_Client(t *testing.T) {
	mode, err := Build(testConfig(), util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	cm, ok := mode.(*ClientMode)
	if !ok {
		t.Fatalf("expected *ClientMode, got %T", mode)
	}
	if _, ok := cm.Dialer.(*transport.TCPDialer); !ok {
		t.Errorf("dialer = %T, want *transport.TCPDialer", cm.Dialer)
	}
	if cm.Sink != nil {
		t.Errorf("sink = %T, want nil", cm.Sink)
	}
	if cm.Breaker == nil {
		t.Error("no discovery breaker")
	}
}

// TestBuild_Gateway verifies that -g selects the SSH dialer.
func TestBuild_Gateway(t *testing.T) {
	cfg := testConfig()
	cfg.GatewayEnabled = true
	cfg.GatewayUser = "ops"
	cfg.GatewayHost = "bastion"
	cfg.GatewayPort = 22

	mode, err := Build(cfg, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mode.(*ClientMode).Dialer.(*transport.SSHDialer); !ok {
		t.Errorf("dialer = %T, want *transport.SSHDialer", mode.(*ClientMode).Dialer)
	}
}

func TestBuild_Sinks(t *testing.T) {
	tests := []struct {
		name    string
		songDir string
		player  string
		check   func(t *testing.T, s playback.Sink)
	}{
		{"file", "songs", "", func(t *testing.T, s playback.Sink) {
			if f, ok := s.(*playback.File); !ok || f.Dir != "songs" {
				t.Errorf("sink = %#v", s)
			}
		}},
		{"player", "", "mpv -", func(t *testing.T, s playback.Sink) {
			if e, ok := s.(*playback.Exec); !ok || e.Command != "mpv -" {
				t.Errorf("sink = %#v", s)
			}
		}},
		{"both", "songs", "mpv -", func(t *testing.T, s playback.Sink) {
			if tee, ok := s.(playback.Tee); !ok || len(tee) != 2 {
				t.Errorf("sink = %#v", s)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.SongDir = tt.songDir
			cfg.Player = tt.player
			mode, err := Build(cfg, util.NewLogger(0), nil)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, mode.(*ClientMode).Sink)
		})
	}
}

// TestBuild_InvalidConfig verifies that configuration problems surface
// as ConfigError before anything is dialled.
func TestBuild_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Directory = "no-port"
	if _, err := Build(cfg, util.NewLogger(0), nil); !tserr.IsConfig(err) {
		t.Errorf("Build = %v, want ConfigError", err)
	}
}
