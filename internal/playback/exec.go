package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"tierstream/util"
)

// Exec pipes each song into a child process's stdin, typically an
// audio player reading from "-".  Command runs via the system shell.
type Exec struct {
	Command string
	Stdout  io.Writer // nil discards
	Stderr  io.Writer // nil discards
	Logger  *util.Logger
}

// Play implements [Sink].  It returns once the child exits.
func (e *Exec) Play(ctx context.Context, song []byte) error {
	if e.Command == "" {
		return fmt.Errorf("no player command specified")
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", e.Command)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", e.Command)
	}
	cmd.Stdin = bytes.NewReader(song)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	if e.Logger != nil {
		e.Logger.Debug("player: %s", cmd.String())
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("player %q: %w", e.Command, err)
	}
	return nil
}
