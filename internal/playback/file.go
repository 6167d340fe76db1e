package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"tierstream/util"
)

// File saves each song to its own file under Dir.
type File struct {
	Dir    string
	Ext    string // defaults to ".mp3"
	Logger *util.Logger

	seq atomic.Int64
}

// Play implements [Sink].
func (f *File) Play(ctx context.Context, song []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("song dir: %w", err)
	}

	ext := f.Ext
	if ext == "" {
		ext = ".mp3"
	}
	name := fmt.Sprintf("song-%s-%03d%s", time.Now().Format("20060102-150405"), f.seq.Add(1), ext)
	path := filepath.Join(f.Dir, name)

	if err := os.WriteFile(path, song, 0o644); err != nil {
		return fmt.Errorf("save song: %w", err)
	}
	if f.Logger != nil {
		f.Logger.Info("saved %d bytes to %s", len(song), path)
	}
	return nil
}
