package playback

import (
	"context"
	"io"
	"sync"
)

// Writer copies each song to W, for example stdout piped into a
// player.
type Writer struct {
	W io.Writer

	mu sync.Mutex
}

// Play implements [Sink].
func (w *Writer) Play(ctx context.Context, song []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.W.Write(song)
	return err
}
