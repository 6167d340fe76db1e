// Package playback defines what happens to a song once it has been
// fully assembled.  Each sink encapsulates a single behaviour (save to
// disk, pipe to a player, copy to a writer) and is driven one song at a
// time by the session's playback loop.
package playback

import (
	"context"

	tserr "tierstream/internal/errors"
)

// Sink consumes one completed song.  It blocks until the song has been
// handled or ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, song []byte) error
}

// Tee plays every song on each sink in order.  All sinks run even when
// an earlier one fails; the failures are joined.
type Tee []Sink

// Play implements [Sink].
func (t Tee) Play(ctx context.Context, song []byte) error {
	var errs []error
	for _, s := range t {
		if err := s.Play(ctx, song); err != nil {
			errs = append(errs, err)
		}
	}
	return tserr.Join(errs...)
}
