package session

import (
	"bytes"
	"io"

	"tierstream/internal/mailbox"
	"tierstream/internal/metrics"
	"tierstream/internal/protocol"
	"tierstream/util"
)

var terminator = []byte(protocol.SongTerminator)

// Assembler rebuilds one song from the raw chunks that follow a SONG
// header.  The payload has no length prefix; it ends at the first
// chunk containing the terminator.  A terminator split across two
// reads is not recognised.
type Assembler struct {
	mb      *mailbox.Mailbox
	metrics *metrics.Collector
	active  bool
}

// NewAssembler returns an Assembler writing into mb.
func NewAssembler(mb *mailbox.Mailbox, m *metrics.Collector) *Assembler {
	return &Assembler{mb: mb, metrics: m}
}

// Begin opens a new song buffer.
func (a *Assembler) Begin() {
	a.mb.NewSongBuffer()
	a.active = true
}

// Feed appends one chunk and reports whether it completed the song.
// Bytes after the terminator in the same chunk are discarded.  Chunks
// fed while no song is open are ignored.
func (a *Assembler) Feed(chunk []byte) bool {
	if !a.active {
		return false
	}
	i := bytes.Index(chunk, terminator)
	if i < 0 {
		a.mb.AppendToCurrentSong(chunk)
		a.metrics.SongChunk(len(chunk))
		return false
	}
	a.mb.AppendToCurrentSong(chunk[:i])
	a.metrics.SongChunk(i)
	a.mb.CompleteCurrentSong()
	a.metrics.SongAssembled()
	a.active = false
	return true
}

// Abort drops the song being assembled.
func (a *Assembler) Abort() {
	if a.active {
		a.mb.DiscardIncompleteSong()
		a.active = false
	}
}

// Stream assembles a whole song from r.  first holds payload bytes
// that arrived with the SONG header.  It returns nil once the song is
// complete; on a read error the partial song is discarded and the
// error returned.
func (a *Assembler) Stream(r io.Reader, first []byte) error {
	a.Begin()
	if len(first) > 0 && a.Feed(first) {
		return nil
	}

	buf := util.GetChunk()
	defer util.PutChunk(buf)

	for {
		n, err := r.Read(*buf)
		if n > 0 && a.Feed((*buf)[:n]) {
			return nil
		}
		if err != nil {
			a.Abort()
			return err
		}
	}
}
