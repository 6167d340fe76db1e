package mailbox

import (
	tserr "tierstream/internal/errors"
)

// NewSongBuffer starts a new, empty song at the back of the song list.
// A song still being assembled is replaced: its stream can no longer
// complete once another one starts.
func (m *Mailbox) NewSongBuffer() {
	m.songMu.Lock()
	defer m.songMu.Unlock()

	if n := len(m.songs); n > 0 && !m.songs[n-1].complete {
		m.songs[n-1] = &song{}
		return
	}
	m.songs = append(m.songs, &song{})
}

// AppendToCurrentSong appends p to the song being assembled, starting
// one if none is in progress.  It returns the buffered size of that
// song.
func (m *Mailbox) AppendToCurrentSong(p []byte) int {
	m.songMu.Lock()
	defer m.songMu.Unlock()

	cur := m.current()
	cur.data.Write(p)
	return cur.data.Len()
}

// CompleteCurrentSong marks the song being assembled as fully received
// and signals [Mailbox.SongReady].
func (m *Mailbox) CompleteCurrentSong() {
	m.songMu.Lock()
	m.current().complete = true
	m.songMu.Unlock()
	poke(m.songReady)
}

// DiscardIncompleteSong drops the song being assembled, if any.  Used
// when the stream is cut before its terminator arrives so the partial
// buffer does not block the songs queued after it.
func (m *Mailbox) DiscardIncompleteSong() {
	m.songMu.Lock()
	defer m.songMu.Unlock()

	if n := len(m.songs); n > 0 && !m.songs[n-1].complete {
		m.songs[n-1] = nil
		m.songs = m.songs[:n-1]
	}
}

// TakeCompletedSong removes and returns the oldest song if it is
// complete.  Songs are handed out strictly in arrival order.
func (m *Mailbox) TakeCompletedSong() ([]byte, error) {
	m.songMu.Lock()
	defer m.songMu.Unlock()

	if len(m.songs) == 0 || !m.songs[0].complete {
		return nil, tserr.ErrNoCompletedSong
	}
	s := m.songs[0]
	m.songs[0] = nil
	m.songs = m.songs[1:]
	return s.data.Bytes(), nil
}

// SongReady is signalled whenever a song completes.  The signal is
// coalesced; drain with TakeCompletedSong until it reports no song.
func (m *Mailbox) SongReady() <-chan struct{} { return m.songReady }

// PendingSongs returns the number of songs held, complete or not.
func (m *Mailbox) PendingSongs() int {
	m.songMu.Lock()
	defer m.songMu.Unlock()
	return len(m.songs)
}

// current returns the song being assembled.  Caller holds songMu.
func (m *Mailbox) current() *song {
	if n := len(m.songs); n > 0 && !m.songs[n-1].complete {
		return m.songs[n-1]
	}
	s := &song{}
	m.songs = append(m.songs, s)
	return s
}
