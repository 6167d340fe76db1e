// Package metrics provides lightweight, lock-free counters for tracking
// the runtime behaviour of a streaming session: connections and
// hand-offs between servers, bytes on the wire, songs assembled and
// errors.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive  atomic.Int64
	connectionsTotal   atomic.Int64
	handoffs           atomic.Int64
	directoryFallbacks atomic.Int64
	bytesIn            atomic.Int64
	bytesOut           atomic.Int64
	framesIn           atomic.Int64
	framesOut          atomic.Int64
	framesIgnored      atomic.Int64
	songsAssembled     atomic.Int64
	songBytes          atomic.Int64
	errorsTotal        atomic.Int64

	mu            sync.RWMutex
	startTime     time.Time
	lastHeartbeat time.Time
	lastError     time.Time
	lastErrorMsg  string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── Hand-off metrics ─────────────────────────────────────────────────

// Handoff records a planned move to an explicitly recorded next server.
func (c *Collector) Handoff() {
	if c == nil {
		return
	}
	c.handoffs.Add(1)
}

// DirectoryFallback records an unplanned return to the directory.
func (c *Collector) DirectoryFallback() {
	if c == nil {
		return
	}
	c.directoryFallbacks.Add(1)
}

// Handoffs returns the number of planned hand-offs.
func (c *Collector) Handoffs() int64 {
	if c == nil {
		return 0
	}
	return c.handoffs.Load()
}

// DirectoryFallbacks returns the number of unplanned directory returns.
func (c *Collector) DirectoryFallbacks() int64 {
	if c == nil {
		return 0
	}
	return c.directoryFallbacks.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// FrameReceived records one inbound frame of n bytes.
func (c *Collector) FrameReceived(n int) {
	if c == nil {
		return
	}
	c.framesIn.Add(1)
	c.bytesIn.Add(int64(n))
}

// FrameSent records one outbound frame of n bytes.
func (c *Collector) FrameSent(n int) {
	if c == nil {
		return
	}
	c.framesOut.Add(1)
	c.bytesOut.Add(int64(n))
}

// FrameIgnored records an inbound frame with no meaning for the role
// of its connection.
func (c *Collector) FrameIgnored() {
	if c == nil {
		return
	}
	c.framesIgnored.Add(1)
}

// TotalBytesIn returns total bytes received, song payloads included.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load() + c.songBytes.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Song metrics ─────────────────────────────────────────────────────

// SongChunk records n raw song bytes received.
func (c *Collector) SongChunk(n int) {
	if c == nil {
		return
	}
	c.songBytes.Add(int64(n))
}

// SongAssembled records a song that reached its terminator.
func (c *Collector) SongAssembled() {
	if c == nil {
		return
	}
	c.songsAssembled.Add(1)
}

// SongsAssembled returns the number of completed songs.
func (c *Collector) SongsAssembled() int64 {
	if c == nil {
		return 0
	}
	return c.songsAssembled.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Health ───────────────────────────────────────────────────────────

// RecordHeartbeat updates the time of the last directory heartbeat reply.
func (c *Collector) RecordHeartbeat() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastHeartbeat = time.Now()
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime             string `json:"uptime"`
	ConnectionsActive  int64  `json:"connections_active"`
	ConnectionsTotal   int64  `json:"connections_total"`
	Handoffs           int64  `json:"handoffs"`
	DirectoryFallbacks int64  `json:"directory_fallbacks"`
	BytesIn            int64  `json:"bytes_in"`
	BytesOut           int64  `json:"bytes_out"`
	FramesIn           int64  `json:"frames_in"`
	FramesOut          int64  `json:"frames_out"`
	FramesIgnored      int64  `json:"frames_ignored"`
	SongsAssembled     int64  `json:"songs_assembled"`
	ErrorsTotal        int64  `json:"errors_total"`
	LastHeartbeat      string `json:"last_heartbeat,omitempty"`
	LastError          string `json:"last_error,omitempty"`
	LastErrorMessage   string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:             time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive:  c.connectionsActive.Load(),
		ConnectionsTotal:   c.connectionsTotal.Load(),
		Handoffs:           c.handoffs.Load(),
		DirectoryFallbacks: c.directoryFallbacks.Load(),
		BytesIn:            c.TotalBytesIn(),
		BytesOut:           c.bytesOut.Load(),
		FramesIn:           c.framesIn.Load(),
		FramesOut:          c.framesOut.Load(),
		FramesIgnored:      c.framesIgnored.Load(),
		SongsAssembled:     c.songsAssembled.Load(),
		ErrorsTotal:        c.errorsTotal.Load(),
	}
	if !c.lastHeartbeat.IsZero() {
		s.LastHeartbeat = c.lastHeartbeat.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
