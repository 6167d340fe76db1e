package util

import "sync"

// ChunkSize is the receive size used while a song's raw bytes are
// streamed.  The streaming server writes 4 KiB blocks; a larger buffer
// lets one read pick up several of them.
const ChunkSize = 16 * 1024

// chunkPool provides reusable receive buffers for song assembly, which
// otherwise allocates one buffer per song on the hot path.
var chunkPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ChunkSize)
		return &buf
	},
}

// GetChunk retrieves a buffer from the pool.  Callers must return it
// with [PutChunk] when finished.
func GetChunk() *[]byte {
	return chunkPool.Get().(*[]byte)
}

// PutChunk returns a buffer to the pool for reuse.
func PutChunk(buf *[]byte) {
	if buf == nil || len(*buf) != ChunkSize {
		return
	}
	chunkPool.Put(buf)
}
