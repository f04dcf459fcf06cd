// Package buffer is the fixed-size free list that backs every chunk in
// flight between the decoder and the output sources. It is adapted from
// the teacher's pkg/audioframeringbuffer, rewritten around an explicit
// free list instead of an atomic index ring: the playback engine needs
// allocate() to return a single *chunk.Chunk or none, and cancel() to
// return every pipe-owned chunk to the free list in one call, neither of
// which a lock-free SPSC ring exposes directly.
package buffer

import (
	"sync"

	"github.com/drgolem/musictools/pkg/chunk"
)

// Buffer is the single pool of chunk.Chunk values shared by a decoder and
// its output sources. All chunks are preallocated at construction time;
// nothing is allocated or freed by the Go runtime once playback starts.
type Buffer struct {
	mu    sync.Mutex
	pool  []*chunk.Chunk
	free  []*chunk.Chunk
	total int
}

// New preallocates numChunks chunks and returns a Buffer with all of them
// on the free list.
func New(numChunks int) *Buffer {
	b := &Buffer{
		pool:  make([]*chunk.Chunk, numChunks),
		free:  make([]*chunk.Chunk, 0, numChunks),
		total: numChunks,
	}
	for i := range b.pool {
		b.pool[i] = &chunk.Chunk{}
		b.free = append(b.free, b.pool[i])
	}
	return b
}

// Allocate removes a chunk from the free list and returns it reset and
// ready to fill. It returns nil when the free list is exhausted; callers
// must wait for a chunk to be returned before retrying.
func (b *Buffer) Allocate() *chunk.Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.free)
	if n == 0 {
		return nil
	}
	c := b.free[n-1]
	b.free = b.free[:n-1]
	c.Reset()
	return c
}

// Return puts a chunk back on the free list. c must not be referenced by
// any pipe or output source after this call.
func (b *Buffer) Return(c *chunk.Chunk) {
	if c == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.free = append(b.free, c)
}

// Stats reports the current allocation state, for status reporting and
// tests only.
func (b *Buffer) Stats() (allocated, free, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	free = len(b.free)
	return b.total - free, free, b.total
}
