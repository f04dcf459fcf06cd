// Package pipe is the FIFO of decoded chunks handed from the decoder
// thread to an output source. Grounded on the queue half of the
// teacher's pkg/audioframeringbuffer, split out from the free list
// (pkg/buffer) because a pipe's cancel() must return every queued chunk
// to the free list in one call, and because the playback engine's
// locking discipline requires the pipe to take no lock of its own: it is
// always mutated under the syncutil.Hub's shared mutex.
package pipe

import "github.com/drgolem/musictools/pkg/chunk"

// Pipe is a FIFO queue of chunks waiting to be consumed by one output
// source. Every method requires the caller already hold the shared lock
// the pipe was constructed under; Pipe performs no locking itself.
type Pipe struct {
	queue []*chunk.Chunk
	free  returner
}

// returner is the subset of *buffer.Buffer a Pipe needs to return
// cancelled chunks to. Declared as an interface here so pipe never
// imports buffer, keeping the dependency direction the same as the
// teacher's layering (lower-level packages don't import their callers).
type returner interface {
	Return(c *chunk.Chunk)
}

// New returns an empty Pipe that returns cancelled chunks to free.
func New(free returner) *Pipe {
	return &Pipe{free: free, queue: make([]*chunk.Chunk, 0, 16)}
}

// Push appends a chunk to the tail of the pipe. Caller holds the lock.
func (p *Pipe) Push(c *chunk.Chunk) {
	p.queue = append(p.queue, c)
}

// Pop removes and returns the chunk at the head of the pipe, or nil if
// the pipe is empty. Caller holds the lock.
func (p *Pipe) Pop() *chunk.Chunk {
	if len(p.queue) == 0 {
		return nil
	}
	c := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return c
}

// Peek returns the chunk at the head of the pipe without removing it, or
// nil if the pipe is empty. Caller holds the lock.
func (p *Pipe) Peek() *chunk.Chunk {
	if len(p.queue) == 0 {
		return nil
	}
	return p.queue[0]
}

// Size reports the number of chunks currently queued. Caller holds the
// lock.
func (p *Pipe) Size() int {
	return len(p.queue)
}

// Cancel drains every queued chunk back to the free list, leaving the
// pipe empty. Used when a song is skipped or playback is stopped
// mid-stream. Caller holds the lock.
func (p *Pipe) Cancel() {
	for _, c := range p.queue {
		p.free.Return(c)
	}
	p.queue = p.queue[:0]
}
