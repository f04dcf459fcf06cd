// Package filter is the PCM filter chain a decoder's output can be run
// through before an output source consumes it: replay-gain scaling and
// sample-rate conversion, built around the teacher's github.com/zaf/resample
// dependency exposed as a streaming Filter interface so it can run inline
// in the playback path.
package filter

import "github.com/drgolem/musictools/pkg/chunk"

// Filter transforms a stream of PCM bytes in place, keeping whatever
// internal state it needs between calls (e.g. a resampler's history).
type Filter interface {
	// Open prepares the filter for a stream in the given format and
	// returns the format that comes out the other end.
	Open(in chunk.Format) (chunk.Format, error)

	// FilterPCM transforms one buffer's worth of PCM audio and returns
	// the transformed bytes. The returned slice may alias buffers owned
	// by the filter; callers must copy before the next call if they
	// need to retain it.
	FilterPCM(pcm []byte) ([]byte, error)

	// Reset clears any per-stream state carried between songs.
	Reset()

	// Close releases resources held by the filter.
	Close() error
}

// Chain runs a sequence of filters, feeding each one's output into the
// next.
type Chain struct {
	stages []Filter
}

// NewChain returns a Chain that runs stages in order.
func NewChain(stages ...Filter) *Chain {
	return &Chain{stages: stages}
}

// Open opens every stage in order, threading the format each stage
// produces into the next stage's Open.
func (c *Chain) Open(in chunk.Format) (chunk.Format, error) {
	f := in
	for _, s := range c.stages {
		out, err := s.Open(f)
		if err != nil {
			return chunk.Format{}, err
		}
		f = out
	}
	return f, nil
}

// FilterPCM runs pcm through every stage in order.
func (c *Chain) FilterPCM(pcm []byte) ([]byte, error) {
	data := pcm
	for _, s := range c.stages {
		out, err := s.FilterPCM(data)
		if err != nil {
			return nil, err
		}
		data = out
	}
	return data, nil
}

// Reset resets every stage.
func (c *Chain) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
}

// Close closes every stage, returning the first error encountered while
// still attempting to close the rest.
func (c *Chain) Close() error {
	var first error
	for _, s := range c.stages {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
