// Package output implements an output source: the per-output state that
// pulls chunks from a shared pipe, runs them through replay-gain and a
// cross-fade mix against a companion chunk, filters the result, and
// hands bytes to a blocking Driver. Grounded directly on
// original_source/src/output/Source.cxx's Fill/FilterChunk/ConsumeData.
package output

import (
	"fmt"

	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/filter"
	"github.com/drgolem/musictools/pkg/pipe"
)

// Driver is the blocking external collaborator an output source writes
// filtered PCM into.
type Driver interface {
	Open(format chunk.Format) error
	Close() error
	Play(pcm []byte) (int, error)
	Cancel()
	Pause()
	Drain() error
}

// chunkReturner is the subset of *buffer.Buffer a Source needs to return
// fully-consumed chunks to. Declared here, not imported from buffer, to
// match the same lower-package-doesn't-import-its-caller layering pipe
// uses for the same reason.
type chunkReturner interface {
	Return(c *chunk.Chunk)
}

// Source is one output's view of the shared pipe: it owns its own
// replay-gain and output filter chains so that multiple outputs can run
// different gain settings or sample rates off the same decoded stream.
type Source struct {
	pipe *pipe.Pipe
	free chunkReturner

	inFormat chunk.Format

	gain      *filter.GainFilter
	otherGain *filter.GainFilter
	chain     *filter.Chain

	gainSerial      uint32
	otherGainSerial uint32

	current     *chunk.Chunk
	pendingData []byte

	crossFadeBuf []byte
}

// NewSource returns a Source reading from p, running chunks through
// chain after replay-gain and cross-fade mixing. Fully-consumed chunks
// are returned to free.
func NewSource(p *pipe.Pipe, free chunkReturner, chain *filter.Chain) *Source {
	return &Source{
		pipe:            p,
		free:            free,
		chain:           chain,
		gain:            filter.NewGainFilter(),
		otherGain:       filter.NewGainFilter(),
		gainSerial:      chunk.IgnoreReplayGain,
		otherGainSerial: chunk.IgnoreReplayGain,
	}
}

// SetReplayGainMode selects which replay-gain scope (off, track, album)
// both the primary and cross-fade companion gain filters apply.
func (s *Source) SetReplayGainMode(mode filter.GainMode) {
	s.gain.SetMode(mode)
	s.otherGain.SetMode(mode)
}

// Open (re)opens the source's filter chains for audioFormat and returns
// the format bytes will be delivered in after filtering. Caller holds the
// shared lock; Open itself does not block on I/O.
func (s *Source) Open(audioFormat chunk.Format) (chunk.Format, error) {
	s.inFormat = audioFormat
	s.gain.Open(audioFormat)
	s.otherGain.Open(audioFormat)
	return s.chain.Open(audioFormat)
}

// Close tears down the source's state, returning any in-flight chunk to
// its pipe's free list via Cancel.
func (s *Source) Close() {
	s.Cancel()
	s.chain.Close()
}

// Cancel drops the current chunk and drains the pipe, resetting the
// filter chains so gain and resampler history don't bleed across songs.
// Caller holds the shared lock.
func (s *Source) Cancel() {
	s.current = nil
	s.pendingData = nil
	s.pipe.Cancel()
	s.gain.Reset()
	s.otherGain.Reset()
	s.chain.Reset()
}

// chunkPCM returns a chunk's PCM, replay-gain filtered if c carries a
// fresh serial. gain/serial track state across calls so the gain filter
// only reconfigures when the chunk's song (and hence its replay-gain
// scope) actually changed.
func (s *Source) chunkPCM(c *chunk.Chunk, gain *filter.GainFilter, serial *uint32) ([]byte, error) {
	data := c.Bytes()
	if len(data) == 0 {
		return data, nil
	}

	if c.ReplayGainSerial != *serial && c.ReplayGainSerial != chunk.IgnoreReplayGain {
		gain.SetInfo(c.ReplayGainInfo)
		*serial = c.ReplayGainSerial
	}

	return gain.FilterPCM(data)
}

// FilterChunk runs c (and, if present, its cross-fade companion) through
// replay gain, mixes them by c.MixRatio, then runs the output filter
// chain. Caller does not hold the shared lock; this may block for as
// long as the filter chain takes.
func (s *Source) FilterChunk(c *chunk.Chunk) ([]byte, error) {
	data, err := s.chunkPCM(c, s.gain, &s.gainSerial)
	if err != nil {
		return nil, fmt.Errorf("output: replay gain: %w", err)
	}
	if len(data) == 0 {
		return data, nil
	}

	if c.Other != nil {
		otherData, err := s.chunkPCM(c.Other, s.otherGain, &s.otherGainSerial)
		if err != nil {
			return nil, fmt.Errorf("output: replay gain (companion): %w", err)
		}
		if len(otherData) == 0 {
			return data, nil
		}

		if len(data) > len(otherData) {
			data = data[:len(otherData)]
		}

		mixed, err := s.mix(data, otherData, c.MixRatio)
		if err != nil {
			return nil, err
		}
		data = mixed
	}

	out, err := s.chain.FilterPCM(data)
	if err != nil {
		return nil, fmt.Errorf("output: filter chain: %w", err)
	}
	return out, nil
}

// mix blends primary into a copy of other at ratio: output =
// other*(1-ratio) + primary*ratio, so ratio=1 yields all primary and
// ratio=0 yields all other, matching Plan.Ratios' "0 means all outgoing,
// 1 means all incoming" convention with primary bound to the outgoing
// chunk. A negative ratio is the MixRamp additive special case, summing
// the two streams instead of interpolating between them.
func (s *Source) mix(primary, other []byte, ratio float32) ([]byte, error) {
	if s.inFormat.BitsPerSample != 16 {
		return nil, fmt.Errorf("output: cross-fade mixing requires 16-bit PCM, got %d-bit", s.inFormat.BitsPerSample)
	}

	if cap(s.crossFadeBuf) < len(other) {
		s.crossFadeBuf = make([]byte, len(other))
	}
	dest := s.crossFadeBuf[:len(other)]
	copy(dest, other)

	if ratio < 0 {
		mixAdditive16(dest, primary)
		return dest, nil
	}

	mixLinear16(dest, primary, ratio)
	return dest, nil
}

func sampleAt(b []byte, i int) int16 {
	return int16(uint16(b[i]) | uint16(b[i+1])<<8)
}

func putSampleAt(b []byte, i int, v int16) {
	b[i] = byte(v)
	b[i+1] = byte(v >> 8)
}

func clampInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// mixLinear16 mixes b (the destination, initially a copy of "other")
// with a at weight aWeight, writing the result into b in place.
func mixLinear16(b, a []byte, aWeight float32) {
	n := len(b)
	if len(a) < n {
		n = len(a)
	}
	bWeight := 1 - aWeight
	for i := 0; i+1 < n; i += 2 {
		sa := float32(sampleAt(a, i))
		sb := float32(sampleAt(b, i))
		putSampleAt(b, i, clampInt16(int32(sa*aWeight+sb*bWeight)))
	}
}

// mixAdditive16 sums a into b in place, the MixRamp special case where
// both streams are already at their natural crossing loudness.
func mixAdditive16(b, a []byte) {
	n := len(b)
	if len(a) < n {
		n = len(a)
	}
	for i := 0; i+1 < n; i += 2 {
		sa := int32(sampleAt(a, i))
		sb := int32(sampleAt(b, i))
		putSampleAt(b, i, clampInt16(sa+sb))
	}
}

// Fill ensures Source has a pending byte slice ready to hand to a
// driver, pulling and filtering the next chunk from the pipe if needed.
// It returns false when the pipe is currently empty. Caller holds the
// shared lock, which Fill releases while the filter chain runs.
func (s *Source) Fill(unlock, relock func()) (bool, error) {
	if s.current != nil && len(s.pendingData) == 0 {
		s.consumeCurrentLocked()
	}

	if s.current != nil {
		return true, nil
	}

	c := s.pipe.Pop()
	if c == nil {
		return false, nil
	}
	s.current = c

	unlock()
	data, err := s.FilterChunk(c)
	relock()

	if err != nil {
		s.current = nil
		return false, err
	}
	s.pendingData = data
	return true, nil
}

// ConsumeData records that the driver accepted n bytes of the pending
// chunk, releasing the chunk back to its free list once fully consumed.
// Caller holds the shared lock.
func (s *Source) ConsumeData(n int) {
	if n >= len(s.pendingData) {
		s.pendingData = nil
	} else {
		s.pendingData = s.pendingData[n:]
	}
	if len(s.pendingData) == 0 {
		s.consumeCurrentLocked()
	}
}

// Pending returns the bytes a driver should write next, or nil if Fill
// has not produced any yet.
func (s *Source) Pending() []byte {
	return s.pendingData
}

func (s *Source) consumeCurrentLocked() {
	s.free.Return(s.current)
	s.current = nil
}
