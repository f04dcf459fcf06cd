// Package chunk defines the fixed-size PCM buffer that the decoder thread
// fills and the output sources drain. It is adapted from the teacher's
// pkg/audioframe.AudioFrame, generalized with the fields the three-thread
// playback engine needs: a companion pointer for cross-fade mixing, a
// replay-gain serial, and a time-of-day marker for elapsed computation.
package chunk

import "time"

// MaxCapacity is the fixed byte capacity of every chunk, matching the
// decoder's "decode N samples at a time" granularity used throughout the
// corpus (4 KiB of PCM).
const MaxCapacity = 4096

// IgnoreReplayGain is the sentinel serial value that disables replay-gain
// processing for a chunk even when a replay-gain filter is installed.
const IgnoreReplayGain uint32 = ^uint32(0)

// Format describes a PCM stream's shape.
type Format struct {
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
}

// IsValid reports whether the format has been populated.
func (f Format) IsValid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.BitsPerSample > 0
}

// FrameSize returns the byte size of one PCM frame (one sample per channel).
func (f Format) FrameSize() int {
	return int(f.Channels) * int(f.BitsPerSample) / 8
}

// Equal reports whether two formats describe the same PCM shape.
func (f Format) Equal(other Format) bool {
	return f.SampleRate == other.SampleRate &&
		f.Channels == other.Channels &&
		f.BitsPerSample == other.BitsPerSample
}

// ReplayGainInfo carries per-song loudness normalization data.
type ReplayGainInfo struct {
	TrackGain float64
	TrackPeak float64
	AlbumGain float64
	AlbumPeak float64
}

// Tag is a metadata snapshot attached to a chunk when the underlying
// decoder plugin delivers one mid-stream.
type Tag struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// Chunk is a fixed-capacity region of PCM frames plus the metadata the
// output source needs to mix and filter it.
type Chunk struct {
	data   [MaxCapacity]byte
	Length int // bytes filled, 0 <= Length <= MaxCapacity

	Format Format

	// Tag is an optional metadata snapshot carried by this chunk.
	Tag *Tag

	// Other is a non-owning companion chunk used only during cross-fade
	// mixing. Its lifetime is bounded by the containing chunk's filter
	// run; nobody frees it through this pointer.
	Other *Chunk

	// MixRatio is in [0,1] for a time-based cross-fade, or negative to
	// signal MixRamp additive mode (see Output Source step 3).
	MixRatio float32

	// ReplayGainSerial increments once per gain scope (e.g. once per
	// song); IgnoreReplayGain disables gain processing for this chunk.
	ReplayGainSerial uint32
	ReplayGainInfo   *ReplayGainInfo

	// TimeOfDay marks a chunk that corresponds to a player elapsed-time
	// checkpoint.
	TimeOfDay bool
}

// Reset clears a chunk's metadata and length so it can be reused from the
// free list. The backing byte array is left untouched; Length governs how
// much of it is considered valid.
func (c *Chunk) Reset() {
	c.Length = 0
	c.Format = Format{}
	c.Tag = nil
	c.Other = nil
	c.MixRatio = 0
	c.ReplayGainSerial = 0
	c.ReplayGainInfo = nil
	c.TimeOfDay = false
}

// IsEmpty reports whether the chunk currently holds no PCM data.
func (c *Chunk) IsEmpty() bool {
	return c.Length == 0
}

// IsFull reports whether the chunk has reached its byte capacity.
func (c *Chunk) IsFull() bool {
	return c.Length >= MaxCapacity
}

// Bytes returns the filled portion of the chunk's backing buffer.
func (c *Chunk) Bytes() []byte {
	return c.data[:c.Length]
}

// Write appends audio bytes to the chunk, never writing past MaxCapacity.
// It returns the number of bytes actually written.
func (c *Chunk) Write(src []byte) int {
	room := MaxCapacity - c.Length
	n := len(src)
	if n > room {
		n = room
	}
	copy(c.data[c.Length:c.Length+n], src[:n])
	c.Length += n
	return n
}

// CheckFormat reports whether the chunk was filled for the given format.
func (c *Chunk) CheckFormat(f Format) bool {
	return c.Format.Equal(f)
}
