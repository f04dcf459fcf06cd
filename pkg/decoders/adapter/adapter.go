// Package adapter bridges the corpus's pull-style types.AudioDecoder
// (Open/GetFormat/DecodeSamples/Close) onto the engine's push-style
// decoder.Plugin contract (Open/DecodeInto/Seek/Tag/Close). The decoder
// thread drives DecodeInto once per chunk; the adapter itself drives the
// wrapped decoder's DecodeSamples in a loop until a chunk is full or the
// file ends.
package adapter

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/types"
)

// samplesPerDecodeCall caps how many samples PullAdapter asks the wrapped
// decoder for on each DecodeSamples call while filling a chunk.
const samplesPerDecodeCall = 576

// ErrSeekUnsupported is returned by Seek for decoders with no seek
// support of their own.
var ErrSeekUnsupported = errors.New("adapter: decoder does not support seeking")

// Seeker is implemented by wrapped decoders that can seek to a sample
// position; PullAdapter uses it if the concrete decoder offers it.
type Seeker interface {
	SeekSamples(sample int64) error
}

// PullAdapter wraps a types.AudioDecoder as a decoder.Plugin.
type PullAdapter struct {
	dec  types.AudioDecoder
	fmt  chunk.Format
	rate int
	eof  bool
}

// New wraps dec. fileName is passed through to dec.Open on the plugin's
// Open call.
func New(dec types.AudioDecoder) *PullAdapter {
	return &PullAdapter{dec: dec}
}

// Open opens the underlying file and reports its format. Total time is
// unknown for a pull-style decoder that doesn't expose a frame count, so
// it is always reported as zero; callers fall back to a live end-of-pipe
// detection instead of a duration bar.
func (a *PullAdapter) Open(uri string) (chunk.Format, bool, time.Duration, error) {
	if err := a.dec.Open(uri); err != nil {
		return chunk.Format{}, false, 0, err
	}

	rate, channels, bits := a.dec.GetFormat()
	a.rate = rate
	a.fmt = chunk.Format{
		SampleRate:    uint32(rate),
		Channels:      uint8(channels),
		BitsPerSample: uint8(bits),
	}
	if !a.fmt.IsValid() {
		return chunk.Format{}, false, 0, fmt.Errorf("adapter: %s: invalid format %+v", uri, a.fmt)
	}

	_, seekable := a.dec.(Seeker)
	return a.fmt, seekable, 0, nil
}

// DecodeInto fills c with as many samples as DecodeSamples will give per
// call, repeating until c is full or the stream ends.
func (a *PullAdapter) DecodeInto(c *chunk.Chunk) (bool, error) {
	if a.eof {
		return true, nil
	}

	frameSize := a.fmt.FrameSize()
	if frameSize == 0 {
		return true, fmt.Errorf("adapter: decode before open")
	}

	buf := make([]byte, samplesPerDecodeCall*frameSize)
	for {
		room := chunk.MaxCapacity - c.Length
		if room < frameSize {
			return false, nil
		}

		samples := room / frameSize
		if samples > samplesPerDecodeCall {
			samples = samplesPerDecodeCall
		}

		n, err := a.dec.DecodeSamples(samples, buf)
		if n > 0 {
			c.Write(buf[:n*frameSize])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				a.eof = true
				return true, nil
			}
			return true, err
		}
		if n == 0 {
			a.eof = true
			return true, nil
		}
		if n < samples {
			// Short read: this call drained whatever was buffered
			// internally. Return what we have rather than spin.
			return false, nil
		}
	}
}

// Seek seeks to t if the wrapped decoder supports it.
func (a *PullAdapter) Seek(t time.Duration) error {
	seeker, ok := a.dec.(Seeker)
	if !ok {
		return ErrSeekUnsupported
	}
	sample := int64(t.Seconds() * float64(a.rate))
	if err := seeker.SeekSamples(sample); err != nil {
		return err
	}
	a.eof = false
	return nil
}

// Tag reports no mid-stream tag; the corpus's pull decoders don't surface
// one separately from the file's own container metadata.
func (a *PullAdapter) Tag() *chunk.Tag { return nil }

// MixRampTags reports no MixRamp tags; none of the wrapped decoders parse
// them.
func (a *PullAdapter) MixRampTags() (string, string) { return "", "" }

// ReplayGain reports no replay-gain info; none of the wrapped decoders
// parse ReplayGain tags from the container.
func (a *PullAdapter) ReplayGain() *chunk.ReplayGainInfo { return nil }

// Close closes the wrapped decoder.
func (a *PullAdapter) Close() error { return a.dec.Close() }
