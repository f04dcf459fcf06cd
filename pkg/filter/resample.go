package filter

import (
	"bytes"
	"fmt"

	soxr "github.com/zaf/resample"

	"github.com/drgolem/musictools/pkg/chunk"
)

// ResampleFilter converts PCM between sample rates using the teacher's
// github.com/zaf/resample (SoXR) binding, wired here as a streaming
// filter-chain stage.
type ResampleFilter struct {
	targetRate uint32
	out        bytes.Buffer
	resampler  *soxr.Resampler
}

// NewResampleFilter returns a filter that resamples to targetRate Hz.
func NewResampleFilter(targetRate uint32) *ResampleFilter {
	return &ResampleFilter{targetRate: targetRate}
}

// Open creates the underlying SoXR resampler for the given input format.
// If the input is already at the target rate, FilterPCM becomes a no-op.
func (r *ResampleFilter) Open(in chunk.Format) (chunk.Format, error) {
	if in.SampleRate == r.targetRate {
		r.resampler = nil
		return in, nil
	}

	r.out.Reset()
	res, err := soxr.New(
		&r.out,
		float64(in.SampleRate),
		float64(r.targetRate),
		int(in.Channels),
		soxr.I16,
		soxr.HighQ,
	)
	if err != nil {
		return chunk.Format{}, fmt.Errorf("resample: open: %w", err)
	}
	r.resampler = res

	out := in
	out.SampleRate = r.targetRate
	return out, nil
}

// FilterPCM feeds pcm through the resampler and returns the resampled
// bytes produced so far.
func (r *ResampleFilter) FilterPCM(pcm []byte) ([]byte, error) {
	if r.resampler == nil {
		return pcm, nil
	}
	r.out.Reset()
	if _, err := r.resampler.Write(pcm); err != nil {
		return nil, fmt.Errorf("resample: write: %w", err)
	}
	produced := make([]byte, r.out.Len())
	copy(produced, r.out.Bytes())
	return produced, nil
}

// Reset drops the resampler's internal history; a fresh one is built on
// the next Open call for the next song.
func (r *ResampleFilter) Reset() {
	r.resampler = nil
	r.out.Reset()
}

// Close closes the underlying SoXR resampler, flushing any buffered
// samples.
func (r *ResampleFilter) Close() error {
	if r.resampler == nil {
		return nil
	}
	err := r.resampler.Close()
	r.resampler = nil
	return err
}
