package decoder

import (
	"time"

	"github.com/drgolem/musictools/pkg/chunk"
)

// Plugin is the streaming-decode contract a concrete format decoder must
// satisfy. Open is called once per song on the decoder goroutine (the
// hub lock is not held during the call); DecodeInto and Seek run inside
// the decode loop under the same rule.
type Plugin interface {
	// Open opens uri for decoding and returns the PCM format, whether
	// the stream supports Seek, and the total duration if known (zero
	// if unknown).
	Open(uri string) (chunk.Format, bool, time.Duration, error)

	// DecodeInto decodes one chunk's worth of PCM into c, returning
	// done=true once the stream is exhausted.
	DecodeInto(c *chunk.Chunk) (done bool, err error)

	// Seek repositions the stream to t. Only called when Open reported
	// the stream as seekable.
	Seek(t time.Duration) error

	// Tag returns a metadata snapshot if the plugin has one ready since
	// the last call, or nil otherwise.
	Tag() *chunk.Tag

	// MixRampTags returns the song's mixramp start/end markers, if the
	// underlying format carries them.
	MixRampTags() (start, end string)

	// ReplayGain returns the song's replay-gain info, if the underlying
	// format carries it.
	ReplayGain() *chunk.ReplayGainInfo

	// Close releases resources held for the currently open song.
	Close() error
}
