// Package song describes the minimal song handoff between the player and
// the decoder. It is deliberately tiny: tag metadata content, queue
// management and playlist ordering live above this engine.
package song

import (
	"time"

	"github.com/drgolem/musictools/pkg/chunk"
)

// Song is the descriptor exchanged between client, player and decoder.
// A Song is owned by exactly one of: the caller's request frame,
// PlayerControl.next_song, or the decoder's currently-opened song.
type Song struct {
	// URI identifies the stream to open. Resolving it to bytes is the
	// decoder plugin's job.
	URI string

	// StartTime and EndTime bound a sub-track (e.g. a CUE sheet entry).
	// EndTime of zero means "play to the end of the stream".
	StartTime time.Duration
	EndTime   time.Duration

	// Tag is a metadata snapshot known at enqueue time, if any.
	Tag *chunk.Tag
}

func (s *Song) String() string {
	if s == nil {
		return "<nil song>"
	}
	return s.URI
}
