// Package decoders selects and constructs a decoder.Plugin for a song
// URI based on its file extension.
package decoders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drgolem/musictools/pkg/decoder"
	"github.com/drgolem/musictools/pkg/decoders/adapter"
	"github.com/drgolem/musictools/pkg/decoders/flac"
	"github.com/drgolem/musictools/pkg/decoders/mp3"
	"github.com/drgolem/musictools/pkg/decoders/ogg"
	"github.com/drgolem/musictools/pkg/decoders/opus"
	"github.com/drgolem/musictools/pkg/decoders/wav"
	"github.com/drgolem/musictools/pkg/types"
)

// NewPlugin builds the decoder.Plugin appropriate for uri's file
// extension, wrapping the pull-style decoder in an adapter. Supports
// .mp3, .flac, .fla, .wav, .opus and .ogg.
func NewPlugin(uri string) (decoder.Plugin, error) {
	ext := strings.ToLower(filepath.Ext(uri))

	var dec types.AudioDecoder
	switch ext {
	case ".mp3":
		dec = mp3.NewDecoder()
	case ".flac", ".fla":
		dec = flac.NewDecoder()
	case ".wav":
		dec = wav.NewDecoder()
	case ".opus":
		dec = opus.NewDecoder()
	case ".ogg":
		dec = ogg.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .mp3, .flac, .fla, .wav, .opus, .ogg)", ext)
	}

	return adapter.New(dec), nil
}
