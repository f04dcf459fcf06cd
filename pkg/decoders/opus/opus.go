package opus

import (
	"fmt"

	goopus "github.com/drgolem/go-opus/opus"
)

// Decoder wraps the go-opus decoder to provide Opus decoding capabilities.
// Implements types.AudioDecoder interface.
type Decoder struct {
	decoder  *goopus.OpusDecoder
	rate     int
	channels int
}

// NewDecoder creates a new Opus decoder. Opus is always decoded to
// 16-bit PCM.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// GetFormat returns the audio format (rate, channels, bits per sample).
func (d *Decoder) GetFormat() (int, int, int) {
	return d.rate, d.channels, 16
}

// DecodeSamples decodes the specified number of samples into the audio buffer.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}
	return d.decoder.DecodeSamples(samples, audio)
}

// Open opens and initializes an Opus file for decoding.
func (d *Decoder) Open(fileName string) error {
	decoder, err := goopus.NewOpusDecoder()
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Open(fileName); err != nil {
		decoder.Delete()
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	rate, channels := decoder.GetFormat()

	d.decoder = decoder
	d.rate = rate
	d.channels = channels

	return nil
}

// Close closes the decoder and releases resources.
func (d *Decoder) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

// Rate returns the sample rate in Hz.
func (d *Decoder) Rate() int { return d.rate }

// Channels returns the number of audio channels.
func (d *Decoder) Channels() int { return d.channels }
