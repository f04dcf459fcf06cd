// Package ogg wraps github.com/jfreymuth/oggvorbis to provide Ogg Vorbis
// decoding as a types.AudioDecoder, converting its float32 PCM output to
// the 16-bit integer PCM the rest of the engine works in.
package ogg

import (
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// Decoder wraps an oggvorbis.Reader to provide Ogg Vorbis decoding
// capabilities. Implements types.AudioDecoder interface.
type Decoder struct {
	file     *os.File
	reader   *oggvorbis.Reader
	rate     int
	channels int

	floatBuf []float32
}

// NewDecoder creates a new Ogg Vorbis decoder. Output is always 16-bit PCM.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens an Ogg Vorbis file for decoding.
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open ogg file: %w", err)
	}

	reader, err := oggvorbis.NewReader(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read ogg vorbis stream: %w", err)
	}

	d.file = file
	d.reader = reader
	d.rate = reader.SampleRate()
	d.channels = reader.Channels()

	return nil
}

// Close closes the underlying file.
func (d *Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// GetFormat returns the audio format (sample rate, channels, bits per sample).
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, 16
}

// DecodeSamples decodes up to 'samples' audio samples into the provided
// buffer, converting the decoder's float32 output to 16-bit PCM.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}

	need := samples * d.channels
	if cap(d.floatBuf) < need {
		d.floatBuf = make([]float32, need)
	}
	buf := d.floatBuf[:need]

	n, err := d.reader.Read(buf)
	if n == 0 {
		return 0, err
	}

	decoded := n / d.channels
	for i := 0; i < decoded*d.channels; i++ {
		v := buf[i]
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		sample := int16(v * 32767)
		off := i * 2
		audio[off] = byte(sample)
		audio[off+1] = byte(sample >> 8)
	}

	return decoded, err
}
