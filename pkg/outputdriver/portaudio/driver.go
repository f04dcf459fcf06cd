// Package portaudio adapts github.com/drgolem/go-portaudio into the
// engine's blocking output.Driver contract. Grounded on
// pkg/audioplayer.Player's initStream/producer/consumer split: Play
// stages bytes into the corpus's lock-free SPSC ring buffer
// (pkg/ringbuffer) and a dedicated goroutine drains it into
// stream.Write, so a burst from the player thread never blocks on the
// device's own pacing.
package portaudio

import (
	"fmt"
	"time"

	paapi "github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/ringbuffer"
)

// defaultRingBytes sized generously over one typical chunk so Play
// rarely has to wait on the drain goroutine.
const defaultRingBytes = 64 * 1024

// Driver plays PCM through a single PortAudio output device.
type Driver struct {
	deviceIndex     int
	framesPerBuffer int

	format chunk.Format
	stream *paapi.PaStream

	ring     *ringbuffer.RingBuffer
	stopDrain chan struct{}
	drainDone chan struct{}
}

// New returns a Driver targeting deviceIndex, writing framesPerBuffer
// frames at a time.
func New(deviceIndex, framesPerBuffer int) *Driver {
	return &Driver{deviceIndex: deviceIndex, framesPerBuffer: framesPerBuffer}
}

// Open opens a PortAudio stream matching format and starts the drain
// goroutine that feeds it from the ring buffer.
func (d *Driver) Open(format chunk.Format) error {
	sampleFormat, err := sampleFormatFor(format.BitsPerSample)
	if err != nil {
		return err
	}

	params := paapi.PaStreamParameters{
		DeviceIndex:  d.deviceIndex,
		ChannelCount: int(format.Channels),
		SampleFormat: sampleFormat,
	}

	stream, err := paapi.NewStream(params, float64(format.SampleRate))
	if err != nil {
		return fmt.Errorf("portaudio: new stream: %w", err)
	}

	if err := stream.Open(d.framesPerBuffer); err != nil {
		return fmt.Errorf("portaudio: open stream: %w", err)
	}

	if err := stream.StartStream(); err != nil {
		return fmt.Errorf("portaudio: start stream: %w", err)
	}

	d.stream = stream
	d.format = format
	d.ring = ringbuffer.New(defaultRingBytes)
	d.stopDrain = make(chan struct{})
	d.drainDone = make(chan struct{})
	go d.drain()
	return nil
}

// Close stops the drain goroutine and releases the stream.
func (d *Driver) Close() error {
	if d.stream == nil {
		return nil
	}
	close(d.stopDrain)
	<-d.drainDone

	if err := d.stream.StopStream(); err != nil {
		return fmt.Errorf("portaudio: stop stream: %w", err)
	}
	if err := d.stream.Close(); err != nil {
		return fmt.Errorf("portaudio: close stream: %w", err)
	}
	d.stream = nil
	return nil
}

// Play stages pcm into the ring buffer, retrying until it fits. It
// truncates to a whole number of frames; a caller holding a partial
// frame's worth of trailing bytes should buffer them across calls
// itself.
func (d *Driver) Play(pcm []byte) (int, error) {
	frameSize := d.format.FrameSize()
	frames := len(pcm) / frameSize
	if frames == 0 {
		return 0, nil
	}
	n := frames * frameSize
	data := pcm[:n]

	for {
		if _, err := d.ring.Write(data); err == nil {
			return n, nil
		}
		select {
		case <-d.stopDrain:
			return 0, fmt.Errorf("portaudio: driver closed")
		case <-time.After(time.Millisecond):
		}
	}
}

// drain pulls staged bytes off the ring buffer and writes them to the
// device, blocking on the device's own pacing rather than the player
// thread's.
func (d *Driver) drain() {
	defer close(d.drainDone)

	frameSize := d.format.FrameSize()
	buf := make([]byte, d.framesPerBuffer*frameSize)

	for {
		select {
		case <-d.stopDrain:
			return
		default:
		}

		n, err := d.ring.Read(buf)
		if err != nil || n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		frames := n / frameSize
		if frames == 0 {
			continue
		}
		if werr := d.stream.Write(frames, buf[:frames*frameSize]); werr != nil {
			return
		}
	}
}

// Cancel stops playback immediately, discarding any buffered audio the
// device driver itself was holding along with whatever is still staged
// in the ring buffer.
func (d *Driver) Cancel() {
	if d.ring != nil {
		d.ring.Reset()
	}
	if d.stream == nil {
		return
	}
	_ = d.stream.StopStream()
	_ = d.stream.StartStream()
}

// Pause stops the stream without releasing it, matching Driver contract
// semantics for a player PAUSE command.
func (d *Driver) Pause() {
	if d.stream == nil {
		return
	}
	_ = d.stream.StopStream()
}

// Drain is a no-op: PortAudio's StopStream already waits for queued
// frames to finish playing.
func (d *Driver) Drain() error { return nil }

func sampleFormatFor(bitsPerSample uint8) (paapi.PaSampleFormat, error) {
	switch bitsPerSample {
	case 16:
		return paapi.SampleFmtInt16, nil
	case 24:
		return paapi.SampleFmtInt24, nil
	case 32:
		return paapi.SampleFmtInt32, nil
	default:
		return 0, fmt.Errorf("portaudio: unsupported bit depth: %d", bitsPerSample)
	}
}
