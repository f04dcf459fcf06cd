package decoder

import (
	"errors"
	"testing"
	"time"

	"github.com/drgolem/musictools/pkg/buffer"
	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/pipe"
	"github.com/drgolem/musictools/pkg/song"
	"github.com/drgolem/musictools/pkg/syncutil"
)

// fakePlugin decodes numChunks chunks of fixed content, then reports done.
type fakePlugin struct {
	format      chunk.Format
	seekable    bool
	total       time.Duration
	numChunks   int
	decoded     int
	openErr     error
	decodeErr   error
	seekCalls   []time.Duration
	closed      bool
}

func (p *fakePlugin) Open(uri string) (chunk.Format, bool, time.Duration, error) {
	return p.format, p.seekable, p.total, p.openErr
}

func (p *fakePlugin) DecodeInto(c *chunk.Chunk) (bool, error) {
	if p.decodeErr != nil {
		return false, p.decodeErr
	}
	p.decoded++
	c.Write([]byte{1, 2, 3, 4})
	return p.decoded >= p.numChunks, nil
}

func (p *fakePlugin) Seek(t time.Duration) error {
	p.seekCalls = append(p.seekCalls, t)
	return nil
}

func (p *fakePlugin) Tag() *chunk.Tag                             { return nil }
func (p *fakePlugin) MixRampTags() (string, string)                { return "", "" }
func (p *fakePlugin) ReplayGain() *chunk.ReplayGainInfo            { return nil }
func (p *fakePlugin) Close() error                                 { p.closed = true; return nil }

func newTestControl(plugin *fakePlugin) (*Control, *buffer.Buffer, *pipe.Pipe) {
	hub := syncutil.NewHub()
	buf := buffer.New(4)
	p := pipe.New(buf)
	c := NewControl(hub, plugin)
	return c, buf, p
}

func TestStartDecodesUntilDone(t *testing.T) {
	plugin := &fakePlugin{
		format:    chunk.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16},
		seekable:  true,
		numChunks: 3,
	}
	c, buf, p := newTestControl(plugin)
	go c.Run()
	defer c.Quit()

	c.Start(&song.Song{URI: "test.wav"}, 0, 0, buf, p)

	deadline := time.After(time.Second)
	for {
		c.Lock()
		state := c.State()
		size := p.Size()
		c.Unlock()
		if state == StateStop && size == plugin.numChunks {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("decode did not finish in time: state=%v pipe_size=%d", state, size)
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if plugin.decoded != 3 {
		t.Errorf("decoded: got %d, want 3", plugin.decoded)
	}
	if !plugin.closed {
		t.Errorf("expected plugin to be closed after stream ended")
	}
}

func TestStartSurfacesOpenError(t *testing.T) {
	plugin := &fakePlugin{openErr: errors.New("boom")}
	c, buf, p := newTestControl(plugin)
	go c.Run()
	defer c.Quit()

	c.Start(&song.Song{URI: "bad.wav"}, 0, 0, buf, p)

	deadline := time.After(time.Second)
	for {
		c.Lock()
		state := c.State()
		c.Unlock()
		if state == StateError {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected StateError, got %v", state)
		default:
			time.Sleep(time.Millisecond)
		}
	}

	c.Lock()
	err := c.CheckRethrowError()
	c.Unlock()
	if err == nil {
		t.Fatalf("CheckRethrowError: got nil, want the open error")
	}
}

func TestSeekOnIdleDecoderErrors(t *testing.T) {
	plugin := &fakePlugin{}
	c, _, _ := newTestControl(plugin)
	go c.Run()
	defer c.Quit()

	if err := c.Seek(5 * time.Second); err == nil {
		t.Errorf("Seek on idle decoder: got nil error, want an error")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	plugin := &fakePlugin{}
	c, _, _ := newTestControl(plugin)
	go c.Run()
	defer c.Quit()

	c.Stop()
	c.Stop()
}
