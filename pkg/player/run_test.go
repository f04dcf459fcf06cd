package player

import (
	"testing"
	"time"

	"github.com/drgolem/musictools/pkg/buffer"
	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/decoder"
	"github.com/drgolem/musictools/pkg/filter"
	"github.com/drgolem/musictools/pkg/output"
	"github.com/drgolem/musictools/pkg/pipe"
	"github.com/drgolem/musictools/pkg/song"
	"github.com/drgolem/musictools/pkg/syncutil"
)

var testFormat = chunk.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}

// fakePlugin is a minimal decoder.Plugin: it opens instantly with a
// fixed format and never actually decodes anything, which is all these
// tests need from the decoder side.
type fakePlugin struct {
	format   chunk.Format
	seekable bool
	total    time.Duration
	openErr  error
}

func (p *fakePlugin) Open(uri string) (chunk.Format, bool, time.Duration, error) {
	return p.format, p.seekable, p.total, p.openErr
}
func (p *fakePlugin) DecodeInto(c *chunk.Chunk) (bool, error) { return true, nil }
func (p *fakePlugin) Seek(t time.Duration) error              { return nil }
func (p *fakePlugin) Tag() *chunk.Tag                         { return nil }
func (p *fakePlugin) MixRampTags() (string, string)           { return "", "" }
func (p *fakePlugin) ReplayGain() *chunk.ReplayGainInfo       { return nil }
func (p *fakePlugin) Close() error                            { return nil }

// fakeDriver is a no-op output.Driver, recording Open/Close calls.
type fakeDriver struct {
	opened int
	closed int
}

func (d *fakeDriver) Open(format chunk.Format) error { d.opened++; return nil }
func (d *fakeDriver) Close() error                   { d.closed++; return nil }
func (d *fakeDriver) Play(pcm []byte) (int, error)   { return len(pcm), nil }
func (d *fakeDriver) Cancel()                        {}
func (d *fakeDriver) Pause()                         {}
func (d *fakeDriver) Drain() error                   { return nil }

func newTestPlayer(t *testing.T) (*Control, *fakeDriver) {
	t.Helper()
	hub := syncutil.NewHub()
	buf := buffer.New(4)
	p := pipe.New(buf)
	src := output.NewSource(p, buf, filter.NewChain())
	if _, err := src.Open(testFormat); err != nil {
		t.Fatalf("source.Open: %v", err)
	}
	dc := decoder.NewControl(hub, &fakePlugin{format: testFormat})
	drv := &fakeDriver{}
	c := NewControl(hub, dc, buf, p, src, drv)
	return c, drv
}

// TestFinishSongBorderPauseBeforeQueuedNextSong verifies that border
// pause takes priority over a queued next song at song end: the player
// must land in PAUSE rather than starting the queued song.
func TestFinishSongBorderPauseBeforeQueuedNextSong(t *testing.T) {
	c, _ := newTestPlayer(t)

	next := &song.Song{URI: "next.flac"}

	c.Lock()
	c.state = StatePlay
	c.borderPause = true
	c.nextSong = next
	c.finishSongLocked()
	gotState := c.state
	gotNextSong := c.nextSong
	c.Unlock()

	if gotState != StatePause {
		t.Errorf("state after finishSongLocked with border_pause set: got %s, want PAUSE", gotState)
	}
	if gotNextSong != next {
		t.Errorf("nextSong after finishSongLocked with border_pause set: got %v, want untouched %v", gotNextSong, next)
	}
}

// TestFinishSongStartsQueuedNextSongWithoutBorderPause is the
// counterpart: with border_pause clear, a queued next song still starts
// normally once the current one ends.
func TestFinishSongStartsQueuedNextSongWithoutBorderPause(t *testing.T) {
	c, _ := newTestPlayer(t)
	// startSongLocked issues a synchronous decoder command, which needs
	// the decoder thread's own goroutine to service it.
	go c.decoder.Run()
	defer c.decoder.Quit()

	next := &song.Song{URI: "next.flac"}

	c.Lock()
	c.state = StatePlay
	c.borderPause = false
	c.nextSong = next
	c.finishSongLocked()
	gotState := c.state
	gotNextSong := c.nextSong
	c.Unlock()

	if gotNextSong != nil {
		t.Errorf("nextSong after finishSongLocked: got %v, want nil (consumed)", gotNextSong)
	}
	if gotState != StatePlay {
		t.Errorf("state after finishSongLocked starting queued song: got %s, want PLAY", gotState)
	}
}

// TestFinishSongStopsWithNoNextSongOrBorderPause covers the plain
// end-of-playlist case.
func TestFinishSongStopsWithNoNextSongOrBorderPause(t *testing.T) {
	c, _ := newTestPlayer(t)

	c.Lock()
	c.state = StatePlay
	c.finishSongLocked()
	gotState := c.state
	c.Unlock()

	if gotState != StateStop {
		t.Errorf("state after finishSongLocked with nothing queued: got %s, want STOP", gotState)
	}
}

// TestCrossFadeTriggerAndSwap drives maybeBeginCrossFadeLocked to pre-
// decode a queued next song, then verifies finishSongLocked promotes
// that pre-decoded decoder to the current one instead of doing a hard
// cut.
func TestCrossFadeTriggerAndSwap(t *testing.T) {
	c, _ := newTestPlayer(t)
	defer c.decoder.Quit()

	c.SetCrossFade(3 * time.Second)

	next := &song.Song{URI: "next.flac"}

	c.Lock()
	c.pluginFactory = func(uri string) (decoder.Plugin, error) {
		return &fakePlugin{format: testFormat, total: 30 * time.Second}, nil
	}
	c.format = testFormat
	c.totalTime = 30 * time.Second
	c.elapsedTime = 26 * time.Second // 4s remaining: inside the trigger window, enough for a 3s ramp
	c.nextSong = next
	c.maybeBeginCrossFadeLocked()

	if c.xfade == nil {
		c.Unlock()
		t.Fatalf("maybeBeginCrossFadeLocked: xfade plan not built")
	}
	if c.nextDecoder == nil {
		c.Unlock()
		t.Fatalf("maybeBeginCrossFadeLocked: nextDecoder not started")
	}
	preDecoded := c.nextDecoder
	c.Unlock()
	defer preDecoded.Quit()

	c.Lock()
	c.state = StatePlay
	c.finishSongLocked()
	gotDecoder := c.decoder
	gotNextSong := c.nextSong
	gotXfade := c.xfade
	c.Unlock()

	if gotDecoder != preDecoded {
		t.Errorf("decoder after finishSongLocked cross-fade swap: got %p, want the pre-decoded decoder %p", gotDecoder, preDecoded)
	}
	if gotNextSong != nil {
		t.Errorf("nextSong after cross-fade swap: got %v, want nil", gotNextSong)
	}
	if gotXfade != nil {
		t.Errorf("xfade plan after cross-fade swap: got %+v, want nil (consumed)", gotXfade)
	}
}

// TestLockGetStatusSkipsRefreshWhenOccupied verifies the occupied-window
// discipline: while the player thread is busy with a long synchronous
// operation, LockGetStatus must return the last observed snapshot
// without dispatching a REFRESH command (which would otherwise block
// forever with no dispatch loop running to service it).
func TestLockGetStatusSkipsRefreshWhenOccupied(t *testing.T) {
	c, _ := newTestPlayer(t)

	c.Lock()
	c.occupied = true
	c.state = StatePlay
	c.format = testFormat
	c.bitRate = 1411
	c.totalTime = 10 * time.Second
	c.elapsedTime = 4 * time.Second
	c.Unlock()

	done := make(chan Status, 1)
	go func() { done <- c.LockGetStatus() }()

	select {
	case status := <-done:
		if status.BitRate != 1411 {
			t.Errorf("BitRate: got %d, want unchanged 1411 (REFRESH must be skipped while occupied)", status.BitRate)
		}
		if status.ElapsedTime != 4*time.Second {
			t.Errorf("ElapsedTime: got %v, want unchanged 4s", status.ElapsedTime)
		}
	case <-time.After(time.Second):
		t.Fatal("LockGetStatus did not return while occupied; it must skip CmdRefresh instead of blocking on a dispatch loop")
	}
}

// TestRefreshLockedDerivesBitRateFromFormat exercises CmdRefresh's
// handler directly: it must recompute bit rate from the current PCM
// format rather than leaving it stale, and must leave it at zero once
// playback has stopped.
func TestRefreshLockedDerivesBitRateFromFormat(t *testing.T) {
	c, _ := newTestPlayer(t)

	c.Lock()
	c.state = StatePlay
	c.format = testFormat
	c.refreshLocked()
	gotPlaying := c.bitRate
	c.Unlock()

	want := int(testFormat.SampleRate) * int(testFormat.Channels) * int(testFormat.BitsPerSample) / 1000
	if gotPlaying != want {
		t.Errorf("bitRate while playing: got %d, want %d (derived from PCM format)", gotPlaying, want)
	}

	c.Lock()
	c.state = StateStop
	c.refreshLocked()
	gotStopped := c.bitRate
	c.Unlock()

	if gotStopped != 0 {
		t.Errorf("bitRate after stop: got %d, want 0", gotStopped)
	}
}
