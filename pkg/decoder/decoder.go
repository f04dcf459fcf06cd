// Package decoder runs the decoder thread: it owns a streaming Plugin,
// pulls PCM from it into chunks allocated from a shared buffer, and
// pushes them onto a shared pipe for an output source to consume.
// Grounded on original_source/src/decoder/DecoderControl.hxx's state
// machine and command handshake, adapted to Go's explicit goroutine +
// condvar idiom instead of a dedicated Thread object.
package decoder

import (
	"errors"
	"fmt"
	"time"

	"github.com/drgolem/musictools/pkg/buffer"
	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/pipe"
	"github.com/drgolem/musictools/pkg/song"
	"github.com/drgolem/musictools/pkg/syncutil"
)

// State is the decoder thread's finite state, mutated only under the
// shared Hub lock.
type State uint8

const (
	StateStop State = iota
	StateStart
	StateDecode
	StateError
)

func (s State) String() string {
	switch s {
	case StateStop:
		return "STOP"
	case StateStart:
		return "START"
	case StateDecode:
		return "DECODE"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Command is a request queued for the decoder thread to act on.
type Command uint8

const (
	CmdNone Command = iota
	CmdStart
	CmdStop
	CmdSeek
)

// MixRampInfo carries a song's loudness-marker tag pair, used to align
// a MixRamp-based cross-fade instead of a fixed time-based ramp.
type MixRampInfo struct {
	Start string
	End   string
}

// GainMode selects how replay gain is applied while decoding.
type GainMode int

const (
	GainModeOff GainMode = iota
	GainModeTrack
	GainModeAlbum
)

// Control is the decoder side of the shared rendezvous with a player
// Control: it exposes the synchronous Start/Stop/Seek commands a player
// thread issues, and runs the decode loop on its own goroutine.
type Control struct {
	hub *syncutil.Hub

	state   State
	command Command
	err     error
	quit    bool

	seekError bool
	seekable  bool
	seekTime  time.Duration

	inFormat  chunk.Format
	outFormat chunk.Format

	song      *song.Song
	startTime time.Duration
	endTime   time.Duration
	totalTime time.Duration

	buf  *buffer.Buffer
	pipe *pipe.Pipe

	replayGainMode GainMode
	gainSerial     uint32

	mixRamp         MixRampInfo
	previousMixRamp MixRampInfo

	plugin Plugin
}

// NewControl returns a decoder Control sharing hub with the player
// Control that will issue it commands.
func NewControl(hub *syncutil.Hub, plugin Plugin) *Control {
	return &Control{hub: hub, plugin: plugin, state: StateStop}
}

// Lock acquires the shared hub mutex.
func (c *Control) Lock() { c.hub.Lock() }

// Unlock releases the shared hub mutex.
func (c *Control) Unlock() { c.hub.Unlock() }

// Signal wakes the decoder thread. Caller holds the lock.
func (c *Control) Signal() { c.hub.DecoderWake.Signal() }

// Wait blocks the decoder thread on its wake condition. Caller holds the
// lock; it is released while waiting and reacquired on return.
func (c *Control) Wait() { c.hub.DecoderWake.Wait() }

// State returns the current decoder state. Caller holds the lock.
func (c *Control) State() State { return c.state }

// IsIdle reports whether the decoder is not actively decoding. Caller
// holds the lock.
func (c *Control) IsIdle() bool {
	return c.state == StateStop || c.state == StateError
}

// HasFailed reports whether the last command left the decoder in an
// error state. Valid only when command == CmdNone. Caller holds the
// lock.
func (c *Control) HasFailed() bool {
	return c.state == StateError
}

// CheckRethrowError returns the stored decoder error, if any, without
// clearing it. Caller holds the lock.
func (c *Control) CheckRethrowError() error {
	if c.state == StateError {
		return c.err
	}
	return nil
}

// ClearError resets a stored error and transitions ERROR back to STOP.
// Caller holds the lock.
func (c *Control) ClearError() {
	if c.state == StateError {
		c.err = nil
		c.state = StateStop
	}
}

// TotalTime returns the duration reported by the plugin once SetReady
// has run, or zero before then. Caller holds the lock.
func (c *Control) TotalTime() time.Duration { return c.totalTime }

// OutFormat returns the format chunks are being delivered in. Caller
// holds the lock.
func (c *Control) OutFormat() chunk.Format { return c.outFormat }

// MixRamp returns the current song's loudness markers. Caller holds the
// lock.
func (c *Control) MixRamp() MixRampInfo { return c.mixRamp }

// PreviousMixRamp returns the markers of the song that just finished.
// Caller holds the lock.
func (c *Control) PreviousMixRamp() MixRampInfo { return c.previousMixRamp }

// CycleMixRamp moves mix_ramp.End into previous_mix_ramp.End and clears
// the current song's markers, called when a new song starts decoding.
// Caller holds the lock.
func (c *Control) CycleMixRamp() {
	c.previousMixRamp = MixRampInfo{End: c.mixRamp.End}
	c.mixRamp = MixRampInfo{}
}

// SetReplayGainMode selects how replay gain is applied to future chunks.
// Caller holds the lock.
func (c *Control) SetReplayGainMode(mode GainMode) {
	c.replayGainMode = mode
}

// waitCommandLocked blocks until the decoder thread has processed the
// pending command. Caller holds the lock.
func (c *Control) waitCommandLocked() {
	for c.command != CmdNone {
		c.hub.ClientWake.Wait()
	}
}

func (c *Control) synchronousCommandLocked(cmd Command) {
	c.command = cmd
	c.Signal()
	c.waitCommandLocked()
}

// Start issues a synchronous START command, requesting the decoder
// thread open s, seek to startTime, and stop decoding once it passes
// endTime (zero meaning "play to the end"), delivering chunks allocated
// from buf into p.
func (c *Control) Start(s *song.Song, startTime, endTime time.Duration, buf *buffer.Buffer, p *pipe.Pipe) {
	c.Lock()
	defer c.Unlock()

	c.ClearError()
	c.song = s
	c.startTime = startTime
	c.endTime = endTime
	c.buf = buf
	c.pipe = p
	c.CycleMixRamp()
	c.gainSerial++
	c.synchronousCommandLocked(CmdStart)
}

// Stop issues a synchronous STOP command, returning once the decoder
// thread has left its inner decode loop.
func (c *Control) Stop() {
	c.Lock()
	defer c.Unlock()
	if c.state == StateStop {
		return
	}
	c.synchronousCommandLocked(CmdStop)
}

// ErrSeekUnsupported is returned by Seek when the current song's plugin
// does not support seeking.
var ErrSeekUnsupported = errors.New("decoder: seek unsupported")

// Seek issues a synchronous SEEK command to t. It returns
// ErrSeekUnsupported, or any error the plugin raised while repositioning.
func (c *Control) Seek(t time.Duration) error {
	c.Lock()
	defer c.Unlock()

	if c.IsIdle() {
		return fmt.Errorf("decoder: cannot seek, state=%s", c.state)
	}

	c.seekTime = t
	c.seekError = false
	c.synchronousCommandLocked(CmdSeek)

	if c.seekError {
		return ErrSeekUnsupported
	}
	return nil
}

// Quit asks the run loop to exit after finishing any in-flight command.
// Caller does not hold the lock.
func (c *Control) Quit() {
	c.Lock()
	c.quit = true
	c.command = CmdStop
	c.Signal()
	c.Unlock()
}

// commandFinishedLocked marks the pending command done and wakes
// whichever client thread is waiting on it. Caller holds the lock.
func (c *Control) commandFinishedLocked() {
	c.command = CmdNone
	c.hub.ClientWake.Signal()
}
