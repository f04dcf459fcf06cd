// Package player runs the player thread: the coordinator that issues
// decoder commands, drains decoded chunks to one or more output sources,
// tracks playback position, and manages the cross-fade transition
// between songs. Grounded on
// original_source/src/player/Control.hxx/.cxx's PlayerControl.
package player

import (
	"fmt"
	"time"

	"github.com/drgolem/musictools/pkg/buffer"
	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/crossfade"
	"github.com/drgolem/musictools/pkg/decoder"
	"github.com/drgolem/musictools/pkg/output"
	"github.com/drgolem/musictools/pkg/pipe"
	"github.com/drgolem/musictools/pkg/song"
	"github.com/drgolem/musictools/pkg/syncutil"
)

// State is the player thread's finite state.
type State uint8

const (
	StateStop State = iota
	StatePause
	StatePlay
)

func (s State) String() string {
	switch s {
	case StateStop:
		return "STOP"
	case StatePause:
		return "PAUSE"
	case StatePlay:
		return "PLAY"
	default:
		return "UNKNOWN"
	}
}

// Command is a request queued for the player thread to act on.
type Command uint8

const (
	CmdNone Command = iota
	CmdExit
	CmdPause
	CmdSeek
	CmdCloseAudio
	CmdUpdateAudio
	CmdQueue
	CmdCancel
	CmdRefresh
)

// ErrorType classifies which side of the engine raised the stored error.
type ErrorType uint8

const (
	ErrNone ErrorType = iota
	ErrDecoder
	ErrOutput
)

// Status is a snapshot of playback state safe to hand to a caller
// without holding the lock.
type Status struct {
	State       State
	BitRate     int
	Format      chunk.Format
	TotalTime   time.Duration
	ElapsedTime time.Duration
}

// Control is the player side of the shared rendezvous with a decoder
// Control: the synchronous command surface a client calls, plus the
// playback loop run on its own goroutine.
type Control struct {
	hub *syncutil.Hub

	command Command
	state   State
	quit    bool

	errType ErrorType
	err     error

	nextSong   *song.Song
	taggedSong *song.Song

	borderPause bool
	occupied    bool

	format      chunk.Format
	bitRate     int
	totalTime   time.Duration
	elapsedTime time.Duration
	seekTime    time.Duration

	crossFade crossfade.Settings

	totalPlayTime float64

	decoder *decoder.Control
	buf     *buffer.Buffer
	pipe    *pipe.Pipe
	source  *output.Source
	driver  output.Driver

	playStart   time.Time
	playElapsed time.Duration

	// Cross-fade pre-decode state. nextDecoder decodes nextSong into
	// its own buffer/pipe while the current song is still playing;
	// once the current song's pipe empties, Control swaps it in as the
	// new current decoder/buffer/pipe.
	pluginFactory PluginFactory
	nextDecoder   *decoder.Control
	nextBuf       *buffer.Buffer
	nextPipe      *pipe.Pipe

	xfade      *crossfade.Plan
	xfadeIndex int

	replayGainMode decoder.GainMode
	outputEnabled  bool
}

// NewControl returns a player Control sharing hub with dc, draining
// decoded chunks through src into drv.
func NewControl(hub *syncutil.Hub, dc *decoder.Control, buf *buffer.Buffer, p *pipe.Pipe, src *output.Source, drv output.Driver) *Control {
	return &Control{
		hub:           hub,
		decoder:       dc,
		buf:           buf,
		pipe:          p,
		source:        src,
		driver:        drv,
		state:         StateStop,
		outputEnabled: true,
	}
}

// SetReplayGainMode selects the replay-gain scope applied to both the
// current decoder and any decoder pre-decoding a cross-faded next song.
func (c *Control) SetReplayGainMode(mode decoder.GainMode) {
	c.Lock()
	defer c.Unlock()
	c.replayGainMode = mode
	c.decoder.SetReplayGainMode(mode)
}

func (c *Control) Lock()   { c.hub.Lock() }
func (c *Control) Unlock() { c.hub.Unlock() }

func (c *Control) signal() { c.hub.PlayerWake.Signal() }
func (c *Control) wait()   { c.hub.PlayerWake.Wait() }

// LockSignal wakes the player thread; used by an output source to
// report that it consumed a chunk (ChunksConsumed in the original).
func (c *Control) LockSignal() {
	c.Lock()
	c.signal()
	c.Unlock()
}

func (c *Control) waitCommandLocked() {
	for c.command != CmdNone {
		c.hub.ClientWake.Wait()
	}
}

func (c *Control) synchronousCommandLocked(cmd Command) {
	c.command = cmd
	c.signal()
	c.waitCommandLocked()
}

func (c *Control) commandFinishedLocked() {
	c.command = CmdNone
	c.hub.ClientWake.Signal()
}

// State returns the current player state. Caller holds the lock.
func (c *Control) State() State { return c.state }

// SetError discards any previous error and installs a new one of the
// given type. Caller holds the lock.
func (c *Control) SetError(t ErrorType, err error) {
	c.errType = t
	c.err = err
}

// SetOutputError installs err as an output failure and forces the
// player to PAUSE so the user can resume once an output recovers.
// Caller holds the lock.
func (c *Control) SetOutputError(err error) {
	c.SetError(ErrOutput, err)
	c.state = StatePause
}

// CheckRethrowError returns the stored error, if any. Caller holds the
// lock.
func (c *Control) CheckRethrowError() error {
	if c.errType != ErrNone {
		return c.err
	}
	return nil
}

// LockCheckRethrowError locks, checks, and unlocks.
func (c *Control) LockCheckRethrowError() error {
	c.Lock()
	defer c.Unlock()
	return c.CheckRethrowError()
}

// ClearError resets the stored error. Caller holds the lock.
func (c *Control) ClearError() {
	c.errType = ErrNone
	c.err = nil
}

// LockClearError locks, clears, and unlocks.
func (c *Control) LockClearError() {
	c.Lock()
	c.ClearError()
	c.Unlock()
}

// GetErrorType reports which side of the engine last failed. Caller
// holds the lock.
func (c *Control) GetErrorType() ErrorType { return c.errType }

// LockSetTaggedSong installs s as the tagged-song notification a client
// should pick up on its next ReadTaggedSong call.
func (c *Control) LockSetTaggedSong(s *song.Song) {
	c.Lock()
	c.taggedSong = s
	c.Unlock()
}

// ClearTaggedSong drops any pending tagged-song notification. Caller
// holds the lock.
func (c *Control) ClearTaggedSong() { c.taggedSong = nil }

// ReadTaggedSong returns and clears the pending tagged-song
// notification. Caller holds the lock.
func (c *Control) ReadTaggedSong() *song.Song {
	s := c.taggedSong
	c.taggedSong = nil
	return s
}

// LockReadTaggedSong locks, reads, and unlocks.
func (c *Control) LockReadTaggedSong() *song.Song {
	c.Lock()
	defer c.Unlock()
	return c.ReadTaggedSong()
}

// ApplyBorderPause transitions to PAUSE if the border_pause flag is set,
// reporting whether it did so. Caller holds the lock.
func (c *Control) ApplyBorderPause() bool {
	if c.borderPause {
		c.state = StatePause
	}
	return c.borderPause
}

// LockApplyBorderPause locks, applies, and unlocks.
func (c *Control) LockApplyBorderPause() bool {
	c.Lock()
	defer c.Unlock()
	return c.ApplyBorderPause()
}

// LockSetBorderPause sets the border_pause flag.
func (c *Control) LockSetBorderPause(v bool) {
	c.Lock()
	c.borderPause = v
	c.Unlock()
}

// SetCrossFade sets the cross-fade duration, clamping negative values to
// zero (disabled).
func (c *Control) SetCrossFade(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	if d < 0 {
		d = 0
	}
	c.crossFade.Duration = d
}

// GetCrossFade returns the configured cross-fade duration.
func (c *Control) GetCrossFade() time.Duration {
	c.Lock()
	defer c.Unlock()
	return c.crossFade.Duration
}

// SetMixRampDB sets the MixRamp loudness adjustment.
func (c *Control) SetMixRampDB(db float64) {
	c.Lock()
	defer c.Unlock()
	c.crossFade.MixRampDB = db
}

// GetMixRampDB returns the configured MixRamp loudness adjustment.
func (c *Control) GetMixRampDB() float64 {
	c.Lock()
	defer c.Unlock()
	return c.crossFade.MixRampDB
}

// SetMixRampDelay sets the MixRamp alignment delay; negative disables
// MixRamp alignment.
func (c *Control) SetMixRampDelay(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.crossFade.MixRampDelay = d
}

// GetMixRampDelay returns the configured MixRamp alignment delay.
func (c *Control) GetMixRampDelay() time.Duration {
	c.Lock()
	defer c.Unlock()
	return c.crossFade.MixRampDelay
}

// GetTotalPlayTime returns the cumulative seconds played across every
// song this Control has run, the supplemented feature from
// PlayerControl::GetTotalPlayTime.
func (c *Control) GetTotalPlayTime() float64 {
	c.Lock()
	defer c.Unlock()
	return c.totalPlayTime
}

// LockGetStatus returns a snapshot of playback state. While the player
// thread is occupied with a long synchronous operation, it returns the
// last values observed instead of blocking the caller; otherwise it
// issues a synchronous REFRESH first so bit rate and elapsed time are
// current. Grounded on original_source/src/player/Control.cxx's
// LockGetStatus.
func (c *Control) LockGetStatus() Status {
	c.Lock()
	defer c.Unlock()
	if !c.occupied {
		c.synchronousCommandLocked(CmdRefresh)
	}
	return Status{
		State:       c.state,
		BitRate:     c.bitRate,
		Format:      c.format,
		TotalTime:   c.totalTime,
		ElapsedTime: c.elapsedTime,
	}
}

// Play queues song s for playback, starting decode immediately if the
// player is idle.
func (c *Control) Play(s *song.Song) error {
	c.Lock()
	defer c.Unlock()

	c.nextSong = s
	c.synchronousCommandLocked(CmdQueue)
	return c.CheckRethrowError()
}

// LockEnqueueSong queues s as the song to play once the current one
// ends, without interrupting current playback.
func (c *Control) LockEnqueueSong(s *song.Song) {
	c.Lock()
	c.nextSong = s
	c.synchronousCommandLocked(CmdQueue)
	c.Unlock()
}

// LockSeek queues s (or the currently playing song, if s is nil) and
// seeks to t.
func (c *Control) LockSeek(s *song.Song, t time.Duration) error {
	c.Lock()
	defer c.Unlock()

	if s != nil {
		c.nextSong = s
	}
	c.seekTime = t
	c.synchronousCommandLocked(CmdSeek)
	return c.CheckRethrowError()
}

// LockCancel cancels a pre-decoding next_song, or stops playback
// entirely if that song has already started playing.
func (c *Control) LockCancel() {
	c.Lock()
	c.synchronousCommandLocked(CmdCancel)
	c.Unlock()
}

// LockStop stops playback synchronously, closing the audio outputs.
// Grounded on original_source/src/player/Control.cxx's LockStop, which
// dispatches CLOSE_AUDIO rather than a dedicated stop command.
func (c *Control) LockStop() {
	c.Lock()
	if c.state != StateStop {
		c.synchronousCommandLocked(CmdCloseAudio)
	}
	c.Unlock()
}

// LockSetPause sets the paused flag.
func (c *Control) LockSetPause(pause bool) {
	c.Lock()
	defer c.Unlock()

	switch c.state {
	case StatePlay:
		if pause {
			c.synchronousCommandLocked(CmdPause)
		}
	case StatePause:
		if !pause {
			c.synchronousCommandLocked(CmdPause)
		}
	}
}

// LockPause toggles the paused flag.
func (c *Control) LockPause() {
	c.Lock()
	defer c.Unlock()
	if c.state == StateStop {
		return
	}
	c.synchronousCommandLocked(CmdPause)
}

// LockUpdateAudio asks the player thread to re-open or close its output
// driver to match the currently configured enabled flag.
func (c *Control) LockUpdateAudio() {
	c.Lock()
	c.synchronousCommandLocked(CmdUpdateAudio)
	c.Unlock()
}

// LockSetOutputEnabled sets whether the output driver should be open,
// and asks the player thread to reconcile it immediately via
// UPDATE_AUDIO.
func (c *Control) LockSetOutputEnabled(v bool) {
	c.Lock()
	c.outputEnabled = v
	c.synchronousCommandLocked(CmdUpdateAudio)
	c.Unlock()
}

// Kill asks the run loop to exit once any in-flight command finishes.
func (c *Control) Kill() {
	c.Lock()
	c.quit = true
	c.synchronousCommandLocked(CmdExit)
	c.Unlock()
}

var errNoSong = fmt.Errorf("player: no song queued")
