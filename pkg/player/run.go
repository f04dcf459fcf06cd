package player

import (
	"time"

	"github.com/drgolem/musictools/pkg/buffer"
	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/crossfade"
	"github.com/drgolem/musictools/pkg/decoder"
	"github.com/drgolem/musictools/pkg/pipe"
	"github.com/drgolem/musictools/pkg/song"
)

// crossFadeBufferChunks is the size of the pre-decode buffer/pipe pair
// used to hold the incoming song's head while the outgoing song's tail
// is still draining.
const crossFadeBufferChunks = 32

// mixRampTriggerWindow bounds how early pre-decode starts when only
// MixRamp alignment (not a fixed cross-fade duration) is configured,
// since a MixRamp plan's own overlap is only known once both songs'
// tags are read.
const mixRampTriggerWindow = 10 * time.Second

// PluginFactory builds a fresh decoder.Plugin for a song URI, used to
// pre-decode the next song during a cross-fade transition.
type PluginFactory func(uri string) (decoder.Plugin, error)

// SetPluginFactory installs the factory used to spin up a second decoder
// for cross-fade pre-decoding. Without one, cross-fade never engages and
// song transitions are a hard cut.
func (c *Control) SetPluginFactory(f PluginFactory) {
	c.Lock()
	c.pluginFactory = f
	c.Unlock()
}

// Run is the player thread's main loop. It must be started on its own
// goroutine once per Control.
func (c *Control) Run() {
	c.Lock()
	defer c.Unlock()

	for {
		for c.command == CmdNone {
			if c.quit {
				return
			}
			if c.state == StatePlay {
				c.playbackStep()
				continue
			}
			c.wait()
		}

		c.dispatchLocked()
	}
}

func (c *Control) dispatchLocked() {
	switch c.command {
	case CmdExit:
		c.stopLocked()
		c.commandFinishedLocked()
	case CmdCancel:
		c.cancelLocked()
		c.commandFinishedLocked()
	case CmdPause:
		c.togglePauseLocked()
		c.commandFinishedLocked()
	case CmdQueue:
		c.startSongLocked(c.nextSong, 0)
		c.nextSong = nil
		c.commandFinishedLocked()
	case CmdSeek:
		c.seekLocked()
		c.commandFinishedLocked()
	case CmdCloseAudio:
		c.closeAudioLocked()
		c.commandFinishedLocked()
	case CmdUpdateAudio:
		c.updateAudioLocked()
		c.commandFinishedLocked()
	case CmdRefresh:
		c.refreshLocked()
		c.commandFinishedLocked()
	default:
		c.commandFinishedLocked()
	}
}

func (c *Control) stopLocked() {
	c.abortCrossFadeLocked()

	if c.state == StateStop {
		return
	}
	c.occupied = true
	c.Unlock()
	c.decoder.Stop()
	c.Lock()
	c.source.Cancel()
	c.driver.Cancel()
	c.state = StateStop
	c.occupied = false
}

func (c *Control) cancelLocked() {
	c.abortCrossFadeLocked()

	if c.nextSong != nil {
		c.nextSong = nil
		return
	}
	c.stopLocked()
}

// abortCrossFadeLocked tears down an in-progress pre-decode of the next
// song, returning its chunks to its own buffer. Caller holds the lock,
// which this releases: nextDecoder shares the same hub, and its
// Stop/Quit both lock it internally.
func (c *Control) abortCrossFadeLocked() {
	if c.nextDecoder == nil {
		return
	}
	nextDecoder := c.nextDecoder
	c.nextDecoder = nil
	c.nextBuf = nil
	c.nextPipe = nil
	c.xfade = nil
	c.xfadeIndex = 0

	c.Unlock()
	nextDecoder.Stop()
	nextDecoder.Quit()
	c.Lock()
}

func (c *Control) togglePauseLocked() {
	switch c.state {
	case StatePlay:
		c.driver.Pause()
		c.state = StatePause
	case StatePause:
		c.state = StatePlay
	}
}

// closeAudioLocked stops decoding, cancels the output source and drops
// the driver connection, matching spec's CLOSE_AUDIO: close all
// outputs, state -> STOP.
func (c *Control) closeAudioLocked() {
	c.abortCrossFadeLocked()

	if c.state == StateStop {
		return
	}
	c.occupied = true
	c.Unlock()
	c.decoder.Stop()
	c.Lock()
	c.source.Cancel()
	c.Unlock()
	c.driver.Close()
	c.Lock()
	c.state = StateStop
	c.occupied = false
}

// updateAudioLocked re-opens or closes the output driver to match
// outputEnabled, matching spec's UPDATE_AUDIO: re-open/close outputs
// per their enabled flags.
func (c *Control) updateAudioLocked() {
	if c.outputEnabled {
		if c.format.IsValid() {
			c.Unlock()
			err := c.driver.Open(c.format)
			c.Lock()
			if err != nil {
				c.SetOutputError(err)
			}
		}
		return
	}

	c.occupied = true
	c.Unlock()
	c.driver.Close()
	c.Lock()
	c.occupied = false
}

// refreshLocked derives the reported bit rate from the current PCM
// format; elapsed time is kept current by playbackStep already.
func (c *Control) refreshLocked() {
	if c.occupied {
		return
	}
	if c.state == StateStop || !c.format.IsValid() {
		c.bitRate = 0
		return
	}
	c.bitRate = int(c.format.SampleRate) * int(c.format.Channels) * int(c.format.BitsPerSample) / 1000
}

// startSongLocked opens s on the decoder and transitions to PLAY. Caller
// holds the lock.
func (c *Control) startSongLocked(s *song.Song, startTime time.Duration) {
	if s == nil {
		return
	}

	c.occupied = true
	c.Unlock()
	c.decoder.Start(s, startTime, s.EndTime, c.buf, c.pipe)
	c.Lock()
	c.occupied = false

	if err := c.decoder.CheckRethrowError(); err != nil {
		c.SetError(ErrDecoder, err)
		c.state = StatePause
		return
	}

	format := c.decoder.OutFormat()
	outFormat, err := c.source.Open(format)
	if err != nil {
		c.SetError(ErrOutput, err)
		c.state = StatePause
		return
	}

	c.Unlock()
	openErr := c.driver.Open(outFormat)
	c.Lock()
	if openErr != nil {
		c.SetOutputError(openErr)
		return
	}

	c.format = outFormat
	c.totalTime = c.decoder.TotalTime()
	c.elapsedTime = startTime
	c.playStart = time.Now()
	c.state = StatePlay
}

func (c *Control) seekLocked() {
	if c.nextSong != nil {
		s := c.nextSong
		c.nextSong = nil
		c.stopLocked()
		c.startSongLocked(s, c.seekTime)
		return
	}

	if c.state == StateStop {
		return
	}

	c.occupied = true
	c.Unlock()
	err := c.decoder.Seek(c.seekTime)
	c.Lock()
	c.occupied = false

	if err != nil {
		c.SetError(ErrDecoder, err)
		return
	}

	c.source.Cancel()
	c.elapsedTime = c.seekTime
}

// maybeBeginCrossFadeLocked starts pre-decoding the queued next song once
// the current song's remaining time drops to the configured cross-fade
// duration. Caller holds the lock.
func (c *Control) maybeBeginCrossFadeLocked() {
	if c.xfade != nil || c.nextSong == nil || c.pluginFactory == nil {
		return
	}
	mixRampEnabled := c.crossFade.MixRampDelay >= 0
	if c.crossFade.Duration <= 0 && !mixRampEnabled {
		return
	}
	if c.totalTime <= 0 {
		return
	}

	triggerWindow := c.crossFade.Duration
	if mixRampEnabled && triggerWindow < mixRampTriggerWindow {
		triggerWindow = mixRampTriggerWindow
	}
	remaining := c.totalTime - c.elapsedTime
	if remaining > triggerWindow {
		return
	}

	plugin, err := c.pluginFactory(c.nextSong.URI)
	if err != nil {
		// Can't pre-decode; fall through to a hard cut at song end.
		return
	}

	nextBuf := buffer.New(crossFadeBufferChunks)
	nextPipe := pipe.New(nextBuf)
	nextDecoder := decoder.NewControl(c.hub, plugin)
	nextDecoder.SetReplayGainMode(c.replayGainMode)
	nextSong := c.nextSong
	outFormat := c.decoder.OutFormat()
	format := c.format

	// nextDecoder shares this player's hub, so every call into it that
	// locks internally (Run, Start, Quit) must run with this Control's
	// lock released.
	c.Unlock()
	go nextDecoder.Run()
	nextDecoder.Start(nextSong, 0, nextSong.EndTime, nextBuf, nextPipe)
	c.Lock()

	if derr := nextDecoder.CheckRethrowError(); derr != nil {
		c.Unlock()
		nextDecoder.Quit()
		c.Lock()
		return
	}

	if !crossfade.FormatsCompatible(outFormat, nextDecoder.OutFormat()) {
		c.Unlock()
		nextDecoder.Quit()
		c.Lock()
		return
	}

	chunkDuration := chunkPlayDuration(format)

	plan, ok := crossfade.PlanMixRamp(c.decoder.MixRamp().End, nextDecoder.MixRamp().Start, chunkDuration, c.crossFade)
	if !ok {
		plan = crossfade.PlanTimeBased(remaining, chunkDuration, c.crossFade)
	}
	if plan == nil {
		c.Unlock()
		nextDecoder.Quit()
		c.Lock()
		return
	}

	c.nextDecoder = nextDecoder
	c.nextBuf = nextBuf
	c.nextPipe = nextPipe
	c.xfade = plan
	c.xfadeIndex = 0
}

// chunkPlayDuration estimates how long one full chunk of audio takes to
// play in f, used to size the cross-fade window in chunks.
func chunkPlayDuration(f chunk.Format) time.Duration {
	frameSize := f.FrameSize()
	if frameSize == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := chunk.MaxCapacity / frameSize
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// attachCrossFadeCompanionLocked attaches the next song's head chunk as
// the companion of the current pipe's head chunk, if a cross-fade is in
// progress and the head hasn't been paired yet. Caller holds the lock.
func (c *Control) attachCrossFadeCompanionLocked() {
	if c.xfade == nil || c.xfadeIndex >= c.xfade.NumChunks {
		return
	}

	head := c.pipe.Peek()
	if head == nil || head.Other != nil {
		return
	}

	companion := c.nextPipe.Pop()
	if companion == nil {
		return
	}

	ratio, ok := c.xfade.ChunkMixRatio(c.xfadeIndex)
	if !ok {
		ratio = 1
	}
	head.Other = companion
	head.MixRatio = ratio
	c.xfadeIndex++
}

// playbackStep drains one chunk's worth of audio to the driver. Caller
// holds the lock, which is released while the filter chain runs and
// while writing to the driver.
func (c *Control) playbackStep() {
	c.maybeBeginCrossFadeLocked()

	head := c.pipe.Peek()
	c.attachCrossFadeCompanionLocked()

	ok, err := c.source.Fill(c.Unlock, c.Lock)

	if head != nil && c.pipe.Peek() != head && head.Other != nil {
		// head was consumed by Fill this step; its companion's
		// bytes were already copied out during mixing, so it is
		// safe to return to the pre-decode buffer's free list now.
		c.nextBuf.Return(head.Other)
	}

	if err != nil {
		c.SetOutputError(err)
		return
	}

	if !ok {
		if c.decoder.State() == decoder.StateStop {
			c.finishSongLocked()
			return
		}
		if c.decoder.State() == decoder.StateError {
			if derr := c.decoder.CheckRethrowError(); derr != nil {
				c.SetError(ErrDecoder, derr)
				c.state = StatePause
			}
			return
		}
		c.wait()
		return
	}

	pending := c.source.Pending()

	c.Unlock()
	n, err := c.driver.Play(pending)
	c.Lock()

	if err != nil {
		c.SetOutputError(err)
		return
	}

	c.source.ConsumeData(n)
	c.advanceClockLocked(n)
}

func (c *Control) advanceClockLocked(n int) {
	frameSize := c.format.FrameSize()
	if frameSize == 0 || c.format.SampleRate == 0 {
		return
	}
	frames := n / frameSize
	d := time.Duration(frames) * time.Second / time.Duration(c.format.SampleRate)
	c.elapsedTime += d
	c.totalPlayTime += d.Seconds()
}

func (c *Control) finishSongLocked() {
	if c.xfade != nil && c.nextDecoder != nil {
		c.swapInCrossFadedSongLocked()
		return
	}

	c.Unlock()
	c.decoder.Stop()
	c.Lock()
	c.source.Cancel()

	if c.ApplyBorderPause() {
		return
	}

	if c.nextSong != nil {
		s := c.nextSong
		c.nextSong = nil
		c.startSongLocked(s, 0)
		return
	}

	c.state = StateStop
}

// swapInCrossFadedSongLocked promotes the pre-decoded next song to be
// the current one, since its chunks have already been streaming into
// the output mixed with the outgoing song's tail. Caller holds the
// lock.
func (c *Control) swapInCrossFadedSongLocked() {
	oldDecoder := c.decoder
	c.Unlock()
	oldDecoder.Stop()
	oldDecoder.Quit()
	c.Lock()

	c.decoder = c.nextDecoder
	c.buf = c.nextBuf
	c.pipe = c.nextPipe

	c.nextDecoder = nil
	c.nextBuf = nil
	c.nextPipe = nil
	c.xfade = nil
	c.xfadeIndex = 0

	c.nextSong = nil
	c.totalTime = c.decoder.TotalTime()
	c.elapsedTime = 0
	c.playStart = time.Now()
}
