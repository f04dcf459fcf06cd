package decoder

import "github.com/drgolem/musictools/pkg/chunk"

// Run is the decoder thread's main loop. It must be started on its own
// goroutine once per Control and exits only after Quit has been called
// and any in-flight command has been processed.
func (c *Control) Run() {
	c.Lock()
	defer c.Unlock()

	for {
		for c.command == CmdNone {
			if c.quit {
				return
			}
			c.Wait()
		}

		switch c.command {
		case CmdStart:
			c.doStart()
		case CmdStop:
			c.state = StateStop
			c.commandFinishedLocked()
		case CmdSeek:
			// Idle decoder: nothing to seek in.
			c.seekError = true
			c.commandFinishedLocked()
		default:
			c.commandFinishedLocked()
		}
	}
}

// doStart opens the queued song and, on success, falls into decodeLoop
// while still holding the lock. Caller holds the lock.
func (c *Control) doStart() {
	c.state = StateStart
	s := c.song
	startTime := c.startTime

	c.Unlock()
	format, seekable, total, err := c.plugin.Open(s.URI)
	if err == nil && seekable && startTime > 0 {
		err = c.plugin.Seek(startTime)
	}
	c.Lock()

	if err != nil {
		c.err = err
		c.state = StateError
		c.commandFinishedLocked()
		return
	}

	c.inFormat = format
	c.outFormat = format
	c.seekable = seekable
	c.totalTime = total
	c.state = StateDecode
	c.commandFinishedLocked()

	c.decodeLoop()
}

// decodeLoop pulls chunks from the plugin until the stream ends, an
// error occurs, or a STOP command arrives. Caller holds the lock; it is
// released around every blocking plugin call.
func (c *Control) decodeLoop() {
	for {
		if c.command == CmdStop {
			c.closePluginLocked()
			c.state = StateStop
			c.commandFinishedLocked()
			return
		}
		if c.command == CmdSeek {
			c.handleSeekLocked()
			continue
		}

		ch := c.allocateChunkLocked()
		if ch == nil {
			// A command arrived while waiting for a free chunk;
			// go back around to handle it.
			continue
		}

		c.Unlock()
		done, err := c.plugin.DecodeInto(ch)
		tag := c.plugin.Tag()
		c.Lock()

		if err != nil {
			c.buf.Return(ch)
			c.err = err
			c.state = StateError
			c.closePluginLocked()
			c.hub.PlayerWake.Signal()
			return
		}

		if tag != nil {
			ch.Tag = tag
		}
		ch.Format = c.outFormat
		c.applyReplayGainLocked(ch)

		c.pipe.Push(ch)
		c.hub.PlayerWake.Signal()

		if done {
			start, end := c.plugin.MixRampTags()
			c.mixRamp = MixRampInfo{Start: start, End: end}
			c.state = StateStop
			c.closePluginLocked()
			c.hub.PlayerWake.Signal()
			return
		}
	}
}

func (c *Control) handleSeekLocked() {
	if !c.seekable {
		c.seekError = true
		c.commandFinishedLocked()
		return
	}

	t := c.seekTime
	c.Unlock()
	err := c.plugin.Seek(t)
	c.Lock()

	c.seekError = err != nil
	c.commandFinishedLocked()
}

// allocateChunkLocked blocks until a chunk is available or a command
// arrives for the caller to handle instead. Caller holds the lock.
func (c *Control) allocateChunkLocked() *chunk.Chunk {
	for {
		ch := c.buf.Allocate()
		if ch != nil {
			return ch
		}
		if c.command != CmdNone {
			return nil
		}
		c.Wait()
	}
}

// applyReplayGainLocked stamps ch with the current gain scope's serial so
// the output side reconfigures its gain filter exactly once per song.
// GainModeOff stamps the sentinel serial instead, so replay-gain
// processing stays disabled end-to-end regardless of what the last
// installed info was.
func (c *Control) applyReplayGainLocked(ch *chunk.Chunk) {
	if c.replayGainMode == GainModeOff {
		ch.ReplayGainSerial = chunk.IgnoreReplayGain
		return
	}
	ch.ReplayGainInfo = c.plugin.ReplayGain()
	ch.ReplayGainSerial = c.gainSerial
}

func (c *Control) closePluginLocked() {
	c.Unlock()
	c.plugin.Close()
	c.Lock()
}
