package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/spf13/cobra"

	paapi "github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/musictools/pkg/buffer"
	"github.com/drgolem/musictools/pkg/decoder"
	"github.com/drgolem/musictools/pkg/decoders"
	"github.com/drgolem/musictools/pkg/filter"
	"github.com/drgolem/musictools/pkg/output"
	"github.com/drgolem/musictools/pkg/outputdriver/portaudio"
	"github.com/drgolem/musictools/pkg/pipe"
	"github.com/drgolem/musictools/pkg/player"
	"github.com/drgolem/musictools/pkg/song"
	"github.com/drgolem/musictools/pkg/syncutil"
)

// engineBufferChunks sizes the shared chunk pool the decoder fills and
// the output source drains.
const engineBufferChunks = 64

var (
	playDeviceIdx   int
	playFrames      int
	playVerbose     bool
	playCrossFade   float64
	playMixRampDB   float64
	playMixRampDly  float64
	playReplayGain  string
)

// playCmd wires DecoderControl, PlayerControl and an Output Source
// together and drives them through a playlist, queuing each next song
// far enough ahead of the current one's end for the configured
// cross-fade (or MixRamp alignment) to engage.
var playCmd = &cobra.Command{
	Use:   "play <audio_file> [audio_file...]",
	Short: "Play one or more audio files through the three-thread playback engine",
	Long: `Plays a sequence of audio files through the player/decoder/output-source
engine, with optional cross-fade and MixRamp-based song transitions and
replay-gain normalization.

Examples:
  musictools play song.flac
  musictools play --crossfade 6 one.mp3 two.flac three.ogg
  musictools play --crossfade 8 --mixrampdb -17 --mixrampdelay 3 *.flac

Supported Formats:
  MP3, FLAC, WAV, Opus, Ogg Vorbis`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", 1, "Audio output device index")
	playCmd.Flags().IntVarP(&playFrames, "frames", "f", 512, "PortAudio frames per buffer")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "Verbose output (debug logging)")
	playCmd.Flags().Float64Var(&playCrossFade, "crossfade", 0, "Cross-fade duration in seconds (0 disables)")
	playCmd.Flags().Float64Var(&playMixRampDB, "mixrampdb", -17, "MixRamp loudness threshold in dB")
	playCmd.Flags().Float64Var(&playMixRampDly, "mixrampdelay", -1, "MixRamp alignment delay in seconds (negative disables)")
	playCmd.Flags().StringVar(&playReplayGain, "replaygain", "off", "Replay gain mode: off, track, album")
}

func runPlay(cmd *cobra.Command, args []string) {
	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Initializing PortAudio")
	if err := paapi.Initialize(); err != nil {
		slog.Error("Failed to initialize PortAudio", "error", err)
		slog.Error("Hint: Make sure PortAudio is installed on your system")
		os.Exit(1)
	}
	defer paapi.Terminate()
	slog.Info("PortAudio initialized", "version", paapi.GetVersion())

	firstPlugin, err := decoders.NewPlugin(args[0])
	if err != nil {
		slog.Error("Unsupported file", "file", args[0], "error", err)
		os.Exit(1)
	}

	hub := syncutil.NewHub()
	buf := buffer.New(engineBufferChunks)
	p := pipe.New(buf)
	gainMode := replayGainModeFromFlag(playReplayGain)
	dc := decoder.NewControl(hub, firstPlugin)

	src := output.NewSource(p, buf, filter.NewChain())
	src.SetReplayGainMode(filterGainModeFrom(gainMode))
	drv := portaudio.New(playDeviceIdx, playFrames)

	pc := player.NewControl(hub, dc, buf, p, src, drv)
	pc.SetReplayGainMode(gainMode)
	pc.SetPluginFactory(decoders.NewPlugin)
	pc.SetCrossFade(durationFromSeconds(playCrossFade))
	pc.SetMixRampDB(playMixRampDB)
	pc.SetMixRampDelay(durationFromSeconds(playMixRampDly))

	go dc.Run()
	go pc.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Starting playback", "file", args[0], "queued", len(args)-1)
	if err := pc.Play(&song.Song{URI: args[0]}); err != nil {
		slog.Error("Failed to start playback", "file", args[0], "error", err)
		os.Exit(1)
	}

	statusDone := make(chan struct{})
	go monitorEngineStatus(pc, statusDone)

	runPlaylistLoop(pc, args, sigChan)

	close(statusDone)
	pc.Kill()
	slog.Info("Exiting")
}

// runPlaylistLoop polls player status, queuing each subsequent song once
// the current one is close enough to its end for the configured
// cross-fade window, and returns once the playlist has drained or a
// termination signal arrives.
func runPlaylistLoop(pc *player.Control, files []string, sigChan <-chan os.Signal) {
	queueIdx := 1
	xfadeWindow := pc.GetCrossFade() + time.Second

	for {
		select {
		case sig := <-sigChan:
			slog.Info("Signal received, stopping playback", "signal", sig)
			pc.LockStop()
			return
		case <-time.After(200 * time.Millisecond):
		}

		status := pc.LockGetStatus()

		if queueIdx < len(files) && status.State == player.StatePlay {
			remaining := status.TotalTime - status.ElapsedTime
			if status.TotalTime == 0 || remaining <= xfadeWindow {
				slog.Info("Queuing next song", "file", files[queueIdx])
				pc.LockEnqueueSong(&song.Song{URI: files[queueIdx]})
				queueIdx++
			}
		}

		if status.State == player.StateStop && queueIdx >= len(files) {
			return
		}
	}
}

// monitorEngineStatus logs playback position every two seconds until
// done is closed.
func monitorEngineStatus(pc *player.Control, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := pc.LockGetStatus()
			slog.Info("Playback status",
				"state", status.State.String(),
				"elapsed", status.ElapsedTime.Truncate(time.Millisecond),
				"total", status.TotalTime.Truncate(time.Millisecond),
				"sample_rate", status.Format.SampleRate,
				"channels", status.Format.Channels)
		case <-done:
			return
		}
	}
}

func replayGainModeFromFlag(v string) decoder.GainMode {
	switch v {
	case "track":
		return decoder.GainModeTrack
	case "album":
		return decoder.GainModeAlbum
	default:
		return decoder.GainModeOff
	}
}

// filterGainModeFrom maps the decoder side's replay-gain mode (which
// governs whether ReplayGain tags get read off the plugin at all) to the
// output side's equivalent (which governs whether the gain filters
// actually scale PCM), so one CLI flag drives both.
func filterGainModeFrom(m decoder.GainMode) filter.GainMode {
	switch m {
	case decoder.GainModeTrack:
		return filter.GainTrack
	case decoder.GainModeAlbum:
		return filter.GainAlbum
	default:
		return filter.GainOff
	}
}

func durationFromSeconds(s float64) time.Duration {
	if s < 0 {
		return -1
	}
	return time.Duration(s * float64(time.Second))
}
