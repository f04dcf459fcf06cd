package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "musictools",
	Short: "Three-thread audio playback engine",
	Long: `musictools - a playback engine built around three cooperating threads:
a decoder that fills a bounded pipe of chunks, an output source that drains
it through optional filters, and a player that coordinates both and cross-
fades between songs.

Features:
  - Decoder/output-source/player threads synchronized over a single mutex
  - Bounded chunk pipe with explicit allocate/push/shift/return lifecycle
  - Cross-fade mixing with time-based and MixRamp-tag-based alignment
  - Replay gain normalization (track or album mode)
  - Support for MP3, FLAC, WAV, Opus and Ogg Vorbis audio formats

Commands:
  - play: Play a playlist through the engine, with optional cross-fade`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
