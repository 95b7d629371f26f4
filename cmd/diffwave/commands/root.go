package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/diffwave/pkg/config"
)

var (
	// Global flags
	verbose    bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "diffwave",
	Short: "Diffusion-based raw audio synthesis",
	Long: `diffwave - waveform synthesis with a denoising diffusion model.

A trained network (exported to ONNX) predicts the noise component of a
corrupted waveform; sampling runs the schedule in reverse to turn pure
noise into audio, optionally conditioned on a mel spectrogram.

Examples:
  # Precompute conditioning features for a corpus
  diffwave features --input ./corpus

  # Vocode a spectrogram into a waveform
  diffwave synth --model model.onnx --spectrogram clip.wav.mel -o out.wav

  # Unconditional generation, one second of audio
  diffwave synth --model model.onnx --length 22050

  # Show how the fast sampling schedule maps onto training steps
  diffwave schedule`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config YAML (defaults apply when omitted)")
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig returns the configuration from --config, or the defaults.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.Load(configFile)
}
