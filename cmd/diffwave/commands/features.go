package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/haivivi/diffwave/pkg/dataset"
	"github.com/haivivi/diffwave/pkg/mel"
)

var (
	featInput  string
	featOutput string
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Precompute spectrogram features for a corpus",
	Long: `Walk a directory of WAV files and write a mel spectrogram feature
file next to the corpus for each clip. Training and conditional
synthesis read these files instead of recomputing the front-end.

Clips at other sample rates are resampled to the configured rate first.
Clips shorter than one analysis window are skipped.

Examples:
  diffwave features --input ./corpus
  diffwave features --input ./corpus --output ./corpus/spectrograms`,
	RunE: runFeatures,
}

func runFeatures(cmd *cobra.Command, args []string) error {
	if featInput == "" {
		return fmt.Errorf("--input is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	outDir := featOutput
	if outDir == "" {
		outDir = filepath.Join(featInput, "spectrograms")
	}

	files, err := dataset.Discover(featInput)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no WAV files under %s", featInput)
	}

	extractor := mel.New(cfg.MelConfig())
	written, skipped := 0, 0
	for _, path := range files {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		samples, rate, err := wavRead(path, cfg.Audio.SampleRate)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		frames := extractor.Spectrogram(samples)
		if frames == nil {
			slog.Warn("clip shorter than one analysis window, skipping", "path", path)
			skipped++
			continue
		}

		feat := &dataset.Feature{
			SampleRate: rate,
			HopSamples: cfg.Audio.HopSamples,
			NumMels:    cfg.Audio.NumMels,
			Frames:     frames,
		}
		dst := filepath.Join(outDir, filepath.Base(path)+".mel")
		if err := dataset.SaveFeature(dst, feat); err != nil {
			return err
		}
		slog.Debug("wrote feature", "path", dst, "frames", len(frames))
		written++
	}

	slog.Info("features done", "written", written, "skipped", skipped, "dir", outDir)
	return nil
}

func init() {
	featuresCmd.Flags().StringVar(&featInput, "input", "", "corpus directory to walk")
	featuresCmd.Flags().StringVar(&featOutput, "output", "", "feature directory (default: <input>/spectrograms)")

	rootCmd.AddCommand(featuresCmd)
}
