package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Feature is a precomputed spectrogram stored alongside the dataset.
// Frames are time-major ([frames][mels]), matching what the collator
// consumes. The geometry fields let loading fail fast when a feature
// file was produced with a different front-end than the model expects.
type Feature struct {
	SampleRate int           `msgpack:"sample_rate"`
	HopSamples int           `msgpack:"hop_samples"`
	NumMels    int           `msgpack:"num_mels"`
	Frames     [][]float32   `msgpack:"frames"`
}

// SaveFeature writes a feature file, creating parent directories as
// needed.
func SaveFeature(path string, f *Feature) error {
	if len(f.Frames) == 0 {
		return fmt.Errorf("dataset: refusing to save empty feature %s", path)
	}
	data, err := msgpack.Marshal(f)
	if err != nil {
		return fmt.Errorf("dataset: encode feature: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dataset: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFeature reads a feature file written by SaveFeature.
func LoadFeature(path string) (*Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	var f Feature
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("dataset: decode feature %s: %w", path, err)
	}
	if len(f.Frames) == 0 {
		return nil, fmt.Errorf("dataset: feature %s has no frames", path)
	}
	if f.NumMels != 0 && len(f.Frames[0]) != f.NumMels {
		return nil, fmt.Errorf("dataset: feature %s declares %d mel bins but frames have %d",
			path, f.NumMels, len(f.Frames[0]))
	}
	return &f, nil
}
