// Package dataset supplies raw (audio, spectrogram) records to the
// training pipeline.
//
// # Layout
//
// A dataset is a directory tree of WAV files. In conditional mode each
// clip has a companion spectrogram feature file produced ahead of time
// (see Store and the features CLI command):
//
//	root/
//	  a/clip1.wav
//	  b/clip2.wav
//	  spectrograms/
//	    clip1.wav.mel
//	    clip2.wav.mel
//
// # Loading
//
// Records are decoded lazily per access, mixed down to mono, and
// resampled to the model rate when the file rate differs. The Loader
// (loader.go) wraps a Dataset with concurrent batch construction.
package dataset

import (
	"fmt"
	"io/fs"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/diffwave/pkg/collate"
	"github.com/haivivi/diffwave/pkg/wavio"
)

// Config controls how records are produced.
type Config struct {
	// Unconditional skips spectrogram loading entirely.
	Unconditional bool

	// SampleRate is the model's sample rate; files at other rates are
	// resampled on load.
	SampleRate int

	// FeatureDir holds the spectrogram companion files. Empty means
	// "<root>/spectrograms".
	FeatureDir string
}

// Dataset is an ordered collection of audio files under a root
// directory.
type Dataset struct {
	root  string
	files []string
	cfg   Config
}

// Discover walks root recursively and returns all WAV file paths in
// deterministic (sorted) order.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".wav") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: discover %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Open discovers the audio files under root and returns a Dataset.
func Open(root string, cfg Config) (*Dataset, error) {
	files, err := Discover(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dataset: no WAV files under %s", root)
	}
	if cfg.FeatureDir == "" {
		cfg.FeatureDir = filepath.Join(root, "spectrograms")
	}
	return &Dataset{root: root, files: files, cfg: cfg}, nil
}

// Len returns the number of clips.
func (d *Dataset) Len() int { return len(d.files) }

// Path returns the audio file path at index i.
func (d *Dataset) Path(i int) string { return d.files[i] }

// FeaturePath returns the spectrogram companion path for the audio file
// at index i.
func (d *Dataset) FeaturePath(i int) string {
	return filepath.Join(d.cfg.FeatureDir, filepath.Base(d.files[i])+".mel")
}

// Record loads the clip at index i, resampled to the configured rate,
// together with its spectrogram in conditional mode.
func (d *Dataset) Record(i int) (collate.Record, error) {
	samples, rate, err := wavio.Read(d.files[i])
	if err != nil {
		return collate.Record{}, err
	}
	if rate != d.cfg.SampleRate {
		samples, err = Resample(samples, rate, d.cfg.SampleRate)
		if err != nil {
			return collate.Record{}, fmt.Errorf("dataset: resample %s: %w", d.files[i], err)
		}
	}

	rec := collate.Record{Audio: samples}
	if !d.cfg.Unconditional {
		feat, err := LoadFeature(d.FeaturePath(i))
		if err != nil {
			return collate.Record{}, err
		}
		rec.Spectrogram = feat.Frames
	}
	return rec, nil
}

// Resample converts mono samples from one rate to another using the
// high-quality preset.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from == to {
		return samples, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, err
	}

	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	out, err := r.Process(in)
	if err != nil {
		return nil, err
	}

	converted := make([]float32, len(out))
	for i, s := range out {
		converted[i] = float32(s)
	}
	return converted, nil
}

// Shuffle returns a permutation of the record indices drawn from rng.
func (d *Dataset) Shuffle(rng *rand.Rand) []int {
	return rng.Perm(len(d.files))
}
