// Package collate turns variable-length audio records into fixed-length,
// batch-stackable training windows.
//
// # Modes
//
// The collator runs in one of two modes, chosen by Config.Unconditional:
//
//   - unconditional: each record is cropped to a random window of
//     AudioLen samples. Records shorter than AudioLen are dropped.
//   - conditional: each record carries a time-major spectrogram
//     ([frames][mels]); a random window of CropMelFrames frames is
//     cropped, transposed to feature-major layout for the denoiser, and
//     the matching audio range (frames * HopSamples) is cropped alongside
//     so the pair stays time-aligned. Records with too few frames are
//     dropped.
//
// Dropping a short record is a filtering decision, not an error; it
// mirrors how a training pipeline silently skips unusable clips. Only
// when every record is dropped does Collate fail, with ErrEmptyBatch,
// because stacking an empty batch has no meaning downstream.
//
// # Randomness
//
// Window offsets come from an injected *rand.Rand. Each data-loading
// worker must own an independently seeded source; nothing in the
// collator is shared between invocations, so it needs no locking.
package collate

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/haivivi/diffwave/pkg/tensor"
)

// ErrEmptyBatch reports that every record in a collation call was
// filtered out for insufficient length.
var ErrEmptyBatch = errors.New("collate: all records shorter than the required window")

// Record is one raw training example: a mono audio clip in [-1, 1] and,
// in conditional mode, its time-aligned spectrogram, time-major
// ([frames][mels]).
type Record struct {
	Audio       []float32
	Spectrogram [][]float32
}

// Config selects the collation mode and window geometry.
type Config struct {
	// Unconditional selects audio-only windows of AudioLen samples.
	Unconditional bool

	// AudioLen is the window length in samples (unconditional mode).
	AudioLen int

	// CropMelFrames is the window length in spectrogram frames
	// (conditional mode).
	CropMelFrames int

	// HopSamples is the number of audio samples per spectrogram frame.
	HopSamples int
}

// Batch is a stack of aligned windows. Audio is [N, L]. Spectrogram is
// [N, mels, frames] (feature-major) in conditional mode and nil
// otherwise.
type Batch struct {
	Audio       *tensor.Tensor
	Spectrogram *tensor.Tensor
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int { return b.Audio.Dim(0) }

// Collator crops and stacks records according to its config.
type Collator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a Collator. The rand source is owned by the collator and
// must not be shared with another concurrently running collator.
func New(cfg Config, rng *rand.Rand) *Collator {
	return &Collator{cfg: cfg, rng: rng}
}

// Collate processes records into one batch. Records that cannot fill a
// window are dropped; if none survive, it returns ErrEmptyBatch.
func (c *Collator) Collate(records []Record) (*Batch, error) {
	if c.cfg.Unconditional {
		return c.collateAudio(records)
	}
	return c.collateAligned(records)
}

func (c *Collator) collateAudio(records []Record) (*Batch, error) {
	audioLen := c.cfg.AudioLen
	windows := make([][]float32, 0, len(records))
	for _, rec := range records {
		if len(rec.Audio) < audioLen {
			continue
		}
		start := c.rng.Intn(len(rec.Audio) - audioLen + 1)
		windows = append(windows, padRight(rec.Audio[start:start+audioLen], audioLen))
	}
	if len(windows) == 0 {
		return nil, ErrEmptyBatch
	}
	return &Batch{Audio: stack(windows, audioLen)}, nil
}

func (c *Collator) collateAligned(records []Record) (*Batch, error) {
	crop := c.cfg.CropMelFrames
	hop := c.cfg.HopSamples
	audioLen := crop * hop

	audioWindows := make([][]float32, 0, len(records))
	specWindows := make([][]float32, 0, len(records))
	var mels int

	for i, rec := range records {
		if rec.Spectrogram == nil {
			return nil, fmt.Errorf("collate: record %d has no spectrogram in conditional mode", i)
		}
		frames := len(rec.Spectrogram)
		if frames < crop {
			continue
		}
		m := len(rec.Spectrogram[0])
		if mels == 0 {
			mels = m
		} else if m != mels {
			return nil, fmt.Errorf("collate: record %d has %d mel bins, batch has %d", i, m, mels)
		}

		start := c.rng.Intn(frames - crop + 1)
		specWindows = append(specWindows, transpose(rec.Spectrogram[start:start+crop], m))

		lo := start * hop
		hi := (start + crop) * hop
		if lo > len(rec.Audio) {
			lo = len(rec.Audio)
		}
		if hi > len(rec.Audio) {
			hi = len(rec.Audio)
		}
		audioWindows = append(audioWindows, padRight(rec.Audio[lo:hi], audioLen))
	}
	if len(audioWindows) == 0 {
		return nil, ErrEmptyBatch
	}

	n := len(audioWindows)
	spec := tensor.New(n, mels, crop)
	for i, w := range specWindows {
		copy(spec.Row(i), w)
	}
	return &Batch{Audio: stack(audioWindows, audioLen), Spectrogram: spec}, nil
}

// padRight copies w into a slice of exactly n samples, zero-filling the
// tail. Rounding at clip boundaries can leave the audio window a few
// samples short of frames * hop.
func padRight(w []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, w)
	return out
}

// transpose flattens a time-major [frames][mels] window into a
// feature-major [mels * frames] buffer, the layout the denoiser expects.
func transpose(frames [][]float32, mels int) []float32 {
	n := len(frames)
	out := make([]float32, mels*n)
	for t, frame := range frames {
		for m := 0; m < mels; m++ {
			out[m*n+t] = frame[m]
		}
	}
	return out
}

func stack(windows [][]float32, width int) *tensor.Tensor {
	t := tensor.New(len(windows), width)
	for i, w := range windows {
		copy(t.Row(i), w)
	}
	return t
}
