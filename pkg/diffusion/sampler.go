package diffusion

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/haivivi/diffwave/pkg/schedule"
	"github.com/haivivi/diffwave/pkg/tensor"
)

// SamplerConfig controls reverse sampling.
type SamplerConfig struct {
	// Unconditional generates without a spectrogram; the output length
	// is AudioLen samples.
	Unconditional bool

	// AudioLen is the generated length in samples (unconditional mode).
	AudioLen int

	// HopSamples is the number of audio samples per spectrogram frame;
	// in conditional mode the output length is HopSamples * frames.
	HopSamples int

	// InferenceNoise optionally re-indexes sampling onto fewer steps.
	// Nil, or a sequence equal to the training betas, runs the full
	// schedule.
	InferenceNoise []float64
}

// Sampler synthesizes audio from Gaussian noise by iterating the
// schedule backward through a trained denoiser.
type Sampler struct {
	sched *schedule.Schedule
	den   Denoiser
	cfg   SamplerConfig

	// steps maps sampler iterations to training-schedule indices,
	// resolved once at construction.
	steps []int
}

// NewSampler resolves the inference step sequence and returns a sampler.
func NewSampler(s *schedule.Schedule, den Denoiser, cfg SamplerConfig) (*Sampler, error) {
	steps := s.IdentitySteps()
	if cfg.InferenceNoise != nil && !equalBetas(cfg.InferenceNoise, s.Betas()) {
		var err error
		steps, err = s.InferenceSteps(cfg.InferenceNoise)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Unconditional && cfg.AudioLen <= 0 {
		return nil, fmt.Errorf("diffusion: unconditional sampling needs a positive AudioLen, got %d", cfg.AudioLen)
	}
	if !cfg.Unconditional && cfg.HopSamples <= 0 {
		return nil, fmt.Errorf("diffusion: conditional sampling needs positive HopSamples, got %d", cfg.HopSamples)
	}
	return &Sampler{sched: s, den: den, cfg: cfg, steps: steps}, nil
}

// Steps returns a copy of the resolved training-schedule indices, one
// per sampler iteration.
func (s *Sampler) Steps() []int {
	out := make([]int, len(s.steps))
	copy(out, s.steps)
	return out
}

// Sample synthesizes one batch of audio in [-1, 1].
//
// In conditional mode spectrogram must be [N, mels, frames] or
// [mels, frames] (a batch dimension of 1 is inserted); the output is
// [N, HopSamples * frames]. In unconditional mode spectrogram must be
// nil and the output is [1, AudioLen].
//
// The context is checked between iterations, so sampling can be aborted
// without partial side effects; a denoiser failure aborts the whole
// call, and resuming means starting over from fresh noise.
func (s *Sampler) Sample(ctx context.Context, spectrogram *tensor.Tensor, rng *rand.Rand) (*tensor.Tensor, error) {
	var audio *tensor.Tensor
	if s.cfg.Unconditional {
		if spectrogram != nil {
			return nil, fmt.Errorf("diffusion: unexpected spectrogram in unconditional mode")
		}
		audio = tensor.Randn(rng, 1, s.cfg.AudioLen)
	} else {
		if spectrogram == nil {
			return nil, fmt.Errorf("diffusion: conditional sampling needs a spectrogram")
		}
		var err error
		spectrogram, err = normalizeConditioning(spectrogram)
		if err != nil {
			return nil, err
		}
		batch := spectrogram.Dim(0)
		frames := spectrogram.Dim(2)
		audio = tensor.Randn(rng, batch, s.cfg.HopSamples*frames)
	}

	batch := audio.Dim(0)
	for n := len(s.steps) - 1; n >= 0; n-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tn := s.steps[n]
		c1 := 1 / math.Sqrt(s.sched.Alpha(tn))
		c2 := s.sched.Beta(tn) / math.Sqrt(1-s.sched.AlphaCum(tn))

		steps := make([]int, batch)
		for i := range steps {
			steps[i] = tn
		}
		pred, err := s.den.Denoise(ctx, audio, steps, spectrogram)
		if err != nil {
			return nil, fmt.Errorf("diffusion: denoise at step %d (t=%d): %w", n, tn, err)
		}
		pred, err = normalizePrediction(pred)
		if err != nil {
			return nil, err
		}
		if pred.Numel() != audio.Numel() {
			return nil, fmt.Errorf("diffusion: prediction shape %v does not match audio %v", pred.Shape, audio.Shape)
		}

		f1 := float32(c1)
		f2 := float32(c2)
		for i := range audio.Data {
			audio.Data[i] = f1 * (audio.Data[i] - f2*pred.Data[i])
		}

		// Stochastic reverse step; the final iteration is deterministic.
		if n > 0 {
			prev := s.steps[n-1]
			sigma := float32(math.Sqrt((1 - s.sched.AlphaCum(prev)) / (1 - s.sched.AlphaCum(tn)) * s.sched.Beta(tn)))
			noise := tensor.Randn(rng, audio.Shape...)
			for i := range audio.Data {
				audio.Data[i] += sigma * noise.Data[i]
			}
		}

		audio.Clamp(-1, 1)
	}
	return audio, nil
}

// normalizeConditioning inserts a batch dimension of 1 when the
// spectrogram arrives rank-2 ([mels, frames]).
func normalizeConditioning(spec *tensor.Tensor) (*tensor.Tensor, error) {
	switch spec.Rank() {
	case 2:
		return spec.Reshape(1, spec.Dim(0), spec.Dim(1))
	case 3:
		return spec, nil
	default:
		return nil, fmt.Errorf("diffusion: spectrogram rank %d, want [mels, frames] or [N, mels, frames]", spec.Rank())
	}
}

func equalBetas(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
