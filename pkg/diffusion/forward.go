package diffusion

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/haivivi/diffwave/pkg/loss"
	"github.com/haivivi/diffwave/pkg/schedule"
	"github.com/haivivi/diffwave/pkg/tensor"
)

// Diffuser builds corrupted training examples from clean audio.
type Diffuser struct {
	sched *schedule.Schedule

	// levels is the alphaCum lookup table indexed by timestep, captured
	// once at construction instead of recomputed per batch.
	levels []float64

	rng *rand.Rand
}

// NewDiffuser creates a Diffuser over the given schedule. The rand
// source drives both timestep selection and noise sampling and must be
// owned by this instance.
func NewDiffuser(s *schedule.Schedule, rng *rand.Rand) *Diffuser {
	return &Diffuser{sched: s, levels: s.NoiseLevels(), rng: rng}
}

// Example is one corrupted training batch: the noisy input handed to
// the denoiser, the true noise it must predict, and the per-example
// timesteps it is conditioned on.
type Example struct {
	Noisy *tensor.Tensor // [N, L]
	Noise *tensor.Tensor // [N, L]
	Steps []int          // len N, each in [0, schedule.Len())
}

// Corrupt draws an independent uniform timestep t for each example in
// the clean [N, L] audio batch and mixes in Gaussian noise:
//
//	noisy = sqrt(alphaCum(t)) * audio + sqrt(1 - alphaCum(t)) * noise
//
// alphaCum(t) lies strictly in (0, 1) for a valid schedule, so the mix
// is a convex combination and bounded input stays bounded.
func (d *Diffuser) Corrupt(audio *tensor.Tensor) (*Example, error) {
	if audio.Rank() != 2 {
		return nil, fmt.Errorf("diffusion: audio rank %d, want [N, L]", audio.Rank())
	}
	n := audio.Dim(0)

	noise := tensor.Randn(d.rng, audio.Shape...)
	noisy := tensor.New(audio.Shape...)
	steps := make([]int, n)

	for i := 0; i < n; i++ {
		t := d.rng.Intn(d.sched.Len())
		if t < 0 || t >= len(d.levels) {
			return nil, fmt.Errorf("%w: %d of %d", ErrInvalidTimestep, t, len(d.levels))
		}
		steps[i] = t

		level := d.levels[t]
		signal := float32(math.Sqrt(level))
		mix := float32(math.Sqrt(1 - level))

		in := audio.Row(i)
		eps := noise.Row(i)
		out := noisy.Row(i)
		for j := range in {
			out[j] = signal*in[j] + mix*eps[j]
		}
	}
	return &Example{Noisy: noisy, Noise: noise, Steps: steps}, nil
}

// Step runs one full training-step computation: corrupt the batch,
// invoke the denoiser, and score the prediction against the true noise.
// Denoiser failures propagate unmodified. spectrogram may be nil in
// unconditional mode.
func (d *Diffuser) Step(ctx context.Context, den Denoiser, audio, spectrogram *tensor.Tensor, lossFn loss.Func) (float64, error) {
	ex, err := d.Corrupt(audio)
	if err != nil {
		return 0, err
	}
	pred, err := den.Denoise(ctx, ex.Noisy, ex.Steps, spectrogram)
	if err != nil {
		return 0, err
	}
	pred, err = normalizePrediction(pred)
	if err != nil {
		return 0, err
	}
	return lossFn(ex.Noise, pred)
}
