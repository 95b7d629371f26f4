// Package diffusion implements the denoising-diffusion process for raw
// audio waveforms: the training-time forward corruption and the reverse
// sampling loop that turns a trained denoiser into a generator.
//
// # Architecture
//
// The package sits between a noise schedule and a denoiser capability:
//
//	schedule.Schedule ──┬─→ Diffuser.Corrupt  (training examples)
//	                    └─→ Sampler.Sample    (audio from noise)
//
// The denoiser itself is external — typically an ONNX session (see
// pkg/denoiser) — and only has to satisfy the small Denoise contract.
// The package never retries a denoiser failure: numeric failures (NaN
// propagation, bad conditioning) indicate a data or model defect that a
// retry cannot fix.
//
// # Concurrency
//
// Diffuser and Sampler perform single-threaded synchronous numeric work
// on batches they exclusively own. The schedule is read-only after
// construction. The only shared resource is the rand source, which is
// injected per instance; give concurrent users independent sources.
package diffusion

import (
	"context"
	"errors"
	"fmt"

	"github.com/haivivi/diffwave/pkg/tensor"
)

// ErrInvalidTimestep reports a timestep outside the schedule range.
// Seeing it means a logic defect, not a recoverable condition.
var ErrInvalidTimestep = errors.New("diffusion: timestep out of schedule range")

// Denoiser predicts the Gaussian noise component of a noisy audio batch.
//
// audio is [N, L]. steps holds one schedule timestep per example
// (len(steps) == N). spectrogram is [N, mels, frames] conditioning, or
// nil in unconditional mode. The prediction must keep the leading batch
// dimension: either [N, L] or [N, 1, L] (the singleton channel some
// model exports carry; the core squeezes it).
//
// Implementations must tolerate concurrent calls or document otherwise;
// the core itself issues calls sequentially.
type Denoiser interface {
	Denoise(ctx context.Context, audio *tensor.Tensor, steps []int, spectrogram *tensor.Tensor) (*tensor.Tensor, error)
}

// normalizePrediction squeezes the singleton channel dimension some
// denoiser exports produce, yielding the canonical [N, L] layout.
// Expected input rank is 2 ([N, L], returned as-is) or 3 with a middle
// dimension of 1 ([N, 1, L]).
func normalizePrediction(pred *tensor.Tensor) (*tensor.Tensor, error) {
	switch pred.Rank() {
	case 2:
		return pred, nil
	case 3:
		if pred.Dim(1) != 1 {
			return nil, fmt.Errorf("diffusion: prediction has %d channels, want 1", pred.Dim(1))
		}
		return pred.Reshape(pred.Dim(0), pred.Dim(2))
	default:
		return nil, fmt.Errorf("diffusion: prediction rank %d, want 2 or [N, 1, L]", pred.Rank())
	}
}
