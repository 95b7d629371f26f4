package denoiser

import (
	"context"
	"testing"

	"github.com/haivivi/diffwave/pkg/tensor"
)

// Validation runs before the runtime is touched, so these paths are
// testable without libonnxruntime installed.

func TestDenoiseRejectsBadAudioRank(t *testing.T) {
	s := &Session{inNames: []string{"audio", "diffusion_step"}}
	audio := tensor.New(8) // rank 1
	if _, err := s.Denoise(context.Background(), audio, []int{0}, nil); err == nil {
		t.Error("expected error for rank-1 audio")
	}
}

func TestDenoiseRejectsStepCountMismatch(t *testing.T) {
	s := &Session{inNames: []string{"audio", "diffusion_step"}}
	audio := tensor.New(2, 8)
	if _, err := s.Denoise(context.Background(), audio, []int{0}, nil); err == nil {
		t.Error("expected error when timestep count differs from batch size")
	}
}

func TestDenoiseConditioningMismatch(t *testing.T) {
	cond := &Session{inNames: []string{"audio", "diffusion_step", "spectrogram"}}
	uncond := &Session{inNames: []string{"audio", "diffusion_step"}}
	audio := tensor.New(1, 8)
	spec := tensor.New(1, 4, 2)

	if _, err := cond.Denoise(context.Background(), audio, []int{0}, nil); err == nil {
		t.Error("conditional session must require a spectrogram")
	}
	if _, err := uncond.Denoise(context.Background(), audio, []int{0}, spec); err == nil {
		t.Error("unconditional session must reject a spectrogram")
	}
}

func TestDenoiseHonorsCancelledContext(t *testing.T) {
	s := &Session{inNames: []string{"audio", "diffusion_step"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Denoise(ctx, tensor.New(1, 8), []int{0}, nil); err == nil {
		t.Error("expected context error")
	}
}

func TestConditional(t *testing.T) {
	if (&Session{inNames: []string{"a", "t"}}).Conditional() {
		t.Error("2-input session reported conditional")
	}
	if !(&Session{inNames: []string{"a", "t", "s"}}).Conditional() {
		t.Error("3-input session reported unconditional")
	}
}

func TestShapeOf(t *testing.T) {
	s := shapeOf(tensor.New(2, 80, 31))
	if len(s) != 3 || s[0] != 2 || s[1] != 80 || s[2] != 31 {
		t.Errorf("shape = %v", s)
	}
}
