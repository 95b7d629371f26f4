package schedule

import (
	"errors"
	"testing"
)

func TestInferenceStepsIdentityRoundTrip(t *testing.T) {
	s, err := Linear(50, 1e-4, 0.05)
	if err != nil {
		t.Fatalf("Linear: %v", err)
	}
	steps, err := s.InferenceSteps(s.Betas())
	if err != nil {
		t.Fatalf("InferenceSteps: %v", err)
	}
	if len(steps) != s.Len() {
		t.Fatalf("len(steps) = %d, want %d", len(steps), s.Len())
	}
	for i, step := range steps {
		if step != i {
			t.Errorf("steps[%d] = %d, want %d (identity)", i, step, i)
		}
	}
}

func TestInferenceStepsFastSchedule(t *testing.T) {
	s, err := Linear(50, 1e-4, 0.05)
	if err != nil {
		t.Fatalf("Linear: %v", err)
	}
	// DiffWave fast sampling schedule.
	fast := []float64{0.0001, 0.001, 0.01, 0.05, 0.2, 0.5}
	steps, err := s.InferenceSteps(fast)
	if err != nil {
		t.Fatalf("InferenceSteps: %v", err)
	}
	if len(steps) != len(fast) {
		t.Fatalf("len(steps) = %d, want %d", len(steps), len(fast))
	}
	for i := range steps {
		if steps[i] < 0 || steps[i] >= s.Len() {
			t.Errorf("steps[%d] = %d out of range [0, %d)", i, steps[i], s.Len())
		}
		if i > 0 && steps[i] <= steps[i-1] {
			t.Errorf("steps not strictly increasing: %v", steps)
		}
	}
}

func TestInferenceStepsNearestSnapping(t *testing.T) {
	s, err := New([]float64{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// alphaCum = [0.9, 0.72, 0.504]. A single step with beta 0.25 has
	// alphaCum 0.75, nearest to 0.72 → training step 1.
	steps, err := s.InferenceSteps([]float64{0.25})
	if err != nil {
		t.Fatalf("InferenceSteps: %v", err)
	}
	if len(steps) != 1 || steps[0] != 1 {
		t.Errorf("steps = %v, want [1]", steps)
	}
}

func TestInferenceStepsRejectsDuplicates(t *testing.T) {
	s, err := New([]float64{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Two nearly identical levels collapse onto the same training step.
	_, err = s.InferenceSteps([]float64{0.1, 0.0001})
	if !errors.Is(err, ErrInvalidInference) {
		t.Errorf("error = %v, want ErrInvalidInference", err)
	}
}

func TestInferenceStepsRejectsMalformed(t *testing.T) {
	s, _ := Linear(10, 0.01, 0.05)
	if _, err := s.InferenceSteps(nil); !errors.Is(err, ErrInvalidInference) {
		t.Errorf("empty: error = %v, want ErrInvalidInference", err)
	}
	if _, err := s.InferenceSteps([]float64{0.5, 2.0}); !errors.Is(err, ErrInvalidInference) {
		t.Errorf("out of range: error = %v, want ErrInvalidInference", err)
	}
	long := make([]float64, 11)
	for i := range long {
		long[i] = 0.01
	}
	if _, err := s.InferenceSteps(long); !errors.Is(err, ErrInvalidInference) {
		t.Errorf("too long: error = %v, want ErrInvalidInference", err)
	}
}

func TestIdentitySteps(t *testing.T) {
	s, _ := Linear(4, 0.01, 0.05)
	steps := s.IdentitySteps()
	if len(steps) != 4 {
		t.Fatalf("len = %d, want 4", len(steps))
	}
	for i, step := range steps {
		if step != i {
			t.Errorf("steps[%d] = %d", i, step)
		}
	}
}
