package schedule

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInference reports an inference noise sequence that cannot be
// mapped onto the training schedule.
var ErrInvalidInference = errors.New("schedule: invalid inference noise sequence")

// InferenceSteps maps a (typically shorter) inference beta sequence onto
// indices of the training schedule, so the reverse sampler can run fewer
// iterations while conditioning the denoiser on timesteps it was trained
// with.
//
// The inference sequence is validated and expanded into its own alphaCum
// noise levels, and each level is snapped to the training step whose
// alphaCum is numerically nearest; an exact match maps exactly, and ties
// resolve to the earlier step. Feeding the schedule's own betas therefore
// returns the identity sequence [0, 1, ..., Len()-1].
//
// Two inference levels snapping to the same training step would make the
// sampler repeat a step for no benefit, so duplicates are rejected.
func (s *Schedule) InferenceSteps(betas []float64) ([]int, error) {
	inf, err := New(betas)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInference, err)
	}
	if inf.Len() > s.Len() {
		return nil, fmt.Errorf("%w: %d inference steps exceed %d training steps",
			ErrInvalidInference, inf.Len(), s.Len())
	}

	steps := make([]int, inf.Len())
	for i, level := range inf.alphaCum {
		steps[i] = s.nearestStep(level)
		if i > 0 && steps[i] == steps[i-1] {
			return nil, fmt.Errorf("%w: levels %g and %g both map to training step %d",
				ErrInvalidInference, inf.alphaCum[i-1], level, steps[i])
		}
	}
	return steps, nil
}

// IdentitySteps returns [0, 1, ..., Len()-1], the step sequence used
// when no inference re-indexing is requested.
func (s *Schedule) IdentitySteps() []int {
	steps := make([]int, s.Len())
	for i := range steps {
		steps[i] = i
	}
	return steps
}

// nearestStep returns the training step whose alphaCum is closest to
// level. alphaCum is strictly decreasing, so a linear scan terminates as
// soon as the distance starts growing; schedules are short enough that
// this never matters.
func (s *Schedule) nearestStep(level float64) int {
	best := 0
	bestDist := math.Abs(s.alphaCum[0] - level)
	for i := 1; i < len(s.alphaCum); i++ {
		d := math.Abs(s.alphaCum[i] - level)
		if d < bestDist {
			best = i
			bestDist = d
		} else if s.alphaCum[i] < level {
			break
		}
	}
	return best
}
