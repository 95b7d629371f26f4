// Package schedule defines the diffusion noise schedule.
//
// A Schedule is an ordered sequence of per-step corruption variances
// ("betas"), each in (0, 1). From it the package derives the quantities
// the diffusion process needs:
//
//	alpha[i]    = 1 - beta[i]
//	alphaCum[i] = alpha[0] * alpha[1] * ... * alpha[i]
//
// alphaCum is the cumulative signal-retention fraction after corrupting
// through step i; it is strictly decreasing and stays in (0, 1) for any
// valid schedule. All derived values are computed once in float64 at
// construction so that long schedules do not underflow and lookups are
// plain slice reads. A Schedule is immutable after construction and safe
// for concurrent use.
package schedule

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSchedule reports a malformed beta sequence: empty, or a
// value outside the open interval (0, 1).
var ErrInvalidSchedule = errors.New("schedule: invalid beta sequence")

// Schedule holds a validated noise schedule and its derived tables.
type Schedule struct {
	betas    []float64
	alphas   []float64
	alphaCum []float64
}

// New builds a Schedule from beta values. Each beta must lie strictly
// inside (0, 1); a degenerate step (beta == 0 adds no noise, beta == 1
// destroys the signal) is rejected.
func New(betas []float64) (*Schedule, error) {
	if len(betas) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSchedule)
	}
	s := &Schedule{
		betas:    make([]float64, len(betas)),
		alphas:   make([]float64, len(betas)),
		alphaCum: make([]float64, len(betas)),
	}
	prod := 1.0
	for i, b := range betas {
		if math.IsNaN(b) || b <= 0 || b >= 1 {
			return nil, fmt.Errorf("%w: beta[%d] = %g not in (0, 1)", ErrInvalidSchedule, i, b)
		}
		s.betas[i] = b
		s.alphas[i] = 1 - b
		prod *= 1 - b
		s.alphaCum[i] = prod
	}
	return s, nil
}

// Linear builds an n-step schedule with betas spaced linearly from
// start to end inclusive. This is the DiffWave training schedule shape
// (e.g. Linear(50, 1e-4, 0.05)).
func Linear(n int, start, end float64) (*Schedule, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d steps", ErrInvalidSchedule, n)
	}
	betas := make([]float64, n)
	if n == 1 {
		betas[0] = start
	} else {
		for i := range betas {
			betas[i] = start + float64(i)/float64(n-1)*(end-start)
		}
	}
	return New(betas)
}

// ScaledLinear builds an n-step schedule where sqrt(beta) is spaced
// linearly, the shape used by latent-diffusion models.
func ScaledLinear(n int, start, end float64) (*Schedule, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d steps", ErrInvalidSchedule, n)
	}
	betas := make([]float64, n)
	sqrtStart := math.Sqrt(start)
	sqrtEnd := math.Sqrt(end)
	if n == 1 {
		betas[0] = start
	} else {
		for i := range betas {
			b := sqrtStart + float64(i)/float64(n-1)*(sqrtEnd-sqrtStart)
			betas[i] = b * b
		}
	}
	return New(betas)
}

// Len returns the number of steps.
func (s *Schedule) Len() int { return len(s.betas) }

// Beta returns the corruption variance at step i.
func (s *Schedule) Beta(i int) float64 { return s.betas[i] }

// Alpha returns 1 - beta at step i.
func (s *Schedule) Alpha(i int) float64 { return s.alphas[i] }

// AlphaCum returns the cumulative product of alphas through step i.
func (s *Schedule) AlphaCum(i int) float64 { return s.alphaCum[i] }

// Betas returns a copy of the beta sequence.
func (s *Schedule) Betas() []float64 {
	out := make([]float64, len(s.betas))
	copy(out, s.betas)
	return out
}

// NoiseLevels returns a copy of the alphaCum table, indexed by timestep.
// Training code keeps this as a lookup table instead of recomputing the
// cumulative product per batch.
func (s *Schedule) NoiseLevels() []float64 {
	out := make([]float64, len(s.alphaCum))
	copy(out, s.alphaCum)
	return out
}
