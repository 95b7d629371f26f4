// Package loss provides the training objectives comparing true noise to
// the denoiser's prediction, behind an explicit name registry.
//
// Configuration files refer to losses by name ("mse", "l1"). Names are
// resolved once at startup via Get, so an unknown name fails before any
// training work happens rather than at an arbitrary call site.
package loss

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/haivivi/diffwave/pkg/tensor"
)

// Func computes a scalar loss between the true noise and the denoiser's
// prediction. Both tensors must have identical shapes.
type Func func(target, pred *tensor.Tensor) (float64, error)

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

func init() {
	Register("mse", MSE)
	Register("l1", L1)
}

// Register adds a loss under the given name, replacing any previous
// registration. Call it from an init function or before training starts.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Get resolves a loss by name.
func Get(name string) (Func, error) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("loss: unknown loss %q (registered: %v)", name, names())
	}
	return fn, nil
}

func names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MSE is the mean squared error over all elements.
func MSE(target, pred *tensor.Tensor) (float64, error) {
	if err := checkShapes(target, pred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range target.Data {
		d := float64(target.Data[i]) - float64(pred.Data[i])
		sum += d * d
	}
	return sum / float64(len(target.Data)), nil
}

// L1 is the mean absolute error over all elements.
func L1(target, pred *tensor.Tensor) (float64, error) {
	if err := checkShapes(target, pred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range target.Data {
		sum += math.Abs(float64(target.Data[i]) - float64(pred.Data[i]))
	}
	return sum / float64(len(target.Data)), nil
}

func checkShapes(target, pred *tensor.Tensor) error {
	if len(target.Shape) != len(pred.Shape) {
		return fmt.Errorf("loss: shape mismatch %v vs %v", target.Shape, pred.Shape)
	}
	for i := range target.Shape {
		if target.Shape[i] != pred.Shape[i] {
			return fmt.Errorf("loss: shape mismatch %v vs %v", target.Shape, pred.Shape)
		}
	}
	return nil
}
