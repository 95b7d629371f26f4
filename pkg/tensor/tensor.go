// Package tensor provides a minimal dense float32 tensor for the
// diffusion core.
//
// A Tensor is a flat float32 buffer plus a shape. There is no stride
// support and no broadcasting: the diffusion math only needs contiguous
// batches, element-wise updates and Gaussian fills, and keeping the type
// this small makes it trivial to hand the buffer to an inference runtime
// without copying.
package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Tensor is an n-dimensional float32 array stored contiguously in
// row-major order.
type Tensor struct {
	Data  []float32
	Shape []int
}

// New allocates a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		size *= s
	}
	return &Tensor{Data: make([]float32, size), Shape: shape}
}

// From wraps existing data in a tensor with the given shape.
// It panics if the data length does not match the shape.
func From(data []float32, shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		size *= s
	}
	if len(data) != size {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	return &Tensor{Data: data, Shape: shape}
}

// Randn allocates a tensor with the given shape filled with standard
// Gaussian noise drawn from rng via the Box-Muller transform.
//
// The rand source is injected rather than global so that callers can
// make sampling reproducible and give each data-loading worker an
// independent stream.
func Randn(rng *rand.Rand, shape ...int) *Tensor {
	t := New(shape...)
	n := len(t.Data)
	for i := 0; i+1 < n; i += 2 {
		z0, z1 := boxMuller(rng)
		t.Data[i] = z0
		t.Data[i+1] = z1
	}
	if n%2 == 1 {
		z0, _ := boxMuller(rng)
		t.Data[n-1] = z0
	}
	return t
}

func boxMuller(rng *rand.Rand) (float32, float32) {
	u1 := rng.Float64()
	for u1 == 0 {
		u1 = rng.Float64()
	}
	u2 := rng.Float64()
	r := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	return float32(r * math.Cos(theta)), float32(r * math.Sin(theta))
}

// Numel returns the total number of elements.
func (t *Tensor) Numel() int {
	n := 1
	for _, s := range t.Shape {
		n *= s
	}
	return n
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.Shape) }

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int { return t.Shape[i] }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	d := make([]float32, len(t.Data))
	copy(d, t.Data)
	return &Tensor{Data: d, Shape: append([]int{}, t.Shape...)}
}

// Clamp limits every element to the range [lo, hi] in place and
// returns the receiver.
func (t *Tensor) Clamp(lo, hi float32) *Tensor {
	for i, v := range t.Data {
		if v < lo {
			t.Data[i] = lo
		} else if v > hi {
			t.Data[i] = hi
		}
	}
	return t
}

// Reshape reinterprets the tensor with a new shape of the same element
// count. The data buffer is shared, not copied.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	size := 1
	for _, s := range shape {
		size *= s
	}
	if size != len(t.Data) {
		return nil, fmt.Errorf("tensor: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape, len(t.Data), shape, size)
	}
	return &Tensor{Data: t.Data, Shape: shape}, nil
}

// Row returns the i-th slice along the first dimension as a sub-slice
// of the underlying buffer. For a [N, L] tensor this is example i.
func (t *Tensor) Row(i int) []float32 {
	n := t.Numel() / t.Shape[0]
	return t.Data[i*n : (i+1)*n]
}
