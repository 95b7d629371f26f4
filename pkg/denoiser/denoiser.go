// Package denoiser runs an exported diffusion network through ONNX
// Runtime.
//
// # Model contract
//
// The model takes the noisy waveform [batch, samples] as float32, the
// per-example timestep [batch] as int64, and in conditional mode a
// spectrogram [batch, mels, frames] as float32. It returns the
// predicted noise, either [batch, samples] or [batch, 1, samples].
// Input and output names are read from the model file, so exports from
// different toolchains work as long as the input order matches.
//
// # Runtime library
//
// ONNX Runtime ships as a shared library. Point the session at it with
// WithLibraryPath or the ORT_LIB environment variable; without either,
// common install locations are probed.
package denoiser

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/haivivi/diffwave/pkg/tensor"
)

var initOnce sync.Once

var libraryCandidates = []string{
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.dylib",
	"/opt/homebrew/lib/libonnxruntime.dylib",
}

func findLibrary() string {
	if p := os.Getenv("ORT_LIB"); p != "" {
		return p
	}
	for _, c := range libraryCandidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Session is a loaded diffusion network. It implements
// diffusion.Denoiser and is safe for sequential use; create one Session
// per goroutine for concurrent sampling.
type Session struct {
	session  *ort.DynamicAdvancedSession
	inNames  []string
	outNames []string
}

// Option configures session creation.
type Option func(*options)

type options struct {
	libraryPath string
	threads     int
}

// WithLibraryPath sets the ONNX Runtime shared library location.
func WithLibraryPath(path string) Option {
	return func(o *options) { o.libraryPath = path }
}

// WithThreads sets the intra-op thread count (default 4).
func WithThreads(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.threads = n
		}
	}
}

// Open loads the model at path and prepares an inference session.
func Open(path string, opts ...Option) (*Session, error) {
	o := options{threads: 4}
	for _, opt := range opts {
		opt(&o)
	}
	if o.libraryPath == "" {
		o.libraryPath = findLibrary()
	}
	if o.libraryPath == "" {
		return nil, fmt.Errorf("denoiser: onnxruntime library not found, set ORT_LIB or use WithLibraryPath")
	}

	var initErr error
	initOnce.Do(func() {
		ort.SetSharedLibraryPath(o.libraryPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("denoiser: runtime init: %w", initErr)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("denoiser: inspect %s: %w", path, err)
	}
	if len(inputs) != 2 && len(inputs) != 3 {
		return nil, fmt.Errorf("denoiser: model %s has %d inputs, want 2 (unconditional) or 3 (conditional)", path, len(inputs))
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("denoiser: model %s has no outputs", path)
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("denoiser: session options: %w", err)
	}
	defer sessOpts.Destroy()
	sessOpts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
	sessOpts.SetIntraOpNumThreads(o.threads)

	inNames := make([]string, len(inputs))
	for i, in := range inputs {
		inNames[i] = in.Name
	}
	outNames := make([]string, len(outputs))
	for i, out := range outputs {
		outNames[i] = out.Name
	}

	sess, err := ort.NewDynamicAdvancedSession(path, inNames, outNames, sessOpts)
	if err != nil {
		return nil, fmt.Errorf("denoiser: load %s: %w", path, err)
	}
	return &Session{session: sess, inNames: inNames, outNames: outNames}, nil
}

// Conditional reports whether the model expects a spectrogram input.
func (s *Session) Conditional() bool { return len(s.inNames) == 3 }

// Denoise predicts the noise component of audio at the given timesteps.
// Steps must have one entry per batch row. Spectrogram is required for
// conditional models and must be nil for unconditional ones.
func (s *Session) Denoise(ctx context.Context, audio *tensor.Tensor, steps []int, spectrogram *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if audio.Rank() != 2 {
		return nil, fmt.Errorf("denoiser: audio must be [batch, samples], got rank %d", audio.Rank())
	}
	batch := audio.Dim(0)
	if len(steps) != batch {
		return nil, fmt.Errorf("denoiser: %d timesteps for batch of %d", len(steps), batch)
	}
	if s.Conditional() != (spectrogram != nil) {
		if s.Conditional() {
			return nil, fmt.Errorf("denoiser: conditional model needs a spectrogram")
		}
		return nil, fmt.Errorf("denoiser: unconditional model given a spectrogram")
	}

	audioTensor, err := ort.NewTensor(shapeOf(audio), audio.Data)
	if err != nil {
		return nil, fmt.Errorf("denoiser: audio tensor: %w", err)
	}
	defer audioTensor.Destroy()

	ts := make([]int64, batch)
	for i, t := range steps {
		ts[i] = int64(t)
	}
	stepTensor, err := ort.NewTensor(ort.NewShape(int64(batch)), ts)
	if err != nil {
		return nil, fmt.Errorf("denoiser: timestep tensor: %w", err)
	}
	defer stepTensor.Destroy()

	inputs := []ort.Value{audioTensor, stepTensor}
	if spectrogram != nil {
		specTensor, err := ort.NewTensor(shapeOf(spectrogram), spectrogram.Data)
		if err != nil {
			return nil, fmt.Errorf("denoiser: spectrogram tensor: %w", err)
		}
		defer specTensor.Destroy()
		inputs = append(inputs, specTensor)
	}

	outputs := make([]ort.Value, len(s.outNames))
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("denoiser: run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("denoiser: unsupported output tensor type %T", outputs[0])
	}
	shape := out.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())
	return tensor.From(data, dims...), nil
}

// Close releases the inference session.
func (s *Session) Close() {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
}

func shapeOf(t *tensor.Tensor) ort.Shape {
	dims := make([]int64, t.Rank())
	for i := range dims {
		dims[i] = int64(t.Dim(i))
	}
	return ort.NewShape(dims...)
}
