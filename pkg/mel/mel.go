// Package mel computes log mel spectrograms used as conditioning
// features for the waveform denoiser.
//
// The frame geometry matches the collation contract: one spectrogram
// frame corresponds to HopSamples audio samples, so cropped
// (audio, spectrogram) windows stay time-aligned. Defaults follow the
// 22.05 kHz vocoder convention (1024-point FFT, hop 256, 80 mel bins).
//
// Output values are log-compressed and normalized into [0, 1]:
//
//	S = clamp((20*log10(max(mel, 1e-5)) - 20 + 100) / 100, 0, 1)
package mel

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Config controls mel spectrogram extraction.
type Config struct {
	SampleRate int     // audio sample rate in Hz (default 22050)
	FFTSize    int     // FFT size (default 1024)
	WindowSize int     // analysis window in samples (default 1024)
	HopSamples int     // hop between frames in samples (default 256)
	NumMels    int     // number of mel bins (default 80)
	LowFreq    float64 // lowest mel frequency in Hz (default 20)
	HighFreq   float64 // highest mel frequency in Hz (default 8000)
}

// DefaultConfig returns the standard vocoder front-end configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		FFTSize:    1024,
		WindowSize: 1024,
		HopSamples: 256,
		NumMels:    80,
		LowFreq:    20,
		HighFreq:   8000,
	}
}

// Extractor computes log mel spectrograms. It precomputes the analysis
// window, the mel filterbank and the FFT plan once; Spectrogram may then
// be called repeatedly. An Extractor is not safe for concurrent use
// because the FFT plan carries scratch state; create one per goroutine.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
	fft     *fourier.FFT
}

// New creates an Extractor with the given config.
func New(cfg Config) *Extractor {
	return &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
		fft:     fourier.NewFFT(cfg.FFTSize),
	}
}

// NumFrames returns how many frames Spectrogram produces for n samples.
func (e *Extractor) NumFrames(n int) int {
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSamples + 1
}

// Spectrogram computes a time-major [frames][NumMels] log mel
// spectrogram from mono samples in [-1, 1]. It returns nil when the
// signal is shorter than one analysis window.
func (e *Extractor) Spectrogram(samples []float32) [][]float32 {
	cfg := e.cfg
	numFrames := e.NumFrames(len(samples))
	if numFrames == 0 {
		return nil
	}
	halfFFT := cfg.FFTSize/2 + 1

	out := make([][]float32, numFrames)
	frame := make([]float64, cfg.FFTSize)
	coeff := make([]complex128, halfFFT)
	power := make([]float64, halfFFT)

	for t := 0; t < numFrames; t++ {
		start := t * cfg.HopSamples

		for i := 0; i < cfg.WindowSize; i++ {
			frame[i] = float64(samples[start+i]) * e.window[i]
		}
		for i := cfg.WindowSize; i < cfg.FFTSize; i++ {
			frame[i] = 0
		}

		coeff = e.fft.Coefficients(coeff, frame)
		for i, c := range coeff {
			re, im := real(c), imag(c)
			power[i] = re*re + im*im
		}

		bins := make([]float32, cfg.NumMels)
		for m := 0; m < cfg.NumMels; m++ {
			var energy float64
			for k, w := range e.melBank[m] {
				energy += w * power[k]
			}
			bins[m] = compress(energy)
		}
		out[t] = bins
	}
	return out
}

// compress applies the dB-scale log compression and squashes the result
// into [0, 1].
func compress(energy float64) float32 {
	if energy < 1e-5 {
		energy = 1e-5
	}
	db := 20*math.Log10(energy) - 20
	v := (db + 100) / 100
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	return float32(v)
}
