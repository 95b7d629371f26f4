package mel

import (
	"math"
	"testing"
)

func sine(freq float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestNumFrames(t *testing.T) {
	e := New(Config{SampleRate: 16000, FFTSize: 512, WindowSize: 400, HopSamples: 160, NumMels: 40, LowFreq: 20, HighFreq: 7600})

	tests := []struct {
		samples int
		want    int
	}{
		{0, 0},
		{399, 0},
		{400, 1},
		{400 + 159, 1},
		{400 + 160, 2},
		{400 + 160*9, 10},
	}
	for _, tt := range tests {
		if got := e.NumFrames(tt.samples); got != tt.want {
			t.Errorf("NumFrames(%d) = %d, want %d", tt.samples, got, tt.want)
		}
	}
}

func TestSpectrogramShape(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)

	samples := sine(440, cfg.SampleRate, cfg.SampleRate) // 1 second
	spec := e.Spectrogram(samples)

	want := e.NumFrames(len(samples))
	if len(spec) != want {
		t.Fatalf("frames = %d, want %d", len(spec), want)
	}
	for i, frame := range spec {
		if len(frame) != cfg.NumMels {
			t.Fatalf("frame %d has %d bins, want %d", i, len(frame), cfg.NumMels)
		}
	}
}

func TestSpectrogramTooShort(t *testing.T) {
	e := New(DefaultConfig())
	if spec := e.Spectrogram(make([]float32, 100)); spec != nil {
		t.Errorf("expected nil for signal shorter than one window, got %d frames", len(spec))
	}
}

func TestSpectrogramValuesNormalized(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)
	spec := e.Spectrogram(sine(1000, cfg.SampleRate, cfg.SampleRate/2))
	for ti, frame := range spec {
		for m, v := range frame {
			if v < 0 || v > 1 {
				t.Fatalf("spec[%d][%d] = %f outside [0, 1]", ti, m, v)
			}
		}
	}
}

func TestSpectrogramToneEnergyLocalized(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)

	// A pure 1 kHz tone should put its peak energy in the mel bin whose
	// center is nearest 1 kHz, well below the top of the 8 kHz range.
	spec := e.Spectrogram(sine(1000, cfg.SampleRate, cfg.SampleRate))
	frame := spec[len(spec)/2]

	peak := 0
	for m, v := range frame {
		if v > frame[peak] {
			peak = m
		}
	}
	// With 80 HTK-mel bins over 20..8000 Hz, 1 kHz lands around bin 30;
	// allow generous slack, the point is it is neither DC nor the top.
	if peak < 15 || peak > 45 {
		t.Errorf("peak mel bin = %d, want near 30 for a 1 kHz tone", peak)
	}

	// Silence should compress to the floor.
	quiet := e.Spectrogram(make([]float32, cfg.SampleRate/4))
	for _, v := range quiet[0] {
		if v != 0 {
			t.Fatalf("silence produced non-floor value %f", v)
		}
	}
}

func TestHannWindowEndpoints(t *testing.T) {
	w := hannWindow(1024)
	if w[0] != 0 {
		t.Errorf("w[0] = %f, want 0", w[0])
	}
	if math.Abs(w[512]-1.0) > 1e-9 {
		t.Errorf("w[512] = %f, want 1", w[512])
	}
}

func TestMelConversionRoundTrip(t *testing.T) {
	for _, hz := range []float64{20, 440, 1000, 8000} {
		got := melToHz(hzToMel(hz))
		if math.Abs(got-hz) > 1e-6 {
			t.Errorf("melToHz(hzToMel(%g)) = %g", hz, got)
		}
	}
}

func TestMelFilterBankCoversRange(t *testing.T) {
	bank := melFilterBank(80, 1024, 22050, 20, 8000)
	if len(bank) != 80 {
		t.Fatalf("filters = %d, want 80", len(bank))
	}
	for m, f := range bank {
		if len(f) != 513 {
			t.Fatalf("filter %d has %d bins, want 513", m, len(f))
		}
		var sum float64
		for _, w := range f {
			sum += w
		}
		if sum == 0 {
			t.Errorf("filter %d is all zeros", m)
		}
	}
}
