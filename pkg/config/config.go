// Package config holds the YAML configuration shared by training and
// synthesis. A single file describes the audio front-end, the noise
// schedule, and the loader, so feature extraction and sampling always
// agree on geometry.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/diffwave/pkg/mel"
	"github.com/haivivi/diffwave/pkg/schedule"
)

// ScheduleConfig describes the training noise schedule. Either Betas is
// given explicitly, or a linear ramp is built from Steps, BetaStart and
// BetaEnd.
type ScheduleConfig struct {
	Steps     int       `yaml:"steps"`
	BetaStart float64   `yaml:"beta_start"`
	BetaEnd   float64   `yaml:"beta_end"`
	Betas     []float64 `yaml:"betas,omitempty"`
}

// AudioConfig describes the spectrogram front-end.
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	FFTSize    int     `yaml:"fft_size"`
	WindowSize int     `yaml:"window_size"`
	HopSamples int     `yaml:"hop_samples"`
	NumMels    int     `yaml:"num_mels"`
	LowFreq    float64 `yaml:"low_freq"`
	HighFreq   float64 `yaml:"high_freq"`
}

// LoaderConfig describes batch construction during training.
type LoaderConfig struct {
	BatchSize int   `yaml:"batch_size"`
	Workers   int   `yaml:"workers"`
	Seed      int64 `yaml:"seed"`
}

// Config is the full configuration surface.
type Config struct {
	Unconditional bool `yaml:"unconditional"`

	// AudioLen is the training window in samples (unconditional mode)
	// and the default synthesis length.
	AudioLen int `yaml:"audio_len"`

	// CropMelFrames is the training window in spectrogram frames
	// (conditional mode).
	CropMelFrames int `yaml:"crop_mel_frames"`

	Audio    AudioConfig    `yaml:"audio"`
	Schedule ScheduleConfig `yaml:"noise_schedule"`

	// InferenceNoise, when set, is the accelerated sampling schedule.
	// Empty means sample over the full training schedule.
	InferenceNoise []float64 `yaml:"inference_noise,omitempty"`

	Loss   string       `yaml:"loss"`
	Loader LoaderConfig `yaml:"loader"`
}

// Default returns the stock 22.05 kHz configuration: 80 mel bins at hop
// 256, a 50-step linear schedule and the 6-step fast sampling schedule.
func Default() *Config {
	return &Config{
		AudioLen:      22050,
		CropMelFrames: 62,
		Audio: AudioConfig{
			SampleRate: 22050,
			FFTSize:    1024,
			WindowSize: 1024,
			HopSamples: 256,
			NumMels:    80,
			LowFreq:    20,
			HighFreq:   8000,
		},
		Schedule: ScheduleConfig{
			Steps:     50,
			BetaStart: 1e-4,
			BetaEnd:   0.05,
		},
		InferenceNoise: []float64{0.0001, 0.001, 0.01, 0.05, 0.2, 0.5},
		Loss:           "mse",
		Loader: LoaderConfig{
			BatchSize: 16,
			Workers:   4,
			Seed:      1,
		},
	}
}

// Load reads path and merges it over the defaults, so a config file
// only needs to state what it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the invariants the pipeline depends on.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.HopSamples <= 0 {
		return fmt.Errorf("hop_samples must be positive, got %d", c.Audio.HopSamples)
	}
	if c.Audio.NumMels <= 0 {
		return fmt.Errorf("num_mels must be positive, got %d", c.Audio.NumMels)
	}
	if c.Unconditional {
		if c.AudioLen <= 0 {
			return fmt.Errorf("audio_len must be positive in unconditional mode, got %d", c.AudioLen)
		}
	} else if c.CropMelFrames <= 0 {
		return fmt.Errorf("crop_mel_frames must be positive in conditional mode, got %d", c.CropMelFrames)
	}
	if len(c.Schedule.Betas) == 0 && c.Schedule.Steps <= 0 {
		return fmt.Errorf("noise_schedule needs steps or explicit betas")
	}
	if _, err := c.BuildSchedule(); err != nil {
		return err
	}
	return nil
}

// BuildSchedule materializes the training noise schedule.
func (c *Config) BuildSchedule() (*schedule.Schedule, error) {
	if len(c.Schedule.Betas) > 0 {
		return schedule.New(c.Schedule.Betas)
	}
	return schedule.Linear(c.Schedule.Steps, c.Schedule.BetaStart, c.Schedule.BetaEnd)
}

// MelConfig materializes the spectrogram front-end configuration.
func (c *Config) MelConfig() mel.Config {
	return mel.Config{
		SampleRate: c.Audio.SampleRate,
		FFTSize:    c.Audio.FFTSize,
		WindowSize: c.Audio.WindowSize,
		HopSamples: c.Audio.HopSamples,
		NumMels:    c.Audio.NumMels,
		LowFreq:    c.Audio.LowFreq,
		HighFreq:   c.Audio.HighFreq,
	}
}
