package commands

import (
	"github.com/haivivi/diffwave/pkg/dataset"
	"github.com/haivivi/diffwave/pkg/wavio"
)

// wavRead loads a WAV file as mono float32 at the target rate.
func wavRead(path string, targetRate int) ([]float32, int, error) {
	samples, rate, err := wavio.Read(path)
	if err != nil {
		return nil, 0, err
	}
	if rate != targetRate {
		samples, err = dataset.Resample(samples, rate, targetRate)
		if err != nil {
			return nil, 0, err
		}
		rate = targetRate
	}
	return samples, rate, nil
}
