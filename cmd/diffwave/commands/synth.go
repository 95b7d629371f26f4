package commands

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haivivi/diffwave/pkg/dataset"
	"github.com/haivivi/diffwave/pkg/denoiser"
	"github.com/haivivi/diffwave/pkg/diffusion"
	"github.com/haivivi/diffwave/pkg/tensor"
	"github.com/haivivi/diffwave/pkg/wavio"
)

var (
	synthModel    string
	synthSpec     string
	synthOutput   string
	synthSeed     int64
	synthLength   int
	synthFull     bool
	synthOrtLib   string
	synthThreads  int
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate a waveform with a trained model",
	Long: `Run reverse diffusion with an exported ONNX model.

With --spectrogram the model is conditioned on a precomputed feature
file (see 'diffwave features') and the output length follows the
spectrogram. Without it the model runs unconditionally and --length
sets the output in samples.

Sampling uses the fast inference schedule from the config unless
--full-schedule is given.

Examples:
  diffwave synth --model model.onnx --spectrogram clip.wav.mel -o out.wav
  diffwave synth --model model.onnx --length 22050 --seed 7`,
	RunE: runSynth,
}

func runSynth(cmd *cobra.Command, args []string) error {
	if synthModel == "" {
		return fmt.Errorf("--model is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sched, err := cfg.BuildSchedule()
	if err != nil {
		return err
	}

	var opts []denoiser.Option
	if synthOrtLib != "" {
		opts = append(opts, denoiser.WithLibraryPath(synthOrtLib))
	}
	if synthThreads > 0 {
		opts = append(opts, denoiser.WithThreads(synthThreads))
	}
	sess, err := denoiser.Open(synthModel, opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	// The feature file decides conditioning, but the model must agree.
	var spec *tensor.Tensor
	if synthSpec != "" {
		if !sess.Conditional() {
			return fmt.Errorf("model %s is unconditional but --spectrogram was given", synthModel)
		}
		feat, err := dataset.LoadFeature(synthSpec)
		if err != nil {
			return err
		}
		spec = featureTensor(feat)
		slog.Debug("loaded spectrogram", "path", synthSpec,
			"frames", len(feat.Frames), "mels", feat.NumMels)
	} else if sess.Conditional() {
		return fmt.Errorf("model %s is conditional, use --spectrogram", synthModel)
	}

	inference := cfg.InferenceNoise
	if synthFull {
		inference = nil
	}
	sampler, err := diffusion.NewSampler(sched, sess, diffusion.SamplerConfig{
		Unconditional:  spec == nil,
		AudioLen:       synthLength,
		HopSamples:     cfg.Audio.HopSamples,
		InferenceNoise: inference,
	})
	if err != nil {
		return err
	}
	slog.Info("sampling", "steps", len(sampler.Steps()), "seed", synthSeed)

	start := time.Now()
	audio, err := sampler.Sample(cmd.Context(), spec, rand.New(rand.NewSource(synthSeed)))
	if err != nil {
		return err
	}
	slog.Info("sampled", "samples", audio.Dim(1), "elapsed", time.Since(start))

	out := synthOutput
	if out == "" {
		out = uuid.NewString() + ".wav"
	}
	if err := wavio.Write(out, audio.Row(0), cfg.Audio.SampleRate); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// featureTensor packs time-major frames into the [mels, frames] layout
// the model consumes.
func featureTensor(f *dataset.Feature) *tensor.Tensor {
	frames := len(f.Frames)
	mels := len(f.Frames[0])
	t := tensor.New(mels, frames)
	for i, frame := range f.Frames {
		for m, v := range frame {
			t.Data[m*frames+i] = v
		}
	}
	return t
}

func init() {
	synthCmd.Flags().StringVar(&synthModel, "model", "", "path to the exported ONNX model")
	synthCmd.Flags().StringVar(&synthSpec, "spectrogram", "", "feature file for conditional synthesis")
	synthCmd.Flags().StringVarP(&synthOutput, "output", "o", "", "output WAV path (default: <uuid>.wav)")
	synthCmd.Flags().Int64Var(&synthSeed, "seed", time.Now().UnixNano(), "random seed")
	synthCmd.Flags().IntVar(&synthLength, "length", 22050, "output length in samples (unconditional)")
	synthCmd.Flags().BoolVar(&synthFull, "full-schedule", false, "sample over the full training schedule")
	synthCmd.Flags().StringVar(&synthOrtLib, "ort-lib", "", "path to the onnxruntime shared library")
	synthCmd.Flags().IntVar(&synthThreads, "threads", 0, "intra-op thread count")

	rootCmd.AddCommand(synthCmd)
}
