package dataset

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/diffwave/pkg/collate"
	"github.com/haivivi/diffwave/pkg/wavio"
)

const testRate = 16000

func writeClip(t *testing.T, path string, n int) {
	t.Helper()
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.25 * math.Sin(2*math.Pi*220*float64(i)/testRate))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := wavio.Write(path, samples, testRate); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func makeCorpus(t *testing.T, lengths map[string]int) string {
	t.Helper()
	root := t.TempDir()
	for name, n := range lengths {
		writeClip(t, filepath.Join(root, name), n)
	}
	return root
}

func TestDiscoverFindsNestedWavs(t *testing.T) {
	root := makeCorpus(t, map[string]int{
		"a.wav":        4000,
		"sub/b.wav":    4000,
		"sub/deep/c.WAV": 4000,
	})
	// A non-audio file must be ignored.
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("found %d files, want 3: %v", len(files), files)
	}
}

func TestOpenEmptyDir(t *testing.T) {
	if _, err := Open(t.TempDir(), Config{SampleRate: testRate, Unconditional: true}); err == nil {
		t.Error("expected error for a directory with no WAV files")
	}
}

func TestRecordUnconditional(t *testing.T) {
	root := makeCorpus(t, map[string]int{"a.wav": 4000})
	ds, err := Open(root, Config{SampleRate: testRate, Unconditional: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec, err := ds.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(rec.Audio) != 4000 {
		t.Errorf("audio length = %d, want 4000", len(rec.Audio))
	}
	if rec.Spectrogram != nil {
		t.Error("unconditional record must not carry a spectrogram")
	}
}

func TestRecordConditional(t *testing.T) {
	root := makeCorpus(t, map[string]int{"a.wav": 4000})
	ds, err := Open(root, Config{SampleRate: testRate})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	frames := make([][]float32, 10)
	for i := range frames {
		frames[i] = make([]float32, 8)
	}
	feat := &Feature{SampleRate: testRate, HopSamples: 256, NumMels: 8, Frames: frames}
	if err := SaveFeature(ds.FeaturePath(0), feat); err != nil {
		t.Fatalf("SaveFeature: %v", err)
	}

	rec, err := ds.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(rec.Spectrogram) != 10 || len(rec.Spectrogram[0]) != 8 {
		t.Errorf("spectrogram shape = [%d][%d], want [10][8]", len(rec.Spectrogram), len(rec.Spectrogram[0]))
	}
}

func TestRecordConditionalMissingFeature(t *testing.T) {
	root := makeCorpus(t, map[string]int{"a.wav": 4000})
	ds, err := Open(root, Config{SampleRate: testRate})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := ds.Record(0); err == nil {
		t.Error("expected error for missing feature file")
	}
}

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) != 3 || out[0] != 0.1 {
		t.Errorf("identity resample changed the signal: %v", out)
	}
}

func TestLoaderEpoch(t *testing.T) {
	root := makeCorpus(t, map[string]int{
		"a.wav": 4000, "b.wav": 4000, "c.wav": 4000,
		"d.wav": 4000, "e.wav": 4000,
	})
	ds, err := Open(root, Config{SampleRate: testRate, Unconditional: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ccfg := collate.Config{Unconditional: true, AudioLen: 1024}
	l := NewLoader(ds, ccfg, WithBatchSize(2), WithWorkers(2), WithSeed(3))

	total := 0
	batches := 0
	for res := range l.Epoch(context.Background()) {
		if res.Err != nil {
			t.Fatalf("batch error: %v", res.Err)
		}
		batches++
		total += res.Batch.Len()
		if res.Batch.Audio.Dim(1) != 1024 {
			t.Fatalf("window length = %d, want 1024", res.Batch.Audio.Dim(1))
		}
	}
	if batches != 3 { // ceil(5 / 2)
		t.Errorf("batches = %d, want 3", batches)
	}
	if total != 5 {
		t.Errorf("total examples = %d, want 5", total)
	}
}

func TestLoaderSurfacesEmptyBatch(t *testing.T) {
	root := makeCorpus(t, map[string]int{"short.wav": 100})
	ds, err := Open(root, Config{SampleRate: testRate, Unconditional: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	l := NewLoader(ds, collate.Config{Unconditional: true, AudioLen: 1024}, WithBatchSize(1))
	var sawEmpty bool
	for res := range l.Epoch(context.Background()) {
		if errors.Is(res.Err, collate.ErrEmptyBatch) {
			sawEmpty = true
		}
	}
	if !sawEmpty {
		t.Error("expected an ErrEmptyBatch result for an all-short mini-batch")
	}
}

func TestLoaderCancellation(t *testing.T) {
	root := makeCorpus(t, map[string]int{"a.wav": 4000, "b.wav": 4000})
	ds, err := Open(root, Config{SampleRate: testRate, Unconditional: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	count := 0
	for range NewLoader(ds, collate.Config{Unconditional: true, AudioLen: 64}).Epoch(ctx) {
		count++
	}
	// The channel must close promptly; at most a batch already in
	// flight slips through.
	if count > 1 {
		t.Errorf("received %d batches after cancellation", count)
	}
}
