package dataset

import (
	"context"
	"math/rand"
	"sync"

	"github.com/haivivi/diffwave/pkg/collate"
)

// Result is one unit of loader output: a collated batch or the error
// that prevented it. collate.ErrEmptyBatch appears here when every clip
// in a mini-batch was too short; the training loop decides whether to
// skip or abort.
type Result struct {
	Batch *collate.Batch
	Err   error
}

// Loader builds training batches from a Dataset using a pool of
// workers. Each worker owns an independently seeded rand source, so
// window offsets are never correlated across workers and a fixed seed
// reproduces the same epoch.
type Loader struct {
	ds        *Dataset
	ccfg      collate.Config
	batchSize int
	workers   int
	seed      int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithWorkers sets the number of concurrent batch builders (default 1).
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithBatchSize sets the number of records per batch (default 16).
func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithSeed fixes the shuffle and window-offset randomness.
func WithSeed(seed int64) LoaderOption {
	return func(l *Loader) { l.seed = seed }
}

// NewLoader creates a Loader over ds with the given collation config.
func NewLoader(ds *Dataset, ccfg collate.Config, opts ...LoaderOption) *Loader {
	l := &Loader{ds: ds, ccfg: ccfg, batchSize: 16, workers: 1, seed: 1}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Epoch streams one shuffled pass over the dataset. The returned
// channel closes when the pass completes or ctx is cancelled. Batches
// arrive in completion order, not index order, when workers > 1.
func (l *Loader) Epoch(ctx context.Context) <-chan Result {
	// Shuffle with a rand source separate from the workers' so the
	// permutation does not depend on the worker count.
	perm := l.ds.Shuffle(rand.New(rand.NewSource(l.seed)))

	chunks := make(chan []int)
	out := make(chan Result)

	go func() {
		defer close(chunks)
		for start := 0; start < len(perm); start += l.batchSize {
			end := start + l.batchSize
			if end > len(perm) {
				end = len(perm)
			}
			select {
			case chunks <- perm[start:end]:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < l.workers; w++ {
		wg.Add(1)
		// Worker seeds are derived from the loader seed; each worker
		// stream is independent of the others.
		c := collate.New(l.ccfg, rand.New(rand.NewSource(l.seed+int64(w)+1)))
		go func(c *collate.Collator) {
			defer wg.Done()
			for chunk := range chunks {
				res := l.build(c, chunk)
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (l *Loader) build(c *collate.Collator, indices []int) Result {
	records := make([]collate.Record, 0, len(indices))
	for _, i := range indices {
		rec, err := l.ds.Record(i)
		if err != nil {
			return Result{Err: err}
		}
		records = append(records, rec)
	}
	batch, err := c.Collate(records)
	return Result{Batch: batch, Err: err}
}
