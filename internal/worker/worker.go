// Package worker implements the per-exam unit of work: sample a seed, call
// the generator, filter duplicates, hydrate survivors, and bulk-insert them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/gyapak/content-agent/internal/dedupe"
	"github.com/gyapak/content-agent/internal/generator"
	"github.com/gyapak/content-agent/internal/hydrate"
	"github.com/gyapak/content-agent/internal/storage"
	"github.com/gyapak/content-agent/internal/types"
)

// ErrEmptyGroup indicates an exam has no stored questions to seed generation
// from. It never crosses the Process boundary: the worker logs it and
// reports a zero outcome, so one unbootstrappable exam cannot affect the
// rest of the round.
var ErrEmptyGroup = errors.New("no seed questions in group")

// Worker processes one exam per call. Workers share no mutable state with
// each other beyond the hydrator's run counter and the store's connection
// pool, so any number of them can run concurrently.
//
// Error Handling Policy:
//
// PROPAGATED (returned to the scheduler):
//   - generator.ErrRateLimited: quota exhaustion is a global condition, not
//     a per-exam one. The round scheduler owns the quota backoff.
//
// SWALLOWED (logged, zero/partial outcome, nil error):
//   - ErrEmptyGroup: an exam with no stored questions cannot bootstrap
//     generation; skipping it must not affect other exams in the round
//   - generator.ParseError: treated as an empty candidate batch this round
//   - generic provider/store failures: isolated to this exam this round
//   - partial bulk insert: not an error at all, usually a lost race with a
//     concurrent duplicate insert; logged as a warning and reflected in the
//     inserted count
type Worker struct {
	store  storage.Store
	gen    generator.Generator
	filter *dedupe.Filter
	hyd    *hydrate.Hydrator
	cfg    Config

	randMu sync.Mutex
	rng    *rand.Rand
}

// Config holds worker configuration.
type Config struct {
	// BatchSize is the number of candidates requested per provider call.
	BatchSize int

	// SeedSampleSize is the number of stored questions to sample from when
	// choosing a generation seed.
	SeedSampleSize int

	// BatchDelay is the deliberate pause after a completed batch. It
	// throttles the per-exam provider call rate and is part of the worker's
	// contract, not a leftover sleep.
	BatchDelay time.Duration

	// Rand is the randomness source for seed selection. If nil, a
	// time-seeded source is used. Tests inject a deterministic one.
	Rand *rand.Rand
}

// New creates a worker.
func New(store storage.Store, gen generator.Generator, filter *dedupe.Filter, hyd *hydrate.Hydrator, cfg Config) (*Worker, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if filter == nil {
		return nil, fmt.Errorf("filter is required")
	}
	if hyd == nil {
		return nil, fmt.Errorf("hydrator is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive (got %d)", cfg.BatchSize)
	}
	if cfg.SeedSampleSize <= 0 {
		return nil, fmt.Errorf("seed sample size must be positive (got %d)", cfg.SeedSampleSize)
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Worker{
		store:  store,
		gen:    gen,
		filter: filter,
		hyd:    hyd,
		cfg:    cfg,
		rng:    rng,
	}, nil
}

// Process runs one generation pass for one under-populated exam.
func (w *Worker) Process(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
	var outcome types.WorkerOutcome

	seed, err := w.sampleSeed(ctx, gap.ExamSlug)
	if err != nil {
		if errors.Is(err, ErrEmptyGroup) {
			fmt.Fprintf(os.Stderr, "warning: %s: %v, cannot generate\n", gap.ExamSlug, err)
		} else {
			fmt.Fprintf(os.Stderr, "warning: sampling seeds for %s: %v\n", gap.ExamSlug, err)
		}
		return outcome, nil
	}

	candidates, err := w.gen.Generate(ctx, seed, w.cfg.BatchSize)
	if err != nil {
		if errors.Is(err, generator.ErrRateLimited) {
			return outcome, err
		}
		var parseErr *generator.ParseError
		if errors.As(err, &parseErr) {
			fmt.Fprintf(os.Stderr, "warning: %s: unparseable provider response, skipping this round: %v\n",
				gap.ExamSlug, parseErr.Err)
			return outcome, nil
		}
		fmt.Fprintf(os.Stderr, "warning: generation failed for %s: %v\n", gap.ExamSlug, err)
		return outcome, nil
	}
	outcome.Generated = len(candidates)
	if len(candidates) == 0 {
		return outcome, nil
	}

	batch := w.filterAndHydrate(ctx, candidates, seed, &outcome)
	if len(batch) > 0 {
		inserted, err := w.store.BulkInsert(ctx, batch)
		outcome.Inserted = inserted
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: bulk insert for %s failed after %d rows: %v\n",
				gap.ExamSlug, inserted, err)
		} else if inserted < len(batch) {
			fmt.Fprintf(os.Stderr, "warning: partial insert for %s: %d/%d landed (concurrent duplicate race)\n",
				gap.ExamSlug, inserted, len(batch))
		}
	}

	fmt.Printf("exam %s: generated=%d unique=%d inserted=%d exact_dup=%d fuzzy_dup=%d\n",
		gap.ExamSlug, outcome.Generated, len(batch), outcome.Inserted,
		outcome.ExactDuplicates, outcome.FuzzyDuplicates)

	// Deliberate pause before returning: throttles the per-exam call rate.
	if w.cfg.BatchDelay > 0 {
		select {
		case <-time.After(w.cfg.BatchDelay):
		case <-ctx.Done():
		}
	}
	return outcome, nil
}

// filterAndHydrate classifies each candidate within the seed's scope and
// hydrates the unique ones. The scope snapshot is taken once per batch; the
// corpus changes every round, so it is never cached beyond that.
func (w *Worker) filterAndHydrate(ctx context.Context, candidates []types.Candidate, seed types.SeedQuestion, outcome *types.WorkerOutcome) []types.Question {
	scope := dedupe.Scope{Topic: seed.Topic, ExamSlug: seed.ExamSlug}
	snap, err := w.filter.Snapshot(ctx, scope)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: duplicate scope fetch for %s failed: %v\n", seed.ExamSlug, err)
		return nil
	}

	var batch []types.Question
	for _, c := range candidates {
		class, err := snap.Classify(ctx, c.Question)
		if err != nil {
			// Without a verdict the safe move is to not insert.
			fmt.Fprintf(os.Stderr, "warning: duplicate check failed for %s, skipping candidate: %v\n",
				seed.ExamSlug, err)
			continue
		}
		switch class {
		case dedupe.ExactDuplicate:
			outcome.ExactDuplicates++
		case dedupe.FuzzyDuplicate:
			outcome.FuzzyDuplicates++
		case dedupe.Unique:
			batch = append(batch, w.hyd.Hydrate(c, seed))
		}
	}
	return batch
}

// sampleSeed draws the exam's seed pool and picks one uniformly at random,
// so successive rounds do not keep generating variations of the same
// question.
func (w *Worker) sampleSeed(ctx context.Context, examSlug string) (types.SeedQuestion, error) {
	seeds, err := w.store.SampleSeeds(ctx, examSlug, w.cfg.SeedSampleSize)
	if err != nil {
		return types.SeedQuestion{}, err
	}
	if len(seeds) == 0 {
		return types.SeedQuestion{}, ErrEmptyGroup
	}
	return seeds[w.pick(len(seeds))], nil
}

func (w *Worker) pick(n int) int {
	w.randMu.Lock()
	defer w.randMu.Unlock()
	return w.rng.Intn(n)
}
