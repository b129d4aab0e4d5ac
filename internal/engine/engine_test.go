package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gyapak/content-agent/internal/generator"
	"github.com/gyapak/content-agent/internal/storage"
	"github.com/gyapak/content-agent/internal/types"
)

// scanStore is a storage.Store stub that only answers gap scans.
type scanStore struct {
	gaps    []types.GroupGap
	scanErr error
}

func (s *scanStore) GapsBelow(ctx context.Context, threshold int) ([]types.GroupGap, error) {
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return s.gaps, nil
}

func (s *scanStore) Counts(ctx context.Context) ([]types.GroupGap, error) { return s.gaps, nil }

func (s *scanStore) SampleSeeds(ctx context.Context, examSlug string, limit int) ([]types.SeedQuestion, error) {
	return nil, nil
}

func (s *scanStore) ExistsExact(ctx context.Context, text string) (bool, error) { return false, nil }

func (s *scanStore) TextsInScope(ctx context.Context, topic, examSlug string) ([]string, error) {
	return nil, nil
}

func (s *scanStore) BulkInsert(ctx context.Context, questions []types.Question) (int, error) {
	return len(questions), nil
}

func (s *scanStore) Close() error { return nil }

// procFunc adapts a function to the Processor interface.
type procFunc func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error)

func (f procFunc) Process(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
	return f(ctx, gap)
}

func testConfig() Config {
	return Config{
		Threshold:         100,
		MaxParallelGroups: 2,
		DrainTimeout:      time.Second,
		Backoff: BackoffConfig{
			RoundDelay: time.Millisecond,
			IdleDelay:  time.Millisecond,
			RetryDelay: time.Millisecond,
			QuotaMin:   time.Millisecond,
			QuotaMax:   2 * time.Millisecond,
			Rand:       rand.New(rand.NewSource(7)),
		},
	}
}

func gaps(n int) []types.GroupGap {
	out := make([]types.GroupGap, n)
	for i := range out {
		out[i] = types.GroupGap{ExamSlug: fmt.Sprintf("exam-%d", i), Count: 10 * (i + 1)}
	}
	return out
}

// With 5 eligible exams and a bound of 2, at most 2 workers ever run at the
// same instant, and all 5 complete before the round ends.
func TestRoundBoundedConcurrency(t *testing.T) {
	var current, peak, processed atomic.Int64
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		processed.Add(1)
		return types.WorkerOutcome{Generated: 1, Inserted: 1}, nil
	})

	eng, err := New(&scanStore{gaps: gaps(5)}, proc, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := eng.runRound(context.Background())
	if result != RoundCompleted {
		t.Errorf("round result = %s, want completed", result)
	}
	if processed.Load() != 5 {
		t.Errorf("processed %d exams, want all 5 before the round ends", processed.Load())
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeded the bound of 2", peak.Load())
	}
	if current.Load() != 0 {
		t.Errorf("%d workers still in flight after drain", current.Load())
	}
}

// Submission order follows the scan's starved-first ordering.
func TestRoundSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		mu.Lock()
		order = append(order, gap.ExamSlug)
		mu.Unlock()
		return types.WorkerOutcome{}, nil
	})

	cfg := testConfig()
	cfg.MaxParallelGroups = 1 // serialize so submission order is observable
	eng, err := New(&scanStore{gaps: gaps(4)}, proc, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	eng.runRound(context.Background())

	mu.Lock()
	defer mu.Unlock()
	for i, slug := range []string{"exam-0", "exam-1", "exam-2", "exam-3"} {
		if order[i] != slug {
			t.Fatalf("submission order %v does not follow scan order", order)
		}
	}
}

func TestRoundIdleWhenNoGaps(t *testing.T) {
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		t.Error("no worker should run when the scan is empty")
		return types.WorkerOutcome{}, nil
	})
	eng, err := New(&scanStore{}, proc, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if result := eng.runRound(context.Background()); result != RoundIdle {
		t.Errorf("round result = %s, want idle", result)
	}
}

func TestRoundFailedOnScanError(t *testing.T) {
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		return types.WorkerOutcome{}, nil
	})
	eng, err := New(&scanStore{scanErr: fmt.Errorf("%w: aggregation failed", storage.ErrUnavailable)}, proc, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if result := eng.runRound(context.Background()); result != RoundFailed {
		t.Errorf("round result = %s, want failed", result)
	}
}

// A rate-limit signal from the first worker marks the round rate-limited
// and stops further submissions.
func TestRoundRateLimitShortCircuits(t *testing.T) {
	var processed atomic.Int64
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		processed.Add(1)
		if gap.ExamSlug == "exam-0" {
			return types.WorkerOutcome{}, fmt.Errorf("generate: %w", generator.ErrRateLimited)
		}
		return types.WorkerOutcome{}, nil
	})

	cfg := testConfig()
	cfg.MaxParallelGroups = 1 // the signal lands before the next submission
	eng, err := New(&scanStore{gaps: gaps(5)}, proc, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if result := eng.runRound(context.Background()); result != RoundRateLimited {
		t.Errorf("round result = %s, want rate-limited", result)
	}
	if processed.Load() >= 5 {
		t.Errorf("rate limit did not stop submissions: %d exams processed", processed.Load())
	}
}

// Worker failures other than rate limits are isolated: the round completes
// and the other exams still run.
func TestRoundIsolatesWorkerFailures(t *testing.T) {
	var processed atomic.Int64
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		processed.Add(1)
		if gap.ExamSlug == "exam-1" {
			return types.WorkerOutcome{}, fmt.Errorf("something broke")
		}
		return types.WorkerOutcome{Generated: 2, Inserted: 2}, nil
	})

	eng, err := New(&scanStore{gaps: gaps(3)}, proc, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if result := eng.runRound(context.Background()); result != RoundCompleted {
		t.Errorf("round result = %s, want completed", result)
	}
	if processed.Load() != 3 {
		t.Errorf("processed %d exams, want 3", processed.Load())
	}
}

func TestStatsAccumulateAcrossWorkers(t *testing.T) {
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		return types.WorkerOutcome{Generated: 10, Inserted: 7, ExactDuplicates: 2, FuzzyDuplicates: 1}, nil
	})
	eng, err := New(&scanStore{gaps: gaps(3)}, proc, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	eng.runRound(context.Background())

	snap := eng.Stats().Snapshot()
	if snap.Generated != 30 || snap.Inserted != 21 || snap.ExactDuplicates != 6 || snap.FuzzyDuplicates != 3 {
		t.Errorf("stats = %s, want generated=30 inserted=21 exact=6 fuzzy=3", snap)
	}
}

// Run terminates promptly after Stop: no new rounds start and in-flight
// workers finish.
func TestRunStopsGracefully(t *testing.T) {
	started := make(chan struct{}, 16)
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		started <- struct{}{}
		time.Sleep(10 * time.Millisecond)
		return types.WorkerOutcome{}, nil
	})

	eng, err := New(&scanStore{gaps: gaps(2)}, proc, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		eng.Run(context.Background())
		close(done)
	}()

	// Let at least one worker start, then stop.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("no worker started")
	}
	eng.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	proc := procFunc(func(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error) {
		return types.WorkerOutcome{}, nil
	})
	eng, err := New(&scanStore{gaps: gaps(1)}, proc, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
