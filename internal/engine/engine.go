// Package engine implements the round scheduler: the long-lived
// scan -> dispatch -> drain -> cool loop that keeps every exam above the
// population threshold.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/gyapak/content-agent/internal/generator"
	"github.com/gyapak/content-agent/internal/storage"
	"github.com/gyapak/content-agent/internal/types"
)

// roundState names the scheduler's position within one round.
type roundState int

const (
	stateScanning roundState = iota
	stateDispatching
	stateDraining
	stateCooling
)

func (s roundState) String() string {
	switch s {
	case stateScanning:
		return "scanning"
	case stateDispatching:
		return "dispatching"
	case stateDraining:
		return "draining"
	case stateCooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// Processor handles one under-populated exam. worker.Worker implements it;
// tests substitute fakes.
type Processor interface {
	Process(ctx context.Context, gap types.GroupGap) (types.WorkerOutcome, error)
}

// Engine is the round scheduler. It never terminates on error: every
// round-level failure is absorbed by the backoff controller and the loop
// re-enters scanning. Only Stop or context cancellation ends the run.
type Engine struct {
	store   storage.Store
	proc    Processor
	backoff *Backoff
	stats   *Stats
	cfg     Config
	runID   string

	sem      *semaphore.Weighted
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Config holds scheduler configuration.
type Config struct {
	// Threshold is the minimum question count per exam.
	Threshold int

	// MaxParallelGroups bounds concurrent workers within a round. Exams
	// beyond the bound queue behind it in scan (most-starved-first) order.
	MaxParallelGroups int

	// DrainTimeout caps how long Stop waits for in-flight workers.
	DrainTimeout time.Duration

	// Backoff configures the cooling intervals.
	Backoff BackoffConfig
}

// New creates an engine.
func New(store storage.Store, proc Processor, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if proc == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive (got %d)", cfg.Threshold)
	}
	if cfg.MaxParallelGroups <= 0 {
		return nil, fmt.Errorf("max parallel groups must be positive (got %d)", cfg.MaxParallelGroups)
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Minute
	}

	backoff, err := NewBackoff(cfg.Backoff)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:   store,
		proc:    proc,
		backoff: backoff,
		stats:   &Stats{},
		cfg:     cfg,
		runID:   uuid.New().String()[:8],
		sem:     semaphore.NewWeighted(int64(cfg.MaxParallelGroups)),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Stats exposes the run-wide counters for reporting.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Run executes rounds until the context is canceled or Stop is called.
// Canceling the context is the hard path: it also severs in-flight provider
// and store calls. Stop is the graceful path: no new rounds, no new
// submissions, in-flight workers finish their current operation.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.doneCh)

	fmt.Printf("content agent started (run=%s, threshold=%d, parallel=%d)\n",
		e.runID, e.cfg.Threshold, e.cfg.MaxParallelGroups)

	for {
		if e.stopping(ctx) {
			break
		}

		result := e.runRound(ctx)
		e.stats.RoundFinished()
		fmt.Printf("round %s: %s (run=%s)\n", result, e.stats.Snapshot(), e.runID)

		if e.stopping(ctx) {
			break
		}

		// Cooling
		interval := e.backoff.Interval(result)
		fmt.Printf("%s: sleeping %v after %s round\n", stateCooling, interval, result)
		select {
		case <-time.After(interval):
		case <-ctx.Done():
		case <-e.stopCh:
		}
	}

	fmt.Printf("content agent stopped (run=%s): %s\n", e.runID, e.stats.Snapshot())
}

// Stop requests a graceful shutdown and waits for the run loop to drain,
// up to the configured hard timeout.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	select {
	case <-e.doneCh:
	case <-time.After(e.cfg.DrainTimeout):
		fmt.Fprintf(os.Stderr, "warning: drain timeout (%v) expired, abandoning in-flight workers\n",
			e.cfg.DrainTimeout)
	}
}

func (e *Engine) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

// runRound executes one complete scan/dispatch/drain cycle and reports how
// it ended. Rounds never overlap: the drain barrier at the end waits for
// every submitted worker before the caller may cool and rescan.
//
// A rate-limit signal from any worker stops further submissions for the
// round; workers already in flight are allowed to finish. That choice is
// deterministic: queued-but-unsubmitted exams are simply picked up by a
// later round, in scan order.
func (e *Engine) runRound(ctx context.Context) RoundResult {
	// Scanning
	gaps, err := e.store.GapsBelow(ctx, e.cfg.Threshold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s failed: %v\n", stateScanning, err)
		return RoundFailed
	}
	if len(gaps) == 0 {
		fmt.Printf("%s: all exams at threshold %d\n", stateScanning, e.cfg.Threshold)
		return RoundIdle
	}
	fmt.Printf("%s: %d exams below threshold %d\n", stateScanning, len(gaps), e.cfg.Threshold)

	// Dispatching: submission order preserves the scan's starved-first
	// priority; the semaphore enforces the concurrency bound.
	var wg sync.WaitGroup
	var rateLimited atomic.Bool
	for _, gap := range gaps {
		if rateLimited.Load() || e.stopping(ctx) {
			break
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(gap types.GroupGap) {
			defer wg.Done()
			defer e.sem.Release(1)

			outcome, err := e.proc.Process(ctx, gap)
			e.stats.Record(outcome)
			if err != nil {
				if errors.Is(err, generator.ErrRateLimited) {
					rateLimited.Store(true)
					return
				}
				// Worker errors are isolated: this exam lost its round,
				// nothing else did.
				fmt.Fprintf(os.Stderr, "error: exam %s failed this round: %v\n", gap.ExamSlug, err)
			}
		}(gap)
	}

	// Draining: the round is a synchronization barrier.
	wg.Wait()

	if rateLimited.Load() {
		return RoundRateLimited
	}
	return RoundCompleted
}
