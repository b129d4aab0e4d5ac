package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// RoundResult classifies how a round ended. The backoff controller maps each
// class to the sleep applied before the next round.
type RoundResult int

const (
	// RoundIdle means the scan found no gaps; nothing to do for a while.
	RoundIdle RoundResult = iota

	// RoundCompleted means the round ran its workers to completion.
	RoundCompleted

	// RoundRateLimited means some worker surfaced the provider's quota
	// signal during the round.
	RoundRateLimited

	// RoundFailed means a round-level error (scan failure, store outage).
	RoundFailed
)

func (r RoundResult) String() string {
	switch r {
	case RoundIdle:
		return "idle"
	case RoundCompleted:
		return "completed"
	case RoundRateLimited:
		return "rate-limited"
	case RoundFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Backoff computes the cooling interval between rounds.
type Backoff struct {
	roundDelay time.Duration
	idleDelay  time.Duration
	retryDelay time.Duration
	quotaMin   time.Duration
	quotaMax   time.Duration

	randMu sync.Mutex
	rng    *rand.Rand
}

// BackoffConfig holds the per-outcome intervals.
type BackoffConfig struct {
	RoundDelay time.Duration // normal completion
	IdleDelay  time.Duration // no gaps found
	RetryDelay time.Duration // generic round failure
	QuotaMin   time.Duration // randomized quota backoff window, inclusive
	QuotaMax   time.Duration

	// Rand is the randomness source for the quota draw. If nil, a
	// time-seeded source is used. Tests inject a deterministic one.
	Rand *rand.Rand
}

// NewBackoff creates a backoff controller.
func NewBackoff(cfg BackoffConfig) (*Backoff, error) {
	if cfg.QuotaMin <= 0 || cfg.QuotaMax < cfg.QuotaMin {
		return nil, fmt.Errorf("quota backoff window [%v, %v] is invalid", cfg.QuotaMin, cfg.QuotaMax)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Backoff{
		roundDelay: cfg.RoundDelay,
		idleDelay:  cfg.IdleDelay,
		retryDelay: cfg.RetryDelay,
		quotaMin:   cfg.QuotaMin,
		quotaMax:   cfg.QuotaMax,
		rng:        rng,
	}, nil
}

// Interval returns how long to cool for a given round result. The quota
// interval is drawn uniformly from [QuotaMin, QuotaMax]: randomization keeps
// multiple agents sharing one quota from retrying in lockstep.
func (b *Backoff) Interval(result RoundResult) time.Duration {
	switch result {
	case RoundIdle:
		return b.idleDelay
	case RoundRateLimited:
		return b.quotaInterval()
	case RoundFailed:
		return b.retryDelay
	default:
		return b.roundDelay
	}
}

func (b *Backoff) quotaInterval() time.Duration {
	b.randMu.Lock()
	defer b.randMu.Unlock()
	window := int64(b.quotaMax - b.quotaMin)
	if window == 0 {
		return b.quotaMin
	}
	return b.quotaMin + time.Duration(b.rng.Int63n(window+1))
}
