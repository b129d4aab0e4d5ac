package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/gyapak/content-agent/internal/types"
)

// Stats accumulates process-wide generation counters. They are never reset,
// only accumulated; workers record into them concurrently and the scheduler
// reads them for reporting. They never drive control decisions.
type Stats struct {
	rounds    atomic.Int64
	generated atomic.Int64
	inserted  atomic.Int64
	exactDup  atomic.Int64
	fuzzyDup  atomic.Int64
}

// Record folds one worker outcome into the counters.
func (s *Stats) Record(o types.WorkerOutcome) {
	s.generated.Add(int64(o.Generated))
	s.inserted.Add(int64(o.Inserted))
	s.exactDup.Add(int64(o.ExactDuplicates))
	s.fuzzyDup.Add(int64(o.FuzzyDuplicates))
}

// RoundFinished bumps the round counter.
func (s *Stats) RoundFinished() {
	s.rounds.Add(1)
}

// Snapshot returns a consistent-enough copy for reporting.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Rounds:          s.rounds.Load(),
		Generated:       s.generated.Load(),
		Inserted:        s.inserted.Load(),
		ExactDuplicates: s.exactDup.Load(),
		FuzzyDuplicates: s.fuzzyDup.Load(),
	}
}

// Snapshot is a point-in-time view of the accumulated stats.
type Snapshot struct {
	Rounds          int64
	Generated       int64
	Inserted        int64
	ExactDuplicates int64
	FuzzyDuplicates int64
}

func (s Snapshot) String() string {
	return fmt.Sprintf("rounds=%d generated=%d inserted=%d exact_dup=%d fuzzy_dup=%d",
		s.Rounds, s.Generated, s.Inserted, s.ExactDuplicates, s.FuzzyDuplicates)
}
