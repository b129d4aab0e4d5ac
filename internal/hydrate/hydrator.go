// Package hydrate enriches filtered candidates with exam metadata, default
// lifecycle fields, and a globally unique identifier.
package hydrate

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gyapak/content-agent/internal/types"
)

// Hydrator turns candidates into persistable questions. It is pure apart
// from the shared run counter, which is incremented atomically so that two
// workers hydrating in the same millisecond still produce distinct ids.
type Hydrator struct {
	status   string
	revision int
	counter  atomic.Int64
	now      func() time.Time
}

// New creates a hydrator stamping the given initial status and revision
// onto every question.
func New(status string, revision int) *Hydrator {
	return &Hydrator{status: status, revision: revision, now: time.Now}
}

// NewWithClock is New with an injectable clock, for tests that need to pin
// the timestamp embedded in generated ids.
func NewWithClock(status string, revision int, now func() time.Time) *Hydrator {
	return &Hydrator{status: status, revision: revision, now: now}
}

// Hydrate builds a Question from a candidate and its seed.
//
// The seed is the authoritative source for exam, section, topic, and
// subtopic: whatever the provider echoed back in the candidate is discarded.
// Constructing a fresh Question also strips any persistence-layer fields a
// provider could have copied from the seed, so an insert can never turn
// into an accidental overwrite.
func (h *Hydrator) Hydrate(c types.Candidate, seed types.SeedQuestion) types.Question {
	localID := c.QID
	if localID == "" {
		localID = "GEN"
	}

	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}

	return types.Question{
		QID:         fmt.Sprintf("%s_%d_%d", localID, h.now().UnixMilli(), h.counter.Add(1)),
		Question:    c.Question,
		Options:     c.Options,
		Correct:     c.Correct,
		Difficulty:  c.Difficulty,
		ExamID:      seed.ExamID,
		ExamSlug:    seed.ExamSlug,
		Section:     seed.Section,
		SectionName: seed.SectionName,
		Topic:       seed.Topic,
		Subtopic:    seed.Subtopic,
		Tags:        tags,
		Status:      h.status,
		Revision:    h.revision,
	}
}
