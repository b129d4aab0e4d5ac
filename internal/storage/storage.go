// Package storage defines the question store consumed by the gap-filling
// engine. The engine only ever needs aggregate counts, point lookups,
// scoped scans, and bulk writes; everything else about persistence is a
// backend concern.
package storage

import (
	"context"
	"errors"

	"github.com/gyapak/content-agent/internal/types"
)

// ErrUnavailable indicates the store could not complete an operation
// (connection failure, locked database, etc.). The scheduler treats it as a
// round-level failure and backs off.
var ErrUnavailable = errors.New("store unavailable")

// Store is the persistence boundary for exam questions.
type Store interface {
	// GapsBelow returns exams whose question count is strictly below
	// threshold, ordered by ascending count. Starved exams come first;
	// that ordering is a priority policy the scheduler relies on.
	GapsBelow(ctx context.Context, threshold int) ([]types.GroupGap, error)

	// Counts returns the question count of every exam, ordered ascending.
	Counts(ctx context.Context) ([]types.GroupGap, error)

	// SampleSeeds returns up to limit existing questions for an exam, to be
	// used as generation seeds.
	SampleSeeds(ctx context.Context, examSlug string, limit int) ([]types.SeedQuestion, error)

	// ExistsExact reports whether a question with exactly this (trimmed)
	// text is already stored, regardless of exam.
	ExistsExact(ctx context.Context, questionText string) (bool, error)

	// TextsInScope returns the stored question texts for one (topic, exam)
	// scope. Fuzzy comparison never crosses that scope: matches between
	// unrelated exams are false positives.
	TextsInScope(ctx context.Context, topic, examSlug string) ([]string, error)

	// BulkInsert writes a batch of hydrated questions and returns how many
	// actually landed. The write is unordered and partial-success tolerant:
	// one row losing a uniqueness race with a concurrent worker must not
	// block the rest of the batch.
	BulkInsert(ctx context.Context, questions []types.Question) (int, error)

	// Close releases the underlying connections.
	Close() error
}
