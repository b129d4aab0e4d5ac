package dedupe

import (
	"context"
	"fmt"
	"strings"
)

// Classification is the three-way result of a duplicate check. It is a
// tagged variant rather than a bool+label so that handling is exhaustive.
type Classification int

const (
	// Unique means the candidate matches nothing in the corpus.
	Unique Classification = iota

	// ExactDuplicate means the normalized text exactly matches a stored
	// question, regardless of exam.
	ExactDuplicate

	// FuzzyDuplicate means some stored question in the same (topic, exam)
	// scope scored above the configured threshold.
	FuzzyDuplicate
)

func (c Classification) String() string {
	switch c {
	case Unique:
		return "unique"
	case ExactDuplicate:
		return "exact"
	case FuzzyDuplicate:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// Scope restricts fuzzy comparison to one (topic, exam) slice of the corpus.
// Fuzzy matches across unrelated exams are false positives, so the exam slug
// is part of the scope key, not just the topic.
type Scope struct {
	Topic    string
	ExamSlug string
}

// Lookup is the read-only subset of the store the filter needs.
type Lookup interface {
	ExistsExact(ctx context.Context, text string) (bool, error)
	TextsInScope(ctx context.Context, topic, examSlug string) ([]string, error)
}

// Filter classifies candidate texts. It holds no per-round state: reference
// texts are fetched when a snapshot is taken and discarded with it, because
// the corpus changes every round.
type Filter struct {
	lookup    Lookup
	threshold int
}

// NewFilter creates a duplicate filter. threshold is the fuzzy similarity
// score (0-100) above which a candidate is rejected.
func NewFilter(lookup Lookup, threshold int) (*Filter, error) {
	if lookup == nil {
		return nil, fmt.Errorf("lookup is required")
	}
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("fuzzy threshold must be between 0 and 100 (got %d)", threshold)
	}
	return &Filter{lookup: lookup, threshold: threshold}, nil
}

// Snapshot fetches the reference texts for one scope. A worker takes one
// snapshot per batch and classifies every candidate against it, so the
// scope query runs once per exam pass instead of once per candidate.
func (f *Filter) Snapshot(ctx context.Context, scope Scope) (*Snapshot, error) {
	refs, err := f.lookup.TextsInScope(ctx, scope.Topic, scope.ExamSlug)
	if err != nil {
		return nil, fmt.Errorf("fetching reference texts for %s/%s: %w", scope.Topic, scope.ExamSlug, err)
	}
	return &Snapshot{filter: f, scope: scope, refs: refs}, nil
}

// Classify is the one-shot form of Snapshot + Snapshot.Classify, for callers
// checking a single text.
func (f *Filter) Classify(ctx context.Context, text string, scope Scope) (Classification, error) {
	snap, err := f.Snapshot(ctx, scope)
	if err != nil {
		return Unique, err
	}
	return snap.Classify(ctx, text)
}

// Snapshot is a filter bound to one scope's reference texts.
type Snapshot struct {
	filter *Filter
	scope  Scope
	refs   []string
}

// Len returns the number of reference texts in the snapshot.
func (s *Snapshot) Len() int { return len(s.refs) }

// Classify checks one candidate text. The exact lookup hits the store (it is
// global and index-backed); the fuzzy pass runs over the snapshot's
// references and short-circuits on the first score above the threshold --
// no best-match search, first exceedance wins.
func (s *Snapshot) Classify(ctx context.Context, text string) (Classification, error) {
	normalized := strings.TrimSpace(text)

	exists, err := s.filter.lookup.ExistsExact(ctx, normalized)
	if err != nil {
		return Unique, fmt.Errorf("exact lookup: %w", err)
	}
	if exists {
		return ExactDuplicate, nil
	}

	for _, ref := range s.refs {
		if Similarity(normalized, ref) > s.filter.threshold {
			return FuzzyDuplicate, nil
		}
	}
	return Unique, nil
}
