// Package types defines the domain types shared across the content agent.
package types

import "fmt"

// SeedQuestion is an existing question drawn from an exam, used as context
// for generating new candidates. Seeds are read-only: the agent never
// mutates stored questions, and the seed's exam/section/topic metadata is
// the authoritative source during hydration (anything the provider echoes
// back is ignored).
type SeedQuestion struct {
	ExamID      string   `json:"examId,omitempty"`
	ExamSlug    string   `json:"examSlug"`
	Section     string   `json:"section,omitempty"`
	SectionName string   `json:"sectionName,omitempty"`
	Topic       string   `json:"topic"`
	Subtopic    string   `json:"subtopic,omitempty"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
}

// Candidate is a provider-generated question before duplicate filtering and
// hydration. The QID is provider-assigned and NOT globally unique; the
// hydrator replaces it with a unique identifier before persistence.
// Candidates exist only within one round's processing.
type Candidate struct {
	QID        string   `json:"qid"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Correct    int      `json:"correct"`
	Difficulty string   `json:"difficulty,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	Subtopic   string   `json:"subtopic,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// OptionCount is the fixed size of a question's choice set.
const OptionCount = 4

// Validate checks that a candidate has the shape the provider contract
// promises: non-empty question text, exactly four options, and a correct
// index pointing into them.
func (c *Candidate) Validate() error {
	if c.Question == "" {
		return fmt.Errorf("candidate %q has empty question text", c.QID)
	}
	if len(c.Options) != OptionCount {
		return fmt.Errorf("candidate %q has %d options (want %d)", c.QID, len(c.Options), OptionCount)
	}
	if c.Correct < 0 || c.Correct >= OptionCount {
		return fmt.Errorf("candidate %q has correct index %d out of range [0,%d)", c.QID, c.Correct, OptionCount)
	}
	return nil
}

// Question is a hydrated candidate ready for persistence. QID is globally
// unique (provider-local qid + wall-clock millis + process counter).
// Questions are written once and never mutated by this agent.
type Question struct {
	QID         string   `json:"qid"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Difficulty  string   `json:"difficulty,omitempty"`
	ExamID      string   `json:"examId,omitempty"`
	ExamSlug    string   `json:"examSlug"`
	Section     string   `json:"section,omitempty"`
	SectionName string   `json:"sectionName,omitempty"`
	Topic       string   `json:"topic"`
	Subtopic    string   `json:"subtopic,omitempty"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	Revision    int      `json:"revision"`
}

// GroupGap is one exam sitting below the population threshold, as returned
// by the gap scan.
type GroupGap struct {
	ExamSlug string
	Count    int
}

// WorkerOutcome reports what one per-exam worker pass accomplished.
// A worker that fails (empty group, parse error, provider failure) reports
// a zero outcome rather than an error, except for the rate-limit signal.
type WorkerOutcome struct {
	Generated       int
	Inserted        int
	ExactDuplicates int
	FuzzyDuplicates int
}

// Duplicates returns the total number of candidates rejected by the filter.
func (o WorkerOutcome) Duplicates() int {
	return o.ExactDuplicates + o.FuzzyDuplicates
}
