package hydrate

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gyapak/content-agent/internal/types"
)

func testSeed() types.SeedQuestion {
	return types.SeedQuestion{
		ExamID:      "ex-1",
		ExamSlug:    "ssc-cgl",
		Section:     "english",
		SectionName: "English Language",
		Topic:       "grammar",
		Subtopic:    "fill_in_blanks",
		Question:    "The manager was ____ about the deadline.",
		Options:     []string{"anxious", "anxiety", "anxiously", "anxiousness"},
		Correct:     0,
	}
}

func TestHydrateCopiesSeedMetadata(t *testing.T) {
	h := New("pending_review", 0)
	c := types.Candidate{
		QID:      "Q1",
		Question: "She ____ to the office yesterday.",
		Options:  []string{"go", "goes", "went", "gone"},
		Correct:  2,
		// Provider echoed back different metadata; the seed wins.
		Topic:    "vocabulary",
		Subtopic: "synonyms",
	}

	q := h.Hydrate(c, testSeed())

	if q.ExamID != "ex-1" || q.ExamSlug != "ssc-cgl" {
		t.Errorf("exam metadata not copied from seed: %+v", q)
	}
	if q.Section != "english" || q.SectionName != "English Language" {
		t.Errorf("section metadata not copied from seed: %+v", q)
	}
	if q.Topic != "grammar" || q.Subtopic != "fill_in_blanks" {
		t.Errorf("seed topic/subtopic should override provider echo, got %s/%s", q.Topic, q.Subtopic)
	}
	if q.Question != c.Question || q.Correct != c.Correct {
		t.Errorf("candidate content not preserved: %+v", q)
	}
}

func TestHydrateDefaults(t *testing.T) {
	h := New("pending_review", 3)
	q := h.Hydrate(types.Candidate{
		QID:      "Q1",
		Question: "x ____ y",
		Options:  []string{"a", "b", "c", "d"},
	}, testSeed())

	if q.Status != "pending_review" {
		t.Errorf("status = %q, want pending_review", q.Status)
	}
	if q.Revision != 3 {
		t.Errorf("revision = %d, want 3", q.Revision)
	}
	if q.Tags == nil || len(q.Tags) != 0 {
		t.Errorf("absent tags should default to an empty slice, got %#v", q.Tags)
	}
}

func TestHydrateIDEmbedsLocalQID(t *testing.T) {
	h := New("pending_review", 0)

	q := h.Hydrate(types.Candidate{QID: "Q7", Question: "q", Options: []string{"a", "b", "c", "d"}}, testSeed())
	if !strings.HasPrefix(q.QID, "Q7_") {
		t.Errorf("qid = %q, want Q7_ prefix", q.QID)
	}

	q = h.Hydrate(types.Candidate{Question: "q2", Options: []string{"a", "b", "c", "d"}}, testSeed())
	if !strings.HasPrefix(q.QID, "GEN_") {
		t.Errorf("qid for empty local qid = %q, want GEN_ prefix", q.QID)
	}
}

// Two candidates hydrated concurrently within the same millisecond and with
// the same provider-assigned qid must still get distinct ids.
func TestHydrateIDUniqueUnderContention(t *testing.T) {
	// Pin the clock so every id lands in the same millisecond.
	fixed := time.UnixMilli(1700000000000)
	h := NewWithClock("pending_review", 0, func() time.Time { return fixed })

	const n = 200
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := h.Hydrate(types.Candidate{
				QID:      "Q1",
				Question: "q",
				Options:  []string{"a", "b", "c", "d"},
			}, testSeed())
			ids[i] = q.QID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id generated under contention: %s", id)
		}
		seen[id] = true
	}
}
