// Package generator is the content-provider boundary: it turns one seed
// question into a batch of candidate questions via an LLM call. The engine
// treats anything implementing Generator as opaque; only the error taxonomy
// (rate-limited vs. parse failure vs. generic) leaks through.
package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyapak/content-agent/internal/types"
)

// ErrRateLimited signals provider quota exhaustion. It is a typed condition
// (never string matching on messages): workers propagate it unmodified to
// the scheduler, which applies the randomized quota backoff instead of the
// generic retry delay.
var ErrRateLimited = errors.New("provider rate limited")

// ParseError indicates the provider returned content that does not conform
// to the expected candidate shape. Workers treat it as an empty candidate
// batch for that exam and round; it never aborts the round.
type ParseError struct {
	Err error
	Raw string // truncated raw response, for diagnostics
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable generation response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Generator produces candidate questions from a seed.
type Generator interface {
	// Generate requests count candidates modeled on seed. It returns
	// ErrRateLimited (possibly wrapped) on quota exhaustion, a *ParseError
	// when the response shape is invalid, and other errors for generic
	// provider failures.
	Generate(ctx context.Context, seed types.SeedQuestion, count int) ([]types.Candidate, error)
}
