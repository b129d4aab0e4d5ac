package generator

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gyapak/content-agent/internal/types"
)

// Pre-compiled patterns for stripping markdown code fences from model
// output. Models wrap JSON in fences often enough that decoding the raw
// text first and falling back is the cheapest strategy.
var (
	codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	arrayRegex     = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// maxRawPreview bounds how much of a bad response is kept for diagnostics.
const maxRawPreview = 500

// ParseCandidates decodes a model response into validated candidates.
//
// Strategy sequence:
//  1. Direct JSON decode of the trimmed text.
//  2. Strip code fences and retry.
//  3. Extract the outermost JSON array from mixed content and retry.
//
// A response that fails all three yields a *ParseError. Individual elements
// that decode but fail shape validation are dropped with a warning rather
// than poisoning the whole batch.
func ParseCandidates(text string) ([]types.Candidate, error) {
	raw := strings.TrimSpace(text)

	candidates, err := decodeCandidates(raw)
	if err != nil {
		if m := codeFenceRegex.FindStringSubmatch(raw); m != nil {
			candidates, err = decodeCandidates(strings.TrimSpace(m[1]))
		}
	}
	if err != nil {
		if m := arrayRegex.FindString(raw); m != "" {
			candidates, err = decodeCandidates(m)
		}
	}
	if err != nil {
		preview := raw
		if len(preview) > maxRawPreview {
			preview = preview[:maxRawPreview] + "..."
		}
		slog.Warn("generation response did not parse", "error", err, "preview_len", len(preview))
		return nil, &ParseError{Err: err, Raw: preview}
	}

	valid := candidates[:0]
	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			slog.Warn("dropping malformed candidate", "error", err)
			continue
		}
		valid = append(valid, candidates[i])
	}
	return valid, nil
}

func decodeCandidates(text string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	if err := json.Unmarshal([]byte(text), &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}
