package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/gyapak/content-agent/internal/types"
)

// DefaultModel is the cost-efficient model used for question generation.
// Generation is a high-volume, low-complexity task; there is no reason to
// pay frontier-model rates for it.
const DefaultModel = "claude-3-5-haiku-20241022"

// Anthropic implements Generator on top of the Anthropic Messages API.
type Anthropic struct {
	client  *anthropic.Client
	model   string
	limiter *rate.Limiter
}

// Compile-time check that Anthropic implements Generator.
var _ Generator = (*Anthropic)(nil)

// Config holds provider configuration.
type Config struct {
	// APIKey is the Anthropic API key. If empty, ANTHROPIC_API_KEY is read
	// from the environment.
	APIKey string

	// Model to use (default: DefaultModel).
	Model string

	// RequestsPerSecond paces calls across all workers. Quota exhaustion is
	// a global condition, so the pacing has to be global too.
	RequestsPerSecond float64
}

// NewAnthropic creates an Anthropic-backed generator.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Anthropic{
		client:  &client,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Generate implements Generator. The seed is serialized to JSON and embedded
// in the prompt as generation context; the response is expected to be a JSON
// array of candidates, possibly wrapped in markdown fences.
func (g *Anthropic) Generate(ctx context.Context, seed types.SeedQuestion, count int) ([]types.Candidate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for provider rate slot: %w", err)
	}

	seedJSON, err := json.Marshal(seed)
	if err != nil {
		return nil, fmt.Errorf("encoding seed: %w", err)
	}

	prompt := buildPrompt(seed.Topic, string(seedJSON), count)

	response, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}

	// Extract the text content from the response
	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	return ParseCandidates(responseText)
}

// classifyAPIError maps provider failures onto the agent's error taxonomy.
// HTTP 429 becomes the typed ErrRateLimited; everything else stays a generic
// provider error for the worker to log and swallow.
func classifyAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return fmt.Errorf("provider call failed: %w", err)
}
