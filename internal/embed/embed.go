// Package embed converts free text into fixed-length embedding vectors.
//
// Embedder wraps a Genkit ai.Embedder with a retry policy for transient
// provider failures and validates that every returned vector has exactly
// the configured dimensionality. A wrong-length vector is an error even
// when the provider call itself succeeded.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyInput indicates the text to embed is empty or whitespace-only.
	ErrEmptyInput = errors.New("cannot embed empty input")

	// ErrDimensionMismatch indicates the provider returned a vector whose
	// length differs from the configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding indicates the provider returned no embedding at all.
	ErrEmptyEmbedding = errors.New("empty embedding response")
)

// Config contains all required parameters for an Embedder.
type Config struct {
	// Client is the underlying Genkit embedder.
	Client ai.Embedder

	// Dimension is the required vector length.
	Dimension int

	// Retry controls backoff for transient failures (zero-value uses defaults).
	Retry RetryPolicy

	// RateLimiter optionally gates each attempt (nil = disabled).
	RateLimiter *rate.Limiter

	// RequestOptions is passed through as ai.EmbedRequest.Options.
	// Provider-specific: for Gemini this carries the output
	// dimensionality (genai.EmbedContentConfig).
	RequestOptions any

	// Logger for debugging (nil = slog.Default()).
	Logger *slog.Logger
}

// Embedder converts text to embedding vectors with retry and validation.
// Safe for concurrent use by multiple goroutines.
type Embedder struct {
	client      ai.Embedder
	dimension   int
	policy      RetryPolicy
	rateLimiter *rate.Limiter
	reqOptions  any
	logger      *slog.Logger
}

// New creates an Embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.Client == nil {
		return nil, errors.New("embedder client is required")
	}
	if cfg.Dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		client:      cfg.Client,
		dimension:   cfg.Dimension,
		policy:      cfg.Retry.withDefaults(),
		rateLimiter: cfg.RateLimiter,
		reqOptions:  cfg.RequestOptions,
		logger:      logger,
	}, nil
}

// Dimension returns the configured vector length.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed converts text into an embedding vector.
//
// Transient provider failures are retried per the configured policy;
// authentication failures abort immediately. The returned vector always
// has exactly Dimension() elements.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	resp, err := e.embedWithRetry(ctx, text)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vector := resp.Embeddings[0].Embedding
	if len(vector) != e.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), e.dimension)
	}

	return vector, nil
}

// embedOnce performs a single provider call.
func (e *Embedder) embedOnce(ctx context.Context, text string) (*ai.EmbedResponse, error) {
	req := &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: e.reqOptions,
	}
	return e.client.Embed(ctx, req)
}
