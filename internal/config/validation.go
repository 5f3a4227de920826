package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidTopK indicates a top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidMaxTokens indicates the answer token cap is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max answer tokens")

	// ErrInvalidRetry indicates the retry policy values are out of range.
	ErrInvalidRetry = errors.New("invalid retry configuration")

	// ErrInvalidNamespace indicates a store namespace is empty or malformed.
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	maxTopK           = 100
	maxAnswerTokenCap = 8192
	maxRetryAttempts  = 10
	maxEmbedderDim    = 8192
)

var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// Validate checks all configuration values and returns the first problem
// found, wrapped around a sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (expected gemini, ollama, or openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimension < 1 || c.EmbedderDimension > maxEmbedderDim {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidEmbedderDimension, c.EmbedderDimension, maxEmbedderDim)
	}

	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: %v (must be in (0, 1])", ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.CorrectionTopK < 1 || c.CorrectionTopK > maxTopK {
		return fmt.Errorf("%w: correction_top_k=%d", ErrInvalidTopK, c.CorrectionTopK)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > maxTopK {
		return fmt.Errorf("%w: retrieval_top_k=%d", ErrInvalidTopK, c.RetrievalTopK)
	}
	if c.MaxAnswerTokens < 1 || c.MaxAnswerTokens > maxAnswerTokenCap {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidMaxTokens, c.MaxAnswerTokens, maxAnswerTokenCap)
	}

	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > maxRetryAttempts {
		return fmt.Errorf("%w: retry_max_attempts=%d (must be 1..%d)", ErrInvalidRetry, c.RetryMaxAttempts, maxRetryAttempts)
	}
	if c.RetryInitialIntervalMs < 0 || c.RetryMaxIntervalMs < c.RetryInitialIntervalMs {
		return fmt.Errorf("%w: intervals initial=%dms max=%dms", ErrInvalidRetry, c.RetryInitialIntervalMs, c.RetryMaxIntervalMs)
	}
	if c.RetryMaxElapsedMs < 0 {
		return fmt.Errorf("%w: retry_max_elapsed_ms=%d", ErrInvalidRetry, c.RetryMaxElapsedMs)
	}

	if c.FAQNamespace == "" || c.CorrectionNamespace == "" {
		return fmt.Errorf("%w: namespaces must be non-empty", ErrInvalidNamespace)
	}
	if c.FAQNamespace == c.CorrectionNamespace {
		return fmt.Errorf("%w: faq and correction namespaces must differ", ErrInvalidNamespace)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
