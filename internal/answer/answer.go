// Package answer turns retrieved records and a user query into a
// natural-language answer via the configured generation model.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/askdeck/faqbot/internal/knowledge"
)

// systemPrompt is the fixed role description for answer synthesis.
const systemPrompt = "You are an assistant that helps answer questions based on retrieved documents."

// metadataPlaceholder is rendered for missing question/answer metadata
// so the context keeps a predictable shape and no silent gaps appear.
const metadataPlaceholder = "N/A"

// GenerationError indicates the generation service failed or returned
// an unusable response. Callers decide on user-visible fallback text.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Config contains the required parameters for a Synthesizer.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"

	// GenConfig is the provider-specific generation config carrying the
	// output token cap (e.g. *genai.GenerateContentConfig for Gemini).
	// nil = provider defaults.
	GenConfig any

	Logger *slog.Logger
}

// Synthesizer assembles a bounded prompt from retrieved matches and
// obtains a generated answer.
type Synthesizer struct {
	g         *genkit.Genkit
	modelName string
	genConfig any
	logger    *slog.Logger
}

// New creates a Synthesizer.
func New(cfg Config) (*Synthesizer, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		genConfig: cfg.GenConfig,
		logger:    logger,
	}, nil
}

// Generate produces an answer to query grounded in the given matches.
// Either a complete answer is returned or a *GenerationError, never
// partial output.
func (s *Synthesizer) Generate(ctx context.Context, matches knowledge.MatchSet, query string) (string, error) {
	prompt := fmt.Sprintf("Based on the following information: %s, answer the question: %s.",
		buildContext(matches), query)

	opts := []ai.GenerateOption{
		ai.WithModelName(s.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(prompt),
	}
	if s.genConfig != nil {
		opts = append(opts, ai.WithConfig(s.genConfig))
	}

	resp, err := genkit.Generate(ctx, s.g, opts...)
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &GenerationError{Err: fmt.Errorf("model returned empty response")}
	}

	s.logger.Debug("generated answer", "matches", len(matches), "answer_length", len(text))
	return text, nil
}

// buildContext concatenates question/answer metadata in MatchSet order
// (highest similarity first). Missing fields render as a placeholder so
// the token budget stays predictable.
func buildContext(matches knowledge.MatchSet) string {
	if len(matches) == 0 {
		return metadataPlaceholder
	}

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		question := m.Record.Metadata["question"]
		if question == "" {
			question = metadataPlaceholder
		}
		answer := m.Record.Metadata["answer"]
		if answer == "" {
			answer = metadataPlaceholder
		}
		parts = append(parts, fmt.Sprintf("Question: %s Answer: %s", question, answer))
	}
	return strings.Join(parts, " ")
}
