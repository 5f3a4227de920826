package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// classifyPrompt asks the model for exactly one label. The corrected
// answer, when present, follows on the same line after a pipe.
const classifyPrompt = `Classify the user message into exactly one of: greeting, correction, question.
If it is a correction, append " | " followed by the corrected answer text.
Reply with nothing else.

Message: %s`

// Model is a model-based classifier for messages the rule set cannot
// judge. It falls back to the rule-based classifier when the model
// call fails or returns an unrecognized label, so classification never
// hard-fails the pipeline.
type Model struct {
	g         *genkit.Genkit
	modelName string
	fallback  Classifier
	logger    *slog.Logger
}

// NewModel creates a model-based classifier.
func NewModel(g *genkit.Genkit, modelName string, logger *slog.Logger) (*Model, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		g:         g,
		modelName: modelName,
		fallback:  NewRules(),
		logger:    logger,
	}, nil
}

// Classify implements Classifier.
func (m *Model) Classify(ctx context.Context, text string) (Result, error) {
	resp, err := genkit.Generate(ctx, m.g,
		ai.WithModelName(m.modelName),
		ai.WithPrompt(fmt.Sprintf(classifyPrompt, text)),
	)
	if err != nil {
		m.logger.Warn("model classification failed, using rules", "error", err)
		return m.fallback.Classify(ctx, text)
	}

	label, corrected, _ := strings.Cut(strings.TrimSpace(resp.Text()), "|")
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "greeting":
		return Result{Intent: Greeting}, nil
	case "correction":
		corrected = strings.TrimSpace(corrected)
		if corrected == "" {
			// Model saw a correction but extracted nothing usable;
			// the rules extractor is better than an empty answer.
			return m.fallback.Classify(ctx, text)
		}
		return Result{Intent: Correction, CorrectedAnswer: corrected}, nil
	case "question":
		return Result{Intent: Question}, nil
	default:
		m.logger.Warn("unrecognized classification label, using rules", "label", label)
		return m.fallback.Classify(ctx, text)
	}
}
