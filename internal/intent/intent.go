// Package intent classifies inbound messages so the conversation
// pipeline can route them: greeting, correction, or question.
//
// Classification is behind a small interface with two implementations,
// rule-based (default, deterministic) and model-based, so the
// detection strategy is swappable and independently testable.
package intent

import (
	"context"
	"strings"
)

// Intent is the classified purpose of an inbound message.
type Intent int

const (
	// Question is the default: a lookup the pipeline should answer.
	Question Intent = iota

	// Greeting is a salutation with no information need.
	Greeting

	// Correction supersedes a previously given answer.
	Correction
)

// String returns the label used in logs and model prompts.
func (i Intent) String() string {
	switch i {
	case Greeting:
		return "greeting"
	case Correction:
		return "correction"
	default:
		return "question"
	}
}

// Result is a classification outcome. CorrectedAnswer is populated only
// for Correction, holding the replacement text extracted from the message.
type Result struct {
	Intent          Intent
	CorrectedAnswer string
}

// Classifier judges the intent of a message.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// greetings is the fixed set matched after normalization.
var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hiya": true, "yo": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"hi there": true, "hello there": true,
}

// correctionMarkers are checked in order; the first match wins and the
// corrected answer is the text following the marker.
var correctionMarkers = []string{
	"no, that's wrong.",
	"no, that's wrong,",
	"no, that's wrong",
	"that's wrong,",
	"that's wrong.",
	"that is wrong,",
	"the correct answer is",
	"it's actually",
	"its actually",
	"correction:",
	"actually,",
}

// Rules is the rule-based classifier: fixed greeting set plus
// correction-marker phrases.
type Rules struct{}

// NewRules creates a rule-based classifier.
func NewRules() *Rules {
	return &Rules{}
}

// Classify implements Classifier.
func (*Rules) Classify(_ context.Context, text string) (Result, error) {
	normalized := normalize(text)

	if greetings[strings.Trim(normalized, "!.?")] {
		return Result{Intent: Greeting}, nil
	}

	// Markers are matched against a lowercased copy so the index maps
	// back onto the original text and the corrected answer keeps its casing.
	lower := strings.ToLower(text)
	for _, marker := range correctionMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(marker):]
		corrected := strings.Trim(rest, " \t.,:;")
		return Result{Intent: Correction, CorrectedAnswer: corrected}, nil
	}

	return Result{Intent: Question}, nil
}

// normalize lowercases and collapses whitespace for matching.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}
