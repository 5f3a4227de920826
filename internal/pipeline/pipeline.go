// Package pipeline is the top-level conversation orchestration.
//
// Each inbound message runs a fixed state machine: greeting check,
// correction-intent check, correction ledger lookup, then fallback
// retrieval plus answer synthesis. Corrections flow back into the
// ledger. The pipeline holds no session state beyond an optional
// per-channel cache of the last question, used to bind a bare
// correction or a taught answer to what was asked before it.
//
// Every internal failure is converted into a fixed apology string; raw
// error text never reaches the user-visible channel.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/askdeck/faqbot/internal/intent"
	"github.com/askdeck/faqbot/internal/knowledge"
)

// User-visible replies. Fixed strings: no error detail is ever
// interpolated into them.
const (
	GreetingReply = "Hello! Ask me anything and I'll do my best to answer."

	ApologyReply = "Sorry, something went wrong on my end. Please try again in a moment."

	DontKnowReply = "I don't know the answer to that yet. If you do, reply with it and I'll remember it."

	CorrectionAck = "Got it, I'll use that answer from now on."

	// CorrectionNotSaved must be explicit: silently dropping a
	// correction would be data loss the user cannot see.
	CorrectionNotSaved = "I couldn't save that correction, so it has NOT been stored. Please try again."

	NoOriginalReply = "I'm not sure which question that corrects. Ask the question first, then correct my answer."

	TaughtAck = "Thanks, I've saved that answer."
)

// Ledger records and retrieves corrections.
type Ledger interface {
	Record(ctx context.Context, query, correctedAnswer string) error
	Lookup(ctx context.Context, query string) (answer string, ok bool, err error)
}

// Retriever fetches semantically relevant records.
type Retriever interface {
	Fetch(ctx context.Context, query string, k int) (knowledge.MatchSet, error)
}

// Synthesizer generates an answer from retrieved matches.
type Synthesizer interface {
	Generate(ctx context.Context, matches knowledge.MatchSet, query string) (string, error)
}

// Config contains all required parameters for a Pipeline.
type Config struct {
	Classifier  intent.Classifier
	Ledger      Ledger
	Retriever   Retriever
	Synthesizer Synthesizer

	// RetrievalTopK is the number of records fetched for synthesis (0 = 3).
	RetrievalTopK int

	Logger *slog.Logger
}

func (cfg Config) validate() error {
	if cfg.Classifier == nil {
		return fmt.Errorf("classifier is required")
	}
	if cfg.Ledger == nil {
		return fmt.Errorf("ledger is required")
	}
	if cfg.Retriever == nil {
		return fmt.Errorf("retriever is required")
	}
	if cfg.Synthesizer == nil {
		return fmt.Errorf("synthesizer is required")
	}
	return nil
}

// Pipeline handles inbound messages. Stateless across messages except
// for the per-channel caches; the vector store is the only shared
// mutable resource and is externally synchronized, so concurrent
// invocations are safe.
type Pipeline struct {
	classifier  intent.Classifier
	ledger      Ledger
	retriever   Retriever
	synthesizer Synthesizer
	topK        int
	logger      *slog.Logger

	mu           sync.Mutex
	lastQuestion map[string]string // channel -> last question asked
	pendingTeach map[string]string // channel -> unanswered question awaiting a taught answer
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	topK := cfg.RetrievalTopK
	if topK < 1 {
		topK = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier:   cfg.Classifier,
		ledger:       cfg.Ledger,
		retriever:    cfg.Retriever,
		synthesizer:  cfg.Synthesizer,
		topK:         topK,
		logger:       logger,
		lastQuestion: make(map[string]string),
		pendingTeach: make(map[string]string),
	}, nil
}

// HandleIncoming processes one inbound message and returns the outbound
// reply text. channel identifies the conversation for the follow-up
// caches; any stable identifier works.
func (p *Pipeline) HandleIncoming(ctx context.Context, channel, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in message handling", "panic", r)
			reply = ApologyReply
		}
	}()

	if strings.TrimSpace(text) == "" {
		return DontKnowReply
	}

	res, err := p.classifier.Classify(ctx, text)
	if err != nil {
		p.logger.Error("intent classification failed", "error", err)
		return ApologyReply
	}

	if res.Intent == intent.Greeting {
		return GreetingReply
	}

	if question, ok := p.takePendingTeach(channel, text, res); ok {
		answer := res.CorrectedAnswer
		if res.Intent != intent.Correction {
			answer = strings.TrimSpace(text)
		}
		if err := p.ledger.Record(ctx, question, answer); err != nil {
			p.logger.Error("saving taught answer failed", "error", err)
			return CorrectionNotSaved
		}
		return TaughtAck
	}

	if res.Intent == intent.Correction {
		return p.handleCorrection(ctx, channel, res.CorrectedAnswer)
	}

	return p.answerQuestion(ctx, channel, text)
}

// HandleCorrection records a correction supplied explicitly with its
// original question, bypassing intent detection.
func (p *Pipeline) HandleCorrection(ctx context.Context, original, correction string) string {
	if err := p.ledger.Record(ctx, original, correction); err != nil {
		p.logger.Error("recording correction failed", "error", err)
		return CorrectionNotSaved
	}
	return CorrectionAck
}

// handleCorrection binds a bare correction to the channel's last question.
func (p *Pipeline) handleCorrection(ctx context.Context, channel, corrected string) string {
	original := p.takeLastQuestion(channel)
	if original == "" || strings.TrimSpace(corrected) == "" {
		return NoOriginalReply
	}
	return p.HandleCorrection(ctx, original, corrected)
}

// answerQuestion runs ledger lookup, then retrieval and synthesis.
func (p *Pipeline) answerQuestion(ctx context.Context, channel, question string) string {
	p.setLastQuestion(channel, question)

	answer, found, err := p.ledger.Lookup(ctx, question)
	if err != nil {
		p.logger.Error("correction lookup failed", "error", err)
		return ApologyReply
	}
	if found {
		return answer
	}

	matches, err := p.retriever.Fetch(ctx, question, p.topK)
	if err != nil {
		p.logger.Error("retrieval failed", "error", err)
		return ApologyReply
	}

	if len(matches) == 0 {
		p.setPendingTeach(channel, question)
		return DontKnowReply
	}

	generated, err := p.synthesizer.Generate(ctx, matches, question)
	if err != nil {
		p.logger.Error("answer generation failed", "error", err)
		return ApologyReply
	}

	return generated
}

// takePendingTeach consumes the channel's pending unanswered question
// when the new message reads like a taught answer. A message that looks
// like a fresh question (ends with "?") leaves the pending slot intact.
func (p *Pipeline) takePendingTeach(channel, text string, res intent.Result) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	question, ok := p.pendingTeach[channel]
	if !ok {
		return "", false
	}
	if res.Intent != intent.Correction && strings.HasSuffix(strings.TrimSpace(text), "?") {
		return "", false
	}
	delete(p.pendingTeach, channel)
	return question, true
}

func (p *Pipeline) setPendingTeach(channel, question string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingTeach[channel] = question
}

func (p *Pipeline) setLastQuestion(channel, question string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastQuestion[channel] = question
}

func (p *Pipeline) takeLastQuestion(channel string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastQuestion[channel]
}
