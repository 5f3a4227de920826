// Package ledger maintains user-supplied corrections on top of the
// vector store.
//
// A correction supersedes a previously given answer. The ledger
// guarantees that for any query identity at most one live correction is
// retrievable, and that a lookup returns the most recently authored
// correction among semantically matching candidates: freshness beats
// similarity, because corrections are ground-truth updates.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/askdeck/faqbot/internal/knowledge"
)

// Metadata keys carried by correction records.
const (
	MetaOriginalQuery   = "original_query"
	MetaCorrectedAnswer = "corrected_answer"
)

// Embedder converts text to an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the subset of the vector store the ledger depends on.
type Store interface {
	Upsert(ctx context.Context, rec knowledge.Record) error
	Query(ctx context.Context, embedding []float32, opts ...knowledge.QueryOption) (knowledge.MatchSet, error)
}

// Config contains the required parameters for a Ledger.
type Config struct {
	Embedder  Embedder
	Store     Store   // bound to the corrections namespace
	Threshold float32 // minimum similarity for "same question" (0 = default 0.8)
	TopK      int     // lookup candidates to consider (0 = default 3)
	Logger    *slog.Logger

	// Now is the clock used for correction timestamps (nil = time.Now).
	Now func() time.Time
}

// Ledger records and retrieves corrections.
// Safe for concurrent use by multiple goroutines.
type Ledger struct {
	embedder  Embedder
	store     Store
	threshold float32
	topK      int
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Ledger.
func New(cfg Config) (*Ledger, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range (0, 1]", cfg.Threshold)
	}
	l := &Ledger{
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		threshold: cfg.Threshold,
		topK:      cfg.TopK,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if l.threshold == 0 {
		l.threshold = 0.8
	}
	if l.topK < 1 {
		l.topK = 3
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// QueryID derives the deterministic record identity from query text:
// trim, lowercase, collapse internal whitespace, then SHA-256 hex.
// Trivially different phrasings of the same text map to the same slot,
// which is what makes overwrite possible instead of duplicate
// accumulation.
func QueryID(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.Join(strings.Fields(normalized), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Record stores a correction for query, superseding any prior one.
//
// The new record is upserted under the same derived id, so there is
// structurally only ever one live record per query identity, and a
// concurrent lookup can never observe old and new side by side.
//
// An embedding failure here is fatal to the operation: the correction
// is NOT saved and the caller must tell the user so.
func (l *Ledger) Record(ctx context.Context, query, correctedAnswer string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("correction query must not be empty")
	}
	if strings.TrimSpace(correctedAnswer) == "" {
		return fmt.Errorf("corrected answer must not be empty")
	}

	embedding, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embedding correction query: %w", err)
	}

	rec := knowledge.Record{
		ID:        QueryID(query),
		Content:   query,
		Embedding: embedding,
		Metadata: map[string]string{
			MetaOriginalQuery:   query,
			MetaCorrectedAnswer: correctedAnswer,
		},
		CreatedAt: l.now(),
	}

	if err := l.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("storing correction: %w", err)
	}

	l.logger.Info("correction recorded", "id", rec.ID)
	return nil
}

// Lookup returns the corrected answer for a semantically matching query,
// if one exists.
//
// Candidates above the similarity threshold are ranked by recency, not
// similarity: a close-but-stale correction loses to a
// less-similar-but-fresher one. Ties on timestamp fall back to
// similarity, then id lexical order, so results are deterministic.
//
// An embedding failure degrades to "no correction found"; lookup is a
// read path and must never surface a crash to the user.
func (l *Ledger) Lookup(ctx context.Context, query string) (string, bool, error) {
	embedding, err := l.embedder.Embed(ctx, query)
	if err != nil {
		l.logger.Warn("correction lookup degraded, embedding failed", "error", err)
		return "", false, nil
	}

	matches, err := l.store.Query(ctx, embedding, knowledge.WithTopK(l.topK))
	if err != nil {
		return "", false, fmt.Errorf("querying corrections: %w", err)
	}

	candidates := matches[:0:0]
	for _, m := range matches {
		if m.Similarity >= l.threshold {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.Record.CreatedAt.Equal(b.Record.CreatedAt) {
			return a.Record.CreatedAt.After(b.Record.CreatedAt)
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Record.ID < b.Record.ID
	})

	best := candidates[0]
	answer, ok := best.Record.Metadata[MetaCorrectedAnswer]
	if !ok {
		l.logger.Warn("correction record missing answer metadata", "id", best.Record.ID)
		return "", false, nil
	}

	return answer, true, nil
}
