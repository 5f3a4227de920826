// Package retrieve fetches semantically relevant FAQ records for a query.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/askdeck/faqbot/internal/knowledge"
)

// Embedder converts text to an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the subset of the vector store the retriever depends on.
type Store interface {
	Upsert(ctx context.Context, rec knowledge.Record) error
	Query(ctx context.Context, embedding []float32, opts ...knowledge.QueryOption) (knowledge.MatchSet, error)
}

// Retriever orchestrates embedding and vector search.
// It adds no caching beyond what the store provides.
type Retriever struct {
	embedder Embedder
	store    Store // bound to the FAQ namespace
	logger   *slog.Logger
}

// New creates a Retriever.
func New(embedder Embedder, store Store, logger *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}, nil
}

// Fetch returns up to k records semantically relevant to query, ranked
// by similarity. An empty MatchSet is a normal outcome, not a failure.
func (r *Retriever) Fetch(ctx context.Context, query string, k int) (knowledge.MatchSet, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.store.Query(ctx, embedding, knowledge.WithTopK(k))
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}

	r.logger.Debug("retrieved matches", "count", len(matches), "k", k)
	return matches, nil
}

// Add embeds question and stores it as a retrievable record. The answer
// rides along in metadata and is surfaced verbatim at synthesis time.
// Upserting an existing id replaces the record.
func (r *Retriever) Add(ctx context.Context, id, question, answer string) error {
	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return fmt.Errorf("embedding question: %w", err)
	}

	rec := knowledge.Record{
		ID:        id,
		Content:   question,
		Embedding: embedding,
		Metadata: map[string]string{
			"question": question,
			"answer":   answer,
		},
	}
	if err := r.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("storing record: %w", err)
	}

	r.logger.Debug("stored record", "id", id)
	return nil
}
