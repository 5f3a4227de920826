// Package knowledge is the persistent vector store for FAQ records and
// corrections, backed by PostgreSQL + pgvector.
//
// Store is a thin adapter: upsert replaces by (id, namespace) identity,
// query returns a ranked MatchSet by cosine similarity, delete of an
// absent id is a no-op. Embedding happens upstream; the store only
// moves vectors.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

const (
	// DefaultNamespace is used when no namespace is configured.
	DefaultNamespace = "default"

	// defaultQueryTimeout bounds vector search queries so a slow index
	// scan cannot block the pipeline.
	defaultQueryTimeout = 10 * time.Second
)

// ErrEmptyID indicates a record operation without an identifier.
var ErrEmptyID = errors.New("record id must not be empty")

// ErrEmptyEmbedding indicates an upsert or query without a vector.
var ErrEmptyEmbedding = errors.New("embedding must not be empty")

// UpsertRecordParams carries one record write.
type UpsertRecordParams struct {
	ID        string
	Namespace string
	Content   string
	Embedding *pgvector.Vector
	Metadata  []byte
	CreatedAt pgtype.Timestamptz
}

// SearchRecordsParams carries one similarity search.
type SearchRecordsParams struct {
	QueryEmbedding *pgvector.Vector
	Namespace      string
	ResultLimit    int32
}

// SearchRecordsRow is one ranked search result.
type SearchRecordsRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float64
}

// Querier defines the database operations the store depends on.
// The interface is defined by the consumer so tests can substitute a
// fake; Queries (postgres.go) is the production implementation.
type Querier interface {
	UpsertRecord(ctx context.Context, arg UpsertRecordParams) error
	SearchRecords(ctx context.Context, arg SearchRecordsParams) ([]SearchRecordsRow, error)
	DeleteRecord(ctx context.Context, id, namespace string) error
	CountRecords(ctx context.Context, namespace string) (int64, error)
}

// Store manages records in a single namespace of the vector store.
// Multiple Stores may share one Querier to address different namespaces.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries   Querier
	namespace string
	logger    *slog.Logger
}

// New creates a Store bound to the given namespace ("" = DefaultNamespace).
func New(querier Querier, namespace string, logger *slog.Logger) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:   querier,
		namespace: namespace,
		logger:    logger,
	}
}

// Namespace returns the store's default namespace.
func (s *Store) Namespace() string {
	return s.namespace
}

// Upsert inserts or fully replaces the record at rec.ID.
// Upserting identical content twice yields the same stored state.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrEmptyID
	}
	if len(rec.Embedding) == 0 {
		return ErrEmptyEmbedding
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	embedding := pgvector.NewVector(rec.Embedding)
	createdAt := pgtype.Timestamptz{Time: rec.CreatedAt, Valid: !rec.CreatedAt.IsZero()}

	err = s.queries.UpsertRecord(ctx, UpsertRecordParams{
		ID:        rec.ID,
		Namespace: s.namespace,
		Content:   rec.Content,
		Embedding: &embedding,
		Metadata:  metadataJSON,
		CreatedAt: createdAt,
	})
	if err != nil {
		return fmt.Errorf("upserting record %q: %w", rec.ID, err)
	}

	s.logger.Debug("upserted record", "id", rec.ID, "namespace", s.namespace)
	return nil
}

// Query returns up to k nearest records by cosine similarity, ranked
// descending, metadata included. It never mutates store state.
func (s *Store) Query(ctx context.Context, embedding []float32, opts ...QueryOption) (MatchSet, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	cfg := buildQueryConfig(s.namespace, opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	queryEmbedding := pgvector.NewVector(embedding)
	rows, err := s.queries.SearchRecords(queryCtx, SearchRecordsParams{
		QueryEmbedding: &queryEmbedding,
		Namespace:      cfg.namespace,
		ResultLimit:    cfg.topK,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return s.rowsToMatches(rows), nil
}

// Delete removes a record if present. Deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := s.queries.DeleteRecord(ctx, id, s.namespace); err != nil {
		return fmt.Errorf("deleting record %q: %w", id, err)
	}
	s.logger.Debug("deleted record", "id", id, "namespace", s.namespace)
	return nil
}

// Count returns the number of records in the store's namespace.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.queries.CountRecords(ctx, s.namespace)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(count), nil
}

// rowsToMatches converts search rows to the business model MatchSet.
func (s *Store) rowsToMatches(rows []SearchRecordsRow) MatchSet {
	matches := make(MatchSet, 0, len(rows))

	for _, row := range rows {
		var metadata map[string]string
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "record_id", row.ID, "error", err)
			metadata = make(map[string]string)
		}

		var createdAt time.Time
		if row.CreatedAt.Valid {
			createdAt = row.CreatedAt.Time
		}

		matches = append(matches, Match{
			Record: Record{
				ID:        row.ID,
				Content:   row.Content,
				Metadata:  metadata,
				CreatedAt: createdAt,
			},
			Similarity: float32(row.Similarity),
		})
	}

	return matches
}
