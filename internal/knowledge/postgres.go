package knowledge

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the common interface satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the PostgreSQL implementation of Querier over the records
// table created by db/migrations.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries instance over a pool or transaction.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const upsertRecordSQL = `INSERT INTO records (id, namespace, content, embedding, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	ON CONFLICT (id, namespace) DO UPDATE SET
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata,
		created_at = EXCLUDED.created_at`

// UpsertRecord inserts or fully replaces the record at (id, namespace).
func (q *Queries) UpsertRecord(ctx context.Context, arg UpsertRecordParams) error {
	var createdAt any
	if arg.CreatedAt.Valid {
		createdAt = arg.CreatedAt
	}
	_, err := q.db.Exec(ctx, upsertRecordSQL,
		arg.ID, arg.Namespace, arg.Content, arg.Embedding, arg.Metadata, createdAt)
	return err
}

const searchRecordsSQL = `SELECT id, content, metadata, created_at,
		1 - (embedding <=> $1) AS similarity
	FROM records
	WHERE namespace = $2
	ORDER BY embedding <=> $1
	LIMIT $3`

// SearchRecords performs a cosine similarity search within a namespace.
func (q *Queries) SearchRecords(ctx context.Context, arg SearchRecordsParams) ([]SearchRecordsRow, error) {
	rows, err := q.db.Query(ctx, searchRecordsSQL,
		arg.QueryEmbedding, arg.Namespace, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchRecordsRow
	for rows.Next() {
		var row SearchRecordsRow
		if err := rows.Scan(&row.ID, &row.Content, &row.Metadata, &row.CreatedAt, &row.Similarity); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// DeleteRecord deletes a record by id. Absent ids are not an error.
func (q *Queries) DeleteRecord(ctx context.Context, id, namespace string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM records WHERE id = $1 AND namespace = $2`, id, namespace)
	return err
}

// CountRecords counts records in a namespace.
func (q *Queries) CountRecords(ctx context.Context, namespace string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE namespace = $1`, namespace).Scan(&count)
	return count, err
}
