package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DocumentRepository persists Document rows. All writes go through the
// natural key (doc_type, source_name, doc_path); UpsertMany relies on
// ON CONFLICT to make re-ingest idempotent (spec.md §4.5's "unique-violation
// is a normal control-flow signal" is realized here as an upsert rather than
// an insert-then-catch).
type DocumentRepository struct {
	q querier
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repository
// methods can run standalone or inside Store's WithTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// vectorParam converts a nullable embedding into a value pgx/pgvector-go can
// bind: nil for an ungenerated embedding (backfilled later), otherwise a
// pgvector.Vector.
func vectorParam(embedding []float32) any {
	if embedding == nil {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{q: pool}
}

// WithTx returns a repository bound to an in-flight transaction instead of
// the pool, for use inside Pool.WithTx callbacks.
func (r *DocumentRepository) WithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{q: tx}
}

// UpsertMany inserts or updates documents by natural key in a single
// round-trip batch. A row whose content is unchanged and which already has
// an embedding is left untouched; a content change always overwrites, and a
// row still lacking an embedding takes the new one.
func (r *DocumentRepository) UpsertMany(ctx context.Context, docs []*Document) error {
	batch := &pgx.Batch{}
	for _, d := range docs {
		metadata, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO documents (doc_type, source_name, doc_path, content, metadata, embedding, token_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (doc_type, source_name, doc_path) DO UPDATE SET
				content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				embedding = COALESCE(EXCLUDED.embedding, documents.embedding),
				token_count = EXCLUDED.token_count,
				updated_at = now()
			WHERE documents.content IS DISTINCT FROM EXCLUDED.content OR documents.embedding IS NULL
		`, d.DocType, d.SourceName, d.DocPath, d.Content, metadata, vectorParam(d.Embedding), d.TokenCount)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	for range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("store: upsert document: %w", err)
		}
	}
	return nil
}

// DeleteBySource removes every document matching (doc_type, source_name).
func (r *DocumentRepository) DeleteBySource(ctx context.Context, docType, sourceName string) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM documents WHERE doc_type = $1 AND source_name = $2`, docType, sourceName)
	if err != nil {
		return 0, fmt.Errorf("store: delete documents for source: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteBySourceLimit removes at most limit rows matching (doc_type,
// source_name), for callers that need to chunk a very large source's delete
// across several shorter transactions instead of one long-lived one.
func (r *DocumentRepository) DeleteBySourceLimit(ctx context.Context, docType, sourceName string, limit int) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM documents WHERE id IN (
			SELECT id FROM documents WHERE doc_type = $1 AND source_name = $2 LIMIT $3
		)
	`, docType, sourceName, limit)
	if err != nil {
		return 0, fmt.Errorf("store: chunked delete documents for source: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountBySource returns the committed document count and total token count
// for a source, used to recompute DocumentSource aggregate counters.
func (r *DocumentRepository) CountBySource(ctx context.Context, docType, sourceName string) (docs int, tokens int, err error) {
	row := r.q.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(token_count), 0)
		FROM documents WHERE doc_type = $1 AND source_name = $2
	`, docType, sourceName)
	err = row.Scan(&docs, &tokens)
	if err != nil {
		return 0, 0, fmt.Errorf("store: count documents for source: %w", err)
	}
	return docs, tokens, nil
}

// ByID fetches a single document by its surrogate id.
func (r *DocumentRepository) ByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doc_type, source_name, doc_path, content, metadata, embedding, token_count, created_at, updated_at
		FROM documents WHERE id = $1
	`, id)
	return scanDocument(row)
}

func scanDocument(row pgx.Row) (*Document, error) {
	d := &Document{}
	var metadata []byte
	var embedding *pgvector.Vector
	if err := row.Scan(&d.ID, &d.DocType, &d.SourceName, &d.DocPath, &d.Content, &metadata, &embedding, &d.TokenCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, fmt.Errorf("store: scan document: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal document metadata: %w", err)
		}
	}
	if embedding != nil {
		d.Embedding = embedding.Slice()
	}
	return d, nil
}
