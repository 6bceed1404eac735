package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SimilarityQuery narrows a similarity scan to a doc type and, optionally,
// a single source and a metadata containment filter. By default only
// documents belonging to an enabled source are returned, matching spec.md's
// resolved Open Question that queries filter on enabled=true unless an
// admin explicitly asks to see soft-deleted sources too.
type SimilarityQuery struct {
	DocType         string
	SourceName      string         // empty = all sources of DocType
	Metadata        map[string]any // nil = no metadata filter
	Limit           int
	IncludeDisabled bool // true = also return documents from disabled (soft-deleted) sources
}

// ScoredDocument pairs a Document with its cosine similarity to the query
// embedding (1 - cosine distance, so 1.0 is an exact match).
type ScoredDocument struct {
	Document
	Score float64
}

// SimilarityRepository runs the cosine-similarity scan over documents.
// The embedding column has no ANN index: pgvector's ivfflat/hnsw index types
// cap out at 2000 dimensions and the configured embedding model produces
// 3072-dimensional vectors, so every query is a sequential scan. DocType,
// SourceName, and the metadata GIN index keep the scanned row count bounded
// in practice.
type SimilarityRepository struct {
	q querier
}

func NewSimilarityRepository(pool *pgxpool.Pool) *SimilarityRepository {
	return &SimilarityRepository{q: pool}
}

// Search returns the documents whose embedding is closest to query, ordered
// by descending score with doc_path as a stable tiebreaker. Rows with a NULL
// embedding (not yet backfilled) are excluded.
func (r *SimilarityRepository) Search(ctx context.Context, query []float32, f SimilarityQuery) ([]*ScoredDocument, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	v := pgvector.NewVector(query)

	var metadataFilter []byte
	if len(f.Metadata) > 0 {
		b, err := json.Marshal(f.Metadata)
		if err != nil {
			return nil, fmt.Errorf("store: marshal metadata filter: %w", err)
		}
		metadataFilter = b
	}

	rows, err := r.q.Query(ctx, `
		SELECT d.id, d.doc_type, d.source_name, d.doc_path, d.content, d.metadata, d.embedding, d.token_count, d.created_at, d.updated_at,
		       1 - (d.embedding <=> $1) AS score
		FROM documents d
		JOIN document_sources s ON s.doc_type = d.doc_type AND s.source_name = d.source_name
		WHERE d.doc_type = $2
		  AND ($3 = '' OR d.source_name = $3)
		  AND ($4::jsonb IS NULL OR d.metadata @> $4::jsonb)
		  AND d.embedding IS NOT NULL
		  AND ($5 OR s.enabled)
		ORDER BY score DESC, d.doc_path ASC
		LIMIT $6
	`, &v, f.DocType, f.SourceName, metadataFilter, f.IncludeDisabled, limit)
	if err != nil {
		return nil, fmt.Errorf("store: similarity search: %w", err)
	}
	defer rows.Close()

	var out []*ScoredDocument
	for rows.Next() {
		sd, err := scanScoredDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sd)
	}
	return out, rows.Err()
}

func scanScoredDocument(row pgx.Row) (*ScoredDocument, error) {
	sd := &ScoredDocument{}
	var metadata []byte
	var embedding *pgvector.Vector
	if err := row.Scan(&sd.ID, &sd.DocType, &sd.SourceName, &sd.DocPath, &sd.Content, &metadata, &embedding, &sd.TokenCount, &sd.CreatedAt, &sd.UpdatedAt, &sd.Score); err != nil {
		return nil, fmt.Errorf("store: scan scored document: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &sd.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal document metadata: %w", err)
		}
	}
	if embedding != nil {
		sd.Embedding = embedding.Slice()
	}
	return sd, nil
}
