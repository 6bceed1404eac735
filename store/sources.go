package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceRepository persists DocumentSource rows.
type SourceRepository struct {
	q querier
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{q: pool}
}

func (r *SourceRepository) WithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{q: tx}
}

// Upsert inserts or updates a DocumentSource by its natural key
// (doc_type, source_name). Used at the start of an add job.
func (r *SourceRepository) Upsert(ctx context.Context, s *DocumentSource) error {
	config, err := json.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("store: marshal source config: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO document_sources (doc_type, source_name, version, config, enabled, last_updated)
		VALUES ($1, $2, $3, $4, true, now())
		ON CONFLICT (doc_type, source_name) DO UPDATE SET
			version = EXCLUDED.version,
			config = EXCLUDED.config,
			enabled = true,
			last_updated = now(),
			updated_at = now()
	`, s.DocType, s.SourceName, s.Version, config)
	if err != nil {
		return fmt.Errorf("store: upsert document source: %w", err)
	}
	return nil
}

// UpdateCounters recomputes and writes total_docs / total_tokens for a
// source, called at the end of every successful ingest or remove.
func (r *SourceRepository) UpdateCounters(ctx context.Context, docType, sourceName string, totalDocs, totalTokens int) error {
	_, err := r.q.Exec(ctx, `
		UPDATE document_sources
		SET total_docs = $1, total_tokens = $2, last_updated = now(), updated_at = now()
		WHERE doc_type = $3 AND source_name = $4
	`, totalDocs, totalTokens, docType, sourceName)
	if err != nil {
		return fmt.Errorf("store: update source counters: %w", err)
	}
	return nil
}

// SetEnabled flips the enabled flag, used by soft_delete and re-activation.
func (r *SourceRepository) SetEnabled(ctx context.Context, docType, sourceName string, enabled bool) error {
	_, err := r.q.Exec(ctx, `
		UPDATE document_sources SET enabled = $1, updated_at = now()
		WHERE doc_type = $2 AND source_name = $3
	`, enabled, docType, sourceName)
	if err != nil {
		return fmt.Errorf("store: set source enabled: %w", err)
	}
	return nil
}

// Delete removes the source row entirely (hard remove).
func (r *SourceRepository) Delete(ctx context.Context, docType, sourceName string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM document_sources WHERE doc_type = $1 AND source_name = $2`, docType, sourceName)
	if err != nil {
		return fmt.Errorf("store: delete document source: %w", err)
	}
	return nil
}

// Get fetches a single source by natural key.
func (r *SourceRepository) Get(ctx context.Context, docType, sourceName string) (*DocumentSource, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doc_type, source_name, version, config, enabled, last_updated, total_docs, total_tokens, created_at, updated_at
		FROM document_sources WHERE doc_type = $1 AND source_name = $2
	`, docType, sourceName)
	return scanSource(row)
}

// ListFilter narrows a paginated List call.
type ListFilter struct {
	DocType     string
	NamePattern string // SQL LIKE pattern, empty = no filter
	Page        int
	PageSize    int
}

// List paginates DocumentSource rows ordered by last_updated desc.
func (r *SourceRepository) List(ctx context.Context, f ListFilter) ([]*DocumentSource, int, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where := "WHERE ($1 = '' OR doc_type = $1) AND ($2 = '' OR source_name LIKE $2)"
	rows, err := r.q.Query(ctx, `
		SELECT id, doc_type, source_name, version, config, enabled, last_updated, total_docs, total_tokens, created_at, updated_at
		FROM document_sources `+where+`
		ORDER BY last_updated DESC
		LIMIT $3 OFFSET $4
	`, f.DocType, f.NamePattern, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list document sources: %w", err)
	}
	defer rows.Close()

	var out []*DocumentSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: list document sources: %w", err)
	}

	var total int
	err = r.q.QueryRow(ctx, `SELECT count(*) FROM document_sources `+where, f.DocType, f.NamePattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("store: count document sources: %w", err)
	}

	return out, total, nil
}

func scanSource(row pgx.Row) (*DocumentSource, error) {
	s := &DocumentSource{}
	var config []byte
	if err := row.Scan(&s.ID, &s.DocType, &s.SourceName, &s.Version, &config, &s.Enabled, &s.LastUpdated, &s.TotalDocs, &s.TotalTokens, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("store: scan document source: %w", err)
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &s.Config); err != nil {
			return nil, fmt.Errorf("store: unmarshal source config: %w", err)
		}
	}
	return s, nil
}
