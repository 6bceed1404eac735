// Package jobrunner executes queued ingest and remove jobs against the
// store, fetcher, and embedder, and runs the background maintenance tasks
// (lease reaping, job retention purge, cache sweeping) that keep the job
// table and query cache healthy without operator intervention.
package jobrunner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/wyrecliff/docvault/fetcher"
	"github.com/wyrecliff/docvault/store"
)

// documentBatchSize bounds how many documents are upserted per transaction
// during an add job, so a large source never holds one transaction open for
// its entire ingest.
const documentBatchSize = 500

// removeChunkThreshold is the row count above which executeRemove deletes in
// chunked transactions instead of one, so a very large source's delete
// doesn't hold a single long-lived transaction.
const removeChunkThreshold = 50_000

// executeAdd implements spec.md's add pipeline: upsert the source row,
// stream chunks from the fetcher, batch them for embedding, upsert documents
// in bounded transactions, then recompute the source's aggregate counters.
func (r *Runner) executeAdd(ctx context.Context, job *store.Job) error {
	src := &store.DocumentSource{
		DocType:    job.DocType,
		SourceName: job.SourceName,
		Version:    "latest",
		Config:     map[string]any{},
	}
	if err := r.store.Sources.Upsert(ctx, src); err != nil {
		return fmt.Errorf("jobrunner: upsert source: %w", err)
	}

	chunks, err := r.fetcher.FetchSource(ctx, job.DocType, job.SourceName, src.Version)
	if err != nil {
		return fmt.Errorf("jobrunner: fetch source: %w", err)
	}

	pending := make([]fetcher.Chunk, 0, documentBatchSize)
	processed := 0
	total := 0

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := r.embedAndUpsert(ctx, job, pending); err != nil {
			return err
		}
		processed += len(pending)
		pending = pending[:0]
		if total > 0 {
			progress := processed * 100 / total
			if progress > 100 {
				progress = 100
			}
			if err := r.store.Jobs.SetProgress(ctx, job.ID, progress); err != nil {
				slog.Warn("set job progress failed", "job_id", job.ID, "err", err)
			}
		}
		return nil
	}

	for chunk := range chunks {
		pending = append(pending, chunk)
		total++
		if len(pending) >= documentBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	docs, tokens, err := r.store.Documents.CountBySource(ctx, job.DocType, job.SourceName)
	if err != nil {
		return fmt.Errorf("jobrunner: count documents after ingest: %w", err)
	}
	if err := r.store.Sources.UpdateCounters(ctx, job.DocType, job.SourceName, docs, tokens); err != nil {
		return fmt.Errorf("jobrunner: update source counters: %w", err)
	}
	return nil
}

// embedAndUpsert batches chunks through the embedder, attaches the resulting
// embeddings, and upserts the batch in a single transaction.
func (r *Runner) embedAndUpsert(ctx context.Context, job *store.Job, chunks []fetcher.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	resp, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("jobrunner: embed chunk batch: %w", err)
	}

	docs := make([]*store.Document, len(chunks))
	for i, c := range chunks {
		var emb []float32
		tokenCount := c.TokenCount
		if i < len(resp.Results) {
			emb = resp.Results[i].Embedding
			if resp.Results[i].TokenCount > 0 {
				tokenCount = resp.Results[i].TokenCount
			}
		}
		docs[i] = &store.Document{
			DocType:    job.DocType,
			SourceName: job.SourceName,
			DocPath:    c.DocPath,
			Content:    c.Content,
			Metadata:   c.Metadata,
			Embedding:  emb,
			TokenCount: tokenCount,
		}
	}

	return r.store.Pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return r.store.Documents.WithTx(tx).UpsertMany(ctx, docs)
	})
}

// executeRemove implements spec.md's remove pipeline: delete every document
// for the source (chunked above removeChunkThreshold rows), then either
// drop the source row or, for soft_delete, flip it disabled and keep it.
func (r *Runner) executeRemove(ctx context.Context, job *store.Job, softDelete bool) error {
	if softDelete {
		if err := r.store.Sources.SetEnabled(ctx, job.DocType, job.SourceName, false); err != nil {
			return fmt.Errorf("jobrunner: soft-delete source: %w", err)
		}
		return nil
	}

	docs, _, err := r.store.Documents.CountBySource(ctx, job.DocType, job.SourceName)
	if err != nil {
		return fmt.Errorf("jobrunner: count documents before remove: %w", err)
	}

	if docs <= removeChunkThreshold {
		if _, err := r.store.Documents.DeleteBySource(ctx, job.DocType, job.SourceName); err != nil {
			return fmt.Errorf("jobrunner: delete documents: %w", err)
		}
	} else {
		const chunk = 5_000
		deleted := 0
		for deleted < docs {
			n, err := r.store.Documents.DeleteBySourceLimit(ctx, job.DocType, job.SourceName, chunk)
			if err != nil {
				return fmt.Errorf("jobrunner: chunked delete documents: %w", err)
			}
			if n == 0 {
				break
			}
			deleted += int(n)
			progress := deleted * 100 / docs
			if progress > 100 {
				progress = 100
			}
			if err := r.store.Jobs.SetProgress(ctx, job.ID, progress); err != nil {
				slog.Warn("set job progress failed", "job_id", job.ID, "err", err)
			}
		}
	}

	if err := r.store.Sources.Delete(ctx, job.DocType, job.SourceName); err != nil {
		return fmt.Errorf("jobrunner: delete source row: %w", err)
	}
	return nil
}
