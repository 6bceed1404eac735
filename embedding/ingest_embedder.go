package embedding

import (
	"context"
	"strconv"

	"github.com/wyrecliff/docvault/tokencount"
)

// IngestEmbedder is the job runner's embedding path: it routes through the
// batch API first, since ingestion has no latency requirement and the
// batch endpoint runs at roughly half the synchronous price, then falls
// back to SyncClient for whatever chunks the batch submitter could not
// resolve after its resubmit ceiling (per spec.md §4.5's add-job steps:
// "Batch-embed via C4").
type IngestEmbedder struct {
	batch *BatchSubmitter
	sync  *SyncClient
}

// NewIngestEmbedder builds an IngestEmbedder over batch and its
// synchronous fallback.
func NewIngestEmbedder(batch *BatchSubmitter, sync *SyncClient) *IngestEmbedder {
	return &IngestEmbedder{batch: batch, sync: sync}
}

// Embed satisfies jobrunner.Embedder: given texts, it returns one Result
// per input in the same order, resolving as many as possible through the
// batch path before falling back to the synchronous client for the rest.
func (e *IngestEmbedder) Embed(ctx context.Context, texts []string) (*Response, error) {
	if len(texts) == 0 {
		return &Response{}, nil
	}

	chunks := make([]BatchChunk, len(texts))
	for i, t := range texts {
		chunks[i] = BatchChunk{DocPath: strconv.Itoa(i), Content: t}
	}

	results, unresolved, err := e.batch.Run(ctx, chunks)
	if err != nil {
		return nil, err
	}

	out := &Response{Results: make([]Result, len(texts))}
	counter, counterErr := tokencount.Default()

	for _, r := range results {
		idx, convErr := strconv.Atoi(r.DocPath)
		if convErr != nil || idx < 0 || idx >= len(out.Results) {
			continue
		}
		tokens := 0
		if counterErr == nil {
			tokens = counter.Count(texts[idx])
		}
		out.Results[idx] = Result{Embedding: r.Embedding, TokenCount: tokens}
	}

	if len(unresolved) > 0 {
		fallbackTexts := make([]string, len(unresolved))
		fallbackIdx := make([]int, len(unresolved))
		for i, c := range unresolved {
			idx, _ := strconv.Atoi(c.DocPath)
			fallbackIdx[i] = idx
			fallbackTexts[i] = c.Content
		}
		resp, fallbackErr := e.sync.Embed(ctx, fallbackTexts)
		if fallbackErr != nil {
			return nil, fallbackErr
		}
		for i, idx := range fallbackIdx {
			if idx >= 0 && idx < len(out.Results) {
				out.Results[idx] = resp.Results[i]
			}
		}
	}

	total := 0
	for _, r := range out.Results {
		total += r.TokenCount
	}
	out.TotalUsage = total
	return out, nil
}
