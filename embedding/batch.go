package embedding

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/wyrecliff/docvault/docerr"
)

// BatchChunk is one unit of work submitted through the batch API: docPath
// doubles as the JSONL line's custom_id so a result line can be paired back
// to its source chunk without a side table.
type BatchChunk struct {
	DocPath string
	Content string
}

// BatchResult is one resolved embedding, keyed the same way as BatchChunk.
type BatchResult struct {
	DocPath   string
	Embedding []float32
	Err       error
}

// BatchSubmitterConfig configures polling cadence and retry ceilings for the
// batch path.
type BatchSubmitterConfig struct {
	Model           string
	Dimensions      int
	MaxLines        int // spec.md boundary: 20,000 lines per submission
	PollMinInterval time.Duration
	PollMaxInterval time.Duration
	MaxResubmit     int
}

func (c BatchSubmitterConfig) withDefaults() BatchSubmitterConfig {
	if c.MaxLines <= 0 {
		c.MaxLines = 20_000
	}
	if c.PollMinInterval <= 0 {
		c.PollMinInterval = 10 * time.Second
	}
	if c.PollMaxInterval <= 0 {
		c.PollMaxInterval = 5 * time.Minute
	}
	return c
}

// BatchSubmitter drives OpenAI's batch embedding endpoint: it writes a
// line-delimited JSONL artifact, uploads it, submits a batch job, polls to
// completion, and pairs every result line's custom_id back to its source
// chunk. Chunks left unresolved after MaxResubmit attempts are returned for
// the caller to route through SyncClient.Embed instead.
type BatchSubmitter struct {
	cfg     BatchSubmitterConfig
	client  *openai.Client
	tracker *CostTracker
}

// NewBatchSubmitter builds a submitter over the same client wiring pattern
// as the teacher's Api type (API key appended last so it always wins).
func NewBatchSubmitter(cfg BatchSubmitterConfig, apiKey string, tracker *CostTracker, opts ...option.RequestOption) *BatchSubmitter {
	cfg = cfg.withDefaults()
	options := append(opts, option.WithAPIKey(apiKey))
	client := openai.NewClient(options...)
	return &BatchSubmitter{cfg: cfg, client: &client, tracker: tracker}
}

// Chunked splits chunks into groups of at most maxLines, preserving order.
// Exposed so callers can report how many separate batch submissions an
// oversized source required.
func Chunked(chunks []BatchChunk, maxLines int) [][]BatchChunk {
	if maxLines <= 0 {
		return [][]BatchChunk{chunks}
	}
	var out [][]BatchChunk
	for len(chunks) > maxLines {
		out = append(out, chunks[:maxLines])
		chunks = chunks[maxLines:]
	}
	if len(chunks) > 0 {
		out = append(out, chunks)
	}
	return out
}

type batchLine struct {
	CustomID string          `json:"custom_id"`
	Method   string          `json:"method"`
	URL      string          `json:"url"`
	Body     json.RawMessage `json:"body"`
}

type embeddingBody struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// Run submits one or more batch jobs for chunks (splitting at MaxLines),
// polls each to completion, and returns every resolved result plus the
// chunks that need the synchronous fallback after MaxResubmit retries.
func (s *BatchSubmitter) Run(ctx context.Context, chunks []BatchChunk) (results []BatchResult, unresolved []BatchChunk, err error) {
	for _, group := range Chunked(chunks, s.cfg.MaxLines) {
		res, unres, runErr := s.runOne(ctx, group)
		if runErr != nil {
			return results, append(unresolved, group...), runErr
		}
		results = append(results, res...)
		unresolved = append(unresolved, unres...)
	}
	return results, unresolved, nil
}

func (s *BatchSubmitter) runOne(ctx context.Context, chunks []BatchChunk) ([]BatchResult, []BatchChunk, error) {
	remaining := chunks
	var allResults []BatchResult

	for attempt := 0; attempt <= s.cfg.MaxResubmit; attempt++ {
		if len(remaining) == 0 {
			break
		}
		results, failed, err := s.submitAndPoll(ctx, remaining)
		allResults = append(allResults, results...)
		if err != nil {
			slog.Warn("batch submission failed, will resubmit remainder", "attempt", attempt, "err", err, "remaining", len(remaining))
			continue
		}
		if len(failed) == 0 {
			return allResults, nil, nil
		}
		remaining = failed
	}
	return allResults, remaining, nil
}

func (s *BatchSubmitter) submitAndPoll(ctx context.Context, chunks []BatchChunk) ([]BatchResult, []BatchChunk, error) {
	artifact, err := s.buildArtifact(chunks)
	if err != nil {
		return nil, chunks, err
	}

	file, err := s.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(artifact), "batch-input.jsonl", "application/jsonl"),
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		return nil, chunks, docerr.Wrap(docerr.UpstreamUnavailable, "upload batch input file", err)
	}

	batch, err := s.client.Batches.New(ctx, openai.BatchNewParams{
		InputFileID:      file.ID,
		Endpoint:         openai.BatchNewParamsEndpointV1Embeddings,
		CompletionWindow: openai.BatchNewParamsCompletionWindow24h,
	})
	if err != nil {
		return nil, chunks, docerr.Wrap(docerr.UpstreamUnavailable, "create batch job", err)
	}

	batch, err = s.poll(ctx, batch.ID)
	if err != nil {
		return nil, chunks, err
	}

	byCustomID := make(map[string]BatchChunk, len(chunks))
	for _, c := range chunks {
		byCustomID[c.DocPath] = c
	}

	var results []BatchResult
	var failed []BatchChunk
	seen := make(map[string]bool, len(chunks))

	if batch.OutputFileID != "" {
		lines, err := s.downloadLines(ctx, batch.OutputFileID)
		if err != nil {
			return nil, chunks, err
		}
		resultLines, tokens := parseOutputLines(lines)
		if s.tracker != nil && tokens > 0 {
			s.tracker.RecordBatch(tokens)
		}
		for _, r := range resultLines {
			seen[r.DocPath] = true
			results = append(results, r)
		}
	}
	if batch.ErrorFileID != "" {
		lines, err := s.downloadLines(ctx, batch.ErrorFileID)
		if err == nil {
			for _, id := range parseErrorCustomIDs(lines) {
				seen[id] = true
				if c, ok := byCustomID[id]; ok {
					failed = append(failed, c)
				}
			}
		}
	}

	for _, c := range chunks {
		if !seen[c.DocPath] {
			failed = append(failed, c)
		}
	}

	return results, failed, nil
}

func (s *BatchSubmitter) poll(ctx context.Context, batchID string) (*openai.Batch, error) {
	interval := s.cfg.PollMinInterval
	for {
		batch, err := s.client.Batches.Get(ctx, batchID)
		if err != nil {
			return nil, docerr.Wrap(docerr.UpstreamUnavailable, "poll batch status", err)
		}
		switch batch.Status {
		case openai.BatchStatusCompleted:
			return batch, nil
		case openai.BatchStatusFailed, openai.BatchStatusExpired, openai.BatchStatusCancelled:
			return batch, docerr.New(docerr.UpstreamUnavailable, fmt.Sprintf("batch %s ended in status %s", batchID, batch.Status))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		interval *= 2
		if interval > s.cfg.PollMaxInterval {
			interval = s.cfg.PollMaxInterval
		}
	}
}

func (s *BatchSubmitter) downloadLines(ctx context.Context, fileID string) ([][]byte, error) {
	resp, err := s.client.Files.Content(ctx, fileID)
	if err != nil {
		return nil, docerr.Wrap(docerr.UpstreamUnavailable, "download batch output file", err)
	}
	defer resp.Body.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("embedding: read batch output: %w", err)
	}
	return lines, nil
}

func (s *BatchSubmitter) buildArtifact(chunks []BatchChunk) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		body, err := json.Marshal(embeddingBody{Model: s.cfg.Model, Input: c.Content, Dimensions: s.cfg.Dimensions})
		if err != nil {
			return nil, fmt.Errorf("embedding: marshal batch line body: %w", err)
		}
		line := batchLine{
			CustomID: c.DocPath,
			Method:   "POST",
			URL:      "/v1/embeddings",
			Body:     body,
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("embedding: marshal batch line: %w", err)
		}
	}
	return buf.Bytes(), nil
}

type outputLine struct {
	CustomID string `json:"custom_id"`
	Response struct {
		Body struct {
			Data []struct {
				Embedding []float64 `json:"embedding"`
			} `json:"data"`
			Usage struct {
				TotalTokens int `json:"total_tokens"`
			} `json:"usage"`
		} `json:"body"`
	} `json:"response"`
}

type errorLine struct {
	CustomID string `json:"custom_id"`
}

func parseOutputLines(lines [][]byte) ([]BatchResult, int) {
	var results []BatchResult
	totalTokens := 0
	for _, raw := range lines {
		var ol outputLine
		if err := json.Unmarshal(raw, &ol); err != nil {
			continue
		}
		if len(ol.Response.Body.Data) == 0 {
			continue
		}
		embedding := make([]float32, len(ol.Response.Body.Data[0].Embedding))
		for i, v := range ol.Response.Body.Data[0].Embedding {
			embedding[i] = float32(v)
		}
		results = append(results, BatchResult{DocPath: ol.CustomID, Embedding: embedding})
		totalTokens += ol.Response.Body.Usage.TotalTokens
	}
	return results, totalTokens
}

func parseErrorCustomIDs(lines [][]byte) []string {
	var ids []string
	for _, raw := range lines {
		var el errorLine
		if err := json.Unmarshal(raw, &el); err != nil {
			continue
		}
		ids = append(ids, el.CustomID)
	}
	return ids
}
