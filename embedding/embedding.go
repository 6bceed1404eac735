// Package embedding wraps the configured embedding provider behind a
// synchronous path and a cost-optimized batch path, both gated through
// ratelimit.Gate so a job runner worker can never outrun the provider's
// published request and token limits.
package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/wyrecliff/docvault/docerr"
	"github.com/wyrecliff/docvault/ratelimit"
	"github.com/wyrecliff/docvault/retry"
	"github.com/wyrecliff/docvault/tokencount"
)

// Config bounds the embedding provider's credentials and model selection.
type Config struct {
	APIKey      string
	Model       string
	Dimensions  int
	HTTPTimeout time.Duration
	MaxRetries  int
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	return c
}

// Result pairs one input's embedding with its billed token share.
type Result struct {
	Embedding  []float32
	TokenCount int
}

// Response is the specialized, non-generic counterpart of the teacher's
// generic embedding.Response[O]: docvault has exactly one provider, so the
// type parameter buys nothing but indirection. One Result per input, in
// the same order as the request.
type Response struct {
	Results    []Result
	TotalUsage int
}

// SyncClient is the single-shot embedding path: gated by the rate limiter,
// used by ingestion's synchronous fallback and by the query engine, which
// cannot afford the batch API's minutes-to-hours turnaround.
type SyncClient struct {
	cfg     Config
	client  *openai.Client
	gate    *ratelimit.Gate
	tracker *CostTracker
}

// NewSyncClient builds a client over the same openai.Client wiring the
// teacher's Api type uses, with the API key appended last so it always wins
// over any caller-supplied option.
func NewSyncClient(cfg Config, gate *ratelimit.Gate, tracker *CostTracker, opts ...option.RequestOption) *SyncClient {
	cfg = cfg.withDefaults()
	options := append(opts, option.WithAPIKey(cfg.APIKey))
	client := openai.NewClient(options...)
	return &SyncClient{cfg: cfg, client: &client, gate: gate, tracker: tracker}
}

// Embed requests embeddings for texts in a single API call, respecting both
// the per-minute request limit and the per-minute token limit before
// sending.
func (c *SyncClient) Embed(ctx context.Context, texts []string) (*Response, error) {
	if len(texts) == 0 {
		return &Response{}, nil
	}

	estimatedTokens := estimateTokens(texts)

	if err := c.gate.Acquire(ctx, ratelimit.TargetEmbeddingRPM, 1); err != nil {
		return nil, err
	}
	if estimatedTokens > 0 {
		if err := c.gate.Acquire(ctx, ratelimit.TargetEmbeddingTPM, estimatedTokens); err != nil {
			return nil, err
		}
	}

	params := openai.EmbeddingNewParams{
		Model: c.cfg.Model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	if c.cfg.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(c.cfg.Dimensions))
	}

	policy := retry.Policy{MaxAttempts: c.cfg.MaxRetries, Base: time.Second, Max: 20 * time.Second}
	var apiResp *openai.CreateEmbeddingResponse
	err := retry.Do(ctx, policy, func(attempt int) (bool, error) {
		resp, callErr := c.client.Embeddings.New(ctx, params)
		if callErr == nil {
			apiResp = resp
			return false, nil
		}

		var apiErr *openai.Error
		if errors.As(callErr, &apiErr) {
			switch {
			case apiErr.StatusCode == 429:
				c.gate.Penalize(ratelimit.TargetEmbeddingRPM)
				c.gate.Penalize(ratelimit.TargetEmbeddingTPM)
				return true, callErr
			case apiErr.StatusCode >= 500:
				return true, callErr
			}
			return false, callErr
		}
		return true, callErr
	})
	if err != nil {
		return nil, docerr.Wrap(docerr.UpstreamUnavailable, "embedding request failed after retries", err)
	}

	out := &Response{Results: make([]Result, len(texts)), TotalUsage: int(apiResp.Usage.TotalTokens)}
	perInput := int(apiResp.Usage.TotalTokens)
	if len(texts) > 0 {
		perInput /= len(texts)
	}
	for _, d := range apiResp.Data {
		if d.Index < 0 || int(d.Index) >= len(out.Results) {
			continue
		}
		embedding := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			embedding[i] = float32(v)
		}
		out.Results[d.Index] = Result{Embedding: embedding, TokenCount: perInput}
	}
	if c.tracker != nil {
		c.tracker.RecordSync(int(apiResp.Usage.TotalTokens))
	}
	return out, nil
}

func estimateTokens(texts []string) int {
	counter, err := tokencount.Default()
	if err != nil {
		return 0
	}
	total := 0
	for _, t := range texts {
		total += counter.Count(t)
	}
	return total
}
