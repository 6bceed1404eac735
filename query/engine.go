package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/wyrecliff/docvault/embedding"
	"github.com/wyrecliff/docvault/store"
)

// Request is one similarity search request, already validated by the tool
// registry (required query, limit within range).
type Request struct {
	DocType    string
	Text       string
	Limit      int
	SourceName string
	Metadata   map[string]any
	// IncludeDisabled overrides the default enabled=true query filter,
	// surfacing documents from soft-deleted sources too. Per spec.md's
	// resolved Open Question this is an admin-only override, not a
	// general-purpose filter.
	IncludeDisabled bool
}

// Result is the formatted answer returned to a tool caller.
type Result struct {
	Markdown string
	Count    int
}

// Embedder is the subset of embedding.SyncClient the engine needs, narrowed
// to an interface so Engine can be tested against a fake.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (*embedding.Response, error)
}

// SimilaritySearcher is the subset of store.SimilarityRepository the engine
// needs, narrowed to an interface so Engine can be tested against a fake.
type SimilaritySearcher interface {
	Search(ctx context.Context, query []float32, f store.SimilarityQuery) ([]*store.ScoredDocument, error)
}

// Engine answers Query requests, coalescing identical concurrent requests
// through singleflight.Group and caching results for Config.CacheTTL.
// golang.org/x/sync/singleflight is the keyed-promise coalescer the
// specification describes: DoChan makes concurrent callers for the same key
// share one executor. The executor runs on a context detached from its
// caller's cancellation, and each caller stops waiting when its own context
// is done, so a canceled caller does not cancel the executor for the others
// still waiting on it.
type Engine struct {
	similarity SimilaritySearcher
	embedder   Embedder
	cache      *Cache
	group      singleflight.Group
	scoreFloor float64
	formatter  Formatter
}

// NewEngine builds an Engine over the given similarity repository and
// embedder, dropping results scoring below scoreFloor.
func NewEngine(similarity SimilaritySearcher, embedder Embedder, cache *Cache, scoreFloor float64) *Engine {
	return &Engine{similarity: similarity, embedder: embedder, cache: cache, scoreFloor: scoreFloor}
}

// Query answers req, using the cache on a hit and coalescing concurrent
// identical misses through singleflight.
func (e *Engine) Query(ctx context.Context, req Request) (*Result, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}

	filters := req.Metadata
	key := cacheKey(req.DocType, req.Text, req.Limit, filters, req.IncludeDisabled)

	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	ch := e.group.DoChan(key, func() (any, error) {
		result, execErr := e.execute(context.WithoutCancel(ctx), req)
		if execErr != nil {
			return nil, execErr
		}
		e.cache.Set(key, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (e *Engine) execute(ctx context.Context, req Request) (*Result, error) {
	resp, err := e.embedder.Embed(ctx, []string{req.Text})
	if err != nil {
		return nil, fmt.Errorf("query: embed query text: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("query: embedder returned no results")
	}

	docs, err := e.similarity.Search(ctx, resp.Results[0].Embedding, store.SimilarityQuery{
		DocType:         req.DocType,
		SourceName:      req.SourceName,
		Metadata:        req.Metadata,
		Limit:           req.Limit,
		IncludeDisabled: req.IncludeDisabled,
	})
	if err != nil {
		return nil, fmt.Errorf("query: similarity search: %w", err)
	}

	filtered := docs[:0]
	for _, d := range docs {
		if d.Score >= e.scoreFloor {
			filtered = append(filtered, d)
		}
	}

	return &Result{Markdown: e.formatter.Format(filtered), Count: len(filtered)}, nil
}
