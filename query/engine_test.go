package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrecliff/docvault/embedding"
	"github.com/wyrecliff/docvault/store"
)

type fakeEmbedder struct {
	calls atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) (*embedding.Response, error) {
	f.calls.Add(1)
	return &embedding.Response{Results: []embedding.Result{{Embedding: []float32{0.1, 0.2}}}}, nil
}

type fakeSearcher struct {
	calls atomic.Int32
	docs  []*store.ScoredDocument
}

func (f *fakeSearcher) Search(ctx context.Context, query []float32, filter store.SimilarityQuery) ([]*store.ScoredDocument, error) {
	f.calls.Add(1)
	return f.docs, nil
}

func TestEngine_Query_CachesResult(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{docs: []*store.ScoredDocument{
		{Document: store.Document{SourceName: "tokio", DocPath: "a.html", Content: "hello"}, Score: 0.9},
	}}
	e := NewEngine(searcher, embedder, NewCache(10, time.Minute), 0.0)

	res1, err := e.Query(context.Background(), Request{DocType: "rust", Text: "channels", Limit: 5})
	require.NoError(t, err)
	res2, err := e.Query(context.Background(), Request{DocType: "rust", Text: "channels", Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, res1, res2)
	assert.EqualValues(t, 1, embedder.calls.Load(), "second identical query should hit the cache, not re-embed")
	assert.EqualValues(t, 1, searcher.calls.Load())
}

func TestEngine_Query_DropsResultsBelowScoreFloor(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{docs: []*store.ScoredDocument{
		{Document: store.Document{SourceName: "tokio", DocPath: "a.html"}, Score: 0.9},
		{Document: store.Document{SourceName: "tokio", DocPath: "b.html"}, Score: 0.2},
	}}
	e := NewEngine(searcher, embedder, NewCache(10, time.Minute), 0.5)

	res, err := e.Query(context.Background(), Request{DocType: "rust", Text: "channels", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestEngine_Query_DefaultsLimitWhenZero(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{}
	e := NewEngine(searcher, embedder, NewCache(10, time.Minute), 0.0)

	_, err := e.Query(context.Background(), Request{DocType: "rust", Text: "channels"})
	require.NoError(t, err)
}

func TestEngine_Query_DifferentRequestsDoNotShareCache(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{}
	e := NewEngine(searcher, embedder, NewCache(10, time.Minute), 0.0)

	_, err := e.Query(context.Background(), Request{DocType: "rust", Text: "channels", Limit: 5})
	require.NoError(t, err)
	_, err = e.Query(context.Background(), Request{DocType: "python", Text: "channels", Limit: 5})
	require.NoError(t, err)

	assert.EqualValues(t, 2, embedder.calls.Load())
}
