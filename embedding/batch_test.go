package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunked_SplitsAtMaxLines(t *testing.T) {
	chunks := make([]BatchChunk, 5)
	for i := range chunks {
		chunks[i] = BatchChunk{DocPath: string(rune('a' + i))}
	}

	groups := Chunked(chunks, 2)

	assert.Len(t, groups, 3)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 2)
	assert.Len(t, groups[2], 1)
}

func TestChunked_UnderLimitIsOneGroup(t *testing.T) {
	chunks := []BatchChunk{{DocPath: "a"}, {DocPath: "b"}}
	groups := Chunked(chunks, 20_000)
	assert.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestChunked_ZeroMaxLinesReturnsSingleGroup(t *testing.T) {
	chunks := []BatchChunk{{DocPath: "a"}}
	groups := Chunked(chunks, 0)
	assert.Len(t, groups, 1)
}

func TestParseOutputLines_ExtractsEmbeddingsAndUsage(t *testing.T) {
	lines := [][]byte{
		[]byte(`{"custom_id":"doc-a","response":{"body":{"data":[{"embedding":[0.1,0.2]}],"usage":{"total_tokens":12}}}}`),
		[]byte(`{"custom_id":"doc-b","response":{"body":{"data":[{"embedding":[0.3,0.4]}],"usage":{"total_tokens":8}}}}`),
		[]byte(`not json`),
	}

	results, totalTokens := parseOutputLines(lines)

	assert.Len(t, results, 2)
	assert.Equal(t, "doc-a", results[0].DocPath)
	assert.Equal(t, []float32{0.1, 0.2}, results[0].Embedding)
	assert.Equal(t, 20, totalTokens)
}

func TestParseErrorCustomIDs_CollectsIDs(t *testing.T) {
	lines := [][]byte{
		[]byte(`{"custom_id":"doc-a"}`),
		[]byte(`{"custom_id":"doc-b"}`),
	}
	ids := parseErrorCustomIDs(lines)
	assert.Equal(t, []string{"doc-a", "doc-b"}, ids)
}

func TestBatchSubmitterConfig_WithDefaults(t *testing.T) {
	cfg := BatchSubmitterConfig{}.withDefaults()
	assert.Equal(t, 20_000, cfg.MaxLines)
	assert.Greater(t, cfg.PollMinInterval.Seconds(), 0.0)
	assert.Greater(t, cfg.PollMaxInterval.Seconds(), cfg.PollMinInterval.Seconds())
}

func TestBuildArtifact_OneLinePerChunk(t *testing.T) {
	s := &BatchSubmitter{cfg: BatchSubmitterConfig{Model: "text-embedding-3-large"}.withDefaults()}
	chunks := []BatchChunk{
		{DocPath: "doc-a", Content: "hello"},
		{DocPath: "doc-b", Content: "world"},
	}

	artifact, err := s.buildArtifact(chunks)

	assert.NoError(t, err)
	assert.Contains(t, string(artifact), `"custom_id":"doc-a"`)
	assert.Contains(t, string(artifact), `"custom_id":"doc-b"`)
	assert.Contains(t, string(artifact), `/v1/embeddings`)
}
