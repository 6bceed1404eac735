package embedding

import (
	"fmt"

	"github.com/wyrecliff/docvault/tokencount"
)

// Chunk is the minimal shape TokenCountBatcher needs from a fetched piece of
// content; fetcher.Chunk and store.Document both satisfy it by field shape,
// but this package stays independent of those packages' types.
type Chunk struct {
	DocPath string
	Content string
}

// TokenCountBatcher groups chunks into batches that stay under a token
// budget, preserving input order, the same accumulate-until-over-budget
// strategy as the teacher's document.TokenCountBatcher.
type TokenCountBatcher struct {
	maxTokens int
	counter   *tokencount.Counter
}

// NewTokenCountBatcher reserves 10% of maxTokens as headroom against
// estimation drift, matching the teacher's default ReservePercentage.
func NewTokenCountBatcher(maxTokens int) (*TokenCountBatcher, error) {
	counter, err := tokencount.Default()
	if err != nil {
		return nil, fmt.Errorf("embedding: load tokenizer: %w", err)
	}
	actual := int(float64(maxTokens) * 0.9)
	if actual <= 0 {
		actual = maxTokens
	}
	return &TokenCountBatcher{maxTokens: actual, counter: counter}, nil
}

// Batch splits chunks into token-bounded groups. A single chunk whose
// content alone exceeds the budget is returned as its own one-item batch
// rather than erroring, since the fetcher's splitter already enforces a
// smaller cap and a single oversized chunk should not block an entire
// ingest.
func (b *TokenCountBatcher) Batch(chunks []Chunk) [][]Chunk {
	var batches [][]Chunk
	var current []Chunk
	currentTokens := 0

	for _, c := range chunks {
		n := b.counter.Count(c.Content)
		if n > b.maxTokens {
			if len(current) > 0 {
				batches = append(batches, current)
				current = nil
				currentTokens = 0
			}
			batches = append(batches, []Chunk{c})
			continue
		}
		if currentTokens+n > b.maxTokens && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, c)
		currentTokens += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
