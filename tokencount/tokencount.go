// Package tokencount counts tokens the way the embedding provider will bill
// them, using the same cl100k_base byte-pair encoding OpenAI's
// text-embedding-3 family uses.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter wraps a tiktoken encoding. The encoding is loaded once and shared
// across calls; tiktoken.Tiktoken is safe for concurrent use.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

var (
	defaultOnce    sync.Once
	defaultCounter *Counter
	defaultErr     error
)

// New loads the named tiktoken encoding (e.g. "cl100k_base").
func New(encodingName string) (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &Counter{encoding: enc}, nil
}

// Default returns a process-wide Counter using cl100k_base, the encoding
// used by the configured embedding model family.
func Default() (*Counter, error) {
	defaultOnce.Do(func() {
		defaultCounter, defaultErr = New("cl100k_base")
	})
	return defaultCounter, defaultErr
}

// Count returns the number of tokens text would encode to.
func (c *Counter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// Truncate returns the prefix of text that encodes to at most maxTokens
// tokens, decoding back to text so the result stays valid UTF-8.
func (c *Counter) Truncate(text string, maxTokens int) string {
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoding.Decode(tokens[:maxTokens])
}
