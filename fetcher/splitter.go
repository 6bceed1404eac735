package fetcher

import (
	"strings"

	"github.com/wyrecliff/docvault/tokencount"
)

// minEmbedTokens mirrors the teacher's token splitter's MinEmbedLength: a
// fragment this short carries no useful signal to embed and is dropped.
const minEmbedTokens = 3

// splitter breaks an over-long section into chunks no longer than
// tokenCap tokens, trying to cut on sentence or paragraph boundaries the
// same way the teacher's TokenSplitter prefers the last punctuation mark in
// the window over a hard cut.
type splitter struct {
	tokenCap int
	counter  *tokencount.Counter
}

func newSplitter(tokenCap int) *splitter {
	counter, err := tokencount.Default()
	if err != nil {
		counter = nil
	}
	return &splitter{tokenCap: tokenCap, counter: counter}
}

func (s *splitter) split(sec section) []Chunk {
	if s.counter == nil {
		return []Chunk{sectionToChunk(sec, 0)}
	}

	total := s.counter.Count(sec.content)
	if total <= s.tokenCap {
		return []Chunk{sectionToChunk(sec, total)}
	}

	var chunks []Chunk
	remaining := sec.content
	part := 0
	for strings.TrimSpace(remaining) != "" {
		window := s.counter.Truncate(remaining, s.tokenCap)
		cut := lastBoundary(window)
		if cut <= 0 {
			cut = len(window)
		}
		piece := strings.TrimSpace(window[:cut])
		remaining = strings.TrimSpace(remaining[cut:])

		if s.counter.Count(piece) >= minEmbedTokens {
			partSec := sec
			partSec.content = piece
			chunks = append(chunks, sectionToChunk(partSec, s.counter.Count(piece)))
			part++
		}
	}
	return chunks
}

// lastBoundary finds the best place to cut text: the last sentence-ending
// punctuation mark, falling back to the last newline, falling back to the
// last space so a cut never lands inside a word.
func lastBoundary(text string) int {
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.LastIndex(text, sep); idx > len(text)/2 {
			return idx + len(sep)
		}
	}
	if idx := strings.LastIndex(text, " "); idx > 0 {
		return idx + 1
	}
	return len(text)
}

func sectionToChunk(sec section, tokenCount int) Chunk {
	docPath := sec.docPath
	if sec.heading != "" {
		docPath = sec.docPath + "#" + slugify(sec.heading)
	}
	return Chunk{
		DocPath:    docPath,
		Content:    sec.content,
		Metadata:   sec.metadata,
		TokenCount: tokenCount,
	}
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
