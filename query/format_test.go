package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wyrecliff/docvault/store"
)

func TestFormatter_Format_SingleDocument(t *testing.T) {
	docs := []*store.ScoredDocument{
		{
			Document: store.Document{
				SourceName: "tokio",
				DocPath:    "struct.Runtime.html",
				Content:    "A runtime for executing asynchronous code.",
				Metadata:   map[string]any{"kind": "struct"},
			},
			Score: 0.912,
		},
	}

	out := Formatter{}.Format(docs)

	assert.Contains(t, out, "### tokio/struct.Runtime.html (score: 0.912)")
	assert.Contains(t, out, "A runtime for executing asynchronous code.")
	assert.Contains(t, out, "kind=struct")
}

func TestFormatter_Format_MultipleDocumentsSeparated(t *testing.T) {
	docs := []*store.ScoredDocument{
		{Document: store.Document{SourceName: "tokio", DocPath: "a.html", Content: "first"}, Score: 0.9},
		{Document: store.Document{SourceName: "tokio", DocPath: "b.html", Content: "second"}, Score: 0.8},
	}

	out := Formatter{}.Format(docs)

	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.Contains(t, out, "### tokio/a.html")
	assert.Contains(t, out, "### tokio/b.html")
}

func TestFormatter_Format_Empty(t *testing.T) {
	out := Formatter{}.Format(nil)
	assert.Empty(t, out)
}

func TestMetadataLine_SortedKeys(t *testing.T) {
	line := metadataLine(map[string]any{"z": 1, "a": 2})
	assert.Equal(t, "a=2 z=1", line)
}

func TestMetadataLine_Empty(t *testing.T) {
	assert.Empty(t, metadataLine(nil))
}
