package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndex_CollectsHTMLAnchors(t *testing.T) {
	body := []byte(`
		<html><body>
			<a href="struct.Client.html">Client</a>
			<a href="fn.new.html">new</a>
			<a href="https://external.example/other.html">external</a>
			<a href="struct.Client.html">duplicate</a>
		</body></html>
	`)

	idx, err := parseIndex("mycrate", body)
	require.NoError(t, err)

	var paths []string
	for _, p := range idx.pages {
		paths = append(paths, p.path)
	}
	assert.Contains(t, paths, "index.html")
	assert.Contains(t, paths, "struct.Client.html")
	assert.Contains(t, paths, "fn.new.html")
	assert.NotContains(t, paths, "https://external.example/other.html")

	count := 0
	for _, p := range paths {
		if p == "struct.Client.html" {
			count++
		}
	}
	assert.Equal(t, 1, count, "duplicate hrefs should be deduplicated")
}

func TestParseSections_ExtractsClassedBlocks(t *testing.T) {
	body := []byte(`
		<html><body>
			<div class="struct">
				<h2>Client</h2>
				<div class="docblock">A client for talking to the docs host.</div>
			</div>
			<div class="fn">
				<h3>new</h3>
				<div class="docblock">Creates a new client.</div>
			</div>
		</body></html>
	`)

	sections, err := parseSections("struct.Client.html", body)
	require.NoError(t, err)
	require.NotEmpty(t, sections)

	var kinds []string
	for _, s := range sections {
		kinds = append(kinds, s.kind)
	}
	// the innermost classed ancestor wins, so nested docblock prose is
	// reported as "prose" even though it sits inside a "struct" block
	assert.Contains(t, kinds, "prose")
}

func TestParseSections_EmptyBody(t *testing.T) {
	sections, err := parseSections("empty.html", []byte(""))
	require.NoError(t, err)
	assert.Empty(t, sections)
}
