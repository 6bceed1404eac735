package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wyrecliff/docvault/store"
)

// Formatter renders scored documents into the markdown block shape tool
// callers expect: a heading naming the source and score, followed by the
// document body and a compact metadata line.
type Formatter struct{}

// Format renders docs in order, one block per document.
func (Formatter) Format(docs []*store.ScoredDocument) string {
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "### %s/%s (score: %.3f)\n", d.SourceName, d.DocPath, d.Score)
		sb.WriteString(d.Content)
		if line := metadataLine(d.Metadata); line != "" {
			sb.WriteString("\n")
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func metadataLine(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, metadata[k]))
	}
	return strings.Join(pairs, " ")
}
