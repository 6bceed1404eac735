package fetcher

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// section is one module/struct/fn/example block extracted from a page,
// before it is split to respect the embedding token cap.
type section struct {
	docPath  string
	heading  string
	kind     string // module, struct, fn, example, prose, or page
	content  string
	metadata map[string]any
}

// sectionClass maps the docs host's CSS classes to a section kind. Classes
// not listed here are treated as ordinary prose and folded into the
// enclosing section rather than dropped.
var sectionClass = map[string]string{
	"module":        "module",
	"struct":        "struct",
	"fn":            "fn",
	"function":      "fn",
	"example-wrap":  "example",
	"docblock":      "prose",
}

// parseIndex walks a source's landing page looking for anchors into
// per-item pages (one per module/struct/fn), since large sources split their
// documentation across many HTML files rather than one.
func parseIndex(sourceName string, body []byte) (*sourceIndex, error) {
	z := html.NewTokenizer(bytes.NewReader(body))
	idx := &sourceIndex{}
	seen := make(map[string]bool)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "a" {
			continue
		}
		href := attr(tok, "href")
		if href == "" || !strings.HasSuffix(href, ".html") || strings.HasPrefix(href, "http") {
			continue
		}
		if seen[href] {
			continue
		}
		seen[href] = true
		idx.pages = append(idx.pages, pageRef{path: href})
	}

	// the landing page is itself indexable content (crate-level overview)
	idx.pages = append([]pageRef{{path: "index.html"}}, idx.pages...)
	return idx, nil
}

// parseSections extracts content blocks from one fetched page by walking
// the tokenizer and grouping text under the nearest classed ancestor.
func parseSections(docPath string, body []byte) ([]section, error) {
	z := html.NewTokenizer(bytes.NewReader(body))

	var sections []section
	var stack []string // class names of open tags, innermost last
	var buf strings.Builder
	var currentHeading string

	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		kind := "page"
		for i := len(stack) - 1; i >= 0; i-- {
			if k, ok := sectionClass[stack[i]]; ok {
				kind = k
				break
			}
		}
		sections = append(sections, section{
			docPath: docPath,
			heading: currentHeading,
			kind:    kind,
			content: text,
			metadata: map[string]any{
				"doc_path": docPath,
				"kind":     kind,
			},
		})
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return sections, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if class := attr(tok, "class"); class != "" {
				if tt == html.StartTagToken {
					stack = append(stack, firstClass(class))
				}
			}
			if isHeading(tok.Data) {
				flush()
			}
		case html.EndTagToken:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case html.TextToken:
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if len(stack) > 0 {
				if k, ok := sectionClass[stack[len(stack)-1]]; ok && (k == "module" || k == "struct" || k == "fn") {
					if currentHeading == "" {
						currentHeading = text
					}
				}
			}
			buf.WriteString(text)
			buf.WriteString(" ")
		}
	}
}

func isHeading(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4":
		return true
	}
	return false
}

func firstClass(classAttr string) string {
	fields := strings.Fields(classAttr)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
