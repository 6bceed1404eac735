package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// normalize canonicalizes query text so trivially-different inputs
// ("Foo Bar", "  foo   bar  ") share a cache entry.
func normalize(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	return strings.Join(fields, " ")
}

// canonicalFilters renders filters as a sorted-key JSON object, so the same
// filter set in a different map iteration order still produces the same
// cache key.
func canonicalFilters(filters map[string]any) string {
	if len(filters) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(filters))
	for _, k := range keys {
		ordered[k] = filters[k]
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// cacheKey hashes (doc_type, normalized text, limit, canonical filters,
// include_disabled) into a fixed-width key. include_disabled is part of the
// key so a cached enabled-only answer is never served back to a caller
// asking to include disabled sources, or vice versa.
func cacheKey(docType, text string, limit int, filters map[string]any, includeDisabled bool) string {
	h := sha256.New()
	h.Write([]byte(docType))
	h.Write([]byte{0})
	h.Write([]byte(normalize(text)))
	h.Write([]byte{0})
	h.Write([]byte{byte(limit), byte(limit >> 8)})
	h.Write([]byte{0})
	h.Write([]byte(canonicalFilters(filters)))
	h.Write([]byte{0})
	if includeDisabled {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
