package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_TrimsLowersCollapses(t *testing.T) {
	assert.Equal(t, "foo bar", normalize("  Foo   BAR  "))
}

func TestCanonicalFilters_OrderIndependent(t *testing.T) {
	a := canonicalFilters(map[string]any{"b": 1, "a": 2})
	b := canonicalFilters(map[string]any{"a": 2, "b": 1})
	assert.Equal(t, a, b)
}

func TestCanonicalFilters_Empty(t *testing.T) {
	assert.Equal(t, "{}", canonicalFilters(nil))
	assert.Equal(t, "{}", canonicalFilters(map[string]any{}))
}

func TestCacheKey_SameInputsSameKey(t *testing.T) {
	k1 := cacheKey("rust", "How do I use channels?", 5, map[string]any{"crate": "tokio"}, false)
	k2 := cacheKey("rust", "  how do I use   channels?  ", 5, map[string]any{"crate": "tokio"}, false)
	assert.Equal(t, k1, k2)
}

func TestCacheKey_DifferentLimitDifferentKey(t *testing.T) {
	k1 := cacheKey("rust", "channels", 5, nil, false)
	k2 := cacheKey("rust", "channels", 10, nil, false)
	assert.NotEqual(t, k1, k2)
}

func TestCacheKey_DifferentDocTypeDifferentKey(t *testing.T) {
	k1 := cacheKey("rust", "channels", 5, nil, false)
	k2 := cacheKey("python", "channels", 5, nil, false)
	assert.NotEqual(t, k1, k2)
}

func TestCacheKey_DifferentIncludeDisabledDifferentKey(t *testing.T) {
	k1 := cacheKey("rust", "channels", 5, nil, false)
	k2 := cacheKey("rust", "channels", 5, nil, true)
	assert.NotEqual(t, k1, k2)
}
