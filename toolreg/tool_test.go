package toolreg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadQueryTools_ParsesConfiguredTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
query_tools:
  - name: rust_query
    description: search rust docs
    doc_type: rust
    filter_keys: [crate]
  - name: go_query
    description: search go docs
    doc_type: go
    default_filters:
      stdlib: false
`), 0o644))

	tools, err := LoadQueryTools(path)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	assert.Equal(t, "rust_query", tools[0].Name)
	assert.Equal(t, "rust", tools[0].DocType)
	assert.Equal(t, []string{"crate"}, tools[0].FilterKeys)

	assert.Equal(t, "go_query", tools[1].Name)
	assert.Equal(t, false, tools[1].DefaultFilters["stdlib"])
}

func TestLoadQueryTools_MissingFileIsError(t *testing.T) {
	_, err := LoadQueryTools(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
