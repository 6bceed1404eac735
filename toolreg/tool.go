// Package toolreg is the tool registry: it loads data-driven query tools
// from a YAML configuration document, registers a fixed set of Rust
// crate-management admin tools in Go, validates call arguments against each
// tool's schema, and dispatches to the query engine or admin ops.
package toolreg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tool describes one named endpoint: a human description, an input schema,
// and (for query tools) the doc_type and default filters it binds to.
type Tool struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	DocType        string         `yaml:"doc_type"`
	DefaultFilters map[string]any `yaml:"default_filters"`
	FilterKeys     []string       `yaml:"filter_keys"`
}

// fileConfig is the on-disk shape of the tool configuration document: a
// list of data-driven query tools. Admin tools are never listed here; they
// are registered directly in Go.
type fileConfig struct {
	QueryTools []Tool `yaml:"query_tools"`
}

// LoadQueryTools reads and parses the query-tool configuration document at
// path.
func LoadQueryTools(path string) ([]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("toolreg: read tool config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("toolreg: parse tool config %s: %w", path, err)
	}
	return cfg.QueryTools, nil
}
