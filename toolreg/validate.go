package toolreg

import (
	"github.com/wyrecliff/docvault/docerr"
)

func requiredString(args map[string]any, field string) (string, error) {
	raw, ok := args[field]
	if !ok {
		return "", docerr.InvalidField(field, "is required")
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", docerr.InvalidField(field, "must be a non-empty string")
	}
	return s, nil
}

func optionalString(args map[string]any, field string) (string, bool) {
	raw, ok := args[field]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func optionalBool(args map[string]any, field string) (bool, error) {
	raw, ok := args[field]
	if !ok {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, docerr.InvalidField(field, "must be a boolean")
	}
	return b, nil
}

// optionalInt extracts an integer argument that may arrive as any numeric
// JSON type (int, float64 when decoded by encoding/json). present is false
// when the field was not supplied at all.
func optionalInt(args map[string]any, field string) (value int, present bool, err error) {
	raw, ok := args[field]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		return int(v), true, nil
	default:
		return 0, true, docerr.InvalidField(field, "must be an integer")
	}
}

func optionalRaw(args map[string]any, field string) (any, bool) {
	raw, ok := args[field]
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}
