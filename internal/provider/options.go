package provider

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Thox33/sync-tool/internal/mapping"
)

// StringOption reads an optional string option.
func StringOption(options map[string]any, key, def string) (string, error) {
	v, ok := options[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q must be a string, got %T", key, v)
	}
	return s, nil
}

// RequiredString reads a string option that must be present and non-empty.
func RequiredString(options map[string]any, key string) (string, error) {
	s, err := StringOption(options, key, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("option %q is required", key)
	}
	return s, nil
}

// Normalize round-trips a record through JSON so that every number is a
// json.Number and every nested object is a map[string]any. Providers use it
// to hand out records that callers cannot alias.
func Normalize(rec Record) (Record, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return DecodeRecord(b)
}

// DecodeRecord decodes a JSON object, keeping numbers as json.Number.
func DecodeRecord(b []byte) (Record, error) {
	var out Record
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Matches reports whether every filter key, read as a dotted path into rec,
// holds a value equal to the filter value. Values are compared by their
// JSON encoding so numbers match regardless of their Go type.
func Matches(rec Record, filter map[string]any) bool {
	for path, want := range filter {
		got, ok := mapping.Get(rec, path)
		if !ok || !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
