// Package mapping translates records between provider layouts and the
// canonical schema using dotted paths.
//
// A path is a dot separated list of keys. A segment wrapped in brackets is
// taken literally, so "fields.[x.y].value" addresses the key "x.y" inside
// "fields".
package mapping

import "strings"

// ParsePath splits a dotted path into keys. Bracketed segments keep their
// embedded dots. An empty path yields no keys.
func ParsePath(path string) []string {
	if path == "" {
		return nil
	}
	var (
		keys    []string
		pending []string
		inGroup bool
	)
	for _, part := range strings.Split(path, ".") {
		switch {
		case inGroup:
			if strings.HasSuffix(part, "]") {
				pending = append(pending, strings.TrimSuffix(part, "]"))
				keys = append(keys, strings.Join(pending, "."))
				pending, inGroup = nil, false
				continue
			}
			pending = append(pending, part)
		case strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]") && len(part) >= 2:
			keys = append(keys, part[1:len(part)-1])
		case strings.HasPrefix(part, "["):
			pending = []string{strings.TrimPrefix(part, "[")}
			inGroup = true
		default:
			keys = append(keys, part)
		}
	}
	if inGroup {
		// Unterminated bracket: keep the text as written.
		keys = append(keys, "["+strings.Join(pending, "."))
	}
	return keys
}

// Get returns the value at path. It reports false when the path is empty,
// any segment is missing, or an intermediate value is not a map.
func Get(data map[string]any, path string) (any, bool) {
	keys := ParsePath(path)
	if len(keys) == 0 || data == nil {
		return nil, false
	}
	var cur any = data
	for _, k := range keys {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set returns a deep copy of data with value stored at path. Missing
// intermediate maps are created and non-map intermediates are replaced.
// The input is never modified. An empty path returns an unmodified copy.
func Set(data map[string]any, path string, value any) map[string]any {
	out := deepCopy(data)
	if out == nil {
		out = map[string]any{}
	}
	keys := ParsePath(path)
	if len(keys) == 0 {
		return out
	}
	cur := out
	for _, k := range keys[:len(keys)-1] {
		next, ok := asMap(cur[k])
		if !ok {
			next = map[string]any{}
		}
		cur[k] = next
		cur = next
	}
	cur[keys[len(keys)-1]] = value
	return out
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func deepCopy(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}
