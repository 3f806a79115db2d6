package mapping

import (
	"fmt"
	"sort"
	"time"
)

// RawValuer is implemented by canonical values whose wire form differs from
// their Go form.
type RawValuer interface {
	RawValue() any
}

// Spec maps canonical field names to paths inside a provider's raw record.
// The same Spec is used in both directions.
type Spec struct {
	// Type is the provider-side item type the mapping applies to.
	Type string
	// Fields maps canonical field name to raw path.
	Fields map[string]string
}

// FieldNames returns the mapped canonical field names, sorted.
func (s Spec) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the raw path of a canonical field.
func (s Spec) Path(field string) (string, bool) {
	p, ok := s.Fields[field]
	return p, ok
}

// ToCanonical reads every mapped field from raw. Fields whose path does not
// resolve are present with a nil value so validation can report them.
func (s Spec) ToCanonical(raw map[string]any) map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, name := range s.FieldNames() {
		v, _ := Get(raw, s.Fields[name])
		out[name] = v
	}
	return out
}

// ToRaw writes every mapped, non-nil canonical field to its raw path.
// Canonical values are exported to plain wire values on the way.
func (s Spec) ToRaw(canonical map[string]any) map[string]any {
	out := map[string]any{}
	for _, name := range s.FieldNames() {
		v, ok := canonical[name]
		if !ok || v == nil {
			continue
		}
		out = Set(out, s.Fields[name], Export(v))
	}
	return out
}

// Export converts a canonical value to its wire form.
func Export(v any) any {
	switch t := v.(type) {
	case RawValuer:
		return t.RawValue()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// Validate checks that every mapped field name is declared by the canonical
// type and every path is non-empty.
func (s Spec) Validate(declared func(string) bool) error {
	for _, name := range s.FieldNames() {
		if s.Fields[name] == "" {
			return fmt.Errorf("mapping %s: field %q has an empty path", s.Type, name)
		}
		if declared != nil && !declared(name) {
			return fmt.Errorf("mapping %s: field %q is not declared by the internal type", s.Type, name)
		}
	}
	return nil
}
