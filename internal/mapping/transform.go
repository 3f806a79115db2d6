package mapping

import "fmt"

// Transformer rewrites a canonical field value before validation.
type Transformer interface {
	Field() string
	Transform(v any) (any, error)
}

// TransformerKindMapping is the only built-in transformer kind.
const TransformerKindMapping = "mapping"

// ValueMap replaces values using a lookup table keyed by the value's
// string form. Unknown values are an error; nil passes through.
type ValueMap struct {
	field string
	table map[string]any
}

func (m *ValueMap) Field() string { return m.field }

func (m *ValueMap) Transform(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	key := fmt.Sprint(v)
	out, ok := m.table[key]
	if !ok {
		return nil, fmt.Errorf("could not find mapping for value %q of field %s", key, m.field)
	}
	return out, nil
}

// NewTransformer builds a transformer from its configuration form.
func NewTransformer(kind, field string, table map[string]any) (Transformer, error) {
	if field == "" {
		return nil, fmt.Errorf("transformer %q: field must not be empty", kind)
	}
	switch kind {
	case TransformerKindMapping:
		return &ValueMap{field: field, table: table}, nil
	}
	return nil, fmt.Errorf("unknown transformer type %q", kind)
}

// Apply runs transformers in order against the record's fields. The input
// record is not modified.
func Apply(record map[string]any, transformers []Transformer) (map[string]any, error) {
	if len(transformers) == 0 {
		return record, nil
	}
	out := deepCopy(record)
	if out == nil {
		out = map[string]any{}
	}
	for _, t := range transformers {
		v, err := t.Transform(out[t.Field()])
		if err != nil {
			return nil, err
		}
		out[t.Field()] = v
	}
	return out, nil
}

