package schema

import (
	"errors"
	"fmt"
	"slices"
)

const (
	DefaultIDField       = "id"
	DefaultModifiedField = "modifiedDate"
)

// Options controls how records of a type take part in a sync.
type Options struct {
	// ComparableFields are compared to decide whether a pair needs an update.
	ComparableFields []string
	// SyncableFields are written to the other side on update.
	SyncableFields []string
	// IDField names the canonical field holding the record identifier.
	IDField string
	// ModifiedField names the datetime field used by bidirectional updates.
	ModifiedField string
}

// Record is a canonical record keyed by field name.
type Record map[string]any

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns the value of key as a string, or "" if absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case RichText:
		t.Attachments = slices.Clone(t.Attachments)
		return t
	case SyncStatus:
		t.Entries = slices.Clone(t.Entries)
		return t
	}
	return v
}

// Type is an internal type schema: a name, ordered fields and options.
type Type struct {
	name    string
	fields  []Field
	byName  map[string]Field
	options Options
}

// NewType builds a type. Field names must be unique, and option field
// lists must name declared fields.
func NewType(name string, fields []Field, opts Options) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("type name must not be empty")
	}
	t := &Type{
		name:   name,
		fields: slices.Clone(fields),
		byName: make(map[string]Field, len(fields)),
	}
	for _, f := range fields {
		if _, dup := t.byName[f.Name()]; dup {
			return nil, fmt.Errorf("type %s: duplicate field %q", name, f.Name())
		}
		t.byName[f.Name()] = f
	}
	if opts.IDField == "" {
		opts.IDField = DefaultIDField
	}
	if opts.ModifiedField == "" {
		opts.ModifiedField = DefaultModifiedField
	}
	for _, list := range [][]string{opts.ComparableFields, opts.SyncableFields} {
		for _, fn := range list {
			if _, ok := t.byName[fn]; !ok {
				return nil, fmt.Errorf("type %s: option references unknown field %q", name, fn)
			}
		}
	}
	opts.ComparableFields = slices.Clone(opts.ComparableFields)
	opts.SyncableFields = slices.Clone(opts.SyncableFields)
	t.options = opts
	return t, nil
}

func (t *Type) Name() string     { return t.name }
func (t *Type) Fields() []Field  { return slices.Clone(t.fields) }
func (t *Type) Options() Options { return t.options }

// Field returns the field with the given name.
func (t *Type) Field(name string) (Field, bool) {
	f, ok := t.byName[name]
	return f, ok
}

// SyncStatusField returns the first sync status field of the type, if any.
func (t *Type) SyncStatusField() (string, bool) {
	for _, f := range t.fields {
		if f.Kind() == KindSyncStatus {
			return f.Name(), true
		}
	}
	return "", false
}

// Validate coerces every declared field of data and returns the canonical
// record. All failures are collected into a single ValidationError. Keys
// of data that the type does not declare are dropped.
func (t *Type) Validate(data map[string]any) (Record, error) {
	out := make(Record, len(t.fields))
	var errs []*FieldError
	for _, f := range t.fields {
		raw, present := data[f.Name()]
		if !present || raw == nil {
			if def, ok := f.Default(); ok {
				raw = def
			} else if f.Kind() != KindSyncStatus {
				errs = append(errs, newFieldError(f.Name(), nil, "field %s is missing in data", f.Name()))
				continue
			}
		}
		v, err := f.Validate(raw)
		if err != nil {
			var fe *FieldError
			if !errors.As(err, &fe) {
				fe = newFieldError(f.Name(), raw, "%v", err)
			}
			errs = append(errs, fe)
			continue
		}
		out[f.Name()] = v
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Type: t.name, Errors: errs}
	}
	return out, nil
}

// Registry holds a consistent set of types.
type Registry struct {
	types map[string]*Type
	order []string
}

// NewRegistry checks that every reference field targets a type in the set.
func NewRegistry(types ...*Type) (*Registry, error) {
	r := &Registry{types: make(map[string]*Type, len(types))}
	for _, t := range types {
		if _, dup := r.types[t.name]; dup {
			return nil, fmt.Errorf("duplicate type %q", t.name)
		}
		r.types[t.name] = t
		r.order = append(r.order, t.name)
	}
	for _, t := range types {
		for _, f := range t.fields {
			ref, ok := f.(ReferenceField)
			if !ok {
				continue
			}
			if _, exists := r.types[ref.Target]; !exists {
				return nil, fmt.Errorf("type %s: field %s references unknown type %q", t.name, f.Name(), ref.Target)
			}
		}
	}
	return r, nil
}

// Get returns the type with the given name.
func (r *Registry) Get(name string) (*Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}
