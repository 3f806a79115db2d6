package schema

import (
	"fmt"
	"time"
)

// Kind identifies a field type in configuration.
type Kind string

const (
	KindInt        Kind = "int"
	KindFloat      Kind = "float"
	KindString     Kind = "string"
	KindDatetime   Kind = "datetime"
	KindReference  Kind = "reference"
	KindRichText   Kind = "richtext"
	KindSyncStatus Kind = "syncStatus"
)

// Kinds lists every supported field kind in declaration order.
var Kinds = []Kind{
	KindInt, KindFloat, KindString, KindDatetime,
	KindReference, KindRichText, KindSyncStatus,
}

// DefaultNow is the datetime default literal that resolves to the current
// time whenever the default is read.
const DefaultNow = "now"

// Field is a sealed interface over the supported field kinds.
// Only the types in this package implement it.
type Field interface {
	field() // Sealed

	// Name is the canonical field name.
	Name() string

	// Kind returns the discriminator used in configuration.
	Kind() Kind

	// Default returns the default value and whether one is set.
	Default() (any, bool)

	// Validate coerces a raw value into the field's canonical form.
	Validate(raw any) (any, error)
}

type base struct {
	name       string
	def        any
	hasDefault bool
}

func (b base) field()       {}
func (b base) Name() string { return b.name }

func (b base) Default() (any, bool) {
	return b.def, b.hasDefault
}

// IntField holds whole numbers. Floats are rejected even when integral.
type IntField struct{ base }

func (IntField) Kind() Kind { return KindInt }

func (f IntField) Validate(raw any) (any, error) {
	n, ok := asInt(raw)
	if !ok {
		return nil, newFieldError(f.name, raw, "expected int, got %T", raw)
	}
	return n, nil
}

// FloatField holds floating point numbers. Integers are rejected.
type FloatField struct{ base }

func (FloatField) Kind() Kind { return KindFloat }

func (f FloatField) Validate(raw any) (any, error) {
	n, ok := asFloat(raw)
	if !ok {
		return nil, newFieldError(f.name, raw, "expected float, got %T", raw)
	}
	return n, nil
}

// StringField accepts strings and numbers, which are converted to their
// string form.
type StringField struct{ base }

func (StringField) Kind() Kind { return KindString }

func (f StringField) Validate(raw any) (any, error) {
	s, ok := asString(raw)
	if !ok {
		return nil, newFieldError(f.name, raw, "expected string, got %T", raw)
	}
	return s, nil
}

// DatetimeField accepts time values, ISO-8601 strings and unix epoch
// seconds. The result is always in UTC.
type DatetimeField struct{ base }

func (DatetimeField) Kind() Kind { return KindDatetime }

// Default resolves the "now" literal at read time.
func (f DatetimeField) Default() (any, bool) {
	if !f.hasDefault {
		return nil, false
	}
	if s, ok := f.def.(string); ok && s == DefaultNow {
		return time.Now().UTC(), true
	}
	return f.def, true
}

func (f DatetimeField) Validate(raw any) (any, error) {
	t, err := asTime(raw)
	if err != nil {
		return nil, newFieldError(f.name, raw, "%v", err)
	}
	return t, nil
}

// ReferenceField stores the identifier of a record of another type.
// The target is checked to exist when the Registry is built; the referenced
// record itself is never looked up.
type ReferenceField struct {
	base
	Target string
}

func (ReferenceField) Kind() Kind { return KindReference }

func (f ReferenceField) Validate(raw any) (any, error) {
	s, ok := asString(raw)
	if !ok {
		return nil, newFieldError(f.name, raw, "expected reference id, got %T", raw)
	}
	return s, nil
}

// RichTextField holds markup and extracts the image sources it embeds.
type RichTextField struct{ base }

func (RichTextField) Kind() Kind { return KindRichText }

func (f RichTextField) Validate(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return ParseRichText(v), nil
	case RichText:
		return ParseRichText(v.Value), nil
	}
	return nil, newFieldError(f.name, raw, "expected rich text string, got %T", raw)
}

// SyncStatusField holds the cross-system link marker. A nil value is read
// as an empty marker.
type SyncStatusField struct{ base }

func (SyncStatusField) Kind() Kind { return KindSyncStatus }

func (f SyncStatusField) Validate(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return ParseSyncStatus(""), nil
	case string:
		return ParseSyncStatus(v), nil
	case SyncStatus:
		return ParseSyncStatus(v.Value), nil
	}
	return nil, newFieldError(f.name, raw, "expected sync status markup, got %T", raw)
}

// NewField constructs a field from its configuration form. target is only
// used by reference fields. A nil def means no default.
func NewField(name string, kind Kind, def any, target string) (Field, error) {
	if name == "" {
		return nil, fmt.Errorf("field name must not be empty")
	}
	b := base{name: name, def: def, hasDefault: def != nil}
	switch kind {
	case KindInt:
		return IntField{b}, nil
	case KindFloat:
		return FloatField{b}, nil
	case KindString:
		return StringField{b}, nil
	case KindDatetime:
		return DatetimeField{b}, nil
	case KindReference:
		if target == "" {
			return nil, fmt.Errorf("field %q: reference field requires a target type", name)
		}
		return ReferenceField{base: b, Target: target}, nil
	case KindRichText:
		return RichTextField{b}, nil
	case KindSyncStatus:
		return SyncStatusField{b}, nil
	}
	return nil, fmt.Errorf("field %q: unknown field type %q", name, kind)
}

// MustField is NewField for statically known definitions. It panics on error.
func MustField(name string, kind Kind, def any, target string) Field {
	f, err := NewField(name, kind, def, target)
	if err != nil {
		panic(err)
	}
	return f
}
