package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
	"go.uber.org/multierr"

	"github.com/Thox33/sync-tool/internal/mapping"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/schema"
)

type rawConfig struct {
	Types     map[string]rawType     `json:"types"`
	Providers map[string]rawProvider `json:"providers"`
	Syncs     map[string]rawSync     `json:"syncs"`
}

type rawType struct {
	Fields  map[string]rawField `json:"fields"`
	Options rawOptions          `json:"options"`
}

type rawField struct {
	Type          string `json:"type"`
	Default       any    `json:"default"`
	ReferenceType string `json:"referenceType"`
}

type rawOptions struct {
	ComparableFields []string `json:"comparableFields"`
	SyncableFields   []string `json:"syncableFields"`
	IDField          string   `json:"idField"`
	ModifiedField    string   `json:"modifiedField"`
}

type rawProvider struct {
	Provider string                `json:"provider"`
	Options  map[string]any        `json:"options"`
	Mappings map[string]rawMapping `json:"mappings"`
}

type rawMapping struct {
	ItemType string            `json:"itemType"`
	Fields   map[string]string `json:"fields"`
}

type rawSync struct {
	Rules map[string]rawRule `json:"rules"`
}

type rawRule struct {
	Type         string           `json:"type"`
	Mode         string           `json:"mode"`
	Source       rawEndpoint      `json:"source"`
	Destination  rawEndpoint      `json:"destination"`
	Transformers []rawTransformer `json:"transformers"`
}

type rawEndpoint struct {
	Provider string `json:"provider"`
	Mapping  string `json:"mapping"`
	Query    struct {
		Filter map[string]any `json:"filter"`
	} `json:"query"`
}

type rawTransformer struct {
	Type  string         `json:"type"`
	Field string         `json:"field"`
	Map   map[string]any `json:"map"`
}

// compile decodes a schema-checked value and performs the semantic checks
// that need the whole configuration. All problems are reported together.
func compile(v cue.Value) (*Configuration, error) {
	var raw rawConfig
	if err := v.Decode(&raw); err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}

	var errs error
	cfg := &Configuration{
		Providers: make(map[string]*ProviderConfig, len(raw.Providers)),
		Syncs:     make(map[string]*Sync, len(raw.Syncs)),
	}

	// Types, in declaration order.
	var types []*schema.Type
	for _, name := range labels(v, "types") {
		typeVal := v.LookupPath(cue.MakePath(cue.Str("types"), cue.Str(name)))
		t, err := compileType(name, raw.Types[name], labels(typeVal, "fields"))
		if err != nil {
			errs = multierr.Append(errs, &Error{Code: ErrCodeType, Path: "types." + name, Message: err.Error(), Pos: typeVal.Pos()})
			continue
		}
		types = append(types, t)
	}
	reg, err := schema.NewRegistry(types...)
	if err != nil {
		errs = multierr.Append(errs, &Error{Code: ErrCodeType, Path: "types", Message: err.Error()})
	}
	cfg.Types = reg

	for _, name := range labels(v, "providers") {
		rp := raw.Providers[name]
		pc := &ProviderConfig{
			Name:     name,
			Kind:     rp.Provider,
			Options:  resolveEnv(rp.Options),
			Mappings: make(map[string]mapping.Spec, len(rp.Mappings)),
		}
		for mname, rm := range rp.Mappings {
			itemType := rm.ItemType
			if itemType == "" {
				itemType = mname
			}
			pc.Mappings[mname] = mapping.Spec{Type: itemType, Fields: rm.Fields}
		}
		cfg.Providers[name] = pc
	}

	for _, sname := range labels(v, "syncs") {
		s := &Sync{Name: sname, Rules: make(map[string]*Rule)}
		rulesVal := v.LookupPath(cue.MakePath(cue.Str("syncs"), cue.Str(sname), cue.Str("rules")))
		for _, rname := range labels(rulesVal, "") {
			ruleVal := rulesVal.LookupPath(cue.MakePath(cue.Str(rname)))
			rule, err := cfg.compileRule(sname, rname, raw.Syncs[sname].Rules[rname])
			if err != nil {
				errs = multierr.Append(errs, withPos(err, ruleVal.Pos()))
				continue
			}
			s.Rules[rname] = rule
			s.ruleOrder = append(s.ruleOrder, rname)
		}
		cfg.Syncs[sname] = s
		cfg.syncOrder = append(cfg.syncOrder, sname)
	}

	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

func compileType(name string, rt rawType, order []string) (*schema.Type, error) {
	fields := make([]schema.Field, 0, len(order))
	for _, fname := range order {
		rf := rt.Fields[fname]
		f, err := schema.NewField(fname, schema.Kind(rf.Type), rf.Default, rf.ReferenceType)
		if err != nil {
			return nil, err
		}
		if rf.Default != nil {
			if _, err := f.Validate(mustDefault(f)); err != nil {
				return nil, fmt.Errorf("invalid default: %w", err)
			}
		}
		fields = append(fields, f)
	}
	return schema.NewType(name, fields, schema.Options{
		ComparableFields: rt.Options.ComparableFields,
		SyncableFields:   rt.Options.SyncableFields,
		IDField:          rt.Options.IDField,
		ModifiedField:    rt.Options.ModifiedField,
	})
}

func mustDefault(f schema.Field) any {
	v, _ := f.Default()
	return v
}

func (c *Configuration) compileRule(sname, rname string, rr rawRule) (*Rule, error) {
	path := "syncs." + sname + ".rules." + rname
	rule := &Rule{
		Sync:        sname,
		Name:        rname,
		Type:        rr.Type,
		Mode:        Mode(rr.Mode),
		Source:      endpoint(rr.Source),
		Destination: endpoint(rr.Destination),
	}
	if rule.Mode == "" {
		rule.Mode = ModeSingle
	}

	var errs error
	if rule.Mode != ModeSingle && rule.Mode != ModeBoth {
		errs = multierr.Append(errs, &Error{Code: ErrCodeRule, Path: path, Message: fmt.Sprintf("invalid mode %q", rr.Mode)})
	}

	// declared stays nil when the type is unknown, which skips field checks.
	var (
		typ      *schema.Type
		declared func(string) bool
		marker   string
	)
	if c.Types != nil {
		typ, _ = c.Types.Get(rr.Type)
	}
	if typ == nil {
		errs = multierr.Append(errs, &Error{Code: ErrCodeType, Path: path, Message: fmt.Sprintf("internal type %q not found", rr.Type)})
	} else {
		declared = func(name string) bool {
			_, ok := typ.Field(name)
			return ok
		}
		if id := typ.Options().IDField; !declared(id) {
			errs = multierr.Append(errs, &Error{Code: ErrCodeRule, Path: path,
				Message: fmt.Sprintf("id field %q is not declared by type %s", id, typ.Name())})
		}
		var ok bool
		if marker, ok = typ.SyncStatusField(); !ok {
			errs = multierr.Append(errs, &Error{Code: ErrCodeRule, Path: path,
				Message: fmt.Sprintf("type %s has no syncStatus field", typ.Name())})
		}
		if rule.Mode == ModeBoth && !declared(typ.Options().ModifiedField) {
			errs = multierr.Append(errs, &Error{Code: ErrCodeRule, Path: path,
				Message: fmt.Sprintf("mode both requires field %q on type %s", typ.Options().ModifiedField, typ.Name())})
		}
	}

	sides := []struct {
		name string
		ep   Endpoint
	}{{"source", rule.Source}, {"destination", rule.Destination}}
	for _, side := range sides {
		spec, err := c.Mapping(side.ep)
		if err != nil {
			errs = multierr.Append(errs, prefixPath(err, path+"."+side.name))
			continue
		}
		if err := spec.Validate(declared); err != nil {
			errs = multierr.Append(errs, &Error{Code: ErrCodeMapping, Path: path + "." + side.name, Message: err.Error()})
		}
		// Both sides carry the link; the source key must also be readable
		// to patch the link back after a create.
		required := []string{marker}
		if side.name == "source" && typ != nil {
			required = append(required, typ.Options().IDField)
		}
		for _, f := range required {
			if f == "" {
				continue
			}
			if _, ok := spec.Path(f); !ok {
				errs = multierr.Append(errs, &Error{Code: ErrCodeMapping, Path: path + "." + side.name,
					Message: fmt.Sprintf("mapping %s does not map field %q", side.ep.Mapping, f)})
			}
		}
	}

	for i, rt := range rr.Transformers {
		tr, err := mapping.NewTransformer(rt.Type, rt.Field, rt.Map)
		if err == nil && declared != nil && !declared(rt.Field) {
			err = fmt.Errorf("field %q is not declared by type %s", rt.Field, typ.Name())
		}
		if err != nil {
			errs = multierr.Append(errs, &Error{Code: ErrCodeTransformer, Path: fmt.Sprintf("%s.transformers[%d]", path, i), Message: err.Error()})
			continue
		}
		rule.Transformers = append(rule.Transformers, tr)
	}
	if errs != nil {
		return nil, errs
	}
	return rule, nil
}

func endpoint(re rawEndpoint) Endpoint {
	return Endpoint{
		Provider: re.Provider,
		Mapping:  re.Mapping,
		Query:    provider.Query{Filter: re.Query.Filter},
	}
}

// labels returns the regular field labels of the struct at path, in
// declaration order. An empty path lists v itself.
func labels(v cue.Value, path string) []string {
	if path != "" {
		v = v.LookupPath(cue.ParsePath(path))
	}
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil
	}
	var out []string
	for iter.Next() {
		out = append(out, iter.Selector().Unquoted())
	}
	return out
}

// withPos sets pos on every configuration error in err that has none.
func withPos(err error, pos token.Pos) error {
	var out error
	for _, e := range multierr.Errors(err) {
		if ce, ok := e.(*Error); ok && !ce.Pos.IsValid() {
			cp := *ce
			cp.Pos = pos
			e = &cp
		}
		out = multierr.Append(out, e)
	}
	return out
}

func prefixPath(err error, path string) error {
	if ce, ok := err.(*Error); ok {
		cp := *ce
		cp.Path = path
		return &cp
	}
	return fmt.Errorf("%s: %w", path, err)
}

// resolveEnv replaces string values of the form env(NAME) with the value of
// the environment variable NAME. Unset variables resolve to nil.
func resolveEnv(options map[string]any) map[string]any {
	if options == nil {
		return nil
	}
	out := make(map[string]any, len(options))
	for k, v := range options {
		out[k] = resolveEnvValue(k, v)
	}
	return out
}

func resolveEnvValue(key string, v any) any {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, "env(") && strings.HasSuffix(t, ")") && len(t) > 5 {
			name := t[4 : len(t)-1]
			val, ok := os.LookupEnv(name)
			if !ok {
				slog.Warn("environment variable not set", "option", key, "variable", name)
				return nil
			}
			slog.Debug("resolved option from environment", "option", key, "variable", name)
			return val
		}
		return t
	case map[string]any:
		return resolveEnv(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = resolveEnvValue(key, e)
		}
		return out
	}
	return v
}
