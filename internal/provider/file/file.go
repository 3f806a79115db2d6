// Package file provides a provider backed by a single YAML or JSON
// document of the form
//
//	itemType:
//	  - {id: "1", title: "..."}
//
// The document is read on Init and written back on Teardown when records
// changed. Files ending in ".json" are written as JSON, anything else as YAML.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Thox33/sync-tool/internal/mapping"
	"github.com/Thox33/sync-tool/internal/provider"
)

// Kind is the registry name of this provider.
const Kind = "file"

// Provider keeps the document in memory between Init and Teardown.
type Provider struct {
	name    string
	path    string
	idPath  string
	baseURL string
	newID   func() string

	mu     sync.Mutex
	items  map[string][]provider.Record
	loaded bool
	dirty  bool
}

// Factory builds file providers for the provider registry.
func Factory(name string, options map[string]any) (provider.Provider, error) {
	return New(name, options)
}

// New creates a provider. Supported options:
//
//	path     document path (required)
//	idPath   dotted path of the id inside a record (default "id")
//	baseURL  prefix of item URLs (default "file://<path>")
func New(name string, options map[string]any) (*Provider, error) {
	path, err := provider.RequiredString(options, "path")
	if err != nil {
		return nil, err
	}
	p := &Provider{
		name:  name,
		path:  path,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	if p.idPath, err = provider.StringOption(options, "idPath", "id"); err != nil {
		return nil, err
	}
	if p.baseURL, err = provider.StringOption(options, "baseURL", "file://"+path); err != nil {
		return nil, err
	}
	return p, nil
}

// Init loads the document. A missing file is an empty document.
func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = make(map[string][]provider.Record)
	b, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		p.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", provider.ErrInit, p.name, err)
	}

	var doc map[string][]map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("%w: %s: parse %s: %v", provider.ErrInit, p.name, p.path, err)
	}
	for itemType, recs := range doc {
		for i, rec := range recs {
			norm, err := provider.Normalize(rec)
			if err != nil {
				return fmt.Errorf("%w: %s: %s[%d]: %v", provider.ErrInit, p.name, itemType, i, err)
			}
			p.items[itemType] = append(p.items[itemType], norm)
		}
	}
	p.loaded = true
	return nil
}

// Teardown writes the document back when it changed.
func (p *Provider) Teardown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded || !p.dirty {
		p.loaded = false
		return nil
	}
	if err := p.write(); err != nil {
		return fmt.Errorf("%w: %s: %v", provider.ErrTeardown, p.name, err)
	}
	p.dirty = false
	p.loaded = false
	return nil
}

func (p *Provider) write() error {
	doc := make(map[string][]map[string]any, len(p.items))
	for _, itemType := range slices.Sorted(maps.Keys(p.items)) {
		for _, rec := range p.items[itemType] {
			doc[itemType] = append(doc[itemType], plain(rec).(map[string]any))
		}
	}
	var (
		b   []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(p.path), ".json") {
		b, err = json.MarshalIndent(doc, "", "  ")
	} else {
		b, err = yaml.Marshal(doc)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, b, 0o644)
}

func (p *Provider) ItemURL(ctx context.Context, id string) (string, error) {
	return fmt.Sprintf("%s#/items/%s", p.baseURL, id), nil
}

func (p *Provider) GetData(ctx context.Context, itemType string, q provider.Query) ([]provider.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return nil, fmt.Errorf("%w: provider %s is not initialized", provider.ErrGetData, p.name)
	}
	var out []provider.Record
	for _, rec := range p.items[itemType] {
		if provider.Matches(rec, q.Filter) {
			cp, err := provider.Normalize(rec)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", provider.ErrGetData, err)
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (p *Provider) GetDataByID(ctx context.Context, itemType, id string) (provider.Record, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return nil, false, fmt.Errorf("provider %s is not initialized", p.name)
	}
	idx := p.find(itemType, id)
	if idx < 0 {
		return nil, false, nil
	}
	cp, err := provider.Normalize(p.items[itemType][idx])
	return cp, err == nil, err
}

func (p *Provider) CreateData(ctx context.Context, itemType string, q provider.Query, rec provider.Record, dryRun bool) (string, error) {
	if dryRun {
		slog.Info("dry run: skipping create", "provider", p.name, "item_type", itemType)
		return "", nil
	}
	rec, err := provider.Normalize(rec)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return "", fmt.Errorf("provider %s is not initialized", p.name)
	}
	id := p.newID()
	p.items[itemType] = append(p.items[itemType], mapping.Set(rec, p.idPath, id))
	p.dirty = true
	return id, nil
}

func (p *Provider) PatchData(ctx context.Context, itemType string, q provider.Query, id string, rec provider.Record, dryRun bool) error {
	patch, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if dryRun {
		slog.Info("dry run: skipping patch", "provider", p.name, "item_type", itemType, "id", id, "patch", string(patch))
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return fmt.Errorf("provider %s is not initialized", p.name)
	}
	idx := p.find(itemType, id)
	if idx < 0 {
		return fmt.Errorf("%s %s: %w", itemType, id, provider.ErrNotFound)
	}
	doc, err := json.Marshal(p.items[itemType][idx])
	if err != nil {
		return err
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return fmt.Errorf("merge patch %s %s: %w", itemType, id, err)
	}
	next, err := provider.DecodeRecord(merged)
	if err != nil {
		return err
	}
	p.items[itemType][idx] = next
	p.dirty = true
	return nil
}

func (p *Provider) ValidateSource(ep provider.Endpoint) error {
	if ep.ItemType == "" {
		return fmt.Errorf("mapping %q: item type must not be empty", ep.Mapping)
	}
	return nil
}

func (p *Provider) ValidateDestination(ep provider.Endpoint) error {
	if err := p.ValidateSource(ep); err != nil {
		return err
	}
	if dir := filepath.Dir(p.path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("destination directory: %w", err)
		}
	}
	return nil
}

// find must be called with p.mu held.
func (p *Provider) find(itemType, id string) int {
	for i, rec := range p.items[itemType] {
		if v, ok := mapping.Get(rec, p.idPath); ok && fmt.Sprint(v) == id {
			return i
		}
	}
	return -1
}

// plain converts json.Number values to int64 or float64 so encoders write
// them as numbers.
func plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}

var _ provider.Provider = (*Provider)(nil)
