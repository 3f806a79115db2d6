// Package memory provides an in-process provider. Records live in memory and
// can be seeded from configuration, which makes it the provider of choice
// for tests and rehearsals.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/Thox33/sync-tool/internal/mapping"
	"github.com/Thox33/sync-tool/internal/provider"
)

// Kind is the registry name of this provider.
const Kind = "memory"

// Op names a provider operation for hooks and call counting.
type Op string

const (
	OpInit     Op = "init"
	OpTeardown Op = "teardown"
	OpGet      Op = "get"
	OpGetByID  Op = "getByID"
	OpCreate   Op = "create"
	OpPatch    Op = "patch"
)

// Hook is consulted before every operation. A non-nil error fails the
// operation without touching any record. id is empty for init, teardown,
// get and create.
type Hook func(op Op, itemType, id string, rec provider.Record) error

// Provider keeps records per item type in insertion order.
type Provider struct {
	name     string
	idPrefix string
	idPath   string
	baseURL  string
	logger   *slog.Logger

	mu      sync.Mutex
	items   map[string][]provider.Record
	nextID  int
	calls   map[Op]int
	hook    Hook
	started bool
}

// Factory builds memory providers for the provider registry.
func Factory(name string, options map[string]any) (provider.Provider, error) {
	return New(name, options)
}

// New creates a provider. Supported options:
//
//	idPrefix  prefix of generated ids (default: the provider name)
//	idPath    dotted path of the id inside a record (default "id")
//	baseURL   prefix of item URLs (default "memory://<name>")
//	records   map of item type to a list of seed records
func New(name string, options map[string]any) (*Provider, error) {
	p := &Provider{
		name:   name,
		logger: slog.Default().With("provider", name),
		items:  make(map[string][]provider.Record),
		calls:  make(map[Op]int),
		nextID: 1,
	}
	var err error
	if p.idPrefix, err = provider.StringOption(options, "idPrefix", name); err != nil {
		return nil, err
	}
	if p.idPath, err = provider.StringOption(options, "idPath", "id"); err != nil {
		return nil, err
	}
	if p.baseURL, err = provider.StringOption(options, "baseURL", "memory://"+name); err != nil {
		return nil, err
	}
	if seed, ok := options["records"]; ok && seed != nil {
		if err := p.seed(seed); err != nil {
			return nil, fmt.Errorf("option \"records\": %w", err)
		}
	}
	return p, nil
}

func (p *Provider) seed(seed any) error {
	b, err := json.Marshal(seed)
	if err != nil {
		return err
	}
	var byType map[string][]json.RawMessage
	if err := json.Unmarshal(b, &byType); err != nil {
		return fmt.Errorf("expected a map of item type to records: %w", err)
	}
	for _, itemType := range slices.Sorted(maps.Keys(byType)) {
		for i, raw := range byType[itemType] {
			rec, err := provider.DecodeRecord(raw)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", itemType, i, err)
			}
			if err := p.Insert(itemType, rec); err != nil {
				return fmt.Errorf("%s[%d]: %w", itemType, i, err)
			}
		}
	}
	return nil
}

// Insert stores a record directly, bypassing hooks and dry-run handling.
// A record without an id gets a generated one.
func (p *Provider) Insert(itemType string, rec provider.Record) error {
	rec, err := provider.Normalize(rec)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.idOf(rec)
	if id == "" {
		id = p.generateID()
		rec = mapping.Set(rec, p.idPath, id)
	}
	if _, idx := p.find(itemType, id); idx >= 0 {
		return fmt.Errorf("duplicate id %q", id)
	}
	p.items[itemType] = append(p.items[itemType], rec)
	return nil
}

// SetHook installs a hook consulted before every operation.
func (p *Provider) SetHook(h Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hook = h
}

// Calls returns how often op was invoked, including failed and dry-run calls.
func (p *Provider) Calls(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Records returns copies of the stored records of itemType in insertion order.
func (p *Provider) Records(itemType string) []provider.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]provider.Record, 0, len(p.items[itemType]))
	for _, rec := range p.items[itemType] {
		cp, _ := provider.Normalize(rec)
		out = append(out, cp)
	}
	return out
}

// ItemTypes returns the item types that hold records, sorted.
func (p *Provider) ItemTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.items))
}

// Name returns the configured provider name.
func (p *Provider) Name() string { return p.name }

func (p *Provider) Init(ctx context.Context) error {
	if err := p.enter(OpInit, "", "", nil); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrInit, err)
	}
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	return nil
}

func (p *Provider) Teardown(ctx context.Context) error {
	if err := p.enter(OpTeardown, "", "", nil); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrTeardown, err)
	}
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
	return nil
}

func (p *Provider) ItemURL(ctx context.Context, id string) (string, error) {
	return fmt.Sprintf("%s/items/%s", p.baseURL, id), nil
}

func (p *Provider) GetData(ctx context.Context, itemType string, q provider.Query) ([]provider.Record, error) {
	if err := p.enterStarted(OpGet, itemType, "", nil); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrGetData, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []provider.Record
	for _, rec := range p.items[itemType] {
		if !provider.Matches(rec, q.Filter) {
			continue
		}
		cp, err := provider.Normalize(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (p *Provider) GetDataByID(ctx context.Context, itemType, id string) (provider.Record, bool, error) {
	if err := p.enterStarted(OpGetByID, itemType, id, nil); err != nil {
		return nil, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, idx := p.find(itemType, id)
	if idx < 0 {
		return nil, false, nil
	}
	cp, err := provider.Normalize(rec)
	return cp, err == nil, err
}

func (p *Provider) CreateData(ctx context.Context, itemType string, q provider.Query, rec provider.Record, dryRun bool) (string, error) {
	if err := p.enterStarted(OpCreate, itemType, "", rec); err != nil {
		return "", err
	}
	if dryRun {
		p.logger.Info("dry run: skipping create", "item_type", itemType)
		return "", nil
	}
	rec, err := provider.Normalize(rec)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.generateID()
	p.items[itemType] = append(p.items[itemType], mapping.Set(rec, p.idPath, id))
	p.logger.Debug("created record", "item_type", itemType, "id", id)
	return id, nil
}

// PatchData applies rec to the stored record as a JSON merge patch.
func (p *Provider) PatchData(ctx context.Context, itemType string, q provider.Query, id string, rec provider.Record, dryRun bool) error {
	if err := p.enterStarted(OpPatch, itemType, id, rec); err != nil {
		return err
	}
	patch, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if dryRun {
		p.logger.Info("dry run: skipping patch", "item_type", itemType, "id", id, "patch", string(patch))
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, idx := p.find(itemType, id)
	if idx < 0 {
		return fmt.Errorf("%s %s: %w", itemType, id, provider.ErrNotFound)
	}
	doc, err := json.Marshal(cur)
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
	return nil
}

func (p *Provider) ValidateSource(ep provider.Endpoint) error {
	return validateEndpoint(ep)
}

func (p *Provider) ValidateDestination(ep provider.Endpoint) error {
	return validateEndpoint(ep)
}

func validateEndpoint(ep provider.Endpoint) error {
	if ep.ItemType == "" {
		return fmt.Errorf("mapping %q: item type must not be empty", ep.Mapping)
	}
	return nil
}

// enter counts the call and consults the hook.
func (p *Provider) enter(op Op, itemType, id string, rec provider.Record) error {
	p.mu.Lock()
	p.calls[op]++
	hook := p.hook
	p.mu.Unlock()
	if hook != nil {
		return hook(op, itemType, id, rec)
	}
	return nil
}

func (p *Provider) enterStarted(op Op, itemType, id string, rec provider.Record) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return fmt.Errorf("provider %s is not initialized", p.name)
	}
	return p.enter(op, itemType, id, rec)
}

// find must be called with p.mu held.
func (p *Provider) find(itemType, id string) (provider.Record, int) {
	for i, rec := range p.items[itemType] {
		if p.idOf(rec) == id {
			return rec, i
		}
	}
	return nil, -1
}

func (p *Provider) idOf(rec provider.Record) string {
	v, ok := mapping.Get(rec, p.idPath)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// generateID must be called with p.mu held.
func (p *Provider) generateID() string {
	for {
		id := fmt.Sprintf("%s-%d", p.idPrefix, p.nextID)
		p.nextID++
		found := false
		for _, recs := range p.items {
			for _, rec := range recs {
				if p.idOf(rec) == id {
					found = true
				}
			}
		}
		if !found {
			return id
		}
	}
}

var _ provider.Provider = (*Provider)(nil)
