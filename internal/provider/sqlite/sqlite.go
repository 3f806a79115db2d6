// Package sqlite provides a provider backed by a local SQLite database.
// Each record is a JSON document; patches are applied as JSON merge
// patches (RFC 7386).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"

	"github.com/Thox33/sync-tool/internal/mapping"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/querysql"
)

// Kind is the registry name of this provider.
const Kind = "sqlite"

// Provider stores records in a SQLite table.
type Provider struct {
	name    string
	path    string
	idPath  string
	baseURL string
	newID   func() string

	mu sync.Mutex
	db *sql.DB
}

// Factory builds sqlite providers for the provider registry.
func Factory(name string, options map[string]any) (provider.Provider, error) {
	return New(name, options)
}

// New creates a provider. Supported options:
//
//	path     database file (required; ":memory:" for a private database)
//	idPath   dotted path of the id inside a record (default "id")
//	baseURL  prefix of item URLs (default "sqlite://<path>")
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
	if p.baseURL, err = provider.StringOption(options, "baseURL", "sqlite://"+path); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return nil
	}
	db, err := openDB(p.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", provider.ErrInit, p.name, err)
	}
	p.db = db
	return nil
}

func (p *Provider) Teardown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	if err != nil {
		return fmt.Errorf("%w: %s: %v", provider.ErrTeardown, p.name, err)
	}
	return nil
}

func (p *Provider) conn() (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, fmt.Errorf("provider %s is not initialized", p.name)
	}
	return p.db, nil
}

func (p *Provider) ItemURL(ctx context.Context, id string) (string, error) {
	return fmt.Sprintf("%s/items/%s", p.baseURL, id), nil
}

// Insert stores rec under its own id, generating one when absent, and
// returns the id.
func (p *Provider) Insert(ctx context.Context, itemType string, rec provider.Record) (string, error) {
	db, err := p.conn()
	if err != nil {
		return "", err
	}
	id := p.idOf(rec)
	if id == "" {
		id = p.newID()
		rec = mapping.Set(rec, p.idPath, id)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO records (item_type, id, data) VALUES (?, ?, ?)`,
		itemType, id, string(data))
	if err != nil {
		return "", fmt.Errorf("insert %s %s: %w", itemType, id, err)
	}
	return id, nil
}

func (p *Provider) GetData(ctx context.Context, itemType string, q provider.Query) ([]provider.Record, error) {
	db, err := p.conn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrGetData, err)
	}
	query, params, err := querysql.Compile(querysql.Select{
		Table:    "records",
		Column:   "data",
		ItemType: itemType,
		Filter:   q.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrGetData, err)
	}
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrGetData, err)
	}
	defer rows.Close()

	var out []provider.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: %v", provider.ErrGetData, err)
		}
		rec, err := provider.DecodeRecord([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decode: %v", provider.ErrGetData, err)
		}
		// The query only narrows by the filter entries SQL can express.
		if provider.Matches(rec, q.Filter) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrGetData, err)
	}
	return out, nil
}

func (p *Provider) GetDataByID(ctx context.Context, itemType, id string) (provider.Record, bool, error) {
	db, err := p.conn()
	if err != nil {
		return nil, false, err
	}
	var data string
	err = db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE item_type = ? AND id = ?`, itemType, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s %s: %w", itemType, id, err)
	}
	rec, err := provider.DecodeRecord([]byte(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode %s %s: %w", itemType, id, err)
	}
	return rec, true, nil
}

func (p *Provider) CreateData(ctx context.Context, itemType string, q provider.Query, rec provider.Record, dryRun bool) (string, error) {
	if dryRun {
		slog.Info("dry run: skipping create", "provider", p.name, "item_type", itemType)
		return "", nil
	}
	return p.Insert(ctx, itemType, mapping.Set(rec, p.idPath, p.newID()))
}

// PatchData merges rec into the stored document inside one transaction.
func (p *Provider) PatchData(ctx context.Context, itemType string, q provider.Query, id string, rec provider.Record, dryRun bool) error {
	patch, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if dryRun {
		slog.Info("dry run: skipping patch", "provider", p.name, "item_type", itemType, "id", id, "patch", string(patch))
		return nil
	}
	db, err := p.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM records WHERE item_type = ? AND id = ?`, itemType, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", itemType, id, provider.ErrNotFound)
	}
	if err != nil {
		return err
	}
	merged, err := jsonpatch.MergePatch([]byte(data), patch)
	if err != nil {
		return fmt.Errorf("merge patch %s %s: %w", itemType, id, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE records SET data = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE item_type = ? AND id = ?`,
		string(merged), itemType, id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", itemType, id, err)
	}
	return tx.Commit()
}

func (p *Provider) ValidateSource(ep provider.Endpoint) error {
	if ep.ItemType == "" {
		return fmt.Errorf("mapping %q: item type must not be empty", ep.Mapping)
	}
	return nil
}

func (p *Provider) ValidateDestination(ep provider.Endpoint) error {
	return p.ValidateSource(ep)
}

func (p *Provider) idOf(rec provider.Record) string {
	v, ok := mapping.Get(rec, p.idPath)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

var _ provider.Provider = (*Provider)(nil)
