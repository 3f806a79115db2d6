// Package provider defines the contract between the sync engine and the
// systems records are read from and written to.
//
// The engine never looks inside a Query or a raw Record. A provider receives
// records already mapped to its own layout and returns records in that same
// layout.
package provider

import (
	"context"
	"errors"
)

// Record is a record in a provider's own layout.
type Record = map[string]any

// Query narrows the records a provider operates on. Its content is only
// meaningful to the provider.
type Query struct {
	Filter map[string]any `json:"filter,omitempty"`
}

// Endpoint is one side of a sync rule as seen by a provider.
type Endpoint struct {
	// Provider is the configured provider name.
	Provider string
	// ItemType is the provider-side item type selected by the mapping.
	ItemType string
	// Mapping is the name of the mapping used by this endpoint.
	Mapping string
	Query   Query
}

// Provider is implemented by every data source and destination.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Init connects to the backing system. Called once before any data call.
	Init(ctx context.Context) error

	// Teardown releases resources. Called once after the run, even when the
	// run failed.
	Teardown(ctx context.Context) error

	// ItemURL returns a link to the item with the given id.
	ItemURL(ctx context.Context, id string) (string, error)

	// GetData returns the records of itemType matching the query.
	GetData(ctx context.Context, itemType string, q Query) ([]Record, error)

	// GetDataByID returns one record. The boolean is false when no record
	// with that id exists.
	GetDataByID(ctx context.Context, itemType, id string) (Record, bool, error)

	// CreateData creates a record and returns its id. In dry-run mode nothing
	// is written and the returned id is empty.
	CreateData(ctx context.Context, itemType string, q Query, rec Record, dryRun bool) (string, error)

	// PatchData updates the given fields of an existing record. In dry-run
	// mode nothing is written.
	PatchData(ctx context.Context, itemType string, q Query, id string, rec Record, dryRun bool) error

	// ValidateSource checks that the provider can act as the source of a rule.
	ValidateSource(ep Endpoint) error

	// ValidateDestination checks that the provider can act as the destination
	// of a rule.
	ValidateDestination(ep Endpoint) error
}

// Sentinel errors classifying provider failures.
var (
	ErrInit     = errors.New("provider init failed")
	ErrGetData  = errors.New("provider get data failed")
	ErrTeardown = errors.New("provider teardown failed")
	ErrNotFound = errors.New("record not found")
)
