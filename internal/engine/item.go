package engine

import (
	"fmt"

	"github.com/Thox33/sync-tool/internal/schema"
)

// Status is the lifecycle state of an Item.
type Status int

const (
	// StatusPrepare is the initial state before the first Advance.
	StatusPrepare Status = iota
	// StatusNew means the record has no counterpart and must be created.
	StatusNew
	// StatusShouldFetch means the counterpart exists and must be read.
	StatusShouldFetch
	// StatusFetched means both sides are loaded and must be compared.
	StatusFetched
	// StatusNeedsUpdate means the comparison found a difference.
	StatusNeedsUpdate
	// StatusSynced is terminal: both sides agree.
	StatusSynced
	// StatusFailed is terminal: a step failed.
	StatusFailed
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPrepare, StatusNew, StatusShouldFetch, StatusFetched,
	StatusNeedsUpdate, StatusSynced, StatusFailed,
}

var statusNames = [...]string{
	StatusPrepare:     "prepare",
	StatusNew:         "new",
	StatusShouldFetch: "should_fetch",
	StatusFetched:     "fetched",
	StatusNeedsUpdate: "needs_update",
	StatusSynced:      "synced",
	StatusFailed:      "failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText renders the status name in reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Terminal reports whether no further step applies.
func (s Status) Terminal() bool {
	return s == StatusSynced || s == StatusFailed
}

// Item tracks one source record through a run. Items live only for the
// duration of a run.
type Item struct {
	// Key identifies the item in logs and reports (the source record id).
	Key string

	Source      schema.Record
	Destination schema.Record
	Status      Status

	// Err is the error that moved the item to StatusFailed.
	Err error

	// Planned is set when a dry run skipped the creation of the counterpart.
	Planned bool

	// Steps counts the steps executed for this item.
	Steps int

	markerField string
}

// NewItem creates an item in StatusPrepare. markerField names the sync
// status field of the canonical type; it may be empty when the type has none.
func NewItem(key string, source schema.Record, markerField string) *Item {
	return &Item{
		Key:         key,
		Source:      source,
		Status:      StatusPrepare,
		markerField: markerField,
	}
}

// Advance applies the automatic transitions:
//
//	PREPARE, no destination      -> SHOULD_FETCH if the source marker links a counterpart, else NEW
//	SHOULD_FETCH, destination set -> FETCHED
//
// Any other combination leaves the status unchanged.
func (i *Item) Advance() {
	switch {
	case i.Status == StatusPrepare && i.Destination == nil:
		if i.sourceMarker().Linked() {
			i.Status = StatusShouldFetch
		} else {
			i.Status = StatusNew
		}
	case i.Status == StatusShouldFetch && i.Destination != nil:
		i.Status = StatusFetched
	}
}

// AddDestination stores the fetched counterpart and advances.
func (i *Item) AddDestination(rec schema.Record) {
	i.Destination = rec
	i.Advance()
}

// SourceSyncID returns the id of the first counterpart linked by the source
// marker.
func (i *Item) SourceSyncID() (string, bool) {
	m := i.sourceMarker()
	if !m.Linked() {
		return "", false
	}
	return m.Entries[0].ID, true
}

// Fail moves the item to StatusFailed.
func (i *Item) Fail(err error) {
	i.Status = StatusFailed
	i.Err = err
}

// Terminal reports whether the item needs no further steps.
func (i *Item) Terminal() bool { return i.Status.Terminal() }

// sourceMarker returns the source marker. A marker with empty markup counts
// as unlinked even if entries were set.
func (i *Item) sourceMarker() schema.SyncStatus {
	if i.markerField == "" {
		return schema.SyncStatus{}
	}
	m, ok := i.Source[i.markerField].(schema.SyncStatus)
	if !ok || m.Value == "" {
		return schema.SyncStatus{}
	}
	return m
}
