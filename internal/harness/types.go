package harness

import (
	"fmt"
	"strings"

	"github.com/Thox33/sync-tool/internal/engine"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/provider/memory"
)

// Call is one provider operation observed during a run.
type Call struct {
	Seq      int       `json:"seq"`
	Provider string    `json:"provider"`
	Op       memory.Op `json:"op"`
	ItemType string    `json:"item_type,omitempty"`
	ID       string    `json:"id,omitempty"`
	// Err is the injected failure, if any.
	Err string `json:"error,omitempty"`
}

// String renders the call as "<seq> <provider> <op> [item type] [id] [!error]".
func (c Call) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s %s", c.Seq, c.Provider, c.Op)
	if c.ItemType != "" {
		b.WriteString(" " + c.ItemType)
	}
	if c.ID != "" {
		b.WriteString(" " + c.ID)
	}
	if c.Err != "" {
		b.WriteString(" !" + c.Err)
	}
	return b.String()
}

// matches reports whether the call fits a "<provider> <op> [id]" pattern.
func (c Call) matches(pattern string) bool {
	parts := strings.Fields(pattern)
	if len(parts) < 2 || len(parts) > 3 {
		return false
	}
	if parts[0] != c.Provider || parts[1] != string(c.Op) {
		return false
	}
	return len(parts) == 2 || parts[2] == c.ID
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if all assertions hold.
	Pass bool `json:"pass"`

	// Report is the run report. It is nil when initialization failed.
	Report *engine.Report `json:"report,omitempty"`

	// Err is the error returned by initialization or the run.
	Err error `json:"-"`

	// Calls lists every provider operation in the order it was made.
	Calls []Call `json:"calls"`

	// State holds the final records per provider name and item type.
	State map[string]map[string][]provider.Record `json:"state"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	idPaths map[string]string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Calls:   []Call{},
		State:   make(map[string]map[string][]provider.Record),
		Errors:  []string{},
		idPaths: make(map[string]string),
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Record returns the final record id of itemType held by the named
// provider.
func (r *Result) Record(providerName, itemType, id string) (provider.Record, bool) {
	idPath := r.idPaths[providerName]
	if idPath == "" {
		idPath = "id"
	}
	for _, rec := range r.State[providerName][itemType] {
		if provider.Matches(rec, map[string]any{idPath: id}) {
			return rec, true
		}
	}
	return nil, false
}

// Item returns the report entry of the item with key.
func (r *Result) Item(key string) (engine.ItemResult, bool) {
	if r.Report == nil {
		return engine.ItemResult{}, false
	}
	for _, it := range r.Report.Items {
		if it.Key == key {
			return it, true
		}
	}
	return engine.ItemResult{}, false
}
