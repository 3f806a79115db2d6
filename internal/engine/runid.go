package engine

import (
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator generates run ids used to correlate log lines and reports.
// Implemented by UUIDv7Generator (production) and FixedRunIDs (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedRunIDs returns predetermined run ids in order, for deterministic
// tests. Generate panics when the ids are exhausted.
type FixedRunIDs struct {
	mu  sync.Mutex
	ids []string
	pos int
}

// NewFixedRunIDs creates a generator returning ids in order.
func NewFixedRunIDs(ids ...string) *FixedRunIDs {
	return &FixedRunIDs{ids: ids}
}

func (g *FixedRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pos >= len(g.ids) {
		panic("FixedRunIDs: no more run ids")
	}
	id := g.ids[g.pos]
	g.pos++
	return id
}
