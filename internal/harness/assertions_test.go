package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thox33/sync-tool/internal/engine"
	"github.com/Thox33/sync-tool/internal/provider"
	"github.com/Thox33/sync-tool/internal/provider/memory"
)

func sampleResult() *Result {
	r := NewResult()
	r.Report = &engine.Report{
		RunID:    "run-1",
		Rule:     "s/r",
		Steps:    4,
		MaxSteps: 10,
		Created:  1,
		Fetched:  1,
		Items: []engine.ItemResult{
			{Key: "A-1", Status: engine.StatusSynced, Steps: 3},
			{Key: "A-2", Status: engine.StatusFailed, Steps: 1, Error: "fetch step failed"},
		},
	}
	r.Calls = []Call{
		{Seq: 1, Provider: "src", Op: memory.OpInit},
		{Seq: 2, Provider: "dst", Op: memory.OpInit},
		{Seq: 3, Provider: "src", Op: memory.OpGet, ItemType: "task"},
		{Seq: 4, Provider: "dst", Op: memory.OpCreate, ItemType: "issue"},
		{Seq: 5, Provider: "src", Op: memory.OpPatch, ItemType: "task", ID: "A-1"},
		{Seq: 6, Provider: "dst", Op: memory.OpGetByID, ItemType: "issue", ID: "D-9", Err: "boom"},
	}
	r.State["dst"] = map[string][]provider.Record{
		"issue": {{"key": "D-1", "fields": map[string]any{"name": "Widget", "size": 2}}},
	}
	r.idPaths["dst"] = "key"
	return r
}

func TestCheckAssertion_Passing(t *testing.T) {
	tests := []Assertion{
		{Type: AssertErrorCode},
		{Type: AssertItemStatus, Item: "A-1", Status: "synced"},
		{Type: AssertItemStatus, Item: "A-2", Status: "failed"},
		{Type: AssertReport, Expect: map[string]any{"steps": 4, "max_steps": 10, "synced": 1, "failed": 1, "items": 2}},
		{Type: AssertCallCount, Provider: "dst", Op: "init", Count: 1},
		{Type: AssertCallCount, Provider: "dst", Op: "patch", Count: 0},
		{Type: AssertCallOrder, Calls: []string{"src init", "dst create", "src patch A-1"}},
		{Type: AssertFinalState, Provider: "dst", ItemType: "issue", ID: "D-1", Expect: map[string]any{"fields.name": "Widget", "fields.size": 2}},
	}
	r := sampleResult()
	for _, a := range tests {
		t.Run(a.Type, func(t *testing.T) {
			assert.NoError(t, checkAssertion(r, a))
		})
	}
}

func TestCheckAssertion_Failing(t *testing.T) {
	tests := []struct {
		assertion Assertion
		actual    string
	}{
		{Assertion{Type: AssertErrorCode, Code: "QUOTA_EXCEEDED"}, "Actual: none"},
		{Assertion{Type: AssertItemStatus, Item: "A-2", Status: "synced"}, "Actual: failed (fetch step failed)"},
		{Assertion{Type: AssertItemStatus, Item: "A-3", Status: "synced"}, "item not in report"},
		{Assertion{Type: AssertReport, Expect: map[string]any{"created": 2}}, "created=1 (want 2)"},
		{Assertion{Type: AssertCallCount, Provider: "src", Op: "get", Count: 2}, "called 1 times"},
		{Assertion{Type: AssertCallOrder, Calls: []string{"dst create", "src init"}}, `no call matching "src init" after 1 matched`},
		{Assertion{Type: AssertFinalState, Provider: "dst", ItemType: "issue", ID: "D-1", Expect: map[string]any{"fields.name": "Gadget"}}, "fields.name=Widget (want Gadget)"},
		{Assertion{Type: AssertFinalState, Provider: "dst", ItemType: "issue", ID: "D-1", Expect: map[string]any{"origin": "x"}}, "origin missing"},
		{Assertion{Type: AssertFinalState, Provider: "dst", ItemType: "issue", ID: "D-2", Expect: map[string]any{"key": "D-2"}}, "record not found"},
	}
	r := sampleResult()
	for _, tt := range tests {
		t.Run(tt.assertion.Type, func(t *testing.T) {
			err := checkAssertion(r, tt.assertion)
			require.Error(t, err)
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.assertion.Type, ae.Type)
			assert.Contains(t, err.Error(), tt.actual)
		})
	}
}

func TestCheckAssertion_ErrorCode(t *testing.T) {
	r := sampleResult()
	r.Err = &engine.RuntimeError{Code: engine.ErrCodeCanceled, Message: "run cancelled"}
	assert.NoError(t, checkAssertion(r, Assertion{Type: AssertErrorCode, Code: "CANCELED"}))

	r.Err = errors.New("plain")
	err := checkAssertion(r, Assertion{Type: AssertErrorCode})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "untyped error: plain")
}

func TestCheckAssertions_CollectsEveryFailure(t *testing.T) {
	r := sampleResult()
	checkAssertions(r, []Assertion{
		{Type: AssertErrorCode, Code: "CONFIG"},
		{Type: AssertItemStatus, Item: "A-1", Status: "synced"},
		{Type: AssertCallCount, Provider: "src", Op: "teardown", Count: 1},
	})
	assert.False(t, r.Pass)
	assert.Len(t, r.Errors, 2)
}

func TestAssertionError_IncludesCalls(t *testing.T) {
	err := &AssertionError{
		Type:     AssertCallCount,
		Expected: "dst getByID called 0 times",
		Actual:   "called 1 times",
		Calls:    sampleResult().Calls[5:],
	}
	assert.Equal(t, "Assertion failed: call_count\n"+
		"  Expected: dst getByID called 0 times\n"+
		"  Actual: called 1 times\n"+
		"\nCalls:\n"+
		"  6 dst getByID issue D-9 !boom\n", err.Error())
}

func TestCall_Matches(t *testing.T) {
	c := Call{Provider: "dst", Op: memory.OpPatch, ItemType: "issue", ID: "D-1"}
	assert.True(t, c.matches("dst patch"))
	assert.True(t, c.matches("dst patch D-1"))
	assert.False(t, c.matches("dst patch D-2"))
	assert.False(t, c.matches("src patch"))
	assert.False(t, c.matches("dst"))
	assert.False(t, c.matches("dst patch D-1 extra"))
}
