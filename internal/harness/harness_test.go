package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thox33/sync-tool/internal/engine"
)

func minimalScenario() *Scenario {
	return &Scenario{
		Name:        "minimal",
		Description: "minimal scenario",
		Config:      minimalConfig,
		Sync:        "s",
		Rule:        "r",
		Seed: map[string]map[string][]map[string]any{
			"a": {"x": {{"id": "a-1"}}},
		},
		Assertions: []Assertion{{Type: AssertErrorCode}},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(context.Background(), minimalScenario())
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NotNil(t, result.Report)
	assert.Equal(t, DefaultRunID, result.Report.RunID)
	assert.Equal(t, 1, result.Report.Created)

	rec, ok := result.Record("b", "y", "b-1")
	require.True(t, ok)
	assert.Equal(t, `<a href="memory://a/items/a-1">a-1</a>`, rec["s"])
}

func TestRun_RunIDAndWorkers(t *testing.T) {
	s := minimalScenario()
	s.RunID = "fixed"
	s.Workers = 3

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "fixed", result.Report.RunID)
}

func TestRun_YAMLConfig(t *testing.T) {
	s := minimalScenario()
	s.ConfigFile = "sync.yaml"
	s.Config = `
types:
  T:
    fields:
      id: {type: string}
      syncStatus: {type: syncStatus}
providers:
  a: {provider: memory, mappings: {m: {itemType: x, fields: {id: id, syncStatus: s}}}}
  b: {provider: memory, mappings: {m: {itemType: y, fields: {id: id, syncStatus: s}}}}
syncs:
  s:
    rules:
      r:
        type: T
        source: {provider: a, mapping: m}
        destination: {provider: b, mapping: m}
`
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

// Any provider kind is served from memory, so production configurations
// can be rehearsed as they are.
func TestRun_ReplacesEveryProviderKind(t *testing.T) {
	s := minimalScenario()
	s.Config = `
types: T: fields: {
	id:         type: "string"
	syncStatus: type: "syncStatus"
}
providers: {
	a: {provider: "file", options: path: "/does/not/exist.yaml", mappings: m: {itemType: "x", fields: {id: "id", syncStatus: "s"}}}
	b: {provider: "sqlite", options: dsn: "/does/not/exist.db", mappings: m: {itemType: "y", fields: {id: "id", syncStatus: "s"}}}
}
syncs: s: rules: r: {
	type: "T"
	source: {provider: "a", mapping: "m"}
	destination: {provider: "b", mapping: "m"}
}
`
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Report.Created)
}

// Both endpoints naming the same provider share one instance.
func TestRun_SameProviderOnBothSides(t *testing.T) {
	s := minimalScenario()
	s.Config = `
types: T: fields: {
	id:         type: "string"
	syncStatus: type: "syncStatus"
}
providers: a: {provider: "memory", mappings: {
	m: {itemType: "x", fields: {id: "id", syncStatus: "s"}}
	n: {itemType: "y", fields: {id: "id", syncStatus: "s"}}
}}
syncs: s: rules: r: {
	type: "T"
	source: {provider: "a", mapping: "m"}
	destination: {provider: "a", mapping: "n"}
}
`
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	_, ok := result.Record("a", "y", "a-2")
	assert.True(t, ok, "copy created next to the seed record")
}

func TestRun_InjectedFailure(t *testing.T) {
	s := minimalScenario()
	s.Failures = []Failure{{Provider: "b", Op: "create", Error: "disk full"}}
	s.Assertions = []Assertion{
		{Type: AssertItemStatus, Item: "a-1", Status: "failed"},
		{Type: AssertCallCount, Provider: "b", Op: "create", Count: 1},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	it, ok := result.Item("a-1")
	require.True(t, ok)
	assert.Contains(t, it.Error, "disk full")
	assert.Contains(t, result.Calls[3].String(), "!disk full")
}

func TestRun_RuntimeErrorIsPartOfResult(t *testing.T) {
	s := minimalScenario()
	s.Failures = []Failure{{Provider: "a", Op: "get", Error: "timeout"}}
	s.Assertions = []Assertion{{Type: AssertErrorCode, Code: string(engine.ErrCodeSourceData)}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, engine.ErrCodeSourceData, engine.ErrorCode(result.Err))
}

func TestRun_SetupErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{
			name:    "invalid config",
			mutate:  func(s *Scenario) { s.Config = "types: {" },
			wantErr: "failed to load scenario config",
		},
		{
			name:    "unknown rule",
			mutate:  func(s *Scenario) { s.Rule = "nope" },
			wantErr: "failed to resolve scenario rule",
		},
		{
			name: "seed for unknown provider",
			mutate: func(s *Scenario) {
				s.Seed["c"] = map[string][]map[string]any{"x": {{"id": "c-1"}}}
			},
			wantErr: `seed: unknown provider "c"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := minimalScenario()
			tt.mutate(s)
			_, err := Run(context.Background(), s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_DuplicateSeedFailsInit(t *testing.T) {
	s := minimalScenario()
	s.Seed["a"]["x"] = append(s.Seed["a"]["x"], map[string]any{"id": "a-1"})
	s.Assertions = []Assertion{{Type: AssertErrorCode, Code: string(engine.ErrCodeProviderInit)}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Report)
}
