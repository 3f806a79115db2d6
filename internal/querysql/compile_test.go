package querysql

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_NoFilter(t *testing.T) {
	sql, params, err := Compile(Select{Table: "records", Column: "data", ItemType: "task"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT data FROM records WHERE item_type = ? ORDER BY rowid", sql)
	assert.Equal(t, []any{"task"}, params)
}

func TestCompile_ScalarFilters(t *testing.T) {
	sql, params, err := Compile(Select{
		Table:    "records",
		Column:   "data",
		ItemType: "task",
		Filter: map[string]any{
			"team":         "core",
			"fields.prio":  2,
			"done":         false,
			"score":        1.5,
			"meta.enabled": true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT data FROM records WHERE item_type = ?"+
		" AND json_extract(data, ?) = ?"+
		" AND json_extract(data, ?) = ?"+
		" AND json_extract(data, ?) = ?"+
		" AND json_extract(data, ?) = ?"+
		" AND json_extract(data, ?) = ?"+
		" ORDER BY rowid", sql)
	assert.Equal(t, []any{
		"task",
		"$.done", 0,
		"$.fields.prio", int64(2),
		"$.meta.enabled", 1,
		"$.score", 1.5,
		"$.team", "core",
	}, params)
}

func TestCompile_LeavesComplexFiltersToCaller(t *testing.T) {
	sql, params, err := Compile(Select{
		Table:    "records",
		Column:   "data",
		ItemType: "task",
		Filter: map[string]any{
			"tags":        []any{"a"},
			"owner":       map[string]any{"name": "x"},
			"odd path":    "x",
			"a..b":        "x",
			"count":       json.Number("3"),
			"nothing":     nil,
			"status.code": "open",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT data FROM records WHERE item_type = ? AND json_extract(data, ?) = ? ORDER BY rowid", sql)
	assert.Equal(t, []any{"task", "$.status.code", "open"}, params)
}

func TestCompile_RejectsUnsafeIdentifiers(t *testing.T) {
	_, _, err := Compile(Select{Table: "records; DROP TABLE x", Column: "data"})
	assert.ErrorContains(t, err, "invalid table name")

	_, _, err = Compile(Select{Table: "records", Column: "data)--"})
	assert.ErrorContains(t, err, "invalid column name")
}
