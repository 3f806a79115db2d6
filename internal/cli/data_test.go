package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataGet(t *testing.T) {
	ws := newWorkspace(t, twoTasks, "")

	cmd := NewDataGetCommand(&RootOptions{Format: "text", Config: ws.config})
	out, err := execute(cmd, "tasks", "default")
	require.NoError(t, err)

	assert.Contains(t, out, `"title":"Write docs"`)
	assert.Contains(t, out, `"syncStatus":{"value":""}`)
	assert.Contains(t, out, "2 record(s) for rule tasks/default")
}

func TestDataGetOnlyCount(t *testing.T) {
	ws := newWorkspace(t, twoTasks, "")

	cmd := NewDataGetCommand(&RootOptions{Format: "text", Config: ws.config})
	out, err := execute(cmd, "tasks", "default", "--only-count")
	require.NoError(t, err)
	assert.Equal(t, "2 record(s) for rule tasks/default\n", out)
}

func TestDataGetRawJSON(t *testing.T) {
	ws := newWorkspace(t, twoTasks, "")

	cmd := NewDataGetCommand(&RootOptions{Format: "json", Config: ws.config})
	out, err := execute(cmd, "tasks", "default", "--raw")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Rule    string           `json:"rule"`
			Count   int              `json:"count"`
			Records []map[string]any `json:"records"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Count)
	require.Len(t, resp.Data.Records, 2)
	assert.Equal(t, map[string]any{"id": "T-1", "title": "Write docs"}, resp.Data.Records[0])
}

func TestDataGetUnknownRule(t *testing.T) {
	ws := newWorkspace(t, twoTasks, "")

	cmd := NewDataGetCommand(&RootOptions{Format: "text", Config: ws.config})
	out, err := execute(cmd, "tasks", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E209")
	assert.Contains(t, out, `rule "missing" not found in sync "tasks"`)
}

func TestDataGetValidationFailure(t *testing.T) {
	ws := newWorkspace(t, "task:\n  - {id: T-1}\n", "")

	cmd := NewDataGetCommand(&RootOptions{Format: "text", Config: ws.config})
	out, err := execute(cmd, "tasks", "default")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "VALIDATION")
	assert.Contains(t, out, "field title is missing in data")
}
