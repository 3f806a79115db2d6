package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const taskConfig = `
types:
  Task:
    fields:
      id: {type: string}
      title: {type: string}
      syncStatus: {type: syncStatus}
    options:
      comparableFields: [title]
      syncableFields: [title]
providers:
  left:
    provider: file
    options: {path: %q}
    mappings:
      task:
        fields: {id: id, title: title, syncStatus: link}
  right:
    provider: file
    options: {path: %q}
    mappings:
      task:
        fields: {id: id, title: name, syncStatus: origin}
syncs:
  tasks:
    rules:
      default:
        type: Task
        source: {provider: left, mapping: task}
        destination: {provider: right, mapping: task}
`

type workspace struct {
	config string
	left   string
	right  string
}

// newWorkspace writes a configuration syncing left.yaml into right.yaml.
// rightPath overrides the destination document path when non-empty.
func newWorkspace(t *testing.T, leftDoc string, rightPath string) *workspace {
	t.Helper()
	dir := t.TempDir()
	ws := &workspace{
		config: filepath.Join(dir, "synctool.yaml"),
		left:   filepath.Join(dir, "left.yaml"),
		right:  filepath.Join(dir, "right.yaml"),
	}
	if rightPath != "" {
		ws.right = rightPath
	}
	require.NoError(t, os.WriteFile(ws.config, []byte(fmt.Sprintf(taskConfig, ws.left, ws.right)), 0644))
	if leftDoc != "" {
		require.NoError(t, os.WriteFile(ws.left, []byte(leftDoc), 0644))
	}
	return ws
}

func (ws *workspace) records(t *testing.T, path string) []map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string][]map[string]any
	require.NoError(t, yaml.Unmarshal(b, &doc))
	return doc["task"]
}

// execute runs cmd with args and returns its combined output.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

const twoTasks = `
task:
  - {id: T-1, title: Write docs}
  - {id: T-2, title: Ship it}
`

func writeYAML(t *testing.T, path string, doc any) {
	t.Helper()
	b, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0644))
}
