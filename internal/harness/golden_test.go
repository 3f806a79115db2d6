package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thox33/sync-tool/internal/engine"
	"github.com/Thox33/sync-tool/internal/provider"
)

func TestSnapshot_Format(t *testing.T) {
	r := sampleResult()
	r.Err = &engine.RuntimeError{Code: engine.ErrCodeQuotaExceeded, Message: "run aborted"}
	r.State["src"] = map[string][]provider.Record{
		"task": {{"id": "A-1", "note": "<b>&</b>"}},
	}

	got, err := Snapshot("sample", r)
	require.NoError(t, err)
	assert.Equal(t, `scenario: sample
error: QUOTA_EXCEEDED
--- calls
1 src init
2 dst init
3 src get task
4 dst create issue
5 src patch task A-1
6 dst getByID issue D-9 !boom
--- report
rule s/r: 2 items, 4 steps
  created=1 fetched=1 updated=0 planned=0
  synced=1
  failed=1
  item A-2: fetch step failed
--- state
dst issue
  {"fields":{"name":"Widget","size":2},"key":"D-1"}
src task
  {"id":"A-1","note":"<b>&</b>"}
`, string(got))
}

func TestSnapshot_NoReport(t *testing.T) {
	r := NewResult()
	got, err := Snapshot("empty", r)
	require.NoError(t, err)
	assert.Equal(t, "scenario: empty\nerror: none\n--- calls\n--- report\nnone\n--- state\n", string(got))
}

func TestRunWithGolden_FailsOnAssertions(t *testing.T) {
	s := minimalScenario()
	s.Assertions = []Assertion{{Type: AssertErrorCode, Code: "CONFIG"}}

	err := RunWithGolden(t, s, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario minimal failed")
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "dry_run.golden"),
		GoldenPath(filepath.Join("scenarios", "dry_run.yaml"), "dry_run"))
}
