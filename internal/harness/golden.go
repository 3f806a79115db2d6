package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/Thox33/sync-tool/internal/engine"
)

// Snapshot renders the deterministic text form of a result: the run
// error code, the provider calls, the report and the final records.
// Records are written as JSON with sorted keys, one per line.
func Snapshot(name string, r *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "error: %s\n", orNone(string(engine.ErrorCode(r.Err))))

	buf.WriteString("--- calls\n")
	for _, c := range r.Calls {
		fmt.Fprintf(&buf, "%s\n", c)
	}

	buf.WriteString("--- report\n")
	if r.Report == nil {
		buf.WriteString("none\n")
	} else if err := r.Report.WriteText(&buf); err != nil {
		return nil, err
	}

	buf.WriteString("--- state\n")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, name := range slices.Sorted(maps.Keys(r.State)) {
		byType := r.State[name]
		for _, itemType := range slices.Sorted(maps.Keys(byType)) {
			fmt.Fprintf(&buf, "%s %s\n", name, itemType)
			for _, rec := range byType[itemType] {
				buf.WriteString("  ")
				if err := enc.Encode(rec); err != nil {
					return nil, err
				}
			}
		}
	}
	return buf.Bytes(), nil
}

// GoldenPath returns the golden file of a scenario: golden/<name>.golden
// next to the scenario file.
func GoldenPath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// RunWithGolden executes a scenario, fails if any assertion does not hold
// and compares the snapshot against <goldenDir>/<name>.golden.
//
// Golden files are updated with the -update flag:
//
//	go test ./internal/harness -run TestScenarios -update
func RunWithGolden(t *testing.T, scenario *Scenario, goldenDir string) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed:\n%s", scenario.Name, strings.Join(result.Errors, "\n"))
	}
	return AssertGolden(t, goldenDir, scenario.Name, result)
}

// AssertGolden compares the snapshot of an existing result against a
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, goldenDir, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(goldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
