package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// scenarioDir holds the end-to-end scenarios shared with the rest of the
// repository.
var scenarioDir = filepath.Join("..", "..", "testdata", "scenarios")

// TestScenarios runs every scenario and compares its snapshot with the
// golden file of the same name.
func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(scenarioDir)
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, s, filepath.Join(scenarioDir, "golden")))
		})
	}
}

// Scenarios with several workers are not golden-compared because their
// call order is not fixed, but their outcome is.
func TestScenarios_ConcurrentWorkersSameOutcome(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenarioDir, "update_existing.yaml"))
	require.NoError(t, err)
	s.Workers = 4

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
}
