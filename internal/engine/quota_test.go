package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)

	for i := 0; i < 10; i++ {
		err := q.Check("run-1")
		assert.NoError(t, err, "step %d should be allowed", i+1)
	}

	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(5)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check("run-1"))
	}

	err := q.Check("run-1")
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "run-1", stepsErr.RunID)
	assert.Equal(t, 6, stepsErr.Steps)
	assert.Equal(t, 5, stepsErr.Limit)
	assert.Contains(t, err.Error(), "6 steps > 5 limit")
}

func TestQuotaEnforcer_ZeroLimit(t *testing.T) {
	q := NewQuotaEnforcer(0)
	assert.Error(t, q.Check("run-1"))
}

func TestIsQuotaError(t *testing.T) {
	steps := &StepsExceededError{RunID: "run-1", Steps: 3, Limit: 2}
	wrapped := newRuntimeError(ErrCodeQuotaExceeded, "s/r", "run aborted", steps)

	assert.True(t, IsQuotaError(steps))
	assert.True(t, IsQuotaError(wrapped))
	assert.True(t, IsQuotaError(fmt.Errorf("outer: %w", wrapped)))
	assert.True(t, IsStepsExceededError(wrapped))
	assert.False(t, IsQuotaError(newRuntimeError(ErrCodeConfig, "s/r", "bad", nil)))
	assert.Equal(t, ErrCodeQuotaExceeded, ErrorCode(wrapped))
	assert.Equal(t, RuntimeErrorCode(""), ErrorCode(steps))
}
