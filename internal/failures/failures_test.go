package failures

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"planning", New(KindPlanning, "orchestrator", "oracle returned TERMINATE"), KindPlanning},
		{"wrapped resolution", fmt.Errorf("click: %w", New(KindResolution, "locator", "no match")), KindResolution},
		{"plain driver error", errors.New("element detached"), KindExecution},
		{"context error", context.DeadlineExceeded, KindExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsAssertion(t *testing.T) {
	inner := New(KindAssertion, "assertion", "price mismatch")
	// An execution wrapper around an assertion still counts as an assertion.
	outer := Wrap(KindExecution, "executor", inner, "step failed")

	assert.True(t, IsAssertion(inner))
	assert.True(t, IsAssertion(outer))
	assert.True(t, IsAssertion(fmt.Errorf("batch: %w", outer)))
	assert.False(t, IsAssertion(errors.New("assertion text in message only")))
	assert.False(t, IsAssertion(nil))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(errors.New("driver timeout")))
	assert.True(t, Recoverable(New(KindResolution, "locator", "unresolved")))
	assert.True(t, Recoverable(New(KindExecution, "executor", "unknown function")))
	assert.False(t, Recoverable(New(KindAssertion, "assertion", "false")))
	assert.False(t, Recoverable(New(KindPlanning, "planner", "empty plan")))
	assert.False(t, Recoverable(New(KindOracleProtocol, "planner", "bad json")))
	assert.False(t, Recoverable(nil))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	assert.Equal(t, "planner: empty plan", New(KindPlanning, "planner", "empty plan").Error())
	assert.Equal(t, "executor: step failed: boom", Wrap(KindExecution, "executor", cause, "step failed").Error())
	assert.Equal(t, "executor: boom", Wrap(KindExecution, "executor", cause, "").Error())
	assert.Nil(t, Wrap(KindExecution, "executor", nil, "ignored"))
	assert.ErrorIs(t, Wrap(KindExecution, "executor", cause, "x"), cause)
}
