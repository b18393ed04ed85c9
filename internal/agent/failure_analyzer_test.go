package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) ReadAll(context.Context) ([]learning.Record, error) {
	return nil, errors.New("store offline")
}

func (brokenStore) Append(context.Context, learning.Record) (int, error) {
	return 0, errors.New("store offline")
}

// failedContext is a home context whose head subtask just failed.
func failedContext(t *testing.T) *ExecutionContext {
	t.Helper()
	rc := homeContext("search for ferries from Athens")
	rc.Queue.ReplacePending([]string{"click search", "pick the first ferry"})
	_, err := rc.Queue.Fail()
	require.NoError(t, err)
	return rc
}

var errNotRendered = failures.New(failures.KindResolution, "locator", "no element matches //button[@id='gone']")

func TestFailureAnalyzer_AssertionPassesThrough(t *testing.T) {
	o := oracle.NewScripted()
	rc := failedContext(t)
	cause := failures.New(failures.KindAssertion, "assertion", "fare mismatch")

	err := NewFailureAnalyzer(testRegistry(t), o, learning.NewMemory(), newDoc(t), false, zaptest.NewLogger(t)).
		Analyze(context.Background(), rc, cause)
	assert.Same(t, cause, err)
	assert.Zero(t, rc.ConsecutiveFailures)
	assert.Empty(t, o.Requests())
}

func TestFailureAnalyzer_LimitWithoutOracle(t *testing.T) {
	o := oracle.NewScripted()
	rc := failedContext(t)
	rc.ConsecutiveFailures = MaxConsecutiveFailures - 1

	err := NewFailureAnalyzer(testRegistry(t), o, learning.NewMemory(), newDoc(t), false, zaptest.NewLogger(t)).
		Analyze(context.Background(), rc, errNotRendered)
	assert.ErrorIs(t, err, ErrFailureLimit)
	assert.Contains(t, err.Error(), "no element matches")
	assert.Empty(t, o.Requests())
}

func TestFailureAnalyzer_Recovers(t *testing.T) {
	past := []learning.Record{
		{FailedSubtask: "open the menu", FailureReason: "hidden", AgentSelected: "search_widget", Reasoning: "r", MitigationTask: "scroll"},
		{FailedSubtask: "Click   SEARCH", FailureReason: "popup", AgentSelected: "search_widget", Reasoning: "r", MitigationTask: "close the popup"},
	}
	store := learning.NewMemory(past...)
	o := oracle.NewScripted().
		On(oracle.RoleDescribeUI, "A cookie banner covers the search form.").
		On(oracle.RoleFailureAnalyzer, recoveryReply("search_widget", "close the cookie banner"))
	rc := failedContext(t)
	rc.Agent = ""

	err := NewFailureAnalyzer(testRegistry(t), o, store, newDoc(t), false, zaptest.NewLogger(t)).
		Analyze(context.Background(), rc, errNotRendered)
	require.NoError(t, err)

	assert.Equal(t, 1, rc.ConsecutiveFailures)
	assert.Equal(t, "search_widget", rc.Agent)
	assert.Equal(t, []string{"close the cookie banner", "click search", "pick the first ferry"}, rc.Queue.Pending())
	_, stillFailed := rc.Queue.Failed()
	assert.False(t, stillFailed)

	require.NotNil(t, rc.PendingRecord)
	assert.Equal(t, learning.Record{
		FailedSubtask:  "click search",
		FailureReason:  "element not rendered",
		AgentSelected:  "search_widget",
		Reasoning:      "the widget owns the control",
		MitigationTask: "close the cookie banner",
	}, *rc.PendingRecord)

	prompt := o.Requests()[1].UserPrompt
	assert.Contains(t, prompt, "A cookie banner covers the search form.")
	assert.Contains(t, prompt, "no element matches")
	matching := strings.Index(prompt, "close the popup")
	other := strings.Index(prompt, "open the menu")
	require.Positive(t, matching)
	assert.Less(t, matching, other, "records for the same subtask come first")
}

func TestFailureAnalyzer_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		kind  failures.Kind
	}{
		{"terminate", recoveryReply("TERMINATE", ""), failures.KindPlanning},
		{"unknown agent", recoveryReply("payment_widget", "pay"), failures.KindPlanning},
		{"no task", recoveryReply("search_widget", " "), failures.KindOracleProtocol},
		{"malformed", "close the banner", failures.KindOracleProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := oracle.NewScripted().On(oracle.RoleFailureAnalyzer, tt.reply)
			rc := failedContext(t)
			err := NewFailureAnalyzer(testRegistry(t), o, learning.NewMemory(), nil, true, zaptest.NewLogger(t)).
				Analyze(context.Background(), rc, errNotRendered)
			require.Error(t, err)
			assert.Equal(t, tt.kind, failures.KindOf(err))
			assert.Nil(t, rc.PendingRecord)
			assert.Contains(t, o.Requests()[0].UserPrompt, "unavailable (dry run)")
		})
	}
}

func TestFailureAnalyzer_UnreadableStoreStillAnalyzes(t *testing.T) {
	o := oracle.NewScripted().On(oracle.RoleFailureAnalyzer, recoveryReply("search_widget", "retry"))
	rc := failedContext(t)
	err := NewFailureAnalyzer(testRegistry(t), o, brokenStore{}, nil, true, zaptest.NewLogger(t)).
		Analyze(context.Background(), rc, errNotRendered)
	require.NoError(t, err)
	assert.Equal(t, "retry", rc.Queue.Pending()[0])
}
