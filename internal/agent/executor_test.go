package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/locator"
	"github.com/xkilldash9x/pilot/internal/oracle"
	"github.com/xkilldash9x/pilot/internal/placeholder"
)

// seeded returns a home context whose pending list holds s1..sn.
func seeded(n int) *ExecutionContext {
	rc := homeContext("task")
	pending := make([]string, n)
	for i := range pending {
		pending[i] = subtask(i + 1)
	}
	rc.Queue.ReplacePending(pending)
	return rc
}

func TestExecutor_StopsAtFirstFailure(t *testing.T) {
	const n = 4
	for k := 1; k <= n; k++ {
		t.Run(fmt.Sprintf("fail at %d", k), func(t *testing.T) {
			reg := testRegistry(t)
			rc := seeded(n)
			calls := make([]string, n)
			for i := range calls {
				calls[i] = "click(locator.src())"
			}
			calls[k-1] = "click(locator.missing_button())"

			x := newExecutor(t, reg, oracle.NewScripted(), newDoc(t), zaptest.NewLogger(t))
			out := x.Run(context.Background(), rc, batchOf(t, reg, rc, calls...))

			require.Error(t, out.Err)
			assert.Equal(t, failures.KindResolution, failures.KindOf(out.Err))
			assert.True(t, failures.Recoverable(out.Err))
			assert.Equal(t, k-1, out.Executed)
			assert.Len(t, rc.Executed, k-1)
			assert.Len(t, rc.Queue.Completed(), k-1)

			failed, ok := rc.Queue.Failed()
			require.True(t, ok)
			assert.Equal(t, subtask(k), failed)
			assert.Len(t, rc.Queue.Pending(), n-k)
		})
	}
}

func TestExecutor_TypesTestData(t *testing.T) {
	reg := testRegistry(t)
	d := newDoc(t)
	logger := zaptest.NewLogger(t)
	resolver := locator.NewResolver(d, nil, locator.Options{Timeout: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond, ExactMatch: true}, logger)
	x := NewExecutor(ExecutorConfig{
		Registry:     reg,
		Oracle:       oracle.NewScripted(),
		Driver:       d,
		Resolver:     resolver,
		Placeholders: placeholder.Map{"source_city": "Piraeus"},
	}, logger)

	rc := seeded(2)
	out := x.Run(context.Background(), rc, batchOf(t, reg, rc,
		`clearText(locator.src())`,
		`type(locator.src(), getConfig("<source_city>"))`,
	))
	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Executed)

	value, err := d.Value(srcXPath)
	require.NoError(t, err)
	assert.Equal(t, "Piraeus", value)
	assert.Equal(t, []string{`clearText(locator.src())`, `type(locator.src(), getConfig("<source_city>"))`}, rc.Executed)
}

func TestExecutor_CapturesAndAsserts(t *testing.T) {
	reg := testRegistry(t)
	o := oracle.NewScripted().
		On(oracle.RoleVisualExtraction, "450").
		On(oracle.RoleAssertion, "false|the fare shown is 450, not 520")
	x := newExecutor(t, reg, o, newDoc(t), zaptest.NewLogger(t))

	rc := seeded(1)
	out := x.Run(context.Background(), rc, batchOf(t, reg, rc, `helper.getText(None, "the total fare", "fare")`))
	require.NoError(t, out.Err)
	fare, ok := rc.Variable("fare")
	require.True(t, ok)
	assert.Equal(t, "450", fare)

	rc.Queue.ReplacePending([]string{"check"})
	out = x.Run(context.Background(), rc, batchOf(t, reg, rc, `helper.assertion(f"fare is 520 and captured {variables['fare']}")`))
	require.Error(t, out.Err)
	assert.True(t, failures.IsAssertion(out.Err))
	assert.False(t, failures.Recoverable(out.Err))
	assert.Equal(t, "fare is 520 and captured 450", o.Requests()[1].UserPrompt)
}

func TestExecutor_RecoverableDispatchErrors(t *testing.T) {
	tests := []struct {
		name string
		call string
	}{
		{"unknown function", "agent.bookTicket()"},
		{"agent from another page", "ferry_tuples.ferryTupleByFerryName(\"X\", 1)"},
		{"uncaptured variable", "type(locator.src(), variables['fare'])"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := testRegistry(t)
			rc := seeded(1)
			x := newExecutor(t, reg, oracle.NewScripted(), newDoc(t), zaptest.NewLogger(t))
			out := x.Run(context.Background(), rc, batchOf(t, reg, rc, tt.call))
			require.Error(t, out.Err)
			assert.Equal(t, failures.KindExecution, failures.KindOf(out.Err))
			assert.True(t, failures.Recoverable(out.Err))
			_, ok := rc.Queue.Failed()
			assert.True(t, ok)
		})
	}
}

func TestExecutor_DriftCheck(t *testing.T) {
	tests := []struct {
		name    string
		verdict string
		wantRef string
		warned  bool
	}{
		{"confirmed", "true|ferries are listed", "results", false},
		{"still on home", "false|the search form is still shown", "home", true},
		{"unreadable", "probably", "home", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			reg := testRegistry(t)
			o := oracle.NewScripted().On(oracle.RoleDriftCheck, tt.verdict)
			x := newExecutor(t, reg, o, newDoc(t), zap.New(core))

			rc := seeded(1)
			out := x.Run(context.Background(), rc, batchOf(t, reg, rc, "click(locator.search_button())"))
			require.NoError(t, out.Err)
			assert.Equal(t, tt.wantRef, rc.Ref)
			_, pending := rc.NextRef()
			assert.False(t, pending, "declaration is consumed either way")
			assert.Equal(t, tt.warned, logs.Len() > 0)

			req := o.Requests()[0]
			assert.Equal(t, oracle.RoleDriftCheck, req.Role)
			assert.Contains(t, req.UserPrompt, "Search results listing ferries.")
			assert.NotEmpty(t, req.Image)
		})
	}
}

func TestExecutor_NoDriftCheckWithoutPageChange(t *testing.T) {
	reg := testRegistry(t)
	o := oracle.NewScripted()
	x := newExecutor(t, reg, o, newDoc(t), zaptest.NewLogger(t))
	rc := seeded(1)
	out := x.Run(context.Background(), rc, batchOf(t, reg, rc, "click(locator.src())"))
	require.NoError(t, out.Err)
	assert.Empty(t, o.Requests())
	assert.Equal(t, "home", rc.Ref)
}

func TestExecutor_DryRun(t *testing.T) {
	reg := testRegistry(t)
	o := oracle.NewScripted()
	x := NewExecutor(ExecutorConfig{
		Registry:     reg,
		Oracle:       o,
		Placeholders: placeholder.Map{"source_city": "Athens"},
		DryRun:       true,
	}, zaptest.NewLogger(t))

	rc := seeded(3)
	out := x.Run(context.Background(), rc, batchOf(t, reg, rc,
		`type(locator.src(), getConfig("<source_city>"))`,
		`click(locator.missing_button())`,
		`click(locator.search_button())`,
	))
	require.NoError(t, out.Err)
	assert.Equal(t, 3, out.Executed)
	assert.Equal(t, "results", rc.Ref, "declared page is assumed")
	assert.Empty(t, o.Requests())
}

func TestExecutor_Cancelled(t *testing.T) {
	reg := testRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := seeded(2)
	x := newExecutor(t, reg, oracle.NewScripted(), newDoc(t), zaptest.NewLogger(t))
	out := x.Run(ctx, rc, batchOf(t, reg, rc, "click(locator.src())", "click(locator.src())"))
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Zero(t, out.Executed)
}
