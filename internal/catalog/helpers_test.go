package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/browser/dom"
	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

const formPage = `<html><body>
	<input id="src" value="">
	<div id="fare">Total 450 INR</div>
	<button data-href="results">Search</button>
</body></html>`

type fakeEnv struct {
	driver  *dom.Document
	oracle  *oracle.Scripted
	vars    map[string]string
	dryRun  bool
	located []string
	logger  *zap.Logger
}

func newEnv(t *testing.T) *fakeEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	d := dom.NewDocument(logger)
	d.AddPage("form", formPage)
	d.AddPage("results", "<html><body>results</body></html>")
	require.NoError(t, d.Navigate(context.Background(), "form"))
	return &fakeEnv{driver: d, oracle: oracle.NewScripted(), vars: map[string]string{}, logger: logger}
}

func (e *fakeEnv) Driver() schemas.Driver      { return e.driver }
func (e *fakeEnv) Oracle() oracle.Oracle       { return e.oracle }
func (e *fakeEnv) Platform() catalog.Platform  { return catalog.PlatformMWeb }
func (e *fakeEnv) DryRun() bool                { return e.dryRun }
func (e *fakeEnv) Logger() *zap.Logger         { return e.logger }
func (e *fakeEnv) SetVariable(key, val string) { e.vars[key] = val }

func (e *fakeEnv) Variable(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

func (e *fakeEnv) Locate(_ context.Context, template, text string, position int) (string, error) {
	e.located = append(e.located, template)
	return template, nil
}

func helper(t *testing.T, name string) catalog.Function {
	t.Helper()
	for _, f := range catalog.Helpers() {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no helper %s", name)
	return catalog.Function{}
}

func TestHelpers_DriverActions(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := helper(t, "type").Handler(ctx, env, []any{"//input[@id='src']", "Naxos"})
	require.NoError(t, err)
	val, _ := env.driver.Value("//input[@id='src']")
	assert.Equal(t, "Naxos", val)

	_, err = helper(t, "clearText").Handler(ctx, env, []any{"//input[@id='src']"})
	require.NoError(t, err)
	val, _ = env.driver.Value("//input[@id='src']")
	assert.Empty(t, val)

	_, err = helper(t, "click").Handler(ctx, env, []any{"//button"})
	require.NoError(t, err)
	assert.Equal(t, "results", env.driver.Current())

	_, err = helper(t, "navigateBack").Handler(ctx, env, nil)
	require.NoError(t, err)
	assert.Equal(t, "form", env.driver.Current())

	_, err = helper(t, "click").Handler(ctx, env, []any{"//a"})
	assert.ErrorIs(t, err, dom.ErrNotFound)

	_, err = helper(t, "click").Handler(ctx, env, nil)
	assert.ErrorContains(t, err, "missing argument element")
}

func TestHelpers_DryRunLeavesDriverAlone(t *testing.T) {
	env := newEnv(t)
	env.dryRun = true
	ctx := context.Background()

	_, err := helper(t, "click").Handler(ctx, env, []any{"//button"})
	require.NoError(t, err)
	_, err = helper(t, "assertion").Handler(ctx, env, []any{"fare is 450 INR"})
	require.NoError(t, err)
	_, err = helper(t, "wait_pause").Handler(ctx, env, []any{30})
	require.NoError(t, err)

	assert.Equal(t, "form", env.driver.Current())
	assert.Empty(t, env.driver.Clicks())
	assert.Empty(t, env.oracle.Requests())
}

func TestHelpers_Assertion(t *testing.T) {
	env := newEnv(t)
	env.oracle.On(oracle.RoleAssertion, "true|values match", "false|450 is not 500", "maybe")
	assertion := helper(t, "assertion")
	ctx := context.Background()

	out, err := assertion.Handler(ctx, env, []any{"450 INR equals 450 INR"})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	_, err = assertion.Handler(ctx, env, []any{"450 INR equals 500 INR"})
	require.Error(t, err)
	assert.True(t, failures.IsAssertion(err))
	assert.False(t, failures.Recoverable(err))

	_, err = assertion.Handler(ctx, env, []any{"unclear"})
	assert.Equal(t, failures.KindOracleProtocol, failures.KindOf(err))
}

func TestHelpers_AssertionVisualSendsScreenshot(t *testing.T) {
	env := newEnv(t)
	env.oracle.On(oracle.RoleVisualAssertion, "True | total is shown")

	_, err := helper(t, "assertionVisual").Handler(context.Background(), env, []any{nil, "Total fare is visible"})
	require.NoError(t, err)

	reqs := env.oracle.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Total fare is visible", reqs[0].UserPrompt)
	assert.Contains(t, string(reqs[0].Image), "Total 450 INR")
}

func TestHelpers_GetText(t *testing.T) {
	env := newEnv(t)
	env.oracle.On(oracle.RoleVisualExtraction, " '450 INR' ", "None")
	getText := helper(t, "getText")
	ctx := context.Background()

	out, err := getText.Handler(ctx, env, []any{"//div[@id='fare']", "the total fare", "fare"})
	require.NoError(t, err)
	assert.Equal(t, "450 INR", out)
	assert.Equal(t, "450 INR", env.vars["fare"])

	out, err = getText.Handler(ctx, env, []any{"//div[@id='missing']", "the discount", "discount"})
	require.NoError(t, err, "missing text is not a failure")
	assert.Nil(t, out)
	_, stored := env.vars["discount"]
	assert.False(t, stored)
}

func TestHelpers_WaitPauseHonoursContext(t *testing.T) {
	env := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := helper(t, "wait_pause").Handler(ctx, env, []any{"3"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = helper(t, "wait_pause").Handler(context.Background(), env, []any{0})
	assert.NoError(t, err)

	_, err = helper(t, "wait_pause").Handler(context.Background(), env, []any{"soon"})
	assert.ErrorContains(t, err, "not an integer")
}

func TestLocatorFunction(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	tuple := catalog.Locator("ferryTupleByFerryName", "", "(//*[text()='{ferryName}']//ancestor::li)[{ferryOccurence}]", "ferryName", "ferryOccurence")
	out, err := tuple.Handler(ctx, env, []any{"Sea Star", 2})
	require.NoError(t, err)
	assert.Equal(t, "(//*[text()='{ferryName}']//ancestor::li)[{ferryOccurence}]", out)

	_, err = tuple.Handler(ctx, env, []any{"Sea Star", "second"})
	assert.ErrorContains(t, err, "not an integer")

	broken := catalog.Locator("hint", "", "//input[@placeholder='{hint}']", "hint")
	_, err = broken.Handler(ctx, env, []any{"From"})
	assert.Equal(t, failures.KindResolution, failures.KindOf(err))
	assert.Len(t, env.located, 1)
}
