package agent

import (
	"context"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pilot/internal/browser/dom"
	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/command"
	"github.com/xkilldash9x/pilot/internal/locator"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

const (
	homeMarkup = `<html><body>
	<div id="widget">
		<input class="src" value="">
		<button id="search" data-href="results">Search</button>
	</div>
	<div id="fare">Total 450</div>
</body></html>`

	resultsMarkup = `<html><body>
	<div class="tuple"><span>Sea Star</span></div>
	<div class="tuple"><span>Blue Star</span></div>
</body></html>`
)

const (
	srcXPath    = "//input[@class='src']"
	searchXPath = "//button[@id='search']"
)

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	r := catalog.NewRegistry()
	require.NoError(t, catalog.RegisterHelpers(r))
	require.NoError(t, r.RegisterAgent(catalog.Agent{
		Name:        "search_widget",
		Page:        "home",
		Description: "Search form with the source input and the search button.",
		Functions: map[catalog.Platform][]catalog.Function{
			catalog.PlatformMWeb: {
				catalog.Locator("src", "Source input.", srcXPath),
				catalog.Locator("search_button", "Starts the search.", searchXPath).WithNextRef("results"),
				catalog.Locator("missing_button", "Never rendered.", "//button[@id='gone']"),
				catalog.Locator("fare_summary", "Fare summary; claims to open the results.", "//div[@id='fare']").WithNextRef("results"),
			},
		},
	}))
	require.NoError(t, r.RegisterAgent(catalog.Agent{
		Name:        "ferry_tuples",
		Page:        "results",
		Description: "List of ferries.",
		Functions: map[catalog.Platform][]catalog.Function{
			catalog.PlatformMWeb: {
				catalog.Locator("ferryTupleByFerryName", "Ferry by name.",
					"(//div[@class='tuple']/span[text()='{ferryName}'])[{ferryOccurence}]", "ferryName", "ferryOccurence"),
			},
		},
	}))
	r.DescribePage("home", "Home page with the search form.")
	r.DescribePage("results", "Search results listing ferries.")
	return r
}

func newDoc(t *testing.T) *dom.Document {
	t.Helper()
	d := dom.NewDocument(zaptest.NewLogger(t))
	d.AddPage("home", homeMarkup)
	d.AddPage("results", resultsMarkup)
	require.NoError(t, d.Navigate(context.Background(), "home"))
	return d
}

func newExecutor(t *testing.T, reg *catalog.Registry, o oracle.Oracle, d *dom.Document, logger *zap.Logger) *Executor {
	t.Helper()
	resolver := locator.NewResolver(d, nil, locator.Options{
		Timeout:      50 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		ExactMatch:   true,
	}, logger)
	return NewExecutor(ExecutorConfig{Registry: reg, Oracle: o, Driver: d, Resolver: resolver}, logger)
}

// batchOf parses calls into a batch resolved against rc, with subtasks s1..sN.
func batchOf(t *testing.T, reg *catalog.Registry, rc *ExecutionContext, calls ...string) Batch {
	t.Helper()
	var b Batch
	for i, src := range calls {
		cmd, err := command.Parse(src)
		require.NoError(t, err, src)
		f, ok := reg.Lookup(rc.Ref, rc.Agent, rc.Platform, cmd.Namespace, cmd.Name)
		b = append(b, Step{Call: cmd, Subtask: subtask(i + 1), Function: f, Resolved: ok})
	}
	return b
}

func subtask(i int) string { return "s" + string(rune('0'+i)) }

type call struct{ fn, subtask string }

func planReply(residual string, calls ...call) string {
	d := planDecision{Reasoning: "test plan", PendingTasks: residual, FunctionCalls: []plannedCall{}}
	for _, c := range calls {
		d.FunctionCalls = append(d.FunctionCalls, plannedCall{FunctionCall: c.fn, SubTask: c.subtask})
	}
	out, _ := json.Marshal(d)
	return string(out)
}

func recoveryReply(agent, task string) string {
	out, _ := json.Marshal(recoveryDecision{
		Agent:          agent,
		Reasoning:      "the widget owns the control",
		Task:           task,
		FailureReason:  "element not rendered",
		DecisionFactor: "FRESH ANALYSIS",
	})
	return string(out)
}

func agentReply(agent string) string {
	return `{"Agent": "` + agent + `", "Reasoning": "best fit"}`
}
