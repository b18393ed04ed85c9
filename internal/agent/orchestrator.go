package agent

import (
	"context"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

type orchestratorDecision struct {
	Agent     string `json:"Agent"`
	Reasoning string `json:"Reasoning"`
}

// Orchestrator picks the agent that should work on the pending subtasks next.
type Orchestrator struct {
	registry *catalog.Registry
	oracle   oracle.Oracle
	logger   *zap.Logger
}

func NewOrchestrator(registry *catalog.Registry, o oracle.Oracle, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{registry: registry, oracle: o, logger: logger.Named("orchestrator")}
}

// Next asks the oracle for the next agent. An empty pending list completes
// the run without consulting it.
func (o *Orchestrator) Next(ctx context.Context, rc *ExecutionContext) (Decision, error) {
	pending := rc.Queue.Pending()
	if len(pending) == 0 {
		o.logger.Info("No pending subtasks left")
		return Decision{Agent: oracle.Complete, Complete: true}, nil
	}

	raw, err := o.oracle.Decide(ctx, oracle.Request{
		Role:         oracle.RoleOrchestrator,
		SystemPrompt: orchestratorPrompt,
		UserPrompt: fmt.Sprintf("Agents (CSV):\n%s\nCompleted subtasks:\n%s\n\nPending subtasks:\n%s\n",
			o.registry.AgentsCSV(rc.Ref, rc.Platform), listJSON(rc.Queue.Completed()), listJSON(pending)),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("orchestrator decision: %w", err)
	}
	d, err := oracle.Decode[orchestratorDecision](oracle.RoleOrchestrator, raw)
	if err != nil {
		return Decision{}, err
	}

	name := strings.TrimSpace(d.Agent)
	o.logger.Info("Agent selected", zap.String("agent", name), zap.String("reasoning", d.Reasoning))
	switch {
	case oracle.IsComplete(name):
		return Decision{Agent: oracle.Complete, Reasoning: d.Reasoning, Complete: true}, nil
	case oracle.IsTerminate(name):
		return Decision{}, failures.New(failures.KindPlanning, "orchestrator",
			"no suitable agent for the pending subtasks: %s", d.Reasoning)
	}
	if _, ok := o.registry.Agent(rc.Ref, name, rc.Platform); !ok {
		return Decision{}, failures.New(failures.KindPlanning, "orchestrator",
			"agent %q is not available on %s for %s", name, rc.Ref, rc.Platform)
	}
	return Decision{Agent: name, Reasoning: d.Reasoning}, nil
}

// listJSON renders subtasks as a JSON array; empty lists render as [].
func listJSON(items []string) string {
	if items == nil {
		items = []string{}
	}
	out, err := json.Marshal(items)
	if err != nil {
		return strings.Join(items, "\n")
	}
	return string(out)
}
