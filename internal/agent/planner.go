package agent

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/command"
	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

type plannedCall struct {
	FunctionCall string `json:"functionCall"`
	SubTask      string `json:"subTask"`
}

type planDecision struct {
	FunctionCalls []plannedCall `json:"FunctionCalls"`
	Reasoning     string        `json:"Reasoning"`
	PendingTasks  string        `json:"PendingTasks"`
}

// assertionHelpers take statement text that may quote captured values.
var assertionHelpers = map[string]bool{"assertion": true, "assertionVisual": true}

// Planner turns the bound agent's capabilities and the pending subtasks into
// batches of typed calls.
type Planner struct {
	registry *catalog.Registry
	oracle   oracle.Oracle
	logger   *zap.Logger
}

func NewPlanner(registry *catalog.Registry, o oracle.Oracle, logger *zap.Logger) *Planner {
	return &Planner{registry: registry, oracle: o, logger: logger.Named("planner")}
}

// Plan asks the oracle for calls, replaces the pending list with one subtask
// per call plus the residual, and returns the calls split into batches. Every
// isolated call gets a batch of its own.
func (p *Planner) Plan(ctx context.Context, rc *ExecutionContext) ([]Batch, error) {
	agent, ok := p.registry.Agent(rc.Ref, rc.Agent, rc.Platform)
	if !ok {
		return nil, failures.New(failures.KindPlanning, "planner", "agent %q is not available on %s", rc.Agent, rc.Ref)
	}

	raw, err := p.oracle.Decide(ctx, oracle.Request{
		Role:         oracle.RolePlanner,
		SystemPrompt: plannerPrompt,
		UserPrompt:   p.userPrompt(rc, agent),
	})
	if err != nil {
		return nil, fmt.Errorf("planner decision: %w", err)
	}
	d, err := oracle.Decode[planDecision](oracle.RolePlanner, raw)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Plan received", zap.Int("calls", len(d.FunctionCalls)), zap.String("reasoning", d.Reasoning))

	if len(d.FunctionCalls) == 0 || oracle.IsTerminate(d.FunctionCalls[0].FunctionCall) {
		return nil, failures.New(failures.KindPlanning, "planner", "no suitable functions for agent %s: %s", agent.Name, d.Reasoning)
	}

	steps := make([]Step, 0, len(d.FunctionCalls))
	for i, fc := range d.FunctionCalls {
		cmd, err := command.Parse(fc.FunctionCall)
		if err != nil {
			return nil, failures.Wrap(failures.KindOracleProtocol, "planner", err, fmt.Sprintf("call %d is not a valid function call", i+1))
		}
		literalize(cmd)

		step := Step{Call: cmd, Subtask: strings.TrimSpace(fc.SubTask), Ref: rc.Ref}
		if step.Subtask == "" {
			step.Subtask = cmd.String()
		}
		step.Function, step.Resolved = p.registry.Lookup(rc.Ref, rc.Agent, rc.Platform, cmd.Namespace, cmd.Name)
		if !step.Resolved {
			p.logger.Warn("Planned call does not match a catalog function", zap.String("call", cmd.String()))
		} else if step.Function.Class == catalog.ClassHelper && assertionHelpers[step.Function.Name] {
			referenceVariables(cmd, rc.Variables)
		}
		steps = append(steps, step)
	}

	pending := make([]string, 0, len(steps)+1)
	for _, s := range steps {
		pending = append(pending, s.Subtask)
	}
	if residual := strings.TrimSpace(d.PendingTasks); residual != "" && !strings.EqualFold(residual, "None") {
		pending = append(pending, residual)
	}
	rc.Queue.ReplacePending(pending)

	batches := group(steps)
	p.logger.Debug("Plan grouped", zap.Int("batches", len(batches)), zap.Strings("pending", pending))
	return batches, nil
}

func (p *Planner) userPrompt(rc *ExecutionContext, agent catalog.Agent) string {
	vars, err := json.Marshal(rc.Variables)
	if err != nil {
		vars = []byte("{}")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Agent (CSV):\n%s\n", agentRow(agent))
	fmt.Fprintf(&b, "HelperFunctions (helper):\n%s\n", catalog.Describe(p.registry.Functions(rc.Ref, agent.Name, rc.Platform, catalog.ClassHelper)))
	fmt.Fprintf(&b, "LocatorFunctions (locator):\n%s\n", catalog.Describe(p.registry.Functions(rc.Ref, agent.Name, rc.Platform, catalog.ClassLocator)))
	fmt.Fprintf(&b, "AgentFunctions (agent):\n%s\n", catalog.Describe(p.registry.Functions(rc.Ref, agent.Name, rc.Platform, catalog.ClassAgentFunction)))
	fmt.Fprintf(&b, "Task to accomplish:\n%s\n\n", rc.Task)
	fmt.Fprintf(&b, "Completed subtasks:\n%s\n\n", listJSON(rc.Queue.Completed()))
	fmt.Fprintf(&b, "Pending subtasks:\n%s\n\n", listJSON(rc.Queue.Pending()))
	fmt.Fprintf(&b, "Variables (JSON):\n%s\n", vars)
	return b.String()
}

func agentRow(a catalog.Agent) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"AgentName", "AgentDescription"})
	_ = w.Write([]string{a.Name, a.Description})
	w.Flush()
	return buf.String()
}

// group splits steps at every isolated call: [c1 c2 A c4] -> [c1 c2] [A] [c4].
func group(steps []Step) []Batch {
	var (
		out []Batch
		cur Batch
	)
	for _, s := range steps {
		if s.Resolved && s.Function.Isolated {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			out = append(out, Batch{s})
			continue
		}
		cur = append(cur, s)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// literalize turns bare "<key>" string literals into test-data references,
// including inside nested calls.
func literalize(cmd *command.Command) {
	for i, a := range cmd.Args {
		switch {
		case a.Kind == command.ArgString && command.IsConfigPlaceholder(a.Str):
			cmd.Args[i] = command.Config(a.Str)
		case a.Kind == command.ArgCall && a.Call != nil:
			literalize(a.Call)
		}
	}
}

// referenceVariables rewrites captured values quoted verbatim in text
// arguments into variables['key'] references. Longer values are matched
// first and a match must not sit inside a larger word.
func referenceVariables(cmd *command.Command, vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for k, v := range vars {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		if li, lj := len(vars[keys[i]]), len(vars[keys[j]]); li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	for i, a := range cmd.Args {
		var segs []command.Segment
		switch a.Kind {
		case command.ArgString:
			segs = []command.Segment{{Literal: a.Str}}
		case command.ArgTemplate:
			segs = a.Segments
		default:
			continue
		}
		changed := false
		for _, k := range keys {
			var next []command.Segment
			for _, s := range segs {
				if s.IsVar() {
					next = append(next, s)
					continue
				}
				parts, found := splitOnValue(s.Literal, vars[k], k)
				changed = changed || found
				next = append(next, parts...)
			}
			segs = next
		}
		if changed {
			cmd.Args[i] = command.Template(segs...)
		}
	}
}

func splitOnValue(lit, value, key string) ([]command.Segment, bool) {
	var out []command.Segment
	start, from := 0, 0
	for from <= len(lit)-len(value) {
		idx := strings.Index(lit[from:], value)
		if idx < 0 {
			break
		}
		idx += from
		end := idx + len(value)
		if !bounded(lit, idx, end) {
			from = idx + 1
			continue
		}
		if idx > start {
			out = append(out, command.Segment{Literal: lit[start:idx]})
		}
		out = append(out, command.Segment{Var: key})
		start, from = end, end
	}
	if start == 0 && len(out) == 0 {
		return []command.Segment{{Literal: lit}}, false
	}
	if start < len(lit) {
		out = append(out, command.Segment{Literal: lit[start:]})
	}
	return out, true
}

func bounded(s string, i, j int) bool {
	if isWordByte(s[i]) && i > 0 && isWordByte(s[i-1]) {
		return false
	}
	if isWordByte(s[j-1]) && j < len(s) && isWordByte(s[j]) {
		return false
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
