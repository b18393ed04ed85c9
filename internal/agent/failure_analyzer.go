package agent

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

type recoveryDecision struct {
	Agent          string `json:"Agent"`
	Reasoning      string `json:"Reasoning"`
	Task           string `json:"task"`
	FailureReason  string `json:"failureReason"`
	DecisionFactor string `json:"decisionFactor"`
}

// FailureAnalyzer picks a recovery for a failed subtask, informed by past
// learnings and the current screen.
type FailureAnalyzer struct {
	registry *catalog.Registry
	oracle   oracle.Oracle
	store    learning.Store
	driver   schemas.Driver
	dryRun   bool
	logger   *zap.Logger
}

func NewFailureAnalyzer(registry *catalog.Registry, o oracle.Oracle, store learning.Store, driver schemas.Driver, dryRun bool, logger *zap.Logger) *FailureAnalyzer {
	return &FailureAnalyzer{registry: registry, oracle: o, store: store, driver: driver, dryRun: dryRun, logger: logger.Named("failure_analyzer")}
}

// Analyze handles cause. Assertion failures come back unchanged. The second
// consecutive failure returns ErrFailureLimit without consulting the oracle.
// On success the recovery task and the failed subtask head the queue and the
// chosen agent is bound.
func (a *FailureAnalyzer) Analyze(ctx context.Context, rc *ExecutionContext, cause error) error {
	if failures.IsAssertion(cause) {
		return cause
	}
	rc.ConsecutiveFailures++
	log := a.logger.With(zap.Int("consecutive_failures", rc.ConsecutiveFailures))
	if rc.ConsecutiveFailures >= MaxConsecutiveFailures {
		log.Error("Giving up after consecutive failures", zap.Error(cause))
		return fmt.Errorf("%w: %v", ErrFailureLimit, cause)
	}

	failed, _ := rc.Queue.Failed()
	records, err := a.store.ReadAll(ctx)
	if err != nil {
		log.Warn("Could not read learnings", zap.Error(err))
	}
	records = learning.Prioritize(records, failed)

	var b strings.Builder
	fmt.Fprintf(&b, "Agents (CSV):\n%s\n", a.registry.AgentsCSV(rc.Ref, rc.Platform))
	fmt.Fprintf(&b, "User's overall task:\n%s\n\n", rc.Task)
	fmt.Fprintf(&b, "Completed subtasks:\n%s\n\n", listJSON(rc.Queue.Completed()))
	fmt.Fprintf(&b, "Pending subtasks:\n%s\n\n", listJSON(rc.Queue.Pending()))
	fmt.Fprintf(&b, "Failed subtask:\n%s\n\n", failed)
	fmt.Fprintf(&b, "Current UI state:\n%s\n\n", a.describeUI(ctx))
	fmt.Fprintf(&b, "Error message:\n%v\n\n", cause)
	fmt.Fprintf(&b, "Past learnings (CSV):\n%s", renderRecords(records))

	raw, err := a.oracle.Decide(ctx, oracle.Request{
		Role:         oracle.RoleFailureAnalyzer,
		SystemPrompt: failureAnalyzerPrompt,
		UserPrompt:   b.String(),
	})
	if err != nil {
		return fmt.Errorf("failure analysis: %w", err)
	}
	d, err := oracle.Decode[recoveryDecision](oracle.RoleFailureAnalyzer, raw)
	if err != nil {
		return err
	}

	agent := strings.TrimSpace(d.Agent)
	log.Info("Recovery chosen",
		zap.String("agent", agent),
		zap.String("task", d.Task),
		zap.String("failure_reason", d.FailureReason),
		zap.String("decision_factor", d.DecisionFactor),
		zap.String("reasoning", d.Reasoning))
	if oracle.IsTerminate(agent) {
		return failures.New(failures.KindPlanning, "failure_analyzer", "no agent can recover from the failure: %s", d.Reasoning)
	}
	if _, ok := a.registry.Agent(rc.Ref, agent, rc.Platform); !ok {
		return failures.New(failures.KindPlanning, "failure_analyzer", "agent %q is not available on %s for %s", agent, rc.Ref, rc.Platform)
	}
	task := strings.TrimSpace(d.Task)
	if task == "" {
		return failures.New(failures.KindOracleProtocol, "failure_analyzer", "recovery for agent %s has no task", agent)
	}

	if err := rc.Queue.Requeue(task); err != nil {
		return failures.Wrap(failures.KindExecution, "failure_analyzer", err, "requeue recovery")
	}
	rc.Agent = agent
	rc.PendingRecord = &learning.Record{
		FailedSubtask:  failed,
		FailureReason:  d.FailureReason,
		AgentSelected:  agent,
		Reasoning:      d.Reasoning,
		MitigationTask: task,
	}
	return nil
}

// describeUI is best effort; any problem yields a placeholder description.
func (a *FailureAnalyzer) describeUI(ctx context.Context) string {
	if a.dryRun {
		return "unavailable (dry run)"
	}
	shot, err := a.driver.Screenshot(ctx)
	if err != nil {
		a.logger.Debug("Could not capture screen for failure analysis", zap.Error(err))
		return "unavailable"
	}
	desc, err := a.oracle.Decide(ctx, oracle.Request{
		Role:         oracle.RoleDescribeUI,
		SystemPrompt: describeUIPrompt,
		UserPrompt:   "Describe the current screen.",
		Image:        shot,
	})
	if err != nil {
		a.logger.Debug("Could not describe screen", zap.Error(err))
		return "unavailable"
	}
	return strings.TrimSpace(desc)
}

// renderRecords writes records as CSV with the learning header.
func renderRecords(records []learning.Record) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(learning.Header)
	for _, r := range records {
		_ = w.Write([]string{strconv.Itoa(r.ID), r.FailedSubtask, r.FailureReason, r.AgentSelected, r.Reasoning, r.MitigationTask})
	}
	w.Flush()
	return buf.String()
}
