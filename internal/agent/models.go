package agent

import (
	"errors"
	"time"

	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/command"
)

// ErrFailureLimit ends a run after two consecutive unrecovered failures.
var ErrFailureLimit = errors.New("consecutive failures exceeded limit")

// MaxConsecutiveFailures is the failure count at which a run stops.
const MaxConsecutiveFailures = 2

// Status is how a run ended.
type Status string

const (
	StatusCompleted            Status = "COMPLETED"
	StatusTerminated           Status = "TERMINATED"
	StatusAssertionFailed      Status = "ASSERTION_FAILED"
	StatusFailureLimitExceeded Status = "FAILURE_LIMIT_EXCEEDED"
	StatusOracleProtocolError  Status = "ORACLE_PROTOCOL_ERROR"
	StatusCycleLimitExceeded   Status = "CYCLE_LIMIT_EXCEEDED"
	StatusCancelled            Status = "CANCELLED"
)

// Succeeded reports whether the task was accomplished.
func (s Status) Succeeded() bool { return s == StatusCompleted }

// Step is one planned call and the subtask it accomplishes.
type Step struct {
	Call    *command.Command
	Subtask string
	// Function is the catalog entry the call resolved to at planning time.
	// Resolved is false for names the catalog does not know.
	Function catalog.Function
	Resolved bool
	// Ref is the page the call was planned on; nested calls resolve there.
	Ref string
}

// Batch is a group of steps executed in one cycle.
type Batch []Step

// Isolated reports whether the batch is a single isolated call.
func (b Batch) Isolated() bool {
	return len(b) == 1 && b[0].Resolved && b[0].Function.Isolated
}

// Outcome is the result of executing a batch.
type Outcome struct {
	// Executed counts steps that completed.
	Executed int
	Err      error
}

// Decision is the orchestrator's pick.
type Decision struct {
	Agent     string
	Reasoning string
	Complete  bool
}

// RunResult is the report of one run.
type RunResult struct {
	RunID       string            `json:"run_id"`
	Task        string            `json:"task"`
	Channel     string            `json:"channel"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Completed   []string          `json:"completed"`
	Pending     []string          `json:"pending"`
	Failed      string            `json:"failed,omitempty"`
	Variables   map[string]string `json:"variables"`
	Executed    []string          `json:"executed"`
	Learned     []int             `json:"learned,omitempty"`
	FinalRef    string            `json:"final_ref"`
	Cycles      int               `json:"cycles"`
	OracleCalls int64             `json:"oracle_calls"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Duration    time.Duration     `json:"duration"`
}
