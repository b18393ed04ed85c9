package agent

import (
	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/learning"
)

// ExecutionContext is the state of a single run. It is owned by one Runner.Run
// call and never shared between runs.
type ExecutionContext struct {
	// Task is the user's original request.
	Task     string
	Platform catalog.Platform
	// Ref is the page the run believes it is on.
	Ref string
	// Agent is the agent the planner works with.
	Agent string
	Queue TaskQueue
	// Variables holds captured values; the last write wins.
	Variables map[string]string
	// ConsecutiveFailures counts failures since the last successful batch.
	ConsecutiveFailures int
	// PendingRecord is the recovery the learner should consider next.
	PendingRecord *learning.Record
	// Executed logs every dispatched call in canonical syntax.
	Executed []string
	// Learned lists record IDs appended during the run.
	Learned []int

	nextRef  string
	deferred []Batch
}

// NewExecutionContext seeds a context for task on ref.
func NewExecutionContext(task, ref string, platform catalog.Platform) *ExecutionContext {
	rc := &ExecutionContext{
		Task:      task,
		Platform:  platform,
		Ref:       ref,
		Variables: make(map[string]string),
	}
	rc.Queue.Seed(task)
	return rc
}

// DeclareNextRef records the page a dispatched function leads to.
func (rc *ExecutionContext) DeclareNextRef(ref string) { rc.nextRef = ref }

// NextRef returns the declared page, if one differs from Ref.
func (rc *ExecutionContext) NextRef() (string, bool) {
	return rc.nextRef, rc.nextRef != "" && rc.nextRef != rc.Ref
}

// CommitRef makes the declared page current.
func (rc *ExecutionContext) CommitRef() {
	if rc.nextRef != "" {
		rc.Ref = rc.nextRef
	}
	rc.nextRef = ""
}

// DiscardNextRef drops an unconfirmed declaration.
func (rc *ExecutionContext) DiscardNextRef() { rc.nextRef = "" }

func (rc *ExecutionContext) Variable(key string) (string, bool) {
	v, ok := rc.Variables[key]
	return v, ok
}

func (rc *ExecutionContext) SetVariable(key, value string) { rc.Variables[key] = value }

// Reset clears everything the run accumulated.
func (rc *ExecutionContext) Reset() {
	rc.Queue.Reset()
	rc.Variables = make(map[string]string)
	rc.ConsecutiveFailures = 0
	rc.PendingRecord = nil
	rc.Executed, rc.Learned, rc.deferred = nil, nil, nil
	rc.Agent, rc.nextRef = "", ""
}
