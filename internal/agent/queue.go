package agent

import "errors"

var (
	ErrQueueEmpty      = errors.New("no pending subtask")
	ErrFailedSlotInUse = errors.New("a failed subtask is already awaiting recovery")
	ErrNoFailedSubtask = errors.New("no failed subtask to requeue")
)

// TaskQueue tracks the subtasks of one run: what is left, what is done and
// the single subtask awaiting recovery.
type TaskQueue struct {
	pending   []string
	completed []string
	failed    string
	hasFailed bool
}

// Seed starts the queue with the user's task as the only pending subtask.
func (q *TaskQueue) Seed(task string) {
	q.Reset()
	q.pending = []string{task}
}

// ReplacePending swaps the whole pending list.
func (q *TaskQueue) ReplacePending(subtasks []string) {
	q.pending = append([]string(nil), subtasks...)
}

// Complete moves the head of pending to the tail of completed.
func (q *TaskQueue) Complete() (string, error) {
	if len(q.pending) == 0 {
		return "", ErrQueueEmpty
	}
	head := q.pending[0]
	q.pending = q.pending[1:]
	q.completed = append(q.completed, head)
	return head, nil
}

// Fail moves the head of pending into the failed slot. The slot holds at most
// one subtask until Requeue clears it.
func (q *TaskQueue) Fail() (string, error) {
	if q.hasFailed {
		return "", ErrFailedSlotInUse
	}
	if len(q.pending) == 0 {
		return "", ErrQueueEmpty
	}
	q.failed = q.pending[0]
	q.hasFailed = true
	q.pending = q.pending[1:]
	return q.failed, nil
}

// Requeue puts recovery first and the failed subtask second, then clears the slot.
func (q *TaskQueue) Requeue(recovery string) error {
	if !q.hasFailed {
		return ErrNoFailedSubtask
	}
	q.pending = append([]string{recovery, q.failed}, q.pending...)
	q.failed, q.hasFailed = "", false
	return nil
}

func (q *TaskQueue) Pending() []string   { return append([]string(nil), q.pending...) }
func (q *TaskQueue) Completed() []string { return append([]string(nil), q.completed...) }

// Failed returns the subtask awaiting recovery, if any.
func (q *TaskQueue) Failed() (string, bool) { return q.failed, q.hasFailed }

// Reset empties every list.
func (q *TaskQueue) Reset() {
	q.pending, q.completed = nil, nil
	q.failed, q.hasFailed = "", false
}
