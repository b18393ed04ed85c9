package agent

import (
	"context"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/llmutil"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

// Learner stores the recovery that just worked unless an equivalent record
// already exists.
type Learner struct {
	oracle oracle.Oracle
	store  learning.Store
	logger *zap.Logger
}

func NewLearner(o oracle.Oracle, store learning.Store, logger *zap.Logger) *Learner {
	return &Learner{oracle: o, store: store, logger: logger.Named("learner")}
}

// Learn runs after a successful batch. It acts only when the batch followed a
// recovery, and always resets the failure counter. Store and oracle problems
// are logged and never returned; the only error is ctx's.
func (l *Learner) Learn(ctx context.Context, rc *ExecutionContext) error {
	l.learn(ctx, rc)
	return ctx.Err()
}

func (l *Learner) learn(ctx context.Context, rc *ExecutionContext) {
	if rc.ConsecutiveFailures == 0 {
		return
	}
	rc.ConsecutiveFailures = 0
	rec := rc.PendingRecord
	rc.PendingRecord = nil
	if rec == nil {
		return
	}
	log := l.logger.With(zap.String("failed_subtask", rec.FailedSubtask), zap.String("agent", rec.AgentSelected))

	records, err := l.store.ReadAll(ctx)
	if err != nil {
		log.Warn("Could not read learnings, skipping", zap.Error(err))
		return
	}
	if len(records) > 0 {
		known, err := l.known(ctx, records, *rec)
		if err != nil {
			log.Warn("Could not compare with existing learnings, skipping", zap.Error(err))
			return
		}
		if known {
			return
		}
	}

	id, err := l.store.Append(ctx, *rec)
	if err != nil {
		log.Warn("Could not store learning", zap.Error(err))
		return
	}
	rc.Learned = append(rc.Learned, id)
	log.Info("New learning stored", zap.Int("id", id))
}

func (l *Learner) known(ctx context.Context, records []learning.Record, rec learning.Record) (bool, error) {
	candidate, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	raw, err := l.oracle.Decide(ctx, oracle.Request{
		Role:         oracle.RoleLearner,
		SystemPrompt: learnerPrompt + renderRecords(records),
		UserPrompt:   string(candidate),
	})
	if err != nil {
		return false, err
	}
	output, err := llmutil.StringAtPath(raw, "/output")
	if err != nil {
		return false, err
	}
	id, _ := llmutil.StringAtPath(raw, "/ID")
	reasoning, _ := llmutil.StringAtPath(raw, "/reasoning")
	match := strings.EqualFold(strings.TrimSpace(output), "true")
	l.logger.Debug("Learning compared", zap.Bool("match", match), zap.String("id", id), zap.String("reasoning", reasoning))
	return match, nil
}
