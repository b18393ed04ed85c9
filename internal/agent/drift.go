package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/oracle"
)

// checkDrift confirms a declared page change against the screen before
// committing it. Failures to check are only logged; the old ref stays.
func (x *Executor) checkDrift(ctx context.Context, rc *ExecutionContext) {
	next, changed := rc.NextRef()
	if !changed {
		rc.DiscardNextRef()
		return
	}
	log := x.logger.With(zap.String("from", rc.Ref), zap.String("to", next))

	if x.dryRun {
		log.Info("Page change assumed in dry run")
		rc.CommitRef()
		return
	}

	description, ok := x.registry.PageDescription(next)
	if !ok {
		description = next
	}
	shot, err := x.driver.Screenshot(ctx)
	if err != nil {
		log.Warn("Could not capture screen for page check", zap.Error(err))
		rc.DiscardNextRef()
		return
	}
	raw, err := x.oracle.Decide(ctx, oracle.Request{
		Role:         oracle.RoleDriftCheck,
		SystemPrompt: driftPrompt,
		UserPrompt:   "Page description:\n" + description,
		Image:        shot,
	})
	if err != nil {
		log.Warn("Page check failed", zap.Error(err))
		rc.DiscardNextRef()
		return
	}
	v, err := oracle.ParseVerdict(oracle.RoleDriftCheck, raw)
	if err != nil {
		log.Warn("Page check answer unreadable", zap.Error(err))
		rc.DiscardNextRef()
		return
	}
	if !v.OK {
		log.Warn("Declared page not shown, keeping current ref", zap.String("reason", v.Reason))
		rc.DiscardNextRef()
		return
	}
	log.Info("Page change confirmed", zap.String("reason", v.Reason))
	rc.CommitRef()
}
