package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/command"
	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/locator"
	"github.com/xkilldash9x/pilot/internal/oracle"
	"github.com/xkilldash9x/pilot/internal/placeholder"
)

// Executor dispatches a batch through the catalog, one step at a time,
// stopping at the first failure.
type Executor struct {
	registry     *catalog.Registry
	oracle       oracle.Oracle
	driver       schemas.Driver
	resolver     *locator.Resolver
	placeholders placeholder.Source
	dryRun       bool
	logger       *zap.Logger
}

// ExecutorConfig gathers what an Executor acts through.
type ExecutorConfig struct {
	Registry     *catalog.Registry
	Oracle       oracle.Oracle
	Driver       schemas.Driver
	Resolver     *locator.Resolver
	Placeholders placeholder.Source
	DryRun       bool
}

func NewExecutor(cfg ExecutorConfig, logger *zap.Logger) *Executor {
	placeholders := cfg.Placeholders
	if placeholders == nil {
		placeholders = placeholder.Map{}
	}
	return &Executor{
		registry:     cfg.Registry,
		oracle:       cfg.Oracle,
		driver:       cfg.Driver,
		resolver:     cfg.Resolver,
		placeholders: placeholders,
		dryRun:       cfg.DryRun,
		logger:       logger.Named("executor"),
	}
}

// Run executes batch. Each success completes the head pending subtask; the
// first failure moves the head into the failed slot and ends the batch. The
// drift check runs afterwards either way.
func (x *Executor) Run(ctx context.Context, rc *ExecutionContext, batch Batch) Outcome {
	env := &runEnv{rc: rc, driver: x.driver, oracle: x.oracle, resolver: x.resolver, dryRun: x.dryRun, logger: x.logger}
	var out Outcome
	for _, step := range batch {
		x.logger.Info("Executing", zap.String("call", step.Call.String()), zap.String("subtask", step.Subtask))
		if _, err := x.runStep(ctx, env, step); err != nil {
			failed, qerr := rc.Queue.Fail()
			if qerr != nil {
				x.logger.Error("Could not record failed subtask", zap.Error(qerr))
			}
			x.logger.Warn("Call failed",
				zap.String("call", step.Call.String()),
				zap.String("subtask", failed),
				zap.String("kind", string(failures.KindOf(err))),
				zap.Error(err))
			out.Err = err
			break
		}
		rc.Executed = append(rc.Executed, step.Call.String())
		if _, err := rc.Queue.Complete(); err != nil {
			x.logger.Error("Completed a call with no pending subtask", zap.Error(err))
		}
		out.Executed++
	}
	x.checkDrift(ctx, rc)
	return out
}

// runStep calls the function the step resolved to when it was planned. A
// drift check committed by an earlier batch of the same plan does not change
// what the step refers to.
func (x *Executor) runStep(ctx context.Context, env *runEnv, step Step) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := step.Ref
	if ref == "" {
		ref = env.rc.Ref
	}
	if !step.Resolved {
		return x.dispatch(ctx, env, ref, step.Call)
	}
	return x.call(ctx, env, ref, step.Call, step.Function)
}

// dispatch looks cmd up on page ref and calls it.
func (x *Executor) dispatch(ctx context.Context, env *runEnv, ref string, cmd *command.Command) (any, error) {
	rc := env.rc
	f, ok := x.registry.Lookup(ref, rc.Agent, rc.Platform, cmd.Namespace, cmd.Name)
	if !ok {
		return nil, failures.New(failures.KindExecution, "executor",
			"%s is not available to agent %s on %s", qualified(cmd), rc.Agent, ref)
	}
	return x.call(ctx, env, ref, cmd, f)
}

// call evaluates cmd's arguments and runs f with them.
func (x *Executor) call(ctx context.Context, env *runEnv, ref string, cmd *command.Command, f catalog.Function) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args := make([]any, len(cmd.Args))
	for i, a := range cmd.Args {
		v, err := x.evaluate(ctx, env, ref, a)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", qualified(cmd), i+1, err)
		}
		args[i] = v
	}

	result, err := f.Handler(ctx, env, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", qualified(cmd), err)
	}
	if f.NextRef != "" {
		env.rc.DeclareNextRef(f.NextRef)
	}
	return result, nil
}

func (x *Executor) evaluate(ctx context.Context, env *runEnv, ref string, a command.Arg) (any, error) {
	switch a.Kind {
	case command.ArgString:
		return a.Str, nil
	case command.ArgInt:
		return a.Int, nil
	case command.ArgBool:
		return a.Bool, nil
	case command.ArgNone:
		return nil, nil
	case command.ArgVariable:
		v, ok := env.rc.Variable(a.Str)
		if !ok {
			return nil, failures.New(failures.KindExecution, "executor", "variable %q has not been captured", a.Str)
		}
		return v, nil
	case command.ArgConfig:
		v, ok := x.placeholders.Get(a.Str)
		if !ok {
			x.logger.Warn("Test data key not found", zap.String("key", a.Str))
			return nil, nil
		}
		return v, nil
	case command.ArgTemplate:
		var b strings.Builder
		for _, s := range a.Segments {
			if !s.IsVar() {
				b.WriteString(s.Literal)
				continue
			}
			v, ok := env.rc.Variable(s.Var)
			if !ok {
				return nil, failures.New(failures.KindExecution, "executor", "variable %q has not been captured", s.Var)
			}
			b.WriteString(v)
		}
		return b.String(), nil
	case command.ArgCall:
		return x.dispatch(ctx, env, ref, a.Call)
	default:
		return nil, fmt.Errorf("unsupported argument kind %s", a.Kind)
	}
}

func qualified(cmd *command.Command) string {
	if cmd.Namespace == "" {
		return cmd.Name
	}
	return cmd.Namespace + "." + cmd.Name
}
