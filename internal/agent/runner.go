package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/failures"
	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/locator"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/oracle"
	"github.com/xkilldash9x/pilot/internal/placeholder"
)

// DefaultMaxCycles bounds the batches a run may execute.
const DefaultMaxCycles = 40

// Deps are the collaborators a Runner acts through. Driver may be nil for
// dry runs; a nil Store keeps learnings in memory.
type Deps struct {
	Registry     *catalog.Registry
	Oracle       oracle.Oracle
	Driver       schemas.Driver
	Store        learning.Store
	Placeholders placeholder.Source
}

// Options configure every run of a Runner.
type Options struct {
	Platform        catalog.Platform
	PageRef         string
	URL             string
	DryRun          bool
	ExactMatch      bool
	MaxCycles       int
	ResolverTimeout time.Duration
	PollInterval    time.Duration
}

// Runner drives tasks through orchestrate, plan, execute, then learn or
// recover, until the task completes or a stop condition is hit.
type Runner struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// NewRunner validates deps and fills option defaults.
func NewRunner(deps Deps, opts Options, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("runner needs a catalog registry")
	case deps.Oracle == nil:
		return nil, errors.New("runner needs an oracle")
	case deps.Driver == nil && !opts.DryRun:
		return nil, errors.New("runner needs a driver unless dry running")
	case opts.PageRef == "":
		return nil, errors.New("runner needs a starting page ref")
	}
	if deps.Store == nil {
		deps.Store = learning.NewMemory()
	}
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = DefaultMaxCycles
	}
	return &Runner{deps: deps, opts: opts, logger: logger}, nil
}

type components struct {
	orchestrator *Orchestrator
	planner      *Planner
	executor     *Executor
	analyzer     *FailureAnalyzer
	learner      *Learner
}

// Run drives task to an end state. The result is always returned; the error
// is nil only for COMPLETED runs.
func (r *Runner) Run(ctx context.Context, task string) (*RunResult, error) {
	runID := uuid.NewString()
	log := observability.RunLogger(r.logger, runID, string(r.opts.Platform))
	counter := &countingOracle{inner: r.deps.Oracle}

	rc := NewExecutionContext(task, r.opts.PageRef, r.opts.Platform)
	defer rc.Reset()

	res := &RunResult{RunID: runID, Task: task, Channel: string(r.opts.Platform), StartedAt: time.Now()}
	log.Info("Run started", zap.String("task", task), zap.String("ref", r.opts.PageRef), zap.Bool("dry_run", r.opts.DryRun))

	status, err := r.start(ctx)
	if err == nil {
		status, err = r.loop(ctx, rc, r.components(counter, log), &res.Cycles)
	}

	res.Status = status
	if err != nil {
		res.Error = err.Error()
	}
	res.Completed = rc.Queue.Completed()
	res.Pending = rc.Queue.Pending()
	res.Failed, _ = rc.Queue.Failed()
	res.Variables = maps.Clone(rc.Variables)
	res.Executed = append([]string(nil), rc.Executed...)
	res.Learned = append([]int(nil), rc.Learned...)
	res.FinalRef = rc.Ref
	res.OracleCalls = counter.calls.Load()
	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.Int("cycles", res.Cycles),
		zap.Int64("oracle_calls", res.OracleCalls),
		zap.Duration("duration", res.Duration),
	}
	if err != nil {
		log.Warn("Run ended", append(fields, zap.Error(err))...)
	} else {
		log.Info("Run ended", fields...)
	}
	return res, err
}

func (r *Runner) start(ctx context.Context) (Status, error) {
	if r.opts.DryRun || r.opts.URL == "" {
		return "", nil
	}
	if err := r.deps.Driver.Navigate(ctx, r.opts.URL); err != nil {
		return classify(ctx, err), fmt.Errorf("opening %s: %w", r.opts.URL, err)
	}
	return "", nil
}

func (r *Runner) components(o oracle.Oracle, log *zap.Logger) components {
	var matcher locator.TextMatcher
	if !r.opts.ExactMatch {
		matcher = locator.NewOracleMatcher(o, log)
	}
	var prober locator.Prober
	if r.deps.Driver != nil {
		prober = r.deps.Driver
	}
	resolver := locator.NewResolver(prober, matcher, locator.Options{
		Timeout:      r.opts.ResolverTimeout,
		PollInterval: r.opts.PollInterval,
		ExactMatch:   r.opts.ExactMatch,
	}, log)

	return components{
		orchestrator: NewOrchestrator(r.deps.Registry, o, log),
		planner:      NewPlanner(r.deps.Registry, o, log),
		executor: NewExecutor(ExecutorConfig{
			Registry:     r.deps.Registry,
			Oracle:       o,
			Driver:       r.deps.Driver,
			Resolver:     resolver,
			Placeholders: r.deps.Placeholders,
			DryRun:       r.opts.DryRun,
		}, log),
		analyzer: NewFailureAnalyzer(r.deps.Registry, o, r.deps.Store, r.deps.Driver, r.opts.DryRun, log),
		learner:  NewLearner(o, r.deps.Store, log),
	}
}

// loop runs cycles until a stop condition. A cycle executes one batch;
// batches left over from a plan run in later cycles without re-planning and
// are dropped when a batch fails. After a recovery the planner is consulted
// directly with the agent the analyzer bound.
func (r *Runner) loop(ctx context.Context, rc *ExecutionContext, c components, cycles *int) (Status, error) {
	needAgent := true
	for {
		if err := ctx.Err(); err != nil {
			return StatusCancelled, err
		}

		var batch Batch
		if len(rc.deferred) > 0 {
			batch, rc.deferred = rc.deferred[0], rc.deferred[1:]
		} else {
			if needAgent {
				d, err := c.orchestrator.Next(ctx, rc)
				if err != nil {
					return classify(ctx, err), err
				}
				if d.Complete {
					return StatusCompleted, nil
				}
				rc.Agent = d.Agent
			}
			if *cycles >= r.opts.MaxCycles {
				return StatusCycleLimitExceeded, fmt.Errorf("run stopped after %d cycles", *cycles)
			}
			batches, err := c.planner.Plan(ctx, rc)
			if err != nil {
				return classify(ctx, err), err
			}
			batch, rc.deferred = batches[0], batches[1:]
		}
		if *cycles >= r.opts.MaxCycles {
			return StatusCycleLimitExceeded, fmt.Errorf("run stopped after %d cycles", *cycles)
		}

		*cycles++
		out := c.executor.Run(ctx, rc, batch)
		if out.Err == nil {
			if err := c.learner.Learn(ctx, rc); err != nil {
				return StatusCancelled, err
			}
			needAgent = true
			continue
		}

		rc.deferred = nil
		if ctx.Err() != nil {
			return StatusCancelled, out.Err
		}
		if failures.IsAssertion(out.Err) {
			return StatusAssertionFailed, out.Err
		}
		if failures.KindOf(out.Err) == failures.KindOracleProtocol {
			return StatusOracleProtocolError, out.Err
		}
		if err := c.analyzer.Analyze(ctx, rc, out.Err); err != nil {
			if errors.Is(err, ErrFailureLimit) {
				return StatusFailureLimitExceeded, err
			}
			return classify(ctx, err), err
		}
		needAgent = false
	}
}

// classify maps an error that ended a run to its status.
func classify(ctx context.Context, err error) Status {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StatusCancelled
	}
	switch failures.KindOf(err) {
	case failures.KindAssertion:
		return StatusAssertionFailed
	case failures.KindOracleProtocol:
		return StatusOracleProtocolError
	default:
		return StatusTerminated
	}
}

// countingOracle counts decisions for the run report.
type countingOracle struct {
	inner oracle.Oracle
	calls atomic.Int64
}

func (c *countingOracle) Decide(ctx context.Context, req oracle.Request) (string, error) {
	c.calls.Add(1)
	return c.inner.Decide(ctx, req)
}
