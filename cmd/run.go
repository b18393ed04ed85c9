// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/internal/agent"
	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/catalog/ferry"
	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/oracle"
	"github.com/xkilldash9x/pilot/internal/placeholder"
)

// newRunCmd creates the `run` command.
func newRunCmd(p providers) *cobra.Command {
	var (
		asJSON bool
		replay string
	)

	runCmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Drives a single plain-language task until it completes or stops",
		Long: `Run orchestrates, plans and executes the task against the configured channel,
recovering from failures and persisting what it learns. The command exits
non-zero unless the run COMPLETED.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			deps := p
			if replay != "" {
				deps.oracles = replayProvider{path: replay}
			}
			return runTask(cmd.Context(), cmd.OutOrStdout(), cfg, deps, args[0], asJSON)
		},
	}

	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&asJSON, "json", false, "print the run report as JSON")
	runCmd.Flags().StringVar(&replay, "replay", "", "YAML file of recorded oracle answers per role, used instead of the model")
	return runCmd
}

// addRunFlags defines the flags that override the run and browser sections.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("channel", "", "channel to run on (mweb, dweb, android, ios)")
	f.String("page", "", "page ref the run starts on")
	f.String("url", "", "URL to open before the run starts")
	f.Bool("dry-run", false, "plan and dispatch without touching the UI")
	f.Bool("exact-match", false, "match locator text exactly, without the oracle")
	f.Int("max-cycles", 0, "maximum batches a run may execute")
	f.Bool("headless", true, "run the browser headless")
	f.String("static-html", "", "directory of static pages to drive instead of a browser")

	bindFlag(cmd, "channel", "run.channel")
	bindFlag(cmd, "page", "run.page_ref")
	bindFlag(cmd, "url", "run.url")
	bindFlag(cmd, "dry-run", "run.dry_run")
	bindFlag(cmd, "exact-match", "run.exact_match")
	bindFlag(cmd, "max-cycles", "run.max_cycles")
	bindFlag(cmd, "headless", "browser.headless")
	bindFlag(cmd, "static-html", "browser.static_html")
}

// runTask runs one task and writes its report to out. The error is nil
// only when the run COMPLETED.
func runTask(ctx context.Context, out io.Writer, cfg config.Interface, p providers, task string, asJSON bool) error {
	env, cleanup, err := newRunEnv(ctx, cfg, p)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := env.run(ctx, cfg, task)
	if res == nil {
		return err
	}
	if werr := writeReport(out, res, asJSON); werr != nil {
		return werr
	}
	if err != nil {
		return fmt.Errorf("task ended %s: %w", res.Status, err)
	}
	return nil
}

// runEnv holds the collaborators shared by every task of a command.
type runEnv struct {
	registry *catalog.Registry
	oracle   oracle.Oracle
	store    learning.Store
	drivers  driverProvider
	logger   *zap.Logger
}

func newRunEnv(ctx context.Context, cfg config.Interface, p providers) (*runEnv, func(), error) {
	logger := observability.GetLogger()

	registry, err := ferry.NewRegistry()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build agent catalog: %w", err)
	}
	store, closeStore, err := p.stores.Create(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open learning store: %w", err)
	}
	o, closeOracle, err := p.oracles.Create(ctx, cfg)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to create oracle: %w", err)
	}

	env := &runEnv{registry: registry, oracle: o, store: store, drivers: p.drivers, logger: logger}
	cleanup := func() {
		closeOracle()
		closeStore()
	}
	return env, cleanup, nil
}

// run drives task with a driver of its own, closed when the run ends.
func (e *runEnv) run(ctx context.Context, cfg config.Interface, task string) (*agent.RunResult, error) {
	driver, err := e.drivers.Create(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	if driver != nil {
		defer func() {
			if err := driver.Close(); err != nil {
				e.logger.Warn("Failed to close driver", zap.Error(err))
			}
		}()
	}

	rc := cfg.Run()
	runner, err := agent.NewRunner(agent.Deps{
		Registry:     e.registry,
		Oracle:       e.oracle,
		Driver:       driver,
		Store:        e.store,
		Placeholders: placeholder.NewResolver(cfg.TestData().Dir, rc.Channel, e.logger),
	}, agent.Options{
		Platform:        catalog.Platform(rc.Channel),
		PageRef:         rc.PageRef,
		URL:             rc.URL,
		DryRun:          rc.DryRun,
		ExactMatch:      rc.ExactMatch,
		MaxCycles:       rc.MaxCycles,
		ResolverTimeout: cfg.Resolver().Timeout,
		PollInterval:    cfg.Resolver().PollInterval,
	}, e.logger)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, task)
}
