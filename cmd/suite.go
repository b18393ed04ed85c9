// File: cmd/suite.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pilot/internal/agent"
	"github.com/xkilldash9x/pilot/internal/config"
)

const defaultSuiteConcurrency = 2

// suiteFile is a YAML list of tasks sharing one catalog, oracle and store.
type suiteFile struct {
	Concurrency int         `yaml:"concurrency"`
	Tasks       []suiteTask `yaml:"tasks"`
}

// suiteTask overrides the run section for one task. Empty fields keep the
// configured value.
type suiteTask struct {
	Name       string `yaml:"name"`
	Task       string `yaml:"task"`
	Channel    string `yaml:"channel"`
	PageRef    string `yaml:"page_ref"`
	URL        string `yaml:"url"`
	ExactMatch *bool  `yaml:"exact_match"`
	DryRun     *bool  `yaml:"dry_run"`
}

// config returns a copy of base with t's overrides applied.
func (t suiteTask) config(base *config.Config) (*config.Config, error) {
	c := *base
	if t.Channel != "" {
		c.SetRunChannel(t.Channel)
	}
	if t.PageRef != "" {
		c.SetRunPageRef(t.PageRef)
	}
	if t.URL != "" {
		c.SetRunURL(t.URL)
	}
	if t.ExactMatch != nil {
		c.SetRunExactMatch(*t.ExactMatch)
	}
	if t.DryRun != nil {
		c.SetRunDryRun(*t.DryRun)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("task %q: %w", t.Name, err)
	}
	return &c, nil
}

// suiteEntry is one row of the suite report.
type suiteEntry struct {
	Name   string           `json:"name"`
	Result *agent.RunResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func loadSuite(path string) (*suiteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	var s suiteFile
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suite file %s: %w", path, err)
	}
	if len(s.Tasks) == 0 {
		return nil, fmt.Errorf("suite file %s has no tasks", path)
	}
	for i := range s.Tasks {
		if s.Tasks[i].Task == "" {
			return nil, fmt.Errorf("suite file %s: task %d has no task text", path, i+1)
		}
		if s.Tasks[i].Name == "" {
			s.Tasks[i].Name = fmt.Sprintf("task-%d", i+1)
		}
	}
	return &s, nil
}

// newSuiteCmd creates the `suite` command.
func newSuiteCmd(p providers) *cobra.Command {
	var (
		asJSON      bool
		replay      string
		concurrency int
	)

	suiteCmd := &cobra.Command{
		Use:   "suite [file]",
		Short: "Runs every task in a YAML suite file, several at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			suite, err := loadSuite(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") || suite.Concurrency <= 0 {
				suite.Concurrency = concurrency
			}
			deps := p
			if replay != "" {
				deps.oracles = replayProvider{path: replay}
			}
			return runSuite(cmd.Context(), cmd.OutOrStdout(), cfg, deps, suite, asJSON)
		},
	}

	addRunFlags(suiteCmd)
	suiteCmd.Flags().IntVar(&concurrency, "concurrency", defaultSuiteConcurrency, "tasks run at the same time")
	suiteCmd.Flags().BoolVar(&asJSON, "json", false, "print the suite report as JSON")
	suiteCmd.Flags().StringVar(&replay, "replay", "", "YAML file of recorded oracle answers per role, used instead of the model")
	return suiteCmd
}

// runSuite runs the tasks of s with at most s.Concurrency in flight. Each
// task gets its own driver; tasks not yet started when ctx ends are skipped.
func runSuite(ctx context.Context, out io.Writer, cfg *config.Config, p providers, s *suiteFile, asJSON bool) error {
	configs := make([]*config.Config, len(s.Tasks))
	for i, t := range s.Tasks {
		c, err := t.config(cfg)
		if err != nil {
			return err
		}
		configs[i] = c
	}

	env, cleanup, err := newRunEnv(ctx, cfg, p)
	if err != nil {
		return err
	}
	defer cleanup()

	entries := make([]suiteEntry, len(s.Tasks))
	g := new(errgroup.Group)
	g.SetLimit(max(s.Concurrency, 1))
	for i, t := range s.Tasks {
		entries[i].Name = t.Name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				entries[i].Error = "skipped: " + err.Error()
				return err
			}
			res, err := env.run(ctx, configs[i], t.Task)
			entries[i].Result = res
			if err != nil {
				entries[i].Error = err.Error()
				env.logger.Info("Suite task did not complete", zap.String("task", t.Name), zap.Error(err))
			}
			return nil
		})
	}
	waitErr := g.Wait()

	if asJSON {
		if err := writeJSON(out, entries); err != nil {
			return err
		}
	} else if err := writeSuiteTable(out, entries); err != nil {
		return err
	}

	if waitErr != nil {
		return waitErr
	}
	failed := 0
	for _, e := range entries {
		if e.Result == nil || !e.Result.Status.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks did not complete", failed, len(entries))
	}
	return nil
}

func writeSuiteTable(out io.Writer, entries []suiteEntry) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tCYCLES\tORACLE CALLS\tDURATION\tERROR")
	for _, e := range entries {
		if e.Result == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%s\n", e.Name, e.Error)
			continue
		}
		r := e.Result
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			e.Name, r.Status, r.Cycles, r.OracleCalls, r.Duration.Round(time.Millisecond), r.Error)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write suite report: %w", err)
	}
	return nil
}
