// File: cmd/learnings.go
package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/learning"
)

// newLearningsCmd creates the `learnings` command.
func newLearningsCmd(p providers) *cobra.Command {
	var (
		asJSON  bool
		subtask string
	)

	learningsCmd := &cobra.Command{
		Use:   "learnings",
		Short: "Lists the mitigations learned from earlier runs",
		Long: `Learnings prints every stored record. With --subtask, records for that failed
subtask come first, in the order the failure analyzer would read them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			return listLearnings(cmd.Context(), cmd.OutOrStdout(), cfg, p.stores, subtask, asJSON)
		},
	}
	learningsCmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	learningsCmd.Flags().StringVar(&subtask, "subtask", "", "list records for this failed subtask first")
	return learningsCmd
}

func listLearnings(ctx context.Context, w io.Writer, cfg config.Interface, stores storeProvider, subtask string, asJSON bool) error {
	store, cleanup, err := stores.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open learning store: %w", err)
	}
	defer cleanup()

	records, err := store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read learnings: %w", err)
	}
	if subtask != "" {
		records = learning.Prioritize(records, subtask)
	}
	if records == nil {
		records = []learning.Record{}
	}

	if asJSON {
		return writeJSON(w, records)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(learning.Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{strconv.Itoa(r.ID), r.FailedSubtask, r.FailureReason, r.AgentSelected, r.Reasoning, r.MitigationTask}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
