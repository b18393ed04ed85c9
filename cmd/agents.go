// File: cmd/agents.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/catalog/ferry"
)

// newAgentsCmd creates the `agents` command.
func newAgentsCmd() *cobra.Command {
	var page string

	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "Lists the agents and functions available per page for a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			registry, err := ferry.NewRegistry()
			if err != nil {
				return fmt.Errorf("failed to build agent catalog: %w", err)
			}
			return listAgents(cmd.OutOrStdout(), registry, catalog.Platform(cfg.Run().Channel), page)
		},
	}
	agentsCmd.Flags().String("channel", "", "channel to list (mweb, dweb, android, ios)")
	agentsCmd.Flags().StringVar(&page, "page", "", "only list this page")
	bindFlag(agentsCmd, "channel", "run.channel")
	return agentsCmd
}

// listAgents writes the catalog for platform, one block per page, followed
// by the helpers every agent can call.
func listAgents(w io.Writer, r *catalog.Registry, platform catalog.Platform, page string) error {
	pages := r.Pages()
	if page != "" {
		if _, ok := r.PageDescription(page); !ok && len(r.Agents(page, platform)) == 0 {
			return fmt.Errorf("unknown page %q", page)
		}
		pages = []string{page}
	}

	var b strings.Builder
	for _, p := range pages {
		desc, _ := r.PageDescription(p)
		fmt.Fprintf(&b, "%s: %s\n", p, desc)
		agents := r.Agents(p, platform)
		if len(agents) == 0 {
			fmt.Fprintf(&b, "  (no agents for %s)\n", platform)
		}
		for _, a := range agents {
			fmt.Fprintf(&b, "  %s: %s\n", a.Name, a.Description)
			for _, class := range []catalog.Class{catalog.ClassLocator, catalog.ClassAgentFunction} {
				writeIndented(&b, "    "+string(class)+".", catalog.Describe(r.Functions(p, a.Name, platform, class)))
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("helpers:\n")
	writeIndented(&b, "  ", catalog.Describe(r.Helpers()))

	_, err := io.WriteString(w, b.String())
	return err
}

func writeIndented(b *strings.Builder, prefix, lines string) {
	for _, line := range strings.Split(strings.TrimRight(lines, "\n"), "\n") {
		if line != "" {
			b.WriteString(prefix + line + "\n")
		}
	}
}
