// File: cmd/report.go
package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/pilot/internal/agent"
)

var jsonAPI = json.ConfigCompatibleWithStandardLibrary

// writeReport prints res as indented JSON or as a readable summary.
func writeReport(w io.Writer, res *agent.RunResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	_, err := io.WriteString(w, formatReport(res))
	return err
}

func writeJSON(w io.Writer, v any) error {
	data, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatReport(res *agent.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s %s\n", res.RunID, res.Status)
	fmt.Fprintf(&b, "  Task:         %s\n", res.Task)
	fmt.Fprintf(&b, "  Channel:      %s\n", res.Channel)
	fmt.Fprintf(&b, "  Final page:   %s\n", res.FinalRef)
	fmt.Fprintf(&b, "  Cycles:       %d\n", res.Cycles)
	fmt.Fprintf(&b, "  Oracle calls: %d\n", res.OracleCalls)
	fmt.Fprintf(&b, "  Started:      %s\n", res.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  Duration:     %s\n", res.Duration.Round(time.Millisecond))
	if res.Error != "" {
		fmt.Fprintf(&b, "  Error:        %s\n", res.Error)
	}

	writeList(&b, "Completed", res.Completed)
	if res.Failed != "" {
		writeList(&b, "Failed", []string{res.Failed})
	}
	writeList(&b, "Pending", res.Pending)

	if len(res.Variables) > 0 {
		keys := make([]string, 0, len(res.Variables))
		for k := range res.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Variables:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s = %s\n", k, res.Variables[k])
		}
	}

	if len(res.Executed) > 0 {
		b.WriteString("Executed:\n")
		for i, call := range res.Executed {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, call)
		}
	}
	if len(res.Learned) > 0 {
		ids := make([]string, len(res.Learned))
		for i, id := range res.Learned {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(&b, "Learned records: %s\n", strings.Join(ids, ", "))
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}
