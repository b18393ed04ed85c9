// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

// resetForTest clears the global logger so each command initializes its own.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
}

// -- Test providers --

type memoryStores struct{ store learning.Store }

func (p memoryStores) Create(context.Context, config.Interface) (learning.Store, func(), error) {
	return p.store, func() {}, nil
}

type scriptedOracles struct{ script *oracle.Scripted }

func (p scriptedOracles) Create(context.Context, config.Interface) (oracle.Oracle, func(), error) {
	return p.script, func() {}, nil
}

type fixedDrivers struct{ driver schemas.Driver }

func (p fixedDrivers) Create(context.Context, config.Interface) (schemas.Driver, error) {
	return p.driver, nil
}

// testProviders keeps learnings in memory and drives static pages or dry
// runs. The oracle must come from --replay unless script is set.
func testProviders(store learning.Store, script *oracle.Scripted) providers {
	p := defaultProviders()
	p.stores = memoryStores{store: store}
	if script != nil {
		p.oracles = scriptedOracles{script: script}
	}
	return p
}

// writeConfig writes a quiet config rooted in dir and returns its path.
func writeConfig(t *testing.T, dir string, extra string) string {
	t.Helper()
	body := fmt.Sprintf(`logger:
  level: error
  log_file: ""
resolver:
  timeout: 1s
  poll_interval: 10ms
learning:
  csv_path: %s
test_data:
  dir: %s
%s`, filepath.Join(dir, "learner.csv"), dir, extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs a fresh command tree and returns what it printed.
func execute(t *testing.T, p providers, args ...string) (string, error) {
	t.Helper()
	resetForTest(t)
	root := newRootCmd(p)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// replayFile writes answers per role in the YAML shape --replay reads.
func replayFile(t *testing.T, dir string, answers map[oracle.Role][]string) string {
	t.Helper()
	var b strings.Builder
	for role, list := range answers {
		b.WriteString(string(role) + ":\n")
		for _, a := range list {
			b.WriteString("  - '" + strings.ReplaceAll(a, "'", "''") + "'\n")
		}
	}
	return writeFile(t, dir, "replay.yaml", b.String())
}

const (
	widgetAgent = `{"Agent": "search_widget", "Reasoning": "the search form is on the home page"}`
	searchPlan  = `{"FunctionCalls": [{"functionCall": "click(locator.search_ferries_button())", "subTask": "search ferries"}], "Reasoning": "one click starts the search", "PendingTasks": "None"}`
)
