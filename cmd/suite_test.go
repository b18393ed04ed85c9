// File: cmd/suite_test.go
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pilot/internal/agent"
	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

const twoTaskSuite = `concurrency: 1
tasks:
  - name: mobile search
    task: search ferries from Piraeus to Naxos
  - name: desktop search
    task: search ferries from Piraeus to Paros
    channel: dweb
`

func TestSuiteCmd_RunsEveryTask(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	suite := writeFile(t, dir, "suite.yaml", twoTaskSuite)
	replay := replayFile(t, dir, map[oracle.Role][]string{
		oracle.RoleOrchestrator: {widgetAgent, widgetAgent},
		oracle.RolePlanner:      {searchPlan, searchPlan},
	})

	out, err := execute(t, testProviders(learning.NewMemory(), nil),
		"suite", suite, "--config", cfgPath, "--dry-run", "--replay", replay, "--concurrency", "2", "--json")
	require.NoError(t, err)

	var entries []suiteEntry
	require.NoError(t, jsonAPI.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "mobile search", entries[0].Name)
	assert.Equal(t, "desktop search", entries[1].Name)
	for _, e := range entries {
		require.NotNil(t, e.Result, e.Name)
		assert.Equal(t, agent.StatusCompleted, e.Result.Status, e.Name)
		assert.Equal(t, "search_result_page", e.Result.FinalRef, e.Name)
	}
	assert.Equal(t, "mweb", entries[0].Result.Channel)
	assert.Equal(t, "dweb", entries[1].Result.Channel)
}

func TestSuiteCmd_ReportsFailedTasks(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	suite := writeFile(t, dir, "suite.yaml", twoTaskSuite)
	script := oracle.NewScripted().
		On(oracle.RoleOrchestrator, widgetAgent, `{"Agent": "TERMINATE", "Reasoning": "no agent fits"}`).
		On(oracle.RolePlanner, searchPlan)

	out, err := execute(t, testProviders(learning.NewMemory(), script),
		"suite", suite, "--config", cfgPath, "--dry-run")
	require.Error(t, err)
	assert.EqualError(t, err, "1 of 2 tasks did not complete")

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "TERMINATED")
	assert.Contains(t, out, "mobile search")
	assert.Contains(t, out, "desktop search")
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()

	s, err := loadSuite(writeFile(t, dir, "ok.yaml", "tasks:\n  - task: search\n  - name: named\n    task: book\n"))
	require.NoError(t, err)
	assert.Equal(t, "task-1", s.Tasks[0].Name)
	assert.Equal(t, "named", s.Tasks[1].Name)
	assert.Zero(t, s.Concurrency)

	_, err = loadSuite(writeFile(t, dir, "empty.yaml", "tasks: []\n"))
	assert.ErrorContains(t, err, "has no tasks")

	_, err = loadSuite(writeFile(t, dir, "blank.yaml", "tasks:\n  - name: blank\n"))
	assert.ErrorContains(t, err, "task 1 has no task text")

	_, err = loadSuite(dir + "/absent.yaml")
	assert.ErrorContains(t, err, "failed to read suite file")
}

func TestSuiteTask_Config(t *testing.T) {
	base := config.NewDefaultConfig()
	dry, exact := true, true

	c, err := suiteTask{Name: "t", Channel: "dweb", PageRef: "search_result_page", URL: "https://ferries.example/", DryRun: &dry, ExactMatch: &exact}.config(base)
	require.NoError(t, err)
	assert.Equal(t, config.RunConfig{
		Channel:    "dweb",
		PageRef:    "search_result_page",
		URL:        "https://ferries.example/",
		ExactMatch: true,
		DryRun:     true,
		MaxCycles:  40,
	}, c.Run())
	assert.Equal(t, "mweb", base.Run().Channel, "base is not modified")
	assert.False(t, base.Run().DryRun)

	_, err = suiteTask{Name: "tv", Channel: "tv"}.config(base)
	assert.ErrorContains(t, err, `task "tv": run.channel must be one of`)
}
