package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pilot/internal/catalog"
)

func noop(context.Context, catalog.Env, []any) (any, error) { return nil, nil }

func newRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	r := catalog.NewRegistry()
	require.NoError(t, catalog.RegisterHelpers(r))
	require.NoError(t, r.RegisterAgent(catalog.Agent{
		Name:        "search_widget",
		Page:        "home_page",
		Description: "Source, destination and date inputs, plus the search button",
		Functions: map[catalog.Platform][]catalog.Function{
			catalog.PlatformMWeb: {
				catalog.Locator("src", "Source city input.", "(//input)[1]"),
				catalog.Locator("search_ferries_button", "Search button.", "//button").WithNextRef("search_result_page"),
				{Name: "selectDate", Class: catalog.ClassAgentFunction, Params: []string{"date", "month", "year"}, Handler: noop},
			},
		},
	}))
	require.NoError(t, r.RegisterAgent(catalog.Agent{
		Name:        "lob",
		Page:        "home_page",
		Description: "Line-of-business tabs, e.g. Bus, Ferry",
		Functions: map[catalog.Platform][]catalog.Function{
			catalog.PlatformMWeb: {catalog.Locator("tab", "Tab by label.", "//*[@role='tab' and text()='{label}']", "label")},
			catalog.PlatformDWeb: {catalog.Locator("tab", "Tab by label.", "//a[text()='{label}']", "label")},
		},
	}))
	return r
}

func TestRegistry_AgentsByPlatform(t *testing.T) {
	r := newRegistry(t)

	names := func(as []catalog.Agent) []string {
		var out []string
		for _, a := range as {
			out = append(out, a.Name)
		}
		return out
	}
	assert.Equal(t, []string{"lob", "search_widget"}, names(r.Agents("home_page", catalog.PlatformMWeb)))
	assert.Equal(t, []string{"lob"}, names(r.Agents("home_page", catalog.PlatformDWeb)))
	assert.Empty(t, r.Agents("search_result_page", catalog.PlatformMWeb))

	_, ok := r.Agent("home_page", "search_widget", catalog.PlatformDWeb)
	assert.False(t, ok, "search_widget has no dweb functions")
	assert.Equal(t, []string{"home_page"}, r.Pages())
}

func TestRegistry_AgentsCSV(t *testing.T) {
	r := newRegistry(t)
	csv := r.AgentsCSV("home_page", catalog.PlatformMWeb)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "AgentName,AgentDescription", lines[0])
	assert.Equal(t, `lob,"Line-of-business tabs, e.g. Bus, Ferry"`, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "search_widget,"))
}

func TestRegistry_Lookup(t *testing.T) {
	r := newRegistry(t)
	mweb := catalog.PlatformMWeb

	tests := []struct {
		name      string
		namespace string
		fn        string
		wantClass catalog.Class
		wantOK    bool
	}{
		{"helper namespace", "helper", "click", catalog.ClassHelper, true},
		{"locator namespace", "locator", "src", catalog.ClassLocator, true},
		{"agent namespace", "agent", "selectDate", catalog.ClassAgentFunction, true},
		{"agent namespace rejects locators", "agent", "src", "", false},
		{"bare name prefers the bound agent", "", "search_ferries_button", catalog.ClassLocator, true},
		{"bare name falls back to helpers", "", "assertion", catalog.ClassHelper, true},
		{"agent name as namespace", "lob", "tab", catalog.ClassLocator, true},
		{"unknown", "", "bookTicket", "", false},
		{"unknown namespace", "payments", "pay", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := r.Lookup("home_page", "search_widget", mweb, tt.namespace, tt.fn)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantClass, f.Class)
				assert.Equal(t, tt.fn, f.Name)
			}
		})
	}

	f, ok := r.Lookup("home_page", "search_widget", mweb, "", "search_ferries_button")
	require.True(t, ok)
	assert.Equal(t, "search_result_page", f.NextRef)
}

func TestRegistry_Functions(t *testing.T) {
	r := newRegistry(t)
	locators := r.Functions("home_page", "search_widget", catalog.PlatformMWeb, catalog.ClassLocator)
	assert.Len(t, locators, 2)
	assert.Len(t, r.Functions("home_page", "search_widget", catalog.PlatformMWeb, catalog.ClassAgentFunction), 1)
	assert.Len(t, r.Functions("home_page", "nobody", catalog.PlatformMWeb, catalog.ClassLocator), 0)

	helpers := r.Functions("", "", "", catalog.ClassHelper)
	require.Len(t, helpers, 10)
	isolated := map[string]bool{}
	for _, h := range helpers {
		if h.Isolated {
			isolated[h.Name] = true
		}
	}
	assert.Equal(t, map[string]bool{"assertion": true, "assertionVisual": true, "getText": true}, isolated)

	desc := catalog.Describe(r.Functions("home_page", "lob", catalog.PlatformDWeb, catalog.ClassLocator))
	assert.Equal(t, "tab(label): Tab by label.\n", desc)
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := newRegistry(t)

	err := r.RegisterAgent(catalog.Agent{Name: "lob", Page: "home_page", Functions: map[catalog.Platform][]catalog.Function{}})
	assert.ErrorContains(t, err, "already registered")

	err = r.RegisterAgent(catalog.Agent{Name: "x", Page: "p", Functions: map[catalog.Platform][]catalog.Function{
		catalog.PlatformMWeb: {{Name: "f", Class: catalog.ClassLocator}},
	}})
	assert.ErrorContains(t, err, "no handler")

	err = r.RegisterAgent(catalog.Agent{Name: "x", Page: "p", Functions: map[catalog.Platform][]catalog.Function{
		catalog.PlatformMWeb: {{Name: "f", Class: catalog.ClassHelper, Handler: noop}},
	}})
	assert.ErrorContains(t, err, "is a helper")

	err = r.RegisterAgent(catalog.Agent{Name: "x", Page: "p", Functions: map[catalog.Platform][]catalog.Function{
		catalog.PlatformMWeb: {catalog.Locator("a", "", "//a"), catalog.Locator("a", "", "//b")},
	}})
	assert.ErrorContains(t, err, "duplicate function")

	assert.ErrorContains(t, r.RegisterHelper(catalog.Function{Name: "click", Handler: noop}), "already registered")
}

func TestRegistry_PageDescription(t *testing.T) {
	r := catalog.NewRegistry()
	r.DescribePage("home_page", "Search form with source and destination")
	d, ok := r.PageDescription("home_page")
	assert.True(t, ok)
	assert.Contains(t, d, "Search form")
	_, ok = r.PageDescription("checkout")
	assert.False(t, ok)
}
