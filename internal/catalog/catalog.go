// Package catalog holds the capabilities the run loop can dispatch to: shared
// helpers, and agents whose locators and composite functions are keyed by
// page and platform.
package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

// Class groups functions by how the planner may use them.
type Class string

const (
	ClassHelper        Class = "helper"
	ClassLocator       Class = "locator"
	ClassAgentFunction Class = "agent"
)

// Platform is the channel a function set targets.
type Platform string

const (
	PlatformMWeb    Platform = "mweb"
	PlatformDWeb    Platform = "dweb"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// Env is what a handler may act through during a run.
type Env interface {
	Driver() schemas.Driver
	Oracle() oracle.Oracle
	Platform() Platform
	// Locate resolves a locator template to a concrete expression.
	Locate(ctx context.Context, template, text string, position int) (string, error)
	Variable(key string) (string, bool)
	SetVariable(key, value string)
	DryRun() bool
	Logger() *zap.Logger
}

// Handler executes a function with evaluated positional arguments.
type Handler func(ctx context.Context, env Env, args []any) (any, error)

// Function is one dispatchable capability.
type Function struct {
	Name   string
	Class  Class
	Doc    string
	Params []string
	// Isolated functions must be the only call in their batch.
	Isolated bool
	// NextRef is the page this function leads to when it is used.
	NextRef string
	Handler Handler
}

// Signature renders name(param, ...).
func (f Function) Signature() string {
	return f.Name + "(" + strings.Join(f.Params, ", ") + ")"
}

// Agent is a named capability set tied to a page.
type Agent struct {
	Name        string
	Page        string
	Description string
	Functions   map[Platform][]Function
}

// Registry is keyed by (page, agent, platform). It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]map[string]*Agent
	helpers map[string]Function
	pages   map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents:  make(map[string]map[string]*Agent),
		helpers: make(map[string]Function),
		pages:   make(map[string]string),
	}
}

// RegisterAgent adds a. Agent names are unique per page.
func (r *Registry) RegisterAgent(a Agent) error {
	if a.Name == "" || a.Page == "" {
		return fmt.Errorf("agent needs a name and a page")
	}
	for platform, fns := range a.Functions {
		seen := make(map[string]bool, len(fns))
		for _, f := range fns {
			if err := validate(f); err != nil {
				return fmt.Errorf("agent %s (%s): %w", a.Name, platform, err)
			}
			if f.Class == ClassHelper {
				return fmt.Errorf("agent %s (%s): %s is a helper; register it with RegisterHelper", a.Name, platform, f.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("agent %s (%s): duplicate function %s", a.Name, platform, f.Name)
			}
			seen[f.Name] = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	byName, ok := r.agents[a.Page]
	if !ok {
		byName = make(map[string]*Agent)
		r.agents[a.Page] = byName
	}
	if _, dup := byName[a.Name]; dup {
		return fmt.Errorf("agent %s already registered on %s", a.Name, a.Page)
	}
	byName[a.Name] = &a
	return nil
}

// RegisterHelper adds a page-independent helper.
func (r *Registry) RegisterHelper(f Function) error {
	f.Class = ClassHelper
	if err := validate(f); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.helpers[f.Name]; dup {
		return fmt.Errorf("helper %s already registered", f.Name)
	}
	r.helpers[f.Name] = f
	return nil
}

// DescribePage records what page looks like, for drift checks.
func (r *Registry) DescribePage(page, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[page] = description
}

// PageDescription returns the description recorded for page.
func (r *Registry) PageDescription(page string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.pages[page]
	return d, ok
}

// Pages lists every page with at least one agent, sorted.
func (r *Registry) Pages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for p := range r.agents {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Agents lists the agents on page that support platform, sorted by name.
func (r *Registry) Agents(page string, platform Platform) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Agent
	for _, a := range r.agents[page] {
		if _, ok := a.Functions[platform]; ok {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Agent returns the named agent on page if it supports platform.
func (r *Registry) Agent(page, name string, platform Platform) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[page][name]
	if !ok {
		return Agent{}, false
	}
	if _, ok := a.Functions[platform]; !ok {
		return Agent{}, false
	}
	return *a, true
}

// AgentsCSV renders the agents on page as AgentName,AgentDescription rows.
func (r *Registry) AgentsCSV(page string, platform Platform) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"AgentName", "AgentDescription"})
	for _, a := range r.Agents(page, platform) {
		_ = w.Write([]string{a.Name, a.Description})
	}
	w.Flush()
	return buf.String()
}

// Helpers lists every helper, sorted by name.
func (r *Registry) Helpers() []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Function, 0, len(r.helpers))
	for _, f := range r.helpers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Functions lists agent's functions of class on page for platform. ClassHelper
// returns the shared helpers.
func (r *Registry) Functions(page, agent string, platform Platform, class Class) []Function {
	if class == ClassHelper {
		return r.Helpers()
	}
	a, ok := r.Agent(page, agent, platform)
	if !ok {
		return nil
	}
	var out []Function
	for _, f := range a.Functions[platform] {
		if f.Class == class {
			out = append(out, f)
		}
	}
	return out
}

// Lookup resolves a call's namespace and name in the context of the bound
// agent. The namespace may be helper, locator, agent, the name of an agent on
// the same page, or empty; bare names prefer the bound agent over helpers.
func (r *Registry) Lookup(page, agent string, platform Platform, namespace, name string) (Function, bool) {
	switch namespace {
	case "helper":
		return r.helper(name)
	case "locator":
		return find(r.Functions(page, agent, platform, ClassLocator), name)
	case "agent":
		return find(r.Functions(page, agent, platform, ClassAgentFunction), name)
	case "":
		if a, ok := r.Agent(page, agent, platform); ok {
			if f, ok := find(a.Functions[platform], name); ok {
				return f, true
			}
		}
		return r.helper(name)
	default:
		a, ok := r.Agent(page, namespace, platform)
		if !ok {
			return Function{}, false
		}
		return find(a.Functions[platform], name)
	}
}

func (r *Registry) helper(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.helpers[name]
	return f, ok
}

func find(fns []Function, name string) (Function, bool) {
	for _, f := range fns {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

func validate(f Function) error {
	switch {
	case f.Name == "":
		return fmt.Errorf("function needs a name")
	case f.Handler == nil:
		return fmt.Errorf("function %s has no handler", f.Name)
	case f.Class != ClassHelper && f.Class != ClassLocator && f.Class != ClassAgentFunction:
		return fmt.Errorf("function %s has unknown class %q", f.Name, f.Class)
	}
	return nil
}

// Describe lists fns one per line as signature: doc.
func Describe(fns []Function) string {
	var b strings.Builder
	for _, f := range fns {
		b.WriteString(f.Signature())
		if f.Doc != "" {
			b.WriteString(": ")
			b.WriteString(f.Doc)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
