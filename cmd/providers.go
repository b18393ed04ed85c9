// File: cmd/providers.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/browser/dom"
	"github.com/xkilldash9x/pilot/internal/browser/session"
	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/llmclient"
	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

// storeProvider creates the learning store. Tests inject an in-memory or
// mock store instead of a CSV file or database.
type storeProvider interface {
	// Create returns the store and a cleanup func that is never nil.
	Create(ctx context.Context, cfg config.Interface) (learning.Store, func(), error)
}

// oracleProvider creates the decision oracle.
type oracleProvider interface {
	Create(ctx context.Context, cfg config.Interface) (oracle.Oracle, func(), error)
}

// driverProvider creates the UI driver for one run. A nil driver is valid
// for dry runs.
type driverProvider interface {
	Create(ctx context.Context, cfg config.Interface) (schemas.Driver, error)
}

type providers struct {
	stores  storeProvider
	oracles oracleProvider
	drivers driverProvider
}

func defaultProviders() providers {
	return providers{
		stores:  defaultStoreProvider{},
		oracles: defaultOracleProvider{},
		drivers: defaultDriverProvider{},
	}
}

// -- Learning store --

type defaultStoreProvider struct{}

func (defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (learning.Store, func(), error) {
	return learning.Open(ctx, cfg.Learning(), observability.GetLogger())
}

// -- Oracle --

type defaultOracleProvider struct {
	// newClient is swapped in tests to avoid a live model.
	newClient func(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error)
}

func (p defaultOracleProvider) Create(ctx context.Context, cfg config.Interface) (oracle.Oracle, func(), error) {
	logger := observability.GetLogger()
	newClient := p.newClient
	if newClient == nil {
		newClient = llmclient.NewClient
	}
	client, err := newClient(ctx, cfg.LLM(), logger)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to create LLM client: %w", err)
	}
	o := oracle.NewLLMOracle(client, cfg.Oracle().Timeout, cfg.Oracle().Temperature, logger)
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close LLM client", zap.Error(err))
		}
	}
	return o, cleanup, nil
}

// replayProvider serves answers recorded in a YAML file keyed by role, so a
// run can be repeated without a model.
type replayProvider struct {
	path string
}

func (p replayProvider) Create(context.Context, config.Interface) (oracle.Oracle, func(), error) {
	s, err := loadReplay(p.path)
	if err != nil {
		return nil, func() {}, err
	}
	return s, func() {}, nil
}

var knownRoles = []oracle.Role{
	oracle.RoleOrchestrator,
	oracle.RolePlanner,
	oracle.RoleFailureAnalyzer,
	oracle.RoleLearner,
	oracle.RoleTextMatcher,
	oracle.RoleDriftCheck,
	oracle.RoleAssertion,
	oracle.RoleVisualAssertion,
	oracle.RoleDescribeUI,
	oracle.RoleVisualExtraction,
}

func loadReplay(path string) (*oracle.Scripted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	var script map[string][]string
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse replay file %s: %w", path, err)
	}

	roles := make([]string, 0, len(script))
	for role := range script {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	s := oracle.NewScripted()
	for _, role := range roles {
		if !slices.Contains(knownRoles, oracle.Role(role)) {
			return nil, fmt.Errorf("replay file %s: unknown role %q", path, role)
		}
		s.On(oracle.Role(role), script[role]...)
	}
	return s, nil
}

// -- Driver --

type defaultDriverProvider struct{}

func (defaultDriverProvider) Create(ctx context.Context, cfg config.Interface) (schemas.Driver, error) {
	logger := observability.GetLogger()
	switch {
	case cfg.Run().DryRun:
		return nil, nil
	case cfg.Browser().StaticHTML != "":
		d, err := openStatic(ctx, cfg.Browser().StaticHTML, cfg.Run(), logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		s, err := session.New(ctx, cfg.Browser(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		return s, nil
	}
}

// openStatic loads a directory (or single file) of pages. Without a start
// URL the page named after the run's page ref is opened, else the first.
func openStatic(ctx context.Context, path string, run config.RunConfig, logger *zap.Logger) (*dom.Document, error) {
	d := dom.NewDocument(logger)
	routes, err := d.Load(path)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, errors.New("no static pages found in " + path)
	}
	if run.URL != "" {
		return d, nil
	}
	start := routes[0]
	if slices.Contains(routes, run.PageRef) {
		start = run.PageRef
	}
	if err := d.Navigate(ctx, start); err != nil {
		return nil, err
	}
	return d, nil
}
