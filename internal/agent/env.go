package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/catalog"
	"github.com/xkilldash9x/pilot/internal/locator"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

// runEnv is what catalog handlers see during a run.
type runEnv struct {
	rc       *ExecutionContext
	driver   schemas.Driver
	oracle   oracle.Oracle
	resolver *locator.Resolver
	dryRun   bool
	logger   *zap.Logger
}

var _ catalog.Env = (*runEnv)(nil)

func (e *runEnv) Driver() schemas.Driver             { return e.driver }
func (e *runEnv) Oracle() oracle.Oracle              { return e.oracle }
func (e *runEnv) Platform() catalog.Platform         { return e.rc.Platform }
func (e *runEnv) Variable(key string) (string, bool) { return e.rc.Variable(key) }
func (e *runEnv) SetVariable(key, value string)      { e.rc.SetVariable(key, value) }
func (e *runEnv) DryRun() bool                       { return e.dryRun }
func (e *runEnv) Logger() *zap.Logger                { return e.logger }

// Locate resolves template against the live page. Dry runs return it untouched.
func (e *runEnv) Locate(ctx context.Context, template, text string, position int) (string, error) {
	if e.dryRun {
		return template, nil
	}
	res, err := e.resolver.Resolve(ctx, template, text, position)
	if err != nil {
		return "", err
	}
	return res.Expression, nil
}
