// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/learning"
	"github.com/xkilldash9x/pilot/internal/oracle"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) LLM() config.LLMRouterConfig {
	args := m.Called()
	return args.Get(0).(config.LLMRouterConfig)
}

func (m *MockConfig) Oracle() config.OracleConfig {
	args := m.Called()
	return args.Get(0).(config.OracleConfig)
}

func (m *MockConfig) Run() config.RunConfig {
	args := m.Called()
	return args.Get(0).(config.RunConfig)
}

func (m *MockConfig) Resolver() config.ResolverConfig {
	args := m.Called()
	return args.Get(0).(config.ResolverConfig)
}

func (m *MockConfig) Learning() config.LearningConfig {
	args := m.Called()
	return args.Get(0).(config.LearningConfig)
}

func (m *MockConfig) TestData() config.TestDataConfig {
	args := m.Called()
	return args.Get(0).(config.TestDataConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

// --- Setters ---

func (m *MockConfig) SetRunChannel(ch string)   { m.Called(ch) }
func (m *MockConfig) SetRunPageRef(ref string)  { m.Called(ref) }
func (m *MockConfig) SetRunURL(u string)        { m.Called(u) }
func (m *MockConfig) SetRunDryRun(b bool)       { m.Called(b) }
func (m *MockConfig) SetRunExactMatch(b bool)   { m.Called(b) }
func (m *MockConfig) SetBrowserHeadless(b bool) { m.Called(b) }

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Oracle Mock --

// MockOracle mocks oracle.Oracle. Prefer oracle.Scripted when the test only
// needs canned answers per role.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Decide(ctx context.Context, req oracle.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// -- Driver Mock --

// MockDriver mocks the schemas.Driver interface.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockDriver) Click(ctx context.Context, xpath string) error {
	return m.Called(ctx, xpath).Error(0)
}

func (m *MockDriver) Type(ctx context.Context, xpath, text string) error {
	return m.Called(ctx, xpath, text).Error(0)
}

func (m *MockDriver) Clear(ctx context.Context, xpath string) error {
	return m.Called(ctx, xpath).Error(0)
}

func (m *MockDriver) Count(ctx context.Context, xpath string) (int, error) {
	args := m.Called(ctx, xpath)
	return args.Int(0), args.Error(1)
}

func (m *MockDriver) Texts(ctx context.Context, xpath string) ([]string, error) {
	args := m.Called(ctx, xpath)
	if texts := args.Get(0); texts != nil {
		return texts.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) ScrollIntoView(ctx context.Context, xpath string) error {
	return m.Called(ctx, xpath).Error(0)
}

func (m *MockDriver) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if shot := args.Get(0); shot != nil {
		return shot.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) Back(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) Close() error {
	return m.Called().Error(0)
}

// -- Learning Store Mock --

// MockStore mocks learning.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ReadAll(ctx context.Context) ([]learning.Record, error) {
	args := m.Called(ctx)
	if records := args.Get(0); records != nil {
		return records.([]learning.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Append(ctx context.Context, r learning.Record) (int, error) {
	args := m.Called(ctx, r)
	return args.Int(0), args.Error(1)
}

var (
	_ config.Interface  = (*MockConfig)(nil)
	_ schemas.LLMClient = (*MockLLMClient)(nil)
	_ oracle.Oracle     = (*MockOracle)(nil)
	_ schemas.Driver    = (*MockDriver)(nil)
	_ learning.Store    = (*MockStore)(nil)
)
