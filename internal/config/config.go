// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	LLM() LLMRouterConfig
	Oracle() OracleConfig
	Run() RunConfig
	Resolver() ResolverConfig
	Learning() LearningConfig
	TestData() TestDataConfig
	Browser() BrowserConfig

	// Run Setters (driven by CLI flags)
	SetRunChannel(string)
	SetRunPageRef(string)
	SetRunURL(string)
	SetRunDryRun(bool)
	SetRunExactMatch(bool)

	// Browser Setters
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	LLMCfg      LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
	OracleCfg   OracleConfig    `mapstructure:"oracle" yaml:"oracle"`
	RunCfg      RunConfig       `mapstructure:"run" yaml:"run"`
	ResolverCfg ResolverConfig  `mapstructure:"resolver" yaml:"resolver"`
	LearningCfg LearningConfig  `mapstructure:"learning" yaml:"learning"`
	TestDataCfg TestDataConfig  `mapstructure:"test_data" yaml:"test_data"`
	BrowserCfg  BrowserConfig   `mapstructure:"browser" yaml:"browser"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) LLM() LLMRouterConfig     { return c.LLMCfg }
func (c *Config) Oracle() OracleConfig     { return c.OracleCfg }
func (c *Config) Run() RunConfig           { return c.RunCfg }
func (c *Config) Resolver() ResolverConfig { return c.ResolverCfg }
func (c *Config) Learning() LearningConfig { return c.LearningCfg }
func (c *Config) TestData() TestDataConfig { return c.TestDataCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetRunChannel(ch string)  { c.RunCfg.Channel = ch }
func (c *Config) SetRunPageRef(ref string) { c.RunCfg.PageRef = ref }
func (c *Config) SetRunURL(u string)       { c.RunCfg.URL = u }
func (c *Config) SetRunDryRun(b bool)      { c.RunCfg.DryRun = b }
func (c *Config) SetRunExactMatch(b bool)  { c.RunCfg.ExactMatch = b }

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider identifies the backend serving a model.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	// ProviderVertex routes through the genai SDK against Vertex AI.
	ProviderVertex LLMProvider = "vertex"
)

// LLMRouterConfig maps the fast and powerful tiers onto configured models.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig holds the connection and sampling settings for one model.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	Project       string            `mapstructure:"project" yaml:"project"`
	Location      string            `mapstructure:"location" yaml:"location"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// OracleConfig controls how decision requests are issued.
type OracleConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
}

// RunConfig describes a single task run.
type RunConfig struct {
	// Channel is the platform the catalog is filtered by (mweb, dweb, android, ios).
	Channel string `mapstructure:"channel" yaml:"channel"`
	// PageRef is the page the run starts on.
	PageRef    string `mapstructure:"page_ref" yaml:"page_ref"`
	URL        string `mapstructure:"url" yaml:"url"`
	ExactMatch bool   `mapstructure:"exact_match" yaml:"exact_match"`
	DryRun     bool   `mapstructure:"dry_run" yaml:"dry_run"`
	MaxCycles  int    `mapstructure:"max_cycles" yaml:"max_cycles"`
}

// ResolverConfig paces locator probing.
type ResolverConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// LearningConfig selects where learning records persist.
type LearningConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	CSVPath  string         `mapstructure:"csv_path" yaml:"csv_path"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds the connection string for the SQL learning store.
type PostgresConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// TestDataConfig points at the directory of {channel}_test_data.yaml files.
type TestDataConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// BrowserConfig holds settings for the live chromedp driver.
type BrowserConfig struct {
	Headless      bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath      string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args          []string       `mapstructure:"args" yaml:"args"`
	Viewport      map[string]int `mapstructure:"viewport" yaml:"viewport"`
	ActionTimeout time.Duration  `mapstructure:"action_timeout" yaml:"action_timeout"`
	// StaticHTML, when set, replaces the live browser with an offline document driver.
	StaticHTML string `mapstructure:"static_html" yaml:"static_html"`
}

const (
	LearningBackendCSV      = "csv"
	LearningBackendPostgres = "postgres"
)

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters in Viper.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot")
	v.SetDefault("logger.log_file", "pilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- LLM --
	// Model keys must not contain dots; viper splits keys on them.
	v.SetDefault("llm.default_fast_model", "flash")
	v.SetDefault("llm.default_powerful_model", "pro")
	v.SetDefault("llm.models.flash.provider", string(ProviderGemini))
	v.SetDefault("llm.models.flash.model", "gemini-2.5-flash")
	v.SetDefault("llm.models.flash.api_timeout", "90s")
	v.SetDefault("llm.models.pro.provider", string(ProviderGemini))
	v.SetDefault("llm.models.pro.model", "gemini-2.5-pro")
	v.SetDefault("llm.models.pro.api_timeout", "3m")

	// -- Oracle --
	v.SetDefault("oracle.timeout", "2m")
	v.SetDefault("oracle.temperature", 0.1)

	// -- Run --
	v.SetDefault("run.channel", "mweb")
	v.SetDefault("run.page_ref", "home_page")
	v.SetDefault("run.exact_match", false)
	v.SetDefault("run.dry_run", false)
	v.SetDefault("run.max_cycles", 40)

	// -- Resolver --
	v.SetDefault("resolver.timeout", "30s")
	v.SetDefault("resolver.poll_interval", "500ms")

	// -- Learning --
	v.SetDefault("learning.backend", LearningBackendCSV)
	v.SetDefault("learning.csv_path", "learner.csv")

	// -- Test data --
	v.SetDefault("test_data.dir", "testdata/configs")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.action_timeout", "30s")
	v.SetDefault("browser.viewport", map[string]int{"width": 412, "height": 915})
}

// NewConfigFromViper creates a new Config instance by unmarshaling from a pre-configured Viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are never expected in the config file.
	v.BindEnv("learning.postgres.url", "PILOT_LEARNING_POSTGRES_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if key := os.Getenv("PILOT_LLM_API_KEY"); key != "" {
		for name, m := range cfg.LLMCfg.Models {
			if m.APIKey == "" {
				m.APIKey = key
				cfg.LLMCfg.Models[name] = m
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for logical errors and expands file paths.
func (c *Config) Validate() error {
	switch c.RunCfg.Channel {
	case "mweb", "dweb", "android", "ios":
	default:
		return fmt.Errorf("run.channel must be one of mweb, dweb, android, ios; got %q", c.RunCfg.Channel)
	}
	if c.RunCfg.MaxCycles <= 0 {
		return fmt.Errorf("run.max_cycles must be a positive integer")
	}
	if c.ResolverCfg.Timeout <= 0 || c.ResolverCfg.PollInterval <= 0 {
		return fmt.Errorf("resolver.timeout and resolver.poll_interval must be positive")
	}
	if c.ResolverCfg.PollInterval > c.ResolverCfg.Timeout {
		return fmt.Errorf("resolver.poll_interval (%s) exceeds resolver.timeout (%s)", c.ResolverCfg.PollInterval, c.ResolverCfg.Timeout)
	}

	switch strings.ToLower(c.LearningCfg.Backend) {
	case LearningBackendCSV:
		if c.LearningCfg.CSVPath == "" {
			return fmt.Errorf("learning.csv_path is required for the csv backend")
		}
		expanded, err := homedir.Expand(c.LearningCfg.CSVPath)
		if err != nil {
			return fmt.Errorf("failed to expand learning.csv_path: %w", err)
		}
		c.LearningCfg.CSVPath = expanded
	case LearningBackendPostgres:
		if c.LearningCfg.Postgres.URL == "" {
			return fmt.Errorf("learning.postgres.url is required for the postgres backend (set PILOT_LEARNING_POSTGRES_URL)")
		}
	default:
		return fmt.Errorf("learning.backend must be csv or postgres; got %q", c.LearningCfg.Backend)
	}

	if c.TestDataCfg.Dir != "" {
		expanded, err := homedir.Expand(c.TestDataCfg.Dir)
		if err != nil {
			return fmt.Errorf("failed to expand test_data.dir: %w", err)
		}
		c.TestDataCfg.Dir = expanded
	}

	if c.LLMCfg.DefaultFastModel == "" || c.LLMCfg.DefaultPowerfulModel == "" {
		return fmt.Errorf("llm.default_fast_model and llm.default_powerful_model are required")
	}
	for _, name := range []string{c.LLMCfg.DefaultFastModel, c.LLMCfg.DefaultPowerfulModel} {
		if _, ok := c.LLMCfg.Models[name]; !ok {
			return fmt.Errorf("llm.models has no entry for %q", name)
		}
	}
	return nil
}
