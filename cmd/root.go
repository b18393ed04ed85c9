// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/pilot/internal/config"
	"github.com/xkilldash9x/pilot/internal/observability"
)

type contextKey string

// configKey holds the validated *config.Config in a command's context.
const configKey contextKey = "config"

// flagKeyPrefix marks command annotations that map a flag onto a viper key.
const flagKeyPrefix = "viper-key:"

// Execute builds the command tree and runs it with ctx, which main makes
// signal-aware.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Debug("Command execution failed", zap.Error(err))
		}
	}
	observability.Sync()
	return err
}

// NewRootCommand returns a fresh command tree wired to production providers.
func NewRootCommand() *cobra.Command {
	return newRootCmd(defaultProviders())
}

func newRootCmd(p providers) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "pilot",
		Short:         "Pilot drives plain-language UI tasks through a catalog of page agents.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			// Logs go to stderr so reports on stdout stay machine readable.
			observability.Initialize(cfg.Logger(), zapcore.Lock(os.Stderr))
			observability.GetLogger().Debug("Starting pilot",
				zap.String("version", Version), zap.String("command", cmd.Name()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd(p))
	rootCmd.AddCommand(newSuiteCmd(p))
	rootCmd.AddCommand(newAgentsCmd())
	rootCmd.AddCommand(newLearningsCmd(p))
	return rootCmd
}

// initializeConfig reads the config file and PILOT_* environment variables
// into v, then binds the command's annotated flags over them.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return bindFlags(cmd, v)
}

// bindFlag records that flag overrides the viper key.
func bindFlag(cmd *cobra.Command, flag, key string) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[flagKeyPrefix+flag] = key
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	names := make([]string, 0, len(cmd.Annotations))
	for name := range cmd.Annotations {
		if strings.HasPrefix(name, flagKeyPrefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		flag := strings.TrimPrefix(name, flagKeyPrefix)
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("flag --%s is bound but not defined", flag)
		}
		if err := v.BindPFlag(cmd.Annotations[name], f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// configFrom returns the config stored by the root command.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
