package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
)

// NewClient builds the fast and powerful tier clients named by cfg and wraps
// them in a router.
func NewClient(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	fast, err := newModelClient(ctx, cfg, cfg.DefaultFastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("fast tier: %w", err)
	}
	powerful, err := newModelClient(ctx, cfg, cfg.DefaultPowerfulModel, logger)
	if err != nil {
		return nil, fmt.Errorf("powerful tier: %w", err)
	}
	return NewLLMRouter(logger, fast, powerful)
}

func newModelClient(ctx context.Context, cfg config.LLMRouterConfig, name string, logger *zap.Logger) (schemas.LLMClient, error) {
	modelCfg, ok := cfg.Models[name]
	if !ok {
		return nil, fmt.Errorf("model %q is not configured", name)
	}

	switch modelCfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(modelCfg, logger)
	case config.ProviderVertex:
		return NewVertexClient(ctx, modelCfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			modelCfg.Provider, config.ProviderGemini, config.ProviderVertex)
	}
}
