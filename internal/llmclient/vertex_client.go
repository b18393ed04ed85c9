package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/config"
)

// contentGenerator is the slice of the genai Models service the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// VertexClient implements schemas.LLMClient through the genai SDK on Vertex AI.
type VertexClient struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	config  config.LLMModelConfig
	logger  *zap.Logger
}

// NewVertexClient connects to Vertex AI using application default credentials.
func NewVertexClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*VertexClient, error) {
	if cfg.Project == "" || cfg.Location == "" {
		return nil, fmt.Errorf("vertex provider requires project and location")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newVertexClient(client.Models, cfg, logger), nil
}

func newVertexClient(models contentGenerator, cfg config.LLMModelConfig, logger *zap.Logger) *VertexClient {
	return &VertexClient{
		models:  models,
		model:   cfg.Model,
		timeout: cfg.APITimeout,
		config:  cfg,
		logger:  logger.Named("llm_client.vertex"),
	}
}

// Generate issues a single GenerateContent call.
func (c *VertexClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parts := []*genai.Part{genai.NewPartFromText(req.UserPrompt)}
	if len(req.Image) > 0 {
		mime := req.ImageMIMEType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image, mime))
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		c.buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("vertex returned an empty response")
	}

	fields := []zap.Field{zap.Duration("duration", time.Since(start))}
	if usage := resp.UsageMetadata; usage != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", usage.PromptTokenCount),
			zap.Int32("completion_tokens", usage.CandidatesTokenCount),
			zap.Int32("total_tokens", usage.TotalTokenCount))
	}
	c.logger.Debug("LLM generation complete (Vertex)", fields...)
	return text, nil
}

func (c *VertexClient) buildConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Options.Temperature),
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		gc.ResponseMIMEType = "application/json"
	}
	if c.config.TopP > 0 {
		gc.TopP = genai.Ptr(c.config.TopP)
	}
	if c.config.TopK > 0 {
		gc.TopK = genai.Ptr(float32(c.config.TopK))
	}
	if c.config.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	return gc
}

// Close is a no-op; the genai client has no teardown.
func (c *VertexClient) Close() error { return nil }
