package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pilot/api/schemas"
)

type fakeGenerator struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	resp        *genai.GenerateContentResponse
	err         error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = cfg
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, TotalTokenCount: 12},
	}
}

func TestVertexGenerate(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse(`{"value": "Half Day Trip"}`)}
	cfg := getValidLLMConfig()
	cfg.MaxTokens = 512
	client := newVertexClient(fake, cfg, setupTestLogger(t))

	req := schemas.GenerationRequest{
		SystemPrompt: "pick the closest line",
		UserPrompt:   "Half Day",
		Image:        []byte("png-bytes"),
		Options:      schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true},
	}
	got, err := client.Generate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, `{"value": "Half Day Trip"}`, got)
	assert.Equal(t, "test-model", fake.gotModel)
	require.Len(t, fake.gotContents, 1)
	require.Len(t, fake.gotContents[0].Parts, 2)
	assert.Equal(t, "Half Day", fake.gotContents[0].Parts[0].Text)
	require.NotNil(t, fake.gotContents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", fake.gotContents[0].Parts[1].InlineData.MIMEType)

	assert.Equal(t, "application/json", fake.gotConfig.ResponseMIMEType)
	assert.Equal(t, float32(0.2), *fake.gotConfig.Temperature)
	assert.Equal(t, int32(512), fake.gotConfig.MaxOutputTokens)
	require.NotNil(t, fake.gotConfig.SystemInstruction)
}

func TestVertexGenerate_Errors(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		client := newVertexClient(&fakeGenerator{err: errors.New("permission denied")}, getValidLLMConfig(), setupTestLogger(t))
		_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		assert.ErrorContains(t, err, "permission denied")
	})

	t.Run("empty", func(t *testing.T) {
		client := newVertexClient(&fakeGenerator{resp: &genai.GenerateContentResponse{}}, getValidLLMConfig(), setupTestLogger(t))
		_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		assert.ErrorContains(t, err, "empty response")
	})
}
