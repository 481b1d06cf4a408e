package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider talks to OpenRouter's OpenAI-compatible chat API.
type OpenRouterProvider struct {
	client *openai.Client
	model  string
	logger *utils.Logger
}

func NewOpenRouterProvider(apiKey, model, baseURL string, logger *utils.Logger) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &http.Client{
		Timeout:   60 * time.Second,
		Transport: titleTransport{base: http.DefaultTransport},
	}

	return &OpenRouterProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

// titleTransport sets the app name OpenRouter shows on its dashboard.
type titleTransport struct {
	base http.RoundTripper
}

func (t titleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Title", "LegalEase API")
	return t.base.RoundTrip(req)
}

func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

func (p *OpenRouterProvider) Model() string {
	return p.model
}

func (p *OpenRouterProvider) Generate(ctx context.Context, prompt string) Outcome {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: generationTemperature,
		TopP:        generationTopP,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		kind := classifyOpenAIError(err)
		p.logger.Error("OpenRouter API error", "error", err, "kind", kind)
		return ProviderError(kind, fmt.Errorf("openrouter chat completion: %w", err))
	}

	if len(resp.Choices) == 0 {
		return Empty()
	}

	content := trimFence(resp.Choices[0].Message.Content)
	if content == "" {
		return Empty()
	}
	return Success(content)
}

func classifyOpenAIError(err error) FailureKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return classifyHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return classifyHTTPStatus(reqErr.HTTPStatusCode)
	}
	return FailureTransient
}
