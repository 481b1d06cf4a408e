package analyzer

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/BerylCAtieno/legalease-api/internal/utils"
)

const (
	generationTemperature = 0.2
	generationTopP        = 0.8
	generationTopK        = 40
	generationMaxTokens   = 2048
)

// VertexProvider calls a Gemini model on Vertex AI.
type VertexProvider struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *utils.Logger
}

func NewVertexProvider(ctx context.Context, projectID, location, modelName string, logger *utils.Logger) (*VertexProvider, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("NewVertexProvider: projectID and location cannot be empty")
	}

	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](generationTemperature),
		TopP:            genai.Ptr[float32](generationTopP),
		TopK:            genai.Ptr[int32](generationTopK),
		MaxOutputTokens: genai.Ptr[int32](generationMaxTokens),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
	}

	logger.Info("Vertex AI provider initialized", "model", modelName, "location", location)
	return &VertexProvider{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (p *VertexProvider) Name() string {
	return "vertexai"
}

func (p *VertexProvider) Model() string {
	return p.modelName
}

func (p *VertexProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *VertexProvider) Generate(ctx context.Context, prompt string) Outcome {
	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ProviderError(ClassifyError(err), err)
	}
	return collapseResponse(resp)
}

// collapseResponse reads the first candidate's text parts. A blocked prompt or
// a candidate without text is Empty.
func collapseResponse(resp *genai.GenerateContentResponse) Outcome {
	if resp == nil || len(resp.Candidates) == 0 {
		return Empty()
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return Empty()
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	text := trimFence(b.String())
	if text == "" {
		return Empty()
	}
	return Success(text)
}
