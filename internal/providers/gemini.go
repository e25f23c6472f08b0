package providers

import (
	"context"
	"fmt"
	"strings"

	"doc-extractor/internal/domain"

	"cloud.google.com/go/vertexai/genai"
)

// visionTemperature keeps transcription near-deterministic.
const visionTemperature = 0.1

// GeminiVision is the vision-language model used for both whole-page
// transcription and per-block region refinement.
type GeminiVision struct {
	client    *genai.Client
	modelName string
	logger    domain.Logger
}

// NewGeminiVision creates a Vertex AI Gemini client.
func NewGeminiVision(ctx context.Context, projectID, location, modelName string, logger domain.Logger) (*GeminiVision, error) {
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}
	return &GeminiVision{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Transcribe answers a prompt about a single image and returns the model's
// text. Throttling responses are tagged rate-limited for the scheduler.
func (g *GeminiVision) Transcribe(ctx context.Context, prompt string, image []byte) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(visionTemperature)

	resp, err := model.GenerateContent(ctx,
		genai.ImageData("png", image),
		genai.Text(prompt),
	)
	if err != nil {
		return "", &domain.ProviderError{
			Provider:    "gemini",
			RateLimited: isVertexRateLimit(err),
			Err:         err,
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &domain.ProviderError{Provider: "gemini", Err: fmt.Errorf("empty response from model")}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

// isVertexRateLimit matches the SDK's throttling errors, which surface as
// gRPC ResourceExhausted or HTTP 429 depending on transport.
func isVertexRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resourceexhausted") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota")
}
