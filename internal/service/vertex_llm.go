package service

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// VertexLLM implements the LLM interface using Google's Vertex AI
type VertexLLM struct {
	client *genai.Client
	model  string
}

// NewVertexLLM creates a new Vertex AI LLM client. An empty o.Model selects
// gemini-2.0-flash-lite-001.
func NewVertexLLM(ctx context.Context, o VertexOptions) (*VertexLLM, error) {
	if o.ProjectID == "" {
		return nil, fmt.Errorf("GCP project id is required for Vertex AI")
	}
	if o.Location == "" {
		o.Location = "us-central1"
	}
	if o.Model == "" {
		o.Model = "gemini-2.0-flash-lite-001"
	}

	client, err := genai.NewClient(ctx, o.ProjectID, o.Location, o.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	return &VertexLLM{client: client, model: o.Model}, nil
}

// GenerateResponse generates a response using the Vertex AI model
func (l *VertexLLM) GenerateResponse(ctx context.Context, p Prompt) (string, error) {
	model := l.client.GenerativeModel(l.model)
	model.SetTemperature(p.Temperature)
	if p.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.MaxTokens))
	}
	if p.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(p.User))
	if err != nil {
		if strings.Contains(err.Error(), "PermissionDenied") {
			return "", fmt.Errorf("%w: %v", models.ErrAccessDenied, err)
		}
		return "", fmt.Errorf("%w: %v", models.ErrLLMUnavailable, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no response generated", models.ErrMalformedOutput)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close closes the Vertex AI client
func (l *VertexLLM) Close() error {
	return l.client.Close()
}
