package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahmednasr/mapping-assistant/internal/models"
)

// OpenAILLM talks to any OpenAI-compatible chat endpoint: Databricks model
// serving (BaseURL https://<workspace>/serving-endpoints), LM Studio or OpenAI.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewOpenAILLM creates a chat client for model at baseURL.
func NewOpenAILLM(token, baseURL, model string) (*OpenAILLM, error) {
	if token == "" {
		return nil, errors.New("an API token is required for the LLM endpoint")
	}
	if model == "" {
		return nil, errors.New("an LLM model name is required")
	}
	cfg := openai.DefaultConfig(token)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAILLM{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// GenerateResponse sends one system+user exchange and returns the reply text.
func (l *OpenAILLM) GenerateResponse(ctx context.Context, p Prompt) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if p.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    msgs,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", classifyLLMError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", models.ErrMalformedOutput)
	}
	return messageText(resp.Choices[0].Message), nil
}

// messageText returns the content string, or the first text part when the
// endpoint answers with a list of content parts.
func messageText(m openai.ChatCompletionMessage) string {
	if m.Content != "" {
		return m.Content
	}
	for _, part := range m.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText {
			return part.Text
		}
	}
	return ""
}

// classifyLLMError maps a transport error onto ErrAccessDenied (HTTP 403 or a
// Databricks IP access list rejection) or ErrLLMUnavailable.
func classifyLLMError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusForbidden || strings.Contains(err.Error(), "blocked by Databricks IP ACL") || strings.Contains(err.Error(), "403") {
		return fmt.Errorf("%w: %v", models.ErrAccessDenied, err)
	}
	return fmt.Errorf("%w: %v", models.ErrLLMUnavailable, err)
}
