package service

import "context"

// Prompt is a single-turn request to a language model.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int // 0 leaves the provider default
}

// LLM defines the interface for language model interactions
type LLM interface {
	GenerateResponse(ctx context.Context, p Prompt) (string, error)
}
