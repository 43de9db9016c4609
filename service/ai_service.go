package service

import (
	"context"
)

// Generator produces a completion for a self-contained prompt. Calls are
// stateless: conversational context must be part of the prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder maps texts to vectors, one per input in the same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// AIService is a provider offering both capabilities.
type AIService interface {
	Generator
	Embedder
	Close() error
}
