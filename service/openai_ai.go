package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIEmbeddingModel = string(openai.SmallEmbedding3)

var (
	SystemMessageDocumentAssistant = openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: "You are a helpful assistant answering questions about documents uploaded by the user. Answer only from the provided excerpts and conversation. If the excerpts do not contain the answer, say that you don't know.",
	}
)

// OpenAIService talks to the OpenAI API or to any server exposing the same
// protocol, such as a local LLM server.
type OpenAIService struct {
	client         *openai.Client
	model          string
	embeddingModel string
}

func NewOpenAIService(baseURL string, apiKey, model, embeddingModel string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if embeddingModel == "" {
		embeddingModel = DefaultOpenAIEmbeddingModel
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIService{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
	}
}

func (s *OpenAIService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Messages: []openai.ChatCompletionMessage{
				SystemMessageDocumentAssistant,
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Model: s.model,
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response generated")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *OpenAIService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(s.embeddingModel),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (s *OpenAIService) Close() error {
	return nil
}
