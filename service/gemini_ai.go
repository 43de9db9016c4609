package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiEmbeddingModel = "text-embedding-004"
	// geminiMaxEmbedBatch is the API limit for BatchEmbedContents.
	geminiMaxEmbedBatch = 100
)

// GeminiService uses the Gemini API. Requests failing with the current API
// key are retried once with the next configured key.
type GeminiService struct {
	apiKeys        []string
	modelName      string
	embeddingModel string

	mu         sync.Mutex
	currentKey int
	client     *genai.Client
}

func NewGeminiService(apiKeys []string, modelName, embeddingModel string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}
	if embeddingModel == "" {
		embeddingModel = DefaultGeminiEmbeddingModel
	}

	service := &GeminiService{
		apiKeys:        apiKeys,
		modelName:      modelName,
		embeddingModel: embeddingModel,
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKeys[0]))
	if err != nil {
		return nil, err
	}
	service.client = client
	return service, nil
}

func (s *GeminiService) currentClient() *genai.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// rotateAPIKey switches to the next key unless another caller already
// rotated away from failed.
func (s *GeminiService) rotateAPIKey(failed *genai.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != failed {
		return nil
	}

	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	old := s.client
	s.client = client
	return old.Close()
}

func (s *GeminiService) withRotation(call func(client *genai.Client) error) error {
	client := s.currentClient()
	err := call(client)
	if err == nil || len(s.apiKeys) < 2 {
		return err
	}
	if rotateErr := s.rotateAPIKey(client); rotateErr != nil {
		return fmt.Errorf("%w (rotating API key: %v)", err, rotateErr)
	}
	return call(s.currentClient())
}

func (s *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	var resp *genai.GenerateContentResponse
	err := s.withRotation(func(client *genai.Client) error {
		model := client.GenerativeModel(s.modelName)
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(SystemMessageDocumentAssistant.Content)},
		}
		var err error
		resp, err = model.GenerateContent(ctx, genai.Text(prompt))
		return err
	})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("no response generated")
	}

	var content strings.Builder
	if cand := resp.Candidates[0]; cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				content.WriteString(string(text))
			}
		}
	}
	return content.String(), nil
}

func (s *GeminiService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for from := 0; from < len(texts); from += geminiMaxEmbedBatch {
		to := min(from+geminiMaxEmbedBatch, len(texts))

		var resp *genai.BatchEmbedContentsResponse
		err := s.withRotation(func(client *genai.Client) error {
			em := client.EmbeddingModel(s.embeddingModel)
			batch := em.NewBatch()
			for _, text := range texts[from:to] {
				batch.AddContent(genai.Text(text))
			}
			var err error
			resp, err = em.BatchEmbedContents(ctx, batch)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != to-from {
			return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), to-from)
		}
		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Values)
		}
	}
	return vectors, nil
}

func (s *GeminiService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Close()
}
