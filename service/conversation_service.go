package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tieubaoca/docqa/database"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
)

const DefaultTopK = 4

// ConversationService answers questions grounded in a VectorIndex and the
// prior turns of a conversation.
type ConversationService struct {
	embedder         Embedder
	generator        Generator
	topK             int
	condenseQuestion bool
	logger           *zap.Logger
}

func NewConversationService(embedder Embedder, generator Generator, topK int, condenseQuestion bool, logger *zap.Logger) *ConversationService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &ConversationService{
		embedder:         embedder,
		generator:        generator,
		topK:             topK,
		condenseQuestion: condenseQuestion,
		logger:           logger,
	}
}

// Answer returns the answer and the state extended by the user question and
// the assistant answer. On any error the returned state is the input state.
func (s *ConversationService) Answer(ctx context.Context, state types.ConversationState, index database.VectorIndex, question string) (string, types.ConversationState, error) {
	if index == nil {
		return "", state, types.ErrNotReady
	}
	if strings.TrimSpace(question) == "" {
		return "", state, types.ErrInvalidQuestion
	}
	start := time.Now()
	history := state.Turns()

	query := question
	if s.condenseQuestion && len(history) > 0 {
		standalone, err := s.generator.Generate(ctx, buildCondensePrompt(history, question))
		if err != nil {
			return "", state, &types.GenerationError{Stage: "condense question", Err: err}
		}
		if standalone = strings.TrimSpace(standalone); standalone != "" {
			query = standalone
		}
	}

	hits, err := s.Retrieve(ctx, index, query, s.topK)
	if err != nil {
		return "", state, err
	}

	answer, err := s.generator.Generate(ctx, buildAnswerPrompt(hits, history, question))
	if err != nil {
		return "", state, &types.GenerationError{Stage: "answer", Err: err}
	}
	answer = strings.TrimSpace(answer)

	s.logger.Info("Answered question",
		zap.Int("context_chunks", len(hits)),
		zap.Int("history_turns", len(history)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return answer, state.Append(types.UserTurn(question), types.AssistantTurn(answer)), nil
}

// Retrieve embeds query and returns the top-k chunks of index. A k of zero
// or less uses the configured top-k.
func (s *ConversationService) Retrieve(ctx context.Context, index database.VectorIndex, query string, k int) ([]types.ScoredChunk, error) {
	if index == nil {
		return nil, types.ErrNotReady
	}
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrInvalidQuestion
	}
	if k <= 0 {
		k = s.topK
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, &types.EmbeddingError{Stage: "question", Err: err}
	}
	if len(vectors) != 1 {
		return nil, &types.EmbeddingError{Stage: "question", Err: fmt.Errorf("got %d vectors for 1 text", len(vectors))}
	}
	hits, err := index.Retrieve(ctx, vectors[0], k)
	if err != nil {
		return nil, &types.IndexError{Stage: "retrieve", Err: err}
	}
	return hits, nil
}

func buildCondensePrompt(history []types.Turn, question string) string {
	var b strings.Builder
	b.WriteString("Rewrite the follow-up question below as a single standalone question that can be understood without the conversation. Keep the language of the question. Reply with the question only.\n\n")
	b.WriteString("Conversation:\n")
	writeHistory(&b, history)
	b.WriteString("\nFollow-up question: ")
	b.WriteString(question)
	b.WriteString("\nStandalone question:")
	return b.String()
}

func buildAnswerPrompt(hits []types.ScoredChunk, history []types.Turn, question string) string {
	var b strings.Builder
	b.WriteString("Answer the question using the document excerpts below. If the excerpts do not contain the answer, say that you don't know instead of making one up.\n\n")
	b.WriteString("Document excerpts:\n")
	for i, hit := range hits {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, hit.Chunk.Content)
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		writeHistory(&b, history)
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

func writeHistory(b *strings.Builder, history []types.Turn) {
	for _, turn := range history {
		switch turn.Role {
		case types.RoleUser:
			b.WriteString("User: ")
		case types.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
}
