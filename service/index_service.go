package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tieubaoca/docqa/database"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultEmbeddingBatchSize = 64

// IndexService embeds chunks and builds a VectorIndex over them.
type IndexService struct {
	embedder  Embedder
	backend   database.IndexBackend
	batchSize int
	logger    *zap.Logger
}

func NewIndexService(embedder Embedder, backend database.IndexBackend, batchSize int, logger *zap.Logger) *IndexService {
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	return &IndexService{
		embedder:  embedder,
		backend:   backend,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Build is atomic: either every non-blank chunk is embedded and indexed, or
// an error is returned and no index exists.
func (s *IndexService) Build(ctx context.Context, chunks []types.Chunk) (database.VectorIndex, error) {
	start := time.Now()
	usable := FilterBlankChunks(chunks)
	if len(usable) == 0 {
		return nil, &types.EmptyInputError{Reason: types.EmptyNoText}
	}
	s.logger.Info("Starting vector index creation",
		zap.String("backend", s.backend.Name()),
		zap.Int("chunks", len(usable)),
	)

	vectors := make([][]float32, 0, len(usable))
	for from := 0; from < len(usable); from += s.batchSize {
		to := from + s.batchSize
		if to > len(usable) {
			to = len(usable)
		}
		texts := make([]string, 0, to-from)
		for _, c := range usable[from:to] {
			texts = append(texts, c.Content)
		}
		batch, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, &types.EmbeddingError{Stage: fmt.Sprintf("chunks %d-%d", from, to), Err: err}
		}
		if len(batch) != len(texts) {
			return nil, &types.EmbeddingError{
				Stage: fmt.Sprintf("chunks %d-%d", from, to),
				Err:   fmt.Errorf("got %d vectors for %d texts", len(batch), len(texts)),
			}
		}
		vectors = append(vectors, batch...)
	}

	index, err := s.backend.NewIndex(ctx, usable, vectors)
	if err != nil {
		return nil, &types.IndexError{Stage: "build", Err: err}
	}
	s.logger.Info("Completed vector index creation",
		zap.String("backend", s.backend.Name()),
		zap.Int("chunks", index.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return index, nil
}

// FilterBlankChunks drops chunks whose content is empty or whitespace only.
func FilterBlankChunks(chunks []types.Chunk) []types.Chunk {
	out := make([]types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) != "" {
			out = append(out, c)
		}
	}
	return out
}

// RateLimitedEmbedder throttles calls to an Embedder with a token bucket.
type RateLimitedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
}

func NewRateLimitedEmbedder(inner Embedder, requestsPerSecond float64, burst int) *RateLimitedEmbedder {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (e *RateLimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.inner.Embed(ctx, texts)
}
