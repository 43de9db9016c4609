package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/tieubaoca/docqa/config"
	"github.com/tieubaoca/docqa/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

const BATCH_SIZE = 200

// CHUNK_CLASS_PREFIX prefixes the per-index Weaviate class name.
const CHUNK_CLASS_PREFIX = "DocqaChunks"

func chunkClassObject(name string) *models.Class {
	return &models.Class{
		Class:      name,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "document", DataType: []string{"text"}},
			{Name: "position", DataType: []string{"int"}},
			{Name: "seq", DataType: []string{"int"}},
		},
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
	}
}

// WeaviateStore builds indexes stored in a Weaviate instance, one class per index.
type WeaviateStore struct {
	client *weaviate.Client
	logger *zap.Logger
}

func NewWeaviateStore(ctx context.Context, cfg config.WeaviateStoreConfig, logger *zap.Logger) (*WeaviateStore, error) {
	var scheme string
	if strings.HasPrefix(cfg.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(cfg.Host, scheme+"://")
	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{
			Value: cfg.APIKey,
		}
		wcfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     cfg.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	ready, err := client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reach weaviate at %s: %w", cfg.Host, err)
	}
	if !ready {
		return nil, fmt.Errorf("weaviate at %s is not ready", cfg.Host)
	}
	return &WeaviateStore{client: client, logger: logger}, nil
}

func (s *WeaviateStore) Name() string { return "weaviate" }

// NewIndex creates a fresh class and batch-inserts the chunks with their
// vectors. On failure the class is dropped so no partial index survives.
func (s *WeaviateStore) NewIndex(ctx context.Context, chunks []types.Chunk, vectors [][]float32) (VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks to index")
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	className := CHUNK_CLASS_PREFIX + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.client.Schema().ClassCreator().WithClass(chunkClassObject(className)).Do(ctx); err != nil {
		return nil, fmt.Errorf("failed to create class %s: %w", className, err)
	}
	if err := s.batchInsert(ctx, className, chunks, vectors); err != nil {
		if derr := s.deleteClass(context.WithoutCancel(ctx), className); derr != nil {
			s.logger.Warn("failed to drop partial weaviate class", zap.String("class", className), zap.Error(derr))
		}
		return nil, err
	}
	return &WeaviateIndex{
		store:     s,
		className: className,
		size:      len(chunks),
		dimension: len(vectors[0]),
	}, nil
}

func (s *WeaviateStore) batchInsert(ctx context.Context, className string, chunks []types.Chunk, vectors [][]float32) error {
	total := len(chunks)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			batcher = batcher.WithObjects(&models.Object{
				Class: className,
				Properties: map[string]interface{}{
					"content":  chunks[j].Content,
					"document": chunks[j].Document,
					"position": chunks[j].Position,
					"seq":      j,
				},
				Vector: vectors[j],
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %w", i, end, err)
		}
		for _, r := range resp {
			if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
				return fmt.Errorf("failed to insert batch %d-%d: %s", i, end, r.Result.Errors.Error[0].Message)
			}
		}
		s.logger.Debug("inserted chunk batch",
			zap.String("class", className),
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int("total", total),
		)
	}
	return nil
}

func (s *WeaviateStore) deleteClass(ctx context.Context, className string) error {
	return s.client.Schema().ClassDeleter().WithClassName(className).Do(ctx)
}

// WeaviateIndex is a VectorIndex backed by one Weaviate class.
type WeaviateIndex struct {
	store     *WeaviateStore
	className string
	size      int
	dimension int
}

func (idx *WeaviateIndex) Retrieve(ctx context.Context, query []float32, k int) ([]types.ScoredChunk, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(query), idx.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "document"},
		{Name: "position"},
		{Name: "seq"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}
	nearVector := idx.store.client.GraphQL().NearVectorArgBuilder().WithVector(query)
	result, err := idx.store.client.GraphQL().Get().
		WithClassName(idx.className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search failed: %s", result.Errors[0].Message)
	}

	type hit struct {
		scored types.ScoredChunk
		seq    int
	}
	var hits []hit
	get, _ := result.Data["Get"].(map[string]interface{})
	items, _ := get[idx.className].([]interface{})
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		h := hit{
			scored: types.ScoredChunk{
				Chunk: types.Chunk{
					Content:  parseString(obj["content"]),
					Document: parseString(obj["document"]),
					Position: int(parseFloat(obj["position"])),
				},
			},
			seq: int(parseFloat(obj["seq"])),
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			// cosine distance in [0, 2]
			h.scored.Score = 1 - parseFloat(additional["distance"])
		}
		hits = append(hits, h)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].scored.Score != hits[j].scored.Score {
			return hits[i].scored.Score > hits[j].scored.Score
		}
		return hits[i].seq < hits[j].seq
	})
	out := make([]types.ScoredChunk, len(hits))
	for i := range hits {
		out[i] = hits[i].scored
	}
	return out, nil
}

func (idx *WeaviateIndex) Len() int { return idx.size }

func (idx *WeaviateIndex) Close(ctx context.Context) error {
	return idx.store.deleteClass(ctx, idx.className)
}

// Helper functions
func parseString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func parseFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
