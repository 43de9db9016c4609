package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tieubaoca/docqa/types"
)

// MemoryBackend builds indexes held in process memory.
type MemoryBackend struct{}

func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{} }

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) NewIndex(_ context.Context, chunks []types.Chunk, vectors [][]float32) (VectorIndex, error) {
	return NewMemoryIndex(chunks, vectors)
}

// MemoryIndex is a brute-force cosine similarity index.
type MemoryIndex struct {
	dimension int
	chunks    []types.Chunk
	vectors   [][]float32 // L2-normalized
}

func NewMemoryIndex(chunks []types.Chunk, vectors [][]float32) (*MemoryIndex, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks to index")
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	dimension := len(vectors[0])
	if dimension == 0 {
		return nil, errors.New("empty embedding vector")
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dimension)
		}
		normalized[i] = normalize(v)
	}
	return &MemoryIndex{
		dimension: dimension,
		chunks:    append([]types.Chunk(nil), chunks...),
		vectors:   normalized,
	}, nil
}

func (m *MemoryIndex) Retrieve(_ context.Context, query []float32, k int) ([]types.ScoredChunk, error) {
	if len(query) != m.dimension {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(query), m.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	q := normalize(query)
	hits := make([]types.ScoredChunk, len(m.chunks))
	for i := range m.chunks {
		hits[i] = types.ScoredChunk{Chunk: m.chunks[i], Score: dot(m.vectors[i], q)}
	}
	// stable: equal scores keep insertion order
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (m *MemoryIndex) Len() int { return len(m.chunks) }

func (m *MemoryIndex) Close(context.Context) error { return nil }

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
