package database

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieubaoca/docqa/types"
)

func chunks(contents ...string) []types.Chunk {
	out := make([]types.Chunk, 0, len(contents))
	for i, c := range contents {
		out = append(out, types.Chunk{Document: "doc.pdf", Position: i, Content: c})
	}
	return out
}

func TestNewMemoryIndex_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []types.Chunk
		vectors [][]float32
	}{
		{"empty", nil, nil},
		{"length mismatch", chunks("a", "b"), [][]float32{{1, 0}}},
		{"zero dimension", chunks("a"), [][]float32{{}}},
		{"dimension mismatch", chunks("a", "b"), [][]float32{{1, 0}, {1, 0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, err := NewMemoryIndex(tt.chunks, tt.vectors)
			assert.Error(t, err)
			assert.Nil(t, index)
		})
	}
}

func TestMemoryIndex_Retrieve(t *testing.T) {
	index, err := NewMemoryIndex(chunks("east", "north", "north-east"), [][]float32{{1, 0}, {0, 1}, {3, 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, index.Len())

	hits, err := index.Retrieve(context.Background(), []float32{2, 0}, 3)

	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "east", hits[0].Chunk.Content)
	assert.Equal(t, "north-east", hits[1].Chunk.Content)
	assert.Equal(t, "north", hits[2].Chunk.Content)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
}

func TestMemoryIndex_Retrieve_Limits(t *testing.T) {
	index, err := NewMemoryIndex(chunks("a", "b"), [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	hits, err := index.Retrieve(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = index.Retrieve(context.Background(), []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = index.Retrieve(context.Background(), []float32{1, 0, 0}, 1)
	assert.Error(t, err)
}

func TestMemoryIndex_Retrieve_TiesKeepInsertionOrder(t *testing.T) {
	index, err := NewMemoryIndex(chunks("first", "second", "third"), [][]float32{{1, 1}, {2, 2}, {1, 1}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		hits, err := index.Retrieve(context.Background(), []float32{1, 1}, 3)
		require.NoError(t, err)
		assert.Equal(t, "first", hits[0].Chunk.Content)
		assert.Equal(t, "second", hits[1].Chunk.Content)
		assert.Equal(t, "third", hits[2].Chunk.Content)
	}
}

func TestMemoryIndex_DoesNotAliasInput(t *testing.T) {
	in := chunks("a")
	vectors := [][]float32{{1, 0}}
	index, err := NewMemoryIndex(in, vectors)
	require.NoError(t, err)

	in[0].Content = "changed"
	vectors[0][0] = 0

	hits, err := index.Retrieve(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", hits[0].Chunk.Content)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestMemoryIndex_ConcurrentReaders(t *testing.T) {
	index, err := NewMemoryIndex(chunks("a", "b", "c"), [][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := index.Retrieve(context.Background(), []float32{0, 1}, 1)
			assert.NoError(t, err)
			assert.Equal(t, "b", hits[0].Chunk.Content)
		}()
	}
	wg.Wait()
}

func TestMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()
	assert.Equal(t, "memory", backend.Name())

	index, err := backend.NewIndex(context.Background(), chunks("a"), [][]float32{{1}})
	require.NoError(t, err)
	assert.Equal(t, 1, index.Len())
	assert.NoError(t, index.Close(context.Background()))
}
