package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tieubaoca/docqa/database"
	"github.com/tieubaoca/docqa/types"
)

func testChunks(contents ...string) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(contents))
	for i, c := range contents {
		chunks = append(chunks, types.Chunk{Document: "doc.pdf", Position: i, Content: c})
	}
	return chunks
}

func TestIndexService_Build(t *testing.T) {
	embedder := &hashEmbedder{}
	svc := NewIndexService(embedder, database.NewMemoryBackend(), 2, zap.NewNop())

	index, err := svc.Build(context.Background(), testChunks("one", "two", "three", "four", "five"))

	require.NoError(t, err)
	assert.Equal(t, 5, index.Len())
	assert.Equal(t, 3, embedder.Calls())
	assert.Equal(t, [][]string{{"one", "two"}, {"three", "four"}, {"five"}}, embedder.batches)
}

func TestIndexService_Build_FiltersBlankChunks(t *testing.T) {
	embedder := &hashEmbedder{}
	svc := NewIndexService(embedder, database.NewMemoryBackend(), 0, zap.NewNop())

	index, err := svc.Build(context.Background(), testChunks("content", "   ", "", "\n\t", "more content"))

	require.NoError(t, err)
	assert.Equal(t, 2, index.Len())
	assert.Equal(t, [][]string{{"content", "more content"}}, embedder.batches)
}

func TestIndexService_Build_NoText(t *testing.T) {
	embedder := &hashEmbedder{}
	svc := NewIndexService(embedder, database.NewMemoryBackend(), 0, zap.NewNop())

	for _, chunks := range [][]types.Chunk{nil, testChunks(" ", "\n")} {
		index, err := svc.Build(context.Background(), chunks)

		require.Error(t, err)
		assert.Nil(t, index)
		assert.True(t, errors.Is(err, types.ErrEmptyInput))
		var emptyErr *types.EmptyInputError
		require.True(t, errors.As(err, &emptyErr))
		assert.Equal(t, types.EmptyNoText, emptyErr.Reason)
	}
	assert.Zero(t, embedder.Calls())
}

func TestIndexService_Build_EmbeddingFailure(t *testing.T) {
	tests := []struct {
		name     string
		embedder *hashEmbedder
	}{
		{"provider error", &hashEmbedder{err: fmt.Errorf("quota exceeded")}},
		{"missing vectors", &hashEmbedder{short: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewIndexService(tt.embedder, database.NewMemoryBackend(), 0, zap.NewNop())

			index, err := svc.Build(context.Background(), testChunks("a", "b"))

			require.Error(t, err)
			assert.Nil(t, index)
			assert.True(t, errors.Is(err, types.ErrEmbedding))
			assert.True(t, types.IsRetriable(err))
		})
	}
}

func TestIndexService_Build_BackendFailure(t *testing.T) {
	svc := NewIndexService(&hashEmbedder{}, failingBackend{}, 0, zap.NewNop())

	index, err := svc.Build(context.Background(), testChunks("a"))

	require.Error(t, err)
	assert.Nil(t, index)
	assert.True(t, errors.Is(err, types.ErrIndex))
}

func TestFilterBlankChunks(t *testing.T) {
	out := FilterBlankChunks(testChunks("keep", " ", "also keep"))
	require.Len(t, out, 2)
	assert.Equal(t, "keep", out[0].Content)
	assert.Equal(t, "also keep", out[1].Content)
}

func TestRateLimitedEmbedder(t *testing.T) {
	inner := &hashEmbedder{}
	limited := NewRateLimitedEmbedder(inner, 1000, 2)

	vectors, err := limited.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 1, inner.Calls())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.Embed(ctx, []string{"hello"})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.Calls())
}
