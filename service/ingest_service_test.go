package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tieubaoca/docqa/database"
	"github.com/tieubaoca/docqa/types"
)

// countingBuilder records the chunks of each Build call.
type countingBuilder struct {
	inner *IndexService
	mu    sync.Mutex
	calls [][]types.Chunk
}

func (b *countingBuilder) Build(ctx context.Context, chunks []types.Chunk) (database.VectorIndex, error) {
	b.mu.Lock()
	b.calls = append(b.calls, chunks)
	b.mu.Unlock()
	return b.inner.Build(ctx, chunks)
}

func newTestIngestService(t *testing.T, extractor Extractor, opts IngestOptions) (*IngestService, *countingBuilder) {
	t.Helper()
	builder := &countingBuilder{
		inner: NewIndexService(&hashEmbedder{}, database.NewMemoryBackend(), 0, zap.NewNop()),
	}
	splitter, err := NewTextSplitter(types.DocumentServiceConfig{MaxChunkSize: 100, OverlapSize: 10})
	require.NoError(t, err)
	return NewIngestService(extractor, splitter, builder, opts, zap.NewNop()), builder
}

func textDoc(name, text string) types.Document {
	return types.Document{Name: name, Data: []byte(text)}
}

func TestIngestService_NoDocuments(t *testing.T) {
	svc, builder := newTestIngestService(t, &fakeExtractor{}, IngestOptions{})

	result, err := svc.Ingest(context.Background(), nil)

	assert.Nil(t, result)
	var emptyErr *types.EmptyInputError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, types.EmptyNoDocuments, emptyErr.Reason)
	assert.Empty(t, builder.calls)
}

func TestIngestService_MergesInDocumentOrder(t *testing.T) {
	svc, builder := newTestIngestService(t, &fakeExtractor{}, IngestOptions{Workers: 4})
	docs := []types.Document{
		textDoc("a.pdf", strings.Repeat("alpha words here. ", 12)),
		textDoc("b.pdf", "beta is short"),
		textDoc("c.pdf", strings.Repeat("gamma words there. ", 12)),
	}

	result, err := svc.Ingest(context.Background(), docs)

	require.NoError(t, err)
	require.Len(t, builder.calls, 1, "index is built exactly once")
	assert.Equal(t, 3, result.Documents)
	assert.Empty(t, result.Failures)
	assert.Equal(t, len(builder.calls[0]), result.Chunks)
	assert.Equal(t, result.Chunks, result.Index.Len())

	var order []string
	positions := map[string]int{}
	for _, c := range builder.calls[0] {
		if len(order) == 0 || order[len(order)-1] != c.Document {
			order = append(order, c.Document)
		}
		assert.Equal(t, positions[c.Document], c.Position)
		positions[c.Document]++
	}
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, order)
}

func TestIngestService_SkipsUnreadable(t *testing.T) {
	extractor := &fakeExtractor{fail: map[string]bool{"broken.pdf": true}}
	svc, _ := newTestIngestService(t, extractor, IngestOptions{})

	result, err := svc.Ingest(context.Background(), []types.Document{
		textDoc("broken.pdf", "ignored"),
		textDoc("good.pdf", "The capital of France is Paris."),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "broken.pdf", result.Failures[0].Document)
	assert.Equal(t, 1, result.Index.Len())
}

func TestIngestService_AllUnreadable(t *testing.T) {
	extractor := &fakeExtractor{fail: map[string]bool{"x.pdf": true, "y.pdf": true}}
	svc, builder := newTestIngestService(t, extractor, IngestOptions{})

	result, err := svc.Ingest(context.Background(), []types.Document{textDoc("x.pdf", ""), textDoc("y.pdf", "")})

	assert.Nil(t, result)
	var emptyErr *types.EmptyInputError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, types.EmptyAllUnreadable, emptyErr.Reason)
	assert.Len(t, emptyErr.Failures, 2)
	assert.Empty(t, builder.calls)
}

func TestIngestService_NoExtractableText(t *testing.T) {
	svc, builder := newTestIngestService(t, &fakeExtractor{}, IngestOptions{})

	result, err := svc.Ingest(context.Background(), []types.Document{textDoc("scan.pdf", "  \n\n  ")})

	assert.Nil(t, result)
	var emptyErr *types.EmptyInputError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, types.EmptyNoText, emptyErr.Reason)
	assert.Empty(t, builder.calls)
}

func TestIngestService_FailFast(t *testing.T) {
	extractor := &fakeExtractor{fail: map[string]bool{"broken.pdf": true}}
	svc, builder := newTestIngestService(t, extractor, IngestOptions{FailFast: true})

	result, err := svc.Ingest(context.Background(), []types.Document{
		textDoc("good.pdf", "fine text"),
		textDoc("broken.pdf", "ignored"),
	})

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, types.ErrExtraction))
	var extractErr *types.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "broken.pdf", extractErr.Document)
	assert.Empty(t, builder.calls)
}

func TestIngestService_DocumentTimeout(t *testing.T) {
	extractor := &fakeExtractor{slow: map[string]bool{"huge.pdf": true}}
	svc, _ := newTestIngestService(t, extractor, IngestOptions{DocumentTimeout: 50 * time.Millisecond})

	start := time.Now()
	result, err := svc.Ingest(context.Background(), []types.Document{
		textDoc("huge.pdf", "never read"),
		textDoc("small.pdf", "quick text"),
	})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, result.Documents)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "huge.pdf", result.Failures[0].Document)
	assert.True(t, errors.Is(result.Failures[0], context.DeadlineExceeded))
}

func TestIngestService_CancelledContext(t *testing.T) {
	svc, builder := newTestIngestService(t, &fakeExtractor{}, IngestOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Ingest(ctx, []types.Document{textDoc("a.pdf", "text")})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, builder.calls)
}

func TestIngestService_UnnamedDocuments(t *testing.T) {
	extractor := &fakeExtractor{fail: map[string]bool{"document-2": true}}
	svc, _ := newTestIngestService(t, extractor, IngestOptions{})

	result, err := svc.Ingest(context.Background(), []types.Document{textDoc("", "text"), textDoc("", "text")})

	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "document-2", result.Failures[0].Document)
}
