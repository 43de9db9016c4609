package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/tieubaoca/docqa/database"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultDocumentTimeout = 60 * time.Second

// IndexBuilder builds a VectorIndex from chunks.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []types.Chunk) (database.VectorIndex, error)
}

type IngestOptions struct {
	// Workers bounds the number of documents extracted and chunked at once.
	Workers int
	// DocumentTimeout bounds the extraction of a single document.
	DocumentTimeout time.Duration
	// FailFast aborts the whole batch on the first unreadable document
	// instead of skipping it.
	FailFast bool
}

type IngestResult struct {
	Index     database.VectorIndex
	Documents int
	Chunks    int
	Failures  []*types.ExtractionError
}

// IngestService runs extraction and chunking per document in parallel and
// builds one index over the merged chunks.
type IngestService struct {
	extractor Extractor
	splitter  *TextSplitter
	builder   IndexBuilder
	opts      IngestOptions
	logger    *zap.Logger
}

func NewIngestService(extractor Extractor, splitter *TextSplitter, builder IndexBuilder, opts IngestOptions, logger *zap.Logger) *IngestService {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.DocumentTimeout <= 0 {
		opts.DocumentTimeout = DefaultDocumentTimeout
	}
	return &IngestService{
		extractor: extractor,
		splitter:  splitter,
		builder:   builder,
		opts:      opts,
		logger:    logger,
	}
}

type documentResult struct {
	chunks []types.Chunk
	err    *types.ExtractionError
}

// Ingest returns an index reflecting every successfully processed document
// exactly once. Unreadable documents are recorded in the result unless
// FailFast is set.
func (s *IngestService) Ingest(ctx context.Context, docs []types.Document) (*IngestResult, error) {
	if len(docs) == 0 {
		return nil, &types.EmptyInputError{Reason: types.EmptyNoDocuments}
	}
	start := time.Now()
	s.logger.Info("Received documents for processing", zap.Int("documents", len(docs)))

	results := make([]documentResult, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, doc := range docs {
		i, doc := i, doc
		if doc.Name == "" {
			doc.Name = fmt.Sprintf("document-%d", i+1)
		}
		g.Go(func() error {
			chunks, err := s.processDocument(gctx, doc)
			if err != nil {
				if s.opts.FailFast {
					return err
				}
				s.logger.Warn("skipping unreadable document", zap.String("document", doc.Name), zap.Error(err))
				results[i].err = err
				return nil
			}
			results[i].chunks = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []types.Chunk
	var failures []*types.ExtractionError
	processed := 0
	for _, r := range results {
		if r.err != nil {
			failures = append(failures, r.err)
			continue
		}
		processed++
		all = append(all, r.chunks...)
	}
	if processed == 0 {
		return nil, &types.EmptyInputError{Reason: types.EmptyAllUnreadable, Failures: failures}
	}
	usable := FilterBlankChunks(all)
	if len(usable) == 0 {
		return nil, &types.EmptyInputError{Reason: types.EmptyNoText, Failures: failures}
	}

	index, err := s.builder.Build(ctx, usable)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Documents processed",
		zap.Int("documents", processed),
		zap.Int("failed", len(failures)),
		zap.Int("chunks", len(usable)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &IngestResult{
		Index:     index,
		Documents: processed,
		Chunks:    len(usable),
		Failures:  failures,
	}, nil
}

func (s *IngestService) processDocument(ctx context.Context, doc types.Document) ([]types.Chunk, *types.ExtractionError) {
	text, err := s.extract(ctx, doc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pieces := s.splitter.Split(text)
	chunks := make([]types.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, types.Chunk{Document: doc.Name, Position: i, Content: piece})
	}
	s.logger.Info("Completed text chunking",
		zap.String("document", doc.Name),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return chunks, nil
}

// extract runs the extractor under the per-document timeout. The extractor
// goroutine is abandoned on timeout; its result is discarded.
func (s *IngestService) extract(ctx context.Context, doc types.Document) (string, *types.ExtractionError) {
	dctx, cancel := context.WithTimeout(ctx, s.opts.DocumentTimeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := s.extractor.Extract(dctx, doc)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil {
			return out.text, nil
		}
		var extractErr *types.ExtractionError
		if errors.As(out.err, &extractErr) {
			return "", extractErr
		}
		return "", &types.ExtractionError{Document: doc.Name, Err: out.err}
	case <-dctx.Done():
		return "", &types.ExtractionError{
			Document: doc.Name,
			Err:      fmt.Errorf("extraction cancelled after %s: %w", s.opts.DocumentTimeout, dctx.Err()),
		}
	}
}
