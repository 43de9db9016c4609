/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/tieubaoca/docqa/config"
	"github.com/tieubaoca/docqa/database"
	"github.com/tieubaoca/docqa/logger"
	"github.com/tieubaoca/docqa/service"
	"github.com/tieubaoca/docqa/types"
	"go.uber.org/zap"
)

// app holds the services shared by the server and the interactive chat.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	ai          service.AIService
	transcripts database.TranscriptStore
	sessions    *service.SessionService
	files       *service.FileService
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	switch cfg.Provider {
	case config.ProviderOpenAI:
		a.ai = service.NewOpenAIService(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.Model, cfg.EmbeddingModel)
	case config.ProviderGemini:
		gemini, err := service.NewGeminiService(cfg.GoogleAPIKeys, cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		a.ai = gemini
	}

	var backend database.IndexBackend
	switch cfg.IndexBackend {
	case config.IndexBackendWeaviate:
		store, err := database.NewWeaviateStore(ctx, cfg.WeaviateStoreConfig, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to Weaviate database: %w", err)
		}
		backend = store
	default:
		backend = database.NewMemoryBackend()
	}

	if cfg.Transcript.Enabled {
		store, err := database.NewMongoTranscriptStore(ctx, cfg.Transcript.MongoURI, cfg.Transcript.Database, cfg.Transcript.Collection)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		a.transcripts = store
	}

	splitter, err := service.NewTextSplitter(types.DocumentServiceConfig{
		MaxChunkSize: cfg.Chunking.Size,
		OverlapSize:  cfg.Chunking.Overlap,
	})
	if err != nil {
		return err
	}

	var fallback service.PageFallback
	if cfg.Ingest.PdftotextFallback {
		fallback = service.NewPdftotextFallback()
	}
	pdfService := service.NewPDFService(a.logger, fallback)

	var embedder service.Embedder = a.ai
	if cfg.RAG.EmbeddingRPS > 0 {
		embedder = service.NewRateLimitedEmbedder(a.ai, cfg.RAG.EmbeddingRPS, 1)
	}
	indexService := service.NewIndexService(embedder, backend, cfg.RAG.EmbeddingBatchSize, a.logger)
	ingestService := service.NewIngestService(pdfService, splitter, indexService, service.IngestOptions{
		Workers:         cfg.Ingest.Workers,
		DocumentTimeout: cfg.Ingest.DocumentTimeout,
		FailFast:        cfg.Ingest.FailFast,
	}, a.logger)
	conversationService := service.NewConversationService(embedder, a.ai, cfg.RAG.TopK, cfg.RAG.CondenseQuestion, a.logger)

	a.sessions = service.NewSessionService(ingestService, conversationService, a.transcripts, a.logger)
	a.files = service.NewFileService(cfg.Ingest.MaxUploadSize)
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.sessions != nil {
		a.sessions.Close(ctx)
	}
	if a.transcripts != nil {
		if err := a.transcripts.Close(ctx); err != nil {
			a.logger.Warn("failed to close transcript store", zap.Error(err))
		}
	}
	if a.ai != nil {
		if err := a.ai.Close(); err != nil {
			a.logger.Warn("failed to close AI client", zap.Error(err))
		}
	}
	a.logger.Sync()
}
