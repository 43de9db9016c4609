package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	IndexBackendMemory   = "memory"
	IndexBackendWeaviate = "weaviate"
)

type Config struct {
	Port                string              `mapstructure:"port"`
	LogLevel            string              `mapstructure:"log_level"`
	AllowOrigins        []string            `mapstructure:"allow_origins"`
	Provider            string              `mapstructure:"provider"`
	AIEndpoint          string              `mapstructure:"ai_endpoint"`
	Model               string              `mapstructure:"model"`
	EmbeddingModel      string              `mapstructure:"embedding_model"`
	OpenAIAPIKey        string              `mapstructure:"OPENAI_API_KEY"`
	GoogleAPIKeys       []string            `mapstructure:"GOOGLE_API_KEY"`
	Chunking            ChunkingConfig      `mapstructure:"chunking"`
	Ingest              IngestConfig        `mapstructure:"ingest"`
	RAG                 RAGConfig           `mapstructure:"rag"`
	IndexBackend        string              `mapstructure:"index_backend"`
	WeaviateStoreConfig WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
	Transcript          TranscriptConfig    `mapstructure:"transcript"`
}

type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type IngestConfig struct {
	Workers           int           `mapstructure:"workers"`
	DocumentTimeout   time.Duration `mapstructure:"document_timeout"`
	FailFast          bool          `mapstructure:"fail_fast"`
	MaxUploadSize     int64         `mapstructure:"max_upload_size"`
	PdftotextFallback bool          `mapstructure:"pdftotext_fallback"`
}

type RAGConfig struct {
	TopK               int     `mapstructure:"top_k"`
	CondenseQuestion   bool    `mapstructure:"condense_question"`
	EmbeddingBatchSize int     `mapstructure:"embedding_batch_size"`
	EmbeddingRPS       float64 `mapstructure:"embedding_rps"`
}

type WeaviateStoreConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"WEAVIATE_APIKEY"`
}

type TranscriptConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	MongoURI   string `mapstructure:"MONGODB_URI"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// LoadConfig reads configuration from configPath (or config.yaml in . and
// ./config when empty), defaults and the environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("GOOGLE_API_KEY")
	v.BindEnv("weaviate_store_config.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")
	v.BindEnv("transcript.MONGODB_URI", "MONGODB_URI")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("allow_origins", []string{"*"})
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("ai_endpoint", "")
	v.SetDefault("model", "")
	v.SetDefault("embedding_model", "")

	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 20)

	v.SetDefault("ingest.workers", runtime.NumCPU())
	v.SetDefault("ingest.document_timeout", 60*time.Second)
	v.SetDefault("ingest.fail_fast", false)
	v.SetDefault("ingest.max_upload_size", 10<<20)
	v.SetDefault("ingest.pdftotext_fallback", false)

	v.SetDefault("rag.top_k", 4)
	v.SetDefault("rag.condense_question", true)
	v.SetDefault("rag.embedding_batch_size", 64)
	v.SetDefault("rag.embedding_rps", 0)

	v.SetDefault("index_backend", IndexBackendMemory)
	v.SetDefault("weaviate_store_config.host", "http://localhost:8080")

	v.SetDefault("transcript.enabled", false)
	v.SetDefault("transcript.database", "docqa")
	v.SetDefault("transcript.collection", "transcripts")
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q (want %q or %q)", c.Provider, ProviderOpenAI, ProviderGemini)
	}
	switch c.IndexBackend {
	case IndexBackendMemory, IndexBackendWeaviate:
	default:
		return fmt.Errorf("unknown index_backend %q (want %q or %q)", c.IndexBackend, IndexBackendMemory, IndexBackendWeaviate)
	}
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("invalid chunking: size=%d overlap=%d (need size > 0 and 0 <= overlap < size)", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	if c.RAG.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("rag.embedding_batch_size must be positive, got %d", c.RAG.EmbeddingBatchSize)
	}
	if c.Transcript.Enabled && c.Transcript.MongoURI == "" {
		return errors.New("transcript.enabled requires MONGODB_URI")
	}
	return nil
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return ":" + c.Port
}
