// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.chatbot-rag/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Server: HTTP listen address, upload limits
//   - Storage: PostgreSQL connection for the file registry (see storage.go)
//   - Index: Pinecone serverless index with integrated embeddings
//   - Chat: completion provider (DeepSeek, OpenAI-compatible API)
//   - Ingest: chunking parameters
//
// Security: sensitive values (API keys, passwords) are masked in MarshalJSON
// and never logged.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidChunkOverlap indicates the chunk overlap is out of range.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidTopK indicates the search top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top k")

	// ErrInvalidIndexName indicates the vector index name is invalid.
	ErrInvalidIndexName = errors.New("invalid index name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultIndexName is the default Pinecone index holding chunk records.
	DefaultIndexName = "chatbot-rag"

	// DefaultNamespace is the single shared namespace all files index into.
	// There is no per-file namespace isolation.
	DefaultNamespace = "__default__"

	// DefaultEmbedModel is the index-hosted embedding model. Vectors are
	// computed server-side by Pinecone; the service never sees them.
	DefaultEmbedModel = "multilingual-e5-large"

	// DefaultChunkSize is the character budget per chunk.
	DefaultChunkSize = 100

	// DefaultChunkOverlap is the character overlap between adjacent chunks.
	DefaultChunkOverlap = 0

	// DefaultTopK is the number of hits retrieved per chat query.
	DefaultTopK = 10

	// DefaultChatModel is the completion model.
	DefaultChatModel = "deepseek-chat"

	// DefaultChatBaseURL is the OpenAI-compatible endpoint of the completion provider.
	DefaultChatBaseURL = "https://api.deepseek.com/v1"

	// DefaultMaxUploadBytes caps multipart upload size (32 MiB).
	DefaultMaxUploadBytes = 32 << 20
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys), update MarshalJSON.
type Config struct {
	// Server configuration
	Addr           string `mapstructure:"addr" json:"addr"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`

	// Storage configuration (see storage.go for DSN helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Vector index configuration
	PineconeAPIKey string `mapstructure:"pinecone_api_key" json:"pinecone_api_key"` // SENSITIVE: masked in MarshalJSON
	IndexName      string `mapstructure:"index_name" json:"index_name"`
	Namespace      string `mapstructure:"namespace" json:"namespace"`
	EmbedModel     string `mapstructure:"embed_model" json:"embed_model"`
	IndexCloud     string `mapstructure:"index_cloud" json:"index_cloud"`
	IndexRegion    string `mapstructure:"index_region" json:"index_region"`

	// Completion provider configuration
	DeepSeekAPIKey string `mapstructure:"deepseek_api_key" json:"deepseek_api_key"` // SENSITIVE: masked in MarshalJSON
	ChatModel      string `mapstructure:"chat_model" json:"chat_model"`
	ChatBaseURL    string `mapstructure:"chat_base_url" json:"chat_base_url"`
	TopK           int    `mapstructure:"top_k" json:"top_k"`

	// Ingestion configuration
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".chatbot-rag")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes precedence over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "chatbot_rag")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("index_name", DefaultIndexName)
	v.SetDefault("namespace", DefaultNamespace)
	v.SetDefault("embed_model", DefaultEmbedModel)
	v.SetDefault("index_cloud", "aws")
	v.SetDefault("index_region", "us-east-1")

	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("chat_base_url", DefaultChatBaseURL)
	v.SetDefault("top_k", DefaultTopK)

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
}

func bindEnvVariables(v *viper.Viper) {
	v.SetEnvPrefix("CHATBOT_RAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional unprefixed variables for credentials.
	_ = v.BindEnv("pinecone_api_key", "PINECONE_API_KEY", "CHATBOT_RAG_PINECONE_API_KEY")
	_ = v.BindEnv("deepseek_api_key", "DEEPSEEK_API_KEY", "CHATBOT_RAG_DEEPSEEK_API_KEY")
}

// Validate checks the configuration for a serve run.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.PineconeAPIKey == "" {
		return fmt.Errorf("%w: PINECONE_API_KEY is required", ErrMissingAPIKey)
	}
	if c.DeepSeekAPIKey == "" {
		return fmt.Errorf("%w: DEEPSEEK_API_KEY is required", ErrMissingAPIKey)
	}
	if c.IndexName == "" || strings.ContainsAny(c.IndexName, " /") {
		return fmt.Errorf("%w: %q", ErrInvalidIndexName, c.IndexName)
	}
	if c.ChunkSize < 1 || c.ChunkSize > 1<<20 {
		return fmt.Errorf("%w: %d (must be 1..1048576)", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: %d (must be 0..chunk_size-1)", ErrInvalidChunkOverlap, c.ChunkOverlap)
	}
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d (must be 1..100)", ErrInvalidTopK, c.TopK)
	}
	return c.validateStorage()
}

func (c *Config) validateStorage() error {
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
}

// MarshalJSON masks sensitive fields when the configuration is serialized,
// e.g. for debug logging.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(*c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	if masked.PineconeAPIKey != "" {
		masked.PineconeAPIKey = "***"
	}
	if masked.DeepSeekAPIKey != "" {
		masked.DeepSeekAPIKey = "***"
	}
	return json.Marshal(masked)
}
