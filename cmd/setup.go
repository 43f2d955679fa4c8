package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/chatbot-rag/db"
	"github.com/koopa0/chatbot-rag/internal/chat"
	"github.com/koopa0/chatbot-rag/internal/config"
	"github.com/koopa0/chatbot-rag/internal/database"
	"github.com/koopa0/chatbot-rag/internal/index"
	"github.com/koopa0/chatbot-rag/internal/ingest"
	"github.com/koopa0/chatbot-rag/internal/loader"
	"github.com/koopa0/chatbot-rag/internal/log"
	"github.com/koopa0/chatbot-rag/internal/registry"
)

// app holds the wired application components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	pool     *pgxpool.Pool
	index    *index.Pinecone
	store    *registry.Store
	pipeline *ingest.Pipeline
	chat     *chat.Service
}

// setupApp loads configuration, migrates the database, and wires every
// component. The caller must Close the returned app.
func setupApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{Level: logLevel()})

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	idx := index.NewPinecone(index.PineconeConfig{
		APIKey: cfg.PineconeAPIKey,
		Cloud:  cfg.IndexCloud,
		Region: cfg.IndexRegion,
	}, logger)

	store := registry.New(pool, logger)

	pipeline := ingest.New(loader.New(), idx, store, ingest.Config{
		IndexName:    cfg.IndexName,
		EmbedModel:   cfg.EmbedModel,
		Namespace:    cfg.Namespace,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}, logger)

	completer := chat.NewDeepSeek(chat.DeepSeekConfig{
		APIKey:  cfg.DeepSeekAPIKey,
		BaseURL: cfg.ChatBaseURL,
		Model:   cfg.ChatModel,
	})
	chatService := chat.New(idx, completer, chat.Config{
		Namespace: cfg.Namespace,
		TopK:      cfg.TopK,
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		index:    idx,
		store:    store,
		pipeline: pipeline,
		chat:     chatService,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// logLevel reads CHATBOT_RAG_LOG_LEVEL, defaulting to info.
func logLevel() slog.Level {
	switch os.Getenv("CHATBOT_RAG_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
