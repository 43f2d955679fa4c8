package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/chatbot-rag/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Resolve the index before serving so chat works ahead of any upload.
	// First boot blocks here while the index is created.
	a.logger.Info("provisioning vector index", "index", a.cfg.IndexName)
	if err := a.index.EnsureIndex(ctx, a.cfg.IndexName, a.cfg.EmbedModel); err != nil {
		return fmt.Errorf("provisioning vector index: %w", err)
	}

	server := api.NewServer(api.ServerConfig{
		Namespace:      a.cfg.Namespace,
		MaxUploadBytes: a.cfg.MaxUploadBytes,
	}, a.pool, a.pipeline, a.store, a.index, a.chat, a.logger)

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Addr
	}
	return server.Run(ctx, addr)
}
