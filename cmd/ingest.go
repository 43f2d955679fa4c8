package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest documents into the vector index",
	Long: `Ingest loads each file, splits it into chunks, writes the chunks to
the vector index, and records the file in the registry.

Supported formats: .pdf, .doc, .docx, .md, .txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(parent context.Context, paths []string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, path := range paths {
		data, err := os.ReadFile(path) // #nosec G304 -- paths come from the operator
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		file, err := a.pipeline.Ingest(ctx, data, filepath.Base(path), "")
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Printf("ingested %s (id=%d, records=%d)\n", file.FileName, file.ID, len(file.RecordIDs))
	}
	return nil
}
