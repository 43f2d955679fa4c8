package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List ingested files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFilesList(cmd.Context())
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an ingested file and its vector records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid file id %q", args[0])
		}
		return runFilesDelete(cmd.Context(), id)
	},
}

func init() {
	filesCmd.AddCommand(filesDeleteCmd)
	rootCmd.AddCommand(filesCmd)
}

func runFilesList(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("no files ingested")
		return nil
	}
	for _, f := range files {
		fmt.Printf("%d\t%s\t%d records\t%s\n",
			f.ID, f.FileName, len(f.RecordIDs), f.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// runFilesDelete removes the vector records first, then the registry row,
// mirroring the DELETE /api/files/{id} endpoint.
func runFilesDelete(parent context.Context, id int64) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := a.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := a.index.EnsureIndex(ctx, a.cfg.IndexName, a.cfg.EmbedModel); err != nil {
		return fmt.Errorf("resolving vector index: %w", err)
	}
	if err := a.index.DeleteMany(ctx, a.cfg.Namespace, file.RecordIDs); err != nil {
		return fmt.Errorf("deleting vector records: %w", err)
	}
	if err := a.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	fmt.Printf("deleted %s (id=%d, records=%d)\n", file.FileName, file.ID, len(file.RecordIDs))
	return nil
}
