// Package cmd wires the CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatbot-rag",
	Short: "Retrieval-augmented chatbot server",
	Long: `chatbot-rag ingests documents into a vector index and answers
questions grounded in their content.

Run "chatbot-rag serve" to start the HTTP API, or "chatbot-rag ingest"
to load documents from the command line.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
