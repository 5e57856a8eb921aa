package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var contextBudget int

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Print retrieval context for a query",
	Long: `Assembles the context block a generation prompt would receive for the
given query: the highest-scoring chunks in order, concatenated under a
character budget with source attribution headers.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().IntVar(&contextBudget, "budget", 2400, "maximum context length in characters")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	if retrieverService == nil {
		return errors.New("retriever service not configured")
	}

	block, err := retrieverService.ContextForQuery(context.Background(), args[0], contextBudget)
	if err != nil {
		return fmt.Errorf("building context: %w", err)
	}

	if block == "" {
		cmd.Println("No context available for this query.")
		return nil
	}
	cmd.Println(block)
	return nil
}
