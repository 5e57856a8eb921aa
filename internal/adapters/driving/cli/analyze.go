package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/railsup-labs/railsup-cli/internal/core/ports/driving"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a Rails file or project for upgrade issues",
	Long: `Runs the hybrid analysis pipeline over a Ruby file or a Rails project
root. Pattern rules flag known deprecations and mass-assignment issues;
when retrieval and generation are configured, flagged security issues
are enriched with grounded refactoring suggestions.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzerService == nil {
		return errors.New("analyzer service not configured")
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	ctx := context.Background()
	if info.IsDir() {
		return analyzeProject(ctx, cmd, path)
	}
	return analyzeFile(ctx, cmd, path)
}

func analyzeProject(ctx context.Context, cmd *cobra.Command, root string) error {
	report, err := analyzerService.AnalyzeProject(ctx, root)
	if err != nil {
		return fmt.Errorf("analyzing project: %w", err)
	}

	if analyzeJSON {
		return outputJSON(cmd, report)
	}

	outputReport(cmd, report)
	return nil
}

func analyzeFile(ctx context.Context, cmd *cobra.Command, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	suggestions, err := analyzerService.AnalyzeFile(ctx, path, string(content))
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", path, err)
	}

	if analyzeJSON {
		return outputJSON(cmd, suggestions)
	}

	if len(suggestions) == 0 {
		cmd.Println("No issues found.")
		return nil
	}
	outputSuggestions(cmd, suggestions)
	return nil
}

func outputReport(cmd *cobra.Command, report *driving.ProjectReport) {
	stats := report.Stats
	cmd.Printf("Scanned %d files, %d with issues (%dms)\n",
		stats.FilesScanned, stats.FilesWithIssues, stats.DurationMillis)
	cmd.Printf("Suggestions: %d pattern, %d hybrid, %d fallback\n",
		stats.PatternHits, stats.HybridCount, stats.FallbackCount)
	cmd.Println()

	for _, w := range report.Warnings {
		cmd.Printf("Warning: %s\n", w)
	}
	if len(report.Warnings) > 0 {
		cmd.Println()
	}

	if len(report.Suggestions) == 0 {
		cmd.Println("No issues found.")
		return
	}
	outputSuggestions(cmd, report.Suggestions)
}
