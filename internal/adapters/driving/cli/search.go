package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

var (
	searchLimit   int
	searchKind    string
	searchJSON    bool
	searchSuggest bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the upgrade corpus",
	Long: `Runs a semantic query over the ingested documentation and version
diffs. With --suggest the retrieved context is handed to the generation
service and the answer comes back as upgrade suggestions.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().StringVar(&searchKind, "kind", "any", "restrict results: doc, diff or any")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchSuggest, "suggest", false, "answer the query with generated suggestions")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx := context.Background()

	if searchSuggest {
		if analyzerService == nil {
			return errors.New("analyzer service not configured")
		}
		suggestions, err := analyzerService.Suggest(ctx, query, searchLimit)
		if err != nil {
			return fmt.Errorf("suggest failed: %w", err)
		}
		if searchJSON {
			return outputJSON(cmd, suggestions)
		}
		outputSuggestions(cmd, suggestions)
		return nil
	}

	if retrieverService == nil {
		return errors.New("retriever service not configured")
	}

	kind, err := parseKindFilter(searchKind)
	if err != nil {
		return err
	}

	results, err := retrieverService.Search(ctx, query, domain.SearchOptions{
		MaxResults: searchLimit,
		Kind:       kind,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func parseKindFilter(s string) (domain.KindFilter, error) {
	switch s {
	case "", "any":
		return domain.KindAny, nil
	case "doc":
		return domain.KindDocOnly, nil
	case "diff":
		return domain.KindDiffOnly, nil
	default:
		return domain.KindAny, fmt.Errorf("unknown kind %q (want doc, diff or any)", s)
	}
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, results[i].OriginPath, results[i].Score)
		cmd.Printf("      %s %s\n", results[i].Kind, results[i].SourceTag)
		cmd.Printf("      %s\n", snippet(results[i].Text, 160))
		cmd.Println()
	}
	return nil
}

func outputSuggestions(cmd *cobra.Command, suggestions []domain.Suggestion) {
	if len(suggestions) == 0 {
		cmd.Println("No suggestions.")
		return
	}

	for i := range suggestions {
		s := &suggestions[i]
		cmd.Printf("[%d] %s (%s tier, %s risk, %.2f confidence)\n",
			i+1, s.IssueType, s.Tier, s.Risk, s.Confidence)
		if s.FilePath != "" {
			cmd.Printf("    %s:%d\n", s.FilePath, s.LineNumber)
		}
		if s.RefactoredCode != "" {
			cmd.Printf("    Fix: %s\n", s.RefactoredCode)
		}
		if s.Explanation != "" {
			cmd.Printf("    %s\n", s.Explanation)
		}
		if s.RequiresReview {
			cmd.Println("    Requires human review.")
		}
		for _, c := range s.Sources {
			cmd.Printf("    Source: %s (%s)\n", c.OriginPath, c.SourceTag)
		}
		cmd.Println()
	}
}

// snippet flattens text to a single display line of at most n bytes.
func snippet(text string, n int) string {
	flat := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' || text[i] == '\t' {
			flat = append(flat, ' ')
		} else {
			flat = append(flat, text[i])
		}
	}
	if len(flat) > n {
		return string(flat[:n]) + "..."
	}
	return string(flat)
}
