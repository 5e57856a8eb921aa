package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/railsup-labs/railsup-cli/internal/adapters/driven/vector/flat"
	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

var (
	ingestDocsFile  string
	ingestDiffsFile string
	ingestRetain    []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the retrieval corpus and vector index",
	Long: `Reads documentation and version-diff records from JSON files, chunks
and deduplicates them, stores chunk metadata, embeds every chunk and
rebuilds the vector index. Re-running replaces the previous corpus.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocsFile, "docs", "", "JSON file of documentation records")
	ingestCmd.Flags().StringVar(&ingestDiffsFile, "diffs", "", "JSON file of version-diff records")
	ingestCmd.Flags().StringSliceVar(&ingestRetain, "retain-tags", nil,
		"version tags whose duplicate chunks survive deduplication")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestService == nil || chunkStore == nil || embeddingService == nil {
		return errors.New("ingest pipeline not configured")
	}
	if ingestDocsFile == "" && ingestDiffsFile == "" {
		return errors.New("at least one of --docs or --diffs is required")
	}

	ctx := context.Background()
	var chunks []domain.Chunk

	if ingestDocsFile != "" {
		var records []domain.RawDocRecord
		if err := readRecords(ingestDocsFile, &records); err != nil {
			return err
		}
		out, errs := ingestService.IngestDocs(ctx, records)
		cmd.Printf("Docs: %d records -> %d chunks (%d skipped)\n",
			len(records), len(out), len(errs))
		chunks = append(chunks, out...)
	}

	if ingestDiffsFile != "" {
		var records []domain.RawDiffRecord
		if err := readRecords(ingestDiffsFile, &records); err != nil {
			return err
		}
		out, errs := ingestService.IngestDiffs(ctx, records)
		cmd.Printf("Diffs: %d records -> %d chunks (%d skipped)\n",
			len(records), len(out), len(errs))
		chunks = append(chunks, out...)
	}

	chunks = ingestService.Deduplicate(chunks, retainTagKeep())
	if len(chunks) == 0 {
		return errors.New("no valid chunks ingested")
	}

	if err := chunkStore.PutBatch(ctx, chunks); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
		ids[i] = chunks[i].ID
	}

	vectors, err := embeddingService.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	idx, err := flat.Build(vectors, ids)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	if vectorsPath != "" {
		if err := flat.Save(vectorsPath, idx); err != nil {
			return fmt.Errorf("saving index: %w", err)
		}
	}
	if indexHandle != nil {
		indexHandle.Swap(idx)
	}

	cmd.Printf("Indexed %d chunks (%d dimensions)\n", idx.Size(), idx.Dimensions())
	return nil
}

// retainTagKeep builds the dedup keep predicate from the --retain-tags
// flag, falling back to the ingest.retain_tags config key.
func retainTagKeep() func(domain.Chunk) bool {
	retain := ingestRetain
	if len(retain) == 0 && configStore != nil {
		retain = configStore.GetStringSlice("ingest.retain_tags")
	}
	if len(retain) == 0 {
		return nil
	}
	tags := make(map[string]struct{}, len(retain))
	for _, t := range retain {
		tags[t] = struct{}{}
	}
	return func(c domain.Chunk) bool {
		_, ok := tags[c.SourceTag]
		return ok
	}
}

func readRecords(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
