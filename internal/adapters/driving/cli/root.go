package cli

import (
	"github.com/spf13/cobra"

	"github.com/railsup-labs/railsup-cli/internal/adapters/driven/vector/flat"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driving"
	"github.com/railsup-labs/railsup-cli/internal/logger"
	"github.com/railsup-labs/railsup-cli/internal/rules"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Services are installed by Wire before Execute runs. Tests install
// mocks directly.
var (
	configStore      driven.ConfigStore
	ingestService    driving.Ingestor
	retrieverService driving.Retriever
	analyzerService  driving.Analyzer
	ruleStore        *rules.Store

	// Ingest pipeline collaborators; the ingest command drives the
	// store, embedder and index builder directly.
	chunkStore       driven.ChunkStore
	embeddingService driven.EmbeddingService
	indexHandle      *flat.Handle
	vectorsPath      string
)

var rootCmd = &cobra.Command{
	Use:   "railsup",
	Short: "Rails upgrade assistant",
	Long: `Railsup analyses Rails projects for upgrade blockers and suggests fixes.
Deterministic pattern rules catch known deprecations and mass-assignment
issues; retrieval over ingested guides and version diffs grounds
model-generated refactorings for the harder cases.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
