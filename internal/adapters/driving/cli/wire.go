package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/railsup-labs/railsup-cli/internal/adapters/driven/config/file"
	ollamaembed "github.com/railsup-labs/railsup-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/railsup-labs/railsup-cli/internal/adapters/driven/embedding/openai"
	anthropicgen "github.com/railsup-labs/railsup-cli/internal/adapters/driven/generation/anthropic"
	ollamagen "github.com/railsup-labs/railsup-cli/internal/adapters/driven/generation/ollama"
	openaigen "github.com/railsup-labs/railsup-cli/internal/adapters/driven/generation/openai"
	"github.com/railsup-labs/railsup-cli/internal/adapters/driven/storage/sqlite"
	"github.com/railsup-labs/railsup-cli/internal/adapters/driven/vector/flat"
	"github.com/railsup-labs/railsup-cli/internal/chunker"
	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
	"github.com/railsup-labs/railsup-cli/internal/core/services"
	"github.com/railsup-labs/railsup-cli/internal/logger"
	"github.com/railsup-labs/railsup-cli/internal/rules"
)

// Wire builds the service graph from the on-disk configuration and
// installs it into the command package. A missing or empty vector
// index is not a wiring failure; retrieval commands report it when
// they actually need the index.
func Wire() error {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	configStore = cfg

	dataDir := cfg.GetString("index.dir")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".railsup", "data")
	}
	vectorsPath = filepath.Join(dataDir, "vectors.bin")

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening chunk store: %w", err)
	}
	chunkStore = store

	rs, err := rules.NewStore(cfg.GetString("rules.path"))
	if err != nil {
		return fmt.Errorf("loading rule set: %w", err)
	}
	if cfg.GetString("rules.path") != "" {
		if err := rs.Watch(); err != nil {
			logger.Warn("Rule file watch unavailable: %v", err)
		}
	}
	ruleStore = rs

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("configuring embedding provider: %w", err)
	}
	embeddingService = embedder

	generator, err := newGenerator(cfg)
	if err != nil {
		return fmt.Errorf("configuring generation provider: %w", err)
	}

	indexHandle = flat.NewHandle(nil)
	if err := loadIndex(context.Background()); err != nil {
		logger.Debug("Vector index not loaded: %v", err)
	}

	retrieverService = services.NewRetrieverService(
		embedder, indexHandle, store, retrieverOptions(cfg)...)

	detector := services.NewPatternDetector(rs.RuleSet())
	composer := services.NewSuggestionComposer(
		detector, retrieverService, generator, composerOptions(cfg)...)
	analyzerService = services.NewAnalyzerService(composer)

	ingestService = services.NewIngestService(chunker.New(chunkerOptions(cfg)...))

	return nil
}

// loadIndex reads the persisted vector file and publishes it on the
// handle. The row count must match the metadata store or the index
// stays unpublished.
func loadIndex(ctx context.Context) error {
	chunks, err := chunkStore.List(ctx)
	if err != nil {
		return fmt.Errorf("listing chunks: %w", err)
	}
	if len(chunks) == 0 {
		return domain.ErrIndexNotReady
	}

	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = chunks[i].ID
	}

	idx, err := flat.Load(vectorsPath, ids)
	if err != nil {
		return err
	}
	indexHandle.Swap(idx)
	logger.Debug("Loaded vector index: %d vectors, %d dimensions", idx.Size(), idx.Dimensions())
	return nil
}

func newEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	provider := cfg.GetString("embedding.provider")
	switch provider {
	case "", "ollama":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: cfg.GetString("embedding.base_url"),
			Model:   cfg.GetString("embedding.model"),
		}), nil
	case "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  cfg.GetString("embedding.api_key"),
			BaseURL: cfg.GetString("embedding.base_url"),
			Model:   cfg.GetString("embedding.model"),
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// newGenerator returns nil without error when no generation provider
// is configured; the composer then works pattern-only.
func newGenerator(cfg driven.ConfigStore) (driven.GenerationService, error) {
	provider := cfg.GetString("generation.provider")
	switch provider {
	case "":
		return nil, nil
	case "ollama":
		return ollamagen.NewGenerationService(ollamagen.Config{
			BaseURL: cfg.GetString("generation.base_url"),
			Model:   cfg.GetString("generation.model"),
		}), nil
	case "openai":
		return openaigen.NewGenerationService(openaigen.Config{
			APIKey:  cfg.GetString("generation.api_key"),
			BaseURL: cfg.GetString("generation.base_url"),
			Model:   cfg.GetString("generation.model"),
		})
	case "anthropic":
		return anthropicgen.NewGenerationService(anthropicgen.Config{
			APIKey:  cfg.GetString("generation.api_key"),
			BaseURL: cfg.GetString("generation.base_url"),
			Model:   cfg.GetString("generation.model"),
		})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", provider)
	}
}

func retrieverOptions(cfg driven.ConfigStore) []services.RetrieverOption {
	var opts []services.RetrieverOption
	if v := cfg.GetFloat("retriever.score_threshold"); v > 0 {
		opts = append(opts, services.WithScoreThreshold(v))
	}
	if v := cfg.GetFloat("retriever.near_dup_threshold"); v > 0 {
		opts = append(opts, services.WithNearDupThreshold(v))
	}
	if v := cfg.GetInt("retriever.default_limit"); v > 0 {
		opts = append(opts, services.WithDefaultLimit(v))
	}
	return opts
}

func composerOptions(cfg driven.ConfigStore) []services.ComposerOption {
	var opts []services.ComposerOption
	if v := cfg.GetInt("composer.concurrency"); v > 0 {
		opts = append(opts, services.WithConcurrency(v))
	}
	if v := cfg.GetInt("composer.timeout_seconds"); v > 0 {
		opts = append(opts, services.WithTimeout(time.Duration(v)*time.Second))
	}
	if v := cfg.GetInt("composer.context_budget"); v > 0 {
		opts = append(opts, services.WithContextBudget(v))
	}
	if v := cfg.GetFloat("composer.rate_per_second"); v > 0 {
		opts = append(opts, services.WithRateLimit(v))
	}
	if mt := cfg.GetInt("composer.max_tokens"); mt > 0 {
		opts = append(opts, services.WithGenerateOptions(driven.GenerateOptions{
			MaxTokens:   mt,
			Temperature: cfg.GetFloat("composer.temperature"),
		}))
	}
	return opts
}

func chunkerOptions(cfg driven.ConfigStore) []chunker.Option {
	var opts []chunker.Option
	if v := cfg.GetInt("chunker.size"); v > 0 {
		opts = append(opts, chunker.WithWindowSize(v))
	}
	if v := cfg.GetInt("chunker.overlap"); v > 0 {
		opts = append(opts, chunker.WithOverlap(v))
	}
	return opts
}
