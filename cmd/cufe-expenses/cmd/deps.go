package cmd

import (
	"context"
	"fmt"

	"github.com/rezonia/cufe-expenses/internal/acquisition"
	"github.com/rezonia/cufe-expenses/internal/categorizer"
	"github.com/rezonia/cufe-expenses/internal/llm"
	"github.com/rezonia/cufe-expenses/internal/processor"
	"github.com/rezonia/cufe-expenses/internal/store"
	"github.com/rezonia/cufe-expenses/internal/store/memory"
	"github.com/rezonia/cufe-expenses/internal/store/postgres"
)

// newCategorizer uses the rules file when configured, otherwise the built-in rules.
func newCategorizer() (*categorizer.Categorizer, error) {
	if cfg.CategoryRulesFile == "" {
		return categorizer.NewDefault(categorizer.WithLogger(log)), nil
	}
	rules, err := categorizer.LoadRules(cfg.CategoryRulesFile)
	if err != nil {
		return nil, err
	}
	printVerbose("Loaded %d category rules from %s\n", len(rules), cfg.CategoryRulesFile)
	return categorizer.New(rules, categorizer.WithLogger(log))
}

// newPipeline builds the synchronous pipeline, with the LLM fallback when an API key is set.
func newPipeline() *processor.Pipeline {
	opts := []processor.Option{
		processor.WithLogger(log),
		processor.WithDocumentURLTemplate(cfg.DocumentURLTemplate),
	}

	if cfg.HasLLM() {
		clientOpts := []llm.ClientOption{llm.WithClientLogger(log)}
		if cfg.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(cfg.LLMBaseURL))
		}
		client := llm.NewClient(cfg.LLMAPIKey, clientOpts...)

		var extractorOpts []llm.ExtractorOption
		extractorOpts = append(extractorOpts, llm.WithLogger(log))
		if cfg.LLMModel != "" {
			extractorOpts = append(extractorOpts, llm.WithModel(cfg.LLMModel))
		}
		opts = append(opts, processor.WithLLMExtractor(llm.NewExtractor(client, extractorOpts...)))
		printVerbose("LLM fallback enabled (model: %s)\n", client.DefaultModel())
	}

	return processor.NewPipeline(opts...)
}

func newAcquisitionClient() *acquisition.Client {
	return acquisition.NewClient(cfg.AcquisitionURL, acquisition.WithLogger(log))
}

// openRepository connects to PostgreSQL when DATABASE_URL is set and falls
// back to an in-process store otherwise. The returned func releases it.
func openRepository(ctx context.Context) (store.Repository, func(), error) {
	if !cfg.HasDatabase() {
		log.Debug().Msg("no database configured, using in-memory store")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: cfg.DatabaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info().Msg("connected to postgres")
	return postgres.NewRepository(pool), pool.Close, nil
}
