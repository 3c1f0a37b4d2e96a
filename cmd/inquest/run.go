package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/inquest/config"
	"github.com/mohammad-safakhou/inquest/internal/agent/core"
	"github.com/mohammad-safakhou/inquest/internal/agent/telemetry"
	"github.com/mohammad-safakhou/inquest/internal/rag"
	"github.com/mohammad-safakhou/inquest/internal/store"
	"github.com/mohammad-safakhou/inquest/provider/cache"
	openai_provider "github.com/mohammad-safakhou/inquest/provider/openai"
	"github.com/mohammad-safakhou/inquest/tools/web_search"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var noCorpus bool
	var numResults int
	var noSave bool

	var run = &cobra.Command{
		Use:   "run [query]",
		Short: "Execute a single research pipeline run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg := config.LoadConfig(cfgPath)
			ctx := cmd.Context()

			llm, err := buildLLM(ctx, cfg)
			if err != nil {
				return err
			}
			searcher := web_search.NewChain(cfg.Search, log.New(os.Stderr, "[SEARCH] ", log.LstdFlags))

			var retriever core.KnowledgeRetriever
			if cfg.Corpus.Enabled && !noCorpus {
				corpus, err := rag.NewCorpus(cfg.Corpus, log.New(os.Stderr, "[CORPUS] ", log.LstdFlags))
				if err != nil {
					return err
				}
				if cfg.Corpus.Dir != "" {
					if _, err := corpus.IngestDir(cfg.Corpus.Dir); err != nil {
						fmt.Fprintf(os.Stderr, "warning: corpus preload failed: %v\n", err)
					}
				}
				retriever = corpus
			}

			engine, err := core.NewEngine(llm, searcher, retriever,
				cfg.Corpus.TopK, telemetry.NewTelemetry(cfg.Telemetry), log.New(os.Stderr, "[ENGINE] ", log.LstdFlags))
			if err != nil {
				return err
			}

			opts := core.RunOptions{UseCorpus: retriever != nil, NumResults: cfg.Search.NumResults}
			if numResults > 0 {
				opts.NumResults = numResults
			}
			state, err := engine.Run(ctx, query, opts)
			if err != nil {
				return err
			}

			fmt.Println("=== Plan ===")
			fmt.Println(state.Plan)
			fmt.Println("\n=== Research ===")
			fmt.Println(state.Research)
			fmt.Println("\n=== Critique ===")
			fmt.Println(state.Critique)
			fmt.Println("\n=== Final Answer ===")
			fmt.Println(state.FinalAnswer)

			if !noSave {
				if err := persist(ctx, cfg, state, opts); err != nil {
					fmt.Fprintf(os.Stderr, "warning: result computed but not persisted: %v\n", err)
				}
			}
			return nil
		},
	}
	run.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	run.Flags().BoolVar(&noCorpus, "no-rag", false, "skip knowledge base retrieval")
	run.Flags().IntVar(&numResults, "results", 0, "web search results per provider (default from config)")
	run.Flags().BoolVar(&noSave, "no-save", false, "do not persist the result")

	return run
}

// persist writes the completed run to Postgres. Failures here must not fail
// the run itself; the caller downgrades them to a warning.
func persist(ctx context.Context, cfg *config.Config, state core.RunState, opts core.RunOptions) error {
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN(), log.New(os.Stderr, "[STORE] ", log.LstdFlags))
	if err != nil {
		return err
	}
	defer st.DB.Close()

	id, err := st.CreateResearch(ctx, state.Query, state.Research, state.Critique, state.FinalAnswer, opts.Metadata())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "saved as %s\n", id)
	return nil
}

func buildLLM(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	client, err := openai_provider.NewClient(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if !cfg.LLM.Cache.Enabled {
		return client, nil
	}
	rdb, err := cache.Conn(ctx, cfg.Storage.Redis.Addr(), cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
	if err != nil {
		return nil, fmt.Errorf("llm cache enabled but redis unreachable: %w", err)
	}
	return cache.Wrap(client, rdb, cfg.LLM.Cache.TTL, log.New(os.Stderr, "[LLM-CACHE] ", log.LstdFlags)), nil
}
