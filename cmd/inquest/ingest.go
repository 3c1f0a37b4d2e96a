package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/inquest/config"
	"github.com/mohammad-safakhou/inquest/internal/rag"
	"github.com/mohammad-safakhou/inquest/tools/web_fetch"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var urls []string

	var ingest = &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest documents into the knowledge corpus and report its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(urls) == 0 {
				return fmt.Errorf("nothing to ingest: pass files or --url")
			}
			cfg := config.LoadConfig(cfgPath)
			corpus, err := rag.NewCorpus(cfg.Corpus, log.New(os.Stderr, "[CORPUS] ", log.LstdFlags))
			if err != nil {
				return err
			}

			total := 0
			for _, path := range args {
				n, err := corpus.IngestFile(path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				total += n
			}
			if len(urls) > 0 {
				fetcher, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType,
					time.Duration(cfg.Corpus.FetchTimeout), cfg.Corpus.FetchMaxChar)
				if err != nil {
					return err
				}
				for _, u := range urls {
					n, err := corpus.IngestURL(cmd.Context(), fetcher, u)
					if err != nil {
						return fmt.Errorf("ingest %s: %w", u, err)
					}
					total += n
				}
			}

			stats := corpus.Stats()
			fmt.Printf("ingested %d chunks (%d documents, %d chunks in corpus)\n", total, stats.Documents, stats.Chunks)
			return nil
		},
	}
	ingest.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	ingest.Flags().StringSliceVar(&urls, "url", nil, "URL to fetch and ingest (repeatable)")

	return ingest
}
