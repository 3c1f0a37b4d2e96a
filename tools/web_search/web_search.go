package web_search

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mohammad-safakhou/inquest/config"
	"github.com/mohammad-safakhou/inquest/tools/web_search/brave"
	"github.com/mohammad-safakhou/inquest/tools/web_search/models"
	"github.com/mohammad-safakhou/inquest/tools/web_search/serper"
	"github.com/mohammad-safakhou/inquest/tools/web_search/tavily"
)

// Provider is one web search backend in the fallback chain.
type Provider interface {
	Name() string
	Configured() bool
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

// Chain tries providers in fixed priority order and formats the first
// non-empty result set. It never fails: when nothing is configured or every
// provider errors, Search returns deterministic fallback text so the
// pipeline can continue.
type Chain struct {
	providers []Provider
	logger    *log.Logger
}

// NewChain builds the fallback chain from config. Priority order is fixed:
// tavily, serper, brave.
func NewChain(cfg config.SearchConfig, logger *log.Logger) *Chain {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Chain{
		providers: []Provider{
			tavily.Search{ApiKey: cfg.TavilyAPIKey},
			serper.Search{ApiKey: cfg.SerperAPIKey},
			brave.Search{ApiKey: cfg.BraveAPIKey},
		},
		logger: logger,
	}
}

// NewChainWith builds a chain over an explicit provider list, for tests and
// custom priority orders.
func NewChainWith(logger *log.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Chain{providers: providers, logger: logger}
}

// Search implements core.Searcher.
func (c *Chain) Search(ctx context.Context, query string, k int) string {
	if k <= 0 {
		k = 5
	}
	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}
		results, err := p.Discover(ctx, query, k)
		if err != nil {
			c.logger.Printf("%s search failed: %v", p.Name(), err)
			continue
		}
		if len(results) == 0 {
			c.logger.Printf("%s returned no results for %q", p.Name(), query)
			continue
		}
		return formatResults(p.Name(), query, results)
	}
	return FallbackText(query)
}

func formatResults(provider, query string, results []models.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s search results for '%s':\n\n", provider, query)
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n\n", i+1, title, r.URL, r.Snippet)
	}
	return b.String()
}

// FallbackText is the deterministic placeholder substituted when no search
// backend produced results.
func FallbackText(query string) string {
	return fmt.Sprintf(`Web search results for '%s':

Note: no search provider configured or all providers failed.
Set one of tavily_api_key, serper_api_key or brave_api_key to enable live results.

Search Query: %s
Status: using fallback results
`, query, query)
}
