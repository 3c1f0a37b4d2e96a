package web_search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/inquest/config"
	"github.com/mohammad-safakhou/inquest/tools/web_search/models"
)

type fakeProvider struct {
	name       string
	configured bool
	results    []models.Result
	err        error
	calls      int
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	f.calls++
	return f.results, f.err
}

func TestSearchUsesFirstConfiguredProvider(t *testing.T) {
	first := &fakeProvider{name: "First", configured: true, results: []models.Result{
		{Title: "Go docs", URL: "https://go.dev", Snippet: "The Go programming language"},
	}}
	second := &fakeProvider{name: "Second", configured: true, results: []models.Result{
		{Title: "should not be used"},
	}}
	chain := NewChainWith(nil, first, second)

	got := chain.Search(context.Background(), "golang", 5)
	if !strings.Contains(got, "First search results for 'golang':") {
		t.Errorf("expected first provider header, got:\n%s", got)
	}
	if !strings.Contains(got, "1. Go docs") || !strings.Contains(got, "URL: https://go.dev") {
		t.Errorf("expected formatted result, got:\n%s", got)
	}
	if second.calls != 0 {
		t.Errorf("second provider should not be queried, got %d calls", second.calls)
	}
}

func TestSearchSkipsUnconfiguredProviders(t *testing.T) {
	skipped := &fakeProvider{name: "Skipped", configured: false}
	used := &fakeProvider{name: "Used", configured: true, results: []models.Result{{Title: "hit"}}}
	chain := NewChainWith(nil, skipped, used)

	got := chain.Search(context.Background(), "q", 5)
	if skipped.calls != 0 {
		t.Errorf("unconfigured provider must not be queried, got %d calls", skipped.calls)
	}
	if !strings.Contains(got, "Used search results") {
		t.Errorf("expected fallback to configured provider, got:\n%s", got)
	}
}

func TestSearchFallsThroughOnErrorAndEmpty(t *testing.T) {
	failing := &fakeProvider{name: "Failing", configured: true, err: errors.New("http 500")}
	empty := &fakeProvider{name: "Empty", configured: true}
	working := &fakeProvider{name: "Working", configured: true, results: []models.Result{{Title: "hit"}}}
	chain := NewChainWith(nil, failing, empty, working)

	got := chain.Search(context.Background(), "q", 5)
	if failing.calls != 1 || empty.calls != 1 || working.calls != 1 {
		t.Errorf("expected every provider tried once, got %d/%d/%d", failing.calls, empty.calls, working.calls)
	}
	if !strings.Contains(got, "Working search results") {
		t.Errorf("expected last provider's results, got:\n%s", got)
	}
}

func TestSearchReturnsFallbackTextWhenNothingWorks(t *testing.T) {
	chain := NewChain(config.SearchConfig{}, nil)

	got := chain.Search(context.Background(), "rust vs go", 5)
	if !strings.Contains(got, "Status: using fallback results") {
		t.Errorf("expected fallback marker, got:\n%s", got)
	}
	if !strings.Contains(got, "rust vs go") {
		t.Errorf("expected query echoed in fallback text, got:\n%s", got)
	}
}

func TestFormatResultsDefaultsMissingTitle(t *testing.T) {
	p := &fakeProvider{name: "P", configured: true, results: []models.Result{
		{URL: "https://example.com", Snippet: "snippet"},
	}}
	chain := NewChainWith(nil, p)

	got := chain.Search(context.Background(), "q", 5)
	if !strings.Contains(got, "1. No title") {
		t.Errorf("expected title fallback, got:\n%s", got)
	}
}
