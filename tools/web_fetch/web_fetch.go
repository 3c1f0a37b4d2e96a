package web_fetch

import (
	"context"
	"fmt"
	"time"

	fetcher "github.com/mohammad-safakhou/inquest/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/inquest/tools/web_fetch/models"
)

const (
	DefaultTimeoutMS = 15000
	MaxCharsDefault  = 20000
)

// WebFetcher fetches a page and extracts its readable article text.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Page, error)
}

type FetcherType string

const ChromedpFetcherType FetcherType = "chromedp"

func NewWebFetcher(fetcherType FetcherType, timeoutMS time.Duration, maxChars int) (WebFetcher, error) {
	if timeoutMS <= 0 {
		timeoutMS = DefaultTimeoutMS
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}
	switch fetcherType {
	case ChromedpFetcherType:
		return &fetcher.Fetch{TimeoutMS: timeoutMS, MaxChars: maxChars}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", fetcherType)
	}
}
