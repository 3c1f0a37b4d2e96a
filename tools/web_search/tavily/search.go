package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/inquest/tools/web_search/models"
)

// Search queries the Tavily AI search API.
// https://docs.tavily.com/docs/rest-api
type Search struct {
	ApiKey string
}

func (Search) Name() string { return "Tavily" }

func (s Search) Configured() bool { return s.ApiKey != "" }

func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	payload := map[string]any{
		"api_key":        s.ApiKey,
		"query":          q,
		"max_results":    k,
		"include_answer": true,
	}
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", "https://api.tavily.com/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
	}
	var raw struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []models.Result
	if raw.Answer != "" {
		out = append(out, models.Result{Title: "Answer", Snippet: raw.Answer})
	}
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}
