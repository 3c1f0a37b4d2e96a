package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohammad-safakhou/inquest/tools/web_fetch"
)

// Chunker splits document text into overlapping pieces sized for retrieval.
type Chunker struct {
	Size    int
	Overlap int
}

// Split cuts text into chunks of at most Size characters, preferring to
// break on whitespace, with Overlap characters carried between neighbours.
func (c Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	size := c.Size
	if size <= 0 {
		size = 1000
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		// back up to the last whitespace so words stay intact
		cut := end
		for cut > start && !isSpace(text[cut-1]) {
			cut--
		}
		if cut == start {
			cut = end
		}
		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// IngestFile reads a text or markdown file into the corpus, using the file
// name as the source label.
func (c *Corpus) IngestFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return c.AddDocument(filepath.Base(path), string(data))
}

// IngestDir ingests every .txt and .md file directly under dir. Missing
// directories are not an error; the corpus just stays empty.
func (c *Corpus) IngestDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md":
		default:
			continue
		}
		n, err := c.IngestFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			c.logger.Printf("skipping %s: %v", entry.Name(), err)
			continue
		}
		total += n
	}
	return total, nil
}

// IngestURL fetches a page, extracts its article text and ingests it with
// the URL as source label.
func (c *Corpus) IngestURL(ctx context.Context, fetcher web_fetch.WebFetcher, url string) (int, error) {
	page, err := fetcher.Exec(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if strings.TrimSpace(page.Text) == "" {
		return 0, fmt.Errorf("no readable content at %s", url)
	}
	return c.AddDocument(url, page.Text)
}
