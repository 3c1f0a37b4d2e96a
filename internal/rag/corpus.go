package rag

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/mohammad-safakhou/inquest/config"
	"github.com/mohammad-safakhou/inquest/internal/agent/core"
)

// Chunk is one indexed slice of an ingested document.
type Chunk struct {
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	Text   string `json:"text"`
	Seq    int    `json:"seq"`
}

// Corpus is an in-memory BM25 index over ingested document chunks. It
// implements core.KnowledgeRetriever. Reads run concurrently; ingestion
// takes the write lock so searches never observe a half-built index.
type Corpus struct {
	mu      sync.RWMutex
	index   bleve.Index
	meta    map[string]Chunk
	docs    map[string]int // source -> chunk count
	chunker Chunker
	logger  *log.Logger
}

// Stats summarises corpus content.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// NewCorpus builds an empty corpus.
func NewCorpus(cfg config.CorpusConfig, logger *log.Logger) (*Corpus, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create corpus index: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Corpus{
		index:   index,
		meta:    make(map[string]Chunk),
		docs:    make(map[string]int),
		chunker: Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		logger:  logger,
	}, nil
}

// AddDocument chunks and indexes one document under the given source label.
// Serialized against concurrent retrieval and other ingestions.
func (c *Corpus) AddDocument(source, text string) (int, error) {
	if source == "" {
		source = "unknown"
	}
	chunks := c.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %q has no indexable content", source)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, part := range chunks {
		chunk := Chunk{DocID: uuid.NewString(), Source: source, Text: part, Seq: i}
		if err := c.index.Index(chunk.DocID, chunk); err != nil {
			return i, fmt.Errorf("failed to index chunk %d of %q: %w", i, source, err)
		}
		c.meta[chunk.DocID] = chunk
	}
	c.docs[source] += len(chunks)
	c.logger.Printf("ingested %q: %d chunks", source, len(chunks))
	return len(chunks), nil
}

// Retrieve implements core.KnowledgeRetriever. An empty corpus yields an
// empty slice, never an error.
func (c *Corpus) Retrieve(_ context.Context, query string, k int) ([]core.Passage, error) {
	if k <= 0 {
		k = 3
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.meta) == 0 {
		return nil, nil
	}

	// over-fetch, then trim to k after resolving metadata
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), k*3, 0, false)
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("corpus search failed: %w", err)
	}

	var out []core.Passage
	for _, hit := range res.Hits {
		chunk, ok := c.meta[hit.ID]
		if !ok {
			continue
		}
		source := chunk.Source
		if source == "" {
			source = "unknown"
		}
		out = append(out, core.Passage{Content: chunk.Text, Source: source})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// Stats reports document and chunk counts at call time.
func (c *Corpus) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Documents: len(c.docs), Chunks: len(c.meta)}
}
