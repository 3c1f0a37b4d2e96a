package rag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/inquest/config"
)

func newTestCorpus(t *testing.T) *Corpus {
	t.Helper()
	c, err := NewCorpus(config.CorpusConfig{ChunkSize: 200, ChunkOverlap: 20, TopK: 3}, nil)
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	return c
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	c := newTestCorpus(t)
	passages, err := c.Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Retrieve on empty corpus: %v", err)
	}
	if len(passages) != 0 {
		t.Errorf("expected no passages, got %d", len(passages))
	}
}

func TestAddDocumentAndRetrieve(t *testing.T) {
	c := newTestCorpus(t)
	n, err := c.AddDocument("physics.md", "Quantum entanglement links particle states across distance.")
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one chunk")
	}

	passages, err := c.Retrieve(context.Background(), "entanglement", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("expected a match for entanglement")
	}
	if passages[0].Source != "physics.md" {
		t.Errorf("expected source physics.md, got %q", passages[0].Source)
	}
	if !strings.Contains(passages[0].Content, "entanglement") {
		t.Errorf("unexpected passage content: %q", passages[0].Content)
	}
}

func TestAddDocumentRejectsEmptyContent(t *testing.T) {
	c := newTestCorpus(t)
	if _, err := c.AddDocument("empty.txt", "   \n\t "); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestRetrieveLimitsToK(t *testing.T) {
	c := newTestCorpus(t)
	for i := 0; i < 5; i++ {
		doc := strings.Repeat("gravity waves from merging black holes. ", 10)
		if _, err := c.AddDocument("doc.txt", doc); err != nil {
			t.Fatalf("AddDocument %d: %v", i, err)
		}
	}
	passages, err := c.Retrieve(context.Background(), "gravity", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(passages) > 2 {
		t.Errorf("expected at most 2 passages, got %d", len(passages))
	}
}

func TestStatsCountsDocumentsAndChunks(t *testing.T) {
	c := newTestCorpus(t)
	if _, err := c.AddDocument("a.txt", "alpha beta gamma"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if _, err := c.AddDocument("b.txt", strings.Repeat("delta epsilon ", 50)); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	stats := c.Stats()
	if stats.Documents != 2 {
		t.Errorf("expected 2 documents, got %d", stats.Documents)
	}
	if stats.Chunks < 2 {
		t.Errorf("expected at least 2 chunks, got %d", stats.Chunks)
	}
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("notes.md", "markdown notes about databases")
	write("readme.txt", "plain text about indexes")
	write("binary.bin", "skipped payload")

	c := newTestCorpus(t)
	n, err := c.IngestDir(dir)
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if n == 0 {
		t.Fatal("expected chunks ingested")
	}
	if got := c.Stats().Documents; got != 2 {
		t.Errorf("expected 2 documents (bin skipped), got %d", got)
	}
}

func TestIngestDirMissingIsNotAnError(t *testing.T) {
	c := newTestCorpus(t)
	n, err := c.IngestDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 chunks, got %d", n)
	}
}

func TestChunkerSplit(t *testing.T) {
	c := Chunker{Size: 50, Overlap: 10}
	words := strings.Repeat("lorem ipsum dolor sit amet ", 20)
	chunks := c.Split(words)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 50 {
			t.Errorf("chunk %d exceeds size: %d chars", i, len(chunk))
		}
		if chunk != strings.TrimSpace(chunk) {
			t.Errorf("chunk %d not trimmed: %q", i, chunk)
		}
	}
}

func TestChunkerSplitEmpty(t *testing.T) {
	if got := (Chunker{}).Split("  \n "); got != nil {
		t.Errorf("expected nil for blank input, got %v", got)
	}
}

func TestChunkerSplitUnbreakableRun(t *testing.T) {
	c := Chunker{Size: 10, Overlap: 2}
	chunks := c.Split(strings.Repeat("x", 35))
	if len(chunks) == 0 {
		t.Fatal("expected chunks for unbroken text")
	}
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total < 35 {
		t.Errorf("chunks dropped content: total %d of 35", total)
	}
}
