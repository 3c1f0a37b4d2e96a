package core

import (
	"context"
	"fmt"
	"time"
)

// RunState accumulates the output of each pipeline stage. A field is set
// exactly when its producing stage has completed; stages only add fields,
// they never remove or rewrite earlier ones.
type RunState struct {
	Query       string `json:"query"`
	Plan        string `json:"plan,omitempty"`
	Research    string `json:"research,omitempty"`
	Critique    string `json:"critique,omitempty"`
	FinalAnswer string `json:"final_answer,omitempty"`
}

// RunOptions carries per-run knobs that end up in the persisted record metadata.
type RunOptions struct {
	UseCorpus  bool `json:"use_rag"`
	NumResults int  `json:"num_results"`
}

// Metadata renders the options as the open key/value map stored with a record.
func (o RunOptions) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"use_rag":     o.UseCorpus,
		"num_results": o.NumResults,
	}
}

// Passage is one retrieved chunk from the knowledge corpus. Passages are
// ephemeral; they are folded into the research text and never persisted.
type Passage struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// LLMProvider generates text from a prompt. Any error it returns is a hard
// failure for the stage that made the call.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher returns pre-formatted web search results. Implementations never
// fail: when no provider is configured or all providers error, they return
// deterministic fallback text instead.
type Searcher interface {
	Search(ctx context.Context, query string, k int) string
}

// KnowledgeRetriever returns the top-k corpus passages for a query. An empty
// slice means no corpus is loaded; that is not an error.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

// Observer receives pipeline lifecycle events. Implementations must not
// alter state or control flow; they run synchronously inline with the run.
type Observer interface {
	StageStart(stage string, state RunState)
	StageEnd(stage string, state RunState, took time.Duration)
	RunFailure(stage string, err error)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) StageStart(string, RunState)              {}
func (NopObserver) StageEnd(string, RunState, time.Duration) {}
func (NopObserver) RunFailure(string, error)                 {}

// GenerationError reports a failed or empty language model response.
type GenerationError struct {
	Msg string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Msg, e.Err)
	}
	return "generation failed: " + e.Msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StageError wraps a hard stage failure and names the stage that raised it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }
