package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

// Engine runs the fixed four-stage pipeline: planner -> researcher ->
// critic -> summarizer. It holds no mutable per-run state, so a single
// Engine is safe for concurrent runs.
type Engine struct {
	llm       LLMProvider
	search    Searcher
	retriever KnowledgeRetriever
	topK      int
	observer  Observer
	logger    *log.Logger
}

// NewEngine wires the pipeline ports. retriever may be nil when no corpus is
// configured; observer and logger may be nil.
func NewEngine(llm LLMProvider, search Searcher, retriever KnowledgeRetriever, topK int, observer Observer, logger *log.Logger) (*Engine, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if search == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		llm:       llm,
		search:    search,
		retriever: retriever,
		topK:      topK,
		observer:  observer,
		logger:    logger,
	}, nil
}

// Run executes the pipeline for one query. On a hard stage failure the
// partially-built state is discarded and a StageError is returned; there is
// no partial result. Auxiliary-source failures inside the researcher stage
// degrade to placeholder text and do not abort the run.
func (e *Engine) Run(ctx context.Context, query string, opts RunOptions) (RunState, error) {
	stages := []Stage{
		plannerStage{llm: e.llm},
		researcherStage{llm: e.llm, search: e.search, retriever: e.retriever, opts: opts, topK: e.topK},
		criticStage{llm: e.llm},
		summarizerStage{llm: e.llm},
	}

	state := RunState{Query: query}
	for _, stage := range stages {
		e.observer.StageStart(stage.Name(), state)
		started := time.Now()
		next, err := stage.Run(ctx, state)
		if err != nil {
			e.logger.Printf("stage %s failed after %s: %v", stage.Name(), time.Since(started).Round(time.Millisecond), err)
			e.observer.RunFailure(stage.Name(), err)
			return RunState{}, &StageError{Stage: stage.Name(), Err: err}
		}
		state = next
		e.observer.StageEnd(stage.Name(), state, time.Since(started))
	}
	return state, nil
}
