package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type scriptedLLM struct {
	prompts []string
	outputs []string
	failAt  int // 1-based call index to fail on, 0 = never
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	call := len(s.prompts)
	if s.failAt != 0 && call == s.failAt {
		return "", errors.New("model unavailable")
	}
	if call <= len(s.outputs) {
		return s.outputs[call-1], nil
	}
	return fmt.Sprintf("output-%d", call), nil
}

type stubSearcher struct{ out string }

func (s stubSearcher) Search(ctx context.Context, query string, k int) string { return s.out }

type stubRetriever struct {
	passages []Passage
	err      error
}

func (s stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	return s.passages, s.err
}

type recordingObserver struct {
	events   []string
	failures []string
}

func (r *recordingObserver) StageStart(stage string, state RunState) {
	r.events = append(r.events, "start:"+stage)
}

func (r *recordingObserver) StageEnd(stage string, state RunState, took time.Duration) {
	r.events = append(r.events, "end:"+stage)
}

func (r *recordingObserver) RunFailure(stage string, err error) {
	r.failures = append(r.failures, stage)
}

func newTestEngine(t *testing.T, llm LLMProvider, retriever KnowledgeRetriever, observer Observer) *Engine {
	t.Helper()
	e, err := NewEngine(llm, stubSearcher{out: "1. Some result"}, retriever, 3, observer, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNewEngineRequiresPorts(t *testing.T) {
	if _, err := NewEngine(nil, stubSearcher{}, nil, 3, nil, nil); err == nil {
		t.Fatal("expected error for nil llm")
	}
	if _, err := NewEngine(&scriptedLLM{}, nil, nil, 3, nil, nil); err == nil {
		t.Fatal("expected error for nil searcher")
	}
}

func TestRunFillsAllStages(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{"the plan", "the research", "the critique", "the answer"}}
	e := newTestEngine(t, llm, nil, nil)

	state, err := e.Run(context.Background(), "what is quantum computing", RunOptions{NumResults: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Query != "what is quantum computing" {
		t.Errorf("query not preserved: %q", state.Query)
	}
	if state.Plan != "the plan" || state.Research != "the research" ||
		state.Critique != "the critique" || state.FinalAnswer != "the answer" {
		t.Errorf("unexpected state: %+v", state)
	}
	if len(llm.prompts) != 4 {
		t.Fatalf("expected 4 model calls, got %d", len(llm.prompts))
	}
}

func TestRunStageFailureDiscardsState(t *testing.T) {
	llm := &scriptedLLM{failAt: 3} // critic
	obs := &recordingObserver{}
	e := newTestEngine(t, llm, nil, obs)

	state, err := e.Run(context.Background(), "q", RunOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %T: %v", err, err)
	}
	if se.Stage != "critic" {
		t.Errorf("expected failing stage critic, got %q", se.Stage)
	}
	if state != (RunState{}) {
		t.Errorf("expected empty state on failure, got %+v", state)
	}
	if len(obs.failures) != 1 || obs.failures[0] != "critic" {
		t.Errorf("expected one critic failure notification, got %v", obs.failures)
	}
}

func TestObserverSeesStageLifecycle(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, &scriptedLLM{}, nil, obs)

	if _, err := e.Run(context.Background(), "q", RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"start:planner", "end:planner",
		"start:researcher", "end:researcher",
		"start:critic", "end:critic",
		"start:summarizer", "end:summarizer",
	}
	if len(obs.events) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(obs.events), obs.events)
	}
	for i, ev := range want {
		if obs.events[i] != ev {
			t.Errorf("event %d: expected %q, got %q", i, ev, obs.events[i])
		}
	}
}

// researcherPrompt returns the prompt the researcher stage sent, i.e. the
// second model call of a run.
func researcherPrompt(t *testing.T, llm *scriptedLLM) string {
	t.Helper()
	if len(llm.prompts) < 2 {
		t.Fatalf("expected at least 2 model calls, got %d", len(llm.prompts))
	}
	return llm.prompts[1]
}

func TestResearcherMarksCorpusDisabled(t *testing.T) {
	llm := &scriptedLLM{}
	e := newTestEngine(t, llm, stubRetriever{passages: []Passage{{Content: "x"}}}, nil)

	if _, err := e.Run(context.Background(), "q", RunOptions{UseCorpus: false}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(researcherPrompt(t, llm), CorpusDisabledPlaceholder) {
		t.Error("expected disabled-corpus placeholder in researcher prompt")
	}
}

func TestResearcherMarksMissingCorpus(t *testing.T) {
	llm := &scriptedLLM{}
	e := newTestEngine(t, llm, nil, nil)

	if _, err := e.Run(context.Background(), "q", RunOptions{UseCorpus: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(researcherPrompt(t, llm), NoCorpusPlaceholder) {
		t.Error("expected no-corpus placeholder in researcher prompt")
	}
}

func TestResearcherDegradesOnRetrieverError(t *testing.T) {
	llm := &scriptedLLM{}
	e := newTestEngine(t, llm, stubRetriever{err: errors.New("index gone")}, nil)

	state, err := e.Run(context.Background(), "q", RunOptions{UseCorpus: true})
	if err != nil {
		t.Fatalf("retriever failure must not abort the run: %v", err)
	}
	if state.FinalAnswer == "" {
		t.Error("expected completed run despite retriever failure")
	}
	if !strings.Contains(researcherPrompt(t, llm), CorpusErrorPlaceholder) {
		t.Error("expected corpus-error placeholder in researcher prompt")
	}
}

func TestResearcherFormatsPassagesWithSource(t *testing.T) {
	llm := &scriptedLLM{}
	retriever := stubRetriever{passages: []Passage{
		{Content: "entanglement is spooky", Source: "notes.md"},
		{Content: "anonymous passage"},
	}}
	e := newTestEngine(t, llm, retriever, nil)

	if _, err := e.Run(context.Background(), "q", RunOptions{UseCorpus: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	prompt := researcherPrompt(t, llm)
	if !strings.Contains(prompt, "[Source: notes.md]\nentanglement is spooky") {
		t.Error("expected sourced passage in researcher prompt")
	}
	if !strings.Contains(prompt, "[Source: unknown]\nanonymous passage") {
		t.Error("expected unknown-source fallback in researcher prompt")
	}
}
