package core

import (
	"context"
	"fmt"
	"strings"
)

// Stage is one transformation step in the fixed pipeline. A stage reads the
// accumulated state and returns it with exactly one new field set.
type Stage interface {
	Name() string
	Run(ctx context.Context, state RunState) (RunState, error)
}

// Placeholder text substituted when an auxiliary source degrades. Stable
// strings: callers and tests key off them.
const (
	NoCorpusPlaceholder       = "No knowledge base available. Ingest documents to enable corpus context."
	CorpusErrorPlaceholder    = "Unable to retrieve knowledge base context. Proceeding with web results only."
	CorpusDisabledPlaceholder = "Knowledge base lookup disabled for this run."
)

// plannerStage breaks the query into investigation angles via one LLM call.
type plannerStage struct {
	llm LLMProvider
}

func (plannerStage) Name() string { return "planner" }

func (s plannerStage) Run(ctx context.Context, state RunState) (RunState, error) {
	prompt := fmt.Sprintf(`You are a research planning expert. Break down this research topic into clear, actionable steps.

Topic: %s

Think step by step:
1. What are the main aspects of this topic?
2. What subtopics need investigation?
3. What questions need answering?
4. What order makes sense for research?

Return ONLY bullet points (no numbering). Be concise and specific.`, state.Query)

	plan, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return RunState{}, err
	}
	state.Plan = plan
	return state, nil
}

// researcherStage fuses web search results and corpus passages into research
// notes. Both lookups are recoverable; only the synthesis call is not.
type researcherStage struct {
	llm       LLMProvider
	search    Searcher
	retriever KnowledgeRetriever
	opts      RunOptions
	topK      int
}

func (researcherStage) Name() string { return "researcher" }

func (s researcherStage) Run(ctx context.Context, state RunState) (RunState, error) {
	webResults := s.search.Search(ctx, state.Query, s.opts.NumResults)
	corpusContext := s.corpusContext(ctx, state.Query)

	prompt := fmt.Sprintf(`Research Topic: %s

Research Plan:
%s

Web Results:
%s

Knowledge Base Context (from ingested documents):
%s

Your Task:
1. Synthesize information from both web and knowledge base
2. Identify key findings and patterns
3. Note any contradictions or important caveats
4. Provide well-structured, detailed research notes
5. Cite sources where possible

Format: Use clear sections with markdown headers.
Be comprehensive but concise.`, state.Query, state.Plan, webResults, corpusContext)

	research, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return RunState{}, err
	}
	state.Research = research
	return state, nil
}

func (s researcherStage) corpusContext(ctx context.Context, query string) string {
	if !s.opts.UseCorpus {
		return CorpusDisabledPlaceholder
	}
	if s.retriever == nil {
		return NoCorpusPlaceholder
	}
	topK := s.topK
	if topK <= 0 {
		topK = 3
	}
	passages, err := s.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return CorpusErrorPlaceholder
	}
	if len(passages) == 0 {
		return NoCorpusPlaceholder
	}
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		source := p.Source
		if source == "" {
			source = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", source, p.Content))
	}
	return strings.Join(parts, "\n\n")
}

// criticStage reviews the research for accuracy, gaps and contradictions.
// Pure transformation of existing state, no external lookups.
type criticStage struct {
	llm LLMProvider
}

func (criticStage) Name() string { return "critic" }

func (s criticStage) Run(ctx context.Context, state RunState) (RunState, error) {
	prompt := fmt.Sprintf(`You are a critical research analyst. Review this research and provide constructive criticism.

Query: %s

Research:
%s

Analyze and provide:
1. Accuracy Assessment: Are the claims sound?
2. Gaps: What important information is missing?
3. Source Quality: Are sources credible?
4. Contradictions: Any conflicting information?
5. Improvements: What could be added or clarified?
6. Confidence Level: How confident are you in these findings?

Be fair but thorough. Point out both strengths and weaknesses.`, state.Query, state.Research)

	critique, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return RunState{}, err
	}
	state.Critique = critique
	return state, nil
}

// summarizerStage produces the final structured answer from research and
// critique. Terminal stage; its output is what the engine returns.
type summarizerStage struct {
	llm LLMProvider
}

func (summarizerStage) Name() string { return "summarizer" }

func (s summarizerStage) Run(ctx context.Context, state RunState) (RunState, error) {
	prompt := fmt.Sprintf(`Create a final, well-structured research summary for this query: %s

Use:
Research Findings:
%s

Critical Review:
%s

Your Task:
1. Extract the most important findings
2. Incorporate critique feedback to improve quality
3. Create a clear executive summary
4. List key takeaways (3-5 bullets)
5. Suggest next steps or further research if needed
6. Include confidence assessment

Format as markdown with:
- # Executive Summary
- ## Key Findings
- ## Takeaways
- ## Confidence Assessment
- ## Next Steps (if applicable)

Make it insightful, clear, and actionable.`, state.Query, state.Research, state.Critique)

	answer, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return RunState{}, err
	}
	state.FinalAnswer = answer
	return state, nil
}
