package server

import (
	"github.com/mohammad-safakhou/inquest/internal/agent/core"
)

// HTTPError is the uniform error body returned by the API.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// RunRequest triggers one pipeline run. Optional fields land in the
// persisted record metadata only when the caller sets them.
type RunRequest struct {
	Query      string `json:"query"`
	UseRAG     *bool  `json:"use_rag,omitempty"`
	NumResults *int   `json:"num_results,omitempty"`
}

// RunResponse carries the computed state. RecordID is present when the run
// was persisted; Warning explains a persistence failure that did not affect
// the answer.
type RunResponse struct {
	core.RunState
	RecordID string `json:"record_id,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

type IngestTextRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

type IngestURLRequest struct {
	URL string `json:"url"`
}

type IngestResponse struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}
