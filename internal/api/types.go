package api

import "time"

// TranslateResponse is the success body of POST /v1/translate.
type TranslateResponse struct {
	DownloadURL string `json:"downloadUrl"`
	RunID       string `json:"runId"`
}

// ErrorResponse is the uniform failure body. It never carries internal
// failure detail.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RunResponse is the body of GET /v1/runs/{id}. last_error is deliberately
// not exposed.
type RunResponse struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	TargetLang  string     `json:"targetLang"`
	OutputKey   string     `json:"outputKey,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
