package api

import (
	"time"

	"convify/internal/deps"
	"convify/internal/executor"
	"convify/internal/jobs"
	"convify/internal/youtube"
)

// ConvertRequest is the body of POST /v1/convert/async.
type ConvertRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// ConvertResponse is returned with 202 Accepted.
type ConvertResponse struct {
	JobID   string     `json:"jobId"`
	Status  jobs.State `json:"status"`
	Message string     `json:"message"`
}

// FilepathRequest is the body of POST /v1/download.
type FilepathRequest struct {
	Filepath string `json:"filepath"`
}

// JobListResponse wraps the in-memory job snapshot.
type JobListResponse struct {
	Jobs   []jobs.Job         `json:"jobs"`
	Counts map[jobs.State]int `json:"counts"`
}

// HealthResponse reports tool availability and executor counters.
type HealthResponse struct {
	Status       string              `json:"status"`
	Time         time.Time           `json:"time"`
	Dependencies []deps.Status       `json:"dependencies"`
	Executor     executor.Stats      `json:"executor"`
	TitleCache   *youtube.CacheStats `json:"title_cache,omitempty"`
}
