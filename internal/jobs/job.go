package jobs

import (
	"fmt"
	"strings"
	"time"
)

// State is a job lifecycle state.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ParseState maps a persisted string back to a State.
func ParseState(value string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(value))) {
	case StatePending:
		return StatePending, nil
	case StateProcessing:
		return StateProcessing, nil
	case StateCompleted:
		return StateCompleted, nil
	case StateFailed:
		return StateFailed, nil
	default:
		return "", fmt.Errorf("unknown job state %q", value)
	}
}

// Format is a conversion target.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatMP4 Format = "mp4"
	FormatMKV Format = "mkv"
)

// ParseFormat accepts a target format case-insensitively.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatMP3:
		return FormatMP3, nil
	case FormatMP4:
		return FormatMP4, nil
	case FormatMKV:
		return FormatMKV, nil
	default:
		return "", fmt.Errorf("unsupported format %q", value)
	}
}

// Job is a snapshot of one conversion request.
type Job struct {
	ID            string     `json:"jobId"`
	Source        string     `json:"url"`
	Format        Format     `json:"format"`
	State         State      `json:"status"`
	VideoID       string     `json:"videoId,omitempty"`
	Title         string     `json:"videoTitle,omitempty"`
	ResultPath    string     `json:"filePath,omitempty"`
	FailureReason string     `json:"errorMessage,omitempty"`
	FailureKind   string     `json:"errorKind,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Duration returns processing time for terminal jobs, or zero.
func (j Job) Duration() time.Duration {
	if j.CompletedAt == nil || j.StartedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

func (j Job) clone() Job {
	out := j
	if j.StartedAt != nil {
		started := *j.StartedAt
		out.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}
