package executor

import (
	"context"

	"convify/internal/jobs"
	"convify/internal/transcode"
)

// IdentifierResolver extracts a video ID from a source URL.
type IdentifierResolver interface {
	ResolveIdentifier(source string) (string, error)
}

// TitleFetcher looks up the display title for a video ID.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, videoID string) (string, error)
}

// Transcoder produces the output file and returns its path.
type Transcoder interface {
	Transcode(ctx context.Context, req transcode.Request) (string, error)
}

// PathValidator confirms a path lies inside the managed output root.
type PathValidator interface {
	ValidatePath(path string) (string, error)
}

// Admission is the rate gate plus the storage precondition.
type Admission interface {
	TryAdmit() bool
	CheckCapacity() error
}

// Listener observes job snapshots after every state change.
type Listener interface {
	JobUpdated(ctx context.Context, job jobs.Job)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, job jobs.Job)

// JobUpdated calls f.
func (f ListenerFunc) JobUpdated(ctx context.Context, job jobs.Job) { f(ctx, job) }
