// Package executor accepts conversion requests and runs them on a fixed pool
// of worker goroutines.
//
// Submit performs admission, records a pending job, and enqueues its ID on a
// bounded channel before returning, so callers can poll status immediately.
// Workers take IDs off the channel and drive each job through metadata
// lookup, the storage capacity check, a resource guard permit, the transcode
// collaborator, and output path validation. Every failure is captured on the
// job record with a stable failure kind; none escapes the worker, and a
// recovered panic becomes a failed job.
//
// Listeners receive a snapshot after each state change. The archive ledger
// and the Redis mirror hook in this way.
package executor
