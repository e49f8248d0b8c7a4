// Package jobs owns the in-memory record of every conversion job.
//
// A Store maps job IDs to Job values behind a read/write mutex. Records move
// through pending, processing, and then completed or failed, and the Store
// rejects any other transition. Callers always receive copies, so a snapshot
// never changes underneath them. Terminal transitions stamp CompletedAt in the
// same critical section as the state write.
package jobs
