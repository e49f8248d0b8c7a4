// Package services defines shared utilities consumed by the conversion
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, pipeline steps, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that tag failures so the
//     executor can persist a stable failure kind on each job.
//
// Use these helpers when wiring new collaborators so failure reporting stays
// uniform across the pipeline.
package services
