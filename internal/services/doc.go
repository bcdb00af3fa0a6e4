// Package services defines shared utilities consumed by the ingest, processing
// and export pipelines and by the job worker.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, tape IDs, project slugs and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so user input errors,
//     missing tools and hard failures can be told apart by callers.
package services
