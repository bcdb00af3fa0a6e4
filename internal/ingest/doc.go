// Package ingest moves capture files from a project's inbox into raw storage.
//
// A file is identified by the SHA256 of its content, so re-ingesting the same
// bytes under any name reports already_ingested instead of creating a second
// tape. Metadata writes are committed before the NAS backup attempt; a failed
// backup leaves the tape ingested with backup_status needs_backup and a
// needs_backup review item.
//
// IngestAll is the job variant of batch ingest and stops at the first hard
// failure. IngestEach is the foreground variant and records per-file errors
// instead.
package ingest
