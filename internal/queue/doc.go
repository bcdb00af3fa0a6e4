// Package queue persists background jobs in the project database.
//
// A job is created queued, moved to running by the worker and finished as
// success, failed, canceled or stale. Percent is clamped to 0..100 on every
// write and started_at/finished_at are written once, the first time their
// transition happens. Writes retry with a fixed backoff while SQLite reports
// lock contention.
//
// Payloads and results are typed per job type (see payloads.go) and only
// encoded to JSON at this package's boundary. RecoverStale runs at startup so
// a job orphaned by a crash never stays running forever.
package queue
