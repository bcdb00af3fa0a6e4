// Package logging assembles structured slog loggers and formatting helpers used
// across tapedeck.
//
// It owns the configurable console/JSON handlers, tees project loggers into a
// per-project log file, and exposes context-aware helpers so pipeline and
// worker code can tag log lines with job IDs, tape IDs, project slugs and
// correlation IDs. Every state transition carries an event_type field. The
// package also provides a no-op logger for tests.
package logging
