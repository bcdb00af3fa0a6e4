// Command tapedeck is the operator CLI for a VHS digitization project.
//
// Pipeline commands (ingest, process, export) run in the foreground against
// the project database and refuse to start while a daemon owns the project;
// submit them through the daemon's HTTP API instead. Read-only commands and
// review housekeeping work either way.
//
// `tapedeck serve` runs the daemon: the background job worker, the JSON
// polling API and scheduled NAS backup retries.
package main
