// Package daemon coordinates the long-running tapedeck process for one
// project.
//
// It takes the project's flock so only one daemon owns a project database,
// marks jobs orphaned by a previous process as stale, starts the single job
// worker and serves the JSON API. A cron scheduler retries open NAS backups
// and prunes old log files.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown and periodic maintenance.
package daemon
