// Package preflight provides readiness checks for the filesystem paths and
// external tools a tapedeck project depends on.
//
// The daemon runs RunAll once at startup and logs every failed check; the
// CLI status command renders the same results as a table. A failed check never
// blocks startup: media steps degrade on their own when a tool is missing and
// backups are deferred while the NAS is offline.
package preflight
