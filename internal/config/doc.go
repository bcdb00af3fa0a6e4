// Package config loads, normalizes, and validates tapedeck configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the TAPEDECK_NAS_ROOT environment
// override. Struct tags are checked with go-playground/validator and the
// optional backup retry schedule is parsed as a cron expression.
//
// ProjectPaths resolves the fixed per-project directory layout (inbox, raw,
// segments, exports, thumbnails, logs, NAS backup) and the project database
// location. Always obtain paths through this package so the CLI, daemon and
// pipelines agree on where files live.
package config
