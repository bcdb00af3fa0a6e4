// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes the streams and format sections; the
// Result helpers extract the container duration (falling back to stream
// durations) used by media metadata probing.
package ffprobe
