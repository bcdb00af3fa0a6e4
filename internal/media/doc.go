// Package media wraps ffmpeg and ffprobe for tape ingest, processing and export.
//
// Toolkit probes duration and size, renders thumbnails, runs scene detection
// and cuts clips. Every operation tolerates missing tools and failed runs by
// returning an empty or status-tagged result, so the pipelines can record what
// happened and move on. The pure helpers (ParsePTSTimes, BuildSegments,
// MergeShortSegments, ParseFFmpegDuration, ThumbnailSeek) carry the segment
// arithmetic and are tested without any subprocess.
package media
