package media

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"tapedeck/internal/logging"
	"tapedeck/internal/media/ffprobe"
)

// Metadata holds probed facts about a video file. Nil fields could not be determined.
type Metadata struct {
	DurationSeconds *float64
	FileSizeBytes   *int64
}

var ffmpegDurationPattern = regexp.MustCompile(`Duration: (\d+):(\d+):(\d+\.\d+)`)

// ProbeMetadata returns duration and size for path. Size comes from stat and is
// independent of the media tools. Neither lookup failing is an error.
func (t *Toolkit) ProbeMetadata(ctx context.Context, path string) Metadata {
	var meta Metadata
	if info, err := os.Stat(path); err == nil {
		size := info.Size()
		meta.FileSizeBytes = &size
	} else {
		logging.WarnWithContext(t.log(), "file size lookup failed", "media_metadata_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file size left empty"),
		)
	}
	if duration, ok := t.DurationSeconds(ctx, path); ok {
		meta.DurationSeconds = &duration
	}
	return meta
}

// DurationSeconds tries ffprobe first and falls back to parsing ffmpeg's
// diagnostic output.
func (t *Toolkit) DurationSeconds(ctx context.Context, path string) (float64, bool) {
	logger := t.log()
	if t.FFprobeAvailable() {
		probeCtx, cancel := context.WithTimeout(ctx, t.ProbeTimeout)
		result, err := ffprobe.Inspect(probeCtx, t.FFprobe, path)
		cancel()
		if err == nil {
			if duration, ok := result.DurationSeconds(); ok {
				return duration, true
			}
		}
		logging.WarnWithContext(logger, "ffprobe failed", "ffprobe_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "falling back to ffmpeg duration parsing"),
		)
	}

	if !t.FFmpegAvailable() {
		logger.Info("ffmpeg not available for duration",
			logging.Event("ffmpeg_missing"),
			logging.String("path", path),
		)
		return 0, false
	}

	// ffmpeg exits non-zero without an output file but still prints the input summary.
	result := t.run(ctx, t.ProbeTimeout, t.FFmpeg, "-hide_banner", "-i", path)
	if result.timedOut {
		logging.WarnWithContext(logger, "ffmpeg duration probe timed out", "ffmpeg_duration_timeout",
			logging.String("path", path),
			logging.Duration("timeout", t.ProbeTimeout),
			logging.String(logging.FieldImpact, "duration left empty"),
		)
		return 0, false
	}
	duration, ok := ParseFFmpegDuration(result.stderr)
	if !ok {
		logging.WarnWithContext(logger, "ffmpeg duration probe failed", "ffmpeg_duration_failed",
			logging.String("path", path),
			logging.String("stderr", lastLine(result.stderr)),
			logging.String(logging.FieldImpact, "duration left empty"),
		)
	}
	return duration, ok
}

// ParseFFmpegDuration extracts "Duration: HH:MM:SS.ss" from ffmpeg stderr.
func ParseFFmpegDuration(stderr string) (float64, bool) {
	match := ffmpegDurationPattern.FindStringSubmatch(stderr)
	if match == nil {
		return 0, false
	}
	hours, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(hours*3600+minutes*60) + seconds, true
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return text[idx+1:]
	}
	return text
}
