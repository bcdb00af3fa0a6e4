package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tapedeck/internal/logging"
)

// Thumbnail outcomes.
const (
	ThumbnailSkipped     = "skipped"
	ThumbnailUnavailable = "unavailable"
	ThumbnailCreated     = "created"
	ThumbnailTimeout     = "timeout"
	ThumbnailError       = "error"
)

// ThumbnailResult reports a thumbnail attempt. OutputPath is empty unless a
// thumbnail exists after the call.
type ThumbnailResult struct {
	Status     string
	Message    string
	OutputPath string
}

// GenerateThumbnail extracts one frame from videoPath into outPath. Failures
// are reported through the result status, never returned.
func (t *Toolkit) GenerateThumbnail(ctx context.Context, videoPath, outPath string, force bool) ThumbnailResult {
	if _, err := os.Stat(outPath); err == nil && !force {
		return ThumbnailResult{Status: ThumbnailSkipped, Message: "Thumbnail already exists.", OutputPath: outPath}
	}
	if !t.FFmpegAvailable() {
		return ThumbnailResult{Status: ThumbnailUnavailable, Message: "ffmpeg is not installed."}
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return ThumbnailResult{Status: ThumbnailError, Message: fmt.Sprintf("Create thumbnail directory: %v", err)}
	}

	seek := 1.0
	if duration, ok := t.DurationSeconds(ctx, videoPath); ok {
		seek = ThumbnailSeek(duration)
	}
	overwrite := "-n"
	if force {
		overwrite = "-y"
	}
	result := t.run(ctx, t.ThumbnailTimeout, t.FFmpeg,
		"-hide_banner",
		overwrite,
		"-ss", fmt.Sprintf("%.2f", seek),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", t.ThumbnailWidth),
		outPath,
	)
	logger := t.log()
	if result.timedOut {
		logging.WarnWithContext(logger, "thumbnail generation timed out", "thumbnail_timeout",
			logging.String("path", videoPath),
			logging.Duration("timeout", t.ThumbnailTimeout),
			logging.String(logging.FieldImpact, "tape has no thumbnail"),
		)
		return ThumbnailResult{Status: ThumbnailTimeout, Message: "Thumbnail generation timed out."}
	}
	if result.err != nil {
		logging.WarnWithContext(logger, "thumbnail generation failed", "thumbnail_failed",
			logging.String("path", videoPath),
			logging.Error(result.err),
			logging.String("stderr", lastLine(result.stderr)),
			logging.String(logging.FieldImpact, "tape has no thumbnail"),
		)
		return ThumbnailResult{Status: ThumbnailError, Message: "Thumbnail generation failed. Check logs for details."}
	}
	return ThumbnailResult{Status: ThumbnailCreated, Message: "Thumbnail created.", OutputPath: outPath}
}

// ThumbnailSeek picks the frame offset: ten percent in, kept between 1s and 30s.
func ThumbnailSeek(duration float64) float64 {
	seek := duration * 0.10
	if seek < 1.0 {
		return 1.0
	}
	if seek > 30.0 {
		return 30.0
	}
	return seek
}
