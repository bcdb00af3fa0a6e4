package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tapedeck/internal/logging"
)

// Clip export outcomes.
const (
	ClipExported = "exported"
	ClipFailed   = "failed"
)

// ClipResult reports one clip export attempt.
type ClipResult struct {
	Status       string
	Message      string
	UsedFallback bool
}

// ExportClip cuts [start, start+duration) out of src into dst. A stream copy is
// tried first; if it fails the clip is re-encoded with libx264/aac. Failures
// are reported through the result so one bad clip does not stop a batch.
func (t *Toolkit) ExportClip(ctx context.Context, src, dst string, start, duration float64) ClipResult {
	if duration <= 0 {
		return ClipResult{Status: ClipFailed, Message: "Segment has no duration."}
	}
	if !t.FFmpegAvailable() {
		return ClipResult{Status: ClipFailed, Message: "ffmpeg is not installed."}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ClipResult{Status: ClipFailed, Message: fmt.Sprintf("Create output directory: %v", err)}
	}

	logger := t.log()
	seek := fmt.Sprintf("%.3f", start)
	length := fmt.Sprintf("%.3f", duration)

	copyRun := t.run(ctx, t.ExportTimeout, t.FFmpeg,
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", seek, "-i", src, "-t", length,
		"-c", "copy", "-avoid_negative_ts", "make_zero",
		dst,
	)
	if copyRun.ok() && fileHasContent(dst) {
		return ClipResult{Status: ClipExported, Message: "Exported with stream copy."}
	}
	if ctx.Err() != nil {
		removePartial(dst)
		return ClipResult{Status: ClipFailed, Message: "Export canceled."}
	}
	logger.Info("stream copy failed, re-encoding clip",
		logging.Event("clip_copy_failed"),
		logging.String("output", dst),
		logging.Bool("timed_out", copyRun.timedOut),
		logging.String("stderr", lastLine(copyRun.stderr)),
	)
	removePartial(dst)

	encodeRun := t.run(ctx, t.ExportTimeout, t.FFmpeg,
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", seek, "-i", src, "-t", length,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "20",
		"-c:a", "aac", "-b:a", "160k",
		"-movflags", "+faststart",
		dst,
	)
	if encodeRun.timedOut {
		removePartial(dst)
		return ClipResult{Status: ClipFailed, Message: "Export timed out.", UsedFallback: true}
	}
	if encodeRun.err != nil || !fileHasContent(dst) {
		removePartial(dst)
		message := lastLine(encodeRun.stderr)
		if message == "" && encodeRun.err != nil {
			message = encodeRun.err.Error()
		}
		if message == "" {
			message = "ffmpeg produced no output."
		}
		return ClipResult{Status: ClipFailed, Message: message, UsedFallback: true}
	}
	return ClipResult{Status: ClipExported, Message: "Exported with re-encode.", UsedFallback: true}
}

func fileHasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func removePartial(path string) {
	_ = os.Remove(path)
}
