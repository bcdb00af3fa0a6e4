package media

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"tapedeck/internal/config"
	"tapedeck/internal/deps"
	"tapedeck/internal/logging"
)

// Toolkit runs ffmpeg and ffprobe with the configured binaries, timeouts and
// scene-detection parameters. A zero Toolkit is not usable; build one with New.
type Toolkit struct {
	FFmpeg            string
	FFprobe           string
	ProbeTimeout      time.Duration
	ThumbnailTimeout  time.Duration
	SceneTimeout      time.Duration
	ExportTimeout     time.Duration
	SceneThreshold    float64
	MinSegmentSeconds float64
	ThumbnailWidth    int

	logger *slog.Logger
}

// New builds a Toolkit from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Toolkit {
	return &Toolkit{
		FFmpeg:            cfg.Media.FFmpegBinary,
		FFprobe:           cfg.Media.FFprobeBinary,
		ProbeTimeout:      cfg.ProbeTimeout(),
		ThumbnailTimeout:  cfg.ThumbnailTimeout(),
		SceneTimeout:      cfg.SceneTimeout(),
		ExportTimeout:     cfg.ExportTimeout(),
		SceneThreshold:    cfg.Media.SceneThreshold,
		MinSegmentSeconds: cfg.Media.MinSegmentSeconds,
		ThumbnailWidth:    cfg.Media.ThumbnailWidth,
		logger:            logging.NewComponentLogger(logger, "media"),
	}
}

// FFmpegAvailable reports whether the ffmpeg binary can be executed.
func (t *Toolkit) FFmpegAvailable() bool {
	return deps.Available(t.FFmpeg)
}

// FFprobeAvailable reports whether the ffprobe binary can be executed.
func (t *Toolkit) FFprobeAvailable() bool {
	return deps.Available(t.FFprobe)
}

type runResult struct {
	stdout   string
	stderr   string
	err      error
	timedOut bool
}

func (r runResult) ok() bool {
	return r.err == nil && !r.timedOut
}

// run executes binary under timeout and captures both output streams. It
// never returns an error directly; the caller inspects the result.
func (t *Toolkit) run(ctx context.Context, timeout time.Duration, binary string, args ...string) runResult {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t.logger.Debug("running subprocess",
		logging.Event("subprocess_start"),
		logging.String("command", binary+" "+strings.Join(args, " ")),
		logging.Duration("timeout", timeout),
	)

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	result := runResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.timedOut = true
	}
	return result
}

func (t *Toolkit) log() *slog.Logger {
	if t.logger == nil {
		return logging.NewNop()
	}
	return t.logger
}
