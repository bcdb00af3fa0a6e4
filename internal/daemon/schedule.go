package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"tapedeck/internal/library"
	"tapedeck/internal/logging"
)

// logRetentionSchedule prunes old log files once a day.
const logRetentionSchedule = "@daily"

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}

func (d *Daemon) newScheduler(ctx context.Context) (*cron.Cron, error) {
	clog := cronLogger{logger: d.logger}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(
			cron.Recover(clog),
			cron.SkipIfStillRunning(clog),
		),
	)
	if schedule := d.project.Config.Backup.RetrySchedule; schedule != "" {
		if _, err := c.AddFunc(schedule, func() { d.retryBackups(ctx) }); err != nil {
			return nil, fmt.Errorf("schedule backup retry %q: %w", schedule, err)
		}
	}
	if d.project.Config.Logging.RetentionDays > 0 {
		if _, err := c.AddFunc(logRetentionSchedule, d.cleanupLogs); err != nil {
			return nil, fmt.Errorf("schedule log retention: %w", err)
		}
	}
	return c, nil
}

// retryBackups sweeps open needs_backup items in its own session so it never
// shares a transaction with the job worker.
func (d *Daemon) retryBackups(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := d.project.WithSession(ctx, func(sess *library.Session) error {
		_, err := d.project.Reviews.RetryAllOpen(ctx, sess)
		return err
	})
	if err != nil {
		logging.WarnWithContext(d.logger, "scheduled backup retry failed", "nas_retry_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "raw masters stay queued for backup"),
		)
	}
}

func (d *Daemon) cleanupLogs() {
	cfg := d.project.Config
	logging.CleanupOldLogs(d.logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{
			Dir:     cfg.LogDir(),
			Pattern: "*.log",
			Exclude: []string{filepath.Join(cfg.LogDir(), logging.LogFileName)},
		},
		logging.RetentionTarget{
			Dir:     d.project.Paths.LogsDir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(d.project.Paths.LogsDir, logging.LogFileName)},
		},
	)
}
