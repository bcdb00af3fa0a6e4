package worker

import (
	"context"
	"log/slog"
	"sync"

	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/queue"
)

// Progress receives step-level progress from a pipeline.
type Progress interface {
	Report(percent int, step, detail string)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(percent int, step, detail string)

// Report calls f.
func (f ProgressFunc) Report(percent int, step, detail string) {
	f(percent, step, detail)
}

// Discard ignores every report. Synchronous callers use it.
var Discard Progress = ProgressFunc(func(int, string, string) {})

// Scaled maps a nested operation's 0..100 progress into [from, to] of the parent.
func Scaled(parent Progress, from, to int) Progress {
	if parent == nil {
		return Discard
	}
	return ProgressFunc(func(percent int, step, detail string) {
		p := queue.ClampPercent(percent)
		parent.Report(from+(to-from)*p/100, step, detail)
	})
}

// Report is one recorded progress call.
type Report struct {
	Percent int
	Step    string
	Detail  string
}

// Recorder keeps every report for assertions.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

// Report records the call.
func (r *Recorder) Report(percent int, step, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Percent: percent, Step: step, Detail: detail})
}

// Reports returns a copy of the recorded calls.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.reports...)
}

// Steps returns the recorded step labels in order.
func (r *Recorder) Steps() []string {
	reports := r.Reports()
	steps := make([]string, 0, len(reports))
	for _, rep := range reports {
		steps = append(steps, rep.Step)
	}
	return steps
}

// checkpoint persists every report to the job row after committing the
// session's pending writes.
type checkpoint struct {
	ctx     context.Context
	store   *queue.Store
	session *library.Session
	jobID   int64
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func (c *checkpoint) Report(percent int, step, detail string) {
	percent = queue.ClampPercent(percent)
	if c.session != nil && c.session.Pending() {
		if err := c.session.Commit(); err != nil {
			logging.WarnWithContext(c.logger, "progress checkpoint commit failed", "job_checkpoint_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database locks"),
				logging.String(logging.FieldImpact, "pipeline writes stay pending until the job ends"),
			)
		}
	}
	if err := c.store.Update(c.ctx, c.jobID, queue.Progress(percent, step, detail)); err != nil {
		logging.WarnWithContext(c.logger, "job progress not persisted", "job_progress_failed",
			logging.Error(err),
			logging.Int("percent", percent),
			logging.String(logging.FieldErrorHint, "check database locks"),
			logging.String(logging.FieldImpact, "pollers see stale progress"),
		)
	}
	if c.sampler.ShouldLog(percent, step) {
		c.logger.Info("job progress",
			logging.Event("job_progress"),
			logging.Int("percent", percent),
			logging.String("step", step),
			logging.String("detail", detail),
		)
	}
}
