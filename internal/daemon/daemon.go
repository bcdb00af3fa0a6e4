package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"tapedeck/internal/httpapi"
	"tapedeck/internal/jobs"
	"tapedeck/internal/logging"
	"tapedeck/internal/preflight"
	"tapedeck/internal/project"
	"tapedeck/internal/worker"
)

// ShutdownTimeout bounds how long Stop waits for in-flight API requests.
const ShutdownTimeout = 5 * time.Second

// Daemon owns the worker, API server and scheduler for one project.
type Daemon struct {
	project *project.Project
	logger  *slog.Logger
	worker  *worker.Worker
	jobs    *jobs.Service
	api     *httpapi.Server

	mu        sync.Mutex
	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	listener  net.Listener
	scheduler *cron.Cron
	serveErr  chan error
	startedAt time.Time
	stopped   bool
}

// Status summarizes daemon state for the CLI.
type Status struct {
	Running      bool
	Project      string
	APIAddress   string
	StartedAt    time.Time
	PendingJobs  int
	ActiveJobID  int64
	Dependencies []preflight.Result
}

// New wires the daemon around an open project.
func New(p *project.Project, logger *slog.Logger) (*Daemon, error) {
	if p == nil {
		return nil, errors.New("daemon: project is required")
	}
	if logger == nil {
		logger = p.Logger
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	w := worker.New(p.DB, p.Jobs, p.Config.Jobs.QueueSize, p.Logger)
	svc := jobs.NewService(p, w)
	return &Daemon{
		project: p,
		logger:  logger,
		worker:  w,
		jobs:    svc,
		api:     httpapi.New(p, svc, p.Logger),
	}, nil
}

// Jobs exposes the job facade backed by the daemon's worker.
func (d *Daemon) Jobs() *jobs.Service {
	return d.jobs
}

// Start acquires the project lock, recovers stale jobs, starts the worker and
// scheduler and begins serving the API on the configured bind address.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped {
		return errors.New("daemon cannot be restarted after Stop")
	}

	if err := d.project.Lock(); err != nil {
		return err
	}
	fail := func(err error) error {
		if d.cancel != nil {
			d.cancel()
			d.cancel = nil
		}
		d.worker.Stop()
		_ = d.project.Unlock()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(d.project.Context(ctx))
	if _, err := d.project.Jobs.RecoverStale(d.ctx); err != nil {
		return fail(fmt.Errorf("recover stale jobs: %w", err))
	}
	if err := d.worker.Start(d.ctx); err != nil {
		return fail(fmt.Errorf("start worker: %w", err))
	}

	scheduler, err := d.newScheduler(d.ctx)
	if err != nil {
		return fail(err)
	}

	ln, err := net.Listen("tcp", d.project.Config.Paths.APIBind)
	if err != nil {
		return fail(fmt.Errorf("listen on %s: %w", d.project.Config.Paths.APIBind, err))
	}
	d.listener = ln
	d.serveErr = make(chan error, 1)
	go func() {
		if err := d.api.Serve(ln); err != nil {
			logging.ErrorWithContext(d.logger, "api server stopped", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the bind address is free"),
			)
			d.serveErr <- err
		}
		close(d.serveErr)
	}()

	d.scheduler = scheduler
	d.scheduler.Start()
	d.cleanupLogs()
	d.reportPreflight()

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("tapedeck daemon started",
		logging.Event("daemon_started"),
		logging.String("api", ln.Addr().String()),
		logging.String("lock", d.project.Paths.LockPath),
	)
	return nil
}

// Errors reports a fatal API server failure. It is closed when the server
// stops cleanly.
func (d *Daemon) Errors() <-chan error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serveErr
}

// Addr returns the API listen address, or "" when not running.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Stop shuts down the API, scheduler and worker and releases the project lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := d.api.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
	if d.scheduler != nil {
		select {
		case <-d.scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			d.logger.Warn("scheduled task still running at shutdown")
		}
		d.scheduler = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	if err := d.project.Unlock(); err != nil {
		d.logger.Warn("failed to release project lock", logging.Error(err))
	}
	d.listener = nil
	d.ctx = nil
	d.stopped = true
	d.running.Store(false)
	d.logger.Info("tapedeck daemon stopped", logging.Event("daemon_stopped"))
}

// Close stops the daemon. The project stays open; its owner closes it.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns a snapshot of runtime state and dependency health.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Project:      d.project.Paths.Slug,
		APIAddress:   d.Addr(),
		PendingJobs:  d.worker.Pending(),
		ActiveJobID:  d.worker.ActiveJob(),
		Dependencies: preflight.RunAll(ctx, d.project.Config, d.project.Paths),
	}
	d.mu.Lock()
	status.StartedAt = d.startedAt
	d.mu.Unlock()
	return status
}

func (d *Daemon) reportPreflight() {
	for _, result := range preflight.Failed(preflight.RunAll(d.ctx, d.project.Config, d.project.Paths)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs that need this will fail"),
		)
	}
}
