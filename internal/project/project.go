// Package project opens one project's working set: resolved paths, the
// SQLite database, the job store and the pipeline services bound to them.
// Every operation receives a *Project explicitly; there is no process-wide
// active project.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"tapedeck/internal/backup"
	"tapedeck/internal/config"
	"tapedeck/internal/database"
	"tapedeck/internal/export"
	"tapedeck/internal/ingest"
	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/media"
	"tapedeck/internal/processing"
	"tapedeck/internal/queue"
	"tapedeck/internal/review"
	"tapedeck/internal/services"
)

// ErrLocked is returned by Lock when another process holds the project.
var ErrLocked = errors.New("project is locked by another tapedeck process")

// Project bundles everything needed to operate on one project.
type Project struct {
	Config *config.Config
	Paths  config.ProjectPaths
	DB     *sql.DB
	Logger *slog.Logger

	Jobs       *queue.Store
	Media      *media.Toolkit
	Backup     *backup.Target
	Reviews    *review.Service
	Ingest     *ingest.Service
	Processing *processing.Service
	Export     *export.Service

	lock *flock.Flock
}

// Open resolves slug, creates its local directories, opens and migrates the
// database and wires the services. The returned project must be closed.
func Open(ctx context.Context, cfg *config.Config, slug string, logger *slog.Logger) (*Project, error) {
	if cfg == nil {
		return nil, errors.New("project: configuration is required")
	}
	paths, err := cfg.ProjectPaths(slug)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "project", "resolve", "", err)
	}
	if err := paths.EnsureLocal(); err != nil {
		return nil, fmt.Errorf("prepare project %s: %w", slug, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	projectLogger, err := logging.ForProject(logger, cfg, paths.LogsDir)
	if err != nil {
		return nil, fmt.Errorf("project log: %w", err)
	}
	projectLogger = projectLogger.With(logging.String(logging.FieldProject, slug))

	db, err := database.Open(ctx, paths.DBPath, projectLogger)
	if err != nil {
		return nil, fmt.Errorf("open project database: %w", err)
	}

	retry := database.RetryPolicy{Attempts: cfg.Jobs.BusyRetryAttempts, Delay: cfg.BusyRetryDelay()}
	toolkit := media.New(cfg, projectLogger)
	target := backup.New(paths, projectLogger)
	reviews := review.NewService(target, projectLogger)
	return &Project{
		Config:     cfg,
		Paths:      paths,
		DB:         db,
		Logger:     projectLogger,
		Jobs:       queue.NewStore(db, retry, projectLogger),
		Media:      toolkit,
		Backup:     target,
		Reviews:    reviews,
		Ingest:     ingest.NewService(paths, target, reviews, projectLogger),
		Processing: processing.NewService(paths, toolkit, reviews, projectLogger),
		Export:     export.NewService(paths, toolkit, reviews, projectLogger),
		lock:       flock.New(paths.LockPath),
	}, nil
}

// Context annotates ctx with the project slug for logging.
func (p *Project) Context(ctx context.Context) context.Context {
	return services.WithProject(ctx, p.Paths.Slug)
}

// Session reserves a dedicated connection for a unit of foreground work.
func (p *Project) Session(ctx context.Context) (*library.Session, error) {
	return library.OpenSession(ctx, p.DB)
}

// WithSession runs fn in a fresh session, committing on success and rolling
// back on error.
func (p *Project) WithSession(ctx context.Context, fn func(*library.Session) error) error {
	sess, err := p.Session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := fn(sess); err != nil {
		return errors.Join(err, sess.Rollback())
	}
	return sess.Commit()
}

// Lock takes the project's single-instance lock without waiting.
func (p *Project) Lock() error {
	ok, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock releases the lock taken by Lock. It is a no-op when not held.
func (p *Project) Unlock() error {
	if p.lock == nil || !p.lock.Locked() {
		return nil
	}
	return p.lock.Unlock()
}

// Locked reports whether some process, possibly this one, holds the lock.
func (p *Project) Locked() bool {
	probe := flock.New(p.Paths.LockPath)
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = probe.Unlock()
		return false
	}
	return true
}

// Close releases the lock, if held, and the database.
func (p *Project) Close() error {
	var errs []error
	if p.lock != nil && p.lock.Locked() {
		errs = append(errs, p.lock.Unlock())
	}
	if p.DB != nil {
		errs = append(errs, p.DB.Close())
	}
	return errors.Join(errs...)
}
