package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/queue"
	"tapedeck/internal/services"
)

var (
	// ErrQueueFull is returned when the submission buffer is full.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned when submitting to a stopped worker.
	ErrStopped = errors.New("worker is not running")
)

// Work is the pipeline body of one job. It writes through sess and reports
// progress; the returned result is stored on success.
type Work func(ctx context.Context, sess *library.Session, progress Progress) (queue.Result, error)

type task struct {
	job  *queue.Job
	work Work
}

// Worker executes jobs sequentially.
type Worker struct {
	db     *sql.DB
	store  *queue.Store
	logger *slog.Logger
	tasks  chan task

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  int64
}

// New constructs a worker with a submission buffer of queueSize.
func New(db *sql.DB, store *queue.Store, queueSize int, logger *slog.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Worker{
		db:     db,
		store:  store,
		logger: logging.NewComponentLogger(logger, "worker"),
		tasks:  make(chan task, queueSize),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.loop(runCtx)
	return nil
}

// Stop cancels the loop and waits for the current job to return. Jobs still
// buffered stay queued in the database and are marked stale on next start.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Running reports whether the loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Pending returns the number of buffered submissions.
func (w *Worker) Pending() int {
	return len(w.tasks)
}

// ActiveJob returns the id of the job currently executing, or zero.
func (w *Worker) ActiveJob() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Enqueue buffers job for execution. It never blocks.
func (w *Worker) Enqueue(job *queue.Job, work Work) error {
	if job == nil || work == nil {
		return errors.New("enqueue: job and work are required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return ErrStopped
	}
	select {
	case w.tasks <- task{job: job, work: work}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.tasks:
			if err := w.Execute(ctx, t.job, t.work); err != nil && errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// Execute runs one job to completion on the calling goroutine and returns
// the work error, if any. The job must already exist in the store.
func (w *Worker) Execute(ctx context.Context, job *queue.Job, work Work) error {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithJobType(ctx, string(job.Type))
	ctx = services.WithTapeID(ctx, job.TapeID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, w.logger)
	// Bookkeeping writes must land even when shutdown cancels ctx mid-job.
	bookCtx := context.WithoutCancel(ctx)

	started, err := w.store.Start(bookCtx, job.ID)
	if err != nil {
		logger.Error("job start not persisted", logging.Event("job_start_failed"), logging.Error(err))
		return err
	}
	if !started {
		logger.Info("job skipped; no longer queued", logging.Event("job_skipped"))
		return nil
	}

	w.setActive(job.ID)
	defer w.setActive(0)

	sess, err := library.OpenSession(ctx, w.db)
	if err != nil {
		w.fail(bookCtx, logger, job, err, "")
		return err
	}
	defer sess.Close()

	startedAt := time.Now()
	logger.Info("job started", logging.Event("job_started"))
	progress := &checkpoint{
		ctx:     bookCtx,
		store:   w.store,
		session: sess,
		jobID:   job.ID,
		logger:  logger,
		sampler: logging.NewProgressSampler(25),
	}

	result, stack, workErr := invoke(ctx, work, sess, progress)
	if workErr != nil {
		if rbErr := sess.Rollback(); rbErr != nil {
			logger.Warn("job rollback failed", logging.Event("job_rollback_failed"), logging.Error(rbErr))
		}
		w.fail(bookCtx, logger, job, workErr, stack)
		return workErr
	}
	if err := sess.Commit(); err != nil {
		w.fail(bookCtx, logger, job, fmt.Errorf("commit job writes: %w", err), "")
		return err
	}
	if err := w.store.Complete(bookCtx, job.ID, result); err != nil {
		logger.Error("job completion not persisted", logging.Event("job_complete_failed"), logging.Error(err))
		return err
	}
	logger.Info("job completed",
		logging.Event("job_completed"),
		logging.Duration("duration", time.Since(startedAt)),
	)
	return nil
}

func (w *Worker) setActive(id int64) {
	w.mu.Lock()
	w.active = id
	w.mu.Unlock()
}

// invoke runs work and converts a panic into an error plus a trimmed stack.
func invoke(ctx context.Context, work Work, sess *library.Session, progress Progress) (result queue.Result, stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			stack = panicStack()
		}
	}()
	result, err = work(ctx, sess, progress)
	return result, "", err
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, err error, stack string) {
	text := FailureText(err, stack)
	if services.IsUserError(err) {
		logger.Warn("job failed",
			logging.Event("job_failed"),
			logging.String("error_message", services.UserMessage(err)),
		)
	} else {
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect error_text on the job and resubmit"),
		)
	}
	if perr := w.store.Fail(ctx, job.ID, text); perr != nil {
		logger.Error("job failure not persisted", logging.Event("job_fail_persist_failed"), logging.Error(perr))
	}
}
