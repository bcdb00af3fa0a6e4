package worker_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tapedeck/internal/database"
	"tapedeck/internal/library"
	"tapedeck/internal/queue"
	"tapedeck/internal/services"
	"tapedeck/internal/worker"
)

type harness struct {
	db     *sql.DB
	store  *queue.Store
	worker *worker.Worker
}

func newHarness(t *testing.T, queueSize int) *harness {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "tapedeck.db"), nil)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := queue.NewStore(db, database.RetryPolicy{Attempts: 20, Delay: 5 * time.Millisecond}, nil)
	return &harness{db: db, store: store, worker: worker.New(db, store, queueSize, nil)}
}

func (h *harness) create(t *testing.T) *queue.Job {
	t.Helper()
	job, err := h.store.Create(context.Background(), queue.IngestAllPayload{}, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func (h *harness) get(t *testing.T, id int64) *queue.Job {
	t.Helper()
	job, err := h.store.Get(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("Get(%d) = %v, %v", id, job, err)
	}
	return job
}

func (h *harness) waitTerminal(t *testing.T, id int64) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := h.get(t, id); job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not finish", id)
	return nil
}

func tapeCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tapes`).Scan(&n); err != nil {
		t.Fatalf("count tapes: %v", err)
	}
	return n
}

func insertTape(ctx context.Context, q library.Querier, code string) error {
	_, err := library.NewTapes(q).Insert(ctx, library.NewTape{
		TapeCode: code,
		Title:    code,
		Status:   library.TapeIngested,
	})
	return err
}

func TestExecuteSuccessCommitsAndStoresResult(t *testing.T) {
	h := newHarness(t, 4)
	job := h.create(t)

	err := h.worker.Execute(context.Background(), job, func(ctx context.Context, sess *library.Session, progress worker.Progress) (queue.Result, error) {
		if err := insertTape(ctx, sess, "TAPE_0001"); err != nil {
			return nil, err
		}
		progress.Report(50, "Write DB rows", "Saving ingest metadata")
		return queue.IngestAllResult{Ingested: 1, TapeIDs: []int64{1}, Redirect: "/tapes"}, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := h.get(t, job.ID)
	if got.Status != queue.StatusSuccess || got.Percent != 100 || got.StartedAt == "" || got.FinishedAt == "" {
		t.Fatalf("unexpected job: %+v", got)
	}
	result, err := got.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if r, ok := result.(queue.IngestAllResult); !ok || r.Ingested != 1 {
		t.Fatalf("result = %#v", result)
	}
	if n := tapeCount(t, h.db); n != 1 {
		t.Fatalf("tapes = %d, want 1", n)
	}
}

func TestExecuteFailureRollsBackPendingWrites(t *testing.T) {
	h := newHarness(t, 4)
	job := h.create(t)

	err := h.worker.Execute(context.Background(), job, func(ctx context.Context, sess *library.Session, _ worker.Progress) (queue.Result, error) {
		if err := insertTape(ctx, sess, "TAPE_0001"); err != nil {
			return nil, err
		}
		return nil, services.Wrap(services.ErrExternalTool, "export", "clip", "ffmpeg exited", errors.New("exit status 1"))
	})
	if err == nil {
		t.Fatal("expected work error")
	}

	got := h.get(t, job.ID)
	if got.Status != queue.StatusFailed || got.FinishedAt == "" {
		t.Fatalf("unexpected job: %+v", got)
	}
	if !strings.Contains(got.ErrorText, "ffmpeg exited") || !strings.Contains(got.ErrorText, "caused by: exit status 1") {
		t.Fatalf("error_text = %q", got.ErrorText)
	}
	if got.ResultJSON != "" {
		t.Fatalf("failed job has result %q", got.ResultJSON)
	}
	if n := tapeCount(t, h.db); n != 0 {
		t.Fatalf("tapes = %d, want rollback", n)
	}
}

func TestProgressIsVisibleWhileWorkRuns(t *testing.T) {
	h := newHarness(t, 4)
	job := h.create(t)

	var seen *queue.Job
	err := h.worker.Execute(context.Background(), job, func(ctx context.Context, sess *library.Session, progress worker.Progress) (queue.Result, error) {
		if err := insertTape(ctx, sess, "TAPE_0001"); err != nil {
			return nil, err
		}
		progress.Report(40, "Compute checksums", "Hashing a.mp4")
		var err error
		seen, err = h.store.Get(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		return nil, errors.New("late failure")
	})
	if err == nil {
		t.Fatal("expected work error")
	}
	if seen == nil || seen.Percent != 40 || seen.CurrentStep != "Compute checksums" || seen.Status != queue.StatusRunning {
		t.Fatalf("progress not visible: %+v", seen)
	}
	// Writes before the checkpoint were committed with it.
	if n := tapeCount(t, h.db); n != 1 {
		t.Fatalf("tapes = %d, want checkpointed insert", n)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	h := newHarness(t, 4)
	job := h.create(t)

	err := h.worker.Execute(context.Background(), job, func(context.Context, *library.Session, worker.Progress) (queue.Result, error) {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "panic: boom") {
		t.Fatalf("err = %v", err)
	}
	got := h.get(t, job.ID)
	if got.Status != queue.StatusFailed || !strings.HasPrefix(got.ErrorText, "panic: boom") {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestExecuteSkipsJobCanceledWhileQueued(t *testing.T) {
	h := newHarness(t, 4)
	job := h.create(t)
	if ok, err := h.store.Cancel(context.Background(), job.ID); err != nil || !ok {
		t.Fatalf("Cancel = %v, %v", ok, err)
	}

	called := false
	if err := h.worker.Execute(context.Background(), job, func(context.Context, *library.Session, worker.Progress) (queue.Result, error) {
		called = true
		return nil, nil
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called {
		t.Fatal("work ran for a canceled job")
	}
	if got := h.get(t, job.ID); got.Status != queue.StatusCanceled || got.StartedAt != "" {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestSoftCancelKeepsCanceledStatus(t *testing.T) {
	h := newHarness(t, 4)
	job := h.create(t)

	err := h.worker.Execute(context.Background(), job, func(ctx context.Context, _ *library.Session, _ worker.Progress) (queue.Result, error) {
		if ok, err := h.store.Cancel(ctx, job.ID); err != nil || !ok {
			t.Errorf("Cancel = %v, %v", ok, err)
		}
		return queue.IngestAllResult{Ingested: 3}, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := h.get(t, job.ID); got.Status != queue.StatusCanceled || got.ResultJSON != "" {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestWorkerRunsJobsInOrder(t *testing.T) {
	h := newHarness(t, 4)
	if err := h.worker.Enqueue(h.create(t), nil); err == nil {
		t.Fatal("expected error for nil work")
	}
	first, second := h.create(t), h.create(t)
	if err := h.worker.Enqueue(first, func(context.Context, *library.Session, worker.Progress) (queue.Result, error) {
		return nil, nil
	}); !errors.Is(err, worker.ErrStopped) {
		t.Fatalf("Enqueue before Start = %v", err)
	}

	if err := h.worker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.worker.Stop()

	var (
		mu    sync.Mutex
		order []int64
	)
	record := func(id int64) worker.Work {
		return func(context.Context, *library.Session, worker.Progress) (queue.Result, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return queue.IngestAllResult{}, nil
		}
	}
	for _, job := range []*queue.Job{first, second} {
		if err := h.worker.Enqueue(job, record(job.ID)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	h.waitTerminal(t, first.ID)
	h.waitTerminal(t, second.ID)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != first.ID || order[1] != second.ID {
		t.Fatalf("order = %v", order)
	}
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	h := newHarness(t, 1)
	if err := h.worker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.worker.Stop()

	release := make(chan struct{})
	entered := make(chan struct{})
	blocking := h.create(t)
	if err := h.worker.Enqueue(blocking, func(context.Context, *library.Session, worker.Progress) (queue.Result, error) {
		close(entered)
		<-release
		return nil, nil
	}); err != nil {
		t.Fatalf("Enqueue blocking: %v", err)
	}
	<-entered

	noop := func(context.Context, *library.Session, worker.Progress) (queue.Result, error) { return nil, nil }
	buffered := h.create(t)
	if err := h.worker.Enqueue(buffered, noop); err != nil {
		t.Fatalf("Enqueue buffered: %v", err)
	}
	if err := h.worker.Enqueue(h.create(t), noop); !errors.Is(err, worker.ErrQueueFull) {
		t.Fatalf("Enqueue overflow = %v, want ErrQueueFull", err)
	}
	if active := h.worker.ActiveJob(); active != blocking.ID {
		t.Fatalf("ActiveJob = %d, want %d", active, blocking.ID)
	}
	close(release)
	h.waitTerminal(t, buffered.ID)
}

func TestScaledProgress(t *testing.T) {
	rec := &worker.Recorder{}
	scaled := worker.Scaled(rec, 50, 100)
	scaled.Report(0, "Copy files", "")
	scaled.Report(50, "Copy files", "")
	scaled.Report(200, "Done", "")

	reports := rec.Reports()
	want := []int{50, 75, 100}
	if len(reports) != len(want) {
		t.Fatalf("reports = %+v", reports)
	}
	for i, w := range want {
		if reports[i].Percent != w {
			t.Fatalf("report %d percent = %d, want %d", i, reports[i].Percent, w)
		}
	}
	if steps := rec.Steps(); steps[2] != "Done" {
		t.Fatalf("steps = %v", steps)
	}
}

func TestFailureTextBoundsChain(t *testing.T) {
	err := errors.New("root")
	for i := 0; i < 10; i++ {
		err = wrapLayer(err, i)
	}
	text := worker.FailureText(err, "")
	if n := strings.Count(text, "caused by:"); n != 5 {
		t.Fatalf("cause lines = %d, want 5: %q", n, text)
	}
	if got := worker.FailureText(nil, ""); got == "" {
		t.Fatal("expected placeholder text")
	}
}

func wrapLayer(err error, i int) error {
	return &layer{n: i, err: err}
}

type layer struct {
	n   int
	err error
}

func (l *layer) Error() string { return "layer " + string(rune('a'+l.n)) + ": " + l.err.Error() }
func (l *layer) Unwrap() error { return l.err }
