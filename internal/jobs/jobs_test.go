package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tapedeck/internal/jobs"
	"tapedeck/internal/library"
	"tapedeck/internal/project"
	"tapedeck/internal/queue"
	"tapedeck/internal/testsupport"
	"tapedeck/internal/worker"
)

func startWorker(t *testing.T, p *project.Project) *worker.Worker {
	t.Helper()
	w := worker.New(p.DB, p.Jobs, p.Config.Jobs.QueueSize, p.Logger)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func waitTerminal(t *testing.T, svc *jobs.Service, id int64) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status(%d): %v", id, err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not finish", id)
	return nil
}

func runJob(t *testing.T, svc *jobs.Service, payload queue.Payload) *queue.Job {
	t.Helper()
	job, err := svc.Submit(context.Background(), payload)
	if err != nil {
		t.Fatalf("Submit %s: %v", payload.JobType(), err)
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("expected queued job, got %s", job.Status)
	}
	return waitTerminal(t, svc, job.ID)
}

func TestSubmitIngestFile(t *testing.T) {
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	svc := jobs.NewService(p, startWorker(t, p))
	testsupport.InboxFile(t, p, "tape.mp4", 2048)

	job := runJob(t, svc, queue.IngestFilePayload{Filename: "tape.mp4"})
	if job.Status != queue.StatusSuccess || job.Percent != 100 || job.CurrentStep != "Done" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.StartedAt == "" || job.FinishedAt == "" {
		t.Fatalf("expected timestamps, got %+v", job)
	}
	res, err := job.Result()
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	ingested, ok := res.(queue.IngestFileResult)
	if !ok || ingested.Status != "ingested" || ingested.TapeID != 1 {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestSubmitFailsWithUserMessage(t *testing.T) {
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	svc := jobs.NewService(p, startWorker(t, p))

	job := runJob(t, svc, queue.ProcessMediaPayload{TapeID: 42})
	if job.Status != queue.StatusFailed || job.TapeID != 42 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if !strings.HasPrefix(job.ErrorText, "Tape not found.") {
		t.Fatalf("unexpected error text: %q", job.ErrorText)
	}
}

func TestSubmitWithStoppedWorker(t *testing.T) {
	ctx := context.Background()
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	w := worker.New(p.DB, p.Jobs, 1, p.Logger)
	svc := jobs.NewService(p, w)

	_, err := svc.Submit(ctx, queue.IngestAllPayload{})
	if !errors.Is(err, worker.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	recent, err := svc.Recent(ctx, 0)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Recent: %d %v", len(recent), err)
	}
	if recent[0].Status != queue.StatusFailed || !strings.HasPrefix(recent[0].ErrorText, "Job could not be queued") {
		t.Fatalf("expected failed job row, got %+v", recent[0])
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	p := testsupport.MustOpenProject(t, testsupport.NewConfig(t))
	svc := jobs.NewService(p, worker.New(p.DB, p.Jobs, 1, p.Logger))

	queued, err := p.Jobs.Create(ctx, queue.ExportSegmentsPayload{TapeID: 3}, 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	job, err := svc.Cancel(ctx, queued.ID)
	if err != nil || job.Status != queue.StatusCanceled {
		t.Fatalf("Cancel: %+v %v", job, err)
	}
	if job.ErrorText != "Canceled by user." {
		t.Fatalf("unexpected error text: %q", job.ErrorText)
	}

	again, err := svc.Cancel(ctx, queued.ID)
	if !errors.Is(err, jobs.ErrNotCancelable) || again == nil || again.Status != queue.StatusCanceled {
		t.Fatalf("expected ErrNotCancelable, got %+v %v", again, err)
	}
	if _, err := svc.Cancel(ctx, 999); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Status(ctx, 999); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestTapeLifecycle walks one capture from the inbox to exported clips.
func TestTapeLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(testsupport.FFmpegStub{
		DurationSeconds: 600,
		Cuts:            []float64{180, 420},
	}))
	p := testsupport.MustOpenProject(t, cfg)
	svc := jobs.NewService(p, startWorker(t, p))
	testsupport.InboxFile(t, p, "christmas_1991.mp4", 8192)

	ingestJob := runJob(t, svc, queue.IngestAllPayload{})
	if ingestJob.Status != queue.StatusSuccess {
		t.Fatalf("ingest job: %+v", ingestJob)
	}
	ingestRes, err := ingestJob.Result()
	if err != nil {
		t.Fatalf("decode ingest result: %v", err)
	}
	batch := ingestRes.(queue.IngestAllResult)
	if batch.Ingested != 1 || len(batch.TapeIDs) != 1 {
		t.Fatalf("unexpected ingest result: %+v", batch)
	}
	tapeID := batch.TapeIDs[0]

	processJob := runJob(t, svc, queue.ProcessMediaPayload{TapeID: tapeID})
	if processJob.Status != queue.StatusSuccess {
		t.Fatalf("process job: %+v", processJob)
	}
	processRes, err := processJob.Result()
	if err != nil {
		t.Fatalf("decode process result: %v", err)
	}
	if got := processRes.(queue.ProcessMediaResult).Suggestions; got != 3 {
		t.Fatalf("expected three suggestions, got %d", got)
	}

	if err := p.WithSession(ctx, func(sess *library.Session) error {
		_, err := p.Processing.AcceptSuggestions(ctx, sess, tapeID)
		return err
	}); err != nil {
		t.Fatalf("AcceptSuggestions: %v", err)
	}

	exportJob := runJob(t, svc, queue.ExportSegmentsPayload{TapeID: tapeID})
	if exportJob.Status != queue.StatusSuccess {
		t.Fatalf("export job: %+v", exportJob)
	}
	exportRes, err := exportJob.Result()
	if err != nil {
		t.Fatalf("decode export result: %v", err)
	}
	exported := exportRes.(queue.ExportSegmentsResult)
	if exported.Exported != 3 || exported.Failed != 0 {
		t.Fatalf("unexpected export result: %+v", exported)
	}

	entries, err := os.ReadDir(filepath.Join(p.Paths.SegmentsDir, "TAPE_0001"))
	if err != nil || len(entries) != 3 {
		t.Fatalf("expected three clips, got %d (%v)", len(entries), err)
	}
	tape, err := library.NewTapes(p.DB).Get(ctx, tapeID)
	if err != nil || tape.Status != library.TapeMastered {
		t.Fatalf("expected Mastered tape, got %+v %v", tape, err)
	}
	open, err := p.Reviews.List(ctx, p.DB, library.ReviewFilter{Status: library.ReviewOpen, Type: library.ReviewNeedsExportReview})
	if err != nil || len(open) != 0 {
		t.Fatalf("expected no export review, got %d (%v)", len(open), err)
	}

	recent, err := svc.Recent(ctx, 10)
	if err != nil || len(recent) != 3 || recent[0].ID != exportJob.ID {
		t.Fatalf("unexpected recent jobs: %d %v", len(recent), err)
	}
}
