// Package jobs submits pipeline work to the background worker and answers
// status polls. Submit creates the queued job row, builds the typed work
// closure and enqueues it, returning the job id immediately.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/project"
	"tapedeck/internal/queue"
	"tapedeck/internal/services"
	"tapedeck/internal/worker"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

// ErrNotCancelable is returned when canceling a finished job.
var ErrNotCancelable = errors.New("job is not queued or running")

// Enqueuer accepts work for background execution.
type Enqueuer interface {
	Enqueue(job *queue.Job, work worker.Work) error
}

// Service is the job facade for one project.
type Service struct {
	project *project.Project
	queue   Enqueuer
}

// NewService binds the facade to a project and its worker.
func NewService(p *project.Project, q Enqueuer) *Service {
	return &Service{project: p, queue: q}
}

// WorkFor builds the pipeline closure for payload.
func WorkFor(p *project.Project, payload queue.Payload) (worker.Work, error) {
	switch pl := payload.(type) {
	case queue.IngestFilePayload:
		return func(ctx context.Context, sess *library.Session, progress worker.Progress) (queue.Result, error) {
			return p.Ingest.IngestFile(ctx, sess, pl.Filename, pl.TapeID, progress)
		}, nil
	case queue.IngestAllPayload:
		return func(ctx context.Context, sess *library.Session, progress worker.Progress) (queue.Result, error) {
			return p.Ingest.IngestAll(ctx, sess, progress)
		}, nil
	case queue.ProcessMediaPayload:
		return func(ctx context.Context, sess *library.Session, progress worker.Progress) (queue.Result, error) {
			return p.Processing.ProcessMedia(ctx, sess, pl.TapeID, progress)
		}, nil
	case queue.ExportSegmentsPayload:
		return func(ctx context.Context, sess *library.Session, progress worker.Progress) (queue.Result, error) {
			return p.Export.Export(ctx, sess, pl.TapeID, pl.Force, progress)
		}, nil
	}
	return nil, fmt.Errorf("%w: %T", queue.ErrUnknownType, payload)
}

func tapeOf(payload queue.Payload) int64 {
	switch pl := payload.(type) {
	case queue.IngestFilePayload:
		return pl.TapeID
	case queue.ProcessMediaPayload:
		return pl.TapeID
	case queue.ExportSegmentsPayload:
		return pl.TapeID
	}
	return 0
}

// Submit records a queued job for payload and hands it to the worker. When
// the worker refuses it the job is marked failed and the error returned.
func (s *Service) Submit(ctx context.Context, payload queue.Payload) (*queue.Job, error) {
	work, err := WorkFor(s.project, payload)
	if err != nil {
		return nil, err
	}
	job, err := s.project.Jobs.Create(ctx, payload, tapeOf(payload))
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(job, work); err != nil {
		if failErr := s.project.Jobs.Fail(ctx, job.ID, "Job could not be queued: "+err.Error()); failErr != nil {
			err = errors.Join(err, failErr)
		}
		return nil, err
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), s.project.Logger).Info("job submitted",
		logging.Event("job_submitted"),
		logging.String(logging.FieldJobType, string(job.Type)),
	)
	return job, nil
}

// Status returns the job row for a poll.
func (s *Service) Status(ctx context.Context, id int64) (*queue.Job, error) {
	job, err := s.project.Jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

// Cancel soft-cancels a queued or running job. A running pipeline is not
// interrupted; its final update is discarded.
func (s *Service) Cancel(ctx context.Context, id int64) (*queue.Job, error) {
	ok, err := s.project.Jobs.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	job, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return job, ErrNotCancelable
	}
	return job, nil
}

// Recent lists the newest jobs.
func (s *Service) Recent(ctx context.Context, limit int) ([]*queue.Job, error) {
	if limit <= 0 {
		limit = s.project.Config.Jobs.RecentLimit
	}
	return s.project.Jobs.Recent(ctx, limit)
}
