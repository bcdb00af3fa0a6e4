package ingest

import (
	"context"
	"fmt"

	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/queue"
	"tapedeck/internal/services"
	"tapedeck/internal/worker"
)

// FileError records one file the foreground batch could not ingest.
type FileError struct {
	Name    string
	Message string
}

// BatchReport summarizes a foreground batch ingest.
type BatchReport struct {
	Ingested int
	Skipped  int
	TapeIDs  []int64
	Errors   []FileError
}

// Message renders the summary line shown to the user.
func (r BatchReport) Message() string {
	msg := batchMessage(r.Ingested, r.Skipped)
	if len(r.Errors) > 0 {
		msg += fmt.Sprintf(" Failed %d.", len(r.Errors))
	}
	return msg
}

func batchMessage(ingested, skipped int) string {
	return fmt.Sprintf("Ingested %d file(s). Skipped %d.", ingested, skipped)
}

// overallProgress maps one file's progress onto the whole batch.
func overallProgress(parent worker.Progress, completed, total int) worker.Progress {
	return worker.ProgressFunc(func(percent int, step, detail string) {
		p := queue.ClampPercent(percent)
		parent.Report((completed*100+p)/total, step, detail)
	})
}

// IngestAll ingests every new inbox file. Any file that fails, including one
// that reports status error, aborts the batch with an error.
func (s *Service) IngestAll(ctx context.Context, sess *library.Session, progress worker.Progress) (queue.IngestAllResult, error) {
	if progress == nil {
		progress = worker.Discard
	}
	files, err := s.ListInbox(ctx, sess)
	if err != nil {
		return queue.IngestAllResult{}, err
	}
	pending, skipped := partition(files)
	result := queue.IngestAllResult{Skipped: skipped, TapeIDs: []int64{}, Redirect: Redirect}

	for i, file := range pending {
		res, err := s.IngestFile(ctx, sess, file.Name, 0, overallProgress(progress, i, len(pending)))
		if err != nil {
			return queue.IngestAllResult{}, fmt.Errorf("ingest %s: %w", file.Name, err)
		}
		switch res.Status {
		case StatusIngested:
			result.Ingested++
			result.TapeIDs = append(result.TapeIDs, res.TapeID)
		case StatusAlreadyIngested:
			result.Skipped++
		default:
			return queue.IngestAllResult{}, services.Wrap(services.ErrTransient, "ingest", "batch", res.Message, nil)
		}
	}
	result.Message = batchMessage(result.Ingested, result.Skipped)
	progress.Report(100, "Done", result.Message)
	return result, nil
}

// IngestEach is the foreground batch. A failing file is recorded and the
// batch moves on; only database errors stop it.
func (s *Service) IngestEach(ctx context.Context, sess *library.Session) (BatchReport, error) {
	files, err := s.ListInbox(ctx, sess)
	if err != nil {
		return BatchReport{}, err
	}
	pending, skipped := partition(files)
	report := BatchReport{Skipped: skipped}
	logger := logging.WithContext(ctx, s.logger)

	for _, file := range pending {
		res, err := s.IngestFile(ctx, sess, file.Name, 0, worker.Discard)
		if err != nil {
			if rbErr := sess.Rollback(); rbErr != nil {
				return report, rbErr
			}
			logger.Warn("batch ingest skipped a file",
				logging.Event("ingest_batch_file_failed"),
				logging.String("file", file.Name),
				logging.Error(err),
			)
			report.Errors = append(report.Errors, FileError{Name: file.Name, Message: services.UserMessage(err)})
			continue
		}
		switch res.Status {
		case StatusIngested:
			report.Ingested++
			report.TapeIDs = append(report.TapeIDs, res.TapeID)
		case StatusAlreadyIngested:
			report.Skipped++
		default:
			report.Errors = append(report.Errors, FileError{Name: file.Name, Message: res.Message})
		}
	}
	return report, nil
}

// partition returns the new files and the count of everything else.
func partition(files []InboxFile) ([]InboxFile, int) {
	pending := make([]InboxFile, 0, len(files))
	skipped := 0
	for _, f := range files {
		if f.Status == FileNew {
			pending = append(pending, f)
			continue
		}
		skipped++
	}
	return pending, skipped
}
