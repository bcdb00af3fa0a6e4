// Package review manages the queue of exceptions waiting for a human.
//
// Items are typed and usually tied to a tape. Flows that re-run work resolve
// the previous open item of the same type before opening a new one; the store
// itself never deduplicates. needs_backup items are only closed by a
// successful RetryBackup or an explicit Resolve.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"tapedeck/internal/backup"
	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/services"
)

// Retry statuses.
const (
	StatusBackedUp = "backed_up"
	StatusError    = "error"
)

// Service operates on one project's review queue.
type Service struct {
	backup *backup.Target
	logger *slog.Logger
}

// NewService binds the review queue to the project's NAS target.
func NewService(target *backup.Target, logger *slog.Logger) *Service {
	return &Service{backup: target, logger: logging.NewComponentLogger(logger, "review")}
}

// Open records a new item without touching existing ones.
func (s *Service) Open(ctx context.Context, q library.Querier, itemType library.ReviewType, message string, tapeID int64, payload any) (int64, error) {
	id, err := library.NewReviewItems(q).Open(ctx, itemType, message, tapeID, payload)
	if err != nil {
		return 0, err
	}
	logging.WithContext(services.WithTapeID(ctx, tapeID), s.logger).Info("review item opened",
		logging.Event("review_item_opened"),
		logging.Int64("review_id", id),
		logging.String("review_type", string(itemType)),
	)
	return id, nil
}

// Supersede resolves the tape's open item of itemType and opens a new one.
func (s *Service) Supersede(ctx context.Context, q library.Querier, itemType library.ReviewType, message string, tapeID int64, payload any) (int64, error) {
	if _, err := library.NewReviewItems(q).ResolveOpen(ctx, itemType, tapeID); err != nil {
		return 0, err
	}
	return s.Open(ctx, q, itemType, message, tapeID, payload)
}

// Resolve closes an item. Resolving twice is harmless.
func (s *Service) Resolve(ctx context.Context, q library.Querier, itemID int64) error {
	items := library.NewReviewItems(q)
	item, err := items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "", "", "Review item not found.", nil)
	}
	if err := items.Resolve(ctx, itemID); err != nil {
		return err
	}
	s.logger.Info("review item resolved",
		logging.Event("review_item_resolved"),
		logging.Int64("review_id", itemID),
		logging.String("review_type", string(item.Type)),
	)
	return nil
}

// List returns items matching filter, newest first.
func (s *Service) List(ctx context.Context, q library.Querier, filter library.ReviewFilter) ([]library.ReviewItem, error) {
	return library.NewReviewItems(q).List(ctx, filter)
}

// RetryOutcome reports a backup retry.
type RetryOutcome struct {
	Status  string
	Message string
	Path    string
}

func retryError(message string) RetryOutcome {
	return RetryOutcome{Status: StatusError, Message: message}
}

// RetryBackup re-runs the NAS backup for a needs_backup item and resolves the
// item only when the copy succeeds. Problems with the item or the NAS come
// back as an outcome with status error; the returned error is for database
// failures.
func (s *Service) RetryBackup(ctx context.Context, sess *library.Session, itemID int64) (RetryOutcome, error) {
	items := library.NewReviewItems(sess)
	item, err := items.Get(ctx, itemID)
	if err != nil {
		return RetryOutcome{}, err
	}
	if item == nil {
		return retryError("Review item not found."), nil
	}
	if item.Type != library.ReviewNeedsBackup || item.TapeID == nil {
		return retryError("Review item cannot be retried."), nil
	}
	tapes := library.NewTapes(sess)
	tape, err := tapes.Get(ctx, *item.TapeID)
	if err != nil {
		return RetryOutcome{}, err
	}
	if tape == nil || tape.RawPath == "" {
		return retryError("Raw path missing for backup retry."), nil
	}

	ctx = services.WithTapeID(ctx, tape.ID)
	logger := logging.WithContext(ctx, s.logger)
	if _, err := os.Stat(tape.RawPath); err != nil {
		return retryError("Raw file not found for retry."), nil
	}
	if !s.backup.Available() {
		logger.Info("NAS unavailable during backup retry", logging.Event("nas_retry_unavailable"))
		return retryError("NAS not available. Backup will remain queued."), nil
	}

	outcome := s.backup.Copy(ctx, tape.RawPath)
	if !outcome.OK {
		return retryError("Backup retry failed: " + outcome.Error), nil
	}
	if err := tapes.SetBackupStatus(ctx, tape.ID, library.BackupBackedUp); err != nil {
		return RetryOutcome{}, err
	}
	if err := items.Resolve(ctx, itemID); err != nil {
		return RetryOutcome{}, err
	}
	if err := sess.Commit(); err != nil {
		return RetryOutcome{}, err
	}
	return RetryOutcome{
		Status:  StatusBackedUp,
		Message: fmt.Sprintf("Backup completed to %s", outcome.Path),
		Path:    outcome.Path,
	}, nil
}

// RetrySummary counts a sweep over open needs_backup items.
type RetrySummary struct {
	Attempted int
	BackedUp  int
	Failed    int
}

// RetryAllOpen retries every open needs_backup item. It stops early when the
// NAS is unavailable since every attempt would fail the same way.
func (s *Service) RetryAllOpen(ctx context.Context, sess *library.Session) (RetrySummary, error) {
	var summary RetrySummary
	items, err := library.NewReviewItems(sess).List(ctx, library.ReviewFilter{
		Status: library.ReviewOpen,
		Type:   library.ReviewNeedsBackup,
	})
	if err != nil {
		return summary, err
	}
	if len(items) == 0 {
		return summary, nil
	}
	if !s.backup.Available() {
		s.logger.Info("scheduled backup retry skipped; NAS unavailable",
			logging.Event("nas_retry_unavailable"),
			logging.Int("open_items", len(items)),
		)
		return summary, nil
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Attempted++
		outcome, err := s.RetryBackup(ctx, sess, item.ID)
		if err != nil {
			return summary, err
		}
		if outcome.Status == StatusBackedUp {
			summary.BackedUp++
		} else {
			summary.Failed++
		}
	}
	s.logger.Info("backup retry sweep finished",
		logging.Event("nas_retry_sweep"),
		logging.Int("attempted", summary.Attempted),
		logging.Int("backed_up", summary.BackedUp),
		logging.Int("failed", summary.Failed),
	)
	return summary, nil
}
