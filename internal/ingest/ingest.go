package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tapedeck/internal/backup"
	"tapedeck/internal/config"
	"tapedeck/internal/database"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/queue"
	"tapedeck/internal/review"
	"tapedeck/internal/services"
	"tapedeck/internal/worker"
)

// Result statuses reported by IngestFile.
const (
	StatusIngested        = "ingested"
	StatusAlreadyIngested = "already_ingested"
	StatusError           = "error"
)

// Redirect is where clients land after an ingest job.
const Redirect = "/ingest"

// Service ingests files for one project.
type Service struct {
	paths   config.ProjectPaths
	backup  *backup.Target
	reviews *review.Service
	logger  *slog.Logger
}

// NewService binds ingest to the project's paths, NAS target and review queue.
func NewService(paths config.ProjectPaths, target *backup.Target, reviews *review.Service, logger *slog.Logger) *Service {
	return &Service{
		paths:   paths,
		backup:  target,
		reviews: reviews,
		logger:  logging.NewComponentLogger(logger, "ingest"),
	}
}

func failed(message string) queue.IngestFileResult {
	return queue.IngestFileResult{Status: StatusError, Message: message, Redirect: Redirect}
}

// IngestFile ingests one inbox file, optionally attaching it to tapeID.
// Caller mistakes and copy failures come back as a result with status error;
// the returned error is reserved for failures that should fail a job.
func (s *Service) IngestFile(ctx context.Context, sess *library.Session, filename string, tapeID int64, progress worker.Progress) (queue.IngestFileResult, error) {
	if progress == nil {
		progress = worker.Discard
	}
	logger := logging.WithContext(ctx, s.logger)

	progress.Report(5, "Validate inputs", "Checking "+filename)
	name, ok := s.resolveInboxName(filename)
	if !ok {
		return failed("File not found: " + filename), nil
	}
	if !IsVideo(name) {
		return failed("Unsupported file type: " + filename), nil
	}
	inboxPath := filepath.Join(s.paths.InboxDir, name)
	logger.Info("ingest started", logging.Event("ingest_started"), logging.String("file", name))

	sourceDigest, err := fileutil.Digest(inboxPath)
	if err != nil {
		return queue.IngestFileResult{}, services.Wrap(services.ErrTransient, "ingest", "hash source", name, err)
	}

	tapes := library.NewTapes(sess)
	existing, err := tapes.FindByDigest(ctx, sourceDigest)
	if err != nil {
		return queue.IngestFileResult{}, err
	}
	if existing != nil {
		logger.Info("ingest skipped; content already ingested",
			logging.Event("ingest_skipped"),
			logging.String("file", name),
			logging.Int64(logging.FieldTapeID, existing.ID),
		)
		return queue.IngestFileResult{
			Status:   StatusAlreadyIngested,
			Message:  fmt.Sprintf("Already ingested (Tape %d).", existing.ID),
			TapeID:   existing.ID,
			Redirect: Redirect,
		}, nil
	}
	if tapeID > 0 {
		target, err := tapes.Get(ctx, tapeID)
		if err != nil {
			return queue.IngestFileResult{}, err
		}
		if target == nil {
			return failed(fmt.Sprintf("Tape %d not found.", tapeID)), nil
		}
	}

	progress.Report(15, "Copy files", "Copying "+name)
	if err := os.MkdirAll(s.paths.RawDir, 0o755); err != nil {
		return s.copyFailed(logger, name, err), nil
	}
	rawPath := fileutil.PlaceWithoutConflict(s.paths.RawDir, name)
	if err := fileutil.CopyPreservingMetadata(inboxPath, rawPath); err != nil {
		return s.copyFailed(logger, name, err), nil
	}

	progress.Report(40, "Compute checksums", "Hashing "+name)
	rawDigest, err := fileutil.Digest(rawPath)
	if err != nil {
		return queue.IngestFileResult{}, services.Wrap(services.ErrTransient, "ingest", "hash raw copy", rawPath, err)
	}
	mismatch := rawDigest != sourceDigest
	if mismatch {
		logging.WarnWithContext(logger, "checksum mismatch after copy", "ingest_hash_mismatch",
			logging.Alert("hash_mismatch"),
			logging.String("file", name),
			logging.String("source_sha256", sourceDigest),
			logging.String("raw_sha256", rawDigest),
			logging.String(logging.FieldErrorHint, "compare the inbox file with the raw copy and re-ingest if needed"),
			logging.String(logging.FieldImpact, "raw copy may be corrupt"),
		)
	}

	progress.Report(70, "Write DB rows", "Saving ingest metadata")
	now := database.Now()
	rawName := filepath.Base(rawPath)
	if tapeID > 0 {
		if err := tapes.AttachRaw(ctx, tapeID, rawName, rawPath, rawDigest, now); err != nil {
			return queue.IngestFileResult{}, err
		}
		logger.Info("tape linked to raw file",
			logging.Event("tape_updated_raw"),
			logging.Int64(logging.FieldTapeID, tapeID),
			logging.String("raw_path", rawPath),
		)
	} else {
		tapeID, err = s.createTape(ctx, sess, name, rawName, rawPath, rawDigest, now)
		if err != nil {
			return queue.IngestFileResult{}, err
		}
		logger.Info("tape created from ingest",
			logging.Event("tape_created_from_ingest"),
			logging.Int64(logging.FieldTapeID, tapeID),
			logging.String("raw_path", rawPath),
		)
	}
	if mismatch {
		if _, err := s.reviews.Open(ctx, sess, library.ReviewNeedsVerification,
			fmt.Sprintf("Raw copy of %s does not match the inbox checksum. Verify it before deleting the original.", name),
			tapeID,
			map[string]string{"source_sha256": sourceDigest, "raw_sha256": rawDigest, "raw_path": rawPath},
		); err != nil {
			return queue.IngestFileResult{}, err
		}
	}
	// The tape must survive whatever happens during the backup.
	if err := sess.Commit(); err != nil {
		return queue.IngestFileResult{}, err
	}

	progress.Report(85, "NAS backup attempt", "Copying to NAS")
	backupStatus := library.BackupBackedUp
	outcome := s.backup.Copy(ctx, rawPath)
	if !outcome.OK {
		backupStatus = library.BackupNeedsBackup
		if _, err := s.reviews.Open(ctx, sess, library.ReviewNeedsBackup,
			fmt.Sprintf("NAS backup failed for %s to %s", rawName, s.backup.Dir()),
			tapeID,
			map[string]string{"attempted_path": s.backup.Dir(), "error": outcome.Error, "raw_path": rawPath},
		); err != nil {
			return queue.IngestFileResult{}, err
		}
	}
	if err := tapes.SetBackupStatus(ctx, tapeID, backupStatus); err != nil {
		return queue.IngestFileResult{}, err
	}
	if err := sess.Commit(); err != nil {
		return queue.IngestFileResult{}, err
	}

	logger.Info("ingest completed",
		logging.Event("ingest_completed"),
		logging.String("file", name),
		logging.Int64(logging.FieldTapeID, tapeID),
		logging.String("backup_status", string(backupStatus)),
		logging.String("nas_path", outcome.Path),
		logging.String("size", fileutil.FormatBytes(fileSize(rawPath))),
	)
	progress.Report(100, "Done", "Ingest completed")
	return queue.IngestFileResult{
		Status:       StatusIngested,
		Message:      fmt.Sprintf("Ingested %s.", name),
		TapeID:       tapeID,
		BackupStatus: string(backupStatus),
		Redirect:     Redirect,
	}, nil
}

func (s *Service) createTape(ctx context.Context, sess *library.Session, sourceName, rawName, rawPath, digest, now string) (int64, error) {
	tapes := library.NewTapes(sess)
	code, err := tapes.NextTapeCode(ctx)
	if err != nil {
		return 0, err
	}
	id, err := tapes.Insert(ctx, library.NewTape{
		TapeCode:     code,
		Title:        titleFromFilename(rawName),
		SourceLabel:  sourceName,
		DateType:     library.DateUnknown,
		Status:       library.TapeIngested,
		RawFilename:  rawName,
		RawPath:      rawPath,
		SHA256:       digest,
		IngestedAt:   now,
		BackupStatus: library.BackupQueued,
	})
	if err != nil {
		return 0, err
	}
	if _, err := s.reviews.Open(ctx, sess, library.ReviewNeedsMetadata,
		"Tape was auto-created from filename. Add label/year/tags when you can.",
		id,
		map[string]any{"priority": "low", "skippable": true},
	); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Service) copyFailed(logger *slog.Logger, name string, err error) queue.IngestFileResult {
	logging.ErrorWithContext(logger, "copy to raw storage failed", "ingest_copy_failed",
		logging.String("file", name),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check free space and permissions on the raw directory"),
	)
	return failed("Copy failed: " + err.Error())
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
