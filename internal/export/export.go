// Package export cuts a tape's segments into clip files.
//
// Segments are exported in start order to segments/<tape code>/segment_NNN.mp4.
// An existing output is skipped unless forced, and its bookkeeping is
// backfilled from the file on disk. A failing segment is recorded and the run
// continues; the failures are collected into one needs_export_review item.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tapedeck/internal/config"
	"tapedeck/internal/database"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/media"
	"tapedeck/internal/processing"
	"tapedeck/internal/queue"
	"tapedeck/internal/review"
	"tapedeck/internal/services"
	"tapedeck/internal/worker"
)

// Failure describes one segment that did not export.
type Failure struct {
	SegmentID  int64  `json:"segment_id"`
	OutputPath string `json:"output_path"`
	Message    string `json:"message"`
}

// Service exports segments for one project.
type Service struct {
	paths   config.ProjectPaths
	media   *media.Toolkit
	reviews *review.Service
	logger  *slog.Logger
}

// NewService binds export to the project's paths, media toolkit and review queue.
func NewService(paths config.ProjectPaths, toolkit *media.Toolkit, reviews *review.Service, logger *slog.Logger) *Service {
	return &Service{
		paths:   paths,
		media:   toolkit,
		reviews: reviews,
		logger:  logging.NewComponentLogger(logger, "export"),
	}
}

// OutputPath returns the clip path for the 1-based index within dir.
func OutputPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment_%03d.mp4", index))
}

// OutputDir returns the directory a tape's clips are written to.
func (s *Service) OutputDir(tape *library.Tape) string {
	return filepath.Join(s.paths.SegmentsDir, tape.Code())
}

// Export writes every segment of tapeID. With force, existing outputs are
// re-encoded; otherwise they are skipped.
func (s *Service) Export(ctx context.Context, sess *library.Session, tapeID int64, force bool, progress worker.Progress) (queue.ExportSegmentsResult, error) {
	if progress == nil {
		progress = worker.Discard
	}
	ctx = services.WithTapeID(ctx, tapeID)
	logger := logging.WithContext(ctx, s.logger)

	progress.Report(5, "Validate inputs", fmt.Sprintf("Checking tape %d", tapeID))
	tape, err := processing.LoadWithRaw(ctx, sess, tapeID, "exporting segments")
	if err != nil {
		return queue.ExportSegmentsResult{}, err
	}
	segStore := library.NewSegments(sess)
	segments, err := segStore.ListForTape(ctx, tapeID)
	if err != nil {
		return queue.ExportSegmentsResult{}, err
	}
	if len(segments) == 0 {
		return queue.ExportSegmentsResult{}, services.Wrap(services.ErrValidation, "", "",
			"No segments to export yet. Accept suggestions or create segments first.", nil)
	}
	if !s.media.FFmpegAvailable() {
		return queue.ExportSegmentsResult{}, services.Wrap(services.ErrExternalTool, "", "",
			"ffmpeg is not installed. Install ffmpeg and retry the export.", nil)
	}

	outputDir := s.OutputDir(tape)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return queue.ExportSegmentsResult{}, services.Wrap(services.ErrTransient, "export", "create output dir", outputDir, err)
	}
	result := queue.ExportSegmentsResult{OutputDir: outputDir, Redirect: processing.TapeRedirect(tapeID)}
	var failures []Failure

	for i, seg := range segments {
		index := i + 1
		outPath := OutputPath(outputDir, index)
		progress.Report(10+85*i/len(segments), "Export segments",
			fmt.Sprintf("Segment %d of %d", index, len(segments)))
		segLogger := logger.With(logging.Int64("segment_id", seg.ID), logging.String("output_path", outPath))

		if _, statErr := os.Stat(outPath); statErr == nil && !force {
			var meta *library.OutputMetadata
			if !seg.OutputMetadataComplete() {
				m, err := outputMetadata(outPath)
				if err != nil {
					return queue.ExportSegmentsResult{}, err
				}
				meta = &m
			}
			if err := segStore.RecordSkipped(ctx, seg.ID, outPath, meta); err != nil {
				return queue.ExportSegmentsResult{}, err
			}
			result.Skipped++
			segLogger.Info("segment export skipped; output exists", logging.Event("segment_export_skipped"))
			continue
		}

		clip := s.media.ExportClip(ctx, tape.RawPath, outPath, seg.Start, seg.Duration())
		if clip.Status == media.ClipExported {
			meta, err := outputMetadata(outPath)
			if err == nil {
				if err := segStore.RecordExport(ctx, seg.ID, outPath, meta); err != nil {
					return queue.ExportSegmentsResult{}, err
				}
				result.Exported++
				segLogger.Info("segment exported",
					logging.Event("segment_exported"),
					logging.Bool("used_fallback", clip.UsedFallback),
				)
				continue
			}
			clip.Message = "Exported clip is missing: " + err.Error()
		}

		result.Failed++
		failures = append(failures, Failure{SegmentID: seg.ID, OutputPath: outPath, Message: clip.Message})
		if err := segStore.RecordFailure(ctx, seg.ID, outPath); err != nil {
			return queue.ExportSegmentsResult{}, err
		}
		logging.WarnWithContext(segLogger, "segment export failed", "segment_export_failed",
			logging.String("message", clip.Message),
			logging.String(logging.FieldErrorHint, "retry the export from the review queue"),
			logging.String(logging.FieldImpact, "segment has no clip"),
		)
	}

	progress.Report(95, "Record results", fmt.Sprintf("%d exported, %d skipped, %d failed", result.Exported, result.Skipped, result.Failed))
	if len(failures) > 0 {
		if _, err := s.reviews.Supersede(ctx, sess, library.ReviewNeedsExportReview,
			fmt.Sprintf("%d segment export(s) failed for %s. Retry export.", len(failures), tape.Code()),
			tapeID,
			map[string][]Failure{"failures": failures},
		); err != nil {
			return queue.ExportSegmentsResult{}, err
		}
	} else if _, err := library.NewReviewItems(sess).ResolveOpen(ctx, library.ReviewNeedsExportReview, tapeID); err != nil {
		return queue.ExportSegmentsResult{}, err
	}
	if err := sess.Commit(); err != nil {
		return queue.ExportSegmentsResult{}, err
	}

	result.Message = summary(result)
	logger.Info("segment export finished",
		logging.Event("segment_export_complete"),
		logging.Int("exported", result.Exported),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.String("output_dir", outputDir),
	)
	progress.Report(100, "Done", result.Message)
	return result, nil
}

func summary(r queue.ExportSegmentsResult) string {
	if r.Failed > 0 {
		return fmt.Sprintf("Exported %d segment(s). %d failed. Output folder: %s", r.Exported, r.Failed, r.OutputDir)
	}
	return fmt.Sprintf("Exported %d segment(s); skipped %d existing. Output folder: %s", r.Exported, r.Skipped, r.OutputDir)
}

// outputMetadata reads generated-at (file mtime), size and digest of a clip.
func outputMetadata(path string) (library.OutputMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return library.OutputMetadata{}, fmt.Errorf("stat output: %w", err)
	}
	digest, err := fileutil.Digest(path)
	if err != nil {
		return library.OutputMetadata{}, err
	}
	return library.OutputMetadata{
		GeneratedAt: database.Timestamp(info.ModTime()),
		SizeBytes:   info.Size(),
		SHA256:      digest,
	}, nil
}
