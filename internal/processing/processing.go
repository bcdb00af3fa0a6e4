// Package processing derives media facts and scene suggestions for a tape and
// turns accepted suggestions into segments.
package processing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tapedeck/internal/config"
	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/media"
	"tapedeck/internal/queue"
	"tapedeck/internal/review"
	"tapedeck/internal/services"
	"tapedeck/internal/worker"
)

// Service runs media processing for one project.
type Service struct {
	paths   config.ProjectPaths
	media   *media.Toolkit
	reviews *review.Service
	logger  *slog.Logger
}

// NewService binds processing to the project's paths, media toolkit and review queue.
func NewService(paths config.ProjectPaths, toolkit *media.Toolkit, reviews *review.Service, logger *slog.Logger) *Service {
	return &Service{
		paths:   paths,
		media:   toolkit,
		reviews: reviews,
		logger:  logging.NewComponentLogger(logger, "processing"),
	}
}

// TapeRedirect is the client landing page for a tape.
func TapeRedirect(tapeID int64) string {
	return fmt.Sprintf("/tapes/%d", tapeID)
}

// LoadWithRaw fetches a tape and checks that its raw file is on disk. The
// error carries the user-facing reason when it is not.
func LoadWithRaw(ctx context.Context, q library.Querier, tapeID int64, action string) (*library.Tape, error) {
	tape, err := library.NewTapes(q).Get(ctx, tapeID)
	if err != nil {
		return nil, err
	}
	if tape == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "", "Tape not found.", nil)
	}
	if tape.RawPath == "" {
		return nil, services.Wrap(services.ErrValidation, "", "",
			fmt.Sprintf("Raw file path missing. Ingest the tape before %s.", action), nil)
	}
	if info, err := os.Stat(tape.RawPath); err != nil || !info.Mode().IsRegular() {
		return nil, services.Wrap(services.ErrNotFound, "", "", "Raw file could not be found on disk.", nil)
	}
	return tape, nil
}

// ThumbnailRelPath is where a tape's thumbnail lives, relative to the project root.
func ThumbnailRelPath(tape *library.Tape) string {
	return filepath.Join("thumbnails", tape.Code()+".jpg")
}

// ProcessMedia probes duration and size, generates the thumbnail and replaces
// open scene suggestions with a fresh detection run.
func (s *Service) ProcessMedia(ctx context.Context, sess *library.Session, tapeID int64, progress worker.Progress) (queue.ProcessMediaResult, error) {
	if progress == nil {
		progress = worker.Discard
	}
	logger := logging.WithContext(services.WithTapeID(ctx, tapeID), s.logger)

	progress.Report(5, "Validate inputs", fmt.Sprintf("Checking tape %d", tapeID))
	tape, err := LoadWithRaw(ctx, sess, tapeID, "processing media")
	if err != nil {
		return queue.ProcessMediaResult{}, err
	}
	code := tape.Code()
	logger.Info("media processing started",
		logging.Event("media_processing_start"),
		logging.String("tape_code", code),
		logging.String("raw_path", tape.RawPath),
	)

	progress.Report(10, "Probe metadata", "Reading duration and size")
	meta := s.media.ProbeMetadata(ctx, tape.RawPath)

	progress.Report(30, "Generate thumbnail", code+".jpg")
	relThumb := ThumbnailRelPath(tape)
	absThumb := filepath.Join(s.paths.Root, relThumb)
	thumb := s.media.GenerateThumbnail(ctx, tape.RawPath, absThumb, false)
	thumbPath := tape.ThumbPath
	if thumb.Status == media.ThumbnailCreated || thumb.Status == media.ThumbnailSkipped {
		if _, err := os.Stat(absThumb); err == nil {
			thumbPath = relThumb
		}
	}

	tapes := library.NewTapes(sess)
	if err := tapes.UpdateMedia(ctx, tape.ID, library.MediaUpdate{
		Duration:      meta.DurationSeconds,
		FileSizeBytes: meta.FileSizeBytes,
		ThumbPath:     thumbPath,
		ThumbCreated:  thumb.Status == media.ThumbnailCreated,
	}); err != nil {
		return queue.ProcessMediaResult{}, err
	}

	progress.Report(55, "Detect scenes", "Scanning for scene changes")
	segments := s.media.DetectSceneSegments(ctx, tape.RawPath)

	progress.Report(85, "Save suggestions", fmt.Sprintf("%d suggestion(s)", len(segments)))
	suggestions := library.NewSuggestions(sess)
	if _, err := suggestions.SupersedeOpen(ctx, tape.ID); err != nil {
		return queue.ProcessMediaResult{}, err
	}
	for _, seg := range segments {
		if _, err := suggestions.Insert(ctx, tape.ID, seg.Start, seg.End, seg.Confidence); err != nil {
			return queue.ProcessMediaResult{}, err
		}
	}
	if err := tapes.SetSceneSuggested(ctx, tape.ID, len(segments) > 0); err != nil {
		return queue.ProcessMediaResult{}, err
	}
	if len(segments) > 0 {
		if _, err := s.reviews.Supersede(ctx, sess, library.ReviewNeedsSplitReview,
			fmt.Sprintf("Scene splits suggested for %s. Review and accept or ignore.", code),
			tape.ID, nil,
		); err != nil {
			return queue.ProcessMediaResult{}, err
		}
	} else if _, err := library.NewReviewItems(sess).ResolveOpen(ctx, library.ReviewNeedsSplitReview, tape.ID); err != nil {
		return queue.ProcessMediaResult{}, err
	}
	if err := sess.Commit(); err != nil {
		return queue.ProcessMediaResult{}, err
	}

	attrs := []logging.Attr{
		logging.Event("media_processing_complete"),
		logging.String("thumbnail_status", thumb.Status),
		logging.Int("suggestions_count", len(segments)),
	}
	if meta.DurationSeconds != nil {
		attrs = append(attrs, logging.Float64("duration_seconds", *meta.DurationSeconds))
	}
	if meta.FileSizeBytes != nil {
		attrs = append(attrs, logging.Int64("file_size_bytes", *meta.FileSizeBytes))
	}
	logger.Info("media processing completed", logging.Args(attrs...)...)

	message := processMessage(s.media.FFmpegAvailable(), thumb.Message, len(segments))
	progress.Report(100, "Done", message)
	return queue.ProcessMediaResult{
		ThumbnailStatus: thumb.Status,
		Message:         message,
		Suggestions:     len(segments),
		DurationSeconds: meta.DurationSeconds,
		FileSizeBytes:   meta.FileSizeBytes,
		Redirect:        TapeRedirect(tape.ID),
	}, nil
}

func processMessage(ffmpegAvailable bool, thumbMessage string, suggestions int) string {
	switch {
	case !ffmpegAvailable:
		return "ffmpeg not installed. Install ffmpeg to enable thumbnails and scene detection. Metadata and file size were still updated."
	case suggestions > 0:
		return thumbMessage + " Scene suggestions generated."
	default:
		return thumbMessage + " No major scene changes detected."
	}
}
