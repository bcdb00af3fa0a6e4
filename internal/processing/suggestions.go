package processing

import (
	"context"
	"fmt"

	"tapedeck/internal/library"
	"tapedeck/internal/logging"
	"tapedeck/internal/services"
)

// AcceptOutcome summarizes AcceptSuggestions.
type AcceptOutcome struct {
	Segments int
	// Promoted is true when the tape moved to Mastered.
	Promoted bool
	Message  string
}

// AcceptSuggestions turns every open suggestion into a system segment, in
// start order, and promotes a New or Ingested tape to Mastered.
func (s *Service) AcceptSuggestions(ctx context.Context, sess *library.Session, tapeID int64) (AcceptOutcome, error) {
	tape, err := library.NewTapes(sess).Get(ctx, tapeID)
	if err != nil {
		return AcceptOutcome{}, err
	}
	if tape == nil {
		return AcceptOutcome{}, services.Wrap(services.ErrNotFound, "", "", "Tape not found.", nil)
	}
	suggestions := library.NewSuggestions(sess)
	open, err := suggestions.ListOpen(ctx, tapeID)
	if err != nil {
		return AcceptOutcome{}, err
	}
	if len(open) == 0 {
		return AcceptOutcome{}, services.Wrap(services.ErrValidation, "", "", "No open suggestions to accept.", nil)
	}

	segments := library.NewSegments(sess)
	for _, sug := range open {
		if _, err := segments.Insert(ctx, tapeID, sug.Start, sug.End, "", library.CreatedBySystem); err != nil {
			return AcceptOutcome{}, err
		}
	}
	if _, err := suggestions.ResolveOpen(ctx, tapeID, library.SuggestionAccepted); err != nil {
		return AcceptOutcome{}, err
	}
	if _, err := library.NewReviewItems(sess).ResolveOpen(ctx, library.ReviewNeedsSplitReview, tapeID); err != nil {
		return AcceptOutcome{}, err
	}
	promoted, err := library.NewTapes(sess).PromoteToMastered(ctx, tapeID)
	if err != nil {
		return AcceptOutcome{}, err
	}
	if err := sess.Commit(); err != nil {
		return AcceptOutcome{}, err
	}

	logging.WithContext(services.WithTapeID(ctx, tapeID), s.logger).Info("suggestions accepted",
		logging.Event("suggestions_accepted"),
		logging.Int("segments", len(open)),
		logging.Bool("promoted", promoted),
	)
	return AcceptOutcome{
		Segments: len(open),
		Promoted: promoted,
		Message:  fmt.Sprintf("Suggestions accepted. %d segment(s) saved.", len(open)),
	}, nil
}

// IgnoreSuggestions marks open suggestions ignored and closes the split review.
func (s *Service) IgnoreSuggestions(ctx context.Context, sess *library.Session, tapeID int64) (int64, error) {
	n, err := library.NewSuggestions(sess).ResolveOpen(ctx, tapeID, library.SuggestionIgnored)
	if err != nil {
		return 0, err
	}
	if _, err := library.NewReviewItems(sess).ResolveOpen(ctx, library.ReviewNeedsSplitReview, tapeID); err != nil {
		return 0, err
	}
	if err := sess.Commit(); err != nil {
		return 0, err
	}
	logging.WithContext(services.WithTapeID(ctx, tapeID), s.logger).Info("suggestions ignored",
		logging.Event("suggestions_ignored"),
		logging.Int64("count", n),
	)
	return n, nil
}
