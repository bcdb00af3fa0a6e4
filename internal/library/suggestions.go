package library

import (
	"context"
	"database/sql"
	"fmt"

	"tapedeck/internal/database"
)

// Suggestions reads and writes scene suggestion rows.
type Suggestions struct {
	q Querier
}

// NewSuggestions binds a suggestion store to q.
func NewSuggestions(q Querier) Suggestions {
	return Suggestions{q: q}
}

// ListOpen returns a tape's open suggestions in start order.
func (s Suggestions) ListOpen(ctx context.Context, tapeID int64) ([]Suggestion, error) {
	return s.list(ctx, `WHERE tape_id = ? AND status = ? ORDER BY start_seconds ASC, id ASC`, tapeID, SuggestionOpen)
}

// ListForTape returns every suggestion for a tape, history included.
func (s Suggestions) ListForTape(ctx context.Context, tapeID int64) ([]Suggestion, error) {
	return s.list(ctx, `WHERE tape_id = ? ORDER BY id ASC`, tapeID)
}

func (s Suggestions) list(ctx context.Context, clause string, args ...any) ([]Suggestion, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, tape_id, start_seconds, end_seconds, confidence, status, notes, created_at
         FROM segment_suggestions `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()
	var out []Suggestion
	for rows.Next() {
		var (
			sg         Suggestion
			confidence sql.NullFloat64
			status     string
		)
		if err := rows.Scan(&sg.ID, &sg.TapeID, &sg.Start, &sg.End, &confidence, &status, &sg.Notes, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		sg.Confidence = float64Ptr(confidence)
		sg.Status = SuggestionStatus(status)
		out = append(out, sg)
	}
	return out, rows.Err()
}

// Insert adds an open suggestion.
func (s Suggestions) Insert(ctx context.Context, tapeID int64, start, end float64, confidence *float64) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO segment_suggestions (tape_id, start_seconds, end_seconds, confidence, created_at, status, notes)
         VALUES (?, ?, ?, ?, ?, ?, '')`,
		tapeID, start, end, nullableFloat64(confidence), database.Now(), SuggestionOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("insert suggestion: %w", err)
	}
	return res.LastInsertId()
}

// SupersedeOpen marks a tape's open suggestions ignored with a "superseded" note.
func (s Suggestions) SupersedeOpen(ctx context.Context, tapeID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE segment_suggestions SET status = ?, notes = 'superseded' WHERE tape_id = ? AND status = ?`,
		SuggestionIgnored, tapeID, SuggestionOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("supersede suggestions: %w", err)
	}
	return rowsAffected(res, "supersede suggestions")
}

// ResolveOpen moves a tape's open suggestions to status.
func (s Suggestions) ResolveOpen(ctx context.Context, tapeID int64, status SuggestionStatus) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE segment_suggestions SET status = ? WHERE tape_id = ? AND status = ?`,
		status, tapeID, SuggestionOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("resolve suggestions: %w", err)
	}
	return rowsAffected(res, "resolve suggestions")
}
