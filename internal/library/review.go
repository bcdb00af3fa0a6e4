package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tapedeck/internal/database"
)

// ReviewItems reads and writes review queue rows. It never deduplicates;
// callers supersede explicitly with ResolveOpen before Open.
type ReviewItems struct {
	q Querier
}

// NewReviewItems binds a review store to q.
func NewReviewItems(q Querier) ReviewItems {
	return ReviewItems{q: q}
}

// Open inserts an open item. payload may be nil; otherwise it is stored as JSON.
func (s ReviewItems) Open(ctx context.Context, itemType ReviewType, message string, tapeID int64, payload any) (int64, error) {
	payloadJSON := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("encode review payload: %w", err)
		}
		payloadJSON = string(data)
	}
	var tape any
	if tapeID > 0 {
		tape = tapeID
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO review_items (created_at, status, type, tape_id, message, payload_json)
         VALUES (?, ?, ?, ?, ?, ?)`,
		database.Now(), ReviewOpen, itemType, tape, message, payloadJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("open review item: %w", err)
	}
	return res.LastInsertId()
}

// Resolve closes one item. Resolving an already resolved item is a no-op.
func (s ReviewItems) Resolve(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE review_items SET status = ? WHERE id = ?`, ReviewResolved, id); err != nil {
		return fmt.Errorf("resolve review item: %w", err)
	}
	return nil
}

// ResolveOpen closes every open item of itemType for a tape and returns how many changed.
func (s ReviewItems) ResolveOpen(ctx context.Context, itemType ReviewType, tapeID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE review_items SET status = ? WHERE tape_id = ? AND type = ? AND status = ?`,
		ReviewResolved, tapeID, itemType, ReviewOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("resolve open review items: %w", err)
	}
	return rowsAffected(res, "resolve open review items")
}

const reviewSelect = `SELECT r.id, r.created_at, r.status, r.type, r.tape_id, r.message, r.payload_json,
        COALESCE(t.tape_code, ''), COALESCE(t.title, '')
    FROM review_items r LEFT JOIN tapes t ON r.tape_id = t.id`

func scanReviewItem(scanner rowScanner) (*ReviewItem, error) {
	var (
		item   ReviewItem
		status string
		kind   string
		tapeID sql.NullInt64
	)
	if err := scanner.Scan(&item.ID, &item.CreatedAt, &status, &kind, &tapeID, &item.Message, &item.PayloadJSON,
		&item.TapeCode, &item.TapeTitle); err != nil {
		return nil, err
	}
	item.Status = ReviewStatus(status)
	item.Type = ReviewType(kind)
	item.TapeID = int64Ptr(tapeID)
	return &item, nil
}

// Get returns one item, or nil.
func (s ReviewItems) Get(ctx context.Context, id int64) (*ReviewItem, error) {
	item, err := scanReviewItem(s.q.QueryRowContext(ctx, reviewSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review item: %w", err)
	}
	return item, nil
}

// ReviewFilter narrows List. Zero values match everything.
type ReviewFilter struct {
	Status ReviewStatus
	Type   ReviewType
	TapeID int64
}

// List returns matching items, newest first.
func (s ReviewItems) List(ctx context.Context, filter ReviewFilter) ([]ReviewItem, error) {
	query := reviewSelect + ` WHERE 1 = 1`
	var args []any
	if filter.Status != "" {
		query += ` AND r.status = ?`
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		query += ` AND r.type = ?`
		args = append(args, filter.Type)
	}
	if filter.TapeID > 0 {
		query += ` AND r.tape_id = ?`
		args = append(args, filter.TapeID)
	}
	query += ` ORDER BY r.created_at DESC, r.id DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()
	var out []ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// CountOpenByType returns open item counts keyed by type.
func (s ReviewItems) CountOpenByType(ctx context.Context) (map[ReviewType]int, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT type, COUNT(1) FROM review_items WHERE status = ? GROUP BY type`, ReviewOpen)
	if err != nil {
		return nil, fmt.Errorf("review stats: %w", err)
	}
	defer rows.Close()
	counts := make(map[ReviewType]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[ReviewType(kind)] = count
	}
	return counts, rows.Err()
}
