package library

import (
	"context"
	"database/sql"
	"fmt"

	"tapedeck/internal/database"
)

// Segments reads and writes committed segment rows.
type Segments struct {
	q Querier
}

// NewSegments binds a segment store to q.
func NewSegments(q Querier) Segments {
	return Segments{q: q}
}

// ListForTape returns a tape's segments in ascending start order.
func (s Segments) ListForTape(ctx context.Context, tapeID int64) ([]Segment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, tape_id, start_seconds, end_seconds, title, created_by, created_at,
                output_path, output_generated_at, output_size_bytes, output_sha256, export_status
         FROM segments WHERE tape_id = ? ORDER BY start_seconds ASC, id ASC`, tapeID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()
	var out []Segment
	for rows.Next() {
		var (
			seg    Segment
			size   sql.NullInt64
			status string
		)
		if err := rows.Scan(&seg.ID, &seg.TapeID, &seg.Start, &seg.End, &seg.Title, &seg.CreatedBy, &seg.CreatedAt,
			&seg.OutputPath, &seg.OutputGeneratedAt, &size, &seg.OutputSHA256, &status); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.OutputSizeBytes = int64Ptr(size)
		seg.ExportStatus = ExportStatus(status)
		out = append(out, seg)
	}
	return out, rows.Err()
}

// Insert adds a segment and returns its id.
func (s Segments) Insert(ctx context.Context, tapeID int64, start, end float64, title, createdBy string) (int64, error) {
	if end <= start {
		return 0, fmt.Errorf("insert segment: end %.3f is not after start %.3f", end, start)
	}
	if createdBy == "" {
		createdBy = CreatedBySystem
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO segments (tape_id, start_seconds, end_seconds, title, created_by, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		tapeID, start, end, title, createdBy, database.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert segment: %w", err)
	}
	return res.LastInsertId()
}

// OutputMetadata describes an exported clip on disk.
type OutputMetadata struct {
	GeneratedAt string
	SizeBytes   int64
	SHA256      string
}

// RecordExport stores fresh output metadata and marks the segment exported.
func (s Segments) RecordExport(ctx context.Context, id int64, outputPath string, meta OutputMetadata) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE segments
         SET output_path = ?, output_generated_at = ?, output_size_bytes = ?, output_sha256 = ?, export_status = ?
         WHERE id = ?`,
		outputPath, meta.GeneratedAt, meta.SizeBytes, meta.SHA256, ExportExported, id,
	)
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// RecordSkipped marks a segment exported for an output that already exists.
// Metadata already stored is kept; a nil meta leaves all of it untouched.
func (s Segments) RecordSkipped(ctx context.Context, id int64, outputPath string, meta *OutputMetadata) error {
	var generatedAt, size, sha any
	if meta != nil {
		generatedAt, size, sha = meta.GeneratedAt, meta.SizeBytes, meta.SHA256
	}
	_, err := s.q.ExecContext(ctx,
		`UPDATE segments
         SET output_path = ?,
             output_generated_at = CASE WHEN output_generated_at = '' THEN COALESCE(?, '') ELSE output_generated_at END,
             output_size_bytes = COALESCE(NULLIF(output_size_bytes, 0), ?),
             output_sha256 = CASE WHEN output_sha256 = '' THEN COALESCE(?, '') ELSE output_sha256 END,
             export_status = ?
         WHERE id = ?`,
		outputPath, generatedAt, size, sha, ExportExported, id,
	)
	if err != nil {
		return fmt.Errorf("record skipped export: %w", err)
	}
	return nil
}

// RecordFailure marks a segment's export failed, keeping the attempted path.
func (s Segments) RecordFailure(ctx context.Context, id int64, outputPath string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE segments SET output_path = ?, export_status = ? WHERE id = ?`,
		outputPath, ExportFailed, id,
	)
	if err != nil {
		return fmt.Errorf("record export failure: %w", err)
	}
	return nil
}
