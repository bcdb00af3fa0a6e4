package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tapedeck/internal/database"
)

const tapeColumns = `id, tape_code, tape_label_text, label_is_guess, title, source_label, date_type,
    date_exact, date_start, date_end, date_locked, status, raw_filename, raw_path, sha256,
    ingested_at, backup_status, notes, tags_json, created_at, duration_seconds, file_size_bytes,
    thumb_path, thumb_generated_at, scene_suggested`

const tapeCodePrefix = "TAPE_"

// FormatTapeCode renders the canonical TAPE_NNNN code for n.
func FormatTapeCode(n int64) string {
	return fmt.Sprintf("%s%04d", tapeCodePrefix, n)
}

// Tapes reads and writes tape rows.
type Tapes struct {
	q Querier
}

// NewTapes binds a tape store to q.
func NewTapes(q Querier) Tapes {
	return Tapes{q: q}
}

func scanTape(scanner rowScanner) (*Tape, error) {
	var (
		t         Tape
		code      sql.NullString
		guess     int
		dateType  string
		dateStart sql.NullInt64
		dateEnd   sql.NullInt64
		locked    int
		status    string
		sha       sql.NullString
		backup    string
		tags      string
		duration  sql.NullFloat64
		size      sql.NullInt64
		suggested int
	)
	if err := scanner.Scan(
		&t.ID, &code, &t.LabelText, &guess, &t.Title, &t.SourceLabel, &dateType,
		&t.DateExact, &dateStart, &dateEnd, &locked, &status, &t.RawFilename, &t.RawPath, &sha,
		&t.IngestedAt, &backup, &t.Notes, &tags, &t.CreatedAt, &duration, &size,
		&t.ThumbPath, &t.ThumbAt, &suggested,
	); err != nil {
		return nil, err
	}
	t.TapeCode = code.String
	t.LabelIsGuess = guess != 0
	t.DateType = DateType(dateType)
	t.DateStart = int64Ptr(dateStart)
	t.DateEnd = int64Ptr(dateEnd)
	t.DateLocked = locked != 0
	t.Status = TapeStatus(status)
	t.SHA256 = sha.String
	t.BackupStatus = BackupStatus(backup)
	t.Tags = decodeTags(tags)
	t.Duration = float64Ptr(duration)
	t.FileSizeBytes = int64Ptr(size)
	t.SceneSuggest = suggested != 0
	return &t, nil
}

func (s Tapes) one(ctx context.Context, op, where string, args ...any) (*Tape, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+tapeColumns+` FROM tapes WHERE `+where+` LIMIT 1`, args...)
	tape, err := scanTape(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tape, nil
}

// Get returns the tape with id, or nil.
func (s Tapes) Get(ctx context.Context, id int64) (*Tape, error) {
	return s.one(ctx, "get tape", "id = ?", id)
}

// FindByDigest returns the tape whose raw file has the given digest, or nil.
func (s Tapes) FindByDigest(ctx context.Context, digest string) (*Tape, error) {
	if strings.TrimSpace(digest) == "" {
		return nil, nil
	}
	return s.one(ctx, "find tape by digest", "sha256 = ?", digest)
}

// KnownDigests returns every recorded raw-file digest.
func (s Tapes) KnownDigests(ctx context.Context) (map[string]int64, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, sha256 FROM tapes WHERE sha256 IS NOT NULL AND sha256 <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	defer rows.Close()
	digests := make(map[string]int64)
	for rows.Next() {
		var (
			id     int64
			digest string
		)
		if err := rows.Scan(&id, &digest); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		digests[digest] = id
	}
	return digests, rows.Err()
}

func (s Tapes) list(ctx context.Context, op, query string, args ...any) ([]Tape, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var tapes []Tape
	for rows.Next() {
		tape, err := scanTape(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tapes = append(tapes, *tape)
	}
	return tapes, rows.Err()
}

// List returns every tape ordered by code.
func (s Tapes) List(ctx context.Context) ([]Tape, error) {
	return s.list(ctx, "list tapes", `SELECT `+tapeColumns+` FROM tapes ORDER BY tape_code, id`)
}

// ListUnassigned returns tapes entered by hand that still wait for raw media,
// newest first.
func (s Tapes) ListUnassigned(ctx context.Context) ([]Tape, error) {
	return s.list(ctx, "list unassigned tapes",
		`SELECT `+tapeColumns+` FROM tapes WHERE status = ? AND raw_path = '' ORDER BY created_at DESC, id DESC`,
		TapeNew,
	)
}

// NextTapeCode returns the code after the highest existing TAPE_NNNN.
func (s Tapes) NextTapeCode(ctx context.Context) (string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT tape_code FROM tapes WHERE tape_code LIKE 'TAPE_%'`)
	if err != nil {
		return "", fmt.Errorf("list tape codes: %w", err)
	}
	defer rows.Close()
	var highest int64
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return "", fmt.Errorf("scan tape code: %w", err)
		}
		n, err := strconv.ParseInt(strings.TrimPrefix(code, tapeCodePrefix), 10, 64)
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return FormatTapeCode(highest + 1), nil
}

// NewTape carries the fields set when a tape row is created.
type NewTape struct {
	TapeCode     string
	Title        string
	LabelText    string
	SourceLabel  string
	DateType     DateType
	Status       TapeStatus
	RawFilename  string
	RawPath      string
	SHA256       string
	IngestedAt   string
	BackupStatus BackupStatus
	Notes        string
	Tags         []string
}

// Insert creates a tape and returns its id.
func (s Tapes) Insert(ctx context.Context, t NewTape) (int64, error) {
	if t.DateType == "" {
		t.DateType = DateUnknown
	}
	if t.Status == "" {
		t.Status = TapeNew
	}
	if t.BackupStatus == "" {
		t.BackupStatus = BackupUnknown
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO tapes (
            tape_code, title, tape_label_text, source_label, date_type, status,
            raw_filename, raw_path, sha256, ingested_at, backup_status, notes, tags_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(t.TapeCode), t.Title, t.LabelText, t.SourceLabel, t.DateType, t.Status,
		t.RawFilename, t.RawPath, nullableString(t.SHA256), t.IngestedAt, t.BackupStatus, t.Notes,
		encodeTags(t.Tags), database.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert tape: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// AttachRaw links an ingested raw file to an existing tape and marks it Ingested.
func (s Tapes) AttachRaw(ctx context.Context, id int64, rawFilename, rawPath, digest, ingestedAt string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE tapes
         SET raw_filename = ?, raw_path = ?, sha256 = ?, status = ?, ingested_at = ?, backup_status = ?
         WHERE id = ?`,
		rawFilename, rawPath, nullableString(digest), TapeIngested, ingestedAt, BackupQueued, id,
	)
	if err != nil {
		return fmt.Errorf("attach raw file: %w", err)
	}
	return nil
}

// SetBackupStatus records the outcome of a backup attempt.
func (s Tapes) SetBackupStatus(ctx context.Context, id int64, status BackupStatus) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE tapes SET backup_status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("set backup status: %w", err)
	}
	return nil
}

// SetStatus moves a tape to a new lifecycle status.
func (s Tapes) SetStatus(ctx context.Context, id int64, status TapeStatus) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE tapes SET status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("set tape status: %w", err)
	}
	return nil
}

// PromoteToMastered marks a New or Ingested tape as Mastered. Later statuses are kept.
func (s Tapes) PromoteToMastered(ctx context.Context, id int64) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE tapes SET status = ? WHERE id = ? AND status IN (?, ?)`,
		TapeMastered, id, TapeNew, TapeIngested,
	)
	if err != nil {
		return false, fmt.Errorf("promote tape: %w", err)
	}
	n, err := rowsAffected(res, "promote tape")
	return n > 0, err
}

// MediaUpdate carries probed media facts for a tape.
type MediaUpdate struct {
	Duration      *float64
	FileSizeBytes *int64
	ThumbPath     string
	// ThumbCreated stamps thumb_generated_at; leave false when the thumbnail was reused.
	ThumbCreated bool
}

// UpdateMedia stores probed duration, size and thumbnail path.
func (s Tapes) UpdateMedia(ctx context.Context, id int64, m MediaUpdate) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE tapes
         SET duration_seconds = ?, file_size_bytes = ?, thumb_path = ?,
             thumb_generated_at = CASE WHEN ? THEN ? ELSE thumb_generated_at END
         WHERE id = ?`,
		nullableFloat64(m.Duration), nullableInt64(m.FileSizeBytes), m.ThumbPath,
		boolToInt(m.ThumbCreated), database.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update tape media: %w", err)
	}
	return nil
}

// SetSceneSuggested records whether open scene suggestions exist.
func (s Tapes) SetSceneSuggested(ctx context.Context, id int64, suggested bool) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE tapes SET scene_suggested = ? WHERE id = ?`, boolToInt(suggested), id); err != nil {
		return fmt.Errorf("set scene suggested: %w", err)
	}
	return nil
}

// CountByStatus returns tape counts keyed by lifecycle status.
func (s Tapes) CountByStatus(ctx context.Context) (map[TapeStatus]int, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT status, COUNT(1) FROM tapes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("tape stats: %w", err)
	}
	defer rows.Close()
	counts := make(map[TapeStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[TapeStatus(status)] = count
	}
	return counts, rows.Err()
}
