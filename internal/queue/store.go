package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tapedeck/internal/database"
	"tapedeck/internal/logging"
)

const jobColumns = `id, job_type, status, percent, current_step, detail, tape_id, payload_json,
    result_json, error_text, created_at, started_at, finished_at`

// ErrUnknownType is returned when a job is created with an unregistered type.
var ErrUnknownType = errors.New("unknown job type")

// Store persists jobs. Every write runs through the busy retry policy on its
// own pooled connection so job rows stay visible while a pipeline holds a
// long transaction elsewhere.
type Store struct {
	db     *sql.DB
	retry  database.RetryPolicy
	logger *slog.Logger
}

// NewStore binds a job store to db.
func NewStore(db *sql.DB, retry database.RetryPolicy, logger *slog.Logger) *Store {
	return &Store{db: db, retry: retry, logger: logging.NewComponentLogger(logger, "jobs")}
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	var affected int64
	err := s.retry.Retry(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}

// Create inserts a queued job for payload. tapeID zero leaves tape_id NULL.
func (s *Store) Create(ctx context.Context, payload Payload, tapeID int64) (*Job, error) {
	if payload == nil || !KnownType(payload.JobType()) {
		return nil, ErrUnknownType
	}
	encoded, err := encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var tape any
	if tapeID > 0 {
		tape = tapeID
	}
	var id int64
	err = s.retry.Retry(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO jobs (job_type, status, percent, tape_id, payload_json, created_at)
             VALUES (?, ?, 0, ?, ?, ?)`,
			string(payload.JobType()), string(StatusQueued), tape, encoded, database.Now(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Debug("job created",
		logging.Event("job_created"),
		logging.Int64(logging.FieldJobID, id),
		logging.String(logging.FieldJobType, string(payload.JobType())),
	)
	return s.Get(ctx, id)
}

// Update applies a partial update. Percent is clamped; started_at is stamped
// the first time status becomes running and finished_at the first time it
// becomes terminal.
func (s *Store) Update(ctx context.Context, id int64, u Update) error {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 10)
	if u.Percent != nil {
		sets = append(sets, "percent = ?")
		args = append(args, ClampPercent(*u.Percent))
	}
	if u.Step != nil {
		sets = append(sets, "current_step = ?")
		args = append(args, *u.Step)
	}
	if u.Detail != nil {
		sets = append(sets, "detail = ?")
		args = append(args, *u.Detail)
	}
	if u.Result != nil {
		encoded, err := encode(u.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		sets = append(sets, "result_json = ?")
		args = append(args, encoded)
	}
	if u.Error != nil {
		sets = append(sets, "error_text = ?")
		args = append(args, *u.Error)
	}
	if u.Status != nil {
		now := database.Now()
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
		if *u.Status == StatusRunning {
			sets = append(sets, "started_at = CASE WHEN started_at = '' THEN ? ELSE started_at END")
			args = append(args, now)
		}
		if u.Status.Terminal() {
			sets = append(sets, "finished_at = CASE WHEN finished_at = '' THEN ? ELSE finished_at END")
			args = append(args, now)
		}
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := s.exec(ctx, "update job", `UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

// Start marks a queued job running. It returns false when the job was
// canceled (or otherwise left queued) before the worker reached it.
func (s *Store) Start(ctx context.Context, id int64) (bool, error) {
	now := database.Now()
	n, err := s.exec(ctx, "start job",
		`UPDATE jobs
            SET status = ?, percent = 0,
                started_at = CASE WHEN started_at = '' THEN ? ELSE started_at END
          WHERE id = ? AND status = ?`,
		string(StatusRunning), now, id, string(StatusQueued),
	)
	return n > 0, err
}

// Complete records success with result. A job canceled while running keeps
// its canceled status.
func (s *Store) Complete(ctx context.Context, id int64, result Result) error {
	encoded := ""
	if result != nil {
		var err error
		if encoded, err = encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	now := database.Now()
	_, err := s.exec(ctx, "complete job",
		`UPDATE jobs
            SET status = ?, percent = 100, current_step = 'Done', result_json = ?,
                finished_at = CASE WHEN finished_at = '' THEN ? ELSE finished_at END
          WHERE id = ? AND status <> ?`,
		string(StatusSuccess), encoded, now, id, string(StatusCanceled),
	)
	return err
}

// Fail records failure with message. A job canceled while running keeps its
// canceled status.
func (s *Store) Fail(ctx context.Context, id int64, message string) error {
	now := database.Now()
	_, err := s.exec(ctx, "fail job",
		`UPDATE jobs
            SET status = ?, error_text = ?,
                finished_at = CASE WHEN finished_at = '' THEN ? ELSE finished_at END
          WHERE id = ? AND status <> ?`,
		string(StatusFailed), message, now, id, string(StatusCanceled),
	)
	return err
}

// Cancel moves a queued or running job to canceled. It returns false when the
// job does not exist or already finished.
func (s *Store) Cancel(ctx context.Context, id int64) (bool, error) {
	now := database.Now()
	n, err := s.exec(ctx, "cancel job",
		`UPDATE jobs
            SET status = ?, error_text = CASE WHEN error_text = '' THEN 'Canceled by user.' ELSE error_text END,
                finished_at = CASE WHEN finished_at = '' THEN ? ELSE finished_at END
          WHERE id = ? AND status IN (?, ?)`,
		string(StatusCanceled), now, id, string(StatusQueued), string(StatusRunning),
	)
	if n > 0 {
		s.logger.Info("job canceled",
			logging.Event("job_canceled"),
			logging.Int64(logging.FieldJobID, id),
		)
	}
	return n > 0, err
}

// RecoverStale marks jobs left running or queued by a previous process as
// stale. It returns the number of jobs affected.
func (s *Store) RecoverStale(ctx context.Context) (int64, error) {
	now := database.Now()
	var total int64
	for _, pass := range []struct {
		from   Status
		reason string
	}{
		{StatusRunning, StaleReason},
		{StatusQueued, OrphanedReason},
	} {
		n, err := s.exec(ctx, "recover stale jobs",
			`UPDATE jobs
                SET status = ?,
                    error_text = CASE WHEN error_text = '' THEN ? ELSE error_text END,
                    finished_at = CASE WHEN finished_at = '' THEN ? ELSE finished_at END
              WHERE status = ?`,
			string(StatusStale), pass.reason, now, string(pass.from),
		)
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		logging.WarnWithContext(s.logger, "jobs marked stale", "jobs_marked_stale",
			logging.Int64("count", total),
			logging.String(logging.FieldErrorHint, "resubmit the affected jobs"),
			logging.String(logging.FieldImpact, "work interrupted by the previous shutdown did not finish"),
		)
	}
	return total, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job    Job
		typ    string
		status string
		tapeID sql.NullInt64
	)
	if err := scanner.Scan(
		&job.ID, &typ, &status, &job.Percent, &job.CurrentStep, &job.Detail, &tapeID, &job.PayloadJSON,
		&job.ResultJSON, &job.ErrorText, &job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	); err != nil {
		return nil, err
	}
	job.Type = Type(typ)
	job.Status = Status(status)
	job.TapeID = tapeID.Int64
	return &job, nil
}

// Get returns the job with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Recent returns up to limit jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByStatus returns the number of jobs in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}
