package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"

	"tapedeck/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	sqliteBusyCode   = 5
	sqliteLockedCode = 6
	busyTimeoutMS    = 5000
)

// TimeFormat is the layout for every timestamp column: UTC, second precision, Z suffix.
const TimeFormat = "2006-01-02T15:04:05Z"

// Timestamp formats t for storage.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Now returns the current time formatted for storage.
func Now() string {
	return Timestamp(time.Now())
}

// Open connects to the SQLite database at path and applies pending migrations.
// Every pooled connection gets WAL journaling, a busy timeout and foreign keys,
// and transactions take the write lock when they begin.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func dsn(path string) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// Migrate applies the embedded goose migrations and logs each one applied.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "database")
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, result := range results {
		if result == nil || result.Source == nil {
			continue
		}
		logger.Info("schema migrated",
			logging.Event("schema_migrated"),
			logging.Int64("version", result.Source.Version),
			logging.String("source", result.Source.Path),
			logging.Duration("duration", result.Duration),
		)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(ctx context.Context, db *sql.DB) (int64, error) {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

// IsBusy reports whether err is SQLite lock contention worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() & 0xff {
		case sqliteBusyCode, sqliteLockedCode:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// RetryPolicy bounds how long a write keeps retrying on lock contention.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Retry runs op, retrying with a fixed delay while it fails with a busy error.
// Any other error, or the last busy error once attempts run out, is returned.
func (p RetryPolicy) Retry(ctx context.Context, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if IsBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
