package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Querier is satisfied by *sql.DB, *sql.Conn, *sql.Tx and *Session.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session owns one pooled connection. The first write opens a transaction;
// reads join it while it is open. Commit and Rollback end the transaction and
// leave the session usable; Close releases the connection and rolls back
// anything still pending.
type Session struct {
	conn *sql.Conn
	tx   *sql.Tx
}

// OpenSession reserves a dedicated connection from db.
func OpenSession(ctx context.Context, db *sql.DB) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Pending reports whether uncommitted writes exist.
func (s *Session) Pending() bool {
	return s.tx != nil
}

func (s *Session) begin(ctx context.Context) (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	if s.conn == nil {
		return nil, errors.New("session closed")
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// ExecContext runs a write inside the session transaction, opening it if needed.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx.ExecContext(ctx, query, args...)
}

// QueryContext reads through the open transaction, or the bare connection.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	if s.conn == nil {
		return nil, errors.New("session closed")
	}
	return s.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext reads a single row through the open transaction, or the bare connection.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if s.tx != nil {
		return s.tx.QueryRowContext(ctx, query, args...)
	}
	return s.conn.QueryRowContext(ctx, query, args...)
}

// Commit persists pending writes. It is a no-op when nothing is pending.
func (s *Session) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards pending writes. It is a no-op when nothing is pending.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close rolls back pending writes and returns the connection to the pool.
func (s *Session) Close() error {
	rollbackErr := s.Rollback()
	if s.conn == nil {
		return rollbackErr
	}
	conn := s.conn
	s.conn = nil
	return errors.Join(rollbackErr, conn.Close())
}
