// Package database opens a project's SQLite file and keeps its schema current.
//
// Connections are configured through the driver DSN so every pooled
// connection shares the same pragmas. Schema changes live in migrations/ as
// goose SQL files, applied in order on every open. RetryPolicy wraps writes
// that can collide with another connection holding the write lock.
package database
