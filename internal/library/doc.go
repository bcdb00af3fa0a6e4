// Package library persists tapes, scene suggestions, segments and review items.
//
// Stores are thin wrappers over a Querier: a *sql.DB for one-off reads, or a
// Session when a pipeline needs its own connection and a transaction it can
// commit at checkpoints and roll back on failure. Lookups return nil, nil when
// no row matches.
package library
