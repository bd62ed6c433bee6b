// Package store is the durable persistence layer (§3). It owns all
// reads/writes against Postgres; every other component either is pure
// (Normalizer, Filter Engine) or goes through Store for I/O.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup by key finds no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a pgx connection pool with the repository methods the rest
// of the system needs. It holds no business logic of its own beyond what
// is required to keep a write atomic.
type Store struct {
	db *pgxpool.Pool
}

// New wraps an already-connected pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for callers (Ingest, Emitter) that need
// to open their own transaction spanning multiple Store calls.
func (s *Store) DB() *pgxpool.Pool {
	return s.db
}

// WithRetry retries a transient Store operation once after a short pause,
// mirroring the §7 StoreUnavailable contract ("retried once internally;
// then surfaced"). Only transport-level failures should be retried; the
// caller decides what counts as transient.
func WithRetry(ctx context.Context, isTransient func(error) bool, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil || !isTransient(err) {
		return err
	}
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return op(ctx)
}
