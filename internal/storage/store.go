// Package storage implements the persistence of users, progress, the quiz catalog,
// responses, media and generation requests on top of sqlx. Queries are written
// with "?" placeholders and rebound for the active driver.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/neuroquiz/core/logger"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store runs queries either on the pool or inside a transaction.
type Store struct {
	db   sqlx.ExtContext
	root *sqlx.DB
}

// New returns a Store bound to the connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, root: db}
}

// RunInTx executes fn with a Store bound to a new transaction. The transaction is
// committed when fn returns nil and rolled back otherwise. Nested calls reuse the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.root == nil {
		return fn(s)
	}
	tx, err := s.root.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	if err := fn(&Store{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.DB.Warn("rollback failed",
				slog.String("event", "db.rollback"),
				logger.Err(rbErr),
			)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, s.db, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.db, dest, s.db.Rebind(query), args...)
}

// exec runs a statement and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
