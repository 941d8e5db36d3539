package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"billtracker/internal/core"
)

var _ Store = (*SQLStore)(nil)

// SQLStore implements Store on sqlite or postgres.
type SQLStore struct {
	db  *sqlx.DB
	d   dialect
	sb  sq.StatementBuilderType
	now func() time.Time
}

// Open migrates and opens the database for driver ("sqlite" or "postgres").
// For sqlite, dsn is a file path and its directory is created.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if d.driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(driver, dsn); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(d.driver, d.dsn(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.driver, err)
	}
	if d.driver == DriverSQLite {
		// single writer; busy_timeout covers the migration connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewWithDB(db, driver)
}

// NewWithDB wraps an already opened handle. Migrations are not run.
func NewWithDB(db *sqlx.DB, driver string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{
		db:  db,
		d:   d,
		sb:  d.builder(),
		now: time.Now,
	}, nil
}

// SetClock overrides the timestamp source.
func (s *SQLStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) stamp() int64 {
	return s.now().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (s *SQLStore) get(ctx context.Context, dest any, b sq.Sqlizer, what string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", what, err)
	}
	if err := s.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", what, core.ErrNotFound)
		}
		return fmt.Errorf("get %s: %w", what, err)
	}
	return nil
}

func (s *SQLStore) selectRows(ctx context.Context, dest any, b sq.Sqlizer, what string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", what, err)
	}
	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("list %s: %w", what, err)
	}
	return nil
}

// exec runs b and returns core.ErrNotFound when no row was affected.
func (s *SQLStore) exec(ctx context.Context, e sqlx.ExecerContext, b sq.Sqlizer, what string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s statement: %w", what, err)
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", what, core.ErrConflict)
		}
		return fmt.Errorf("%s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
