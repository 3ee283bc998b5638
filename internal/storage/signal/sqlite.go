package signal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/newthinker/perftrack/internal/core"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and creates
// the signals table if needed.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("open sqlite: %w", err))
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("create schema: %w", err))
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]core.Signal, error) {
	query, args := sqliteDialect.selectQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("list signals: %w", err))
	}
	defer rows.Close()

	signals := []core.Signal{}
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("scan signal: %w", err))
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return signals, nil
}

func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	query, args := sqliteDialect.countQuery(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("count signals: %w", err))
	}
	return n, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+signalColumns+" FROM signals WHERE id = ?", id)
	sig, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", id))
		}
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("get signal: %w", err))
	}
	return &sig, nil
}

// Insert adds sig. The conflict clause turns a duplicate id into zero
// affected rows instead of a driver-specific error.
func (s *SQLiteStore) Insert(ctx context.Context, sig core.Signal) error {
	if sig.ID == "" {
		return core.WrapError(core.ErrMalformedSignal, fmt.Errorf("missing id"))
	}

	res, err := s.db.ExecContext(ctx, sqliteDialect.insertQuery()+" ON CONFLICT(id) DO NOTHING", signalArgs(sig)...)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("insert signal: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.WrapError(core.ErrDuplicateSignal, fmt.Errorf("id %s", sig.ID))
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, sig core.Signal) error {
	args := signalArgs(sig) // id first, matching updateQuery numbering
	res, err := s.db.ExecContext(ctx, sqliteDialect.updateQuery(), args...)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("update signal: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", sig.ID))
	}
	return nil
}
