package signal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newthinker/perftrack/internal/core"
)

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, verifies the connection and creates
// the signals table if needed.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("parse postgres dsn: %w", err))
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("connect to postgres: %w", err))
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("ping postgres: %w", err))
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("create schema: %w", err))
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]core.Signal, error) {
	query, args := postgresDialect.selectQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	query, args := postgresDialect.countQuery(filter)
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("count signals: %w", err))
	}
	return n, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+signalColumns+" FROM signals WHERE id = $1", id)
	sig, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", id))
		}
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("get signal: %w", err))
	}
	return &sig, nil
}

func (s *PostgresStore) Insert(ctx context.Context, sig core.Signal) error {
	if sig.ID == "" {
		return core.WrapError(core.ErrMalformedSignal, fmt.Errorf("missing id"))
	}

	if _, err := s.pool.Exec(ctx, postgresDialect.insertQuery(), signalArgs(sig)...); err != nil {
		if isDuplicateKeyError(err) {
			return core.WrapError(core.ErrDuplicateSignal, fmt.Errorf("id %s", sig.ID))
		}
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("insert signal: %w", err))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, sig core.Signal) error {
	tag, err := s.pool.Exec(ctx, postgresDialect.updateQuery(), signalArgs(sig)...)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("update signal: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", sig.ID))
	}
	return nil
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
