// Package postgres implements the persistence repositories on PostgreSQL
// through pgx, and a room lock built on session advisory locks.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/migrations"
)

// Store bundles the PostgreSQL repositories behind persistence.Store.
type Store struct {
	*RoomRepository
	*BookingRepository
	pool *pgxpool.Pool
}

var _ persistence.Store = (*Store)(nil)

// Open connects to dsn, applies pending migrations and returns the store.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// goose works on *sql.DB, so migrate through a handle sharing the pool.
	db := stdlib.OpenDBFromPool(pool)
	migrateErr := migrations.Up(ctx, db, migrations.Postgres, logger)
	_ = db.Close()
	if migrateErr != nil {
		pool.Close()
		return nil, migrateErr
	}

	return NewStore(pool), nil
}

// NewStore builds repositories on an existing pool without migrating.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		RoomRepository:    NewRoomRepository(pool),
		BookingRepository: NewBookingRepository(pool),
		pool:              pool,
	}
}

// Pool exposes the connection pool, e.g. for the advisory locker.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// PostgreSQL error codes surfaced as persistence sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
		case codeForeignKeyViolation, codeCheckViolation, codeNotNullViolation:
			return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return err
}
