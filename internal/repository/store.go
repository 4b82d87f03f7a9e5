package repository

import (
	"context"
	"errors"
	"fmt"

	"maum-baedal-backend/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so every
// repository works inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the pgx-backed implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Users() store.UserStore             { return &UserRepository{db: s.pool} }
func (s *Store) Companions() store.CompanionStore   { return &CompanionRepository{db: s.pool} }
func (s *Store) Questions() store.QuestionStore     { return &QuestionRepository{db: s.pool} }
func (s *Store) Assignments() store.AssignmentStore { return &AssignmentRepository{db: s.pool} }
func (s *Store) ShareTokens() store.ShareTokenStore { return &ShareTokenRepository{db: s.pool} }
func (s *Store) Stats() store.StatsStore            { return &StatsRepository{db: s.pool} }

// WithTx runs fn inside one transaction; fn's error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) Users() store.UserStore             { return &UserRepository{db: t.tx} }
func (t *txStore) Companions() store.CompanionStore   { return &CompanionRepository{db: t.tx} }
func (t *txStore) Questions() store.QuestionStore     { return &QuestionRepository{db: t.tx} }
func (t *txStore) Assignments() store.AssignmentStore { return &AssignmentRepository{db: t.tx} }
func (t *txStore) ShareTokens() store.ShareTokenStore { return &ShareTokenRepository{db: t.tx} }
func (t *txStore) Stats() store.StatsStore            { return &StatsRepository{db: t.tx} }

// translateError maps pgx-level errors onto the store sentinels.
func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrDuplicate
	}
	return err
}
