package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// Store provides a unified handle over all repositories with transaction
// support. It implements domain.Datastore.
type Store struct {
	executor SQLExecutor
	logger   *zap.Logger
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		executor: db,
		logger:   logger,
	}
}

var _ domain.Datastore = (*Store)(nil)

// Transfers returns a TransferRepository using the current executor
func (s *Store) Transfers() domain.TransferRepository {
	return NewTransferRepository(s.executor, s.logger)
}

// Ledger returns a LedgerRepository using the current executor
func (s *Store) Ledger() domain.LedgerRepository {
	return NewLedgerRepository(s.executor, s.logger)
}

// Idempotency returns an IdempotencyRepository using the current executor
func (s *Store) Idempotency() domain.IdempotencyRepository {
	return NewIdempotencyRepository(s.executor, s.logger)
}

// WithTransaction executes fn within a database transaction. Nested calls are
// rejected: only the root store holds a transaction-capable executor.
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Datastore) error) error {
	db, ok := s.executor.(DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txStore := &Store{
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
