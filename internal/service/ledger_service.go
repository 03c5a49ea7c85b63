package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"transaction-engine/internal/domain"
)

const (
	defaultEntryLimit = 50
	maxEntryLimit     = 500
)

// LedgerService exposes read access to the append-only ledger.
type LedgerService struct {
	store  domain.Datastore
	logger *zap.Logger
}

func NewLedgerService(store domain.Datastore, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		logger: logger,
	}
}

func (s *LedgerService) EntriesForTransfer(ctx context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	return s.store.Ledger().ListEntriesByTransferID(ctx, transferID)
}

// EntriesForAccounts pages ledger entries for one or more account numbers,
// newest first. Limit is clamped to a sane window.
func (s *LedgerService) EntriesForAccounts(ctx context.Context, accountNumbers []int64, limit, offset int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultEntryLimit
	}
	if limit > maxEntryLimit {
		limit = maxEntryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Ledger().ListEntriesByAccountNumbers(ctx, accountNumbers, limit, offset)
}
