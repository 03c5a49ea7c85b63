package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// LedgerEntry is an immutable record of one balance-affecting movement.
// BalanceAfter is always the value the account service returned for the
// operation that produced the entry, never a locally derived figure.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"entry_id"`
	TransferID    uuid.UUID       `json:"transfer_id"`
	AccountID     int64           `json:"account_id"`
	AccountNumber int64           `json:"account_number"`
	EntryType     EntryType       `json:"entry_type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Status        string          `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	Description   string          `json:"description"`
	CreatedBy     string          `json:"created_by"`
}

// NewLedgerEntry builds an entry stamped with the current time.
func NewLedgerEntry(transferID uuid.UUID, accountID, accountNumber int64,
	entryType EntryType, amount, balanceAfter decimal.Decimal,
	status, description, createdBy string) *LedgerEntry {
	return &LedgerEntry{
		ID:            uuid.New(),
		TransferID:    transferID,
		AccountID:     accountID,
		AccountNumber: accountNumber,
		EntryType:     entryType,
		Amount:        amount,
		BalanceAfter:  balanceAfter,
		Status:        status,
		Timestamp:     time.Now().UTC(),
		Description:   description,
		CreatedBy:     createdBy,
	}
}

// AccountBalanceSnapshot is the most recent ledgered balance for one account,
// used by the reconciliation sweep.
type AccountBalanceSnapshot struct {
	AccountID     int64
	AccountNumber int64
	BalanceAfter  decimal.Decimal
	Timestamp     time.Time
}

type LedgerRepository interface {
	AppendEntry(ctx context.Context, entry *LedgerEntry) error
	ListEntriesByTransferID(ctx context.Context, transferID uuid.UUID) ([]LedgerEntry, error)
	ListEntriesByAccountNumbers(ctx context.Context, accountNumbers []int64, limit, offset int) ([]LedgerEntry, error)
	LatestBalances(ctx context.Context, since time.Time) ([]AccountBalanceSnapshot, error)
}
