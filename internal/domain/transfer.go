package domain

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus is the lifecycle state of one transfer leg. A leg starts
// PENDING and moves to exactly one of the four terminal states.
type TransferStatus string

const (
	StatusPending      TransferStatus = "PENDING"
	StatusCompleted    TransferStatus = "COMPLETED"
	StatusFailed       TransferStatus = "FAILED"
	StatusCompensated  TransferStatus = "COMPENSATED"
	StatusFailedRefund TransferStatus = "FAILED_REFUND"
)

// Terminal reports whether the status is final.
func (s TransferStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCompensated, StatusFailedRefund:
		return true
	}
	return false
}

// Transfer is one leg of a two-account money movement. The sender leg carries
// the debit amount, the receiver leg the credit amount; both legs share a
// correlation id.
type Transfer struct {
	ID                    uuid.UUID       `json:"id"`
	CorrelationID         uuid.UUID       `json:"correlation_id"`
	DebitAmount           decimal.Decimal `json:"debit_amount"`
	CreditAmount          decimal.Decimal `json:"credit_amount"`
	SenderAccountNumber   int64           `json:"sender_account_number"`
	ReceiverAccountNumber int64           `json:"receiver_account_number"`
	TransactionTime       time.Time       `json:"transaction_time"`
	Description           string          `json:"description"`
	Status                TransferStatus  `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	CreatedBy             string          `json:"created_by"`
}

type TransferRepository interface {
	CreateTransfer(ctx context.Context, t *Transfer) error
	GetTransferByID(ctx context.Context, id uuid.UUID) (*Transfer, error)
	ListTransfersByAccountNumber(ctx context.Context, accountNumber int64) ([]Transfer, error)
	UpdateTransfer(ctx context.Context, t *Transfer) error
	StatusCounts(ctx context.Context) (map[TransferStatus]int64, error)
	CompletedVolume(ctx context.Context) (decimal.Decimal, error)
}

// MaskAccountNumber hides all but the last four digits of an account number
// for user-facing descriptions.
func MaskAccountNumber(accountNumber int64) string {
	s := strconv.FormatInt(accountNumber, 10)
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
