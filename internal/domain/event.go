package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventTypeTransferCompleted = "transaction-completed"

// TransferEvent is the message published per leg after a transfer resolves.
// Delivery is fire-and-forget; consumers are external.
type TransferEvent struct {
	ID                    uuid.UUID       `json:"id"`
	DebitAmount           decimal.Decimal `json:"debit_amount"`
	CreditAmount          decimal.Decimal `json:"credit_amount"`
	SenderAccountNumber   int64           `json:"sender_account_number"`
	ReceiverAccountNumber int64           `json:"receiver_account_number"`
	TransactionTime       time.Time       `json:"transaction_date_time"`
	Description           string          `json:"description"`
	Status                TransferStatus  `json:"status"`
	UserID                int64           `json:"created_by"`
	UserEmail             string          `json:"user_email"`
	CorrelationID         string          `json:"correlation_id"`
	EventType             string          `json:"event_type"`
}

func NewTransferEvent(t *Transfer, actor Actor) TransferEvent {
	return TransferEvent{
		ID:                    t.ID,
		DebitAmount:           t.DebitAmount,
		CreditAmount:          t.CreditAmount,
		SenderAccountNumber:   t.SenderAccountNumber,
		ReceiverAccountNumber: t.ReceiverAccountNumber,
		TransactionTime:       t.TransactionTime,
		Description:           t.Description,
		Status:                t.Status,
		UserID:                actor.UserID,
		UserEmail:             actor.Email,
		CorrelationID:         fmt.Sprintf("TXN-%s-%d", t.ID, time.Now().UnixMilli()),
		EventType:             EventTypeTransferCompleted,
	}
}

// EventPublisher delivers completion events. Errors are reported so callers
// can log them, but a publish failure never changes a transfer's outcome.
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, event TransferEvent) error
}
