package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
	"transaction-engine/internal/metrics"
)

// TransferService orchestrates the two-leg transfer saga: validate, debit,
// credit, compensate on partial failure, ledger, publish. Money movement is
// not atomic across accounts; the account service is remote and the only
// source of truth for balances.
type TransferService struct {
	store     domain.Datastore
	accounts  domain.AccountClient
	publisher domain.EventPublisher
	logger    *zap.Logger
}

func NewTransferService(
	store domain.Datastore,
	accounts domain.AccountClient,
	publisher domain.EventPublisher,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		store:     store,
		accounts:  accounts,
		publisher: publisher,
		logger:    logger,
	}
}

type TransferRequest struct {
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               decimal.Decimal
	Currency             string
	Description          string
	IdempotencyKey       string
}

// TransferResult is the caller-facing summary of a resolved transfer. It is
// also the payload stored for idempotent replay.
type TransferResult struct {
	TransactionID        string                `json:"transactionId"`
	SourceAccountID      int64                 `json:"sourceAccountId"`
	DestinationAccountID int64                 `json:"destinationAccountId"`
	Amount               decimal.Decimal       `json:"amount"`
	Currency             string                `json:"currency"`
	Status               domain.TransferStatus `json:"status"`
	Description          string                `json:"description"`
	CreatedAt            time.Time             `json:"createdAt"`
}

// Transfer executes the saga. The sender leg's terminal state is the
// transfer's result.
func (s *TransferService) Transfer(ctx context.Context, actor domain.Actor, req *TransferRequest) (*TransferResult, error) {
	s.logger.Info("processing transfer",
		zap.Int64("source_account_id", req.SourceAccountID),
		zap.Int64("destination_account_id", req.DestinationAccountID),
		zap.String("amount", req.Amount.String()),
		zap.Int64("requester_id", actor.UserID))

	if err := s.validate(req); err != nil {
		return nil, err
	}

	// Admission control: the unique (requester, key) constraint decides who
	// executes; everyone else replays or is rejected.
	if req.IdempotencyKey != "" {
		begin, err := s.store.Idempotency().Begin(ctx, actor.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		switch begin.Outcome {
		case domain.BeginAlreadyProcessing:
			return nil, errors.ErrRequestInFlight
		case domain.BeginAlreadyTerminal:
			return s.replay(begin.Record)
		}
	}

	result, err := s.execute(ctx, actor, req)
	if err != nil {
		s.failKey(ctx, actor, req.IdempotencyKey, err)
		return nil, err
	}

	s.completeKey(ctx, actor, req.IdempotencyKey, result)
	return result, nil
}

func (s *TransferService) validate(req *TransferRequest) error {
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return errors.ErrInvalidAmount
	}
	if req.SourceAccountID <= 0 || req.DestinationAccountID <= 0 {
		return errors.ErrInvalidAccountID
	}
	return nil
}

func (s *TransferService) execute(ctx context.Context, actor domain.Actor, req *TransferRequest) (*TransferResult, error) {
	// Resolve accounts. The destination reference is commonly an account
	// number; resolution falls back to lookup by id.
	sender, err := s.accounts.GetAccountByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, err
	}

	receiver, err := s.accounts.GetAccountByNumber(ctx, req.DestinationAccountID)
	if err != nil {
		receiver, err = s.accounts.GetAccountByID(ctx, req.DestinationAccountID)
		if err != nil {
			return nil, err
		}
	}

	if sender.ID == receiver.ID {
		return nil, errors.ErrSameAccountTransfer
	}

	// Fail fast before any side effect; nothing is persisted for an
	// insufficient balance.
	if sender.Balance.LessThan(req.Amount) {
		s.logger.Warn("insufficient balance",
			zap.Int64("sender_account_id", sender.ID),
			zap.String("available", sender.Balance.String()),
			zap.String("required", req.Amount.String()))
		return nil, errors.ErrInsufficientBalance
	}

	now := time.Now().UTC()
	correlationID := uuid.New()
	senderLeg := &domain.Transfer{
		ID:                    uuid.New(),
		CorrelationID:         correlationID,
		DebitAmount:           req.Amount,
		CreditAmount:          decimal.Zero,
		SenderAccountNumber:   sender.AccountNumber,
		ReceiverAccountNumber: receiver.AccountNumber,
		TransactionTime:       now,
		Description:           req.Description,
		Status:                domain.StatusPending,
		CreatedBy:             actor.Email,
	}
	receiverLeg := &domain.Transfer{
		ID:                    uuid.New(),
		CorrelationID:         correlationID,
		DebitAmount:           decimal.Zero,
		CreditAmount:          req.Amount,
		SenderAccountNumber:   sender.AccountNumber,
		ReceiverAccountNumber: receiver.AccountNumber,
		TransactionTime:       now,
		Description:           req.Description,
		Status:                domain.StatusPending,
		CreatedBy:             actor.Email,
	}

	err = s.store.WithTransaction(ctx, func(ds domain.Datastore) error {
		if err := ds.Transfers().CreateTransfer(ctx, senderLeg); err != nil {
			return err
		}
		return ds.Transfers().CreateTransfer(ctx, receiverLeg)
	})
	if err != nil {
		return nil, err
	}

	maskedSender := domain.MaskAccountNumber(sender.AccountNumber)
	maskedReceiver := domain.MaskAccountNumber(receiver.AccountNumber)

	// Debit leg. A failure here means no money left the source account, so
	// both legs fail with no compensation.
	senderBalance, err := s.accounts.DebitAndReturnBalance(ctx, sender.ID, req.Amount)
	if err != nil {
		s.logger.Error("debit failed",
			zap.Int64("sender_account_id", sender.ID),
			zap.String("transfer_id", senderLeg.ID.String()),
			zap.Error(err))

		senderLeg.Status = domain.StatusFailed
		senderLeg.Description = fmt.Sprintf("Transfer to A/C %s - Failed", maskedReceiver)
		receiverLeg.Status = domain.StatusFailed
		receiverLeg.Description = fmt.Sprintf("Transfer from A/C %s - Failed", maskedSender)

		metrics.TransfersTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
		return nil, s.finalizeFailure(ctx, senderLeg, receiverLeg, nil, errors.DebitFailedErr(err))
	}

	// Credit leg.
	receiverBalance, creditErr := s.accounts.CreditAndReturnBalance(ctx, receiver.ID, req.Amount)
	if creditErr != nil {
		return nil, s.compensate(ctx, actor, req, sender, receiver, senderLeg, receiverLeg, creditErr)
	}

	senderLeg.Status = domain.StatusCompleted
	senderLeg.Description = fmt.Sprintf("Transfer to A/C %s", maskedReceiver)
	receiverLeg.Status = domain.StatusCompleted
	receiverLeg.Description = fmt.Sprintf("Transfer from A/C %s", maskedSender)

	// Ledger entries carry the balances the account service returned at each
	// remote call, not values re-read or recomputed afterwards. Both entries
	// hang off the sender leg, whose id is the caller-facing transaction id.
	debitEntry := domain.NewLedgerEntry(senderLeg.ID, sender.ID, sender.AccountNumber,
		domain.EntryDebit, req.Amount, senderBalance,
		string(domain.StatusCompleted), senderLeg.Description, "system")
	creditEntry := domain.NewLedgerEntry(senderLeg.ID, receiver.ID, receiver.AccountNumber,
		domain.EntryCredit, req.Amount, receiverBalance,
		string(domain.StatusCompleted), receiverLeg.Description, "system")

	if err := s.persistLegs(ctx, senderLeg, receiverLeg, []*domain.LedgerEntry{debitEntry, creditEntry}); err != nil {
		// Money has moved but the local commit failed; surface the error so
		// the reconciliation sweep can pick up the drift.
		return nil, errors.AsAppError(err)
	}

	s.publish(ctx, actor, senderLeg)
	s.publish(ctx, actor, receiverLeg)

	metrics.TransfersTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	s.logger.Info("transfer completed",
		zap.String("transfer_id", senderLeg.ID.String()),
		zap.String("correlation_id", correlationID.String()))

	return &TransferResult{
		TransactionID:        senderLeg.ID.String(),
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Currency:             req.Currency,
		Status:               senderLeg.Status,
		Description:          senderLeg.Description,
		CreatedAt:            senderLeg.CreatedAt,
	}, nil
}

// compensate refunds the sender after a failed credit leg. If the refund
// itself fails the transfer is flagged FAILED_REFUND for manual
// reconciliation; that state must never be silently retried.
func (s *TransferService) compensate(ctx context.Context, actor domain.Actor, req *TransferRequest,
	sender, receiver *domain.Account, senderLeg, receiverLeg *domain.Transfer, creditErr error) error {

	s.logger.Error("credit failed, attempting refund",
		zap.Int64("receiver_account_id", receiver.ID),
		zap.String("transfer_id", senderLeg.ID.String()),
		zap.Error(creditErr))
	metrics.CompensationsTotal.Inc()

	maskedSender := domain.MaskAccountNumber(sender.AccountNumber)
	maskedReceiver := domain.MaskAccountNumber(receiver.AccountNumber)
	receiverLeg.Status = domain.StatusFailed
	receiverLeg.Description = fmt.Sprintf("Transfer from A/C %s - Failed", maskedSender)

	refundBalance, refundErr := s.accounts.CreditAndReturnBalance(ctx, sender.ID, req.Amount)
	if refundErr != nil {
		s.logger.Error("refund failed, manual reconciliation required",
			zap.Int64("sender_account_id", sender.ID),
			zap.String("transfer_id", senderLeg.ID.String()),
			zap.Error(refundErr))
		metrics.RefundFailuresTotal.Inc()

		senderLeg.Status = domain.StatusFailedRefund
		senderLeg.Description = fmt.Sprintf("Transfer to A/C %s - Refund Failed", maskedReceiver)

		metrics.TransfersTotal.WithLabelValues(string(domain.StatusFailedRefund)).Inc()
		return s.finalizeFailure(ctx, senderLeg, receiverLeg, nil, errors.RefundFailedErr(refundErr))
	}

	senderLeg.Status = domain.StatusCompensated
	senderLeg.Description = fmt.Sprintf("Transfer to A/C %s - Refunded", maskedReceiver)

	refundEntry := domain.NewLedgerEntry(senderLeg.ID, sender.ID, sender.AccountNumber,
		domain.EntryCredit, req.Amount, refundBalance,
		string(domain.StatusCompensated),
		fmt.Sprintf("Refund for failed transfer to A/C %s", maskedReceiver), "system")

	metrics.TransfersTotal.WithLabelValues(string(domain.StatusCompensated)).Inc()
	return s.finalizeFailure(ctx, senderLeg, receiverLeg, []*domain.LedgerEntry{refundEntry}, errors.CreditFailedErr(creditErr))
}

// finalizeFailure persists the terminal state of an unsuccessful saga and
// returns sagaErr. A persistence failure here leaves the stored legs behind
// the outcome the caller is told, so it is folded into the returned error
// rather than dropped.
func (s *TransferService) finalizeFailure(ctx context.Context, senderLeg, receiverLeg *domain.Transfer,
	entries []*domain.LedgerEntry, sagaErr *errors.AppError) error {

	if err := s.persistLegs(ctx, senderLeg, receiverLeg, entries); err != nil {
		return sagaErr.WithDetails(sagaErr.Details + "; outcome persistence failed: " + err.Error())
	}
	return sagaErr
}

// persistLegs writes both legs' terminal state and any ledger entries in one
// local transaction. The boundary covers local rows only, never remote calls.
func (s *TransferService) persistLegs(ctx context.Context, senderLeg, receiverLeg *domain.Transfer, entries []*domain.LedgerEntry) error {
	err := s.store.WithTransaction(ctx, func(ds domain.Datastore) error {
		if err := ds.Transfers().UpdateTransfer(ctx, senderLeg); err != nil {
			return err
		}
		if err := ds.Transfers().UpdateTransfer(ctx, receiverLeg); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := ds.Ledger().AppendEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to persist transfer outcome",
			zap.String("transfer_id", senderLeg.ID.String()),
			zap.String("status", string(senderLeg.Status)),
			zap.Error(err))
	}
	return err
}

// publish is fire-and-forget; a delivery failure never changes the outcome.
func (s *TransferService) publish(ctx context.Context, actor domain.Actor, leg *domain.Transfer) {
	event := domain.NewTransferEvent(leg, actor)
	if err := s.publisher.PublishTransferCompleted(ctx, event); err != nil {
		s.logger.Error("failed to publish transfer event",
			zap.String("transfer_id", leg.ID.String()),
			zap.Error(err))
	}
}

// replay reconstructs the outcome stored under a terminal idempotency key.
// A completed key returns the original summary; a failed key returns the
// original error.
func (s *TransferService) replay(record *domain.IdempotencyRecord) (*TransferResult, error) {
	if record.Status == domain.IdemCompleted {
		var result TransferResult
		if err := json.Unmarshal(record.ResponsePayload, &result); err != nil {
			return nil, errors.ErrDuplicateRequest
		}
		s.logger.Info("replaying stored transfer result",
			zap.String("transaction_id", result.TransactionID),
			zap.String("idempotency_key", record.Key))
		return &result, nil
	}

	if appErr := errors.UnmarshalAppError(record.ResponsePayload); appErr != nil {
		return nil, appErr
	}
	return nil, errors.ErrDuplicateRequest
}

func (s *TransferService) completeKey(ctx context.Context, actor domain.Actor, key string, result *TransferResult) {
	if key == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("failed to serialize transfer result for replay", zap.Error(err))
		return
	}
	if err := s.store.Idempotency().Complete(ctx, actor.UserID, key, payload); err != nil {
		s.logger.Error("failed to complete idempotency key", zap.Error(err))
	}
}

func (s *TransferService) failKey(ctx context.Context, actor domain.Actor, key string, cause error) {
	if key == "" {
		return
	}
	payload := errors.AsAppError(cause).Marshal()
	if err := s.store.Idempotency().Fail(ctx, actor.UserID, key, payload); err != nil {
		s.logger.Error("failed to fail idempotency key", zap.Error(err))
	}
}

// GetTransaction returns one leg by id.
func (s *TransferService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return s.store.Transfers().GetTransferByID(ctx, id)
}

// ListTransactionsByAccount returns all legs visible to an account number,
// as sender or receiver, newest first.
func (s *TransferService) ListTransactionsByAccount(ctx context.Context, accountNumber int64) ([]domain.Transfer, error) {
	return s.store.Transfers().ListTransfersByAccountNumber(ctx, accountNumber)
}

// TransactionSummary is an operational aggregate over all transfer legs.
type TransactionSummary struct {
	Total        int64           `json:"total_transactions"`
	Completed    int64           `json:"successful_transactions"`
	Failed       int64           `json:"failed_transactions"`
	Pending      int64           `json:"pending_transactions"`
	Compensated  int64           `json:"compensated_transactions"`
	FailedRefund int64           `json:"failed_refund_transactions"`
	TotalVolume  decimal.Decimal `json:"total_volume"`
	LastUpdated  time.Time       `json:"last_updated"`
}

func (s *TransferService) TransactionSummary(ctx context.Context) (*TransactionSummary, error) {
	counts, err := s.store.Transfers().StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	volume, err := s.store.Transfers().CompletedVolume(ctx)
	if err != nil {
		return nil, err
	}

	summary := &TransactionSummary{
		Completed:    counts[domain.StatusCompleted],
		Failed:       counts[domain.StatusFailed],
		Pending:      counts[domain.StatusPending],
		Compensated:  counts[domain.StatusCompensated],
		FailedRefund: counts[domain.StatusFailedRefund],
		TotalVolume:  volume,
		LastUpdated:  time.Now().UTC(),
	}
	for _, count := range counts {
		summary.Total += count
	}
	return summary, nil
}
