package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

type transferRepository struct {
	db     SQLExecutor
	logger *zap.Logger
}

func NewTransferRepository(db SQLExecutor, logger *zap.Logger) domain.TransferRepository {
	return &transferRepository{
		db:     db,
		logger: logger,
	}
}

const transferColumns = `id, correlation_id, debit_amount, credit_amount, sender_account_number,
		receiver_account_number, transaction_time, description, status, created_at, updated_at, created_by`

func (r *transferRepository) CreateTransfer(ctx context.Context, t *domain.Transfer) error {
	query := `
		INSERT INTO transfers
		(id, correlation_id, debit_amount, credit_amount, sender_account_number, receiver_account_number,
		 transaction_time, description, status, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.CorrelationID,
		t.DebitAmount.String(),
		t.CreditAmount.String(),
		t.SenderAccountNumber,
		t.ReceiverAccountNumber,
		t.TransactionTime,
		t.Description,
		string(t.Status),
		now,
		now,
		t.CreatedBy,
	)

	if err != nil {
		r.logger.Error("failed to create transfer leg",
			zap.String("transfer_id", t.ID.String()),
			zap.String("correlation_id", t.CorrelationID.String()),
			zap.Error(err))
		return errors.NewAppError(errors.InternalError, "failed to create transfer record").WithDetails(err.Error())
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (r *transferRepository) GetTransferByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	t, err := r.scanTransfer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTransferNotFound
		}
		r.logger.Error("failed to get transfer", zap.String("transfer_id", id.String()), zap.Error(err))
		return nil, errors.NewAppError(errors.InternalError, "failed to get transfer").WithDetails(err.Error())
	}
	return t, nil
}

func (r *transferRepository) ListTransfersByAccountNumber(ctx context.Context, accountNumber int64) ([]domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE sender_account_number = $1 OR receiver_account_number = $1
		ORDER BY transaction_time DESC
	`

	rows, err := r.db.QueryContext(ctx, query, accountNumber)
	if err != nil {
		r.logger.Error("failed to list transfers", zap.Int64("account_number", accountNumber), zap.Error(err))
		return nil, errors.NewAppError(errors.InternalError, "failed to list transfers").WithDetails(err.Error())
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := r.scanTransfer(rows)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan transfer").WithDetails(err.Error())
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to read transfers").WithDetails(err.Error())
	}
	return transfers, nil
}

// UpdateTransfer persists the mutable fields of a leg: status, description
// and the updated timestamp. Everything else is written once at creation.
func (r *transferRepository) UpdateTransfer(ctx context.Context, t *domain.Transfer) error {
	query := `UPDATE transfers SET status = $1, description = $2, updated_at = $3 WHERE id = $4`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, string(t.Status), t.Description, now, t.ID)
	if err != nil {
		r.logger.Error("failed to update transfer",
			zap.String("transfer_id", t.ID.String()),
			zap.String("status", string(t.Status)),
			zap.Error(err))
		return errors.NewAppError(errors.InternalError, "failed to update transfer").WithDetails(err.Error())
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.ErrTransferNotFound
	}

	t.UpdatedAt = now
	return nil
}

func (r *transferRepository) StatusCounts(ctx context.Context) (map[domain.TransferStatus]int64, error) {
	query := `SELECT status, COUNT(*) FROM transfers GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to count transfers").WithDetails(err.Error())
	}
	defer rows.Close()

	counts := make(map[domain.TransferStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan status count").WithDetails(err.Error())
		}
		counts[domain.TransferStatus(status)] = count
	}
	return counts, rows.Err()
}

// CompletedVolume sums debit amounts over completed sender legs, i.e. the
// total money successfully moved.
func (r *transferRepository) CompletedVolume(ctx context.Context) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(debit_amount), 0)
		FROM transfers
		WHERE status = $1 AND debit_amount > 0
	`

	var volumeStr string
	if err := r.db.QueryRowContext(ctx, query, string(domain.StatusCompleted)).Scan(&volumeStr); err != nil {
		return decimal.Zero, errors.NewAppError(errors.InternalError, "failed to sum completed volume").WithDetails(err.Error())
	}

	volume, err := decimal.NewFromString(volumeStr)
	if err != nil {
		return decimal.Zero, errors.NewAppError(errors.InternalError, "failed to parse completed volume").WithDetails(err.Error())
	}
	return volume, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *transferRepository) scanTransfer(row rowScanner) (*domain.Transfer, error) {
	var t domain.Transfer
	var debitStr, creditStr, status string

	err := row.Scan(
		&t.ID,
		&t.CorrelationID,
		&debitStr,
		&creditStr,
		&t.SenderAccountNumber,
		&t.ReceiverAccountNumber,
		&t.TransactionTime,
		&t.Description,
		&status,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	if t.DebitAmount, err = decimal.NewFromString(debitStr); err != nil {
		return nil, err
	}
	if t.CreditAmount, err = decimal.NewFromString(creditStr); err != nil {
		return nil, err
	}
	t.Status = domain.TransferStatus(status)
	return &t, nil
}
