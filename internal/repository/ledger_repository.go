package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

type ledgerRepository struct {
	db     SQLExecutor
	logger *zap.Logger
}

func NewLedgerRepository(db SQLExecutor, logger *zap.Logger) domain.LedgerRepository {
	return &ledgerRepository{
		db:     db,
		logger: logger,
	}
}

// AppendEntry inserts one immutable ledger row. There is deliberately no
// update or delete on this table.
func (r *ledgerRepository) AppendEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries
		(id, transfer_id, account_id, account_number, entry_type, amount, balance_after,
		 status, entry_timestamp, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.TransferID,
		entry.AccountID,
		entry.AccountNumber,
		string(entry.EntryType),
		entry.Amount.String(),
		entry.BalanceAfter.String(),
		entry.Status,
		entry.Timestamp,
		entry.Description,
		entry.CreatedBy,
	)

	if err != nil {
		r.logger.Error("failed to append ledger entry",
			zap.String("transfer_id", entry.TransferID.String()),
			zap.String("entry_type", string(entry.EntryType)),
			zap.Error(err))
		return errors.NewAppError(errors.InternalError, "failed to append ledger entry").WithDetails(err.Error())
	}
	return nil
}

const ledgerColumns = `id, transfer_id, account_id, account_number, entry_type, amount,
		balance_after, status, entry_timestamp, description, created_by`

func (r *ledgerRepository) ListEntriesByTransferID(ctx context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE transfer_id = $1 ORDER BY entry_timestamp`

	rows, err := r.db.QueryContext(ctx, query, transferID)
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list ledger entries").WithDetails(err.Error())
	}
	defer rows.Close()

	return r.collectEntries(rows)
}

func (r *ledgerRepository) ListEntriesByAccountNumbers(ctx context.Context, accountNumbers []int64, limit, offset int) ([]domain.LedgerEntry, error) {
	if len(accountNumbers) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE account_number = ANY($1)
		ORDER BY entry_timestamp DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(accountNumbers), limit, offset)
	if err != nil {
		r.logger.Error("failed to list ledger entries by account", zap.Error(err))
		return nil, errors.NewAppError(errors.InternalError, "failed to list ledger entries").WithDetails(err.Error())
	}
	defer rows.Close()

	return r.collectEntries(rows)
}

// LatestBalances returns, per account ledgered since the given time, the
// balance-after of its newest entry. Input for the reconciliation sweep.
func (r *ledgerRepository) LatestBalances(ctx context.Context, since time.Time) ([]domain.AccountBalanceSnapshot, error) {
	query := `
		SELECT DISTINCT ON (account_id) account_id, account_number, balance_after, entry_timestamp
		FROM ledger_entries
		WHERE entry_timestamp >= $1
		ORDER BY account_id, entry_timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to read latest balances").WithDetails(err.Error())
	}
	defer rows.Close()

	var snapshots []domain.AccountBalanceSnapshot
	for rows.Next() {
		var snap domain.AccountBalanceSnapshot
		var balanceStr string
		if err := rows.Scan(&snap.AccountID, &snap.AccountNumber, &balanceStr, &snap.Timestamp); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan balance snapshot").WithDetails(err.Error())
		}
		if snap.BalanceAfter, err = decimal.NewFromString(balanceStr); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse balance snapshot").WithDetails(err.Error())
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (r *ledgerRepository) collectEntries(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var entryType, amountStr, balanceStr string

		err := rows.Scan(
			&e.ID,
			&e.TransferID,
			&e.AccountID,
			&e.AccountNumber,
			&entryType,
			&amountStr,
			&balanceStr,
			&e.Status,
			&e.Timestamp,
			&e.Description,
			&e.CreatedBy,
		)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan ledger entry").WithDetails(err.Error())
		}

		if e.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse ledger amount").WithDetails(err.Error())
		}
		if e.BalanceAfter, err = decimal.NewFromString(balanceStr); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse ledger balance").WithDetails(err.Error())
		}
		e.EntryType = domain.EntryType(entryType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to read ledger entries").WithDetails(err.Error())
	}
	return entries, nil
}
