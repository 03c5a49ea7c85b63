package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// idempotencyTTL bounds how long a key blocks resubmission. Expired rows are
// advisory only; a cleanup job may prune them.
const idempotencyTTL = 24 * time.Hour

type idempotencyRepository struct {
	db     SQLExecutor
	logger *zap.Logger
}

func NewIdempotencyRepository(db SQLExecutor, logger *zap.Logger) domain.IdempotencyRepository {
	return &idempotencyRepository{
		db:     db,
		logger: logger,
	}
}

// Begin attempts to claim (requesterID, key) by inserting a PROCESSING row.
// The unique constraint on the pair is the admission-control mechanism: when
// two requests race, exactly one insert succeeds and the loser reads back the
// winner's row.
func (r *idempotencyRepository) Begin(ctx context.Context, requesterID int64, key string) (*domain.BeginResult, error) {
	query := `
		INSERT INTO idempotency_keys (requester_id, idem_key, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	now := time.Now().UTC()
	expiresAt := now.Add(idempotencyTTL)
	_, err := r.db.ExecContext(ctx, query, requesterID, key, string(domain.IdemProcessing), now, expiresAt)
	if err == nil {
		return &domain.BeginResult{Outcome: domain.BeginStarted}, nil
	}

	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" { // unique_violation
		r.logger.Error("failed to claim idempotency key",
			zap.Int64("requester_id", requesterID), zap.Error(err))
		return nil, errors.NewAppError(errors.InternalError, "failed to claim idempotency key").WithDetails(err.Error())
	}

	record, err := r.get(ctx, requesterID, key)
	if err != nil {
		return nil, err
	}

	if record.Status == domain.IdemProcessing {
		r.logger.Warn("idempotency key already in flight",
			zap.Int64("requester_id", requesterID), zap.String("idempotency_key", key))
		return &domain.BeginResult{Outcome: domain.BeginAlreadyProcessing, Record: record}, nil
	}
	return &domain.BeginResult{Outcome: domain.BeginAlreadyTerminal, Record: record}, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, requesterID int64, key string, payload json.RawMessage) error {
	return r.finish(ctx, requesterID, key, domain.IdemCompleted, payload)
}

func (r *idempotencyRepository) Fail(ctx context.Context, requesterID int64, key string, payload json.RawMessage) error {
	return r.finish(ctx, requesterID, key, domain.IdemFailed, payload)
}

func (r *idempotencyRepository) finish(ctx context.Context, requesterID int64, key string, status domain.IdempotencyStatus, payload json.RawMessage) error {
	query := `
		UPDATE idempotency_keys
		SET status = $1, response_payload = $2
		WHERE requester_id = $3 AND idem_key = $4
	`

	result, err := r.db.ExecContext(ctx, query, string(status), []byte(payload), requesterID, key)
	if err != nil {
		r.logger.Error("failed to finalize idempotency key",
			zap.Int64("requester_id", requesterID),
			zap.String("status", string(status)),
			zap.Error(err))
		return errors.NewAppError(errors.InternalError, "failed to finalize idempotency key").WithDetails(err.Error())
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.NewAppError(errors.InternalError, "idempotency key not found for finalization")
	}
	return nil
}

func (r *idempotencyRepository) get(ctx context.Context, requesterID int64, key string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT id, requester_id, idem_key, status, response_payload, created_at, expires_at
		FROM idempotency_keys
		WHERE requester_id = $1 AND idem_key = $2
	`

	var record domain.IdempotencyRecord
	var status string
	var payload []byte
	var expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, requesterID, key).Scan(
		&record.ID,
		&record.RequesterID,
		&record.Key,
		&status,
		&payload,
		&record.CreatedAt,
		&expiresAt,
	)
	if err != nil {
		r.logger.Error("failed to read idempotency key",
			zap.Int64("requester_id", requesterID), zap.Error(err))
		return nil, errors.NewAppError(errors.InternalError, "failed to read idempotency key").WithDetails(err.Error())
	}

	record.Status = domain.IdempotencyStatus(status)
	record.ResponsePayload = json.RawMessage(payload)
	if expiresAt.Valid {
		t := expiresAt.Time
		record.ExpiresAt = &t
	}
	return &record, nil
}
