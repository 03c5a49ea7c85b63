package domain

import (
	"context"
	"encoding/json"
	"time"
)

type IdempotencyStatus string

const (
	IdemProcessing IdempotencyStatus = "PROCESSING"
	IdemCompleted  IdempotencyStatus = "COMPLETED"
	IdemFailed     IdempotencyStatus = "FAILED"
)

// IdempotencyRecord tracks the processing state of one (requester, key) pair.
// The pair is unique at the storage layer; that uniqueness constraint is the
// sole admission-control mechanism for duplicate submissions.
type IdempotencyRecord struct {
	ID              int64
	RequesterID     int64
	Key             string
	Status          IdempotencyStatus
	ResponsePayload json.RawMessage
	CreatedAt       time.Time
	ExpiresAt       *time.Time
}

type BeginOutcome int

const (
	// BeginStarted means this request owns the key and must execute.
	BeginStarted BeginOutcome = iota
	// BeginAlreadyProcessing means another request holds the key and has not
	// reached a terminal state.
	BeginAlreadyProcessing
	// BeginAlreadyTerminal means the key resolved earlier; Record carries the
	// stored result for replay.
	BeginAlreadyTerminal
)

type BeginResult struct {
	Outcome BeginOutcome
	Record  *IdempotencyRecord
}

type IdempotencyRepository interface {
	Begin(ctx context.Context, requesterID int64, key string) (*BeginResult, error)
	Complete(ctx context.Context, requesterID int64, key string, payload json.RawMessage) error
	Fail(ctx context.Context, requesterID int64, key string, payload json.RawMessage) error
}
