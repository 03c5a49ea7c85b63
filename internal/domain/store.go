package domain

import "context"

// Datastore groups the engine's repositories behind one handle.
// WithTransaction runs fn against a datastore whose operations share a local
// database transaction; the boundary never spans remote account calls.
type Datastore interface {
	Transfers() TransferRepository
	Ledger() LedgerRepository
	Idempotency() IdempotencyRepository
	WithTransaction(ctx context.Context, fn func(Datastore) error) error
}
