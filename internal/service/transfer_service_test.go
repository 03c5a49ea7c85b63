package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type memStore struct {
	mu         sync.Mutex
	transfers  map[uuid.UUID]*domain.Transfer
	ledger     []domain.LedgerEntry
	idem       map[string]*domain.IdempotencyRecord
	failUpdate error
}

func newMemStore() *memStore {
	return &memStore{
		transfers: make(map[uuid.UUID]*domain.Transfer),
		idem:      make(map[string]*domain.IdempotencyRecord),
	}
}

func idemKey(requesterID int64, key string) string {
	return fmt.Sprintf("%d:%s", requesterID, key)
}

func (s *memStore) Transfers() domain.TransferRepository      { return (*memTransfers)(s) }
func (s *memStore) Ledger() domain.LedgerRepository           { return (*memLedger)(s) }
func (s *memStore) Idempotency() domain.IdempotencyRepository { return (*memIdem)(s) }
func (s *memStore) WithTransaction(ctx context.Context, fn func(domain.Datastore) error) error {
	return fn(s)
}

type memTransfers memStore

func (r *memTransfers) CreateTransfer(_ context.Context, t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *t
	r.transfers[t.ID] = &clone
	return nil
}

func (r *memTransfers) GetTransferByID(_ context.Context, id uuid.UUID) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[id]
	if !ok {
		return nil, errors.ErrTransferNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *memTransfers) ListTransfersByAccountNumber(_ context.Context, accountNumber int64) ([]domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transfer
	for _, t := range r.transfers {
		if t.SenderAccountNumber == accountNumber || t.ReceiverAccountNumber == accountNumber {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memTransfers) UpdateTransfer(_ context.Context, t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	stored, ok := r.transfers[t.ID]
	if !ok {
		return errors.ErrTransferNotFound
	}
	stored.Status = t.Status
	stored.Description = t.Description
	return nil
}

func (r *memTransfers) StatusCounts(_ context.Context) (map[domain.TransferStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.TransferStatus]int64)
	for _, t := range r.transfers {
		counts[t.Status]++
	}
	return counts, nil
}

func (r *memTransfers) CompletedVolume(_ context.Context) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, t := range r.transfers {
		if t.Status == domain.StatusCompleted && t.DebitAmount.IsPositive() {
			total = total.Add(t.DebitAmount)
		}
	}
	return total, nil
}

type memLedger memStore

func (r *memLedger) AppendEntry(_ context.Context, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger = append(r.ledger, *entry)
	return nil
}

func (r *memLedger) ListEntriesByTransferID(_ context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range r.ledger {
		if e.TransferID == transferID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memLedger) ListEntriesByAccountNumbers(_ context.Context, accountNumbers []int64, limit, offset int) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[int64]bool, len(accountNumbers))
	for _, n := range accountNumbers {
		wanted[n] = true
	}
	var out []domain.LedgerEntry
	for _, e := range r.ledger {
		if wanted[e.AccountNumber] {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLedger) LatestBalances(_ context.Context, since time.Time) ([]domain.AccountBalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[int64]domain.AccountBalanceSnapshot)
	for _, e := range r.ledger {
		if e.Timestamp.Before(since) {
			continue
		}
		snap, ok := latest[e.AccountID]
		if !ok || e.Timestamp.After(snap.Timestamp) {
			latest[e.AccountID] = domain.AccountBalanceSnapshot{
				AccountID:     e.AccountID,
				AccountNumber: e.AccountNumber,
				BalanceAfter:  e.BalanceAfter,
				Timestamp:     e.Timestamp,
			}
		}
	}
	var out []domain.AccountBalanceSnapshot
	for _, snap := range latest {
		out = append(out, snap)
	}
	return out, nil
}

type memIdem memStore

func (r *memIdem) Begin(_ context.Context, requesterID int64, key string) (*domain.BeginResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.idem[idemKey(requesterID, key)]; ok {
		if record.Status == domain.IdemProcessing {
			return &domain.BeginResult{Outcome: domain.BeginAlreadyProcessing, Record: record}, nil
		}
		return &domain.BeginResult{Outcome: domain.BeginAlreadyTerminal, Record: record}, nil
	}
	r.idem[idemKey(requesterID, key)] = &domain.IdempotencyRecord{
		RequesterID: requesterID,
		Key:         key,
		Status:      domain.IdemProcessing,
	}
	return &domain.BeginResult{Outcome: domain.BeginStarted}, nil
}

func (r *memIdem) Complete(_ context.Context, requesterID int64, key string, payload json.RawMessage) error {
	return r.finish(requesterID, key, domain.IdemCompleted, payload)
}

func (r *memIdem) Fail(_ context.Context, requesterID int64, key string, payload json.RawMessage) error {
	return r.finish(requesterID, key, domain.IdemFailed, payload)
}

func (r *memIdem) finish(requesterID int64, key string, status domain.IdempotencyStatus, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.idem[idemKey(requesterID, key)]
	if !ok {
		return errors.NewAppError(errors.InternalError, "idempotency key not found for finalization")
	}
	record.Status = status
	record.ResponsePayload = payload
	return nil
}

type fakeAccounts struct {
	mu          sync.Mutex
	byID        map[int64]*domain.Account
	byNumber    map[int64]*domain.Account
	failDebit   map[int64]error
	failCredit  map[int64]error
	mutateCalls int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:       make(map[int64]*domain.Account),
		byNumber:   make(map[int64]*domain.Account),
		failDebit:  make(map[int64]error),
		failCredit: make(map[int64]error),
	}
}

func (f *fakeAccounts) add(id, number int64, balance string) *domain.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	account := &domain.Account{
		ID:            id,
		AccountNumber: number,
		UserID:        id,
		Balance:       decimal.RequireFromString(balance),
		AccountType:   "SAVINGS",
		Status:        "ACTIVE",
	}
	f.byID[id] = account
	f.byNumber[number] = account
	return account
}

func (f *fakeAccounts) GetAccountByID(_ context.Context, id int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byID[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (f *fakeAccounts) GetAccountByNumber(_ context.Context, number int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.byNumber[number]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (f *fakeAccounts) DebitAndReturnBalance(_ context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutateCalls++
	if err := f.failDebit[accountID]; err != nil {
		return decimal.Zero, err
	}
	account, ok := f.byID[accountID]
	if !ok {
		return decimal.Zero, errors.ErrAccountNotFound
	}
	if account.Balance.LessThan(amount) {
		return decimal.Zero, errors.ErrInsufficientBalance
	}
	account.Balance = account.Balance.Sub(amount)
	return account.Balance, nil
}

func (f *fakeAccounts) CreditAndReturnBalance(_ context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutateCalls++
	if err := f.failCredit[accountID]; err != nil {
		return decimal.Zero, err
	}
	account, ok := f.byID[accountID]
	if !ok {
		return decimal.Zero, errors.ErrAccountNotFound
	}
	account.Balance = account.Balance.Add(amount)
	return account.Balance, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TransferEvent
	err    error
}

func (p *recordingPublisher) PublishTransferCompleted(_ context.Context, event domain.TransferEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

type transferFixture struct {
	store     *memStore
	accounts  *fakeAccounts
	publisher *recordingPublisher
	service   *TransferService
}

func newTransferFixture() *transferFixture {
	store := newMemStore()
	accounts := newFakeAccounts()
	publisher := &recordingPublisher{}
	return &transferFixture{
		store:     store,
		accounts:  accounts,
		publisher: publisher,
		service:   NewTransferService(store, accounts, publisher, zap.NewNop()),
	}
}

func (f *transferFixture) legs() (sender, receiver *domain.Transfer) {
	for _, t := range f.store.transfers {
		if t.DebitAmount.IsPositive() {
			sender = t
		} else {
			receiver = t
		}
	}
	return sender, receiver
}

func transferReq(amount string) *TransferRequest {
	return &TransferRequest{
		SourceAccountID:      1,
		DestinationAccountID: 2000005678,
		Amount:               decimal.RequireFromString(amount),
		Currency:             "USD",
		IdempotencyKey:       "key-1",
	}
}

func TestTransferCompleted(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "10.00")

	result, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, result.Status)
	assert.Equal(t, "Transfer to A/C ****1234", result.Description)

	sender, receiver := f.legs()
	require.NotNil(t, sender)
	require.NotNil(t, receiver)
	assert.Equal(t, domain.StatusCompleted, sender.Status)
	assert.Equal(t, domain.StatusCompleted, receiver.Status)
	assert.Equal(t, sender.CorrelationID, receiver.CorrelationID)
	assert.Equal(t, "Transfer from A/C ****5678", receiver.Description)

	// Double entry: one DEBIT and one CREDIT of equal amount, balances as
	// returned by the account calls.
	require.Len(t, f.store.ledger, 2)
	debitSum, creditSum := decimal.Zero, decimal.Zero
	for _, entry := range f.store.ledger {
		assert.Equal(t, sender.ID, entry.TransferID)
		switch entry.EntryType {
		case domain.EntryDebit:
			debitSum = debitSum.Add(entry.Amount)
			assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("60.00")),
				"debit balance_after = %s", entry.BalanceAfter)
		case domain.EntryCredit:
			creditSum = creditSum.Add(entry.Amount)
			assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("50.00")),
				"credit balance_after = %s", entry.BalanceAfter)
		}
	}
	assert.True(t, debitSum.Equal(creditSum))

	// One event per leg.
	assert.Len(t, f.publisher.events, 2)
	for _, event := range f.publisher.events {
		assert.Equal(t, domain.EventTypeTransferCompleted, event.EventType)
		assert.Contains(t, event.CorrelationID, "TXN-")
	}

	record := f.store.idem[idemKey(1, "key-1")]
	require.NotNil(t, record)
	assert.Equal(t, domain.IdemCompleted, record.Status)
}

func TestTransferInsufficientBalance(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "10.00")
	f.accounts.add(2, 2000005678, "40.00")

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.Error(t, err)
	assert.Equal(t, errors.InsufficientBalance, errors.AsAppError(err).Code)

	// Fail fast: nothing persisted, no account mutation attempted.
	assert.Empty(t, f.store.transfers)
	assert.Empty(t, f.store.ledger)
	assert.Zero(t, f.accounts.mutateCalls)

	record := f.store.idem[idemKey(1, "key-1")]
	require.NotNil(t, record)
	assert.Equal(t, domain.IdemFailed, record.Status)
}

func TestTransferDebitFailed(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")
	f.accounts.failDebit[1] = errors.NewAppError(errors.InternalError, "account service unreachable")

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.Error(t, err)
	assert.Equal(t, errors.DebitFailed, errors.AsAppError(err).Code)

	sender, receiver := f.legs()
	require.NotNil(t, sender)
	require.NotNil(t, receiver)
	assert.Equal(t, domain.StatusFailed, sender.Status)
	assert.Equal(t, domain.StatusFailed, receiver.Status)
	assert.Equal(t, "Transfer to A/C ****5678 - Failed", sender.Description)
	assert.Equal(t, "Transfer from A/C ****1234 - Failed", receiver.Description)

	assert.Empty(t, f.store.ledger)
	assert.Empty(t, f.publisher.events)
}

func TestTransferFailureOutcomePersistenceError(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")
	f.accounts.failDebit[1] = errors.NewAppError(errors.InternalError, "account service unreachable")
	f.store.failUpdate = fmt.Errorf("connection reset by peer")

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.Error(t, err)

	// The saga outcome still drives the error code, but a failed local write
	// of the terminal legs must not vanish from the caller's view.
	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.DebitFailed, appErr.Code)
	assert.Contains(t, appErr.Details, "outcome persistence failed")
	assert.Contains(t, appErr.Details, "connection reset by peer")
}

func TestTransferCompensatedOutcomePersistenceError(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")
	f.accounts.failCredit[2] = errors.NewAppError(errors.InternalError, "account service unreachable")
	f.store.failUpdate = fmt.Errorf("connection reset by peer")

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.Error(t, err)

	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.CreditFailed, appErr.Code)
	assert.Contains(t, appErr.Details, "outcome persistence failed")
}

func TestTransferCompensated(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")
	f.accounts.failCredit[2] = errors.NewAppError(errors.InternalError, "account service unreachable")

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.Error(t, err)
	assert.Equal(t, errors.CreditFailed, errors.AsAppError(err).Code)

	sender, receiver := f.legs()
	assert.Equal(t, domain.StatusCompensated, sender.Status)
	assert.Equal(t, domain.StatusFailed, receiver.Status)
	assert.Equal(t, "Transfer to A/C ****5678 - Refunded", sender.Description)

	// The refund restored the sender's balance at the account service.
	account, _ := f.accounts.GetAccountByID(context.Background(), 1)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("100.00")))

	// One refund entry carrying the post-refund balance; no entry for the
	// failed receiver credit.
	require.Len(t, f.store.ledger, 1)
	refund := f.store.ledger[0]
	assert.Equal(t, domain.EntryCredit, refund.EntryType)
	assert.Equal(t, string(domain.StatusCompensated), refund.Status)
	assert.True(t, refund.BalanceAfter.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, "Refund for failed transfer to A/C ****5678", refund.Description)

	assert.Empty(t, f.publisher.events)
}

func TestTransferRefundFailed(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")
	f.accounts.failCredit[1] = errors.NewAppError(errors.InternalError, "account service unreachable")
	f.accounts.failCredit[2] = errors.NewAppError(errors.InternalError, "account service unreachable")

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.Error(t, err)
	assert.Equal(t, errors.RefundFailed, errors.AsAppError(err).Code)

	sender, receiver := f.legs()
	assert.Equal(t, domain.StatusFailedRefund, sender.Status)
	assert.Equal(t, domain.StatusFailed, receiver.Status)
	assert.Equal(t, "Transfer to A/C ****5678 - Refund Failed", sender.Description)

	// No ledger entry is written when the refund itself failed.
	assert.Empty(t, f.store.ledger)
	assert.Empty(t, f.publisher.events)
}

func TestTransferReplayCompleted(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")

	actor := domain.DirectAPIActor()
	first, err := f.service.Transfer(context.Background(), actor, transferReq("10.00"))
	require.NoError(t, err)

	callsAfterFirst := f.accounts.mutateCalls

	replay, err := f.service.Transfer(context.Background(), actor, transferReq("10.00"))
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, replay.TransactionID)
	assert.Equal(t, domain.StatusCompleted, replay.Status)

	// Replay never touches the account service and creates no new legs.
	assert.Equal(t, callsAfterFirst, f.accounts.mutateCalls)
	assert.Len(t, f.store.transfers, 2)
}

func TestTransferReplayFailed(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "5.00")
	f.accounts.add(2, 2000005678, "40.00")

	actor := domain.DirectAPIActor()
	_, err := f.service.Transfer(context.Background(), actor, transferReq("40.00"))
	require.Error(t, err)

	_, err = f.service.Transfer(context.Background(), actor, transferReq("40.00"))
	require.Error(t, err)
	assert.Equal(t, errors.InsufficientBalance, errors.AsAppError(err).Code)
	assert.Zero(t, f.accounts.mutateCalls)
}

func TestTransferRequestInFlight(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")

	f.store.idem[idemKey(1, "key-1")] = &domain.IdempotencyRecord{
		RequesterID: 1,
		Key:         "key-1",
		Status:      domain.IdemProcessing,
	}

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.Error(t, err)
	assert.Equal(t, errors.RequestInFlight, errors.AsAppError(err).Code)
	assert.Zero(t, f.accounts.mutateCalls)
}

func TestTransferConcurrentSameKey(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")

	var wg sync.WaitGroup
	results := make([]*TransferResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
		}(i)
	}
	wg.Wait()

	// Exactly one execution: one debit plus one credit, one pair of legs.
	assert.Equal(t, 2, f.accounts.mutateCalls)
	assert.Len(t, f.store.transfers, 2)

	var completed int
	ids := make(map[string]struct{})
	for i := range errs {
		if errs[i] == nil {
			require.NotNil(t, results[i])
			assert.Equal(t, domain.StatusCompleted, results[i].Status)
			ids[results[i].TransactionID] = struct{}{}
			completed++
			continue
		}
		// The loser either collided mid-flight or replayed after the winner
		// finished; it never executes a second time.
		assert.Equal(t, errors.RequestInFlight, errors.AsAppError(errs[i]).Code)
	}
	require.GreaterOrEqual(t, completed, 1)
	assert.LessOrEqual(t, len(ids), 1)
}

func TestTransferReceiverResolvedByIDFallback(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	// Destination reference matches an account id, not an account number.
	f.accounts.add(42, 9000000001, "0.00")

	req := transferReq("25.00")
	req.DestinationAccountID = 42

	result, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, result.Status)

	sender, receiver := f.legs()
	assert.Equal(t, int64(9000000001), sender.ReceiverAccountNumber)
	assert.Equal(t, int64(9000000001), receiver.ReceiverAccountNumber)
}

func TestTransferSameAccount(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")

	req := transferReq("25.00")
	req.DestinationAccountID = 1000001234

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), req)
	require.Error(t, err)
	assert.Equal(t, errors.SameAccountTransfer, errors.AsAppError(err).Code)
	assert.Empty(t, f.store.transfers)
}

func TestTransferValidation(t *testing.T) {
	f := newTransferFixture()

	tests := []struct {
		name string
		req  *TransferRequest
		code errors.ErrorCode
	}{
		{"zero amount", &TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: decimal.Zero}, errors.InvalidAmount},
		{"negative amount", &TransferRequest{SourceAccountID: 1, DestinationAccountID: 2, Amount: decimal.RequireFromString("-5")}, errors.InvalidAmount},
		{"bad source", &TransferRequest{SourceAccountID: 0, DestinationAccountID: 2, Amount: decimal.RequireFromString("5")}, errors.InvalidAccountID},
		{"bad destination", &TransferRequest{SourceAccountID: 1, DestinationAccountID: -2, Amount: decimal.RequireFromString("5")}, errors.InvalidAccountID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.AsAppError(err).Code)
		})
	}
}

func TestTransferPublishFailureDoesNotChangeOutcome(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")
	f.publisher.err = fmt.Errorf("brokers unreachable")

	result, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), transferReq("40.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, result.Status)
}

func TestTransferWithoutIdempotencyKey(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")

	req := transferReq("10.00")
	req.IdempotencyKey = ""

	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), req)
	require.NoError(t, err)
	_, err = f.service.Transfer(context.Background(), domain.DirectAPIActor(), req)
	require.NoError(t, err)

	// Both submissions execute; no admission control without a key.
	assert.Len(t, f.store.transfers, 4)
	assert.Empty(t, f.store.idem)
}

func TestTransactionSummary(t *testing.T) {
	f := newTransferFixture()
	f.accounts.add(1, 1000001234, "100.00")
	f.accounts.add(2, 2000005678, "40.00")

	req := transferReq("30.00")
	req.IdempotencyKey = ""
	_, err := f.service.Transfer(context.Background(), domain.DirectAPIActor(), req)
	require.NoError(t, err)

	summary, err := f.service.TransactionSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Total)
	assert.Equal(t, int64(2), summary.Completed)
	assert.True(t, summary.TotalVolume.Equal(decimal.RequireFromString("30.00")))
}
