package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"transaction-engine/internal/config"
	"transaction-engine/internal/domain"
	"transaction-engine/internal/metrics"
)

// Reconciler periodically compares the latest ledgered balance of each
// recently active account against the account service. It reports drift
// through logs and a gauge; it never mutates balances or transfer records.
type Reconciler struct {
	store    domain.Datastore
	accounts domain.AccountClient
	interval time.Duration
	lookback time.Duration
	logger   *zap.Logger
}

func NewReconciler(cfg config.Reconciler, store domain.Datastore, accounts domain.AccountClient, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		accounts: accounts,
		interval: cfg.Interval,
		lookback: cfg.Lookback,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started",
		zap.Duration("interval", r.interval),
		zap.Duration("lookback", r.lookback))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass and returns the number of drifted accounts.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	since := time.Now().UTC().Add(-r.lookback)
	snapshots, err := r.store.Ledger().LatestBalances(ctx, since)
	if err != nil {
		return 0, err
	}

	drifted := 0
	for _, snap := range snapshots {
		account, err := r.accounts.GetAccountByID(ctx, snap.AccountID)
		if err != nil {
			r.logger.Warn("reconciliation lookup failed",
				zap.Int64("account_id", snap.AccountID),
				zap.Error(err))
			continue
		}
		if !account.Balance.Equal(snap.BalanceAfter) {
			drifted++
			r.logger.Warn("ledger balance drift detected",
				zap.Int64("account_id", snap.AccountID),
				zap.Int64("account_number", snap.AccountNumber),
				zap.String("ledger_balance", snap.BalanceAfter.String()),
				zap.String("account_balance", account.Balance.String()),
				zap.Time("as_of", snap.Timestamp))
		}
	}

	metrics.ReconciliationDriftedAccounts.Set(float64(drifted))
	r.logger.Info("reconciliation sweep done",
		zap.Int("accounts_checked", len(snapshots)),
		zap.Int("accounts_drifted", drifted))
	return drifted, nil
}
