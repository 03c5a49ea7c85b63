package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Account mirrors the account service's view of an account. Balances held
// here are point-in-time reads; the account service remains the only source
// of truth.
type Account struct {
	ID            int64           `json:"id"`
	AccountNumber int64           `json:"account_number"`
	UserID        int64           `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	AccountType   string          `json:"account_type"`
	Status        string          `json:"status"`
}

// AccountClient is the contract with the external account service. Debit and
// credit return the authoritative post-operation balance; callers must use
// that value for ledger writes rather than computing one locally.
type AccountClient interface {
	GetAccountByID(ctx context.Context, id int64) (*Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber int64) (*Account, error)
	DebitAndReturnBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
	CreditAndReturnBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error)
}
