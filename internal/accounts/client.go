// Package accounts adapts the external account service's HTTP contract. The
// engine never mutates a balance directly; every movement goes through this
// client and the balance it returns is the only one trusted for ledger
// writes.
package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"transaction-engine/internal/config"
	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

var _ domain.AccountClient = (*Client)(nil)

func NewClient(cfg config.Accounts, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

func (c *Client) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	var account domain.Account
	endpoint := fmt.Sprintf("%s/api/account/%d", c.baseURL, id)
	if err := c.do(ctx, http.MethodGet, endpoint, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) GetAccountByNumber(ctx context.Context, accountNumber int64) (*domain.Account, error) {
	var account domain.Account
	endpoint := fmt.Sprintf("%s/api/account/number/%d", c.baseURL, accountNumber)
	if err := c.do(ctx, http.MethodGet, endpoint, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) DebitAndReturnBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return c.mutateBalance(ctx, "debit", accountID, amount)
}

func (c *Client) CreditAndReturnBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return c.mutateBalance(ctx, "credit", accountID, amount)
}

// balanceResponse is the account service's reply to a debit or credit: the
// authoritative balance immediately after the operation.
type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

func (c *Client) mutateBalance(ctx context.Context, operation string, accountID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("accountId", fmt.Sprintf("%d", accountID))
	params.Set("amount", amount.String())
	endpoint := fmt.Sprintf("%s/api/account/%s-with-balance?%s", c.baseURL, operation, params.Encode())

	var resp balanceResponse
	if err := c.do(ctx, http.MethodPost, endpoint, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Balance, nil
}

// errorBody is the account service's structured error shape.
type errorBody struct {
	Message string `json:"message"`
}

// do issues the request with a bounded retry count. Transport errors and 5xx
// responses are retried; 4xx responses are mapped and returned immediately.
func (c *Client) do(ctx context.Context, method, endpoint string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.NewAppError(errors.InternalError, "account service call canceled").WithDetails(err.Error())
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return errors.NewAppError(errors.InternalError, "failed to build account service request").WithDetails(err.Error())
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("account service call failed",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("account service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			c.logger.Warn("account service error response",
				zap.String("endpoint", endpoint),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			continue
		}

		if resp.StatusCode >= 400 {
			return c.mapClientError(resp.StatusCode, body)
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return errors.NewAppError(errors.InternalError, "failed to decode account service response").WithDetails(err.Error())
			}
		}
		return nil
	}

	return errors.NewAppError(errors.InternalError, "account service unreachable").WithDetails(lastErr.Error())
}

func (c *Client) mapClientError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	message := eb.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	if status == http.StatusNotFound {
		return errors.ErrAccountNotFound.WithDetails(message)
	}
	if strings.Contains(strings.ToLower(message), "insufficient") {
		return errors.ErrInsufficientBalance.WithDetails(message)
	}
	return errors.NewAppErrorf(errors.InvalidInput, "account service rejected request (%d)", status).WithDetails(message)
}
