package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidInput           ErrorCode = "invalid_input"
	InvalidAmount          ErrorCode = "invalid_amount"
	InvalidAccountID       ErrorCode = "invalid_account_id"
	SameAccountTransfer    ErrorCode = "same_account_transfer"
	InsufficientBalance    ErrorCode = "insufficient_balance"
	AccountNotFound        ErrorCode = "account_not_found"
	TransferNotFound       ErrorCode = "transfer_not_found"
	DebitFailed            ErrorCode = "debit_failed"
	CreditFailed           ErrorCode = "credit_failed"
	RefundFailed           ErrorCode = "refund_failed"
	RequestInFlight        ErrorCode = "request_in_flight"
	DuplicateRequest       ErrorCode = "duplicate_request"
	CannotBeginTransaction ErrorCode = "cannot_begin_transaction"
	InternalError          ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Details: details}
}

// HTTPStatus maps the error code to the response status the handler layer
// should report.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidInput, InvalidAmount, InvalidAccountID:
		return http.StatusBadRequest
	case AccountNotFound, TransferNotFound:
		return http.StatusNotFound
	case RequestInFlight, DuplicateRequest:
		return http.StatusConflict
	case SameAccountTransfer, InsufficientBalance:
		return http.StatusUnprocessableEntity
	case DebitFailed, CreditFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Marshal serializes the error for storage as an idempotency payload.
func (e *AppError) Marshal() json.RawMessage {
	data, err := json.Marshal(e)
	if err != nil {
		return json.RawMessage(`{"code":"internal_error","message":"unserializable error"}`)
	}
	return data
}

// UnmarshalAppError restores a stored error payload. Returns nil if the
// payload does not hold an AppError.
func UnmarshalAppError(payload json.RawMessage) *AppError {
	var e AppError
	if err := json.Unmarshal(payload, &e); err != nil || e.Code == "" {
		return nil
	}
	return &e
}

// AsAppError unwraps err into an *AppError, or wraps it as an internal error.
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewAppError(InternalError, "an unexpected error occurred").WithDetails(err.Error())
}

// Predefined errors for common cases
var (
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrTransferNotFound       = NewAppError(TransferNotFound, "transfer not found")
	ErrInvalidAccountID       = NewAppError(InvalidAccountID, "invalid account id")
	ErrInvalidAmount          = NewAppError(InvalidAmount, "amount must be greater than zero")
	ErrSameAccountTransfer    = NewAppError(SameAccountTransfer, "source and destination accounts must differ")
	ErrInsufficientBalance    = NewAppError(InsufficientBalance, "insufficient balance in source account")
	ErrRequestInFlight        = NewAppError(RequestInFlight, "a request with this idempotency key is already being processed")
	ErrDuplicateRequest       = NewAppError(DuplicateRequest, "request with this idempotency key was already processed")
	ErrCannotBeginTransaction = NewAppError(CannotBeginTransaction, "datastore cannot begin a transaction")
)

// DebitFailedErr reports a failed debit leg. No money left the source
// account, so no compensation is required.
func DebitFailedErr(cause error) *AppError {
	return NewAppError(DebitFailed, "transfer failed: sender account debit failed, no amount deducted").
		WithDetails(cause.Error())
}

// CreditFailedErr reports a failed credit leg after a successful refund of
// the sender.
func CreditFailedErr(cause error) *AppError {
	return NewAppError(CreditFailed, "transfer failed: receiver account credit failed, amount refunded to sender").
		WithDetails(cause.Error())
}

/// RefundFailedErr reports the fatal case: the credit leg failed and the
// compensating refund failed too. The sender has not been made whole and the
// transfer requires manual reconciliation.
func RefundFailedErr(cause error) *AppError {
	return NewAppError(RefundFailed, "transfer failed: refund of sender account failed, manual reconciliation required").
		WithDetails(cause.Error())
}
