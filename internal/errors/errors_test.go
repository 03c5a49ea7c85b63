package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{InvalidInput, http.StatusBadRequest},
		{InvalidAmount, http.StatusBadRequest},
		{InvalidAccountID, http.StatusBadRequest},
		{AccountNotFound, http.StatusNotFound},
		{TransferNotFound, http.StatusNotFound},
		{RequestInFlight, http.StatusConflict},
		{DuplicateRequest, http.StatusConflict},
		{SameAccountTransfer, http.StatusUnprocessableEntity},
		{InsufficientBalance, http.StatusUnprocessableEntity},
		{DebitFailed, http.StatusBadGateway},
		{CreditFailed, http.StatusBadGateway},
		{RefundFailed, http.StatusInternalServerError},
		{InternalError, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, NewAppError(tc.code, "x").HTTPStatus())
		})
	}
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	detailed := ErrInsufficientBalance.WithDetails("available 5.00, required 40.00")

	assert.Empty(t, ErrInsufficientBalance.Details)
	assert.Equal(t, "available 5.00, required 40.00", detailed.Details)
	assert.Equal(t, ErrInsufficientBalance.Code, detailed.Code)
}

func TestMarshalRoundTrip(t *testing.T) {
	original := ErrInsufficientBalance.WithDetails("available 5.00")
	restored := UnmarshalAppError(original.Marshal())

	require.NotNil(t, restored)
	assert.Equal(t, original.Code, restored.Code)
	assert.Equal(t, original.Message, restored.Message)
	assert.Equal(t, original.Details, restored.Details)
}

func TestUnmarshalAppErrorRejectsGarbage(t *testing.T) {
	assert.Nil(t, UnmarshalAppError([]byte("not json")))
	assert.Nil(t, UnmarshalAppError([]byte(`{"message":"no code"}`)))
	assert.Nil(t, UnmarshalAppError(nil))
}

func TestAsAppError(t *testing.T) {
	appErr := NewAppError(CreditFailed, "credit leg failed")
	assert.Same(t, appErr, AsAppError(appErr))

	wrapped := AsAppError(fmt.Errorf("dial tcp: connection refused"))
	assert.Equal(t, InternalError, wrapped.Code)
	assert.Equal(t, "dial tcp: connection refused", wrapped.Details)
}

func TestValidationErrs(t *testing.T) {
	ve := ValidationErrs()
	assert.NoError(t, ve.Err())

	ve.Add("amount", "must be a decimal number")
	ve.Add("sourceAccountId", "must be an integer")

	err := ve.Err()
	require.Error(t, err)
	appErr := AsAppError(err)
	assert.Equal(t, InvalidInput, appErr.Code)
	assert.Contains(t, appErr.Details, "amount: must be a decimal number")
	assert.Contains(t, appErr.Details, "sourceAccountId: must be an integer")
}
