package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
	"transaction-engine/internal/service"
)

type transferOrchestrator interface {
	Transfer(ctx context.Context, actor domain.Actor, req *service.TransferRequest) (*service.TransferResult, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	ListTransactionsByAccount(ctx context.Context, accountNumber int64) ([]domain.Transfer, error)
	TransactionSummary(ctx context.Context) (*service.TransactionSummary, error)
}

type TransferHandler struct {
	service transferOrchestrator
}

func NewTransferHandler(service transferOrchestrator) *TransferHandler {
	return &TransferHandler{
		service: service,
	}
}

type transferRequestBody struct {
	SourceAccountID      json.Number `json:"sourceAccountId"`
	DestinationAccountID json.Number `json:"destinationAccountId"`
	Amount               string      `json:"amount"`
	Currency             string      `json:"currency"`
	Description          string      `json:"description"`
}

func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var body transferRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	ve := errors.ValidationErrs()

	sourceID, err := body.SourceAccountID.Int64()
	if err != nil {
		ve.Add("sourceAccountId", "must be an integer")
	}
	destinationID, err := body.DestinationAccountID.Int64()
	if err != nil {
		ve.Add("destinationAccountId", "must be an integer")
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		ve.Add("amount", "must be a decimal number")
	}
	if err := ve.Err(); err != nil {
		writeError(w, err)
		return
	}

	req := &service.TransferRequest{
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		Currency:             body.Currency,
		Description:          body.Description,
		IdempotencyKey:       r.Header.Get("Idempotency-Key"),
	}

	result, err := h.service.Transfer(r.Context(), domain.ActorFromContext(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *TransferHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction id").WithDetails(err.Error()))
		return
	}

	transfer, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transfer)
}

func (h *TransferHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountNumber, err := strconv.ParseInt(r.URL.Query().Get("account_number"), 10, 64)
	if err != nil || accountNumber <= 0 {
		writeError(w, errors.NewAppError(errors.InvalidInput, "account_number query parameter is required and must be a positive integer"))
		return
	}

	transfers, err := h.service.ListTransactionsByAccount(r.Context(), accountNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transfers)
}

func (h *TransferHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.TransactionSummary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
