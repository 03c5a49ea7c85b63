package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"transaction-engine/internal/domain"
	"transaction-engine/internal/errors"
)

type ledgerReader interface {
	EntriesForAccounts(ctx context.Context, accountNumbers []int64, limit, offset int) ([]domain.LedgerEntry, error)
	EntriesForTransfer(ctx context.Context, transferID uuid.UUID) ([]domain.LedgerEntry, error)
}

type LedgerHandler struct {
	service ledgerReader
}

func NewLedgerHandler(service ledgerReader) *LedgerHandler {
	return &LedgerHandler{
		service: service,
	}
}

// ListEntries serves ledger history for one or more account numbers. The
// account_number parameter accepts a comma-separated list.
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("account_number")
	if raw == "" {
		writeError(w, errors.NewAppError(errors.InvalidInput, "account_number query parameter is required"))
		return
	}

	var accountNumbers []int64
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || n <= 0 {
			writeError(w, errors.NewAppError(errors.InvalidInput, "account_number must be a positive integer").WithDetails(part))
			return
		}
		accountNumbers = append(accountNumbers, n)
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.service.EntriesForAccounts(r.Context(), accountNumbers, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// EntriesForTransfer serves the double-entry rows recorded under a single
// transaction id.
func (h *LedgerHandler) EntriesForTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["transactionId"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction id").WithDetails(err.Error()))
		return
	}

	entries, err := h.service.EntriesForTransfer(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
