/**
 * @description
 * This file contains the HTTP handlers for the CASA ledger service. Handlers
 * parse incoming requests, call the application service, and map the
 * service's error taxonomy onto HTTP status codes: client-input faults to
 * 422, absent accounts on the query path to 404, and system/integrity
 * faults to 5xx.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/casaops/casa-ledger-service/internal/app"
	"github.com/casaops/casa-ledger-service/internal/domain"
	"github.com/casaops/casa-ledger-service/internal/store"
)

const defaultTransactionListLimit = 20

// LedgerHandlers holds the application service that handlers delegate to.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// GetAccountHandler handles GET /accounts/{accountNum}. Unknown and inactive
// accounts are both reported as not found.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountNum := chi.URLParam(r, "accountNum")

	account, err := h.service.GetAccountDetails(r.Context(), accountNum)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found or inactive")
			return
		}
		log.Printf("level=error component=api endpoint=get_account msg=\"account lookup failed\" account_num=%s err=%v", accountNum, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load account")
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// ListAccountTransactionsHandler handles GET /accounts/{accountNum}/transactions.
func (h *LedgerHandlers) ListAccountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	accountNum := chi.URLParam(r, "accountNum")

	limit := int32(defaultTransactionListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 || parsed > 100 {
			h.writeError(w, http.StatusUnprocessableEntity, "limit must be an integer between 1 and 100")
			return
		}
		limit = int32(parsed)
	}

	transactions, err := h.service.ListAccountTransactions(r.Context(), accountNum, limit)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, "Account not found or inactive")
			return
		}
		log.Printf("level=error component=api endpoint=list_transactions msg=\"transaction list failed\" account_num=%s err=%v", accountNum, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load transactions")
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	h.writeJSON(w, http.StatusOK, transactions)
}

// TransferHandler handles POST /transfers.
func (h *LedgerHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}

	receipt, err := h.service.Transfer(r.Context(), req)
	if err != nil {
		h.writeTransferError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, receipt)
}

// writeTransferError maps transfer failures onto response codes. Client-input
// faults are 422; a duplicate reference id is an integrity fault (500,
// retryable with a fresh reference id); a lock-wait timeout is 503 so the
// caller knows an immediate retry may succeed.
func (h *LedgerHandlers) writeTransferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrDuplicateReference):
		log.Printf("level=error component=api endpoint=transfer outcome=integrity_fault err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Transfer reference id already used; retry with a new reference id")
	case errors.Is(err, store.ErrLockTimeout):
		log.Printf("level=warn component=api endpoint=transfer outcome=lock_timeout err=%v", err)
		h.writeError(w, http.StatusServiceUnavailable, "Transfer timed out waiting for account locks; please retry")
	default:
		log.Printf("level=error component=api endpoint=transfer outcome=system_fault err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Transfer failed due to an internal error")
	}
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"detail": message})
}
