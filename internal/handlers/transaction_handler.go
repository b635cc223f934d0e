package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tobeyfinance/backoffice/internal/models"
	"github.com/tobeyfinance/backoffice/internal/services"
)

type TransactionHandler struct {
	query  *services.TransactionQueryService
	ledger *services.AccountLedgerService
}

func NewTransactionHandler(query *services.TransactionQueryService, ledger *services.AccountLedgerService) *TransactionHandler {
	return &TransactionHandler{
		query:  query,
		ledger: ledger,
	}
}

// Statement lists an account's records newest first, optionally bounded
// by from/to timestamps (RFC 3339)
func (h *TransactionHandler) Statement(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	from, to, err := parseTimeBounds(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	records, err := h.query.Statement(r.Context(), accountID, from, to)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// Summary folds an account's statement into totals and counts
func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	from, to, err := parseTimeBounds(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	summary, err := h.query.Summary(r.Context(), accountID, from, to)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, summary)
}

// ListTransactions filters the global history by kind or status; without
// filters it returns the recent window
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	var (
		records []models.TransactionRecord
		err     error
	)
	switch {
	case kind != "":
		k := models.TransactionKind(kind)
		if !k.Valid() {
			SendErrorResponse(w, "unknown transaction kind", http.StatusBadRequest, nil)
			return
		}
		records, err = h.query.ByKind(r.Context(), k)
	case status != "":
		st := models.TransactionStatus(status)
		if !st.Valid() {
			SendErrorResponse(w, "unknown transaction status", http.StatusBadRequest, nil)
			return
		}
		records, err = h.query.ByStatus(r.Context(), st)
	default:
		days := 30
		if d := r.URL.Query().Get("days"); d != "" {
			if parsed, perr := strconv.Atoi(d); perr == nil {
				days = parsed
			}
		}
		records, err = h.query.Recent(r.Context(), days)
	}
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// GetTransaction fetches one record by id
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	rec, err := h.query.Transaction(r.Context(), txID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, rec)
}

// SearchTransactions matches descriptions and reference numbers
func (h *TransactionHandler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		SendErrorResponse(w, "q is required", http.StatusBadRequest, nil)
		return
	}

	records, err := h.query.Search(r.Context(), term)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"transactions": records,
		"count":        len(records),
	})
}

// Statistics aggregates the whole history
func (h *TransactionHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.Statistics(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, stats)
}

// ProcessTransaction completes a pending record
func (h *TransactionHandler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	rec, err := h.ledger.ProcessTransaction(r.Context(), txID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, rec)
}

// CancelTransaction cancels a pending record
func (h *TransactionHandler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")

	rec, err := h.ledger.CancelTransaction(r.Context(), txID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, rec)
}

func parseTimeBounds(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	return from, to, nil
}
