package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tobeyfinance/backoffice/internal/models"
	"github.com/tobeyfinance/backoffice/internal/services"
)

type AccountHandler struct {
	ledger    *services.AccountLedgerService
	validator *ValidationHelper
}

func NewAccountHandler(ledger *services.AccountLedgerService) *AccountHandler {
	return &AccountHandler{
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// CreateAccount opens a new account for an existing customer
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID        string   `json:"owner_id" validate:"required"`
		AccountKind    string   `json:"account_kind" validate:"required"`
		InitialBalance int64    `json:"initial_balance" validate:"gte=0"`
		Currency       string   `json:"currency" validate:"omitempty,len=3"`
		OverdraftLimit int64    `json:"overdraft_limit" validate:"gte=0"`
		MinimumBalance int64    `json:"minimum_balance" validate:"gte=0"`
		InterestRate   *float64 `json:"interest_rate" validate:"omitempty,gte=0,lte=1"`
	}

	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), services.CreateAccountParams{
		OwnerID:        req.OwnerID,
		Kind:           models.AccountKind(req.AccountKind),
		InitialBalance: req.InitialBalance,
		Currency:       req.Currency,
		OverdraftLimit: req.OverdraftLimit,
		MinimumBalance: req.MinimumBalance,
		InterestRate:   req.InterestRate,
	})
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, account)
}

// GetAccount returns the current state of one account
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	account, err := h.ledger.Account(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, account)
}

// GetBalance returns the book and available balance of one account
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	account, err := h.ledger.Account(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"account_id":        account.AccountID,
		"balance":           account.Balance,
		"available_balance": account.AvailableBalance(),
		"currency":          account.Currency,
	})
}

type mutationRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"max=200"`
}

// Deposit credits an account
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var req mutationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	rec, err := h.ledger.Deposit(r.Context(), accountID, req.Amount, req.Description)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, rec)
}

// Withdraw debits an account
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var req mutationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	rec, err := h.ledger.Withdraw(r.Context(), accountID, req.Amount, req.Description)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, rec)
}

// Transfer moves an amount between two accounts
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromAccountID string `json:"from_account_id" validate:"required"`
		ToAccountID   string `json:"to_account_id" validate:"required"`
		Amount        int64  `json:"amount" validate:"required,gt=0"`
		Description   string `json:"description" validate:"max=200"`
	}

	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	debit, credit, err := h.ledger.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount, req.Description)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{
		"debit":  debit,
		"credit": credit,
	})
}

// CloseAccount closes a zero-balance account
func (h *AccountHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	if err := h.ledger.CloseAccount(r.Context(), accountID); err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"status":     models.StatusClosed,
	})
}

// ApplyInterest credits one accrual period of interest
func (h *AccountHandler) ApplyInterest(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	rec, err := h.ledger.ApplyInterest(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if rec == nil {
		sendJSON(w, http.StatusOK, map[string]any{"applied": false})
		return
	}
	sendJSON(w, http.StatusCreated, rec)
}
