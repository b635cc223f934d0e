package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tobeyfinance/backoffice/internal/identity"
	"github.com/tobeyfinance/backoffice/internal/services"
)

type CustomerHandler struct {
	directory *identity.Directory
	ledger    *services.AccountLedgerService
	validator *ValidationHelper
}

func NewCustomerHandler(directory *identity.Directory, ledger *services.AccountLedgerService) *CustomerHandler {
	return &CustomerHandler{
		directory: directory,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// RegisterCustomer creates a customer so accounts can be opened for them
func (h *CustomerHandler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name" validate:"required,max=100"`
		Email string `json:"email" validate:"omitempty,email"`
	}

	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	customer, err := h.directory.Register(r.Context(), req.Name, req.Email)
	if err != nil {
		SendErrorResponse(w, "Failed to register customer", http.StatusServiceUnavailable, nil)
		return
	}
	sendJSON(w, http.StatusCreated, customer)
}

// GetCustomer fetches one customer
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")

	customer, err := h.directory.Customer(r.Context(), customerID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch customer", http.StatusServiceUnavailable, nil)
		return
	}
	if customer == nil {
		SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		return
	}
	sendJSON(w, http.StatusOK, customer)
}

// ListCustomerAccounts lists the accounts owned by one customer
func (h *CustomerHandler) ListCustomerAccounts(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")

	accounts, err := h.ledger.OwnerAccounts(r.Context(), customerID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}
