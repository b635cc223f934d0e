package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/tobeyfinance/backoffice/internal/identity"
	"github.com/tobeyfinance/backoffice/internal/models"
	"github.com/tobeyfinance/backoffice/internal/services"
	"github.com/tobeyfinance/backoffice/internal/store"
)

type testEnv struct {
	router    chi.Router
	ledger    *services.AccountLedgerService
	directory *identity.Directory
	ownerID   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "handlers_test.db"))
	assert.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	assert.NoError(t, st.Initialize(context.Background(),
		services.AccountsCollection, services.TransactionsCollection, identity.Collection))

	directory := identity.NewDirectory(st)
	owner, err := directory.Register(context.Background(), "Test Owner", "")
	assert.NoError(t, err)

	ledger := services.NewAccountLedgerService(st, directory, nil, services.LedgerOptions{})
	query := services.NewTransactionQueryService(st)

	accountHandler := NewAccountHandler(ledger)
	transactionHandler := NewTransactionHandler(query, ledger)
	customerHandler := NewCustomerHandler(directory, ledger)

	r := chi.NewRouter()
	r.Post("/customers", customerHandler.RegisterCustomer)
	r.Get("/customers/{customerId}", customerHandler.GetCustomer)
	r.Get("/customers/{customerId}/accounts", customerHandler.ListCustomerAccounts)
	r.Post("/accounts", accountHandler.CreateAccount)
	r.Get("/accounts/{accountId}", accountHandler.GetAccount)
	r.Get("/accounts/{accountId}/balance", accountHandler.GetBalance)
	r.Post("/accounts/{accountId}/deposit", accountHandler.Deposit)
	r.Post("/accounts/{accountId}/withdraw", accountHandler.Withdraw)
	r.Post("/accounts/{accountId}/close", accountHandler.CloseAccount)
	r.Post("/accounts/{accountId}/interest", accountHandler.ApplyInterest)
	r.Get("/accounts/{accountId}/statement", transactionHandler.Statement)
	r.Get("/accounts/{accountId}/summary", transactionHandler.Summary)
	r.Post("/transfers", accountHandler.Transfer)
	r.Get("/transactions", transactionHandler.ListTransactions)
	r.Get("/transactions/{txId}", transactionHandler.GetTransaction)

	return &testEnv{router: r, ledger: ledger, directory: directory, ownerID: owner.CustomerID}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) createAccount(t *testing.T, balance int64) models.LedgerAccount {
	t.Helper()
	w := env.do(t, "POST", "/accounts", map[string]any{
		"owner_id":        env.ownerID,
		"account_kind":    "checking",
		"initial_balance": balance,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var account models.LedgerAccount
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	return account
}

func TestAccountHandler_CreateAccount(t *testing.T) {
	env := newTestEnv(t)

	t.Run("creates an account", func(t *testing.T) {
		account := env.createAccount(t, 1_000)
		assert.NotEmpty(t, account.AccountID)
		assert.Equal(t, int64(1_000), account.Balance)
		assert.Equal(t, models.StatusActive, account.Status)
	})

	t.Run("unknown owner maps to 404", func(t *testing.T) {
		w := env.do(t, "POST", "/accounts", map[string]any{
			"owner_id":     "ghost",
			"account_kind": "savings",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing fields map to 400", func(t *testing.T) {
		w := env.do(t, "POST", "/accounts", map[string]any{"account_kind": "savings"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "OwnerID")
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/accounts", bytes.NewBufferString("not json"))
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccountHandler_DepositWithdraw(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, 1_000)

	t.Run("deposit", func(t *testing.T) {
		w := env.do(t, "POST", "/accounts/"+account.AccountID+"/deposit",
			map[string]any{"amount": 500, "description": "payday"})
		assert.Equal(t, http.StatusCreated, w.Code)

		var rec models.TransactionRecord
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, int64(1_500), rec.BalanceAfter)
	})

	t.Run("balance endpoint reflects the deposit", func(t *testing.T) {
		w := env.do(t, "GET", "/accounts/"+account.AccountID+"/balance", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(1_500), resp["balance"])
	})

	t.Run("insufficient funds maps to 409", func(t *testing.T) {
		w := env.do(t, "POST", "/accounts/"+account.AccountID+"/withdraw",
			map[string]any{"amount": 1_000_000})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown account maps to 404", func(t *testing.T) {
		w := env.do(t, "POST", "/accounts/nope/deposit", map[string]any{"amount": 10})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("zero amount maps to 400", func(t *testing.T) {
		w := env.do(t, "POST", "/accounts/"+account.AccountID+"/deposit",
			map[string]any{"amount": 0})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccountHandler_Transfer(t *testing.T) {
	env := newTestEnv(t)
	from := env.createAccount(t, 2_000)
	to := env.createAccount(t, 0)

	t.Run("moves funds", func(t *testing.T) {
		w := env.do(t, "POST", "/transfers", map[string]any{
			"from_account_id": from.AccountID,
			"to_account_id":   to.AccountID,
			"amount":          750,
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Debit  models.TransactionRecord `json:"debit"`
			Credit models.TransactionRecord `json:"credit"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1_250), resp.Debit.BalanceAfter)
		assert.Equal(t, int64(750), resp.Credit.BalanceAfter)
	})

	t.Run("same account maps to 409", func(t *testing.T) {
		w := env.do(t, "POST", "/transfers", map[string]any{
			"from_account_id": from.AccountID,
			"to_account_id":   from.AccountID,
			"amount":          10,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAccountHandler_CloseAccount(t *testing.T) {
	env := newTestEnv(t)

	t.Run("closes empty account", func(t *testing.T) {
		account := env.createAccount(t, 0)
		w := env.do(t, "POST", "/accounts/"+account.AccountID+"/close", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non-zero balance maps to 409", func(t *testing.T) {
		account := env.createAccount(t, 100)
		w := env.do(t, "POST", "/accounts/"+account.AccountID+"/close", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestTransactionHandler_Statement(t *testing.T) {
	env := newTestEnv(t)
	account := env.createAccount(t, 1_000)

	env.do(t, "POST", "/accounts/"+account.AccountID+"/deposit", map[string]any{"amount": 200})
	env.do(t, "POST", "/accounts/"+account.AccountID+"/withdraw", map[string]any{"amount": 50})

	t.Run("lists the account history", func(t *testing.T) {
		w := env.do(t, "GET", "/accounts/"+account.AccountID+"/statement", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Transactions []models.TransactionRecord `json:"transactions"`
			Count        int                        `json:"count"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("bad time bound maps to 400", func(t *testing.T) {
		w := env.do(t, "GET", "/accounts/"+account.AccountID+"/statement?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("summary folds the history", func(t *testing.T) {
		w := env.do(t, "GET", "/accounts/"+account.AccountID+"/summary", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var summary services.TransactionSummary
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
		assert.Equal(t, 2, summary.Count)
		assert.Equal(t, 2, summary.CompletedCount)
	})

	t.Run("kind filter rejects unknown kinds", func(t *testing.T) {
		w := env.do(t, "GET", "/transactions?kind=lottery", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("point lookup", func(t *testing.T) {
		listResp := env.do(t, "GET", "/transactions?kind=deposit", nil)
		var resp struct {
			Transactions []models.TransactionRecord `json:"transactions"`
		}
		assert.NoError(t, json.Unmarshal(listResp.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Transactions)

		w := env.do(t, "GET", fmt.Sprintf("/transactions/%s", resp.Transactions[0].TransactionID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, "GET", "/transactions/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCustomerHandler(t *testing.T) {
	env := newTestEnv(t)

	t.Run("register and fetch", func(t *testing.T) {
		w := env.do(t, "POST", "/customers", map[string]any{"name": "Grace Hopper"})
		assert.Equal(t, http.StatusCreated, w.Code)

		var customer models.Customer
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &customer))

		w = env.do(t, "GET", "/customers/"+customer.CustomerID, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown customer maps to 404", func(t *testing.T) {
		w := env.do(t, "GET", "/customers/ghost", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("lists owner accounts", func(t *testing.T) {
		env.createAccount(t, 10)
		w := env.do(t, "GET", "/customers/"+env.ownerID+"/accounts", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Accounts []models.LedgerAccount `json:"accounts"`
			Count    int                    `json:"count"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.GreaterOrEqual(t, resp.Count, 1)
	})
}
