package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tobeyfinance/backoffice/internal/audit"
	"github.com/tobeyfinance/backoffice/internal/models"
	"github.com/tobeyfinance/backoffice/internal/store"
)

// Collection names owned by the ledger. No other component writes these.
const (
	AccountsCollection     = "accounts"
	TransactionsCollection = "transactions"
)

// IdentityDirectory answers whether an account owner is known.
type IdentityDirectory interface {
	Exists(ctx context.Context, ownerID string) (bool, error)
}

// AuditRecorder receives a fire-and-forget notification for every ledger
// mutation attempt. The ledger never blocks on or inspects its result.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, targetType, targetID, details string, success bool)
}

// LedgerOptions carries account policy defaults applied at creation.
// DefaultInterestRate nil means 2%; a pointer to zero is an explicit
// zero-rate policy.
type LedgerOptions struct {
	DefaultCurrency     string
	DefaultInterestRate *float64
}

// AccountLedgerService is the only path permitted to mutate account
// balances. Every successful mutation commits the account and its
// TransactionRecord evidence together; mutations on the same account are
// serialized through a per-account lock.
type AccountLedgerService struct {
	store    *store.Store
	identity IdentityDirectory
	audit    AuditRecorder
	opts     LedgerOptions
	locks    *accountLocks
}

// NewAccountLedgerService creates the ledger service. directory and trail
// may be nil; owner checks and audit notifications are then skipped.
func NewAccountLedgerService(st *store.Store, directory IdentityDirectory, trail AuditRecorder, opts LedgerOptions) *AccountLedgerService {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.DefaultInterestRate == nil {
		rate := 0.02
		opts.DefaultInterestRate = &rate
	}
	return &AccountLedgerService{
		store:    st,
		identity: directory,
		audit:    trail,
		opts:     opts,
		locks:    newAccountLocks(),
	}
}

// CreateAccountParams are the inputs to CreateAccount. InterestRate nil
// means the configured default; Currency empty means the configured
// default currency.
type CreateAccountParams struct {
	OwnerID        string
	Kind           models.AccountKind
	InitialBalance int64
	Currency       string
	OverdraftLimit int64
	MinimumBalance int64
	InterestRate   *float64
}

// CreateAccount constructs and persists a new account for a known owner.
// Failed attempts are audited like every other mutation; rejected requests
// have no account id yet, so their audit entries carry the owner id.
func (s *AccountLedgerService) CreateAccount(ctx context.Context, p CreateAccountParams) (*models.LedgerAccount, error) {
	rate := *s.opts.DefaultInterestRate
	if p.InterestRate != nil {
		rate = *p.InterestRate
	}
	if err := validateCreateAccountParams(p, rate); err != nil {
		s.notify(ctx, "create_account", p.OwnerID, err.Error(), false)
		return nil, err
	}
	if s.identity != nil {
		known, err := s.identity.Exists(ctx, p.OwnerID)
		if err != nil {
			s.notify(ctx, "create_account", p.OwnerID, err.Error(), false)
			return nil, storageError(err)
		}
		if !known {
			s.notify(ctx, "create_account", p.OwnerID, ErrOwnerNotFound.Error(), false)
			return nil, ErrOwnerNotFound
		}
	}
	currency := p.Currency
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}

	now := time.Now().UTC()
	account := &models.LedgerAccount{
		SchemaVersion:  models.SchemaVersion,
		AccountID:      uuid.New().String(),
		OwnerID:        p.OwnerID,
		AccountKind:    p.Kind,
		Balance:        p.InitialBalance,
		Currency:       currency,
		Status:         models.StatusActive,
		OverdraftLimit: p.OverdraftLimit,
		MinimumBalance: p.MinimumBalance,
		InterestRate:   rate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Upsert(ctx, AccountsCollection, "account_id", account); err != nil {
		s.notify(ctx, "create_account", account.AccountID, err.Error(), false)
		return nil, storageError(err)
	}
	s.notify(ctx, "create_account", account.AccountID,
		fmt.Sprintf("owner %s, kind %s", p.OwnerID, p.Kind), true)
	return account, nil
}

func validateCreateAccountParams(p CreateAccountParams, rate float64) error {
	if p.OwnerID == "" {
		return validationError("owner id is required")
	}
	if !p.Kind.Valid() {
		return validationError("invalid account kind %q", p.Kind)
	}
	if p.InitialBalance < 0 {
		return validationError("initial balance cannot be negative")
	}
	if p.OverdraftLimit < 0 {
		return validationError("overdraft limit cannot be negative")
	}
	if p.MinimumBalance < 0 {
		return validationError("minimum balance cannot be negative")
	}
	if rate < 0 || rate > 1 {
		return validationError("interest rate must be between 0 and 1")
	}
	return nil
}

// Deposit credits amount into an active account and persists a Completed
// Deposit record carrying the new balance.
func (s *AccountLedgerService) Deposit(ctx context.Context, accountID string, amount int64, description string) (*models.TransactionRecord, error) {
	if description == "" {
		description = "Deposit"
	}
	unlock := s.locks.lock(accountID)
	defer unlock()

	rec, err := s.creditLocked(ctx, accountID, amount, models.TxDeposit, description, "")
	s.notifyMutation(ctx, "deposit", accountID, amount, err)
	return rec, err
}

// Withdraw debits amount from an active account. The amount may dip into
// the overdraft limit but never beyond it.
func (s *AccountLedgerService) Withdraw(ctx context.Context, accountID string, amount int64, description string) (*models.TransactionRecord, error) {
	if description == "" {
		description = "Withdrawal"
	}
	unlock := s.locks.lock(accountID)
	defer unlock()

	rec, err := s.debitLocked(ctx, accountID, amount, models.TxWithdrawal, description, "")
	s.notifyMutation(ctx, "withdraw", accountID, amount, err)
	return rec, err
}

// Transfer moves amount between two accounts as a debit leg at the source
// and a credit leg at the destination, each leg committed with its own
// Transfer record. If the credit leg fails after the debit leg committed,
// the amount is re-deposited into the source (logged as a Deposit record)
// before the failure is reported, so balances net out and the ledger stays
// auditable.
func (s *AccountLedgerService) Transfer(ctx context.Context, fromID, toID string, amount int64, description string) (*models.TransactionRecord, *models.TransactionRecord, error) {
	if fromID == toID {
		return nil, nil, ErrSameAccount
	}
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Transfer"
	}

	unlock := s.locks.lockPair(fromID, toID)
	defer unlock()

	// Both sides must exist before either leg is applied.
	if _, err := s.loadAccount(ctx, fromID); err != nil {
		s.notifyMutation(ctx, "transfer", fromID, amount, err)
		return nil, nil, err
	}
	if _, err := s.loadAccount(ctx, toID); err != nil {
		s.notifyMutation(ctx, "transfer", toID, amount, err)
		return nil, nil, err
	}

	debit, err := s.debitLocked(ctx, fromID, amount, models.TxTransfer,
		fmt.Sprintf("Transfer to %s: %s", toID, description), toID)
	if err != nil {
		s.notifyMutation(ctx, "transfer", fromID, amount, err)
		return nil, nil, err
	}

	credit, err := s.creditLocked(ctx, toID, amount, models.TxTransfer,
		fmt.Sprintf("Transfer from %s: %s", fromID, description), fromID)
	if err != nil {
		if compErr := s.compensate(ctx, fromID, toID, amount); compErr != nil {
			return nil, nil, compErr
		}
		s.notifyMutation(ctx, "transfer", fromID, amount, err)
		return nil, nil, err
	}

	s.notify(ctx, "transfer", fromID,
		fmt.Sprintf("%d %s to %s", amount, debit.Currency, toID), true)
	return debit, credit, nil
}

// CloseAccount marks a zero-balance account Closed. Accounts are never
// physically deleted.
func (s *AccountLedgerService) CloseAccount(ctx context.Context, accountID string) error {
	unlock := s.locks.lock(accountID)
	defer unlock()

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		s.notify(ctx, "close_account", accountID, err.Error(), false)
		return err
	}
	if account.Balance != 0 {
		s.notify(ctx, "close_account", accountID, "non-zero balance", false)
		return ErrNonZeroBalance
	}

	account.Status = models.StatusClosed
	account.UpdatedAt = time.Now().UTC()
	if err := s.store.Upsert(ctx, AccountsCollection, "account_id", account); err != nil {
		s.notify(ctx, "close_account", accountID, err.Error(), false)
		return storageError(err)
	}
	s.notify(ctx, "close_account", accountID, "", true)
	return nil
}

// ApplyInterest credits one accrual period of interest to a savings
// account; other kinds are a no-op returning (nil, nil). It is not
// idempotent: the scheduler is responsible for calling it once per period.
func (s *AccountLedgerService) ApplyInterest(ctx context.Context, accountID string) (*models.TransactionRecord, error) {
	unlock := s.locks.lock(accountID)
	defer unlock()

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	interest := account.AccruedInterest()
	if interest <= 0 {
		return nil, nil
	}

	rec, err := s.creditLocked(ctx, accountID, interest, models.TxInterest, "Interest credit", "")
	s.notifyMutation(ctx, "apply_interest", accountID, interest, err)
	return rec, err
}

// CalculateInterest returns the interest one accrual period would credit,
// without applying it.
func (s *AccountLedgerService) CalculateInterest(ctx context.Context, accountID string) (int64, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.AccruedInterest(), nil
}

// ProcessTransaction completes a pending record. Completed and Cancelled
// are terminal; the transition is the only rewrite records ever receive.
func (s *AccountLedgerService) ProcessTransaction(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	return s.transitionTransaction(ctx, transactionID, models.TxCompleted, "process_transaction")
}

// CancelTransaction cancels a pending record.
func (s *AccountLedgerService) CancelTransaction(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	return s.transitionTransaction(ctx, transactionID, models.TxCancelled, "cancel_transaction")
}

func (s *AccountLedgerService) transitionTransaction(ctx context.Context, transactionID string, to models.TransactionStatus, action string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	found, err := s.store.Get(ctx, TransactionsCollection, "transaction_id", transactionID, &rec)
	if err != nil {
		return nil, storageError(err)
	}
	if !found {
		return nil, ErrTransactionNotFound
	}
	if rec.Status.Terminal() {
		return nil, ErrTerminalStatus
	}
	if rec.Status != models.TxPending {
		return nil, &Error{Kind: KindPrecondition, Message: "transaction is not pending"}
	}

	rec.Status = to
	if err := s.store.Upsert(ctx, TransactionsCollection, "transaction_id", &rec); err != nil {
		s.notify(ctx, action, transactionID, err.Error(), false)
		return nil, storageError(err)
	}
	s.notify(ctx, action, transactionID, string(to), true)
	return &rec, nil
}

// Account returns the current state of an account.
func (s *AccountLedgerService) Account(ctx context.Context, accountID string) (*models.LedgerAccount, error) {
	return s.loadAccount(ctx, accountID)
}

// Balance returns the current (book) balance of an account.
func (s *AccountLedgerService) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// OwnerAccounts lists the accounts belonging to one customer.
func (s *AccountLedgerService) OwnerAccounts(ctx context.Context, ownerID string) ([]models.LedgerAccount, error) {
	docs, err := s.store.List(ctx, AccountsCollection, nil)
	if err != nil {
		return nil, storageError(err)
	}
	accounts := []models.LedgerAccount{}
	for _, doc := range docs {
		var account models.LedgerAccount
		if err := json.Unmarshal(doc, &account); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
		if account.OwnerID == ownerID {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// Internal mutation helpers. Callers must hold the account lock.

func (s *AccountLedgerService) creditLocked(ctx context.Context, accountID string, amount int64, kind models.TransactionKind, description, counterparty string) (*models.TransactionRecord, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, ErrAccountInactive
	}

	account.Balance += amount
	account.UpdatedAt = time.Now().UTC()
	rec := s.newRecord(account, kind, amount, description, counterparty)
	if err := s.persistMutation(ctx, account, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *AccountLedgerService) debitLocked(ctx context.Context, accountID string, amount int64, kind models.TransactionKind, description, counterparty string) (*models.TransactionRecord, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, ErrAccountInactive
	}
	if amount > account.AvailableBalance() {
		return nil, ErrInsufficientFunds
	}

	account.Balance -= amount
	account.UpdatedAt = time.Now().UTC()
	rec := s.newRecord(account, kind, amount, description, counterparty)
	if err := s.persistMutation(ctx, account, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// compensate re-deposits a withdrawn transfer amount into the source
// account after the credit leg failed. If the compensating deposit itself
// cannot be persisted, the source account is frozen pending reconciliation
// and a KindCompensation error surfaces; callers must not swallow it.
func (s *AccountLedgerService) compensate(ctx context.Context, fromID, toID string, amount int64) error {
	_, err := s.creditLocked(ctx, fromID, amount, models.TxDeposit,
		fmt.Sprintf("Transfer reversal: credit to %s failed", toID), "")
	if err == nil {
		s.notify(ctx, "transfer_compensation", fromID,
			fmt.Sprintf("%d restored after failed credit to %s", amount, toID), true)
		return nil
	}

	log.Printf("[LEDGER] COMPENSATION FAILED: account %s, amount %d, failed credit to %s: %v",
		fromID, amount, toID, err)
	s.freeze(ctx, fromID)
	s.notify(ctx, "transfer_compensation", fromID, err.Error(), false)
	return compensationError(
		fmt.Sprintf("compensating deposit of %d into account %s failed", amount, fromID), err)
}

// freeze suspends an account whose compensation could not be persisted.
// Best effort: if even this write fails there is nothing left but the log.
func (s *AccountLedgerService) freeze(ctx context.Context, accountID string) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		log.Printf("[LEDGER] cannot load account %s to freeze it: %v", accountID, err)
		return
	}
	account.Status = models.StatusSuspended
	account.UpdatedAt = time.Now().UTC()
	if err := s.store.Upsert(ctx, AccountsCollection, "account_id", account); err != nil {
		log.Printf("[LEDGER] cannot freeze account %s: %v", accountID, err)
	}
}

func (s *AccountLedgerService) loadAccount(ctx context.Context, accountID string) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	found, err := s.store.Get(ctx, AccountsCollection, "account_id", accountID, &account)
	if err != nil {
		return nil, storageError(err)
	}
	if !found {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

// newRecord builds the evidence record for a mutation already applied to
// the in-memory account, so BalanceAfter snapshots the new balance.
func (s *AccountLedgerService) newRecord(account *models.LedgerAccount, kind models.TransactionKind, amount int64, description, counterparty string) *models.TransactionRecord {
	return &models.TransactionRecord{
		SchemaVersion:         models.SchemaVersion,
		TransactionID:         uuid.New().String(),
		AccountID:             account.AccountID,
		Kind:                  kind,
		Amount:                amount,
		Currency:              account.Currency,
		Description:           description,
		CounterpartyAccountID: counterparty,
		BalanceAfter:          account.Balance,
		Status:                models.TxCompleted,
		CreatedAt:             time.Now().UTC(),
	}
}

// persistMutation commits the mutated account and its evidence record in a
// single transaction, so no partial state is ever exposed as success.
func (s *AccountLedgerService) persistMutation(ctx context.Context, account *models.LedgerAccount, rec *models.TransactionRecord) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.Upsert(AccountsCollection, "account_id", account); err != nil {
			return err
		}
		return tx.Upsert(TransactionsCollection, "transaction_id", rec)
	})
	if err != nil {
		return storageError(err)
	}
	return nil
}

func (s *AccountLedgerService) notify(ctx context.Context, action, targetID, details string, success bool) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.ActorFromContext(ctx), action, "account", targetID, details, success)
}

func (s *AccountLedgerService) notifyMutation(ctx context.Context, action, accountID string, amount int64, err error) {
	if err != nil {
		s.notify(ctx, action, accountID, err.Error(), false)
		return
	}
	s.notify(ctx, action, accountID, fmt.Sprintf("amount %d", amount), true)
}

// accountLocks serializes mutating access per account id.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) lock(accountID string) func() {
	l.mu.Lock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// lockPair acquires both account locks in a consistent order to prevent
// deadlocks between concurrent opposite-direction transfers.
func (l *accountLocks) lockPair(a, b string) func() {
	first, second := a, b
	if first > second {
		first, second = second, first
	}
	unlockFirst := l.lock(first)
	unlockSecond := l.lock(second)
	return func() {
		unlockSecond()
		unlockFirst()
	}
}
