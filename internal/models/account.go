package models

import (
	"time"
)

// SchemaVersion is stamped onto every persisted document so the stored
// layout can be migrated when field sets evolve.
const SchemaVersion = 1

// AccountKind enumerates the account products offered by the bank.
type AccountKind string

const (
	KindSavings      AccountKind = "savings"
	KindChecking     AccountKind = "checking"
	KindFixedDeposit AccountKind = "fixed_deposit"
	KindCurrent      AccountKind = "current"
)

// Valid reports whether the kind is one of the known account products.
func (k AccountKind) Valid() bool {
	switch k {
	case KindSavings, KindChecking, KindFixedDeposit, KindCurrent:
		return true
	}
	return false
}

// AccountStatus enumerates the lifecycle states of an account.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusSuspended AccountStatus = "suspended"
	StatusClosed    AccountStatus = "closed"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusClosed:
		return true
	}
	return false
}

// LedgerAccount is the account entity. Balance, OverdraftLimit and
// MinimumBalance are in minor currency units (cents). Balance is only ever
// mutated through the ledger service's deposit/withdraw/transfer operations,
// each of which persists a matching TransactionRecord in the same commit.
type LedgerAccount struct {
	SchemaVersion  int           `json:"schema_version"`
	AccountID      string        `json:"account_id"`
	OwnerID        string        `json:"owner_id"`
	AccountKind    AccountKind   `json:"account_kind"`
	Balance        int64         `json:"balance"`
	Currency       string        `json:"currency"`
	Status         AccountStatus `json:"status"`
	OverdraftLimit int64         `json:"overdraft_limit"`
	MinimumBalance int64         `json:"minimum_balance"`
	InterestRate   float64       `json:"interest_rate"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsActive reports whether the account accepts balance mutations.
func (a *LedgerAccount) IsActive() bool {
	return a.Status == StatusActive
}

// AvailableBalance is the balance plus the overdraft headroom.
func (a *LedgerAccount) AvailableBalance() int64 {
	return a.Balance + a.OverdraftLimit
}

// AccruedInterest returns the interest due for one accrual period. Only
// savings accounts accrue interest; other kinds return 0. The result is
// rounded down to whole minor units.
func (a *LedgerAccount) AccruedInterest() int64 {
	if a.AccountKind != KindSavings {
		return 0
	}
	return int64(float64(a.Balance) * a.InterestRate)
}
