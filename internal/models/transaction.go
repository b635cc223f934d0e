package models

import (
	"time"
)

// TransactionKind enumerates the kinds of balance mutation a record can
// evidence.
type TransactionKind string

const (
	TxDeposit    TransactionKind = "deposit"
	TxWithdrawal TransactionKind = "withdrawal"
	TxTransfer   TransactionKind = "transfer"
	TxPayment    TransactionKind = "payment"
	TxFee        TransactionKind = "fee"
	TxInterest   TransactionKind = "interest"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case TxDeposit, TxWithdrawal, TxTransfer, TxPayment, TxFee, TxInterest:
		return true
	}
	return false
}

// TransactionStatus enumerates the processing states of a record.
// Completed and Cancelled are terminal.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxPending, TxCompleted, TxFailed, TxCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transition.
func (s TransactionStatus) Terminal() bool {
	return s == TxCompleted || s == TxCancelled
}

// TransactionRecord is the immutable evidence entity written for every
// balance mutation. Amount is a positive magnitude in minor currency units;
// BalanceAfter snapshots the account balance immediately after the record
// was applied so statements reconstruct without replaying history.
// CounterpartyAccountID is set only on transfer legs.
type TransactionRecord struct {
	SchemaVersion         int               `json:"schema_version"`
	TransactionID         string            `json:"transaction_id"`
	AccountID             string            `json:"account_id"`
	Kind                  TransactionKind   `json:"kind"`
	Amount                int64             `json:"amount"`
	Fee                   int64             `json:"fee"`
	Currency              string            `json:"currency"`
	Description           string            `json:"description"`
	ReferenceNumber       string            `json:"reference_number,omitempty"`
	CounterpartyAccountID string            `json:"counterparty_account_id,omitempty"`
	BalanceAfter          int64             `json:"balance_after"`
	Status                TransactionStatus `json:"status"`
	CreatedAt             time.Time         `json:"created_at"`
}

// IsCompleted reports whether the record reached its success state.
func (t *TransactionRecord) IsCompleted() bool {
	return t.Status == TxCompleted
}

// TotalAmount is the amount plus any fee charged with it.
func (t *TransactionRecord) TotalAmount() int64 {
	return t.Amount + t.Fee
}
