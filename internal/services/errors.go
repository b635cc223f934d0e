package services

import (
	"errors"
	"fmt"

	"github.com/tobeyfinance/backoffice/internal/store"
)

// ErrorKind classifies ledger failures so callers can react to the cause
// instead of parsing messages.
type ErrorKind int

const (
	// KindValidation marks bad input shape or range.
	KindValidation ErrorKind = iota + 1
	// KindNotFound marks an unknown account or transaction id.
	KindNotFound
	// KindPrecondition marks a state rule violation: inactive account,
	// insufficient funds, same-account transfer, non-zero balance on close.
	KindPrecondition
	// KindStorage marks an I/O failure from the durable store.
	KindStorage
	// KindCompensation marks a failed transfer rollback. Money is
	// unaccounted for until reconciled; callers must not swallow it.
	KindCompensation
)

// Error is the typed failure returned by every ledger operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrAccountNotFound     = &Error{Kind: KindNotFound, Message: "account not found"}
	ErrTransactionNotFound = &Error{Kind: KindNotFound, Message: "transaction not found"}
	ErrOwnerNotFound       = &Error{Kind: KindNotFound, Message: "owner not found"}
	ErrAccountInactive     = &Error{Kind: KindPrecondition, Message: "account not active"}
	ErrInvalidAmount       = &Error{Kind: KindValidation, Message: "amount must be positive"}
	ErrSameAccount         = &Error{Kind: KindPrecondition, Message: "from and to accounts are the same"}
	ErrInsufficientFunds   = &Error{Kind: KindPrecondition, Message: "insufficient funds"}
	ErrNonZeroBalance      = &Error{Kind: KindPrecondition, Message: "account balance must be zero"}
	ErrTerminalStatus      = &Error{Kind: KindPrecondition, Message: "transaction already in a terminal status"}
)

// KindOf extracts the ErrorKind from err, mapping raw store failures to
// KindStorage. Unclassified errors report 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, store.ErrUnavailable) {
		return KindStorage
	}
	return 0
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func storageError(err error) *Error {
	return &Error{Kind: KindStorage, Message: "storage failure", Err: err}
}

func compensationError(message string, err error) *Error {
	return &Error{Kind: KindCompensation, Message: message, Err: err}
}
