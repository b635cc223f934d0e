package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tobeyfinance/backoffice/internal/store"
)

func TestKindOf(t *testing.T) {
	t.Run("typed errors report their kind", func(t *testing.T) {
		assert.Equal(t, KindNotFound, KindOf(ErrAccountNotFound))
		assert.Equal(t, KindPrecondition, KindOf(ErrInsufficientFunds))
		assert.Equal(t, KindValidation, KindOf(ErrInvalidAmount))
		assert.Equal(t, KindCompensation, KindOf(compensationError("rollback failed", ErrAccountInactive)))
	})

	t.Run("wrapped typed errors still classify", func(t *testing.T) {
		err := fmt.Errorf("handling request: %w", ErrAccountNotFound)
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("raw store failures classify as storage", func(t *testing.T) {
		err := fmt.Errorf("%w: disk full", store.ErrUnavailable)
		assert.Equal(t, KindStorage, KindOf(err))
		assert.Equal(t, KindStorage, KindOf(storageError(err)))
	})

	t.Run("unclassified errors report zero", func(t *testing.T) {
		assert.Equal(t, ErrorKind(0), KindOf(errors.New("something else")))
		assert.Equal(t, ErrorKind(0), KindOf(nil))
	})
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := storageError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
