package store

import (
	"errors"
	"fmt"
)

// ErrInsufficientCredit is returned when a deduction would drive a balance
// below zero. Callers are expected to branch on it.
var ErrInsufficientCredit = errors.New("insufficient credit")

// ErrStorageUnavailable marks a transient storage fault. The operation may be
// retried; it never means the balance is zero.
var ErrStorageUnavailable = errors.New("ledger storage unavailable")

// ErrTransactionNotFound is returned when no transaction matches a lookup.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrDuplicateExternalPayment is returned when a CHARGE reuses an external
// payment id that is already in the ledger.
var ErrDuplicateExternalPayment = errors.New("external payment already settled")

// ErrInvalidEntry is returned for a transaction whose kind and delta disagree.
var ErrInvalidEntry = errors.New("invalid ledger entry")

// InsufficientCreditError carries the balance a deduction was rejected
// against.
type InsufficientCreditError struct {
	AccountID string
	Balance   int64
	Requested int64
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit for account %s: balance %d, requested %d", e.AccountID, e.Balance, e.Requested)
}

func (e *InsufficientCreditError) Is(target error) bool {
	return target == ErrInsufficientCredit
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// IsRetryable reports whether err is a transient storage fault.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
