package services

import (
	"errors"
	"fmt"

	"github.com/jobmatch/credits/internal/cache"
)

var (
	ErrPaymentMismatch     = errors.New("payment does not match the checkout")
	ErrIntentNotFound      = cache.ErrIntentNotFound
	ErrIntentClaimed       = cache.ErrIntentClaimed
	ErrUnknownPackage      = errors.New("unknown credit package")
	ErrUnknownFeature      = errors.New("unknown feature")
	ErrInvalidAmount       = errors.New("amount must be a positive number of credits")
	ErrInvalidConfirmation = errors.New("invalid payment confirmation")
)

// PaymentMismatchError is returned when a provider confirmation disagrees
// with what was expected. No transaction is created.
type PaymentMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("payment mismatch on %s: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

func (e *PaymentMismatchError) Is(target error) bool {
	return target == ErrPaymentMismatch
}

// GateError means a gated action was refused because its credits could not
// be deducted. The action did not run.
type GateError struct {
	AccountID string
	Cost      int64
	Err       error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("usage gate refused %d credits for %s: %v", e.Cost, e.AccountID, e.Err)
}

func (e *GateError) Unwrap() error {
	return e.Err
}

// ActionError means the credits were deducted but the gated action failed.
type ActionError struct {
	TransactionID string
	Err           error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action failed after deduction %s: %v", e.TransactionID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
