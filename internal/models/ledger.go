package models

import (
	"time"
)

// TransactionKind is the direction of a ledger entry.
type TransactionKind string

const (
	KindCharge TransactionKind = "CHARGE"
	KindDeduct TransactionKind = "DEDUCT"
)

func (k TransactionKind) Valid() bool {
	return k == KindCharge || k == KindDeduct
}

// Balance is the spendable credit of an account. Amount always equals the
// sum of the account's transaction deltas.
type Balance struct {
	AccountID string    `json:"accountId" db:"account_id"`
	Amount    int64     `json:"amount" db:"amount"`
	Version   int       `json:"-" db:"version"` // for optimistic locking
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	TransactionID     string          `json:"transactionId" db:"transaction_id"`
	AccountID         string          `json:"accountId" db:"account_id"`
	Kind              TransactionKind `json:"kind" db:"kind"`
	Delta             int64           `json:"delta" db:"delta"` // positive for CHARGE, negative for DEDUCT
	BalanceAfter      int64           `json:"balanceAfter" db:"balance_after"`
	Description       string          `json:"description" db:"description"`
	ExternalPaymentID string          `json:"externalPaymentId,omitempty" db:"external_payment_id"`
	IntentID          string          `json:"intentId,omitempty" db:"intent_id"` // checkout a CHARGE settled
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// HistoryQuery selects a page of an account's transactions.
type HistoryQuery struct {
	Page     int             `validate:"omitempty,min=1"`
	PageSize int             `validate:"omitempty,min=1,max=100"`
	Kind     TransactionKind `validate:"omitempty,oneof=CHARGE DEDUCT"`
}

// Normalize fills defaults and clamps the page size.
func (q HistoryQuery) Normalize() HistoryQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

func (q HistoryQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// TransactionPage is a newest-first slice of an account's ledger.
type TransactionPage struct {
	Items    []Transaction `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
}

// CachedBalance is a display-only copy of a Balance. It is never used to
// authorize a deduction.
type CachedBalance struct {
	AccountID string    `json:"accountId"`
	Amount    int64     `json:"amount"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// BalanceView is what callers get back from a balance read. Stale is set
// when the ledger was unreachable and the value came from the cache.
type BalanceView struct {
	Balance
	Stale     bool      `json:"stale"`
	FetchedAt time.Time `json:"fetchedAt"`
}
