package store

import (
	"context"
	"fmt"

	"github.com/jobmatch/credits/internal/models"
)

// AppendParams describes a ledger entry to append.
type AppendParams struct {
	AccountID         string
	Kind              models.TransactionKind
	Delta             int64
	Description       string
	ExternalPaymentID string // only set for provider CHARGE entries
	IntentID          string
}

func (p AppendParams) validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidEntry)
	}
	switch p.Kind {
	case models.KindCharge:
		if p.Delta <= 0 {
			return fmt.Errorf("%w: CHARGE delta must be positive, got %d", ErrInvalidEntry, p.Delta)
		}
	case models.KindDeduct:
		if p.Delta >= 0 {
			return fmt.Errorf("%w: DEDUCT delta must be negative, got %d", ErrInvalidEntry, p.Delta)
		}
		if p.ExternalPaymentID != "" || p.IntentID != "" {
			return fmt.Errorf("%w: DEDUCT cannot carry payment references", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, p.Kind)
	}
	return nil
}

// BalanceReader reads the authoritative balance of an account.
type BalanceReader interface {
	// GetBalance returns a zero balance for an account with no entries.
	GetBalance(ctx context.Context, accountID string) (*models.Balance, error)
}

// LedgerWriter is the only mutator of balances.
type LedgerWriter interface {
	// AppendTransaction atomically applies a delta and records the entry.
	// Concurrent appends on one account are serialized.
	AppendTransaction(ctx context.Context, params AppendParams) (*models.Transaction, error)
}

// TransactionReader reads ledger entries.
type TransactionReader interface {
	FindTransactionByExternalID(ctx context.Context, externalPaymentID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID string, query models.HistoryQuery) (*models.TransactionPage, error)
}

// LedgerStore is the durable record of balances and transactions.
type LedgerStore interface {
	BalanceReader
	LedgerWriter
	TransactionReader
}
