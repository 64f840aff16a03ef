package services

import (
	"context"

	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) GetBalance(ctx context.Context, accountID string) (*models.Balance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balance), args.Error(1)
}

func (m *MockLedgerStore) AppendTransaction(ctx context.Context, params store.AppendParams) (*models.Transaction, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedgerStore) FindTransactionByExternalID(ctx context.Context, externalPaymentID string) (*models.Transaction, error) {
	args := m.Called(ctx, externalPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedgerStore) ListTransactions(ctx context.Context, accountID string, query models.HistoryQuery) (*models.TransactionPage, error) {
	args := m.Called(ctx, accountID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionPage), args.Error(1)
}

var _ store.LedgerStore = (*MockLedgerStore)(nil)

// flakyStore fails the next n appends with a storage fault and then
// delegates to the wrapped store.
type flakyStore struct {
	store.LedgerStore
	failures int
}

func (f *flakyStore) AppendTransaction(ctx context.Context, params store.AppendParams) (*models.Transaction, error) {
	if f.failures > 0 {
		f.failures--
		return nil, store.ErrStorageUnavailable
	}
	return f.LedgerStore.AppendTransaction(ctx, params)
}

type MockBalanceCache struct {
	mock.Mock
}

func (m *MockBalanceCache) Get(ctx context.Context, accountID string) (*models.CachedBalance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CachedBalance), args.Error(1)
}

func (m *MockBalanceCache) Set(ctx context.Context, balance models.CachedBalance) error {
	args := m.Called(ctx, balance)
	return args.Error(0)
}

func (m *MockBalanceCache) Invalidate(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}
