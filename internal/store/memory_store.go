package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jobmatch/credits/internal/models"
)

// MemoryStore is an in-process ledger. Each account has its own mutex so
// appends on one account serialize without blocking other accounts.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memoryAccount

	extMu    sync.Mutex
	external map[string]models.Transaction

	now func() time.Time
}

type memoryAccount struct {
	mu      sync.Mutex
	balance models.Balance
	entries []models.Transaction // admission order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*memoryAccount),
		external: make(map[string]models.Transaction),
		now:      time.Now,
	}
}

var _ LedgerStore = (*MemoryStore)(nil)

func (s *MemoryStore) lookup(accountID string) (*memoryAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[accountID]
	return acc, ok
}

func (s *MemoryStore) account(accountID string) *memoryAccount {
	if acc, ok := s.lookup(accountID); ok {
		return acc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[accountID]; ok {
		return acc
	}
	acc := &memoryAccount{balance: models.Balance{AccountID: accountID, UpdatedAt: s.now()}}
	s.accounts[accountID] = acc
	return acc
}

func (s *MemoryStore) GetBalance(ctx context.Context, accountID string) (*models.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc, ok := s.lookup(accountID)
	if !ok {
		return &models.Balance{AccountID: accountID}, nil
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	balance := acc.balance
	return &balance, nil
}

func (s *MemoryStore) AppendTransaction(ctx context.Context, params AppendParams) (*models.Transaction, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc := s.account(params.AccountID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	newAmount := acc.balance.Amount + params.Delta
	if params.Kind == models.KindDeduct && newAmount < 0 {
		return nil, &InsufficientCreditError{
			AccountID: params.AccountID,
			Balance:   acc.balance.Amount,
			Requested: -params.Delta,
		}
	}
	if params.Delta > 0 && newAmount < acc.balance.Amount {
		return nil, fmt.Errorf("%w: balance overflow", ErrInvalidEntry)
	}

	now := s.now()
	entry := models.Transaction{
		TransactionID:     uuid.NewString(),
		AccountID:         params.AccountID,
		Kind:              params.Kind,
		Delta:             params.Delta,
		BalanceAfter:      newAmount,
		Description:       params.Description,
		ExternalPaymentID: params.ExternalPaymentID,
		IntentID:          params.IntentID,
		CreatedAt:         now,
	}

	if entry.ExternalPaymentID != "" {
		s.extMu.Lock()
		if _, exists := s.external[entry.ExternalPaymentID]; exists {
			s.extMu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateExternalPayment, entry.ExternalPaymentID)
		}
		s.external[entry.ExternalPaymentID] = entry
		s.extMu.Unlock()
	}

	acc.entries = append(acc.entries, entry)
	acc.balance.Amount = newAmount
	acc.balance.Version++
	acc.balance.UpdatedAt = now

	return &entry, nil
}

func (s *MemoryStore) FindTransactionByExternalID(ctx context.Context, externalPaymentID string) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.extMu.Lock()
	defer s.extMu.Unlock()

	entry, ok := s.external[externalPaymentID]
	if !ok || externalPaymentID == "" {
		return nil, ErrTransactionNotFound
	}
	return &entry, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, accountID string, query models.HistoryQuery) (*models.TransactionPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = query.Normalize()

	page := &models.TransactionPage{
		Items:    []models.Transaction{},
		Page:     query.Page,
		PageSize: query.PageSize,
	}

	acc, ok := s.lookup(accountID)
	if !ok {
		return page, nil
	}

	acc.mu.Lock()
	matched := make([]models.Transaction, 0, len(acc.entries))
	for i := len(acc.entries) - 1; i >= 0; i-- {
		if query.Kind == "" || acc.entries[i].Kind == query.Kind {
			matched = append(matched, acc.entries[i])
		}
	}
	acc.mu.Unlock()

	page.Total = len(matched)
	start := query.Offset()
	if start >= len(matched) {
		return page, nil
	}
	end := min(start+query.PageSize, len(matched))
	page.Items = append(page.Items, matched[start:end]...)
	return page, nil
}
