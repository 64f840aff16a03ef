package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jobmatch/credits/internal/audit"
	"github.com/jobmatch/credits/internal/cache"
	"github.com/jobmatch/credits/internal/metrics"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/store"
	"go.uber.org/zap"
)

type ChargeResult struct {
	Balance     *models.Balance     `json:"balance"`
	Transaction *models.Transaction `json:"transaction"`
	Duplicate   bool                `json:"duplicate"`
}

// CreditService is the entry point for every balance read and mutation.
// Deductions are always authorized against the ledger; the balance cache is
// only consulted for display when the ledger cannot be reached.
type CreditService struct {
	ledger     store.LedgerStore
	cache      cache.BalanceCache
	intents    *PaymentIntentService
	settlement *SettlementService
	logger     *zap.Logger
	audit      *audit.Logger
	metrics    *metrics.Collector
	now        func() time.Time
}

func NewCreditService(
	ledger store.LedgerStore,
	balanceCache cache.BalanceCache,
	intents *PaymentIntentService,
	logger *zap.Logger,
	auditLogger *audit.Logger,
	collector *metrics.Collector,
) *CreditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &CreditService{
		ledger:     ledger,
		cache:      balanceCache,
		intents:    intents,
		settlement: NewSettlementService(ledger, logger, auditLogger, collector),
		logger:     logger,
		audit:      auditLogger,
		metrics:    collector,
		now:        time.Now,
	}
}

// GetBalance reads the ledger and mirrors the result into the cache. When the
// ledger is unavailable the last cached value is returned with Stale set.
func (s *CreditService) GetBalance(ctx context.Context, accountID string) (*models.BalanceView, error) {
	start := time.Now()
	balance, err := s.ledger.GetBalance(ctx, accountID)
	s.metrics.ObserveLedger("get_balance", start)

	if err == nil {
		fetchedAt := s.now()
		s.remember(ctx, accountID, balance.Amount, fetchedAt)
		return &models.BalanceView{Balance: *balance, FetchedAt: fetchedAt}, nil
	}

	if !store.IsRetryable(err) {
		return nil, err
	}

	cached, cacheErr := s.cache.Get(ctx, accountID)
	if cacheErr != nil {
		if !errors.Is(cacheErr, cache.ErrCacheMiss) {
			s.logger.Warn("Balance cache unavailable", zap.String("account_id", accountID), zap.Error(cacheErr))
		}
		return nil, err
	}

	s.metrics.RecordCacheFallback()
	s.logger.Warn("Ledger unavailable, serving cached balance",
		zap.String("account_id", accountID),
		zap.Time("fetched_at", cached.FetchedAt),
		zap.Error(err),
	)

	return &models.BalanceView{
		Balance: models.Balance{
			AccountID: accountID,
			Amount:    cached.Amount,
			UpdatedAt: cached.FetchedAt,
		},
		Stale:     true,
		FetchedAt: cached.FetchedAt,
	}, nil
}

// Charge settles a client-forwarded payment confirmation for accountID.
func (s *CreditService) Charge(ctx context.Context, accountID string, confirmation models.PaymentConfirmation) (*ChargeResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidConfirmation)
	}
	return s.charge(ctx, accountID, confirmation)
}

// ChargeFromWebhook settles a provider notification. The account is the one
// the intent was created for.
func (s *CreditService) ChargeFromWebhook(ctx context.Context, confirmation models.PaymentConfirmation) (*ChargeResult, error) {
	return s.charge(ctx, "", confirmation)
}

func (s *CreditService) charge(ctx context.Context, accountID string, confirmation models.PaymentConfirmation) (*ChargeResult, error) {
	externalID := confirmation.ExternalPaymentID()
	if externalID == "" || confirmation.IntentID == "" {
		return nil, fmt.Errorf("%w: intent id and payment id are required", ErrInvalidConfirmation)
	}

	// Intents stay readable after their checkout window closes, so a late
	// confirmation of money already taken still settles.
	intent, err := s.intents.GetIntent(ctx, confirmation.IntentID)
	if errors.Is(err, ErrIntentNotFound) {
		// settled intents are deleted, so this may be a replay
		return s.replay(ctx, accountID, confirmation.IntentID, externalID)
	}
	if err != nil {
		return nil, err
	}

	if accountID != "" && intent.AccountID != accountID {
		return nil, &PaymentMismatchError{Field: "accountId", Expected: intent.AccountID, Actual: accountID}
	}

	req := SettleRequest{
		AccountID:          intent.AccountID,
		ExternalPaymentID:  externalID,
		IntentID:           intent.IntentID,
		ExpectedAmountPaid: intent.PriceAmount,
		AmountPaid:         confirmation.AmountPaid,
		ExpectedCurrency:   intent.Currency,
		Currency:           confirmation.Currency,
		CreditsToGrant:     intent.RequestedCredits,
		Description:        chargeDescription(intent),
	}

	// A payment id that is already in the ledger must have settled this
	// intent before the intent is claimed or deleted.
	settled, err := s.settlement.findSettled(ctx, req)
	if err != nil {
		return nil, err
	}
	if settled != nil {
		s.forgetIntent(ctx, intent.IntentID)
		return s.chargeResult(ctx, settled)
	}

	if err := s.intents.ClaimIntent(ctx, intent.IntentID, externalID); err != nil {
		return nil, err
	}

	result, err := s.settlement.Settle(ctx, req)
	if err != nil {
		return nil, err
	}

	s.forgetIntent(ctx, intent.IntentID)
	return s.chargeResult(ctx, result)
}

func (s *CreditService) forgetIntent(ctx context.Context, intentID string) {
	if err := s.intents.DeleteIntent(ctx, intentID); err != nil {
		s.logger.Warn("Failed to delete settled intent", zap.String("intent_id", intentID), zap.Error(err))
	}
}

func (s *CreditService) replay(ctx context.Context, accountID, intentID, externalID string) (*ChargeResult, error) {
	existing, err := s.ledger.FindTransactionByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrTransactionNotFound) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}

	if mismatch := settledElsewhere(existing, accountID, intentID); mismatch != nil {
		s.metrics.RecordRejection("charge", "payment_mismatch")
		return nil, mismatch
	}

	s.metrics.RecordDuplicateSettlement()
	return s.chargeResult(ctx, &SettlementResult{Transaction: existing, Duplicate: true})
}

func (s *CreditService) chargeResult(ctx context.Context, result *SettlementResult) (*ChargeResult, error) {
	entry := result.Transaction

	var balance *models.Balance
	if result.Duplicate {
		current, err := s.ledger.GetBalance(ctx, entry.AccountID)
		if err != nil {
			return nil, err
		}
		balance = current
	} else {
		balance = &models.Balance{
			AccountID: entry.AccountID,
			Amount:    entry.BalanceAfter,
			UpdatedAt: entry.CreatedAt,
		}
	}

	s.remember(ctx, balance.AccountID, balance.Amount, s.now())
	return &ChargeResult{Balance: balance, Transaction: entry, Duplicate: result.Duplicate}, nil
}

func chargeDescription(intent *models.PaymentIntent) string {
	return fmt.Sprintf("Credit top-up %s (%d credits, %s %s)",
		intent.PackageID, intent.RequestedCredits, intent.PriceAmount.String(), intent.Currency)
}

// Deduct consumes amount credits. It fails with store.ErrInsufficientCredit
// when the balance does not cover it and never reads the cache.
func (s *CreditService) Deduct(ctx context.Context, accountID string, amount int64, description string) (*models.Balance, error) {
	entry, err := s.deduct(ctx, accountID, amount, description, "")
	if err != nil {
		return nil, err
	}
	return &models.Balance{
		AccountID: entry.AccountID,
		Amount:    entry.BalanceAfter,
		UpdatedAt: entry.CreatedAt,
	}, nil
}

func (s *CreditService) deduct(ctx context.Context, accountID string, amount int64, description, feature string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	start := time.Now()
	entry, err := s.ledger.AppendTransaction(ctx, store.AppendParams{
		AccountID:   accountID,
		Kind:        models.KindDeduct,
		Delta:       -amount,
		Description: description,
	})
	s.metrics.ObserveLedger("deduct", start)

	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, store.ErrInsufficientCredit):
			reason = "insufficient_credit"
		case store.IsRetryable(err):
			reason = "storage_unavailable"
		}
		s.metrics.RecordRejection("deduct", reason)
		s.audit.LogError(audit.EventDeductRejected, accountID, amount, err)
		return nil, err
	}

	s.metrics.RecordDeduct(feature, amount)
	s.audit.LogDeduct(entry.TransactionID, accountID, description, amount)
	s.remember(ctx, accountID, entry.BalanceAfter, s.now())

	return entry, nil
}

func (s *CreditService) ListHistory(ctx context.Context, accountID string, query models.HistoryQuery) (*models.TransactionPage, error) {
	if query.Kind != "" && !query.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", store.ErrInvalidEntry, query.Kind)
	}
	return s.ledger.ListTransactions(ctx, accountID, query)
}

func (s *CreditService) remember(ctx context.Context, accountID string, amount int64, fetchedAt time.Time) {
	err := s.cache.Set(ctx, models.CachedBalance{
		AccountID: accountID,
		Amount:    amount,
		FetchedAt: fetchedAt,
	})
	if err == nil {
		return
	}
	s.logger.Warn("Failed to cache balance", zap.String("account_id", accountID), zap.Error(err))

	// the old entry would outlive the change it missed
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn("Failed to invalidate cached balance", zap.String("account_id", accountID), zap.Error(err))
	}
}
