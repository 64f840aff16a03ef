package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jobmatch/credits/internal/audit"
	"github.com/jobmatch/credits/internal/metrics"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettleRequest is a provider-confirmed payment to turn into a CHARGE.
type SettleRequest struct {
	AccountID          string
	ExternalPaymentID  string
	IntentID           string // empty for settlements without a checkout
	ExpectedAmountPaid decimal.Decimal
	AmountPaid         decimal.Decimal
	ExpectedCurrency   string
	Currency           string // empty when the provider did not report one
	CreditsToGrant     int64
	Description        string
}

type SettlementResult struct {
	Transaction *models.Transaction
	// Duplicate is set when the payment had already been settled and the
	// existing transaction was returned instead of a new one.
	Duplicate bool
}

// SettlementService converts confirmed payments into ledger charges, at most
// once per external payment id.
type SettlementService struct {
	ledger  store.LedgerStore
	logger  *zap.Logger
	audit   *audit.Logger
	metrics *metrics.Collector
}

func NewSettlementService(ledger store.LedgerStore, logger *zap.Logger, auditLogger *audit.Logger, collector *metrics.Collector) *SettlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &SettlementService{
		ledger:  ledger,
		logger:  logger,
		audit:   auditLogger,
		metrics: collector,
	}
}

// Settle is safe to call again after any failure: a storage fault during the
// append never leaves a partial charge, and a replay finds the first one.
func (s *SettlementService) Settle(ctx context.Context, req SettleRequest) (*SettlementResult, error) {
	if req.ExternalPaymentID == "" {
		return nil, fmt.Errorf("%w: external payment id is required", ErrInvalidConfirmation)
	}
	if req.CreditsToGrant <= 0 {
		return nil, ErrInvalidAmount
	}

	existing, err := s.findSettled(ctx, req)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := verifyPayment(req); err != nil {
		s.metrics.RecordRejection("charge", "payment_mismatch")
		s.audit.LogError(audit.EventPaymentMismatch, req.AccountID, req.CreditsToGrant, err)
		return nil, err
	}

	start := time.Now()
	entry, err := s.ledger.AppendTransaction(ctx, store.AppendParams{
		AccountID:         req.AccountID,
		Kind:              models.KindCharge,
		Delta:             req.CreditsToGrant,
		Description:       req.Description,
		ExternalPaymentID: req.ExternalPaymentID,
		IntentID:          req.IntentID,
	})
	s.metrics.ObserveLedger("charge", start)

	if errors.Is(err, store.ErrDuplicateExternalPayment) {
		// lost a race with a concurrent delivery of the same payment
		existing, findErr := s.findSettled(ctx, req)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
		return nil, err
	}
	if err != nil {
		if store.IsRetryable(err) {
			s.metrics.RecordRejection("charge", "storage_unavailable")
		}
		return nil, err
	}

	s.metrics.RecordCharge(entry.Delta)
	s.audit.LogCharge(entry.TransactionID, entry.AccountID, entry.ExternalPaymentID, entry.Delta)
	s.logger.Info("Payment settled",
		zap.String("account_id", entry.AccountID),
		zap.String("external_payment_id", entry.ExternalPaymentID),
		zap.Int64("credits", entry.Delta),
		zap.Int64("balance_after", entry.BalanceAfter),
	)

	return &SettlementResult{Transaction: entry}, nil
}

// findSettled returns the existing settlement of req's payment, or nil when
// there is none.
func (s *SettlementService) findSettled(ctx context.Context, req SettleRequest) (*SettlementResult, error) {
	existing, err := s.ledger.FindTransactionByExternalID(ctx, req.ExternalPaymentID)
	if errors.Is(err, store.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if mismatch := settledElsewhere(existing, req.AccountID, req.IntentID); mismatch != nil {
		s.metrics.RecordRejection("charge", "payment_mismatch")
		s.audit.LogError(audit.EventPaymentMismatch, req.AccountID, req.CreditsToGrant, mismatch)
		return nil, mismatch
	}

	s.metrics.RecordDuplicateSettlement()
	s.audit.Log(audit.Event{
		EventType:     audit.EventDuplicateCharge,
		TransactionID: existing.TransactionID,
		AccountID:     existing.AccountID,
		Amount:        existing.Delta,
		Status:        "SUCCESS",
		Details:       map[string]string{"external_payment_id": req.ExternalPaymentID},
	})
	return &SettlementResult{Transaction: existing, Duplicate: true}, nil
}

// settledElsewhere reports a payment that was already settled for another
// account or another checkout. Charges written without an intent id match
// any intent.
func settledElsewhere(existing *models.Transaction, accountID, intentID string) *PaymentMismatchError {
	if accountID != "" && existing.AccountID != accountID {
		return &PaymentMismatchError{Field: "accountId", Expected: accountID, Actual: existing.AccountID}
	}
	if intentID != "" && existing.IntentID != "" && existing.IntentID != intentID {
		return &PaymentMismatchError{Field: "intentId", Expected: intentID, Actual: existing.IntentID}
	}
	return nil
}

func verifyPayment(req SettleRequest) error {
	if !req.AmountPaid.Equal(req.ExpectedAmountPaid) {
		return &PaymentMismatchError{
			Field:    "amountPaid",
			Expected: req.ExpectedAmountPaid.String(),
			Actual:   req.AmountPaid.String(),
		}
	}
	if req.Currency != "" && !strings.EqualFold(req.Currency, req.ExpectedCurrency) {
		return &PaymentMismatchError{
			Field:    "currency",
			Expected: req.ExpectedCurrency,
			Actual:   req.Currency,
		}
	}
	return nil
}
