package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/google/uuid"
	"github.com/jobmatch/credits/internal/audit"
	"github.com/jobmatch/credits/internal/cache"
	"github.com/jobmatch/credits/internal/config"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/store"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

type IntentResponse struct {
	Intent *models.PaymentIntent `json:"intent"`
	// CheckoutQR is a base64 PNG that hands the checkout to a phone.
	CheckoutQR string `json:"checkoutQr"`
}

type PaymentIntentService struct {
	intents  cache.IntentStore
	packages []models.CreditPackage
	byID     map[string]models.CreditPackage
	currency string
	provider string
	ttl      time.Duration
	logger   *zap.Logger
	audit    *audit.Logger
	now      func() time.Time
}

func NewPaymentIntentService(intents cache.IntentStore, cfg *config.CreditConfig, logger *zap.Logger, auditLogger *audit.Logger) *PaymentIntentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}

	byID := make(map[string]models.CreditPackage, len(cfg.Packages))
	for _, p := range cfg.Packages {
		byID[p.ID] = p
	}

	return &PaymentIntentService{
		intents:  intents,
		packages: cfg.Packages,
		byID:     byID,
		currency: cfg.Currency,
		provider: cfg.Provider,
		ttl:      cfg.IntentTTL,
		logger:   logger,
		audit:    auditLogger,
		now:      time.Now,
	}
}

func (s *PaymentIntentService) ListPackages() []models.CreditPackage {
	packages := make([]models.CreditPackage, len(s.packages))
	copy(packages, s.packages)
	return packages
}

func (s *PaymentIntentService) Currency() string {
	return s.currency
}

func (s *PaymentIntentService) Package(packageID string) (models.CreditPackage, error) {
	p, ok := s.byID[packageID]
	if !ok {
		return models.CreditPackage{}, fmt.Errorf("%w: %s", ErrUnknownPackage, packageID)
	}
	return p, nil
}

func (s *PaymentIntentService) CreateIntent(ctx context.Context, accountID, packageID string) (*IntentResponse, error) {
	p, err := s.Package(packageID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	intent := &models.PaymentIntent{
		IntentID:         uuid.NewString(),
		AccountID:        accountID,
		PackageID:        p.ID,
		RequestedCredits: p.TotalCredits(),
		PriceAmount:      p.Price,
		Currency:         s.currency,
		Provider:         s.provider,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}

	if err := s.intents.Save(ctx, intent); err != nil {
		return nil, intentStoreFault(err)
	}

	qrImage, err := s.checkoutQR(intent)
	if err != nil {
		s.logger.Warn("Failed to render checkout QR", zap.String("intent_id", intent.IntentID), zap.Error(err))
	}

	s.audit.Log(audit.Event{
		EventType: audit.EventIntentCreated,
		AccountID: accountID,
		Amount:    intent.RequestedCredits,
		Status:    "SUCCESS",
		Details: map[string]string{
			"intent_id":  intent.IntentID,
			"package_id": p.ID,
			"price":      p.Price.String() + " " + s.currency,
		},
	})

	return &IntentResponse{Intent: intent, CheckoutQR: qrImage}, nil
}

func (s *PaymentIntentService) checkoutQR(intent *models.PaymentIntent) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"intentId": intent.IntentID,
		"amount":   intent.PriceAmount.String(),
		"currency": intent.Currency,
		"provider": intent.Provider,
	})
	if err != nil {
		return "", err
	}

	qr, err := qrcode.New(base64.URLEncoding.EncodeToString(payload), qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *PaymentIntentService) GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	intent, err := s.intents.Get(ctx, intentID)
	if err != nil {
		return nil, intentStoreFault(err)
	}
	return intent, nil
}

func (s *PaymentIntentService) ClaimIntent(ctx context.Context, intentID, paymentID string) error {
	if err := s.intents.Claim(ctx, intentID, paymentID); err != nil {
		return intentStoreFault(err)
	}
	return nil
}

func (s *PaymentIntentService) DeleteIntent(ctx context.Context, intentID string) error {
	if err := s.intents.Delete(ctx, intentID); err != nil {
		return intentStoreFault(err)
	}
	return nil
}

// intentStoreFault maps connection errors of the intent store onto the
// retryable storage error; lookup outcomes pass through.
func intentStoreFault(err error) error {
	if errors.Is(err, cache.ErrIntentNotFound) || errors.Is(err, cache.ErrIntentClaimed) {
		return err
	}
	return fmt.Errorf("%w: payment intents: %w", store.ErrStorageUnavailable, err)
}
