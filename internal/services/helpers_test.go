package services

import (
	"testing"
	"time"

	"github.com/jobmatch/credits/internal/cache"
	"github.com/jobmatch/credits/internal/config"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/store"
	"github.com/shopspring/decimal"
)

func testCreditConfig() *config.CreditConfig {
	return &config.CreditConfig{
		Currency: "KRW",
		Provider: "portone",
		Packages: []models.CreditPackage{
			{ID: "pkg_100", Name: "Starter", Credits: 100, Price: decimal.RequireFromString("10000")},
			{ID: "pkg_300", Name: "Standard", Credits: 300, Bonus: 5, Price: decimal.RequireFromString("30000")},
		},
		FeatureCosts: map[models.Feature]int64{
			models.FeatureAIMatching:       30,
			models.FeatureAIRecommendation: 10,
			models.FeatureJobPosting:       50,
		},
		IntentTTL:      30 * time.Minute,
		CacheTTL:       time.Hour,
		SettleMaxTries: 3,
	}
}

type testEnv struct {
	credits *CreditService
	intents *PaymentIntentService
	gate    *UsageGate
	cache   *cache.MemoryBalanceCache
}

func newTestEnv(t *testing.T, ledger store.LedgerStore) *testEnv {
	t.Helper()
	cfg := testCreditConfig()
	balanceCache := cache.NewMemoryBalanceCache(cfg.CacheTTL)
	intents := NewPaymentIntentService(cache.NewMemoryIntentStore(0), cfg, nil, nil)
	credits := NewCreditService(ledger, balanceCache, intents, nil, nil, nil)
	return &testEnv{
		credits: credits,
		intents: intents,
		gate:    NewUsageGate(credits, cfg.FeatureCosts, nil, nil),
		cache:   balanceCache,
	}
}

func confirmation(intentID, paymentID, amount string) models.PaymentConfirmation {
	return models.PaymentConfirmation{
		IntentID:   intentID,
		PaymentID:  paymentID,
		AmountPaid: decimal.RequireFromString(amount),
		Currency:   "KRW",
	}
}
