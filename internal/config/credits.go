package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jobmatch/credits/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// minIntentRetention covers provider webhook redelivery schedules.
const minIntentRetention = 7 * 24 * time.Hour

// CreditConfig holds the credit catalog and settlement settings.
type CreditConfig struct {
	Currency     string
	Provider     string
	Packages     []models.CreditPackage
	FeatureCosts map[models.Feature]int64
	IntentTTL    time.Duration // checkout window shown to the payer
	// IntentRetention bounds how long an unsettled intent is kept. Zero
	// keeps it until settled.
	IntentRetention time.Duration
	CacheTTL        time.Duration
	WebhookSecret   string
	SettleMaxTries  uint
}

type packageConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Credits int64  `mapstructure:"credits"`
	Bonus   int64  `mapstructure:"bonus"`
	Price   string `mapstructure:"price"`
}

var defaultPackages = []map[string]any{
	{"id": "pkg_100", "name": "Starter", "credits": 100, "bonus": 0, "price": "10000"},
	{"id": "pkg_300", "name": "Standard", "credits": 300, "bonus": 5, "price": "30000"},
	{"id": "pkg_500", "name": "Plus", "credits": 500, "bonus": 25, "price": "50000"},
	{"id": "pkg_1000", "name": "Pro", "credits": 1000, "bonus": 100, "price": "100000"},
}

// SetCreditDefaults registers the defaults for every credits.* and payment.*
// key.
func SetCreditDefaults() {
	viper.SetDefault("credits.currency", "KRW")
	viper.SetDefault("credits.provider", "portone")
	viper.SetDefault("credits.packages", defaultPackages)
	viper.SetDefault("credits.feature_costs.ai_matching", 30)
	viper.SetDefault("credits.feature_costs.ai_recommendation", 10)
	viper.SetDefault("credits.feature_costs.job_posting", 50)
	viper.SetDefault("credits.intent_ttl", 30*time.Minute)
	viper.SetDefault("credits.intent_retention", 0)
	viper.SetDefault("credits.cache_ttl", 10*time.Minute)
	viper.SetDefault("payment.webhook_secret", "")
	viper.SetDefault("payment.settle_max_tries", 5)
}

// LoadCreditConfig reads and validates the credit configuration.
func LoadCreditConfig() (*CreditConfig, error) {
	SetCreditDefaults()

	cfg := &CreditConfig{
		Currency:        strings.ToUpper(viper.GetString("credits.currency")),
		Provider:        viper.GetString("credits.provider"),
		IntentTTL:       viper.GetDuration("credits.intent_ttl"),
		IntentRetention: viper.GetDuration("credits.intent_retention"),
		CacheTTL:        viper.GetDuration("credits.cache_ttl"),
		WebhookSecret:   viper.GetString("payment.webhook_secret"),
		SettleMaxTries:  viper.GetUint("payment.settle_max_tries"),
		FeatureCosts: map[models.Feature]int64{
			models.FeatureAIMatching:       viper.GetInt64("credits.feature_costs.ai_matching"),
			models.FeatureAIRecommendation: viper.GetInt64("credits.feature_costs.ai_recommendation"),
			models.FeatureJobPosting:       viper.GetInt64("credits.feature_costs.job_posting"),
		},
	}

	if len(cfg.Currency) != 3 {
		return nil, fmt.Errorf("credits.currency must be an ISO 4217 code, got %q", cfg.Currency)
	}
	if cfg.IntentTTL <= 0 {
		return nil, errors.New("credits.intent_ttl must be positive")
	}
	if cfg.IntentRetention < 0 || (cfg.IntentRetention > 0 && cfg.IntentRetention < minIntentRetention) {
		return nil, fmt.Errorf("credits.intent_retention must be 0 or at least %s, got %s", minIntentRetention, cfg.IntentRetention)
	}
	if cfg.SettleMaxTries == 0 {
		cfg.SettleMaxTries = 1
	}

	for feature, cost := range cfg.FeatureCosts {
		if cost <= 0 {
			return nil, fmt.Errorf("credits.feature_costs.%s must be positive, got %d", feature, cost)
		}
	}

	var raw []packageConfig
	if err := viper.UnmarshalKey("credits.packages", &raw); err != nil {
		return nil, fmt.Errorf("error reading credits.packages: %w", err)
	}
	packages, err := parsePackages(raw)
	if err != nil {
		return nil, err
	}
	cfg.Packages = packages

	return cfg, nil
}

func parsePackages(raw []packageConfig) ([]models.CreditPackage, error) {
	if len(raw) == 0 {
		return nil, errors.New("credits.packages must list at least one package")
	}

	seen := make(map[string]bool, len(raw))
	packages := make([]models.CreditPackage, 0, len(raw))
	for _, p := range raw {
		if p.ID == "" {
			return nil, errors.New("credit package without id")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate credit package %s", p.ID)
		}
		seen[p.ID] = true

		if p.Credits <= 0 || p.Bonus < 0 {
			return nil, fmt.Errorf("credit package %s: credits must be positive and bonus non-negative", p.ID)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("credit package %s: invalid price %q: %w", p.ID, p.Price, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("credit package %s: price must be positive", p.ID)
		}

		name := p.Name
		if name == "" {
			name = p.ID
		}
		packages = append(packages, models.CreditPackage{
			ID:      p.ID,
			Name:    name,
			Credits: p.Credits,
			Bonus:   p.Bonus,
			Price:   price,
		})
	}
	return packages, nil
}
