package config

import (
	"testing"
	"time"

	"github.com/jobmatch/credits/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreditConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadCreditConfig()
	require.NoError(t, err)

	assert.Equal(t, "KRW", cfg.Currency)
	assert.Equal(t, 30*time.Minute, cfg.IntentTTL)
	assert.Zero(t, cfg.IntentRetention)
	assert.Equal(t, uint(5), cfg.SettleMaxTries)
	assert.Equal(t, int64(30), cfg.FeatureCosts[models.FeatureAIMatching])
	assert.Equal(t, int64(10), cfg.FeatureCosts[models.FeatureAIRecommendation])
	assert.Equal(t, int64(50), cfg.FeatureCosts[models.FeatureJobPosting])

	require.Len(t, cfg.Packages, 4)
	standard := cfg.Packages[1]
	assert.Equal(t, "pkg_300", standard.ID)
	assert.Equal(t, int64(305), standard.TotalCredits())
	assert.Equal(t, "30000", standard.Price.String())
}

func TestLoadCreditConfig_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("credits.currency", "usd")
	viper.Set("credits.feature_costs.ai_matching", 5)
	viper.Set("credits.intent_retention", "720h")
	viper.Set("credits.packages", []map[string]any{
		{"id": "small", "credits": 50, "price": "4.99"},
	})

	cfg, err := LoadCreditConfig()
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, int64(5), cfg.FeatureCosts[models.FeatureAIMatching])
	assert.Equal(t, 30*24*time.Hour, cfg.IntentRetention)
	require.Len(t, cfg.Packages, 1)
	assert.Equal(t, "small", cfg.Packages[0].Name)
	assert.Equal(t, "4.99", cfg.Packages[0].Price.String())
}

func TestLoadCreditConfig_Invalid(t *testing.T) {
	t.Run("bad price", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("credits.packages", []map[string]any{
			{"id": "broken", "credits": 50, "price": "free"},
		})

		_, err := LoadCreditConfig()
		assert.ErrorContains(t, err, "invalid price")
	})

	t.Run("duplicate package", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("credits.packages", []map[string]any{
			{"id": "a", "credits": 50, "price": "1"},
			{"id": "a", "credits": 60, "price": "2"},
		})

		_, err := LoadCreditConfig()
		assert.ErrorContains(t, err, "duplicate credit package")
	})

	t.Run("retention shorter than redelivery", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("credits.intent_retention", "1h")

		_, err := LoadCreditConfig()
		assert.ErrorContains(t, err, "credits.intent_retention")
	})

	t.Run("zero feature cost", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("credits.feature_costs.job_posting", 0)

		_, err := LoadCreditConfig()
		assert.ErrorContains(t, err, "job_posting")
	})

	t.Run("bad currency", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("credits.currency", "WON!")

		_, err := LoadCreditConfig()
		assert.Error(t, err)
	})
}
