package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jobmatch/credits/internal/audit"
	"github.com/jobmatch/credits/internal/cache"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func seededEnv(t *testing.T, amount int64) (*testEnv, *store.MemoryStore) {
	t.Helper()
	ledger := store.NewMemoryStore()
	if amount > 0 {
		_, err := ledger.AppendTransaction(context.Background(), store.AppendParams{
			AccountID: "usr_1",
			Kind:      models.KindCharge,
			Delta:     amount,
		})
		require.NoError(t, err)
	}
	return newTestEnv(t, ledger), ledger
}

func TestGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("runs the action after deducting", func(t *testing.T) {
		env, ledger := seededEnv(t, 305)

		result, err := GuardFeature(ctx, env.gate, "usr_1", models.FeatureAIMatching, func(ctx context.Context) (string, error) {
			return "3 matches", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "3 matches", result)

		balance, _ := ledger.GetBalance(ctx, "usr_1")
		assert.Equal(t, int64(275), balance.Amount)

		page, _ := ledger.ListTransactions(ctx, "usr_1", models.HistoryQuery{Kind: models.KindDeduct})
		require.Len(t, page.Items, 1)
		assert.Equal(t, "AI matching", page.Items[0].Description)
	})

	t.Run("insufficient credit never runs the action", func(t *testing.T) {
		env, ledger := seededEnv(t, 20)
		called := false

		_, err := Guard(ctx, env.gate, "usr_1", 30, "AI matching", func(ctx context.Context) (int, error) {
			called = true
			return 1, nil
		})
		require.Error(t, err)
		assert.False(t, called)
		assert.ErrorIs(t, err, store.ErrInsufficientCredit)

		var gateErr *GateError
		require.True(t, errors.As(err, &gateErr))
		assert.Equal(t, int64(30), gateErr.Cost)

		balance, _ := ledger.GetBalance(ctx, "usr_1")
		assert.Equal(t, int64(20), balance.Amount)
	})

	t.Run("storage fault fails closed", func(t *testing.T) {
		ledger := new(MockLedgerStore)
		env := newTestEnv(t, ledger)
		ledger.On("AppendTransaction", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: lock balance: i/o timeout", store.ErrStorageUnavailable))
		called := false

		_, err := GuardFeature(ctx, env.gate, "usr_1", models.FeatureJobPosting, func(ctx context.Context) (struct{}, error) {
			called = true
			return struct{}{}, nil
		})
		assert.False(t, called)
		assert.ErrorIs(t, err, store.ErrStorageUnavailable)

		var gateErr *GateError
		assert.True(t, errors.As(err, &gateErr))
	})

	t.Run("action failure keeps the deduction and is recorded", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		logger := zap.New(core)

		ledger := store.NewMemoryStore()
		_, err := ledger.AppendTransaction(ctx, store.AppendParams{AccountID: "usr_1", Kind: models.KindCharge, Delta: 100})
		require.NoError(t, err)

		cfg := testCreditConfig()
		auditLogger := audit.NewLogger(logger)
		intents := NewPaymentIntentService(cache.NewMemoryIntentStore(0), cfg, logger, auditLogger)
		credits := NewCreditService(ledger, cache.NewMemoryBalanceCache(0), intents, logger, auditLogger, nil)
		gate := NewUsageGate(credits, cfg.FeatureCosts, auditLogger, logger)

		modelErr := errors.New("recommendation model timed out")
		_, err = GuardFeature(ctx, gate, "usr_1", models.FeatureAIRecommendation, func(ctx context.Context) ([]string, error) {
			return nil, modelErr
		})
		require.ErrorIs(t, err, modelErr)

		var actionErr *ActionError
		require.True(t, errors.As(err, &actionErr))
		assert.NotEmpty(t, actionErr.TransactionID)

		balance, _ := ledger.GetBalance(ctx, "usr_1")
		assert.Equal(t, int64(90), balance.Amount)

		reconciliation := logs.FilterField(zap.String("event_type", audit.EventActionFailed))
		require.Equal(t, 1, reconciliation.Len())
		assert.Equal(t, actionErr.TransactionID, reconciliation.All()[0].ContextMap()["transaction_id"])
	})

	t.Run("unknown feature", func(t *testing.T) {
		ledger := new(MockLedgerStore)
		env := newTestEnv(t, ledger)

		_, err := GuardFeature(ctx, env.gate, "usr_1", models.Feature("time_travel"), func(ctx context.Context) (int, error) {
			return 0, nil
		})
		assert.ErrorIs(t, err, ErrUnknownFeature)
		ledger.AssertNotCalled(t, "AppendTransaction", mock.Anything, mock.Anything)
	})

	t.Run("zero cost is refused", func(t *testing.T) {
		env, _ := seededEnv(t, 100)

		_, err := Guard(ctx, env.gate, "usr_1", 0, "free lunch", func(ctx context.Context) (int, error) {
			return 1, nil
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestUsageGate_DeductFeature(t *testing.T) {
	ctx := context.Background()
	env, _ := seededEnv(t, 305)

	entry, err := env.gate.DeductFeature(ctx, "usr_1", models.FeatureJobPosting)
	require.NoError(t, err)
	assert.Equal(t, int64(-50), entry.Delta)
	assert.Equal(t, int64(255), entry.BalanceAfter)

	cost, err := env.gate.Cost(models.FeatureAIRecommendation)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cost)
	assert.Len(t, env.gate.Costs(), 3)
}
