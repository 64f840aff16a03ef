package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/jobmatch/credits/internal/cache"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenIntentStore struct {
	cache.IntentStore
}

func (brokenIntentStore) Save(context.Context, *models.PaymentIntent) error {
	return errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
}

func TestPaymentIntentService_CreateIntent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("creates an intent with a checkout QR", func(t *testing.T) {
		svc := NewPaymentIntentService(cache.NewMemoryIntentStore(0), testCreditConfig(), nil, nil)
		svc.now = func() time.Time { return now }

		resp, err := svc.CreateIntent(ctx, "org_42", "pkg_300")
		require.NoError(t, err)

		intent := resp.Intent
		assert.NotEmpty(t, intent.IntentID)
		assert.Equal(t, "org_42", intent.AccountID)
		assert.Equal(t, int64(305), intent.RequestedCredits)
		assert.Equal(t, "30000", intent.PriceAmount.String())
		assert.Equal(t, "KRW", intent.Currency)
		assert.Equal(t, now.Add(30*time.Minute), intent.ExpiresAt)

		png, err := base64.StdEncoding.DecodeString(resp.CheckoutQR)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

		stored, err := svc.GetIntent(ctx, intent.IntentID)
		require.NoError(t, err)
		assert.Equal(t, intent.PackageID, stored.PackageID)
	})

	t.Run("unknown package", func(t *testing.T) {
		svc := NewPaymentIntentService(cache.NewMemoryIntentStore(0), testCreditConfig(), nil, nil)

		_, err := svc.CreateIntent(ctx, "usr_1", "pkg_9999")
		assert.ErrorIs(t, err, ErrUnknownPackage)
	})

	t.Run("intent store down", func(t *testing.T) {
		svc := NewPaymentIntentService(brokenIntentStore{}, testCreditConfig(), nil, nil)

		_, err := svc.CreateIntent(ctx, "usr_1", "pkg_300")
		assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	})
}

func TestPaymentIntentService_ListPackages(t *testing.T) {
	svc := NewPaymentIntentService(cache.NewMemoryIntentStore(0), testCreditConfig(), nil, nil)

	packages := svc.ListPackages()
	require.Len(t, packages, 2)
	packages[0].Credits = 0

	assert.Equal(t, int64(100), svc.ListPackages()[0].Credits)
}
