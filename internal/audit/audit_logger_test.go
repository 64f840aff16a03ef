package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_Charge(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	audit := NewLogger(zap.New(core))

	audit.LogCharge("tx-1", "usr_1", "pay_123", 305)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audit", entry.LoggerName)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, EventCharge, fields["event_type"])
	assert.Equal(t, "tx-1", fields["transaction_id"])
	assert.Equal(t, int64(305), fields["amount"])
}

func TestLogger_Reconciliation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	audit := NewLogger(zap.New(core))

	audit.LogReconciliation("tx-9", "org_42", "AI matching", 30, errors.New("model timeout"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, EventActionFailed, fields["event_type"])
	assert.Equal(t, "NEEDS_RECONCILIATION", fields["status"])
	assert.Equal(t, "org_42", fields["account_id"])
}

func TestLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewLogger(nil).LogError(EventDeductRejected, "usr_1", 30, errors.New("insufficient credit"))
	})
}
