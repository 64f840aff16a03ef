package audit

import (
	"time"

	"go.uber.org/zap"
)

const (
	EventCharge          = "CHARGE"
	EventDuplicateCharge = "CHARGE_DUPLICATE"
	EventPaymentMismatch = "PAYMENT_MISMATCH"
	EventDeduct          = "DEDUCT"
	EventDeductRejected  = "DEDUCT_REJECTED"
	EventActionFailed    = "ACTION_FAILED_AFTER_DEDUCT"
	EventWebhookRejected = "WEBHOOK_REJECTED"
	EventIntentCreated   = "INTENT_CREATED"
)

type Event struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	TransactionID string            `json:"transaction_id,omitempty"`
	AccountID     string            `json:"account_id,omitempty"`
	Amount        int64             `json:"amount"`
	Status        string            `json:"status"`
	Details       map[string]string `json:"details,omitempty"`
}

// Logger writes audit events as structured records under the "audit" logger
// name, so they can be routed apart from application logs.
type Logger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

func (a *Logger) LogCharge(transactionID, accountID, externalPaymentID string, credits int64) {
	a.Log(Event{
		EventType:     EventCharge,
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        credits,
		Status:        "SUCCESS",
		Details:       map[string]string{"external_payment_id": externalPaymentID},
	})
}

func (a *Logger) LogDeduct(transactionID, accountID, description string, credits int64) {
	a.Log(Event{
		EventType:     EventDeduct,
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        credits,
		Status:        "SUCCESS",
		Details:       map[string]string{"description": description},
	})
}

func (a *Logger) LogError(eventType, accountID string, amount int64, err error) {
	a.Log(Event{
		EventType: eventType,
		AccountID: accountID,
		Amount:    amount,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

// LogReconciliation records an action that failed after its credits were
// deducted. The deduction stands; the record is the input for a manual
// adjustment.
func (a *Logger) LogReconciliation(transactionID, accountID, description string, credits int64, err error) {
	a.Log(Event{
		EventType:     EventActionFailed,
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        credits,
		Status:        "NEEDS_RECONCILIATION",
		Details: map[string]string{
			"description": description,
			"error":       err.Error(),
		},
	})
}

func (a *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now()
	}

	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.Time("event_time", event.Timestamp),
		zap.String("status", event.Status),
		zap.Int64("amount", event.Amount),
	}
	if event.TransactionID != "" {
		fields = append(fields, zap.String("transaction_id", event.TransactionID))
	}
	if event.AccountID != "" {
		fields = append(fields, zap.String("account_id", event.AccountID))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}

	if event.Status == "SUCCESS" {
		a.logger.Info("audit", fields...)
		return
	}
	a.logger.Warn("audit", fields...)
}
