package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"
	"github.com/jobmatch/credits/internal/audit"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/services"
	"github.com/jobmatch/credits/internal/store"
	"go.uber.org/zap"
)

const signatureHeader = "X-Signature"

// PaymentWebhookHandler receives the provider's server-to-server payment
// notifications. Deliveries are at-least-once; settlement is idempotent.
type PaymentWebhookHandler struct {
	credits    *services.CreditService
	secret     []byte
	maxTries   uint
	newBackOff func() backoff.BackOff
	validator  *services.ValidationHelper
	audit      *audit.Logger
	logger     *zap.Logger
}

func NewPaymentWebhookHandler(credits *services.CreditService, secret string, maxTries uint, logger *zap.Logger, auditLogger *audit.Logger) *PaymentWebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}
	if maxTries == 0 {
		maxTries = 1
	}
	return &PaymentWebhookHandler{
		credits:  credits,
		secret:   []byte(secret),
		maxTries: maxTries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		validator: services.NewValidationHelper(),
		audit:     auditLogger,
		logger:    logger,
	}
}

// HandlePayment settles a provider notification
// @Summary Payment provider webhook
// @Description HMAC-SHA256 signed (hex, X-Signature header) payment confirmation. Storage faults are retried before answering 503.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Signature header string true "hex HMAC-SHA256 of the body"
// @Param request body models.PaymentConfirmation true "Provider confirmation"
// @Success 200 {object} services.ChargeResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /webhooks/payments [post]
func (h *PaymentWebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("Rejected webhook with bad signature", zap.String("remote_addr", r.RemoteAddr))
		h.audit.Log(audit.Event{
			EventType: audit.EventWebhookRejected,
			Status:    "FAILED",
			Details: map[string]string{
				"reason":      "invalid signature",
				"remote_addr": r.RemoteAddr,
			},
		})
		services.SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}

	// providers add fields over time; unknown ones are ignored here
	var confirmation models.PaymentConfirmation
	if err := json.Unmarshal(body, &confirmation); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&confirmation); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	attempt := 0
	result, err := backoff.Retry(ctx, func() (*services.ChargeResult, error) {
		attempt++
		res, err := h.credits.ChargeFromWebhook(ctx, confirmation)
		if err == nil {
			return res, nil
		}
		if store.IsRetryable(err) {
			h.logger.Warn("Webhook settlement failed, retrying",
				zap.String("intent_id", confirmation.IntentID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(h.newBackOff()), backoff.WithMaxTries(h.maxTries))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Webhook settled",
		zap.String("intent_id", confirmation.IntentID),
		zap.String("external_payment_id", confirmation.ExternalPaymentID()),
		zap.Bool("duplicate", result.Duplicate),
	)
	services.SendJSON(w, http.StatusOK, result)
}

// verifySignature rejects everything when no secret is configured.
func (h *PaymentWebhookHandler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
