package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/jobmatch/credits/internal/services"
	"github.com/jobmatch/credits/internal/store"
	"go.uber.org/zap"
)

const (
	CodeInsufficientCredit = "INSUFFICIENT_CREDIT"
	CodePaymentMismatch    = "PAYMENT_MISMATCH"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeIntentNotFound     = "INTENT_NOT_FOUND"
	CodeIntentClaimed      = "INTENT_CLAIMED"
	CodeInvalidRequest     = "INVALID_REQUEST"
)

// writeServiceError maps service and store errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var insufficient *store.InsufficientCreditError
	var mismatch *services.PaymentMismatchError

	switch {
	case errors.As(err, &insufficient):
		services.SendJSON(w, http.StatusPaymentRequired, services.ErrorResponse{
			Error: "Not enough credits. Top up to continue.",
			Code:  CodeInsufficientCredit,
			Details: map[string]string{
				"balance":   strconv.FormatInt(insufficient.Balance, 10),
				"requested": strconv.FormatInt(insufficient.Requested, 10),
			},
		})
	case errors.Is(err, store.ErrInsufficientCredit):
		services.SendCodedErrorResponse(w, "Not enough credits. Top up to continue.", CodeInsufficientCredit, http.StatusPaymentRequired, nil)
	case errors.As(err, &mismatch):
		services.SendJSON(w, http.StatusUnprocessableEntity, services.ErrorResponse{
			Error:   "Payment does not match the checkout",
			Code:    CodePaymentMismatch,
			Details: map[string]string{mismatch.Field: "expected " + mismatch.Expected + ", got " + mismatch.Actual},
		})
	case errors.Is(err, services.ErrIntentNotFound):
		services.SendCodedErrorResponse(w, "Payment intent not found or expired", CodeIntentNotFound, http.StatusNotFound, nil)
	case errors.Is(err, services.ErrIntentClaimed):
		services.SendCodedErrorResponse(w, "Payment intent is already being settled by another payment", CodeIntentClaimed, http.StatusConflict, nil)
	case errors.Is(err, services.ErrUnknownPackage),
		errors.Is(err, services.ErrUnknownFeature),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidConfirmation),
		errors.Is(err, store.ErrInvalidEntry):
		services.SendCodedErrorResponse(w, err.Error(), CodeInvalidRequest, http.StatusBadRequest, nil)
	case store.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Storage unavailable", zap.Error(err))
		services.SendCodedErrorResponse(w, "Action unavailable, try again", CodeStorageUnavailable, http.StatusServiceUnavailable, nil)
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
