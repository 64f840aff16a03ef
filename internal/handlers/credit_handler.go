package handlers

import (
	"net/http"
	"strconv"

	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/services"
	"go.uber.org/zap"
)

const staleBalanceMessage = "Live balance is temporarily unavailable. Showing the last known balance."

type CreditHandler struct {
	credits   *services.CreditService
	intents   *services.PaymentIntentService
	gate      *services.UsageGate
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewCreditHandler(credits *services.CreditService, intents *services.PaymentIntentService, gate *services.UsageGate, logger *zap.Logger) *CreditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditHandler{
		credits:   credits,
		intents:   intents,
		gate:      gate,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

type BalanceResponse struct {
	models.BalanceView
	AccountType models.AccountType `json:"accountType"`
	Message     string             `json:"message,omitempty"`
}

type CreateIntentRequest struct {
	PackageID string `json:"packageId" validate:"required"`
}

type DeductRequest struct {
	Feature string `json:"feature" validate:"required,credit_feature"`
}

type DeductResponse struct {
	Balance       int64  `json:"balance"`
	Cost          int64  `json:"cost"`
	TransactionID string `json:"transactionId"`
}

type historyQuery struct {
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"pageSize" validate:"omitempty,min=1,max=100"`
	Kind     string `json:"kind" validate:"omitempty,ledger_kind"`
}

// GetBalance returns the account's credit balance
// @Summary Get credit balance
// @Description Returns the balance from the ledger, or the last cached balance marked stale when the ledger is unavailable
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /credits/balance [get]
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := requestAccount(w, r)
	if !ok {
		return
	}

	view, err := h.credits.GetBalance(r.Context(), account.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := BalanceResponse{BalanceView: *view, AccountType: account.Type}
	if view.Stale {
		resp.Message = staleBalanceMessage
	}
	services.SendJSON(w, http.StatusOK, resp)
}

// GetHistory lists ledger transactions
// @Summary List credit transactions
// @Description Newest first, optionally filtered by kind
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)"
// @Param pageSize query int false "Page size (max 100)"
// @Param kind query string false "CHARGE or DEDUCT"
// @Success 200 {object} models.TransactionPage
// @Failure 400 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /credits/history [get]
func (h *CreditHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	account, ok := requestAccount(w, r)
	if !ok {
		return
	}

	q, err := parseHistoryQuery(r)
	if err != nil {
		services.SendErrorResponse(w, "Invalid query parameters", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&q); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	page, err := h.credits.ListHistory(r.Context(), account.ID, models.HistoryQuery{
		Page:     q.Page,
		PageSize: q.PageSize,
		Kind:     models.TransactionKind(q.Kind),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	services.SendJSON(w, http.StatusOK, page)
}

func parseHistoryQuery(r *http.Request) (historyQuery, error) {
	values := r.URL.Query()
	q := historyQuery{Kind: values.Get("kind")}

	var err error
	if v := values.Get("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			return q, err
		}
	}
	if v := values.Get("pageSize"); v != "" {
		if q.PageSize, err = strconv.Atoi(v); err != nil {
			return q, err
		}
	}
	return q, nil
}

// ListPackages lists purchasable credit packages
// @Summary List credit packages
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{packages=[]models.CreditPackage,currency=string}
// @Router /credits/packages [get]
func (h *CreditHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	services.SendJSON(w, http.StatusOK, map[string]any{
		"packages": h.intents.ListPackages(),
		"currency": h.intents.Currency(),
	})
}

// CreatePaymentIntent starts a top-up
// @Summary Create payment intent
// @Description Reserves a checkout for a credit package and returns a checkout QR code
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateIntentRequest true "Package to buy"
// @Success 201 {object} services.IntentResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /credits/payment-intents [post]
func (h *CreditHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	account, ok := requestAccount(w, r)
	if !ok {
		return
	}

	var req CreateIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	resp, err := h.intents.CreateIntent(r.Context(), account.ID, req.PackageID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	services.SendJSON(w, http.StatusCreated, resp)
}

// Charge settles a completed checkout
// @Summary Confirm a payment
// @Description Verifies the provider confirmation against the payment intent and credits the account once per payment id
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PaymentConfirmation true "Provider confirmation"
// @Success 200 {object} services.ChargeResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /credits/charge [post]
func (h *CreditHandler) Charge(w http.ResponseWriter, r *http.Request) {
	account, ok := requestAccount(w, r)
	if !ok {
		return
	}

	var req models.PaymentConfirmation
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.credits.Charge(r.Context(), account.ID, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	services.SendJSON(w, http.StatusOK, result)
}

// Deduct consumes credits for a feature
// @Summary Deduct credits for a feature
// @Description Charges the configured cost of a feature before the client runs it
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeductRequest true "Feature to pay for"
// @Success 200 {object} DeductResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /credits/deduct [post]
func (h *CreditHandler) Deduct(w http.ResponseWriter, r *http.Request) {
	account, ok := requestAccount(w, r)
	if !ok {
		return
	}

	var req DeductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	entry, err := h.gate.DeductFeature(r.Context(), account.ID, models.Feature(req.Feature))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	services.SendJSON(w, http.StatusOK, DeductResponse{
		Balance:       entry.BalanceAfter,
		Cost:          -entry.Delta,
		TransactionID: entry.TransactionID,
	})
}
