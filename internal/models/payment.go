package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreditPackage is a purchasable bundle of credits.
type CreditPackage struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Credits int64           `json:"credits"`
	Bonus   int64           `json:"bonus"`
	Price   decimal.Decimal `json:"price"`
}

func (p CreditPackage) TotalCredits() int64 {
	return p.Credits + p.Bonus
}

// PaymentIntent is a pending top-up. It lives in the intent store until it
// is settled or expires and is never ledger state.
type PaymentIntent struct {
	IntentID         string          `json:"intentId"`
	AccountID        string          `json:"accountId"`
	PackageID        string          `json:"packageId"`
	RequestedCredits int64           `json:"requestedCredits"`
	PriceAmount      decimal.Decimal `json:"priceAmount"`
	Currency         string          `json:"currency"`
	Provider         string          `json:"provider"`
	CreatedAt        time.Time       `json:"createdAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
}

// PaymentConfirmation is what the payment provider reports for a completed
// checkout.
type PaymentConfirmation struct {
	IntentID      string          `json:"intentId" validate:"required"`
	PaymentID     string          `json:"paymentId" validate:"required_without=TransactionID"`
	TransactionID string          `json:"transactionId" validate:"required_without=PaymentID"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
}

// ExternalPaymentID is the idempotency key of a settlement: the provider's
// payment id, or its transaction id when no payment id was sent.
func (c PaymentConfirmation) ExternalPaymentID() string {
	if id := strings.TrimSpace(c.PaymentID); id != "" {
		return id
	}
	return strings.TrimSpace(c.TransactionID)
}

// Feature is a credit-consuming action.
type Feature string

const (
	FeatureAIMatching       Feature = "ai_matching"
	FeatureAIRecommendation Feature = "ai_recommendation"
	FeatureJobPosting       Feature = "job_posting"
)

func (f Feature) Valid() bool {
	switch f {
	case FeatureAIMatching, FeatureAIRecommendation, FeatureJobPosting:
		return true
	}
	return false
}

// Label is the ledger description used for a feature's deductions.
func (f Feature) Label() string {
	switch f {
	case FeatureAIMatching:
		return "AI matching"
	case FeatureAIRecommendation:
		return "AI job recommendation"
	case FeatureJobPosting:
		return "Job posting"
	}
	return string(f)
}
