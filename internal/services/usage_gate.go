package services

import (
	"context"
	"fmt"

	"github.com/jobmatch/credits/internal/audit"
	"github.com/jobmatch/credits/internal/models"
	"go.uber.org/zap"
)

// UsageGate charges credits before a paid action runs. If the deduction
// fails for any reason the action is not run.
type UsageGate struct {
	credits *CreditService
	costs   map[models.Feature]int64
	audit   *audit.Logger
	logger  *zap.Logger
}

func NewUsageGate(credits *CreditService, costs map[models.Feature]int64, auditLogger *audit.Logger, logger *zap.Logger) *UsageGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}
	return &UsageGate{
		credits: credits,
		costs:   costs,
		audit:   auditLogger,
		logger:  logger,
	}
}

// Cost returns the configured price of feature.
func (g *UsageGate) Cost(feature models.Feature) (int64, error) {
	cost, ok := g.costs[feature]
	if !ok || !feature.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	return cost, nil
}

// Costs returns a copy of the feature catalog.
func (g *UsageGate) Costs() map[models.Feature]int64 {
	costs := make(map[models.Feature]int64, len(g.costs))
	for feature, cost := range g.costs {
		costs[feature] = cost
	}
	return costs
}

// DeductFeature charges feature's cost without running anything, for callers
// that perform the action themselves after a successful response.
func (g *UsageGate) DeductFeature(ctx context.Context, accountID string, feature models.Feature) (*models.Transaction, error) {
	cost, err := g.Cost(feature)
	if err != nil {
		return nil, err
	}
	entry, err := g.credits.deduct(ctx, accountID, cost, feature.Label(), string(feature))
	if err != nil {
		return nil, &GateError{AccountID: accountID, Cost: cost, Err: err}
	}
	return entry, nil
}

// Guard deducts cost and then runs action. A failed deduction returns a
// *GateError and action is never called. A failed action keeps the
// deduction, is recorded for reconciliation and comes back as *ActionError.
func Guard[T any](ctx context.Context, g *UsageGate, accountID string, cost int64, description string, action func(context.Context) (T, error)) (T, error) {
	return guard(ctx, g, accountID, cost, description, "", action)
}

// GuardFeature is Guard with the cost and description of a catalog feature.
func GuardFeature[T any](ctx context.Context, g *UsageGate, accountID string, feature models.Feature, action func(context.Context) (T, error)) (T, error) {
	cost, err := g.Cost(feature)
	if err != nil {
		var zero T
		return zero, err
	}
	return guard(ctx, g, accountID, cost, feature.Label(), string(feature), action)
}

func guard[T any](ctx context.Context, g *UsageGate, accountID string, cost int64, description, feature string, action func(context.Context) (T, error)) (T, error) {
	var zero T

	entry, err := g.credits.deduct(ctx, accountID, cost, description, feature)
	if err != nil {
		return zero, &GateError{AccountID: accountID, Cost: cost, Err: err}
	}

	result, err := action(ctx)
	if err != nil {
		g.audit.LogReconciliation(entry.TransactionID, accountID, description, cost, err)
		g.logger.Error("Gated action failed after deduction",
			zap.String("account_id", accountID),
			zap.String("transaction_id", entry.TransactionID),
			zap.Int64("credits", cost),
			zap.Error(err),
		)
		return zero, &ActionError{TransactionID: entry.TransactionID, Err: err}
	}

	return result, nil
}
