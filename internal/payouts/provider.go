package payouts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
)

// PayoutRequest is the provider-facing view of one payout attempt.
type PayoutRequest struct {
	PayoutID    uuid.UUID
	SellerID    uuid.UUID
	Method      *models.PayoutMethod
	AmountMinor int64
	Currency    enums.Currency
}

// PayoutResult reports the outcome of a provider call. Status maps directly
// onto the ledger entry written for the attempt.
type PayoutResult struct {
	Reference string
	Status    enums.LedgerEntryStatus
}

// Provider executes payouts against an external money-movement service.
// Implementations must treat ambiguous outcomes (timeouts, dropped
// connections) as failures; the orchestrator never assumes success.
type Provider interface {
	Name() string
	Execute(ctx context.Context, req PayoutRequest) (PayoutResult, error)
}

// Registry resolves the provider for a payout method type and holds the
// fallback chain tried when the primary provider fails.
type Registry struct {
	byType    map[enums.PayoutMethodType]Provider
	fallbacks []Provider
}

// NewRegistry builds an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[enums.PayoutMethodType]Provider)}
}

// Register binds a provider to a payout method type.
func (r *Registry) Register(methodType enums.PayoutMethodType, provider Provider) {
	r.byType[methodType] = provider
}

// AddFallback appends a provider to the fallback chain.
func (r *Registry) AddFallback(provider Provider) {
	r.fallbacks = append(r.fallbacks, provider)
}

// For returns the provider registered for the method type.
func (r *Registry) For(methodType enums.PayoutMethodType) (Provider, error) {
	provider, ok := r.byType[methodType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("no payout provider registered for method type %s", methodType))
	}
	return provider, nil
}

// Fallbacks returns the fallback chain, excluding the given primary so a
// provider is never tried twice for the same payout.
func (r *Registry) Fallbacks(primary Provider) []Provider {
	out := make([]Provider, 0, len(r.fallbacks))
	for _, candidate := range r.fallbacks {
		if candidate.Name() == primary.Name() {
			continue
		}
		out = append(out, candidate)
	}
	return out
}
