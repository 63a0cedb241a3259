package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripesdk "github.com/stripe/stripe-go/v81"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	stripeclient "github.com/nnamdiosuji/okrika-backend/pkg/stripe"
)

// StripeProvider executes payouts through the Stripe Payouts API. It backs
// the bank transfer and wire method types.
type StripeProvider struct {
	client *stripeclient.Client
	logg   *logger.Logger
}

// NewStripeProvider builds a Stripe-backed payout provider.
func NewStripeProvider(client *stripeclient.Client, logg *logger.Logger) (*StripeProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &StripeProvider{client: client, logg: logg}, nil
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) Execute(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	params := &stripesdk.PayoutParams{
		Amount:   stripesdk.Int64(req.AmountMinor),
		Currency: stripesdk.String(strings.ToLower(string(req.Currency))),
		Description: stripesdk.String(
			fmt.Sprintf("seller payout %s", req.PayoutID)),
	}
	params.Context = ctx
	// one Stripe payout per scheduled payout row, no matter how many
	// attempts the orchestrator makes
	params.SetIdempotencyKey(fmt.Sprintf("payout-%s", req.PayoutID))

	payout, err := p.client.API().Payouts.New(params)
	if err != nil {
		return PayoutResult{}, p.mapError(ctx, req, err)
	}

	status := enums.LedgerEntryStatusProcessing
	switch payout.Status {
	case stripesdk.PayoutStatusPaid:
		status = enums.LedgerEntryStatusPaid
	case stripesdk.PayoutStatusFailed, stripesdk.PayoutStatusCanceled:
		return PayoutResult{}, pkgerrors.New(pkgerrors.CodeProviderFailure,
			fmt.Sprintf("stripe payout %s came back %s", payout.ID, payout.Status))
	}
	return PayoutResult{Reference: payout.ID, Status: status}, nil
}

func (p *StripeProvider) mapError(ctx context.Context, req PayoutRequest, err error) error {
	logCtx := p.logg.WithSellerID(ctx, req.SellerID.String())
	p.logg.Error(logCtx, "stripe payout call failed", err)

	var stripeErr *stripesdk.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripesdk.ErrorTypeInvalidRequest:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "stripe rejected payout request")
		case stripesdk.ErrorTypeCard:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "stripe rejected payout destination")
		}
		return pkgerrors.Wrap(pkgerrors.CodeProviderFailure, err, "stripe payout failed")
	}
	return pkgerrors.Wrap(pkgerrors.CodeProviderFailure, err, "stripe payout call failed")
}
