package payouts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
)

// EscrowProvider moves funds to the seller's managed escrow account instead
// of an external rail. Settlement happens out of band, so results are always
// processing, never paid. The orchestrator restricts this provider to
// recurring schedules.
type EscrowProvider struct{}

// NewEscrowProvider builds the escrow-account payout provider.
func NewEscrowProvider() *EscrowProvider {
	return &EscrowProvider{}
}

func (p *EscrowProvider) Name() string { return "escrow_account" }

func (p *EscrowProvider) Execute(ctx context.Context, req PayoutRequest) (PayoutResult, error) {
	if req.Method == nil || req.Method.EscrowAccountID == nil || *req.Method.EscrowAccountID == "" {
		return PayoutResult{}, pkgerrors.New(pkgerrors.CodeValidation, "escrow account id required")
	}
	return PayoutResult{
		Reference: fmt.Sprintf("escrow-%s-%s", *req.Method.EscrowAccountID, uuid.NewString()[:8]),
		Status:    enums.LedgerEntryStatusProcessing,
	}, nil
}
