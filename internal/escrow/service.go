package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/internal/ledger"
	dbpkg "github.com/nnamdiosuji/okrika-backend/pkg/db"
	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
)

const activeHoldConstraint = "ux_payment_holds_active_order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DisputeChecker reports whether an order has an unresolved dispute. Holds
// with open disputes are skipped by the expiry sweep.
type DisputeChecker interface {
	HasOpenDispute(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// CreateHoldInput carries the fields needed to open an escrow hold.
type CreateHoldInput struct {
	PaymentID   uuid.UUID
	OrderID     uuid.UUID
	SellerID    uuid.UUID
	AmountMinor int64
	Currency    enums.Currency
	Duration    time.Duration
	Actor       *outbox.ActorRef
}

// HoldEvent is the outbox payload for hold lifecycle changes.
type HoldEvent struct {
	HoldID      uuid.UUID        `json:"hold_id"`
	OrderID     uuid.UUID        `json:"order_id"`
	SellerID    uuid.UUID        `json:"seller_id"`
	AmountMinor int64            `json:"amount_minor"`
	Currency    enums.Currency   `json:"currency"`
	Status      enums.HoldStatus `json:"status"`
}

// Service manages per-order escrow holds. Hold state and ledger state move
// together in one transaction; release, refund, and expire are idempotent.
type Service interface {
	CreateHold(ctx context.Context, tx *gorm.DB, input CreateHoldInput) (*models.PaymentHold, error)
	HoldForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.PaymentHold, error)
	Release(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error)
	Refund(ctx context.Context, orderID uuid.UUID, amountMinor int64, actor *outbox.ActorRef) (*models.PaymentHold, error)
	RefundTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amountMinor int64, actor *outbox.ActorRef) (*models.PaymentHold, error)
	RefundAllTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error)
	Expire(ctx context.Context, holdID uuid.UUID) (*models.PaymentHold, error)
	ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

type service struct {
	repo     Repository
	ledger   ledger.Service
	tx       txRunner
	outbox   outboxPublisher
	disputes DisputeChecker
	duration time.Duration
}

// NewService builds an escrow service with the required dependencies.
func NewService(repo Repository, ledgerSvc ledger.Service, tx txRunner, ob outboxPublisher, disputes DisputeChecker, holdDuration time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if disputes == nil {
		return nil, fmt.Errorf("dispute checker required")
	}
	if holdDuration <= 0 {
		return nil, fmt.Errorf("hold duration must be positive")
	}
	return &service{
		repo:     repo,
		ledger:   ledgerSvc,
		tx:       tx,
		outbox:   ob,
		disputes: disputes,
		duration: holdDuration,
	}, nil
}

// CreateHold opens the escrow hold and writes the pending sale entry in the
// caller's transaction. Losing the active-hold unique constraint race means
// another writer already created it; the existing hold is returned as-is.
func (s *service) CreateHold(ctx context.Context, tx *gorm.DB, input CreateHoldInput) (*models.PaymentHold, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if input.PaymentID == uuid.Nil || input.OrderID == uuid.Nil || input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment, order, and seller ids required")
	}
	if input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold amount must be positive")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	duration := input.Duration
	if duration <= 0 {
		duration = s.duration
	}

	repo := s.repo.WithTx(tx)
	hold := &models.PaymentHold{
		PaymentID:           input.PaymentID,
		OrderID:             input.OrderID,
		SellerID:            input.SellerID,
		AmountMinor:         input.AmountMinor,
		OriginalAmountMinor: input.AmountMinor,
		Currency:            input.Currency,
		Status:              enums.HoldStatusActive,
		ReleaseableAt:       time.Now().Add(duration),
	}
	if err := repo.CreateHold(ctx, hold); err != nil {
		if dbpkg.IsUniqueViolation(err, activeHoldConstraint) {
			existing, findErr := repo.FindActiveHoldByOrder(ctx, input.OrderID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing active hold")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment hold")
	}

	_, err := s.ledger.AppendTx(ctx, tx, ledger.AppendInput{
		SellerID:    input.SellerID,
		OrderID:     &input.OrderID,
		HoldID:      &hold.ID,
		Type:        enums.LedgerEntryTypeSale,
		AmountMinor: input.AmountMinor,
		Currency:    input.Currency,
		Status:      enums.LedgerEntryStatusPending,
		Description: "sale held in escrow",
	})
	if err != nil {
		return nil, err
	}

	if err := s.emitHoldEvent(ctx, tx, enums.EventHoldCreated, hold, input.Actor); err != nil {
		return nil, err
	}
	return hold, nil
}

// HoldForOrder returns the order's active hold, falling back to its most
// recently settled one. Callers use it to tell whether funds are still held
// before deciding how to move them.
func (s *service) HoldForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.PaymentHold, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	hold, err := repo.FindActiveHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.settledHold(ctx, repo, orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active hold")
	}
	return hold, nil
}

func (s *service) Release(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	var hold *models.PaymentHold
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		hold, txErr = s.ReleaseTx(ctx, tx, orderID, actor)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ReleaseTx marks the order's active hold released and promotes the pending
// sale earnings to available. Repeat calls return the settled hold.
func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	hold, err := repo.FindActiveHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.settledHold(ctx, repo, orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active hold")
	}

	now := time.Now()
	if err := repo.UpdateHold(ctx, hold.ID, map[string]any{
		"status":      enums.HoldStatusReleased,
		"released_at": now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release hold")
	}
	hold.Status = enums.HoldStatusReleased
	hold.ReleasedAt = &now

	if _, err := s.ledger.CompleteSaleEntry(ctx, tx, orderID); err != nil {
		return nil, err
	}
	if err := s.emitHoldEvent(ctx, tx, enums.EventHoldReleased, hold, actor); err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *service) Refund(ctx context.Context, orderID uuid.UUID, amountMinor int64, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	var hold *models.PaymentHold
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		hold, txErr = s.RefundTx(ctx, tx, orderID, amountMinor, actor)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// RefundTx returns part or all of the held amount to the buyer. A full
// refund settles the hold as refunded; a partial refund leaves it active
// with the reduced remainder.
func (s *service) RefundTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amountMinor int64, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if amountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	hold, err := repo.FindActiveHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.settledHold(ctx, repo, orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active hold")
	}

	if amountMinor > hold.AmountMinor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("refund amount %d exceeds held amount %d", amountMinor, hold.AmountMinor))
	}

	remaining := hold.AmountMinor - amountMinor
	updates := map[string]any{"amount_minor": remaining}
	now := time.Now()
	if remaining == 0 {
		updates["status"] = enums.HoldStatusRefunded
		updates["refunded_at"] = now
	}
	if err := repo.UpdateHold(ctx, hold.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund hold")
	}
	hold.AmountMinor = remaining
	if remaining == 0 {
		hold.Status = enums.HoldStatusRefunded
		hold.RefundedAt = &now
	}

	_, err = s.ledger.AppendTx(ctx, tx, ledger.AppendInput{
		SellerID:    hold.SellerID,
		OrderID:     &orderID,
		HoldID:      &hold.ID,
		Type:        enums.LedgerEntryTypeRefundCompleted,
		AmountMinor: -amountMinor,
		Currency:    hold.Currency,
		Status:      enums.LedgerEntryStatusPending,
		Description: "escrow refund to buyer",
	})
	if err != nil {
		return nil, err
	}

	if err := s.emitHoldEvent(ctx, tx, enums.EventHoldRefunded, hold, actor); err != nil {
		return nil, err
	}
	return hold, nil
}

// RefundAllTx refunds whatever remains on the order's active hold. With no
// active hold it degrades to the same idempotent no-op as RefundTx.
func (s *service) RefundAllTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	hold, err := repo.FindActiveHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.settledHold(ctx, repo, orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active hold")
	}
	return s.RefundTx(ctx, tx, orderID, hold.AmountMinor, actor)
}

// Expire auto-releases a hold whose ReleaseableAt has passed. Funds go to
// the seller exactly as in Release; only the terminal status differs.
func (s *service) Expire(ctx context.Context, holdID uuid.UUID) (*models.PaymentHold, error) {
	if holdID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hold id required")
	}

	var hold *models.PaymentHold
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindHold(ctx, holdID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "hold not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load hold")
		}
		hold = loaded
		if hold.Status != enums.HoldStatusActive {
			return nil
		}

		now := time.Now()
		if err := repo.UpdateHold(ctx, hold.ID, map[string]any{
			"status":     enums.HoldStatusExpired,
			"expired_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire hold")
		}
		hold.Status = enums.HoldStatusExpired
		hold.ExpiredAt = &now

		if _, err := s.ledger.CompleteSaleEntry(ctx, tx, hold.OrderID); err != nil {
			return err
		}
		return s.emitHoldEvent(ctx, tx, enums.EventHoldExpired, hold, nil)
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ExpireDue sweeps active holds past their release point, skipping orders
// with open disputes and sellers whose holds no longer reconcile against the
// ledger. Returns the number of holds expired.
func (s *service) ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	holds, err := s.repo.ListReleasableHolds(ctx, asOf, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list releasable holds")
	}

	expired := 0
	var errs []error
	for _, hold := range holds {
		disputed, err := s.disputes.HasOpenDispute(ctx, hold.OrderID)
		if err != nil {
			errs = append(errs, fmt.Errorf("hold %s: %w", hold.ID, err))
			continue
		}
		if disputed {
			continue
		}
		if err := s.checkHoldParity(ctx, hold.SellerID, hold.Currency); err != nil {
			errs = append(errs, fmt.Errorf("hold %s: %w", hold.ID, err))
			continue
		}
		if _, err := s.Expire(ctx, hold.ID); err != nil {
			errs = append(errs, fmt.Errorf("hold %s: %w", hold.ID, err))
			continue
		}
		expired++
	}
	return expired, multierr.Combine(errs...)
}

// checkHoldParity verifies the seller's active holds are covered by pending
// ledger entries before funds are released. A mismatch means the hold and
// ledger diverged; no money moves until an operator reconciles them.
func (s *service) checkHoldParity(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) error {
	activeTotal, err := s.repo.SumActiveHolds(ctx, sellerID, currency)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum active holds")
	}
	balance, err := s.ledger.Balance(ctx, sellerID, currency)
	if err != nil {
		return err
	}
	if activeTotal > balance.PendingMinor {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("active holds %d exceed pending ledger balance %d for seller %s",
				activeTotal, balance.PendingMinor, sellerID))
	}
	return nil
}

// settledHold resolves the idempotent no-op path: the order has no active
// hold, so return its latest settled one if any.
func (s *service) settledHold(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.PaymentHold, error) {
	hold, err := repo.FindLatestHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no hold exists for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest hold")
	}
	return hold, nil
}

func (s *service) emitHoldEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, hold *models.PaymentHold, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePaymentHold,
		AggregateID:   hold.ID,
		Version:       1,
		Actor:         actor,
		Data: HoldEvent{
			HoldID:      hold.ID,
			OrderID:     hold.OrderID,
			SellerID:    hold.SellerID,
			AmountMinor: hold.AmountMinor,
			Currency:    hold.Currency,
			Status:      hold.Status,
		},
	})
}
