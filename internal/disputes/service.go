package disputes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/internal/escrow"
	"github.com/nnamdiosuji/okrika-backend/internal/ledger"
	"github.com/nnamdiosuji/okrika-backend/internal/notify"
	"github.com/nnamdiosuji/okrika-backend/internal/orders"
	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	"github.com/nnamdiosuji/okrika-backend/pkg/money"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InitiateInput opens a dispute against an order.
type InitiateInput struct {
	OrderID      uuid.UUID
	BuyerID      uuid.UUID
	Reason       string
	EvidenceURLs []string
}

// ResolveInput carries an admin resolution decision. AmountMinor is required
// for partial refunds and ignored otherwise.
type ResolveInput struct {
	DisputeID   uuid.UUID
	Resolution  enums.DisputeResolution
	AmountMinor int64
	Actor       outbox.ActorRef
}

// DisputeEvent is the outbox payload for dispute lifecycle changes.
type DisputeEvent struct {
	DisputeID   uuid.UUID                `json:"dispute_id"`
	OrderID     uuid.UUID                `json:"order_id"`
	BuyerID     uuid.UUID                `json:"buyer_id"`
	SellerID    uuid.UUID                `json:"seller_id"`
	Status      enums.DisputeStatus      `json:"status"`
	Resolution  *enums.DisputeResolution `json:"resolution,omitempty"`
	AmountMinor int64                    `json:"amount_minor"`
}

// Service drives the dispute and return lifecycle. Money movement always
// goes through the escrow hold and ledger primitives; disputes never touch
// balances directly.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	RequestReturn(ctx context.Context, disputeID, buyerID uuid.UUID) (*models.Dispute, error)
	ApproveReturn(ctx context.Context, disputeID uuid.UUID, actor outbox.ActorRef) (*models.Dispute, error)
	RejectReturn(ctx context.Context, disputeID uuid.UUID, itemCondition string, actor outbox.ActorRef) (*models.Dispute, error)
	ProcessRefund(ctx context.Context, disputeID uuid.UUID, actor outbox.ActorRef) (*models.Dispute, error)
	Cancel(ctx context.Context, disputeID, buyerID uuid.UUID) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	FlagStale(ctx context.Context, olderThan time.Time, limit int) (int, error)
	HasOpenDispute(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type service struct {
	repo     Repository
	orders   orders.Repository
	escrow   escrow.Service
	ledger   ledger.Service
	tx       txRunner
	outbox   outboxPublisher
	notifier notify.Emitter
	logg     *logger.Logger
}

// NewService builds a dispute service with the required dependencies.
func NewService(repo Repository, orderRepo orders.Repository, escrowSvc escrow.Service, ledgerSvc ledger.Service, tx txRunner, ob outboxPublisher, notifier notify.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("disputes repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if escrowSvc == nil {
		return nil, fmt.Errorf("escrow service required")
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
	if notifier == nil {
		return nil, fmt.Errorf("notification emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		orders:   orderRepo,
		escrow:   escrowSvc,
		ledger:   ledgerSvc,
		tx:       tx,
		outbox:   ob,
		notifier: notifier,
		logg:     logg,
	}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil || input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and buyer id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}

	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		order, err := orderRepo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "only the order's buyer can open a dispute")
		}
		if order.Status == enums.OrderStatusCanceled {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot dispute a canceled order")
		}

		open, err := repo.CountOpenByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open disputes")
		}
		if open > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has an open dispute")
		}

		dispute = &models.Dispute{
			ID:           uuid.New(),
			OrderID:      order.ID,
			BuyerID:      order.BuyerID,
			SellerID:     order.SellerID,
			AmountMinor:  order.AmountMinor,
			Currency:     order.Currency,
			Reason:       input.Reason,
			Status:       enums.DisputeStatusPending,
			EvidenceURLs: pq.StringArray(input.EvidenceURLs),
		}
		if err := repo.CreateDispute(ctx, dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}

		if err := orderRepo.UpdateOrder(ctx, order.ID, map[string]any{
			"payout_status": enums.PayoutStatusDisputed,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag order as disputed")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisputeOpened,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID},
			Data:          s.eventPayload(dispute, nil),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyDispute(ctx, dispute, enums.NotificationAudienceSeller, dispute.SellerID,
		enums.NotificationTypeDisputeOpened, "Dispute opened",
		fmt.Sprintf("Buyer opened a dispute: %s", dispute.Reason), enums.NotificationSeverityWarning)
	return dispute, nil
}

func (s *service) Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return s.loadDispute(ctx, s.repo, disputeID)
}

func (s *service) RequestReturn(ctx context.Context, disputeID, buyerID uuid.UUID) (*models.Dispute, error) {
	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		dispute = loaded
		if dispute.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "only the dispute's buyer can request a return")
		}
		if dispute.Status != enums.DisputeStatusPending {
			return invalidDisputeMove(dispute.Status, enums.DisputeStatusReturnRequested)
		}
		dispute.Status = enums.DisputeStatusReturnRequested
		return repo.UpdateDispute(ctx, dispute.ID, map[string]any{
			"status": enums.DisputeStatusReturnRequested,
		})
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// ApproveReturn moves a requested return into the approved state and assigns
// the RMA number the buyer ships the item back under.
func (s *service) ApproveReturn(ctx context.Context, disputeID uuid.UUID, actor outbox.ActorRef) (*models.Dispute, error) {
	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		dispute = loaded
		if dispute.Status != enums.DisputeStatusReturnRequested {
			return invalidDisputeMove(dispute.Status, enums.DisputeStatusReturnApproved)
		}
		rma := newRMANumber()
		dispute.Status = enums.DisputeStatusReturnApproved
		dispute.RMANumber = &rma
		return repo.UpdateDispute(ctx, dispute.ID, map[string]any{
			"status":     enums.DisputeStatusReturnApproved,
			"rma_number": rma,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyDispute(ctx, dispute, enums.NotificationAudienceBuyer, dispute.BuyerID,
		enums.NotificationTypeReturnApproved, "Return approved",
		fmt.Sprintf("Return approved; ship the item back under %s", *dispute.RMANumber),
		enums.NotificationSeverityInfo)
	return dispute, nil
}

// RejectReturn closes an approved return against the buyer, typically after
// inspecting the returned item. The hold is left to run its normal course.
func (s *service) RejectReturn(ctx context.Context, disputeID uuid.UUID, itemCondition string, actor outbox.ActorRef) (*models.Dispute, error) {
	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		dispute = loaded
		if dispute.Status != enums.DisputeStatusReturnApproved {
			return invalidDisputeMove(dispute.Status, enums.DisputeStatusReturnRejected)
		}

		now := time.Now()
		updates := map[string]any{
			"status":      enums.DisputeStatusReturnRejected,
			"resolved_at": now,
		}
		if strings.TrimSpace(itemCondition) != "" {
			updates["item_condition"] = itemCondition
			dispute.ItemCondition = &itemCondition
		}
		dispute.Status = enums.DisputeStatusReturnRejected
		dispute.ResolvedAt = &now
		if err := repo.UpdateDispute(ctx, dispute.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject return")
		}

		// the order leaves the disputed state; the hold resumes its
		// normal expiry course
		if err := s.orders.WithTx(tx).UpdateOrder(ctx, dispute.OrderID, map[string]any{
			"payout_status": enums.PayoutStatusInEscrow,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear disputed flag")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisputeResolved,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Version:       1,
			Actor:         &actor,
			Data:          s.eventPayload(dispute, nil),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyDispute(ctx, dispute, enums.NotificationAudienceBuyer, dispute.BuyerID,
		enums.NotificationTypeReturnRejected, "Return rejected",
		"Your return was rejected after inspection", enums.NotificationSeverityWarning)
	return dispute, nil
}

// ProcessRefund finalizes an approved return: the full remaining hold goes
// back to the buyer and the dispute reaches its refunded terminal state.
func (s *service) ProcessRefund(ctx context.Context, disputeID uuid.UUID, actor outbox.ActorRef) (*models.Dispute, error) {
	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		dispute = loaded
		if dispute.Status != enums.DisputeStatusReturnApproved {
			return invalidDisputeMove(dispute.Status, enums.DisputeStatusRefunded)
		}
		return s.refundInTx(ctx, tx, dispute, enums.RefundTypeFull, dispute.AmountMinor, actor)
	})
	if err != nil {
		return nil, err
	}

	s.notifyRefund(ctx, dispute)
	return dispute, nil
}

// Cancel withdraws a dispute. Only the initiating buyer can cancel, and only
// before a refund has been processed.
func (s *service) Cancel(ctx context.Context, disputeID, buyerID uuid.UUID) (*models.Dispute, error) {
	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		dispute = loaded
		if dispute.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "only the dispute's buyer can cancel it")
		}
		if dispute.Status.IsTerminal() {
			return invalidDisputeMove(dispute.Status, enums.DisputeStatusCanceled)
		}

		now := time.Now()
		dispute.Status = enums.DisputeStatusCanceled
		dispute.ResolvedAt = &now
		if err := repo.UpdateDispute(ctx, dispute.ID, map[string]any{
			"status":      enums.DisputeStatusCanceled,
			"resolved_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel dispute")
		}

		return s.orders.WithTx(tx).UpdateOrder(ctx, dispute.OrderID, map[string]any{
			"payout_status": enums.PayoutStatusInEscrow,
		})
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if !input.Resolution.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid dispute resolution")
	}
	if input.Resolution == enums.DisputeResolutionPartialRefund && input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partial refund requires a positive amount")
	}

	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadDispute(ctx, repo, input.DisputeID)
		if err != nil {
			return err
		}
		dispute = loaded
		if dispute.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("dispute is already %s", dispute.Status))
		}

		switch input.Resolution {
		case enums.DisputeResolutionBuyerRefund:
			return s.refundInTx(ctx, tx, dispute, enums.RefundTypeFull, dispute.AmountMinor, input.Actor)
		case enums.DisputeResolutionPartialRefund:
			return s.refundInTx(ctx, tx, dispute, enums.RefundTypePartial, input.AmountMinor, input.Actor)
		case enums.DisputeResolutionSellerKeep:
			return s.sellerKeepInTx(ctx, tx, dispute, input.Actor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch input.Resolution {
	case enums.DisputeResolutionBuyerRefund:
		s.notifyDispute(ctx, dispute, enums.NotificationAudienceSeller, dispute.SellerID,
			enums.NotificationTypeRepaymentRequired, "Dispute resolved against you",
			fmt.Sprintf("Dispute resolved in the buyer's favor; %s returned", money.Format(dispute.AmountMinor, dispute.Currency)),
			enums.NotificationSeverityWarning)
		s.notifyRefund(ctx, dispute)
	case enums.DisputeResolutionPartialRefund:
		s.notifyRefund(ctx, dispute)
	case enums.DisputeResolutionSellerKeep:
		s.notifyDispute(ctx, dispute, enums.NotificationAudienceSeller, dispute.SellerID,
			enums.NotificationTypeDisputeResolved, "Dispute resolved",
			"Dispute resolved in your favor; funds released", enums.NotificationSeverityInfo)
	}
	return dispute, nil
}

// FlagStale marks open disputes older than the cutoff as escalated and emits
// an admin alert for each. Escalation raises visibility only; it never
// resolves the dispute.
func (s *service) FlagStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := s.repo.ListStale(ctx, olderThan, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale disputes")
	}

	flagged := 0
	for i := range stale {
		dispute := stale[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			now := time.Now()
			if err := s.repo.WithTx(tx).UpdateDispute(ctx, dispute.ID, map[string]any{
				"escalated_at": now,
			}); err != nil {
				return err
			}
			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDisputeEscalated,
				AggregateType: enums.AggregateDispute,
				AggregateID:   dispute.ID,
				Version:       1,
				Data:          s.eventPayload(&dispute, nil),
			})
		})
		if err != nil {
			logCtx := s.logg.WithOrderID(ctx, dispute.OrderID.String())
			s.logg.Error(logCtx, "dispute escalation failed", err)
			continue
		}
		flagged++
		s.notifyDispute(ctx, &dispute, enums.NotificationAudienceAdmin, dispute.SellerID,
			enums.NotificationTypeDisputeEscalated, "Dispute needs attention",
			fmt.Sprintf("Dispute open since %s without resolution", dispute.CreatedAt.Format(time.RFC3339)),
			enums.NotificationSeverityCritical)
	}
	return flagged, nil
}

// HasOpenDispute satisfies the escrow sweep's dispute check.
func (s *service) HasOpenDispute(ctx context.Context, orderID uuid.UUID) (bool, error) {
	count, err := s.repo.CountOpenByOrder(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open disputes")
	}
	return count > 0, nil
}

// refundInTx applies a full or partial refund resolution, then the dispute's
// terminal update. While the hold is active the money moves through escrow;
// once the hold has settled to the seller the refund is charged back against
// the seller's available balance instead.
func (s *service) refundInTx(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, refundType enums.RefundType, amountMinor int64, actor outbox.ActorRef) error {
	current, err := s.escrow.HoldForOrder(ctx, tx, dispute.OrderID)
	if err != nil {
		return err
	}
	if refundType == enums.RefundTypeFull {
		amountMinor = dispute.AmountMinor
	}

	var fullyRefunded, settled bool
	switch current.Status {
	case enums.HoldStatusActive:
		var hold *models.PaymentHold
		if refundType == enums.RefundTypeFull {
			hold, err = s.escrow.RefundAllTx(ctx, tx, dispute.OrderID, &actor)
		} else {
			hold, err = s.escrow.RefundTx(ctx, tx, dispute.OrderID, amountMinor, &actor)
		}
		if err != nil {
			return err
		}
		fullyRefunded = hold.Status == enums.HoldStatusRefunded
	case enums.HoldStatusReleased, enums.HoldStatusExpired:
		settled = true
		fullyRefunded = refundType == enums.RefundTypeFull
		orderID := dispute.OrderID
		if _, err := s.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			SellerID:    dispute.SellerID,
			OrderID:     &orderID,
			Type:        enums.LedgerEntryTypeRefundCompleted,
			AmountMinor: -amountMinor,
			Currency:    dispute.Currency,
			Status:      enums.LedgerEntryStatusCompleted,
			Description: "dispute refund charged back after escrow release",
		}); err != nil {
			return err
		}
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "order funds were already refunded")
	}

	now := time.Now()
	dispute.Status = enums.DisputeStatusRefunded
	dispute.RefundType = &refundType
	dispute.ResolutionAmountMinor = &amountMinor
	dispute.ResolvedAt = &now
	if err := s.repo.WithTx(tx).UpdateDispute(ctx, dispute.ID, map[string]any{
		"status":                  enums.DisputeStatusRefunded,
		"refund_type":             refundType,
		"resolution_amount_minor": amountMinor,
		"resolved_at":             now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund resolution")
	}

	// a partial refund leaves the remainder held in escrow; after settlement
	// the seller keeps whatever the charge-back did not claw back
	payoutStatus := enums.PayoutStatusInEscrow
	switch {
	case fullyRefunded:
		payoutStatus = enums.PayoutStatusRefunded
	case settled:
		payoutStatus = enums.PayoutStatusPaid
	}
	if err := s.orders.WithTx(tx).UpdateOrder(ctx, dispute.OrderID, map[string]any{
		"payout_status": payoutStatus,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payout status")
	}

	resolution := enums.DisputeResolutionBuyerRefund
	if refundType == enums.RefundTypePartial {
		resolution = enums.DisputeResolutionPartialRefund
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDisputeResolved,
		AggregateType: enums.AggregateDispute,
		AggregateID:   dispute.ID,
		Version:       1,
		Actor:         &actor,
		Data:          s.eventPayload(dispute, &resolution),
	})
}

// sellerKeepInTx resolves in the seller's favor: the hold releases and a
// zero-amount sale entry documents the decision even though no money moved.
func (s *service) sellerKeepInTx(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, actor outbox.ActorRef) error {
	if _, err := s.escrow.ReleaseTx(ctx, tx, dispute.OrderID, &actor); err != nil {
		return err
	}

	orderID := dispute.OrderID
	if _, err := s.ledger.AppendTx(ctx, tx, ledger.AppendInput{
		SellerID:    dispute.SellerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeSale,
		AmountMinor: 0,
		Currency:    dispute.Currency,
		Status:      enums.LedgerEntryStatusCompleted,
		Description: fmt.Sprintf("dispute %s resolved in seller's favor", dispute.ID),
	}); err != nil {
		return err
	}

	now := time.Now()
	dispute.Status = enums.DisputeStatusReturnRejected
	dispute.ResolvedAt = &now
	if err := s.repo.WithTx(tx).UpdateDispute(ctx, dispute.ID, map[string]any{
		"status":      enums.DisputeStatusReturnRejected,
		"resolved_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record seller keep resolution")
	}

	if err := s.orders.WithTx(tx).UpdateOrder(ctx, dispute.OrderID, map[string]any{
		"payout_status": enums.PayoutStatusPaid,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payout status")
	}

	resolution := enums.DisputeResolutionSellerKeep
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDisputeResolved,
		AggregateType: enums.AggregateDispute,
		AggregateID:   dispute.ID,
		Version:       1,
		Actor:         &actor,
		Data:          s.eventPayload(dispute, &resolution),
	})
}

func (s *service) loadDispute(ctx context.Context, repo Repository, disputeID uuid.UUID) (*models.Dispute, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	dispute, err := repo.FindDispute(ctx, disputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}

func (s *service) eventPayload(dispute *models.Dispute, resolution *enums.DisputeResolution) DisputeEvent {
	return DisputeEvent{
		DisputeID:   dispute.ID,
		OrderID:     dispute.OrderID,
		BuyerID:     dispute.BuyerID,
		SellerID:    dispute.SellerID,
		Status:      dispute.Status,
		Resolution:  resolution,
		AmountMinor: dispute.AmountMinor,
	}
}

func (s *service) notifyDispute(ctx context.Context, dispute *models.Dispute, audience enums.NotificationAudience, recipientID uuid.UUID, notifType enums.NotificationType, title, message string, severity enums.NotificationSeverity) {
	err := s.notifier.Notify(ctx, notify.Event{
		Audience:          audience,
		RecipientID:       recipientID,
		Type:              notifType,
		RelatedEntityID:   dispute.ID,
		RelatedEntityType: "dispute",
		Title:             title,
		Message:           message,
		Severity:          severity,
	})
	if err != nil {
		logCtx := s.logg.WithOrderID(ctx, dispute.OrderID.String())
		s.logg.Error(logCtx, "dispute notification failed", err)
	}
}

func (s *service) notifyRefund(ctx context.Context, dispute *models.Dispute) {
	amount := dispute.AmountMinor
	if dispute.ResolutionAmountMinor != nil {
		amount = *dispute.ResolutionAmountMinor
	}
	s.notifyDispute(ctx, dispute, enums.NotificationAudienceBuyer, dispute.BuyerID,
		enums.NotificationTypeRefundIssued, "Refund issued",
		fmt.Sprintf("Refund of %s issued for your order", money.Format(amount, dispute.Currency)),
		enums.NotificationSeverityInfo)
}

func invalidDisputeMove(from, to enums.DisputeStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("cannot move dispute from %s to %s", from, to))
}

func newRMANumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RMA-%s-%s", time.Now().Format("20060102"), suffix)
}

// OpenDisputeChecker answers open-dispute checks straight from the
// repository. It lets callers that only need the check avoid the full
// service and its dependency on escrow.
type OpenDisputeChecker struct {
	repo Repository
}

// NewOpenDisputeChecker builds a repository-backed open dispute check.
func NewOpenDisputeChecker(repo Repository) *OpenDisputeChecker {
	return &OpenDisputeChecker{repo: repo}
}

func (c *OpenDisputeChecker) HasOpenDispute(ctx context.Context, orderID uuid.UUID) (bool, error) {
	count, err := c.repo.CountOpenByOrder(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open disputes")
	}
	return count > 0, nil
}
