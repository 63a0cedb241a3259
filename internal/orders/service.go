package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/internal/escrow"
	"github.com/nnamdiosuji/okrika-backend/internal/notify"
	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// validTransitions is the full lifecycle table. Statuses absent from the map
// are terminal.
var validTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCanceled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusCanceled},
	enums.OrderStatusDelivered:  {enums.OrderStatusReturned},
}

// CreateOrderInput captures a checkout result: the order plus its pending
// payment attempt.
type CreateOrderInput struct {
	BuyerID           uuid.UUID
	SellerID          uuid.UUID
	ListingID         uuid.UUID
	AmountMinor       int64
	Currency          enums.Currency
	ProviderReference string
}

// TransitionInput carries one requested lifecycle change.
type TransitionInput struct {
	OrderID   uuid.UUID
	NewStatus enums.OrderStatus
	Reason    string
	Actor     outbox.ActorRef
}

// PaymentConfirmation is the webhook-driven settlement signal.
type PaymentConfirmation struct {
	ProviderReference string
	AmountMinor       int64
	Currency          enums.Currency
}

// OrderTransitionedEvent is the outbox payload for accepted transitions.
type OrderTransitionedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	SellerID   uuid.UUID         `json:"seller_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	Reason     string            `json:"reason"`
}

// PaymentConfirmedEvent is the outbox payload for settled payments.
type PaymentConfirmedEvent struct {
	PaymentID   uuid.UUID      `json:"payment_id"`
	OrderID     uuid.UUID      `json:"order_id"`
	SellerID    uuid.UUID      `json:"seller_id"`
	AmountMinor int64          `json:"amount_minor"`
	Currency    enums.Currency `json:"currency"`
}

// Service drives the order lifecycle. Status changes, audit rows, and the
// escrow/ledger side effects of each transition commit as one unit;
// notifications go out only after commit.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderTransition, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	MarkPaymentConfirmed(ctx context.Context, confirmation PaymentConfirmation) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, providerReference string, reason string) error
}

type service struct {
	repo     Repository
	escrow   escrow.Service
	tx       txRunner
	outbox   outboxPublisher
	notifier notify.Emitter
	logg     *logger.Logger
}

// NewService builds an order lifecycle service with the required dependencies.
func NewService(repo Repository, escrowSvc escrow.Service, tx txRunner, ob outboxPublisher, notifier notify.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if escrowSvc == nil {
		return nil, fmt.Errorf("escrow service required")
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
		escrow:   escrowSvc,
		tx:       tx,
		outbox:   ob,
		notifier: notifier,
		logg:     logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil || input.SellerID == uuid.Nil || input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer, seller, and listing ids required")
	}
	if input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if strings.TrimSpace(input.ProviderReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider reference required")
	}

	order := &models.Order{
		BuyerID:        input.BuyerID,
		SellerID:       input.SellerID,
		ListingID:      input.ListingID,
		AmountMinor:    input.AmountMinor,
		Currency:       input.Currency,
		Status:         enums.OrderStatusProcessing,
		DeliveryStatus: enums.DeliveryStatusNotShipped,
		PayoutStatus:   enums.PayoutStatusInEscrow,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		payment := &models.Payment{
			OrderID:           order.ID,
			ProviderReference: input.ProviderReference,
			AmountMinor:       input.AmountMinor,
			Currency:          input.Currency,
			Status:            enums.PaymentStatusPending,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) Transitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderTransition, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	transitions, err := s.repo.ListTransitions(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order transitions")
	}
	return transitions, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transition reason required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		order = loaded

		if err := checkTransition(order.Status, input.NewStatus); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]any{"status": input.NewStatus}
		switch input.NewStatus {
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
			updates["delivery_status"] = enums.DeliveryStatusInTransit
			order.ShippedAt = &now
			order.DeliveryStatus = enums.DeliveryStatusInTransit
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			updates["delivery_status"] = enums.DeliveryStatusDelivered
			order.DeliveredAt = &now
			order.DeliveryStatus = enums.DeliveryStatusDelivered
		case enums.OrderStatusCanceled:
			updates["canceled_at"] = now
			order.CanceledAt = &now
		}

		fromStatus := order.Status
		switch input.NewStatus {
		case enums.OrderStatusDelivered:
			// delivery settles the escrow in the seller's favor
			if _, err := s.escrow.ReleaseTx(ctx, tx, order.ID, &input.Actor); err != nil {
				return err
			}
			updates["payout_status"] = enums.PayoutStatusPaid
			order.PayoutStatus = enums.PayoutStatusPaid
		case enums.OrderStatusCanceled:
			// a cancel while funds are held returns everything to the buyer
			if _, err := s.escrow.RefundAllTx(ctx, tx, order.ID, &input.Actor); err != nil {
				if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
					return err
				}
			} else {
				updates["payout_status"] = enums.PayoutStatusRefunded
				order.PayoutStatus = enums.PayoutStatusRefunded
			}
		}

		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		transition := &models.OrderTransition{
			OrderID:     order.ID,
			FromStatus:  fromStatus,
			ToStatus:    input.NewStatus,
			Reason:      input.Reason,
			ActorUserID: input.Actor.UserID,
		}
		if err := repo.CreateTransition(ctx, transition); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write transition audit row")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderTransitioned,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &input.Actor,
			Data: OrderTransitionedEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				SellerID:   order.SellerID,
				FromStatus: fromStatus,
				ToStatus:   input.NewStatus,
				Reason:     input.Reason,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		order.Status = input.NewStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyTransition(ctx, order, input.Reason)
	return order, nil
}

// MarkPaymentConfirmed settles a pending payment and opens the escrow hold
// in one transaction. Re-delivery of the same confirmation is a no-op.
func (s *service) MarkPaymentConfirmed(ctx context.Context, confirmation PaymentConfirmation) (*models.Order, error) {
	if strings.TrimSpace(confirmation.ProviderReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider reference required")
	}

	var order *models.Order
	var confirmed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindPaymentByProviderReference(ctx, confirmation.ProviderReference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for provider reference")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		order, err = repo.FindOrder(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payment")
		}

		if payment.Status == enums.PaymentStatusCompleted {
			return nil
		}
		if payment.Status == enums.PaymentStatusFailed {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment already failed")
		}
		if confirmation.AmountMinor != 0 && confirmation.AmountMinor != payment.AmountMinor {
			return pkgerrors.New(pkgerrors.CodePreconditionFailed,
				fmt.Sprintf("confirmed amount %d does not match payment amount %d", confirmation.AmountMinor, payment.AmountMinor))
		}

		now := time.Now()
		if err := repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":       enums.PaymentStatusCompleted,
			"completed_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
		}

		if _, err := s.escrow.CreateHold(ctx, tx, escrow.CreateHoldInput{
			PaymentID:   payment.ID,
			OrderID:     order.ID,
			SellerID:    order.SellerID,
			AmountMinor: payment.AmountMinor,
			Currency:    payment.Currency,
		}); err != nil {
			return err
		}

		confirmed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: PaymentConfirmedEvent{
				PaymentID:   payment.ID,
				OrderID:     order.ID,
				SellerID:    order.SellerID,
				AmountMinor: payment.AmountMinor,
				Currency:    payment.Currency,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if confirmed {
		s.notifyPaymentConfirmed(ctx, order)
	}
	return order, nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, providerReference string, reason string) error {
	if strings.TrimSpace(providerReference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider reference required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindPaymentByProviderReference(ctx, providerReference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for provider reference")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status.IsTerminal() {
			return nil
		}
		return repo.UpdatePayment(ctx, payment.ID, map[string]any{
			"status":    enums.PaymentStatusFailed,
			"failed_at": time.Now(),
		})
	})
}

func checkTransition(from, to enums.OrderStatus) error {
	allowed, ok := validTransitions[from]
	if ok {
		for _, candidate := range allowed {
			if candidate == to {
				return nil
			}
		}
	}

	names := make([]string, 0, len(allowed))
	for _, candidate := range allowed {
		names = append(names, string(candidate))
	}
	sort.Strings(names)
	if len(names) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("order status %s is terminal", from))
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("cannot transition order from %s to %s (allowed: %s)", from, to, strings.Join(names, ", ")))
}

// notifyTransition fans out post-commit buyer and seller notifications.
// Failures are logged and swallowed; they never unwind the transition.
func (s *service) notifyTransition(ctx context.Context, order *models.Order, reason string) {
	message := fmt.Sprintf("Order is now %s: %s", order.Status, reason)
	recipients := []struct {
		audience enums.NotificationAudience
		userID   uuid.UUID
	}{
		{enums.NotificationAudienceBuyer, order.BuyerID},
		{enums.NotificationAudienceSeller, order.SellerID},
	}
	for _, recipient := range recipients {
		err := s.notifier.Notify(ctx, notify.Event{
			Audience:          recipient.audience,
			RecipientID:       recipient.userID,
			Type:              enums.NotificationTypeOrderStatusChanged,
			RelatedEntityID:   order.ID,
			RelatedEntityType: "order",
			Title:             "Order update",
			Message:           message,
			Severity:          enums.NotificationSeverityInfo,
		})
		if err != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Error(logCtx, "order transition notification failed", err)
		}
	}
}

func (s *service) notifyPaymentConfirmed(ctx context.Context, order *models.Order) {
	err := s.notifier.Notify(ctx, notify.Event{
		Audience:          enums.NotificationAudienceSeller,
		RecipientID:       order.SellerID,
		Type:              enums.NotificationTypePaymentConfirmed,
		RelatedEntityID:   order.ID,
		RelatedEntityType: "order",
		Title:             "Payment received",
		Message:           "Buyer payment confirmed; funds held in escrow",
		Severity:          enums.NotificationSeverityInfo,
	})
	if err != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "payment confirmation notification failed", err)
	}
}
