package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/internal/escrow"
	"github.com/nnamdiosuji/okrika-backend/internal/notify"
	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubNotifier struct {
	events []notify.Event
}

func (s *stubNotifier) Notify(ctx context.Context, event notify.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubNotifier) NotifyTx(ctx context.Context, tx *gorm.DB, event notify.Event) error {
	return s.Notify(ctx, event)
}

type stubOrderRepo struct {
	orders      map[uuid.UUID]*models.Order
	payments    map[uuid.UUID]*models.Payment
	transitions []models.OrderTransition

	orderUpdates   []map[string]any
	paymentUpdates []map[string]any
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders:   make(map[uuid.UUID]*models.Order),
		payments: make(map[uuid.UUID]*models.Payment),
	}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrderRepo) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.orderUpdates = append(s.orderUpdates, updates)
	order := s.orders[id]
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	if payout, ok := updates["payout_status"].(enums.PayoutStatus); ok {
		order.PayoutStatus = payout
	}
	return nil
}

func (s *stubOrderRepo) CreateTransition(ctx context.Context, transition *models.OrderTransition) error {
	if transition.ID == uuid.Nil {
		transition.ID = uuid.New()
	}
	s.transitions = append(s.transitions, *transition)
	return nil
}

func (s *stubOrderRepo) ListTransitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderTransition, error) {
	var out []models.OrderTransition
	for _, tr := range s.transitions {
		if tr.OrderID == orderID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (s *stubOrderRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	s.payments[payment.ID] = payment
	return nil
}

func (s *stubOrderRepo) FindPaymentByProviderReference(ctx context.Context, reference string) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.ProviderReference == reference {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.paymentUpdates = append(s.paymentUpdates, updates)
	payment := s.payments[id]
	if status, ok := updates["status"].(enums.PaymentStatus); ok {
		payment.Status = status
	}
	return nil
}

type fakeEscrow struct {
	holds     []escrow.CreateHoldInput
	released  []uuid.UUID
	refunded  []uuid.UUID
	refundErr error
}

func (f *fakeEscrow) CreateHold(ctx context.Context, tx *gorm.DB, input escrow.CreateHoldInput) (*models.PaymentHold, error) {
	f.holds = append(f.holds, input)
	return &models.PaymentHold{ID: uuid.New(), OrderID: input.OrderID, Status: enums.HoldStatusActive}, nil
}

func (f *fakeEscrow) HoldForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.PaymentHold, error) {
	return &models.PaymentHold{OrderID: orderID, Status: enums.HoldStatusActive}, nil
}

func (f *fakeEscrow) Release(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	return f.ReleaseTx(ctx, nil, orderID, actor)
}

func (f *fakeEscrow) ReleaseTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	f.released = append(f.released, orderID)
	return &models.PaymentHold{OrderID: orderID, Status: enums.HoldStatusReleased}, nil
}

func (f *fakeEscrow) Refund(ctx context.Context, orderID uuid.UUID, amountMinor int64, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	return nil, nil
}

func (f *fakeEscrow) RefundTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amountMinor int64, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	return nil, nil
}

func (f *fakeEscrow) RefundAllTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refunded = append(f.refunded, orderID)
	return &models.PaymentHold{OrderID: orderID, Status: enums.HoldStatusRefunded}, nil
}

func (f *fakeEscrow) Expire(ctx context.Context, holdID uuid.UUID) (*models.PaymentHold, error) {
	return nil, nil
}

func (f *fakeEscrow) ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	return 0, nil
}

func newTestService(t *testing.T, repo *stubOrderRepo, esc *fakeEscrow, ob *stubOutbox, notifier *stubNotifier) Service {
	t.Helper()
	svc, err := NewService(repo, esc, stubTxRunner{}, ob, notifier,
		logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedOrder(repo *stubOrderRepo, status enums.OrderStatus) *models.Order {
	order := &models.Order{
		ID:             uuid.New(),
		BuyerID:        uuid.New(),
		SellerID:       uuid.New(),
		ListingID:      uuid.New(),
		AmountMinor:    500000,
		Currency:       enums.CurrencyNGN,
		Status:         status,
		DeliveryStatus: enums.DeliveryStatusNotShipped,
		PayoutStatus:   enums.PayoutStatusInEscrow,
	}
	repo.orders[order.ID] = order
	return order
}

func TestCreateWritesOrderAndPendingPayment(t *testing.T) {
	repo := newStubOrderRepo()
	svc := newTestService(t, repo, &fakeEscrow{}, &stubOutbox{}, &stubNotifier{})

	order, err := svc.Create(context.Background(), CreateOrderInput{
		BuyerID:           uuid.New(),
		SellerID:          uuid.New(),
		ListingID:         uuid.New(),
		AmountMinor:       750000,
		Currency:          enums.CurrencyNGN,
		ProviderReference: "sq_pay_123",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if order.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing order, got %s", order.Status)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(repo.payments))
	}
	for _, payment := range repo.payments {
		if payment.Status != enums.PaymentStatusPending {
			t.Fatalf("expected pending payment, got %s", payment.Status)
		}
		if payment.OrderID != order.ID {
			t.Fatalf("payment bound to wrong order")
		}
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t, newStubOrderRepo(), &fakeEscrow{}, &stubOutbox{}, &stubNotifier{})

	cases := []struct {
		name  string
		input CreateOrderInput
	}{
		{"missing buyer", CreateOrderInput{SellerID: uuid.New(), ListingID: uuid.New(), AmountMinor: 1000, Currency: enums.CurrencyNGN, ProviderReference: "ref"}},
		{"zero amount", CreateOrderInput{BuyerID: uuid.New(), SellerID: uuid.New(), ListingID: uuid.New(), Currency: enums.CurrencyNGN, ProviderReference: "ref"}},
		{"bad currency", CreateOrderInput{BuyerID: uuid.New(), SellerID: uuid.New(), ListingID: uuid.New(), AmountMinor: 1000, Currency: "XYZ", ProviderReference: "ref"}},
		{"blank reference", CreateOrderInput{BuyerID: uuid.New(), SellerID: uuid.New(), ListingID: uuid.New(), AmountMinor: 1000, Currency: enums.CurrencyNGN, ProviderReference: "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestTransitionDeliveredReleasesEscrow(t *testing.T) {
	repo := newStubOrderRepo()
	esc := &fakeEscrow{}
	ob := &stubOutbox{}
	notifier := &stubNotifier{}
	svc := newTestService(t, repo, esc, ob, notifier)
	order := seedOrder(repo, enums.OrderStatusShipped)

	updated, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusDelivered,
		Reason:    "courier confirmed delivery",
		Actor:     outbox.ActorRef{UserID: order.BuyerID},
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", updated.Status)
	}
	if updated.PayoutStatus != enums.PayoutStatusPaid {
		t.Fatalf("expected payout status paid, got %s", updated.PayoutStatus)
	}
	if len(esc.released) != 1 || esc.released[0] != order.ID {
		t.Fatalf("expected escrow release for order, got %v", esc.released)
	}
	if len(repo.transitions) != 1 {
		t.Fatalf("expected one audit row, got %d", len(repo.transitions))
	}
	if repo.transitions[0].FromStatus != enums.OrderStatusShipped || repo.transitions[0].ToStatus != enums.OrderStatusDelivered {
		t.Fatalf("audit row has wrong statuses: %+v", repo.transitions[0])
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventOrderTransitioned {
		t.Fatalf("expected one order_transitioned event, got %v", ob.events)
	}
	// buyer and seller both hear about it
	if len(notifier.events) != 2 {
		t.Fatalf("expected two notifications, got %d", len(notifier.events))
	}
}

func TestTransitionCanceledRefundsHold(t *testing.T) {
	repo := newStubOrderRepo()
	esc := &fakeEscrow{}
	svc := newTestService(t, repo, esc, &stubOutbox{}, &stubNotifier{})
	order := seedOrder(repo, enums.OrderStatusProcessing)

	updated, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCanceled,
		Reason:    "buyer canceled before shipment",
		Actor:     outbox.ActorRef{UserID: order.BuyerID},
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.PayoutStatus != enums.PayoutStatusRefunded {
		t.Fatalf("expected payout status refunded, got %s", updated.PayoutStatus)
	}
	if len(esc.refunded) != 1 || esc.refunded[0] != order.ID {
		t.Fatalf("expected full refund for order, got %v", esc.refunded)
	}
}

func TestTransitionCanceledWithoutHoldStillCancels(t *testing.T) {
	repo := newStubOrderRepo()
	esc := &fakeEscrow{refundErr: pkgerrors.New(pkgerrors.CodeNotFound, "no hold recorded for order")}
	svc := newTestService(t, repo, esc, &stubOutbox{}, &stubNotifier{})
	order := seedOrder(repo, enums.OrderStatusProcessing)

	updated, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusCanceled,
		Reason:    "payment never arrived",
		Actor:     outbox.ActorRef{UserID: order.SellerID},
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != enums.OrderStatusCanceled {
		t.Fatalf("expected canceled, got %s", updated.Status)
	}
	// no funds were held, so payout status stays untouched
	if updated.PayoutStatus != enums.PayoutStatusInEscrow {
		t.Fatalf("expected payout status unchanged, got %s", updated.PayoutStatus)
	}
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	repo := newStubOrderRepo()
	svc := newTestService(t, repo, &fakeEscrow{}, &stubOutbox{}, &stubNotifier{})
	order := seedOrder(repo, enums.OrderStatusProcessing)

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusDelivered,
		Reason:    "skipping shipment",
		Actor:     outbox.ActorRef{UserID: order.SellerID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if !strings.Contains(err.Error(), "shipped") || !strings.Contains(err.Error(), "canceled") {
		t.Fatalf("error should list allowed statuses, got %q", err.Error())
	}
	if len(repo.transitions) != 0 {
		t.Fatalf("rejected transition must not write audit rows")
	}
}

func TestTransitionRejectsTerminalStatus(t *testing.T) {
	repo := newStubOrderRepo()
	svc := newTestService(t, repo, &fakeEscrow{}, &stubOutbox{}, &stubNotifier{})
	order := seedOrder(repo, enums.OrderStatusCanceled)

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   order.ID,
		NewStatus: enums.OrderStatusShipped,
		Reason:    "reviving order",
		Actor:     outbox.ActorRef{UserID: order.SellerID},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("expected terminal status error, got %q", err.Error())
	}
}

func TestMarkPaymentConfirmedOpensHold(t *testing.T) {
	repo := newStubOrderRepo()
	esc := &fakeEscrow{}
	ob := &stubOutbox{}
	notifier := &stubNotifier{}
	svc := newTestService(t, repo, esc, ob, notifier)
	order := seedOrder(repo, enums.OrderStatusProcessing)
	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		ProviderReference: "sq_pay_456",
		AmountMinor:       order.AmountMinor,
		Currency:          enums.CurrencyNGN,
		Status:            enums.PaymentStatusPending,
	}
	repo.payments[payment.ID] = payment

	_, err := svc.MarkPaymentConfirmed(context.Background(), PaymentConfirmation{
		ProviderReference: "sq_pay_456",
		AmountMinor:       order.AmountMinor,
		Currency:          enums.CurrencyNGN,
	})
	if err != nil {
		t.Fatalf("MarkPaymentConfirmed: %v", err)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", payment.Status)
	}
	if len(esc.holds) != 1 {
		t.Fatalf("expected one escrow hold, got %d", len(esc.holds))
	}
	if esc.holds[0].AmountMinor != order.AmountMinor || esc.holds[0].SellerID != order.SellerID {
		t.Fatalf("hold carries wrong fields: %+v", esc.holds[0])
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventPaymentConfirmed {
		t.Fatalf("expected payment_confirmed event, got %v", ob.events)
	}
	if len(notifier.events) != 1 || notifier.events[0].Audience != enums.NotificationAudienceSeller {
		t.Fatalf("expected seller notification, got %v", notifier.events)
	}
}

func TestMarkPaymentConfirmedIsIdempotent(t *testing.T) {
	repo := newStubOrderRepo()
	esc := &fakeEscrow{}
	ob := &stubOutbox{}
	svc := newTestService(t, repo, esc, ob, &stubNotifier{})
	order := seedOrder(repo, enums.OrderStatusProcessing)
	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		ProviderReference: "sq_pay_789",
		AmountMinor:       order.AmountMinor,
		Currency:          enums.CurrencyNGN,
		Status:            enums.PaymentStatusCompleted,
	}
	repo.payments[payment.ID] = payment

	_, err := svc.MarkPaymentConfirmed(context.Background(), PaymentConfirmation{
		ProviderReference: "sq_pay_789",
		AmountMinor:       order.AmountMinor,
	})
	if err != nil {
		t.Fatalf("MarkPaymentConfirmed: %v", err)
	}
	if len(esc.holds) != 0 {
		t.Fatalf("re-delivered confirmation must not open a second hold")
	}
	if len(ob.events) != 0 {
		t.Fatalf("re-delivered confirmation must not emit events")
	}
}

func TestMarkPaymentConfirmedRejectsAmountMismatch(t *testing.T) {
	repo := newStubOrderRepo()
	svc := newTestService(t, repo, &fakeEscrow{}, &stubOutbox{}, &stubNotifier{})
	order := seedOrder(repo, enums.OrderStatusProcessing)
	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		ProviderReference: "sq_pay_999",
		AmountMinor:       order.AmountMinor,
		Currency:          enums.CurrencyNGN,
		Status:            enums.PaymentStatusPending,
	}
	repo.payments[payment.ID] = payment

	_, err := svc.MarkPaymentConfirmed(context.Background(), PaymentConfirmation{
		ProviderReference: "sq_pay_999",
		AmountMinor:       order.AmountMinor - 1,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment must stay pending on mismatch, got %s", payment.Status)
	}
}

func TestMarkPaymentFailed(t *testing.T) {
	repo := newStubOrderRepo()
	svc := newTestService(t, repo, &fakeEscrow{}, &stubOutbox{}, &stubNotifier{})
	order := seedOrder(repo, enums.OrderStatusProcessing)
	payment := &models.Payment{
		ID:                uuid.New(),
		OrderID:           order.ID,
		ProviderReference: "sq_pay_fail",
		AmountMinor:       order.AmountMinor,
		Currency:          enums.CurrencyNGN,
		Status:            enums.PaymentStatusPending,
	}
	repo.payments[payment.ID] = payment

	if err := svc.MarkPaymentFailed(context.Background(), "sq_pay_fail", "card declined"); err != nil {
		t.Fatalf("MarkPaymentFailed: %v", err)
	}
	if payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", payment.Status)
	}

	// terminal payments are left alone
	if err := svc.MarkPaymentFailed(context.Background(), "sq_pay_fail", "retry webhook"); err != nil {
		t.Fatalf("repeat MarkPaymentFailed: %v", err)
	}
	if len(repo.paymentUpdates) != 1 {
		t.Fatalf("expected a single payment update, got %d", len(repo.paymentUpdates))
	}
}
