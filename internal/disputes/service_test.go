package disputes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/internal/escrow"
	"github.com/nnamdiosuji/okrika-backend/internal/ledger"
	"github.com/nnamdiosuji/okrika-backend/internal/notify"
	"github.com/nnamdiosuji/okrika-backend/internal/orders"
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

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return s.Emit(ctx, tx, event)
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

type stubDisputeRepo struct {
	disputes map[uuid.UUID]*models.Dispute
	stale    []models.Dispute
}

func newStubDisputeRepo() *stubDisputeRepo {
	return &stubDisputeRepo{disputes: make(map[uuid.UUID]*models.Dispute)}
}

func (s *stubDisputeRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubDisputeRepo) CreateDispute(ctx context.Context, dispute *models.Dispute) error {
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	s.disputes[dispute.ID] = dispute
	return nil
}

func (s *stubDisputeRepo) FindDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	dispute, ok := s.disputes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *dispute
	return &copied, nil
}

func (s *stubDisputeRepo) UpdateDispute(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	dispute := s.disputes[id]
	if status, ok := updates["status"].(enums.DisputeStatus); ok {
		dispute.Status = status
	}
	if rma, ok := updates["rma_number"].(string); ok {
		dispute.RMANumber = &rma
	}
	if refundType, ok := updates["refund_type"].(enums.RefundType); ok {
		dispute.RefundType = &refundType
	}
	if amount, ok := updates["resolution_amount_minor"].(int64); ok {
		dispute.ResolutionAmountMinor = &amount
	}
	if escalated, ok := updates["escalated_at"].(time.Time); ok {
		dispute.EscalatedAt = &escalated
	}
	return nil
}

func (s *stubDisputeRepo) CountOpenByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	for _, dispute := range s.disputes {
		if dispute.OrderID == orderID && !dispute.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (s *stubDisputeRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Dispute, error) {
	return s.stale, nil
}

type stubOrderRepo struct {
	orders  map[uuid.UUID]*models.Order
	updates map[uuid.UUID][]map[string]any
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders:  make(map[uuid.UUID]*models.Order),
		updates: make(map[uuid.UUID][]map[string]any),
	}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) error {
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
	s.updates[id] = append(s.updates[id], updates)
	order := s.orders[id]
	if payout, ok := updates["payout_status"].(enums.PayoutStatus); ok {
		order.PayoutStatus = payout
	}
	return nil
}

func (s *stubOrderRepo) CreateTransition(ctx context.Context, transition *models.OrderTransition) error {
	return nil
}

func (s *stubOrderRepo) ListTransitions(ctx context.Context, orderID uuid.UUID) ([]models.OrderTransition, error) {
	return nil, nil
}

func (s *stubOrderRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (s *stubOrderRepo) FindPaymentByProviderReference(ctx context.Context, reference string) (*models.Payment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

type fakeEscrow struct {
	remaining  int64
	holdStatus enums.HoldStatus // zero value means active
	released   []uuid.UUID
	refunds    []int64
}

func (f *fakeEscrow) CreateHold(ctx context.Context, tx *gorm.DB, input escrow.CreateHoldInput) (*models.PaymentHold, error) {
	return nil, nil
}

func (f *fakeEscrow) HoldForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.PaymentHold, error) {
	status := f.holdStatus
	if status == "" {
		status = enums.HoldStatusActive
	}
	return &models.PaymentHold{OrderID: orderID, AmountMinor: f.remaining, Status: status}, nil
}

func (f *fakeEscrow) Release(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	return f.ReleaseTx(ctx, nil, orderID, actor)
}

func (f *fakeEscrow) ReleaseTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	f.released = append(f.released, orderID)
	return &models.PaymentHold{OrderID: orderID, Status: enums.HoldStatusReleased}, nil
}

func (f *fakeEscrow) Refund(ctx context.Context, orderID uuid.UUID, amountMinor int64, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	return f.RefundTx(ctx, nil, orderID, amountMinor, actor)
}

func (f *fakeEscrow) RefundTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amountMinor int64, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	if amountMinor > f.remaining {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds held amount")
	}
	f.refunds = append(f.refunds, amountMinor)
	f.remaining -= amountMinor
	status := enums.HoldStatusActive
	if f.remaining == 0 {
		status = enums.HoldStatusRefunded
	}
	return &models.PaymentHold{OrderID: orderID, AmountMinor: f.remaining, Status: status}, nil
}

func (f *fakeEscrow) RefundAllTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.PaymentHold, error) {
	return f.RefundTx(ctx, tx, orderID, f.remaining, actor)
}

func (f *fakeEscrow) Expire(ctx context.Context, holdID uuid.UUID) (*models.PaymentHold, error) {
	return nil, nil
}

func (f *fakeEscrow) ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	return 0, nil
}

type fakeLedger struct {
	appended []ledger.AppendInput
}

func (f *fakeLedger) Append(ctx context.Context, input ledger.AppendInput) (*models.LedgerEntry, error) {
	f.appended = append(f.appended, input)
	return &models.LedgerEntry{}, nil
}

func (f *fakeLedger) AppendTx(ctx context.Context, tx *gorm.DB, input ledger.AppendInput) (*models.LedgerEntry, error) {
	return f.Append(ctx, input)
}

func (f *fakeLedger) AppendCorrection(ctx context.Context, originalID uuid.UUID, description string) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{}, nil
}

func (f *fakeLedger) CompleteSaleEntry(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{Status: enums.LedgerEntryStatusCompleted}, nil
}

func (f *fakeLedger) Balance(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (*ledger.Balance, error) {
	return &ledger.Balance{}, nil
}

func (f *fakeLedger) Entries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

type fixture struct {
	svc      Service
	repo     *stubDisputeRepo
	orders   *stubOrderRepo
	escrow   *fakeEscrow
	ledger   *fakeLedger
	outbox   *stubOutbox
	notifier *stubNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newStubDisputeRepo(),
		orders:   newStubOrderRepo(),
		escrow:   &fakeEscrow{remaining: 500000},
		ledger:   &fakeLedger{},
		outbox:   &stubOutbox{},
		notifier: &stubNotifier{},
	}
	svc, err := NewService(f.repo, f.orders, f.escrow, f.ledger, stubTxRunner{}, f.outbox, f.notifier,
		logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedOrder() *models.Order {
	order := &models.Order{
		ID:           uuid.New(),
		BuyerID:      uuid.New(),
		SellerID:     uuid.New(),
		ListingID:    uuid.New(),
		AmountMinor:  500000,
		Currency:     enums.CurrencyNGN,
		Status:       enums.OrderStatusDelivered,
		PayoutStatus: enums.PayoutStatusInEscrow,
	}
	f.orders.orders[order.ID] = order
	return order
}

func (f *fixture) seedDispute(order *models.Order, status enums.DisputeStatus) *models.Dispute {
	dispute := &models.Dispute{
		ID:          uuid.New(),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		Reason:      "item not as described",
		Status:      status,
	}
	f.repo.disputes[dispute.ID] = dispute
	return dispute
}

func TestInitiateFlagsOrderDisputed(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()

	dispute, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Reason:  "item arrived damaged",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if dispute.Status != enums.DisputeStatusPending {
		t.Fatalf("expected pending dispute, got %s", dispute.Status)
	}
	if dispute.AmountMinor != order.AmountMinor {
		t.Fatalf("dispute should carry the order amount")
	}
	if order.PayoutStatus != enums.PayoutStatusDisputed {
		t.Fatalf("expected disputed payout status, got %s", order.PayoutStatus)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventDisputeOpened {
		t.Fatalf("expected dispute_opened event, got %v", f.outbox.events)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].Audience != enums.NotificationAudienceSeller {
		t.Fatalf("expected seller notification, got %v", f.notifier.events)
	}
}

func TestInitiateRejectsSecondOpenDispute(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	f.seedDispute(order, enums.DisputeStatusPending)

	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		Reason:  "second complaint",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestInitiateRejectsNonBuyer(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()

	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		BuyerID: uuid.New(),
		Reason:  "not my order",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReturnFlowAssignsRMA(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	if _, err := f.svc.RequestReturn(context.Background(), dispute.ID, order.BuyerID); err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}

	approved, err := f.svc.ApproveReturn(context.Background(), dispute.ID, outbox.ActorRef{UserID: order.SellerID})
	if err != nil {
		t.Fatalf("ApproveReturn: %v", err)
	}
	if approved.Status != enums.DisputeStatusReturnApproved {
		t.Fatalf("expected return_approved, got %s", approved.Status)
	}
	if approved.RMANumber == nil || !strings.HasPrefix(*approved.RMANumber, "RMA-") {
		t.Fatalf("expected RMA number, got %v", approved.RMANumber)
	}
}

func TestProcessRefundRefundsFullHold(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusReturnApproved)

	refunded, err := f.svc.ProcessRefund(context.Background(), dispute.ID, outbox.ActorRef{UserID: order.SellerID})
	if err != nil {
		t.Fatalf("ProcessRefund: %v", err)
	}
	if refunded.Status != enums.DisputeStatusRefunded {
		t.Fatalf("expected refunded dispute, got %s", refunded.Status)
	}
	if refunded.RefundType == nil || *refunded.RefundType != enums.RefundTypeFull {
		t.Fatalf("expected full refund type, got %v", refunded.RefundType)
	}
	if f.escrow.remaining != 0 {
		t.Fatalf("expected hold fully refunded, %d remaining", f.escrow.remaining)
	}
	if f.orders.orders[order.ID].PayoutStatus != enums.PayoutStatusRefunded {
		t.Fatalf("expected refunded payout status, got %s", f.orders.orders[order.ID].PayoutStatus)
	}
}

func TestProcessRefundRequiresApprovedReturn(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	_, err := f.svc.ProcessRefund(context.Background(), dispute.ID, outbox.ActorRef{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestResolvePartialRefundLeavesRemainderHeld(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	resolved, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID:   dispute.ID,
		Resolution:  enums.DisputeResolutionPartialRefund,
		AmountMinor: 150000,
		Actor:       outbox.ActorRef{UserID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != enums.DisputeStatusRefunded {
		t.Fatalf("expected refunded dispute, got %s", resolved.Status)
	}
	if resolved.RefundType == nil || *resolved.RefundType != enums.RefundTypePartial {
		t.Fatalf("expected partial refund type, got %v", resolved.RefundType)
	}
	if resolved.ResolutionAmountMinor == nil || *resolved.ResolutionAmountMinor != 150000 {
		t.Fatalf("expected resolution amount 150000, got %v", resolved.ResolutionAmountMinor)
	}
	if f.escrow.remaining != 350000 {
		t.Fatalf("expected 350000 still held, got %d", f.escrow.remaining)
	}
	// remainder stays in escrow, so the order is no longer disputed
	if f.orders.orders[order.ID].PayoutStatus != enums.PayoutStatusInEscrow {
		t.Fatalf("expected in_escrow payout status, got %s", f.orders.orders[order.ID].PayoutStatus)
	}
}

func TestResolveRefundAfterReleaseChargesSellerBack(t *testing.T) {
	f := newFixture(t)
	f.escrow.holdStatus = enums.HoldStatusReleased
	order := f.seedOrder()
	order.PayoutStatus = enums.PayoutStatusPaid
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	resolved, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID:  dispute.ID,
		Resolution: enums.DisputeResolutionBuyerRefund,
		Actor:      outbox.ActorRef{UserID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != enums.DisputeStatusRefunded {
		t.Fatalf("expected refunded dispute, got %s", resolved.Status)
	}
	if len(f.escrow.refunds) != 0 {
		t.Fatalf("settled hold must not be refunded through escrow, got %v", f.escrow.refunds)
	}
	if len(f.ledger.appended) != 1 {
		t.Fatalf("expected one seller debit entry, got %d", len(f.ledger.appended))
	}
	entry := f.ledger.appended[0]
	if entry.Type != enums.LedgerEntryTypeRefundCompleted || entry.Status != enums.LedgerEntryStatusCompleted {
		t.Fatalf("expected completed refund debit, got %s/%s", entry.Type, entry.Status)
	}
	if entry.AmountMinor != -order.AmountMinor {
		t.Fatalf("debit amount = %d, want %d", entry.AmountMinor, -order.AmountMinor)
	}
	if f.orders.orders[order.ID].PayoutStatus != enums.PayoutStatusRefunded {
		t.Fatalf("expected refunded payout status, got %s", f.orders.orders[order.ID].PayoutStatus)
	}
}

func TestResolveRefundOnRefundedHoldConflicts(t *testing.T) {
	f := newFixture(t)
	f.escrow.holdStatus = enums.HoldStatusRefunded
	f.escrow.remaining = 0
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID:  dispute.ID,
		Resolution: enums.DisputeResolutionBuyerRefund,
		Actor:      outbox.ActorRef{UserID: uuid.New()},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.repo.disputes[dispute.ID].Status != enums.DisputeStatusPending {
		t.Fatalf("dispute must stay pending, got %s", f.repo.disputes[dispute.ID].Status)
	}
	if len(f.ledger.appended) != 0 {
		t.Fatalf("no ledger entry may be written, got %d", len(f.ledger.appended))
	}
}

func TestResolveSellerKeepWritesZeroAmountAuditEntry(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	resolved, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID:  dispute.ID,
		Resolution: enums.DisputeResolutionSellerKeep,
		Actor:      outbox.ActorRef{UserID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.Status.IsTerminal() {
		t.Fatalf("expected terminal dispute, got %s", resolved.Status)
	}
	if len(f.escrow.released) != 1 {
		t.Fatalf("expected hold release, got %v", f.escrow.released)
	}
	if len(f.ledger.appended) != 1 {
		t.Fatalf("expected one audit ledger entry, got %d", len(f.ledger.appended))
	}
	entry := f.ledger.appended[0]
	if entry.AmountMinor != 0 || entry.Type != enums.LedgerEntryTypeSale || entry.Status != enums.LedgerEntryStatusCompleted {
		t.Fatalf("expected zero-amount completed sale entry, got %+v", entry)
	}
	if f.orders.orders[order.ID].PayoutStatus != enums.PayoutStatusPaid {
		t.Fatalf("expected paid payout status, got %s", f.orders.orders[order.ID].PayoutStatus)
	}
}

func TestResolveBuyerRefundNotifiesSeller(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID:  dispute.ID,
		Resolution: enums.DisputeResolutionBuyerRefund,
		Actor:      outbox.ActorRef{UserID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var repayment bool
	for _, event := range f.notifier.events {
		if event.Type == enums.NotificationTypeRepaymentRequired {
			repayment = true
		}
	}
	if !repayment {
		t.Fatalf("expected repayment_required notification, got %v", f.notifier.events)
	}
}

func TestCancelBuyerOnlyPreRefund(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusReturnRequested)

	if _, err := f.svc.Cancel(context.Background(), dispute.ID, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for non-buyer, got %v", err)
	}

	canceled, err := f.svc.Cancel(context.Background(), dispute.ID, order.BuyerID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != enums.DisputeStatusCanceled {
		t.Fatalf("expected canceled dispute, got %s", canceled.Status)
	}

	if _, err := f.svc.Cancel(context.Background(), dispute.ID, order.BuyerID); !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition on re-cancel, got %v", err)
	}
}

func TestFlagStaleEscalatesWithoutResolving(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder()
	dispute := f.seedDispute(order, enums.DisputeStatusPending)
	dispute.CreatedAt = time.Now().Add(-10 * 24 * time.Hour)
	f.repo.stale = []models.Dispute{*dispute}

	flagged, err := f.svc.FlagStale(context.Background(), time.Now().Add(-7*24*time.Hour), 100)
	if err != nil {
		t.Fatalf("FlagStale: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("expected one escalation, got %d", flagged)
	}
	if f.repo.disputes[dispute.ID].EscalatedAt == nil {
		t.Fatalf("expected escalated_at set")
	}
	if f.repo.disputes[dispute.ID].Status != enums.DisputeStatusPending {
		t.Fatalf("escalation must not change dispute status")
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventDisputeEscalated {
		t.Fatalf("expected dispute_escalated event, got %v", f.outbox.events)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].Audience != enums.NotificationAudienceAdmin {
		t.Fatalf("expected admin notification, got %v", f.notifier.events)
	}
}
