package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
)

type stubRepo struct {
	created          []*models.LedgerEntry
	findFn           func(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	findByOrderFn    func(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error)
	hasCorrection    bool
	sums             map[enums.LedgerEntryStatus]int64
	unsettledRefunds []models.LedgerEntry
	issuedPayouts    int64
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	s.created = append(s.created, entry)
	return nil
}

func (s *stubRepo) FindEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindEntryByOrderAndType(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error) {
	if s.findByOrderFn != nil {
		return s.findByOrderFn(ctx, orderID, entryType)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) ListUnsettledRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	return s.unsettledRefunds, nil
}

func (s *stubRepo) ListEntriesBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (s *stubRepo) SumByStatuses(ctx context.Context, sellerID uuid.UUID, currency enums.Currency, statuses []enums.LedgerEntryStatus) (int64, error) {
	var total int64
	for _, status := range statuses {
		total += s.sums[status]
	}
	return total, nil
}

func (s *stubRepo) SumUncorrectedByStatuses(ctx context.Context, sellerID uuid.UUID, currency enums.Currency, statuses []enums.LedgerEntryStatus) (int64, error) {
	return s.SumByStatuses(ctx, sellerID, currency, statuses)
}

func (s *stubRepo) SumIssuedPayouts(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (int64, error) {
	return s.issuedPayouts, nil
}

func (s *stubRepo) HasCorrection(ctx context.Context, entryID uuid.UUID) (bool, error) {
	return s.hasCorrection, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func TestAppendValidatesInput(t *testing.T) {
	repo := &stubRepo{}
	svc, err := NewService(repo, stubTxRunner{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cases := []struct {
		name  string
		input AppendInput
	}{
		{"missing seller", AppendInput{Type: enums.LedgerEntryTypeSale, AmountMinor: 100, Currency: enums.CurrencyNGN, Status: enums.LedgerEntryStatusPending, Description: "x"}},
		{"zero amount", AppendInput{SellerID: uuid.New(), Type: enums.LedgerEntryTypeSale, Currency: enums.CurrencyNGN, Status: enums.LedgerEntryStatusPending, Description: "x"}},
		{"bad type", AppendInput{SellerID: uuid.New(), Type: "bogus", AmountMinor: 100, Currency: enums.CurrencyNGN, Status: enums.LedgerEntryStatusPending, Description: "x"}},
		{"bad status", AppendInput{SellerID: uuid.New(), Type: enums.LedgerEntryTypeSale, AmountMinor: 100, Currency: enums.CurrencyNGN, Status: "bogus", Description: "x"}},
		{"bad currency", AppendInput{SellerID: uuid.New(), Type: enums.LedgerEntryTypeSale, AmountMinor: 100, Currency: "XXX", Status: enums.LedgerEntryStatusPending, Description: "x"}},
		{"no description", AppendInput{SellerID: uuid.New(), Type: enums.LedgerEntryTypeSale, AmountMinor: 100, Currency: enums.CurrencyNGN, Status: enums.LedgerEntryStatusPending}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Append(context.Background(), tc.input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no entries created, got %d", len(repo.created))
	}
}

func TestAppendCreatesEntry(t *testing.T) {
	repo := &stubRepo{}
	svc, _ := NewService(repo, stubTxRunner{})

	entry, err := svc.Append(context.Background(), AppendInput{
		SellerID:    uuid.New(),
		Type:        enums.LedgerEntryTypeSale,
		AmountMinor: 12_500,
		Currency:    enums.CurrencyNGN,
		Status:      enums.LedgerEntryStatusPending,
		Description: "sale for order",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if entry.AmountMinor != 12_500 {
		t.Fatalf("unexpected amount %d", entry.AmountMinor)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one entry created, got %d", len(repo.created))
	}
}

func TestAppendCorrectionNegatesOriginal(t *testing.T) {
	original := &models.LedgerEntry{
		ID:          uuid.New(),
		SellerID:    uuid.New(),
		Type:        enums.LedgerEntryTypeFee,
		AmountMinor: -750,
		Currency:    enums.CurrencyNGN,
		Status:      enums.LedgerEntryStatusCompleted,
	}
	repo := &stubRepo{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
			if id == original.ID {
				return original, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc, _ := NewService(repo, stubTxRunner{})

	correction, err := svc.AppendCorrection(context.Background(), original.ID, "fee charged in error")
	if err != nil {
		t.Fatalf("AppendCorrection: %v", err)
	}
	if correction.AmountMinor != 750 {
		t.Fatalf("expected negated amount 750, got %d", correction.AmountMinor)
	}
	if correction.Type != enums.LedgerEntryTypeAdjustment {
		t.Fatalf("expected adjustment type, got %s", correction.Type)
	}
	if correction.CorrectsEntryID == nil || *correction.CorrectsEntryID != original.ID {
		t.Fatal("correction must link to original entry")
	}
}

func TestAppendCorrectionRejectsDoubleCorrection(t *testing.T) {
	original := &models.LedgerEntry{ID: uuid.New(), SellerID: uuid.New(), AmountMinor: 100, Currency: enums.CurrencyNGN, Status: enums.LedgerEntryStatusCompleted, Type: enums.LedgerEntryTypeSale}
	repo := &stubRepo{
		hasCorrection: true,
		findFn: func(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
			return original, nil
		},
	}
	svc, _ := NewService(repo, stubTxRunner{})

	if _, err := svc.AppendCorrection(context.Background(), original.ID, "dup"); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCompleteSaleEntryPromotesPendingOnce(t *testing.T) {
	orderID := uuid.New()
	sale := &models.LedgerEntry{
		ID:          uuid.New(),
		SellerID:    uuid.New(),
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeSale,
		AmountMinor: 9_000,
		Currency:    enums.CurrencyNGN,
		Status:      enums.LedgerEntryStatusPending,
	}
	repo := &stubRepo{
		findByOrderFn: func(ctx context.Context, id uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error) {
			return sale, nil
		},
	}
	svc, _ := NewService(repo, stubTxRunner{})

	promoted, err := svc.CompleteSaleEntry(context.Background(), &gorm.DB{}, orderID)
	if err != nil {
		t.Fatalf("CompleteSaleEntry: %v", err)
	}
	if promoted.Status != enums.LedgerEntryStatusCompleted {
		t.Fatalf("expected completed status, got %s", promoted.Status)
	}
	if promoted.CorrectsEntryID == nil || *promoted.CorrectsEntryID != sale.ID {
		t.Fatal("promotion must link to the pending sale entry")
	}

	// second call sees the existing promotion and appends nothing
	repo.hasCorrection = true
	again, err := svc.CompleteSaleEntry(context.Background(), &gorm.DB{}, orderID)
	if err != nil {
		t.Fatalf("CompleteSaleEntry repeat: %v", err)
	}
	if again.ID != sale.ID {
		t.Fatal("repeat promotion should return the original entry")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected exactly one promotion row, got %d", len(repo.created))
	}
}

func TestCompleteSaleEntrySettlesRefunds(t *testing.T) {
	orderID := uuid.New()
	sellerID := uuid.New()
	sale := &models.LedgerEntry{
		ID:          uuid.New(),
		SellerID:    sellerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeSale,
		AmountMinor: 500_000,
		Currency:    enums.CurrencyNGN,
		Status:      enums.LedgerEntryStatusPending,
	}
	refund := models.LedgerEntry{
		ID:          uuid.New(),
		SellerID:    sellerID,
		OrderID:     &orderID,
		Type:        enums.LedgerEntryTypeRefundCompleted,
		AmountMinor: -150_000,
		Currency:    enums.CurrencyNGN,
		Status:      enums.LedgerEntryStatusPending,
	}
	repo := &stubRepo{
		unsettledRefunds: []models.LedgerEntry{refund},
		findByOrderFn: func(ctx context.Context, id uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error) {
			return sale, nil
		},
	}
	svc, _ := NewService(repo, stubTxRunner{})

	promoted, err := svc.CompleteSaleEntry(context.Background(), &gorm.DB{}, orderID)
	if err != nil {
		t.Fatalf("CompleteSaleEntry: %v", err)
	}
	if len(repo.created) != 2 {
		t.Fatalf("expected settlement and promotion rows, got %d", len(repo.created))
	}

	settled := repo.created[0]
	if settled.Type != enums.LedgerEntryTypeRefundCompleted || settled.Status != enums.LedgerEntryStatusCompleted {
		t.Fatalf("expected completed refund settlement, got %s/%s", settled.Type, settled.Status)
	}
	if settled.AmountMinor != -150_000 {
		t.Fatalf("settlement amount = %d, want -150000", settled.AmountMinor)
	}
	if settled.CorrectsEntryID == nil || *settled.CorrectsEntryID != refund.ID {
		t.Fatal("settlement must link to the pending refund entry")
	}
	if promoted.AmountMinor != 500_000 || promoted.Status != enums.LedgerEntryStatusCompleted {
		t.Fatalf("promotion = %d/%s, want 500000/completed", promoted.AmountMinor, promoted.Status)
	}
}

func TestBalanceAggregates(t *testing.T) {
	repo := &stubRepo{sums: map[enums.LedgerEntryStatus]int64{
		enums.LedgerEntryStatusCompleted:  8_000,
		enums.LedgerEntryStatusPaid:       -3_000,
		enums.LedgerEntryStatusPending:    4_000,
		enums.LedgerEntryStatusProcessing: 1_000,
	}}
	svc, _ := NewService(repo, stubTxRunner{})

	balance, err := svc.Balance(context.Background(), uuid.New(), enums.CurrencyNGN)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.AvailableMinor != 5_000 {
		t.Fatalf("available = %d, want 5000", balance.AvailableMinor)
	}
	if balance.PendingMinor != 5_000 {
		t.Fatalf("pending = %d, want 5000", balance.PendingMinor)
	}
	if balance.TotalMinor != 10_000 {
		t.Fatalf("total = %d, want 10000", balance.TotalMinor)
	}
}

func TestBalanceDeductsIssuedPayouts(t *testing.T) {
	repo := &stubRepo{
		sums: map[enums.LedgerEntryStatus]int64{
			enums.LedgerEntryStatusCompleted: 1_000_000,
		},
		issuedPayouts: -1_000_000,
	}
	svc, _ := NewService(repo, stubTxRunner{})

	balance, err := svc.Balance(context.Background(), uuid.New(), enums.CurrencyNGN)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.AvailableMinor != 0 {
		t.Fatalf("available = %d, want 0 after payout issued", balance.AvailableMinor)
	}
}
