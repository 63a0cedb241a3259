package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AppendInput describes one ledger entry. AmountMinor is signed: positive
// credits the seller, negative debits.
type AppendInput struct {
	SellerID    uuid.UUID
	OrderID     *uuid.UUID
	HoldID      *uuid.UUID
	Type        enums.LedgerEntryType
	AmountMinor int64
	Currency    enums.Currency
	Status      enums.LedgerEntryStatus
	Description string
}

// Balance is a point-in-time aggregate of a seller's ledger.
type Balance struct {
	SellerID       uuid.UUID
	Currency       enums.Currency
	AvailableMinor int64
	PendingMinor   int64
	TotalMinor     int64
}

// Service is the only writer of ledger entries. Rows are never updated;
// every correction is a new compensating row.
type Service interface {
	Append(ctx context.Context, input AppendInput) (*models.LedgerEntry, error)
	AppendTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error)
	AppendCorrection(ctx context.Context, originalID uuid.UUID, description string) (*models.LedgerEntry, error)
	CompleteSaleEntry(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.LedgerEntry, error)
	Balance(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (*Balance, error)
	Entries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEntry, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a ledger service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Append(ctx context.Context, input AppendInput) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.AppendTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) AppendTx(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if err := validateAppend(input); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		SellerID:    input.SellerID,
		OrderID:     input.OrderID,
		HoldID:      input.HoldID,
		Type:        input.Type,
		AmountMinor: input.AmountMinor,
		Currency:    input.Currency,
		Status:      input.Status,
		Description: input.Description,
	}
	if err := s.repo.WithTx(tx).CreateEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return entry, nil
}

// AppendCorrection writes a compensating entry that negates the original
// amount and links back to it.
func (s *service) AppendCorrection(ctx context.Context, originalID uuid.UUID, description string) (*models.LedgerEntry, error) {
	if originalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "original entry id required")
	}
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "correction description required")
	}

	var correction *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		original, err := repo.FindEntry(ctx, originalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger entry")
		}

		corrected, err := repo.HasCorrection(ctx, original.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check prior correction")
		}
		if corrected {
			return pkgerrors.New(pkgerrors.CodeConflict, "entry already corrected")
		}

		correction = &models.LedgerEntry{
			SellerID:        original.SellerID,
			OrderID:         original.OrderID,
			HoldID:          original.HoldID,
			Type:            enums.LedgerEntryTypeAdjustment,
			AmountMinor:     -original.AmountMinor,
			Currency:        original.Currency,
			Status:          original.Status,
			Description:     description,
			CorrectsEntryID: &original.ID,
		}
		if err := repo.CreateEntry(ctx, correction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append correction entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return correction, nil
}

// CompleteSaleEntry promotes an order's pending sale earnings to available
// and settles any refunds issued against the hold in the same transaction,
// so the seller's available balance gains only the released remainder. The
// pending rows stay untouched; new completed rows linking back to them carry
// the amounts, and balance queries skip superseded rows.
func (s *service) CompleteSaleEntry(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	sale, err := repo.FindEntryByOrderAndType(ctx, orderID, enums.LedgerEntryTypeSale)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale entry not found for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale entry")
	}

	if sale.Status != enums.LedgerEntryStatusPending {
		// already promoted (or terminal); repeat calls are no-ops
		return sale, nil
	}
	promoted, err := repo.HasCorrection(ctx, sale.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sale promotion")
	}
	if promoted {
		return sale, nil
	}

	refunds, err := repo.ListUnsettledRefundsByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refund entries")
	}
	for i := range refunds {
		refund := refunds[i]
		settled := &models.LedgerEntry{
			ID:              uuid.New(),
			SellerID:        refund.SellerID,
			OrderID:         refund.OrderID,
			HoldID:          refund.HoldID,
			Type:            enums.LedgerEntryTypeRefundCompleted,
			AmountMinor:     refund.AmountMinor,
			Currency:        refund.Currency,
			Status:          enums.LedgerEntryStatusCompleted,
			Description:     "refund settled at escrow close",
			CorrectsEntryID: &refund.ID,
		}
		if err := repo.CreateEntry(ctx, settled); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle refund entry")
		}
	}

	completed := &models.LedgerEntry{
		ID:              uuid.New(),
		SellerID:        sale.SellerID,
		OrderID:         sale.OrderID,
		HoldID:          sale.HoldID,
		Type:            enums.LedgerEntryTypeSale,
		AmountMinor:     sale.AmountMinor,
		Currency:        sale.Currency,
		Status:          enums.LedgerEntryStatusCompleted,
		Description:     "sale earnings released from escrow",
		CorrectsEntryID: &sale.ID,
	}
	if err := repo.CreateEntry(ctx, completed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append completed sale entry")
	}
	return completed, nil
}

func (s *service) Balance(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (*Balance, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	available, err := s.repo.SumByStatuses(ctx, sellerID, currency, []enums.LedgerEntryStatus{
		enums.LedgerEntryStatusCompleted,
		enums.LedgerEntryStatusPaid,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum available balance")
	}

	// payouts issued to a provider but not yet confirmed are obligations the
	// seller can no longer spend
	issued, err := s.repo.SumIssuedPayouts(ctx, sellerID, currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum issued payouts")
	}
	available += issued

	pending, err := s.repo.SumUncorrectedByStatuses(ctx, sellerID, currency, []enums.LedgerEntryStatus{
		enums.LedgerEntryStatusPending,
		enums.LedgerEntryStatusProcessing,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending balance")
	}

	return &Balance{
		SellerID:       sellerID,
		Currency:       currency,
		AvailableMinor: available,
		PendingMinor:   pending,
		TotalMinor:     available + pending,
	}, nil
}

func (s *service) Entries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	entries, err := s.repo.ListEntriesBySeller(ctx, sellerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	return entries, nil
}

func validateAppend(input AppendInput) error {
	if input.SellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger entry type")
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger entry status")
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	// zero-amount sale rows are allowed as audit records for resolutions
	// where no money moved
	if input.AmountMinor == 0 && !(input.Type == enums.LedgerEntryTypeSale && input.Status == enums.LedgerEntryStatusCompleted) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}
	if input.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	return nil
}
