package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/internal/ledger"
	"github.com/nnamdiosuji/okrika-backend/internal/notify"
	"github.com/nnamdiosuji/okrika-backend/pkg/config"
	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	"github.com/nnamdiosuji/okrika-backend/pkg/metrics"
	"github.com/nnamdiosuji/okrika-backend/pkg/money"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
)

const dueBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RegisterMethodInput creates a payout destination for a seller.
type RegisterMethodInput struct {
	SellerID uuid.UUID
	Method   models.PayoutMethod
}

// ManualPayoutInput is a seller-initiated one-off payout request.
type ManualPayoutInput struct {
	SellerID       uuid.UUID
	PayoutMethodID uuid.UUID
	AmountMinor    int64
	Currency       enums.Currency
}

// ScheduleInput creates a recurring payout instruction.
type ScheduleInput struct {
	SellerID       uuid.UUID
	PayoutMethodID uuid.UUID
	AmountMinor    int64
	Currency       enums.Currency
	Schedule       enums.PayoutSchedule
}

// PayoutEvent is the outbox payload for payout execution outcomes.
type PayoutEvent struct {
	PayoutID    uuid.UUID      `json:"payout_id"`
	SellerID    uuid.UUID      `json:"seller_id"`
	AmountMinor int64          `json:"amount_minor"`
	Currency    enums.Currency `json:"currency"`
	Provider    string         `json:"provider,omitempty"`
	Reference   string         `json:"reference,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Service orchestrates seller payouts: balance checks, method validation,
// provider execution with retry and fallback, and the payout ledger trail.
type Service interface {
	AvailableBalance(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (*ledger.Balance, error)
	RegisterMethod(ctx context.Context, input RegisterMethodInput) (*models.PayoutMethod, error)
	RequestManualPayout(ctx context.Context, input ManualPayoutInput) (*models.ScheduledPayout, error)
	ExecuteImmediatePayout(ctx context.Context, payoutID uuid.UUID) (*models.ScheduledPayout, error)
	ExecuteScheduledPayouts(ctx context.Context) (int, error)
	CreateSchedule(ctx context.Context, input ScheduleInput) (*models.ScheduledPayout, error)
}

type service struct {
	repo      Repository
	ledger    ledger.Service
	registry  *Registry
	tx        txRunner
	outbox    outboxPublisher
	notifier  notify.Emitter
	logg      *logger.Logger
	metrics   *metrics.PayoutMetrics
	minAmount int64
	timeout   time.Duration
	attempts  int
}

// NewService builds a payout service with the required dependencies.
func NewService(repo Repository, ledgerSvc ledger.Service, registry *Registry, tx txRunner, ob outboxPublisher, notifier notify.Emitter, logg *logger.Logger, pm *metrics.PayoutMetrics, cfg config.PayoutsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if registry == nil {
		return nil, fmt.Errorf("provider registry required")
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
	if cfg.MinAmountMinor <= 0 {
		return nil, fmt.Errorf("minimum payout amount must be positive")
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &service{
		repo:      repo,
		ledger:    ledgerSvc,
		registry:  registry,
		tx:        tx,
		outbox:    ob,
		notifier:  notifier,
		logg:      logg,
		metrics:   pm,
		minAmount: cfg.MinAmountMinor,
		timeout:   cfg.ProviderTimeout,
		attempts:  attempts,
	}, nil
}

func (s *service) AvailableBalance(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (*ledger.Balance, error) {
	return s.ledger.Balance(ctx, sellerID, currency)
}

func (s *service) RegisterMethod(ctx context.Context, input RegisterMethodInput) (*models.PayoutMethod, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	method := input.Method
	method.ID = uuid.New()
	method.SellerID = input.SellerID
	if err := validateMethod(&method); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMethod(ctx, &method); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout method")
	}
	return &method, nil
}

// RequestManualPayout validates a one-off payout request and executes it
// immediately.
func (s *service) RequestManualPayout(ctx context.Context, input ManualPayoutInput) (*models.ScheduledPayout, error) {
	method, err := s.checkRequest(ctx, input.SellerID, input.PayoutMethodID, input.AmountMinor, input.Currency)
	if err != nil {
		return nil, err
	}
	if method.Type == enums.PayoutMethodTypeEscrow {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"escrow payout methods can only be used with recurring schedules")
	}

	payout := &models.ScheduledPayout{
		ID:              uuid.New(),
		SellerID:        input.SellerID,
		PayoutMethodID:  input.PayoutMethodID,
		AmountMinor:     input.AmountMinor,
		Currency:        input.Currency,
		Schedule:        enums.PayoutScheduleImmediate,
		Status:          enums.ScheduledPayoutStatusPending,
		NextScheduledAt: time.Now(),
	}
	if err := s.repo.CreateScheduledPayout(ctx, payout); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout request")
	}
	return s.ExecuteImmediatePayout(ctx, payout.ID)
}

func (s *service) ExecuteImmediatePayout(ctx context.Context, payoutID uuid.UUID) (*models.ScheduledPayout, error) {
	payout, err := s.loadPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.repo.ClaimForProcessing(ctx, payout.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payout")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout is already being processed")
	}

	if execErr := s.execute(ctx, payout); execErr != nil {
		return payout, execErr
	}
	return payout, nil
}

// ExecuteScheduledPayouts runs every due payout once and returns the number
// that succeeded. Per-payout failures are recorded and do not stop the sweep.
func (s *service) ExecuteScheduledPayouts(ctx context.Context) (int, error) {
	due, err := s.repo.ListDue(ctx, time.Now(), dueBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due payouts")
	}

	succeeded := 0
	for i := range due {
		payout := due[i]
		claimed, err := s.repo.ClaimForProcessing(ctx, payout.ID)
		if err != nil {
			s.logg.Error(ctx, "claim scheduled payout failed", err)
			continue
		}
		if !claimed {
			continue
		}
		if err := s.execute(ctx, &payout); err != nil {
			logCtx := s.logg.WithSellerID(ctx, payout.SellerID.String())
			s.logg.Error(logCtx, "scheduled payout failed", err)
			continue
		}
		succeeded++
	}
	return succeeded, nil
}

func (s *service) CreateSchedule(ctx context.Context, input ScheduleInput) (*models.ScheduledPayout, error) {
	if !input.Schedule.IsValid() || input.Schedule == enums.PayoutScheduleImmediate {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"schedule must be daily, weekly, bi_weekly, or monthly")
	}
	if _, err := s.checkRequest(ctx, input.SellerID, input.PayoutMethodID, input.AmountMinor, input.Currency); err != nil {
		// balance can be short now and sufficient by the first run, so
		// only hard validation failures block schedule creation
		if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
			return nil, err
		}
	}

	payout := &models.ScheduledPayout{
		ID:              uuid.New(),
		SellerID:        input.SellerID,
		PayoutMethodID:  input.PayoutMethodID,
		AmountMinor:     input.AmountMinor,
		Currency:        input.Currency,
		Schedule:        input.Schedule,
		Status:          enums.ScheduledPayoutStatusPending,
		NextScheduledAt: nextRunAfter(input.Schedule, time.Now()),
	}
	if err := s.repo.CreateScheduledPayout(ctx, payout); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout schedule")
	}
	return payout, nil
}

// checkRequest enforces the minimum amount, the available balance ceiling,
// and payout method ownership.
func (s *service) checkRequest(ctx context.Context, sellerID, methodID uuid.UUID, amountMinor int64, currency enums.Currency) (*models.PayoutMethod, error) {
	if sellerID == uuid.Nil || methodID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id and payout method id required")
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if amountMinor < s.minAmount {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientAmount,
			fmt.Sprintf("payout amount %d is below the minimum of %d minor units", amountMinor, s.minAmount))
	}

	balance, err := s.ledger.Balance(ctx, sellerID, currency)
	if err != nil {
		return nil, err
	}
	if amountMinor > balance.AvailableMinor {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance,
			fmt.Sprintf("requested %d exceeds available balance of %d minor units", amountMinor, balance.AvailableMinor))
	}

	method, err := s.loadMethod(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if method.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout method belongs to a different seller")
	}
	if method.Disabled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout method is disabled")
	}
	if err := validateMethod(method); err != nil {
		return nil, err
	}
	return method, nil
}

// execute runs one claimed payout end to end: balance re-check, provider
// call with retry and fallback, ledger entry, schedule bookkeeping, events.
func (s *service) execute(ctx context.Context, payout *models.ScheduledPayout) error {
	method, err := s.loadMethod(ctx, payout.PayoutMethodID)
	if err != nil {
		return s.fail(ctx, payout, nil, err)
	}
	if err := validateMethod(method); err != nil {
		return s.fail(ctx, payout, nil, err)
	}

	// the balance may have moved between request and execution
	balance, err := s.ledger.Balance(ctx, payout.SellerID, payout.Currency)
	if err != nil {
		return s.fail(ctx, payout, nil, err)
	}
	if payout.AmountMinor > balance.AvailableMinor {
		return s.fail(ctx, payout, nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance,
			fmt.Sprintf("requested %d exceeds available balance of %d minor units", payout.AmountMinor, balance.AvailableMinor)))
	}

	provider, err := s.registry.For(method.Type)
	if err != nil {
		return s.fail(ctx, payout, nil, err)
	}

	request := PayoutRequest{
		PayoutID:    payout.ID,
		SellerID:    payout.SellerID,
		Method:      method,
		AmountMinor: payout.AmountMinor,
		Currency:    payout.Currency,
	}

	result, usedProvider, execErr := s.executeWithFallback(ctx, provider, request)
	if execErr != nil {
		return s.fail(ctx, payout, usedProvider, execErr)
	}
	return s.succeed(ctx, payout, usedProvider, result)
}

// executeWithFallback tries the primary provider with bounded retry, then
// walks the fallback chain on retryable failures.
func (s *service) executeWithFallback(ctx context.Context, primary Provider, request PayoutRequest) (PayoutResult, Provider, error) {
	chain := append([]Provider{primary}, s.registry.Fallbacks(primary)...)

	var lastErr error
	for _, provider := range chain {
		result, err := s.attempt(ctx, provider, request)
		if err == nil {
			return result, provider, nil
		}
		lastErr = err
		// only provider-side failures move on to the next provider
		if !pkgerrors.HasCode(err, pkgerrors.CodeProviderFailure) {
			return PayoutResult{}, provider, err
		}
		s.logg.Warn(ctx, fmt.Sprintf("payout provider %s failed, trying next", provider.Name()))
	}
	return PayoutResult{}, primary, lastErr
}

// attempt runs one provider with a bounded timeout per call and exponential
// backoff between retryable failures. A timeout is a failure; success is
// never assumed on an ambiguous response.
func (s *service) attempt(ctx context.Context, provider Provider, request PayoutRequest) (PayoutResult, error) {
	var result PayoutResult
	backoff := retry.WithMaxRetries(uint64(s.attempts-1), retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		res, err := provider.Execute(callCtx, request)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = pkgerrors.Wrap(pkgerrors.CodeProviderFailure, err, "payout provider timed out")
			}
			if pkgerrors.HasCode(err, pkgerrors.CodeProviderFailure) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return PayoutResult{}, err
	}
	return result, nil
}

func (s *service) succeed(ctx context.Context, payout *models.ScheduledPayout, provider Provider, result PayoutResult) error {
	now := time.Now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			SellerID:    payout.SellerID,
			Type:        enums.LedgerEntryTypePayout,
			AmountMinor: -payout.AmountMinor,
			Currency:    payout.Currency,
			Status:      result.Status,
			Description: fmt.Sprintf("payout via %s (%s)", provider.Name(), result.Reference),
		}); err != nil {
			return err
		}

		updates := map[string]any{
			"status":      enums.ScheduledPayoutStatusCompleted,
			"last_run_at": now,
			"last_error":  gorm.Expr("NULL"),
		}
		// a recurring schedule advances and goes back to pending, and
		// only a successful run advances it
		if payout.Schedule != enums.PayoutScheduleImmediate {
			updates["status"] = enums.ScheduledPayoutStatusPending
			updates["next_scheduled_at"] = nextRunAfter(payout.Schedule, now)
		}
		if err := s.repo.WithTx(tx).UpdateScheduledPayout(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout success")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutExecuted,
			AggregateType: enums.AggregateScheduledPayout,
			AggregateID:   payout.ID,
			Version:       1,
			Data: PayoutEvent{
				PayoutID:    payout.ID,
				SellerID:    payout.SellerID,
				AmountMinor: payout.AmountMinor,
				Currency:    payout.Currency,
				Provider:    provider.Name(),
				Reference:   result.Reference,
			},
		})
	})
	if err != nil {
		return err
	}

	payout.Status = enums.ScheduledPayoutStatusCompleted
	payout.LastRunAt = &now
	if payout.Schedule != enums.PayoutScheduleImmediate {
		payout.Status = enums.ScheduledPayoutStatusPending
		payout.NextScheduledAt = nextRunAfter(payout.Schedule, now)
	}

	s.metrics.IncAttempt(provider.Name(), "completed")
	s.notifyOutcome(ctx, payout, enums.NotificationTypePayoutCompleted, "Payout sent",
		fmt.Sprintf("Payout of %s sent via %s", money.Format(payout.AmountMinor, payout.Currency), provider.Name()),
		enums.NotificationSeverityInfo)
	return nil
}

// fail records a failed attempt without advancing the schedule, so the next
// scheduler pass retries the same payout.
func (s *service) fail(ctx context.Context, payout *models.ScheduledPayout, provider Provider, cause error) error {
	now := time.Now()
	providerName := ""
	if provider != nil {
		providerName = provider.Name()
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.ledger.AppendTx(ctx, tx, ledger.AppendInput{
			SellerID:    payout.SellerID,
			Type:        enums.LedgerEntryTypePayout,
			AmountMinor: -payout.AmountMinor,
			Currency:    payout.Currency,
			Status:      enums.LedgerEntryStatusFailed,
			Description: fmt.Sprintf("payout attempt failed: %s", cause.Error()),
		}); err != nil {
			return err
		}

		if err := s.repo.WithTx(tx).UpdateScheduledPayout(ctx, payout.ID, map[string]any{
			"status":        enums.ScheduledPayoutStatusFailed,
			"last_run_at":   now,
			"failure_count": gorm.Expr("failure_count + 1"),
			"last_error":    cause.Error(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout failure")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutFailed,
			AggregateType: enums.AggregateScheduledPayout,
			AggregateID:   payout.ID,
			Version:       1,
			Data: PayoutEvent{
				PayoutID:    payout.ID,
				SellerID:    payout.SellerID,
				AmountMinor: payout.AmountMinor,
				Currency:    payout.Currency,
				Provider:    providerName,
				Error:       cause.Error(),
			},
		})
	})
	if err != nil {
		logCtx := s.logg.WithSellerID(ctx, payout.SellerID.String())
		s.logg.Error(logCtx, "recording payout failure failed", err)
	}

	payout.Status = enums.ScheduledPayoutStatusFailed
	payout.LastRunAt = &now

	s.metrics.IncAttempt(providerName, "failed")
	s.notifyOutcome(ctx, payout, enums.NotificationTypePayoutFailed, "Payout failed",
		fmt.Sprintf("Payout of %s failed: %s", money.Format(payout.AmountMinor, payout.Currency), cause.Error()),
		enums.NotificationSeverityWarning)
	return cause
}

func (s *service) loadPayout(ctx context.Context, payoutID uuid.UUID) (*models.ScheduledPayout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	payout, err := s.repo.FindScheduledPayout(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) loadMethod(ctx context.Context, methodID uuid.UUID) (*models.PayoutMethod, error) {
	method, err := s.repo.FindMethod(ctx, methodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout method not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout method")
	}
	return method, nil
}

func (s *service) notifyOutcome(ctx context.Context, payout *models.ScheduledPayout, notifType enums.NotificationType, title, message string, severity enums.NotificationSeverity) {
	err := s.notifier.Notify(ctx, notify.Event{
		Audience:          enums.NotificationAudienceSeller,
		RecipientID:       payout.SellerID,
		Type:              notifType,
		RelatedEntityID:   payout.ID,
		RelatedEntityType: "scheduled_payout",
		Title:             title,
		Message:           message,
		Severity:          severity,
	})
	if err != nil {
		logCtx := s.logg.WithSellerID(ctx, payout.SellerID.String())
		s.logg.Error(logCtx, "payout notification failed", err)
	}
}

// nextRunAfter computes the next run time for a recurring schedule.
func nextRunAfter(schedule enums.PayoutSchedule, from time.Time) time.Time {
	switch schedule {
	case enums.PayoutScheduleDaily:
		return from.Add(24 * time.Hour)
	case enums.PayoutScheduleWeekly:
		return from.Add(7 * 24 * time.Hour)
	case enums.PayoutScheduleBiWeekly:
		return from.Add(14 * 24 * time.Hour)
	case enums.PayoutScheduleMonthly:
		return from.AddDate(0, 1, 0)
	}
	return from
}
