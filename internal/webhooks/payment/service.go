package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/internal/notify"
	"github.com/nnamdiosuji/okrika-backend/internal/orders"
	"github.com/nnamdiosuji/okrika-backend/pkg/config"
	"github.com/nnamdiosuji/okrika-backend/pkg/db"
	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	"github.com/nnamdiosuji/okrika-backend/pkg/metrics"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
)

const eventConstraint = "ux_webhook_events_provider_event_id"

// retryDelays is the capped backoff ladder, in units of the configured
// BackoffUnit.
var retryDelays = []time.Duration{1, 2, 5, 10, 30}

// Outcome classifies what ingestion did with a delivery.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
)

// Delivery is one inbound payment-provider webhook, already parsed from the
// provider's envelope.
type Delivery struct {
	EventID           string          `json:"event_id"`
	Provider          string          `json:"provider"`
	EventType         string          `json:"event_type"`
	ProviderReference string          `json:"provider_reference"`
	AmountMinor       int64           `json:"amount_minor"`
	Currency          enums.Currency  `json:"currency"`
	PaymentStatus     string          `json:"payment_status"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// PaymentVerifier cross-checks a webhook claim against the provider's own
// record of the payment.
type PaymentVerifier interface {
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// WebhookExhaustedEvent is the outbox payload emitted when an event runs out
// of retries.
type WebhookExhaustedEvent struct {
	WebhookEventID  uuid.UUID `json:"webhook_event_id"`
	ProviderEventID string    `json:"provider_event_id"`
	Provider        string    `json:"provider"`
	EventType       string    `json:"event_type"`
	Attempts        int       `json:"attempts"`
	LastError       string    `json:"last_error"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the webhook ingestion gateway. The unique provider event id is
// the first-writer guard; everything after the insert is an at-most-once
// handler invocation with operational retry on failure.
type Service interface {
	Ingest(ctx context.Context, delivery Delivery) (Outcome, error)
	RetryDue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

type service struct {
	repo        Repository
	orders      orders.Service
	verifier    PaymentVerifier
	tx          txRunner
	outbox      outboxPublisher
	notifier    notify.Emitter
	logg        *logger.Logger
	metrics     *metrics.WebhookMetrics
	maxAttempts int
	backoffUnit time.Duration
	adminID     uuid.UUID
}

// NewService builds the webhook gateway with the required dependencies.
func NewService(repo Repository, orderSvc orders.Service, verifier PaymentVerifier, tx txRunner, ob outboxPublisher, notifier notify.Emitter, logg *logger.Logger, wm *metrics.WebhookMetrics, cfg config.WebhooksConfig, adminID uuid.UUID) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("payment verifier required")
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
	attempts := cfg.MaxRetryAttempts
	if attempts <= 0 {
		attempts = len(retryDelays)
	}
	unit := cfg.BackoffUnit
	if unit <= 0 {
		unit = time.Minute
	}
	return &service{
		repo:        repo,
		orders:      orderSvc,
		verifier:    verifier,
		tx:          tx,
		outbox:      ob,
		notifier:    notifier,
		logg:        logg,
		metrics:     wm,
		maxAttempts: attempts,
		backoffUnit: unit,
		adminID:     adminID,
	}, nil
}

func (s *service) Ingest(ctx context.Context, delivery Delivery) (Outcome, error) {
	outcome, err := s.ingest(ctx, delivery)
	s.metrics.IncOutcome(string(outcome))
	return outcome, err
}

func (s *service) ingest(ctx context.Context, delivery Delivery) (Outcome, error) {
	if strings.TrimSpace(delivery.EventID) == "" ||
		strings.TrimSpace(delivery.Provider) == "" ||
		strings.TrimSpace(delivery.EventType) == "" {
		return OutcomeRejected, pkgerrors.New(pkgerrors.CodeValidation,
			"event id, provider, and event type are required")
	}

	payload, err := json.Marshal(delivery)
	if err != nil {
		return OutcomeRejected, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode delivery payload")
	}

	event := &models.WebhookEvent{
		ID:              uuid.New(),
		ProviderEventID: delivery.EventID,
		Provider:        delivery.Provider,
		EventType:       delivery.EventType,
		Payload:         payload,
		Status:          enums.WebhookEventStatusPending,
	}
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		if db.IsUniqueViolation(err, eventConstraint) {
			// a concurrent or earlier delivery won the insert; whatever
			// state it is in, this copy causes no side effects
			logCtx := s.logg.WithEventID(ctx, delivery.EventID)
			s.logg.Info(logCtx, "duplicate webhook delivery ignored")
			return OutcomeDuplicate, nil
		}
		return OutcomeRejected, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
	}

	s.process(ctx, event, delivery)
	return OutcomeAccepted, nil
}

// RetryDue re-runs pending events whose backoff window has passed.
func (s *service) RetryDue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	due, err := s.repo.ListRetryable(ctx, asOf, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list retryable webhook events")
	}

	retried := 0
	for i := range due {
		event := due[i]
		var delivery Delivery
		if err := json.Unmarshal(event.Payload, &delivery); err != nil {
			logCtx := s.logg.WithEventID(ctx, event.ProviderEventID)
			s.logg.Error(logCtx, "stored webhook payload is unreadable", err)
			s.exhaust(ctx, &event, 0, fmt.Sprintf("unreadable payload: %v", err))
			continue
		}
		s.process(ctx, &event, delivery)
		retried++
	}
	return retried, nil
}

// process runs the handler once and records the outcome. A precondition
// failure is terminal; other handler errors schedule a backoff retry until
// the attempt cap is reached.
func (s *service) process(ctx context.Context, event *models.WebhookEvent, delivery Delivery) {
	logCtx := s.logg.WithEventID(ctx, event.ProviderEventID)

	handlerErr := s.handle(ctx, delivery)
	if handlerErr == nil {
		now := time.Now()
		if err := s.repo.UpdateEvent(ctx, event.ID, map[string]any{
			"status":       enums.WebhookEventStatusProcessed,
			"processed_at": now,
		}); err != nil {
			s.logg.Error(logCtx, "marking webhook processed failed", err)
		}
		return
	}

	if pkgerrors.HasCode(handlerErr, pkgerrors.CodeDuplicateEvent) {
		// the business effect already happened; the event is done
		if err := s.repo.UpdateEvent(ctx, event.ID, map[string]any{
			"status":       enums.WebhookEventStatusProcessed,
			"processed_at": time.Now(),
		}); err != nil {
			s.logg.Error(logCtx, "marking duplicate webhook processed failed", err)
		}
		return
	}

	attempt := s.nextAttempt(ctx, event.ID)

	if pkgerrors.HasCode(handlerErr, pkgerrors.CodePreconditionFailed) {
		// a reference or amount mismatch is a potential fraud signal:
		// surface loudly and never retry
		s.logg.Error(logCtx, "webhook verification mismatch", handlerErr)
		s.exhaust(ctx, event, attempt, handlerErr.Error())
		return
	}

	s.logg.Error(logCtx, fmt.Sprintf("webhook handler failed on attempt %d", attempt), handlerErr)

	if attempt >= s.maxAttempts {
		s.exhaust(ctx, event, attempt, handlerErr.Error())
		return
	}

	nextRetry := time.Now().Add(s.backoffDelay(attempt))
	log := &models.WebhookLog{
		ID:             uuid.New(),
		WebhookEventID: event.ID,
		Provider:       event.Provider,
		EventType:      event.EventType,
		RetryCount:     attempt,
		Error:          handlerErr.Error(),
		NextRetryAt:    &nextRetry,
	}
	if err := s.repo.CreateLog(ctx, log); err != nil {
		s.logg.Error(logCtx, "recording webhook attempt failed", err)
	}
}

// handle verifies the delivery against the provider and dispatches it to the
// order lifecycle.
func (s *service) handle(ctx context.Context, delivery Delivery) error {
	if strings.TrimSpace(delivery.ProviderReference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider reference missing from delivery")
	}

	providerPayment, err := s.verifier.GetPayment(ctx, delivery.ProviderReference)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodePreconditionFailed,
				fmt.Sprintf("provider has no payment %s", delivery.ProviderReference))
		}
		return err
	}
	if err := s.verify(providerPayment, delivery); err != nil {
		return err
	}

	switch strings.ToUpper(delivery.PaymentStatus) {
	case "COMPLETED", "APPROVED":
		_, err := s.orders.MarkPaymentConfirmed(ctx, orders.PaymentConfirmation{
			ProviderReference: delivery.ProviderReference,
			AmountMinor:       delivery.AmountMinor,
			Currency:          delivery.Currency,
		})
		return err
	case "FAILED", "CANCELED":
		return s.orders.MarkPaymentFailed(ctx, delivery.ProviderReference,
			fmt.Sprintf("provider reported payment %s", strings.ToLower(delivery.PaymentStatus)))
	default:
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unhandled payment status %q", delivery.PaymentStatus))
	}
}

// verify compares the webhook's claims against the provider's own payment
// record.
func (s *service) verify(providerPayment *sq.Payment, delivery Delivery) error {
	if providerPayment == nil {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed,
			fmt.Sprintf("provider has no payment %s", delivery.ProviderReference))
	}
	if id := providerPayment.GetID(); id == nil || *id != delivery.ProviderReference {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed,
			fmt.Sprintf("provider payment id does not match reference %s", delivery.ProviderReference))
	}
	if delivery.AmountMinor > 0 {
		money := providerPayment.GetAmountMoney()
		if money == nil || money.GetAmount() == nil || *money.GetAmount() != delivery.AmountMinor {
			return pkgerrors.New(pkgerrors.CodePreconditionFailed,
				fmt.Sprintf("provider amount does not match reported %d", delivery.AmountMinor))
		}
	}
	return nil
}

// nextAttempt returns the 1-based attempt number for the event.
func (s *service) nextAttempt(ctx context.Context, eventID uuid.UUID) int {
	last, err := s.repo.LatestLog(ctx, eventID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Error(ctx, "loading webhook attempt history failed", err)
		}
		return 1
	}
	return last.RetryCount + 1
}

func (s *service) backoffDelay(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryDelays) {
		idx = len(retryDelays) - 1
	}
	return retryDelays[idx] * s.backoffUnit
}

// exhaust marks an event permanently failed and surfaces it for operator
// intervention. The event is never dropped silently.
func (s *service) exhaust(ctx context.Context, event *models.WebhookEvent, attempts int, lastError string) {
	logCtx := s.logg.WithEventID(ctx, event.ProviderEventID)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateEvent(ctx, event.ID, map[string]any{
			"status": enums.WebhookEventStatusFailed,
		}); err != nil {
			return err
		}
		log := &models.WebhookLog{
			ID:             uuid.New(),
			WebhookEventID: event.ID,
			Provider:       event.Provider,
			EventType:      event.EventType,
			RetryCount:     attempts,
			Error:          lastError,
		}
		if err := s.repo.WithTx(tx).CreateLog(ctx, log); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWebhookExhausted,
			AggregateType: enums.AggregateWebhookEvent,
			AggregateID:   event.ID,
			Version:       1,
			Data: WebhookExhaustedEvent{
				WebhookEventID:  event.ID,
				ProviderEventID: event.ProviderEventID,
				Provider:        event.Provider,
				EventType:       event.EventType,
				Attempts:        attempts,
				LastError:       lastError,
			},
		})
	})
	if err != nil {
		s.logg.Error(logCtx, "flagging exhausted webhook failed", err)
		return
	}

	notifyErr := s.notifier.Notify(ctx, notify.Event{
		Audience:          enums.NotificationAudienceAdmin,
		RecipientID:       s.adminID,
		Type:              enums.NotificationTypeWebhookExhausted,
		RelatedEntityID:   event.ID,
		RelatedEntityType: "webhook_event",
		Title:             "Webhook needs manual review",
		Message:           fmt.Sprintf("Event %s from %s failed permanently: %s", event.ProviderEventID, event.Provider, lastError),
		Severity:          enums.NotificationSeverityCritical,
	})
	if notifyErr != nil {
		s.logg.Error(logCtx, "exhausted webhook alert failed", notifyErr)
	}
}
