package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	pkgerrors "github.com/nnamdiosuji/okrika-backend/pkg/errors"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
	"github.com/nnamdiosuji/okrika-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Event describes one user-facing notification for the external dispatcher.
type Event struct {
	Audience          enums.NotificationAudience
	RecipientID       uuid.UUID
	Type              enums.NotificationType
	RelatedEntityID   uuid.UUID
	RelatedEntityType string
	Title             string
	Message           string
	Severity          enums.NotificationSeverity
	ActionURL         string
}

// Payload is the outbox envelope body for notification events.
type Payload struct {
	Audience          enums.NotificationAudience `json:"audience"`
	RecipientID       uuid.UUID                  `json:"recipient_id"`
	Type              enums.NotificationType     `json:"type"`
	RelatedEntityID   uuid.UUID                  `json:"related_entity_id"`
	RelatedEntityType string                     `json:"related_entity_type"`
	Title             string                     `json:"title"`
	Message           string                     `json:"message"`
	Severity          enums.NotificationSeverity `json:"severity"`
	ActionURL         string                     `json:"action_url,omitempty"`
}

// Emitter queues notification events through the outbox. A Redis cooldown
// keyed by (type, recipient, entity) suppresses repeats across instances.
type Emitter interface {
	Notify(ctx context.Context, event Event) error
	NotifyTx(ctx context.Context, tx *gorm.DB, event Event) error
}

type emitter struct {
	outbox      outboxPublisher
	tx          txRunner
	store       redis.KeyValueStore
	logg        *logger.Logger
	cooldownTTL time.Duration
}

// NewEmitter builds a notification emitter with the required dependencies.
func NewEmitter(ob outboxPublisher, tx txRunner, store redis.KeyValueStore, logg *logger.Logger, cooldownTTL time.Duration) (Emitter, error) {
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if store == nil {
		return nil, fmt.Errorf("key value store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &emitter{
		outbox:      ob,
		tx:          tx,
		store:       store,
		logg:        logg,
		cooldownTTL: cooldownTTL,
	}, nil
}

func (e *emitter) Notify(ctx context.Context, event Event) error {
	return e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return e.NotifyTx(ctx, tx, event)
	})
}

func (e *emitter) NotifyTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if err := validate(event); err != nil {
		return err
	}

	if e.cooldownTTL > 0 {
		key := e.store.CooldownKey(string(event.Type), fmt.Sprintf("%s:%s", event.RecipientID, event.RelatedEntityID))
		acquired, err := e.store.SetNX(ctx, key, time.Now().Unix(), e.cooldownTTL)
		if err != nil {
			// redis being down must not block the business write
			e.logg.Warn(e.logg.WithField(ctx, "notification_type", string(event.Type)),
				"notification cooldown check failed, emitting anyway")
		} else if !acquired {
			return nil
		}
	}

	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   event.RelatedEntityID,
		Version:       1,
		Data: Payload{
			Audience:          event.Audience,
			RecipientID:       event.RecipientID,
			Type:              event.Type,
			RelatedEntityID:   event.RelatedEntityID,
			RelatedEntityType: event.RelatedEntityType,
			Title:             event.Title,
			Message:           event.Message,
			Severity:          event.Severity,
			ActionURL:         event.ActionURL,
		},
	})
}

func validate(event Event) error {
	if !event.Audience.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification audience")
	}
	if !event.Severity.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification severity")
	}
	if event.Type == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification type required")
	}
	if event.RelatedEntityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "related entity id required")
	}
	if event.Title == "" || event.Message == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title and message required")
	}
	return nil
}
