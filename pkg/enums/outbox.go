package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "order"
	AggregatePaymentHold     OutboxAggregateType = "payment_hold"
	AggregateDispute         OutboxAggregateType = "dispute"
	AggregateScheduledPayout OutboxAggregateType = "scheduled_payout"
	AggregateWebhookEvent    OutboxAggregateType = "webhook_event"
	AggregateNotification    OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePaymentHold,
	AggregateDispute,
	AggregateScheduledPayout,
	AggregateWebhookEvent,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderTransitioned     OutboxEventType = "order_transitioned"
	EventPaymentConfirmed      OutboxEventType = "payment_confirmed"
	EventHoldCreated           OutboxEventType = "hold_created"
	EventHoldReleased          OutboxEventType = "hold_released"
	EventHoldRefunded          OutboxEventType = "hold_refunded"
	EventHoldExpired           OutboxEventType = "hold_expired"
	EventDisputeOpened         OutboxEventType = "dispute_opened"
	EventDisputeResolved       OutboxEventType = "dispute_resolved"
	EventDisputeEscalated      OutboxEventType = "dispute_escalated"
	EventPayoutExecuted        OutboxEventType = "payout_executed"
	EventPayoutFailed          OutboxEventType = "payout_failed"
	EventWebhookExhausted      OutboxEventType = "webhook_exhausted"
	EventNotificationRequested OutboxEventType = "notification_requested"
)
