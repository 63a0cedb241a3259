package enums

import "fmt"

// NotificationAudience identifies who a notification event targets.
type NotificationAudience string

const (
	NotificationAudienceBuyer  NotificationAudience = "buyer"
	NotificationAudienceSeller NotificationAudience = "seller"
	NotificationAudienceAdmin  NotificationAudience = "admin"
)

var validNotificationAudiences = []NotificationAudience{
	NotificationAudienceBuyer,
	NotificationAudienceSeller,
	NotificationAudienceAdmin,
}

// IsValid reports whether the value is a known NotificationAudience.
func (n NotificationAudience) IsValid() bool {
	for _, candidate := range validNotificationAudiences {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationAudience converts raw input into a NotificationAudience.
func ParseNotificationAudience(value string) (NotificationAudience, error) {
	for _, candidate := range validNotificationAudiences {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification audience %q", value)
}

// NotificationSeverity grades how loudly the external dispatcher should
// surface an event.
type NotificationSeverity string

const (
	NotificationSeverityInfo     NotificationSeverity = "info"
	NotificationSeverityWarning  NotificationSeverity = "warning"
	NotificationSeverityCritical NotificationSeverity = "critical"
)

var validNotificationSeverities = []NotificationSeverity{
	NotificationSeverityInfo,
	NotificationSeverityWarning,
	NotificationSeverityCritical,
}

// IsValid reports whether the value is a known NotificationSeverity.
func (n NotificationSeverity) IsValid() bool {
	for _, candidate := range validNotificationSeverities {
		if candidate == n {
			return true
		}
	}
	return false
}

// NotificationType names the business event behind a notification.
type NotificationType string

const (
	NotificationTypeOrderStatusChanged NotificationType = "order_status_changed"
	NotificationTypePaymentConfirmed   NotificationType = "payment_confirmed"
	NotificationTypeHoldReleased       NotificationType = "hold_released"
	NotificationTypeRefundIssued       NotificationType = "refund_issued"
	NotificationTypeDisputeOpened      NotificationType = "dispute_opened"
	NotificationTypeDisputeResolved    NotificationType = "dispute_resolved"
	NotificationTypeDisputeEscalated   NotificationType = "dispute_escalated"
	NotificationTypeReturnApproved     NotificationType = "return_approved"
	NotificationTypeReturnRejected     NotificationType = "return_rejected"
	NotificationTypePayoutCompleted    NotificationType = "payout_completed"
	NotificationTypePayoutFailed       NotificationType = "payout_failed"
	NotificationTypeRepaymentRequired  NotificationType = "repayment_required"
	NotificationTypeWebhookExhausted   NotificationType = "webhook_exhausted"
)
