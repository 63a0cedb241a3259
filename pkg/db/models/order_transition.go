package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// OrderTransition is the immutable audit row written alongside every accepted
// order status change, in the same transaction.
type OrderTransition struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	FromStatus  enums.OrderStatus `gorm:"column:from_status;type:order_status;not null"`
	ToStatus    enums.OrderStatus `gorm:"column:to_status;type:order_status;not null"`
	Reason      string            `gorm:"column:reason;type:text;not null"`
	ActorUserID uuid.UUID         `gorm:"column:actor_user_id;type:uuid;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
