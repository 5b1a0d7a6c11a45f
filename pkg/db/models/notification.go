package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/enums"
)

// Notification is an order-lifecycle message surfaced to the user, written by
// the worker consuming published order events.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Kind      enums.NotificationKind `gorm:"column:kind;not null"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	Message   string                 `gorm:"column:message;not null"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
