package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/enums"
)

// Promotion defines a discount campaign. Percentage promotions store the whole
// percent in DiscountValue; fixed promotions store cents.
type Promotion struct {
	ID                   uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string                `gorm:"column:name;not null"`
	Status               enums.PromotionStatus `gorm:"column:status;not null;default:'draft'"`
	DiscountType         enums.DiscountType    `gorm:"column:discount_type;not null"`
	DiscountValue        int                   `gorm:"column:discount_value;not null"`
	MinimumPurchaseCents int                   `gorm:"column:minimum_purchase_cents;not null;default:0"`
	StartsAt             time.Time             `gorm:"column:starts_at;not null"`
	EndsAt               time.Time             `gorm:"column:ends_at;not null"`
	UsageCount           int                   `gorm:"column:usage_count;not null;default:0"`
	Coupons              []Coupon              `gorm:"foreignKey:PromotionID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Coupon is a single-use, per-user code issued under a promotion. Redemption
// flips IsUsed exactly once via a guarded update and records the order it was
// spent on.
type Coupon struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PromotionID uuid.UUID  `gorm:"column:promotion_id;type:uuid;not null;index"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	Email       string     `gorm:"column:email;not null"`
	Code        string     `gorm:"column:code;not null;uniqueIndex:ux_coupons_code"`
	IsUsed      bool       `gorm:"column:is_used;not null;default:false"`
	UsedAt      *time.Time `gorm:"column:used_at"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
