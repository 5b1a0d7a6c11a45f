package payloads

import (
	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted in the checkout transaction once the order row
// and its side effects are committed together.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	UserID      uuid.UUID   `json:"user_id"`
	TotalCents  int         `json:"total_cents"`
	CouponCode  *string     `json:"coupon_code,omitempty"`
	LineItemIDs []uuid.UUID `json:"line_item_ids"`
}

// OrderStatusChangedEvent is emitted on admin-driven transitions.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	UserID        uuid.UUID            `json:"user_id"`
	PreviousState enums.OrderStatus    `json:"previous_state"`
	NewState      enums.OrderStatus    `json:"new_state"`
	PaymentStatus *enums.PaymentStatus `json:"payment_status,omitempty"`
}

// OrderCanceledEvent is emitted when a buyer or admin cancels an order.
type OrderCanceledEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	UserID        uuid.UUID `json:"user_id"`
	ReleasedItems int       `json:"released_items"`
}

// CouponRedeemedEvent is emitted when a coupon is spent, either during
// checkout or through the standalone redeem endpoint.
type CouponRedeemedEvent struct {
	CouponID      uuid.UUID `json:"coupon_id"`
	PromotionID   uuid.UUID `json:"promotion_id"`
	UserID        uuid.UUID `json:"user_id"`
	OrderID       uuid.UUID `json:"order_id"`
	Code          string    `json:"code"`
	DiscountCents int       `json:"discount_cents"`
}
