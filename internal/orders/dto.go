package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	"github.com/avalencia/storefront-backend/pkg/types"
)

// CheckoutRequest places an order from the caller's cart. ShippingAddress is
// optional; when absent the account's default address is used.
type CheckoutRequest struct {
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	ShippingAddress *types.Address      `json:"shipping_address,omitempty"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
}

// UpdateStatusRequest is the admin payload for a lifecycle transition.
type UpdateStatusRequest struct {
	Status        enums.OrderStatus    `json:"status" validate:"required"`
	PaymentStatus *enums.PaymentStatus `json:"payment_status,omitempty"`
}

// ItemResponse is one snapshotted order line.
type ItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	TotalCents     int       `json:"total_cents"`
}

// OrderResponse is the full order view.
type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	ShippingAddress types.Address       `json:"shipping_address"`
	Items           []ItemResponse      `json:"items"`
	SubtotalCents   int                 `json:"subtotal_cents"`
	DiscountCents   int                 `json:"discount_cents"`
	TotalCents      int                 `json:"total_cents"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CanceledAt      *time.Time          `json:"canceled_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// OrderListResponse is a cursor page of orders.
type OrderListResponse struct {
	Orders     []OrderResponse `json:"orders"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

// NewOrderResponse maps an order row into its public view.
func NewOrderResponse(order models.Order) OrderResponse {
	resp := OrderResponse{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		Items:           make([]ItemResponse, 0, len(order.Items)),
		SubtotalCents:   order.SubtotalCents,
		DiscountCents:   order.DiscountCents,
		TotalCents:      order.TotalCents,
		CouponCode:      order.CouponCode,
		DeliveredAt:     order.DeliveredAt,
		CanceledAt:      order.CanceledAt,
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Title:          item.Title,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			TotalCents:     item.TotalCents,
		})
	}
	return resp
}
