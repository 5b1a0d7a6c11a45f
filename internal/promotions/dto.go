package promotions

import (
	"time"

	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
)

// CouponAssignment names one recipient of a promotion's coupons.
type CouponAssignment struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Email  string    `json:"email" validate:"required,email"`
	Code   string    `json:"code,omitempty"`
}

// CreatePromotionRequest is the admin payload for a campaign with its coupons.
type CreatePromotionRequest struct {
	Name                 string             `json:"name" validate:"required"`
	DiscountType         enums.DiscountType `json:"discount_type" validate:"required"`
	DiscountValue        int                `json:"discount_value" validate:"required,gt=0"`
	MinimumPurchaseCents int                `json:"minimum_purchase_cents" validate:"gte=0"`
	StartsAt             time.Time          `json:"starts_at" validate:"required"`
	EndsAt               time.Time          `json:"ends_at" validate:"required"`
	CouponTTLDays        int                `json:"coupon_ttl_days" validate:"gte=0"`
	Activate             bool               `json:"activate"`
	Assignments          []CouponAssignment `json:"assignments" validate:"required,min=1,dive"`
}

// PromotionResponse is the admin view of a campaign.
type PromotionResponse struct {
	ID                   uuid.UUID             `json:"id"`
	Name                 string                `json:"name"`
	Status               enums.PromotionStatus `json:"status"`
	DiscountType         enums.DiscountType    `json:"discount_type"`
	DiscountValue        int                   `json:"discount_value"`
	MinimumPurchaseCents int                   `json:"minimum_purchase_cents"`
	StartsAt             time.Time             `json:"starts_at"`
	EndsAt               time.Time             `json:"ends_at"`
	UsageCount           int                   `json:"usage_count"`
	Coupons              []CouponResponse      `json:"coupons,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
}

// CouponResponse is the coupon view returned to both admins and owners.
type CouponResponse struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Email     string     `json:"email,omitempty"`
	IsUsed    bool       `json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// VerifyCouponRequest checks a code against a prospective purchase amount.
type VerifyCouponRequest struct {
	Code          string `json:"code" validate:"required"`
	SubtotalCents int    `json:"subtotal_cents" validate:"gte=0"`
}

// VerifyCouponResponse reports whether a coupon would apply and at what value.
type VerifyCouponResponse struct {
	Valid                bool               `json:"valid"`
	Code                 string             `json:"code"`
	DiscountType         enums.DiscountType `json:"discount_type,omitempty"`
	DiscountValue        int                `json:"discount_value,omitempty"`
	DiscountCents        int                `json:"discount_cents"`
	MinimumPurchaseCents int                `json:"minimum_purchase_cents,omitempty"`
	ExpiresAt            *time.Time         `json:"expires_at,omitempty"`
	Reason               string             `json:"reason,omitempty"`
}

// RedeemCouponRequest spends a coupon against an existing order.
type RedeemCouponRequest struct {
	Code    string    `json:"code" validate:"required"`
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// CouponQuote is the internal result of validating a coupon during checkout.
type CouponQuote struct {
	Coupon        models.Coupon
	Promotion     models.Promotion
	DiscountCents int
}

// NewPromotionResponse maps a promotion row into its admin view.
func NewPromotionResponse(promotion models.Promotion, includeCoupons bool) PromotionResponse {
	resp := PromotionResponse{
		ID:                   promotion.ID,
		Name:                 promotion.Name,
		Status:               promotion.Status,
		DiscountType:         promotion.DiscountType,
		DiscountValue:        promotion.DiscountValue,
		MinimumPurchaseCents: promotion.MinimumPurchaseCents,
		StartsAt:             promotion.StartsAt,
		EndsAt:               promotion.EndsAt,
		UsageCount:           promotion.UsageCount,
		CreatedAt:            promotion.CreatedAt,
	}
	if includeCoupons {
		resp.Coupons = make([]CouponResponse, 0, len(promotion.Coupons))
		for _, coupon := range promotion.Coupons {
			resp.Coupons = append(resp.Coupons, NewCouponResponse(coupon))
		}
	}
	return resp
}

// NewCouponResponse maps a coupon row into its public view.
func NewCouponResponse(coupon models.Coupon) CouponResponse {
	return CouponResponse{
		ID:        coupon.ID,
		Code:      coupon.Code,
		Email:     coupon.Email,
		IsUsed:    coupon.IsUsed,
		UsedAt:    coupon.UsedAt,
		ExpiresAt: coupon.ExpiresAt,
	}
}
