package promotions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avalencia/storefront-backend/pkg/db"
	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	pkgerrors "github.com/avalencia/storefront-backend/pkg/errors"
	"github.com/avalencia/storefront-backend/pkg/outbox"
	"github.com/avalencia/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines promotion and coupon operations used by the controllers and
// by checkout.
type Service interface {
	CreatePromotion(ctx context.Context, req CreatePromotionRequest) (*PromotionResponse, error)
	GetPromotion(ctx context.Context, id uuid.UUID) (*PromotionResponse, error)
	ListPromotions(ctx context.Context) ([]PromotionResponse, error)
	ListMyCoupons(ctx context.Context, userID uuid.UUID) ([]CouponResponse, error)
	Verify(ctx context.Context, userID uuid.UUID, req VerifyCouponRequest) (*VerifyCouponResponse, error)
	Redeem(ctx context.Context, userID uuid.UUID, req RedeemCouponRequest) (*CouponResponse, error)
	ValidateForCheckout(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string, subtotalCents int) (*CouponQuote, error)
	SpendCoupon(ctx context.Context, tx *gorm.DB, quote CouponQuote, orderID, actorID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService constructs the promotions service with the provided dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		now:    time.Now,
	}, nil
}

func (s *service) CreatePromotion(ctx context.Context, req CreatePromotionRequest) (*PromotionResponse, error) {
	if !req.DiscountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	}
	if req.DiscountValue <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if req.DiscountType == enums.DiscountTypePercentage && req.DiscountValue > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion must end after it starts")
	}
	if len(req.Assignments) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one coupon assignment required")
	}

	expiresAt := req.EndsAt
	if req.CouponTTLDays > 0 {
		expiresAt = req.StartsAt.Add(time.Duration(req.CouponTTLDays) * 24 * time.Hour)
		if expiresAt.After(req.EndsAt) {
			expiresAt = req.EndsAt
		}
	}

	status := enums.PromotionStatusDraft
	if req.Activate {
		status = enums.PromotionStatusActive
	}

	promotion := models.Promotion{
		Name:                 strings.TrimSpace(req.Name),
		Status:               status,
		DiscountType:         req.DiscountType,
		DiscountValue:        req.DiscountValue,
		MinimumPurchaseCents: req.MinimumPurchaseCents,
		StartsAt:             req.StartsAt,
		EndsAt:               req.EndsAt,
	}
	for _, assignment := range req.Assignments {
		code := strings.ToUpper(strings.TrimSpace(assignment.Code))
		if code == "" {
			code = generateCouponCode()
		}
		promotion.Coupons = append(promotion.Coupons, models.Coupon{
			UserID:    assignment.UserID,
			Email:     strings.ToLower(strings.TrimSpace(assignment.Email)),
			Code:      code,
			ExpiresAt: expiresAt,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreatePromotion(ctx, &promotion); err != nil {
			if db.IsUniqueViolation(err, "ux_coupons_code") {
				return pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promotion")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := NewPromotionResponse(promotion, true)
	return &resp, nil
}

func (s *service) GetPromotion(ctx context.Context, id uuid.UUID) (*PromotionResponse, error) {
	promotion, err := s.repo.FindPromotionByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}
	if promotion == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
	}
	resp := NewPromotionResponse(*promotion, true)
	return &resp, nil
}

func (s *service) ListPromotions(ctx context.Context) ([]PromotionResponse, error) {
	promotions, err := s.repo.ListPromotions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promotions")
	}
	out := make([]PromotionResponse, 0, len(promotions))
	for _, promotion := range promotions {
		out = append(out, NewPromotionResponse(promotion, false))
	}
	return out, nil
}

func (s *service) ListMyCoupons(ctx context.Context, userID uuid.UUID) ([]CouponResponse, error) {
	coupons, err := s.repo.ListCouponsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	out := make([]CouponResponse, 0, len(coupons))
	for _, coupon := range coupons {
		out = append(out, NewCouponResponse(coupon))
	}
	return out, nil
}

// Verify answers whether a code would apply to a purchase of the given
// subtotal without spending it. Rule failures come back as Valid=false with a
// reason rather than an error, so clients can surface them inline.
func (s *service) Verify(ctx context.Context, userID uuid.UUID, req VerifyCouponRequest) (*VerifyCouponResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	resp := VerifyCouponResponse{Code: code}

	quote, err := s.validate(ctx, s.repo, userID, code, req.SubtotalCents)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() == pkgerrors.CodeDependency || typed.Code() == pkgerrors.CodeInternal {
			return nil, err
		}
		resp.Reason = typed.Message()
		return &resp, nil
	}

	resp.Valid = true
	resp.DiscountType = quote.Promotion.DiscountType
	resp.DiscountValue = quote.Promotion.DiscountValue
	resp.DiscountCents = quote.DiscountCents
	resp.MinimumPurchaseCents = quote.Promotion.MinimumPurchaseCents
	expires := quote.Coupon.ExpiresAt
	resp.ExpiresAt = &expires
	return &resp, nil
}

// Redeem spends a coupon against an order the caller already placed without
// it. The order must belong to the caller and not yet carry a coupon.
func (s *service) Redeem(ctx context.Context, userID uuid.UUID, req RedeemCouponRequest) (*CouponResponse, error) {
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var redeemed models.Coupon
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var order models.Order
		if err := tx.WithContext(ctx).
			Where("id = ?", req.OrderID).
			First(&order).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.CouponCode != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a coupon applied")
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed")
		}

		quote, err := s.validate(ctx, repo, userID, req.Code, order.SubtotalCents)
		if err != nil {
			return err
		}

		if err := s.SpendCoupon(ctx, tx, *quote, order.ID, userID); err != nil {
			return err
		}

		total := order.SubtotalCents - quote.DiscountCents
		if total < 0 {
			total = 0
		}
		code := quote.Coupon.Code
		if err := tx.WithContext(ctx).
			Model(&models.Order{}).
			Where("id = ?", order.ID).
			Updates(map[string]any{
				"coupon_code":    code,
				"discount_cents": quote.DiscountCents,
				"total_cents":    total,
			}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply discount to order")
		}

		redeemed = quote.Coupon
		redeemed.IsUsed = true
		now := s.now()
		redeemed.UsedAt = &now
		redeemed.OrderID = &order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := NewCouponResponse(redeemed)
	return &resp, nil
}

// ValidateForCheckout runs the coupon rules inside the checkout transaction
// and prices the discount against the order subtotal.
func (s *service) ValidateForCheckout(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string, subtotalCents int) (*CouponQuote, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for coupon validation")
	}
	return s.validate(ctx, s.repo.WithTx(tx), userID, code, subtotalCents)
}

func (s *service) validate(ctx context.Context, repo Repository, userID uuid.UUID, code string, subtotalCents int) (*CouponQuote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	coupon, promotion, err := repo.FindCouponByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if coupon == nil || promotion == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if coupon.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "coupon does not belong to this account")
	}
	if coupon.IsUsed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon already used")
	}

	now := s.now()
	if now.After(coupon.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon expired")
	}
	if promotion.Status != enums.PromotionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is not active")
	}
	if now.Before(promotion.StartsAt) || now.After(promotion.EndsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is outside its promotion window")
	}
	if subtotalCents < promotion.MinimumPurchaseCents {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation,
			"Minimum purchase of $%s required for this coupon",
			FormatCentsAsDollars(promotion.MinimumPurchaseCents))
	}

	discount, err := ComputeDiscountCents(*promotion, subtotalCents)
	if err != nil {
		return nil, err
	}

	return &CouponQuote{
		Coupon:        *coupon,
		Promotion:     *promotion,
		DiscountCents: discount,
	}, nil
}

// SpendCoupon marks the coupon used with the guarded update, bumps the
// promotion counter, and queues the redemption event. Must run inside the
// caller's transaction so a failed checkout rolls the redemption back.
func (s *service) SpendCoupon(ctx context.Context, tx *gorm.DB, quote CouponQuote, orderID, actorID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for coupon redemption")
	}
	repo := s.repo.WithTx(tx)

	affected, err := repo.MarkCouponUsed(ctx, quote.Coupon.ID, orderID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark coupon used")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon already used")
	}

	if err := repo.IncrementUsage(ctx, quote.Promotion.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment promotion usage")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventCouponRedeemed,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   quote.Coupon.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actorID},
		Data: payloads.CouponRedeemedEvent{
			CouponID:      quote.Coupon.ID,
			PromotionID:   quote.Promotion.ID,
			UserID:        quote.Coupon.UserID,
			OrderID:       orderID,
			Code:          quote.Coupon.Code,
			DiscountCents: quote.DiscountCents,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func generateCouponCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "PROMO-" + raw[:10]
}
