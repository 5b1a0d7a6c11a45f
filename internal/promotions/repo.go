package promotions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
)

// Repository handles promotion and coupon persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePromotion(ctx context.Context, promotion *models.Promotion) error
	UpdatePromotionStatus(ctx context.Context, id uuid.UUID, status enums.PromotionStatus) error
	FindPromotionByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	ListPromotions(ctx context.Context) ([]models.Promotion, error)
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, *models.Promotion, error)
	ListCouponsByUser(ctx context.Context, userID uuid.UUID) ([]models.Coupon, error)
	MarkCouponUsed(ctx context.Context, couponID, orderID uuid.UUID, at time.Time) (int64, error)
	IncrementUsage(ctx context.Context, promotionID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a promotions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePromotion(ctx context.Context, promotion *models.Promotion) error {
	return r.db.WithContext(ctx).Create(promotion).Error
}

func (r *repository) UpdatePromotionStatus(ctx context.Context, id uuid.UUID, status enums.PromotionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Promotion{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) FindPromotionByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	var promotion models.Promotion
	if err := r.db.WithContext(ctx).
		Preload("Coupons").
		Where("id = ?", id).
		First(&promotion).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &promotion, nil
}

func (r *repository) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promotions []models.Promotion
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&promotions).Error; err != nil {
		return nil, err
	}
	return promotions, nil
}

func (r *repository) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, *models.Promotion, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, nil
	}
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&coupon).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var promotion models.Promotion
	if err := r.db.WithContext(ctx).
		Where("id = ?", coupon.PromotionID).
		First(&promotion).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &coupon, nil, nil
		}
		return nil, nil, err
	}
	return &coupon, &promotion, nil
}

func (r *repository) ListCouponsByUser(ctx context.Context, userID uuid.UUID) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

// MarkCouponUsed flips is_used exactly once. The WHERE clause is the
// double-spend guard: a second caller sees zero rows affected.
func (r *repository) MarkCouponUsed(ctx context.Context, couponID, orderID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND is_used = ?", couponID, false).
		Updates(map[string]any{
			"is_used":  true,
			"used_at":  at,
			"order_id": orderID,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) IncrementUsage(ctx context.Context, promotionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Promotion{}).
		Where("id = ?", promotionID).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
}
