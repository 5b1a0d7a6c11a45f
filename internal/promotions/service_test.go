package promotions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avalencia/storefront-backend/pkg/db"
	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	pkgerrors "github.com/avalencia/storefront-backend/pkg/errors"
	"github.com/avalencia/storefront-backend/pkg/outbox"
)

func newPromotionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:promotions_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Promotion{},
		&models.Coupon{},
		&models.Order{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newPromotionsService(t *testing.T, conn *gorm.DB) *service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), db.NewWithConn(conn), outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)
	return svc.(*service)
}

func seedCoupon(t *testing.T, conn *gorm.DB, userID uuid.UUID, promo models.Promotion) models.Coupon {
	t.Helper()
	if promo.Name == "" {
		promo.Name = "Spring Sale"
	}
	if promo.Status == "" {
		promo.Status = enums.PromotionStatusActive
	}
	if promo.StartsAt.IsZero() {
		promo.StartsAt = time.Now().Add(-time.Hour)
	}
	if promo.EndsAt.IsZero() {
		promo.EndsAt = time.Now().Add(24 * time.Hour)
	}
	if err := conn.Create(&promo).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}
	// Codes are stored uppercase, the way the service mints them.
	coupon := models.Coupon{
		PromotionID: promo.ID,
		UserID:      userID,
		Email:       "shopper@example.com",
		Code:        "PROMO-" + strings.ToUpper(uuid.NewString()[:8]),
		ExpiresAt:   promo.EndsAt,
	}
	if err := conn.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

func TestVerifyCouponAppliesPercentage(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)
	userID := uuid.New()
	coupon := seedCoupon(t, conn, userID, models.Promotion{
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: 10,
	})

	resp, err := svc.Verify(context.Background(), userID, VerifyCouponRequest{
		Code:          coupon.Code,
		SubtotalCents: 2000,
	})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, 200, resp.DiscountCents)
	assert.Empty(t, resp.Reason)

	// Shoppers type codes however they like; lookup normalizes the case.
	lower, err := svc.Verify(context.Background(), userID, VerifyCouponRequest{
		Code:          strings.ToLower(coupon.Code),
		SubtotalCents: 2000,
	})
	require.NoError(t, err)
	assert.True(t, lower.Valid)
	assert.Equal(t, 200, lower.DiscountCents)
}

func TestVerifyCouponBelowMinimumPurchase(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)
	userID := uuid.New()
	coupon := seedCoupon(t, conn, userID, models.Promotion{
		DiscountType:         enums.DiscountTypePercentage,
		DiscountValue:        10,
		MinimumPurchaseCents: 2500,
	})

	resp, err := svc.Verify(context.Background(), userID, VerifyCouponRequest{
		Code:          coupon.Code,
		SubtotalCents: 2000,
	})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "Minimum purchase of $25 required for this coupon", resp.Reason)
}

func TestVerifyCouponWrongOwnerAndUnknownCode(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)
	coupon := seedCoupon(t, conn, uuid.New(), models.Promotion{
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: 500,
	})

	resp, err := svc.Verify(context.Background(), uuid.New(), VerifyCouponRequest{Code: coupon.Code, SubtotalCents: 1000})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "coupon does not belong to this account", resp.Reason)

	resp, err = svc.Verify(context.Background(), uuid.New(), VerifyCouponRequest{Code: "NOPE", SubtotalCents: 1000})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "coupon not found", resp.Reason)
}

func TestVerifyCouponExpired(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)
	userID := uuid.New()
	coupon := seedCoupon(t, conn, userID, models.Promotion{
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: 500,
	})

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	resp, err := svc.Verify(context.Background(), userID, VerifyCouponRequest{Code: coupon.Code, SubtotalCents: 1000})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "coupon expired", resp.Reason)
}

func TestRedeemCouponUpdatesOrder(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)
	userID := uuid.New()
	coupon := seedCoupon(t, conn, userID, models.Promotion{
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: 10,
	})

	order := models.Order{
		UserID:        userID,
		Status:        enums.OrderStatusProcessing,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: enums.PaymentMethodCreditCard,
		SubtotalCents: 2000,
		TotalCents:    2000,
	}
	require.NoError(t, conn.Create(&order).Error)

	resp, err := svc.Redeem(context.Background(), userID, RedeemCouponRequest{Code: coupon.Code, OrderID: order.ID})
	require.NoError(t, err)
	assert.True(t, resp.IsUsed)

	var reloaded models.Order
	require.NoError(t, conn.First(&reloaded, "id = ?", order.ID).Error)
	require.NotNil(t, reloaded.CouponCode)
	assert.Equal(t, coupon.Code, *reloaded.CouponCode)
	assert.Equal(t, 200, reloaded.DiscountCents)
	assert.Equal(t, 1800, reloaded.TotalCents)

	var storedCoupon models.Coupon
	require.NoError(t, conn.First(&storedCoupon, "id = ?", coupon.ID).Error)
	assert.True(t, storedCoupon.IsUsed)
	require.NotNil(t, storedCoupon.OrderID)
	assert.Equal(t, order.ID, *storedCoupon.OrderID)

	var promo models.Promotion
	require.NoError(t, conn.First(&promo, "id = ?", coupon.PromotionID).Error)
	assert.Equal(t, 1, promo.UsageCount)

	var eventCount int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)

	// A second coupon cannot stack on the same order.
	second := seedCoupon(t, conn, userID, models.Promotion{
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: 100,
	})
	_, err = svc.Redeem(context.Background(), userID, RedeemCouponRequest{Code: second.Code, OrderID: order.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestRedeemCouponTwiceFails(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)
	userID := uuid.New()
	coupon := seedCoupon(t, conn, userID, models.Promotion{
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: 300,
	})

	first := models.Order{
		UserID:        userID,
		Status:        enums.OrderStatusProcessing,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: enums.PaymentMethodCreditCard,
		SubtotalCents: 1000,
		TotalCents:    1000,
	}
	require.NoError(t, conn.Create(&first).Error)
	secondOrder := first
	secondOrder.ID = uuid.Nil
	require.NoError(t, conn.Create(&secondOrder).Error)

	_, err := svc.Redeem(context.Background(), userID, RedeemCouponRequest{Code: coupon.Code, OrderID: first.ID})
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), userID, RedeemCouponRequest{Code: coupon.Code, OrderID: secondOrder.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestRedeemCouponForeignOrder(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)
	userID := uuid.New()
	coupon := seedCoupon(t, conn, userID, models.Promotion{
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: 300,
	})

	order := models.Order{
		UserID:        uuid.New(),
		Status:        enums.OrderStatusProcessing,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: enums.PaymentMethodCreditCard,
		SubtotalCents: 1000,
		TotalCents:    1000,
	}
	require.NoError(t, conn.Create(&order).Error)

	_, err := svc.Redeem(context.Background(), userID, RedeemCouponRequest{Code: coupon.Code, OrderID: order.ID})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestCreatePromotionMintsCoupons(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)

	starts := time.Now().Add(-time.Hour)
	resp, err := svc.CreatePromotion(context.Background(), CreatePromotionRequest{
		Name:          "Launch Week",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: 15,
		StartsAt:      starts,
		EndsAt:        starts.Add(14 * 24 * time.Hour),
		CouponTTLDays: 7,
		Activate:      true,
		Assignments: []CouponAssignment{
			{UserID: uuid.New(), Email: "a@example.com"},
			{UserID: uuid.New(), Email: "b@example.com", Code: "welcome-b"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PromotionStatusActive, resp.Status)
	require.Len(t, resp.Coupons, 2)
	assert.Contains(t, resp.Coupons[0].Code, "PROMO-")
	assert.Equal(t, "WELCOME-B", resp.Coupons[1].Code)

	// Coupon TTL caps expiry before the promotion end.
	expectedExpiry := starts.Add(7 * 24 * time.Hour)
	assert.WithinDuration(t, expectedExpiry, resp.Coupons[0].ExpiresAt, time.Second)
}

func TestCreatePromotionRejectsBadWindows(t *testing.T) {
	t.Parallel()

	conn := newPromotionsTestDB(t)
	svc := newPromotionsService(t, conn)

	now := time.Now()
	_, err := svc.CreatePromotion(context.Background(), CreatePromotionRequest{
		Name:          "Backwards",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: 10,
		StartsAt:      now,
		EndsAt:        now.Add(-time.Hour),
		Assignments:   []CouponAssignment{{UserID: uuid.New(), Email: "a@example.com"}},
	})
	require.Error(t, err)

	_, err = svc.CreatePromotion(context.Background(), CreatePromotionRequest{
		Name:          "Too Steep",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: 120,
		StartsAt:      now,
		EndsAt:        now.Add(time.Hour),
		Assignments:   []CouponAssignment{{UserID: uuid.New(), Email: "a@example.com"}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
