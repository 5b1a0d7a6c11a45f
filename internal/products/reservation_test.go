package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	pkgerrors "github.com/avalencia/storefront-backend/pkg/errors"
)

func TestReserveInventory(t *testing.T) {
	t.Parallel()

	db := newReservationTestDB(t)
	ctx := context.Background()
	productA := uuid.New()
	productB := uuid.New()

	for _, item := range []models.InventoryItem{
		{ProductID: productA, AvailableQty: 5},
		{ProductID: productB, AvailableQty: 1},
	} {
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	requests := []InventoryReservationRequest{
		{CartItemID: uuid.New(), ProductID: productA, Qty: 3},
		{CartItemID: uuid.New(), ProductID: productA, Qty: 4},
		{CartItemID: uuid.New(), ProductID: productB, Qty: 1},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := ReserveInventory(ctx, tx, requests)
		if terr != nil {
			return terr
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Reserved || results[0].Reason != "" {
			t.Fatalf("expected first reservation to succeed")
		}
		if results[1].Reserved || results[1].Reason == "" {
			t.Fatalf("expected second reservation to fail with reason")
		}
		if !results[2].Reserved {
			t.Fatalf("expected third reservation to succeed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var invA, invB models.InventoryItem
	if err := db.First(&invA, "product_id = ?", productA).Error; err != nil {
		t.Fatalf("load inventory a: %v", err)
	}
	if err := db.First(&invB, "product_id = ?", productB).Error; err != nil {
		t.Fatalf("load inventory b: %v", err)
	}
	if invA.AvailableQty != 2 || invA.ReservedQty != 3 {
		t.Fatalf("unexpected inventory a state: %+v", invA)
	}
	if invB.AvailableQty != 0 || invB.ReservedQty != 1 {
		t.Fatalf("unexpected inventory b state: %+v", invB)
	}
}

func TestReserveInventoryInvalidQty(t *testing.T) {
	t.Parallel()

	db := newReservationTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: product, AvailableQty: 5}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	_, err := ReserveInventory(ctx, db, []InventoryReservationRequest{{ProductID: product, Qty: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseAndCommitReservation(t *testing.T) {
	t.Parallel()

	db := newReservationTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryItem{ProductID: product, AvailableQty: 2, ReservedQty: 5}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	if err := ReleaseInventory(ctx, db, product, 2); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := CommitReservation(ctx, db, product, 3); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var inv models.InventoryItem
	if err := db.First(&inv, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableQty != 4 || inv.ReservedQty != 0 {
		t.Fatalf("unexpected inventory state: %+v", inv)
	}

	// Nothing reserved anymore, the guarded release must be a no-op.
	if err := ReleaseInventory(ctx, db, product, 1); err != nil {
		t.Fatalf("release no-op: %v", err)
	}
	if err := db.First(&inv, "product_id = ?", product).Error; err != nil {
		t.Fatalf("reload inventory: %v", err)
	}
	if inv.AvailableQty != 4 || inv.ReservedQty != 0 {
		t.Fatalf("guarded release changed counters: %+v", inv)
	}
}

func newReservationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}
