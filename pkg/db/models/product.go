package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog listing. Pricing is stored in integer cents; the
// optional sale price, when set, must not exceed the list price.
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	SKU            string         `gorm:"column:sku;not null;uniqueIndex:ux_products_sku"`
	Title          string         `gorm:"column:title;not null"`
	Description    *string        `gorm:"column:description"`
	PriceCents     int            `gorm:"column:price_cents;not null"`
	SalePriceCents *int           `gorm:"column:sale_price_cents"`
	IsActive       bool           `gorm:"column:is_active;not null"`
	Inventory      *InventoryItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePriceCents returns the sale price when present, else the list price.
func (p Product) EffectivePriceCents() int {
	if p.SalePriceCents != nil && *p.SalePriceCents < p.PriceCents {
		return *p.SalePriceCents
	}
	return p.PriceCents
}
