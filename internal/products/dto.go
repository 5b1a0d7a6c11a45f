package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/db/models"
)

// CreateProductRequest is the admin payload for a new catalog listing.
type CreateProductRequest struct {
	SKU            string  `json:"sku" validate:"required"`
	Title          string  `json:"title" validate:"required"`
	Description    *string `json:"description,omitempty"`
	PriceCents     int     `json:"price_cents" validate:"required,gt=0"`
	SalePriceCents *int    `json:"sale_price_cents,omitempty" validate:"omitempty,gt=0"`
	IsActive       *bool   `json:"is_active,omitempty"`
	StockQty       int     `json:"stock_qty" validate:"gte=0"`
}

// UpdateProductRequest carries partial updates; nil fields are left untouched.
type UpdateProductRequest struct {
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	PriceCents     *int    `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	SalePriceCents *int    `json:"sale_price_cents,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

// SetStockRequest replaces the available quantity for a product.
type SetStockRequest struct {
	AvailableQty int `json:"available_qty" validate:"gte=0"`
}

// ProductResponse is the public catalog view.
type ProductResponse struct {
	ID                  uuid.UUID `json:"id"`
	SKU                 string    `json:"sku"`
	Title               string    `json:"title"`
	Description         *string   `json:"description,omitempty"`
	PriceCents          int       `json:"price_cents"`
	SalePriceCents      *int      `json:"sale_price_cents,omitempty"`
	EffectivePriceCents int       `json:"effective_price_cents"`
	IsActive            bool      `json:"is_active"`
	AvailableQty        int       `json:"available_qty"`
	CreatedAt           time.Time `json:"created_at"`
}

// ProductListResponse is a cursor page of catalog listings.
type ProductListResponse struct {
	Products   []ProductResponse `json:"products"`
	NextCursor *string           `json:"next_cursor,omitempty"`
}

// NewProductResponse maps a product row into its public view.
func NewProductResponse(product models.Product) ProductResponse {
	available := 0
	if product.Inventory != nil {
		available = product.Inventory.AvailableQty
	}
	return ProductResponse{
		ID:                  product.ID,
		SKU:                 product.SKU,
		Title:               product.Title,
		Description:         product.Description,
		PriceCents:          product.PriceCents,
		SalePriceCents:      product.SalePriceCents,
		EffectivePriceCents: product.EffectivePriceCents(),
		IsActive:            product.IsActive,
		AvailableQty:        available,
		CreatedAt:           product.CreatedAt,
	}
}
