package cart

import (
	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/db/models"
)

// AddItemRequest puts a product in the cart, merging with an existing line.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateItemRequest replaces a line's quantity.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// ItemResponse is one cart line with its observed unit price.
type ItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

// CartResponse is the full cart view with its running subtotal.
type CartResponse struct {
	ID            uuid.UUID      `json:"id"`
	Items         []ItemResponse `json:"items"`
	SubtotalCents int            `json:"subtotal_cents"`
}

func newCartResponse(cart models.Cart, titles map[uuid.UUID]string) CartResponse {
	resp := CartResponse{
		ID:    cart.ID,
		Items: make([]ItemResponse, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		total := item.UnitPriceCents * item.Quantity
		resp.Items = append(resp.Items, ItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Title:          titles[item.ProductID],
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     total,
		})
		resp.SubtotalCents += total
	}
	return resp
}
