package promotions

import (
	"github.com/shopspring/decimal"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	pkgerrors "github.com/avalencia/storefront-backend/pkg/errors"
)

var cents100 = decimal.NewFromInt(100)

// ComputeDiscountCents resolves the discount a promotion grants on the given
// subtotal. Percentage values are whole percents of the subtotal; fixed values
// are cents. The result is clamped to [0, subtotal] so an order total can
// never go negative.
func ComputeDiscountCents(promotion models.Promotion, subtotalCents int) (int, error) {
	if subtotalCents < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "subtotal cannot be negative")
	}

	var discount int
	switch promotion.DiscountType {
	case enums.DiscountTypePercentage:
		pct := decimal.NewFromInt(int64(promotion.DiscountValue)).Div(cents100)
		raw := decimal.NewFromInt(int64(subtotalCents)).Mul(pct)
		// Round half up to whole cents, in the shopper's favor on ties.
		discount = int(raw.Round(0).IntPart())
	case enums.DiscountTypeFixed:
		discount = promotion.DiscountValue
	default:
		return 0, pkgerrors.Newf(pkgerrors.CodeInternal, "unknown discount type %q", promotion.DiscountType)
	}

	if discount < 0 {
		discount = 0
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount, nil
}

// FormatCentsAsDollars renders integer cents as a dollar string for
// user-facing messages. Whole-dollar amounts drop the cents ("25",
// not "25.00"); anything else keeps two decimals ("18.50").
func FormatCentsAsDollars(cents int) string {
	if cents%100 == 0 {
		return decimal.NewFromInt(int64(cents / 100)).String()
	}
	return decimal.NewFromInt(int64(cents)).Div(cents100).StringFixed(2)
}
