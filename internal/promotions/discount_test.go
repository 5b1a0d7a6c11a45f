package promotions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	pkgerrors "github.com/avalencia/storefront-backend/pkg/errors"
)

func TestComputeDiscountCentsPercentage(t *testing.T) {
	t.Parallel()

	promo := models.Promotion{DiscountType: enums.DiscountTypePercentage, DiscountValue: 10}

	discount, err := ComputeDiscountCents(promo, 2000)
	require.NoError(t, err)
	assert.Equal(t, 200, discount)

	// 10% of 2005 is 200.5, rounded half up.
	discount, err = ComputeDiscountCents(promo, 2005)
	require.NoError(t, err)
	assert.Equal(t, 201, discount)

	discount, err = ComputeDiscountCents(promo, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, discount)
}

func TestComputeDiscountCentsFixedClamped(t *testing.T) {
	t.Parallel()

	promo := models.Promotion{DiscountType: enums.DiscountTypeFixed, DiscountValue: 500}

	discount, err := ComputeDiscountCents(promo, 2000)
	require.NoError(t, err)
	assert.Equal(t, 500, discount)

	// The discount never exceeds the subtotal.
	discount, err = ComputeDiscountCents(promo, 300)
	require.NoError(t, err)
	assert.Equal(t, 300, discount)
}

func TestComputeDiscountCentsRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := ComputeDiscountCents(models.Promotion{DiscountType: enums.DiscountTypePercentage, DiscountValue: 10}, -1)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = ComputeDiscountCents(models.Promotion{DiscountType: enums.DiscountType("bogus")}, 100)
	require.Error(t, err)
}

func TestFormatCentsAsDollars(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "25", FormatCentsAsDollars(2500))
	assert.Equal(t, "0.05", FormatCentsAsDollars(5))
	assert.Equal(t, "10.50", FormatCentsAsDollars(1050))
	assert.Equal(t, "0", FormatCentsAsDollars(0))
}
