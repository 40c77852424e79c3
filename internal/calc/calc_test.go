package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCompute_PercentageDiscountWithTax(t *testing.T) {
	// 10 × $100, 10% discount, 21% tax
	a := Compute(LineInput{
		Quantity:      dec("10"),
		UnitPrice:     dec("100"),
		DiscountType:  DiscountPercentage,
		DiscountValue: dec("10"),
		TaxPercentage: dec("21"),
	})

	assert.True(t, a.Subtotal.Equal(dec("1000")), "subtotal: %s", a.Subtotal)
	assert.True(t, a.DiscountAmount.Equal(dec("100")), "discount: %s", a.DiscountAmount)
	assert.True(t, a.SubtotalWithDiscount.Equal(dec("900")), "with discount: %s", a.SubtotalWithDiscount)
	assert.True(t, a.TaxAmount.Equal(dec("189")), "tax: %s", a.TaxAmount)
	assert.True(t, a.Total.Equal(dec("1089")), "total: %s", a.Total)
}

func TestCompute_FixedAndNoDiscount(t *testing.T) {
	fixed := Compute(LineInput{
		Quantity:      dec("3"),
		UnitPrice:     dec("50"),
		DiscountType:  DiscountFixed,
		DiscountValue: dec("25"),
		TaxPercentage: dec("10.5"),
	})
	assert.True(t, fixed.DiscountAmount.Equal(dec("25")))
	assert.True(t, fixed.SubtotalWithDiscount.Equal(dec("125")))
	assert.True(t, fixed.Total.Equal(dec("138.125")))

	none := Compute(LineInput{
		Quantity:     dec("2"),
		UnitPrice:    dec("99.99"),
		DiscountType: DiscountNone,
	})
	assert.True(t, none.DiscountAmount.IsZero())
	assert.True(t, none.Total.Equal(dec("199.98")))
}

func TestDeriveUnitPrice_RecoversOriginalPrice(t *testing.T) {
	in := LineInput{
		Quantity:      dec("10"),
		DiscountType:  DiscountPercentage,
		DiscountValue: dec("10"),
		TaxPercentage: dec("21"),
	}
	price, err := DeriveUnitPrice(in, dec("1089"))
	require.NoError(t, err)
	assert.True(t, price.Round(2).Equal(dec("100.00")), "derived: %s", price)
}

// The inverse must undo the forward computation within rounding tolerance for
// every mode/rate combination a line can carry.
func TestRoundTrip_PriceToTotalAndBack(t *testing.T) {
	cases := []struct {
		name  string
		input LineInput
	}{
		{"no discount no tax", LineInput{Quantity: dec("4"), UnitPrice: dec("12.50")}},
		{"percentage discount", LineInput{Quantity: dec("7"), UnitPrice: dec("33.33"), DiscountType: DiscountPercentage, DiscountValue: dec("15"), TaxPercentage: dec("21")}},
		{"fixed discount", LineInput{Quantity: dec("2.500"), UnitPrice: dec("480"), DiscountType: DiscountFixed, DiscountValue: dec("100"), TaxPercentage: dec("10.5")}},
		{"fractional quantity", LineInput{Quantity: dec("0.750"), UnitPrice: dec("1999.99"), DiscountType: DiscountPercentage, DiscountValue: dec("5"), TaxPercentage: dec("27")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total := Compute(tc.input).Total
			derived, err := DeriveUnitPrice(tc.input, total)
			require.NoError(t, err)
			assert.True(t, derived.Round(2).Equal(tc.input.UnitPrice.Round(2)),
				"want %s got %s", tc.input.UnitPrice, derived)
		})
	}
}

func TestDeriveUnitPrice_Errors(t *testing.T) {
	t.Run("discount at 100 percent", func(t *testing.T) {
		_, err := DeriveUnitPrice(LineInput{
			Quantity:      dec("1"),
			DiscountType:  DiscountPercentage,
			DiscountValue: dec("100"),
		}, dec("500"))
		assert.ErrorIs(t, err, ErrInvalidDiscount)
	})

	t.Run("discount above 100 percent", func(t *testing.T) {
		_, err := DeriveUnitPrice(LineInput{
			Quantity:      dec("1"),
			DiscountType:  DiscountPercentage,
			DiscountValue: dec("120"),
		}, dec("500"))
		assert.ErrorIs(t, err, ErrInvalidDiscount)
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := DeriveUnitPrice(LineInput{Quantity: decimal.Zero}, dec("100"))
		assert.ErrorIs(t, err, ErrNonPositiveQuantity)
	})

	t.Run("negative derived price", func(t *testing.T) {
		// Fixed discount reversal cannot go negative, but a negative target can.
		_, err := DeriveUnitPrice(LineInput{Quantity: dec("1")}, dec("-10"))
		assert.ErrorIs(t, err, ErrNegativeUnitPrice)
	})
}

func TestValidate(t *testing.T) {
	base := LineInput{Quantity: dec("2"), UnitPrice: dec("30")}

	assert.NoError(t, Validate(base))

	neg := base
	neg.UnitPrice = dec("-1")
	assert.ErrorIs(t, Validate(neg), ErrNegativeUnitPrice)

	zeroQty := base
	zeroQty.Quantity = decimal.Zero
	assert.ErrorIs(t, Validate(zeroQty), ErrNonPositiveQuantity)

	overFixed := base
	overFixed.DiscountType = DiscountFixed
	overFixed.DiscountValue = dec("61") // subtotal is 60
	assert.ErrorIs(t, Validate(overFixed), ErrInvalidDiscount)

	atLimit := base
	atLimit.DiscountType = DiscountFixed
	atLimit.DiscountValue = dec("60")
	assert.NoError(t, Validate(atLimit))
}
