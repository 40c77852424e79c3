// Package calc implements the bidirectional line-item math shared by quote
// and sale items: forward (unit price → total) and inverse (target total →
// unit price), plus the monetary validations applied before any line is
// persisted.
package calc

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var (
	// ErrInvalidDiscount covers percentage discounts >= 100% and fixed
	// discounts larger than the line subtotal.
	ErrInvalidDiscount = errors.New("descuento inválido")
	// ErrNonPositiveQuantity is returned when quantity <= 0.
	ErrNonPositiveQuantity = errors.New("cantidad debe ser mayor a 0")
	// ErrNegativeUnitPrice signals an infeasible target total: reversing the
	// tax and discount yields a unit price below zero. The caller must raise
	// the total or lower the discount.
	ErrNegativeUnitPrice = errors.New("precio unitario negativo")
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// LineInput carries the five values every line computation depends on.
type LineInput struct {
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	TaxPercentage decimal.Decimal
}

// Amounts is the result of the forward computation.
type Amounts struct {
	Subtotal             decimal.Decimal
	DiscountAmount       decimal.Decimal
	SubtotalWithDiscount decimal.Decimal
	TaxAmount            decimal.Decimal
	Total                decimal.Decimal
}

// Compute runs the forward calculation: subtotal, discount, tax, total.
func Compute(in LineInput) Amounts {
	subtotal := in.UnitPrice.Mul(in.Quantity)

	var discount decimal.Decimal
	switch in.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(in.DiscountValue.Div(hundred))
	case DiscountFixed:
		discount = in.DiscountValue
	default:
		discount = decimal.Zero
	}

	withDiscount := subtotal.Sub(discount)
	tax := withDiscount.Mul(in.TaxPercentage.Div(hundred))

	return Amounts{
		Subtotal:             subtotal,
		DiscountAmount:       discount,
		SubtotalWithDiscount: withDiscount,
		TaxAmount:            tax,
		Total:                withDiscount.Add(tax),
	}
}

// DeriveUnitPrice works backwards from a target total: reverse the tax, then
// the discount, then divide by quantity. UnitPrice on the input is ignored.
func DeriveUnitPrice(in LineInput, targetTotal decimal.Decimal) (decimal.Decimal, error) {
	if in.Quantity.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNonPositiveQuantity, in.Quantity)
	}

	// 1. Reverse tax
	taxMultiplier := one.Add(in.TaxPercentage.Div(hundred))
	preTax := targetTotal.Div(taxMultiplier)

	// 2. Reverse discount
	var preDiscount decimal.Decimal
	switch in.DiscountType {
	case DiscountPercentage:
		discountMultiplier := one.Sub(in.DiscountValue.Div(hundred))
		if discountMultiplier.Sign() <= 0 {
			return decimal.Zero, fmt.Errorf("%w: descuento porcentual %s%% >= 100%%",
				ErrInvalidDiscount, in.DiscountValue)
		}
		preDiscount = preTax.Div(discountMultiplier)
	case DiscountFixed:
		preDiscount = preTax.Add(in.DiscountValue)
	default:
		preDiscount = preTax
	}

	// 3. Unit price
	price := preDiscount.Div(in.Quantity)
	if price.Sign() < 0 {
		return decimal.Zero, fmt.Errorf(
			"%w: total deseado $%s generaría precio $%s — aumente el total o reduzca descuentos",
			ErrNegativeUnitPrice, targetTotal.StringFixed(2), price.StringFixed(2))
	}
	return price, nil
}

// Validate enforces the monetary invariants checked before a line is
// persisted, after any mode-specific derivation has run.
func Validate(in LineInput) error {
	if in.Quantity.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrNonPositiveQuantity, in.Quantity)
	}
	if in.UnitPrice.Sign() < 0 {
		return fmt.Errorf("%w: $%s — revise descuentos o el total deseado",
			ErrNegativeUnitPrice, in.UnitPrice.StringFixed(2))
	}
	if in.DiscountType == DiscountFixed {
		max := in.UnitPrice.Mul(in.Quantity)
		if in.DiscountValue.GreaterThan(max) {
			return fmt.Errorf("%w: descuento fijo $%s supera el subtotal — máximo $%s",
				ErrInvalidDiscount, in.DiscountValue.StringFixed(2), max.StringFixed(2))
		}
	}
	return nil
}
