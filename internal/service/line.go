package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/calc"
	"github.com/melafrancom/erp-bulonera/internal/model"
	"github.com/melafrancom/erp-bulonera/internal/repository"
)

var errTargetTotalRequired = errors.New(`target_total requerido para modo "total_to_price"`)

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// lineState is the mode-relevant slice of a line, shared by quote and sale
// items so both run through the same derivation and validation.
type lineState struct {
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	DiscountType  calc.DiscountType
	DiscountValue decimal.Decimal
	TaxPercentage decimal.Decimal
	Mode          model.CalculationMode
	TargetTotal   *decimal.Decimal
}

// resolveLine is the single point where a line's calculation mode is applied,
// immediately before persisting. price_to_total keeps target_total in sync
// with the computed total; total_to_price derives the unit price backwards;
// manual leaves the stored price as entered. The monetary invariants are then
// re-validated — a failure here aborts the whole write.
func resolveLine(st *lineState) error {
	in := calc.LineInput{
		Quantity:      st.Quantity,
		UnitPrice:     st.UnitPrice,
		DiscountType:  st.DiscountType,
		DiscountValue: st.DiscountValue,
		TaxPercentage: st.TaxPercentage,
	}

	switch st.Mode {
	case model.ModePriceToTotal:
		total := calc.Compute(in).Total
		st.TargetTotal = &total
	case model.ModeTotalToPrice:
		if st.TargetTotal == nil {
			return errTargetTotalRequired
		}
		price, err := calc.DeriveUnitPrice(in, *st.TargetTotal)
		if err != nil {
			return err
		}
		st.UnitPrice = price
		in.UnitPrice = price
	case model.ModeManual:
		// the stored unit price is authoritative as entered
	default:
		return fmt.Errorf("calculation_mode desconocido: %q", st.Mode)
	}

	return calc.Validate(in)
}

func resolveQuoteItem(item *model.QuoteItem) error {
	st := lineState{
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		DiscountType:  item.DiscountType,
		DiscountValue: item.DiscountValue,
		TaxPercentage: item.TaxPercentage,
		Mode:          item.CalculationMode,
		TargetTotal:   item.TargetTotal,
	}
	if err := resolveLine(&st); err != nil {
		return err
	}
	item.UnitPrice = st.UnitPrice
	item.TargetTotal = st.TargetTotal
	return nil
}

func resolveSaleItem(item *model.SaleItem) error {
	st := lineState{
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		DiscountType:  item.DiscountType,
		DiscountValue: item.DiscountValue,
		TaxPercentage: item.TaxPercentage,
		Mode:          item.CalculationMode,
		TargetTotal:   item.TargetTotal,
	}
	if err := resolveLine(&st); err != nil {
		return err
	}
	item.UnitPrice = st.UnitPrice
	item.TargetTotal = st.TargetTotal
	return nil
}

// ─── Aggregation ─────────────────────────────────────────────────────────────
// The document aggregator: cached totals are always the plain sum of the
// current lines' computed amounts. Pure summation — no per-line validation —
// and always invoked inside the transaction that mutated the lines, so a
// concurrent reader never observes totals for a partial line set.

func totalsFromQuoteItems(items []model.QuoteItem) repository.DocumentTotals {
	t := repository.DocumentTotals{
		Subtotal: decimal.Zero, Discount: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero,
	}
	for i := range items {
		a := items[i].Amounts()
		t.Subtotal = t.Subtotal.Add(a.Subtotal)
		t.Discount = t.Discount.Add(a.DiscountAmount)
		t.Tax = t.Tax.Add(a.TaxAmount)
		t.Total = t.Total.Add(a.Total)
	}
	return t
}

func totalsFromSaleItems(items []model.SaleItem) repository.DocumentTotals {
	t := repository.DocumentTotals{
		Subtotal: decimal.Zero, Discount: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero,
	}
	for i := range items {
		a := items[i].Amounts()
		t.Subtotal = t.Subtotal.Add(a.Subtotal)
		t.Discount = t.Discount.Add(a.DiscountAmount)
		t.Tax = t.Tax.Add(a.TaxAmount)
		t.Total = t.Total.Add(a.Total)
	}
	return t
}
