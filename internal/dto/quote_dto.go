package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// LineRequest carries a document line for create/update. Shared by quotes and
// sales — the variants diverge only in server-side fields (unit_cost).
type LineRequest struct {
	ProductID      string          `json:"product_id"      validate:"required,uuid"`
	Quantity       decimal.Decimal `json:"quantity"        validate:"required"`
	UnitPrice      decimal.Decimal `json:"unit_price"      validate:"min=0"`
	DiscountType   string          `json:"discount_type"   validate:"omitempty,oneof=none percentage fixed"`
	DiscountValue  decimal.Decimal `json:"discount_value"  validate:"min=0"`
	DiscountReason string          `json:"discount_reason" validate:"omitempty,max=100"`
	TaxPercentage  decimal.Decimal `json:"tax_percentage"  validate:"min=0"`
	Notes          string          `json:"notes"`
	LineOrder      int             `json:"line_order"      validate:"min=0"`

	CalculationMode string `json:"calculation_mode" validate:"omitempty,oneof=price_to_total total_to_price manual"`
	// TargetTotal is required when calculation_mode is total_to_price.
	TargetTotal *decimal.Decimal `json:"target_total"`
}

type CreateQuoteRequest struct {
	CustomerID    *string `json:"customer_id"    validate:"omitempty,uuid"`
	CustomerName  string  `json:"customer_name"  validate:"omitempty,max=200"`
	CustomerPhone string  `json:"customer_phone" validate:"omitempty,max=20"`
	CustomerEmail string  `json:"customer_email" validate:"omitempty,email"`
	CustomerCuit  string  `json:"customer_cuit"  validate:"omitempty,max=13"`

	// ValidUntil in YYYY-MM-DD.
	ValidUntil    string `json:"valid_until" validate:"required,datetime=2006-01-02"`
	Notes         string `json:"notes"`
	InternalNotes string `json:"internal_notes"`

	Items []LineRequest `json:"items" validate:"omitempty,dive"`
}

// TransitionRequest asks the state machine to run one action on a document.
type TransitionRequest struct {
	Action string `json:"action" validate:"required"`
	// Reason is appended to internal notes on cancel.
	Reason string `json:"reason"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LineResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	Product        string          `json:"product"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	UnitCost       decimal.Decimal `json:"unit_cost,omitempty"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	TaxPercentage  decimal.Decimal `json:"tax_percentage"`
	LineOrder      int             `json:"line_order"`
	Notes          string          `json:"notes,omitempty"`

	CalculationMode string           `json:"calculation_mode"`
	TargetTotal     *decimal.Decimal `json:"target_total,omitempty"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

type QuoteResponse struct {
	ID            string `json:"id"`
	Number        string `json:"number"`
	Date          string `json:"date"`
	ValidUntil    string `json:"valid_until"`
	CustomerID    string `json:"customer_id,omitempty"`
	Customer      string `json:"customer"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	InternalNotes string `json:"internal_notes,omitempty"`

	Items []LineResponse `json:"items"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ConversionResponse exposes the audit record of a conversion.
type ConversionResponse struct {
	ID                string `json:"id"`
	QuoteID           string `json:"quote_id"`
	SaleID            string `json:"sale_id"`
	ConvertedAt       string `json:"converted_at"`
	ConvertedByID     string `json:"converted_by_id,omitempty"`
	OriginalQuoteData any    `json:"original_quote_data"`
	Modifications     any    `json:"modifications"`
}
