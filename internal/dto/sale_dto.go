package dto

import "github.com/shopspring/decimal"

type CreateSaleRequest struct {
	CustomerID    *string `json:"customer_id"    validate:"omitempty,uuid"`
	CustomerName  string  `json:"customer_name"  validate:"omitempty,max=200"`
	CustomerPhone string  `json:"customer_phone" validate:"omitempty,max=20"`
	CustomerEmail string  `json:"customer_email" validate:"omitempty,email"`
	CustomerCuit  string  `json:"customer_cuit"  validate:"omitempty,max=13"`

	Notes           string  `json:"notes"`
	InternalNotes   string  `json:"internal_notes"`
	DeliveryAddress string  `json:"delivery_address"`
	DeliveryDate    *string `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`

	Items []LineRequest `json:"items" validate:"omitempty,dive"`
}

// PriceOverride replaces a quote line's unit price during conversion.
type PriceOverride struct {
	QuoteItemID string          `json:"quote_item_id" validate:"required,uuid"`
	NewPrice    decimal.Decimal `json:"new_price"     validate:"min=0"`
}

// ConvertRequest holds the optional modifications applied while converting an
// accepted quote into a draft sale.
type ConvertRequest struct {
	Modifications []PriceOverride `json:"modifications" validate:"omitempty,dive"`
}

type SaleResponse struct {
	ID          string  `json:"id"`
	Number      string  `json:"number"`
	Date        string  `json:"date"`
	ConfirmedAt *string `json:"confirmed_at,omitempty"`

	CustomerID string `json:"customer_id,omitempty"`
	Customer   string `json:"customer"`
	QuoteID    string `json:"quote_id,omitempty"`

	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	FiscalStatus  string `json:"fiscal_status"`

	Notes           string  `json:"notes,omitempty"`
	InternalNotes   string  `json:"internal_notes,omitempty"`
	DeliveryAddress string  `json:"delivery_address,omitempty"`
	DeliveryDate    *string `json:"delivery_date,omitempty"`
	StockReservedAt *string `json:"stock_reserved_at,omitempty"`

	Items []LineResponse `json:"items"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`

	SyncStatus         string  `json:"sync_status"`
	LocalID            *string `json:"local_id,omitempty"`
	Version            int     `json:"version"`
	ConflictResolution *string `json:"conflict_resolution,omitempty"`
}
