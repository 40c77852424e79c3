package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/calc"
)

// QuoteStatus is the quote lifecycle state.
// draft → sent → {accepted, rejected, expired}; accepted → converted;
// draft/sent → cancelled.
type QuoteStatus string

const (
	QuoteDraft     QuoteStatus = "draft"
	QuoteSent      QuoteStatus = "sent"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteExpired   QuoteStatus = "expired"
	QuoteConverted QuoteStatus = "converted"
	QuoteCancelled QuoteStatus = "cancelled"
)

// CalculationMode defines which side of a line is authoritative:
// the unit price (price_to_total), the target total (total_to_price),
// or neither (manual — the stored price is taken as entered).
type CalculationMode string

const (
	ModePriceToTotal CalculationMode = "price_to_total"
	ModeTotalToPrice CalculationMode = "total_to_price"
	ModeManual       CalculationMode = "manual"
)

// Quote is the pre-sale commercial document.
type Quote struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	// Number is assigned once from a DB sequence and never changes.
	Number     string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	Date       time.Time `gorm:"autoCreateTime"`
	ValidUntil time.Time `gorm:"type:date;not null"`

	CustomerID *uuid.UUID `gorm:"type:uuid;index"`
	Customer   *Customer  `gorm:"foreignKey:CustomerID"`

	// Walk-in counterparty fields, used when CustomerID is nil.
	CustomerName  string `gorm:"type:varchar(200)"`
	CustomerPhone string `gorm:"type:varchar(20)"`
	CustomerEmail string
	CustomerCuit  string `gorm:"type:varchar(13)"`

	Status QuoteStatus `gorm:"type:varchar(20);not null;default:'draft';index"`

	Notes         string
	InternalNotes string

	// Cached aggregates — always derived from the lines, written only by the
	// aggregation step that runs inside every line-mutation transaction.
	CachedSubtotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CachedDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CachedTax      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CachedTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Items []QuoteItem `gorm:"constraint:OnDelete:CASCADE"`
}

// CustomerDisplay returns the counterparty name regardless of mode.
func (q *Quote) CustomerDisplay() string {
	if q.Customer != nil {
		return q.Customer.BusinessName
	}
	if q.CustomerName != "" {
		return q.CustomerName
	}
	return "Consumidor Final"
}

// IsEditable reports whether lines may still be added, edited or removed.
func (q *Quote) IsEditable() bool {
	return q.Status == QuoteDraft || q.Status == QuoteSent
}

// CanBeConverted reports whether the quote may become a sale: accepted and
// not past its validity date.
func (q *Quote) CanBeConverted(today time.Time) bool {
	return q.Status == QuoteAccepted && !q.ValidUntil.Before(dateOnly(today))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// QuoteItem is a quote line with bidirectional calculation support.
type QuoteItem struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	QuoteID uuid.UUID `gorm:"type:uuid;index;not null"`

	ProductID uuid.UUID `gorm:"type:uuid;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID"`

	Quantity  decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	DiscountType   calc.DiscountType `gorm:"type:varchar(10);not null;default:'none'"`
	DiscountValue  decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0"`
	DiscountReason string            `gorm:"type:varchar(100)"`
	TaxPercentage  decimal.Decimal   `gorm:"type:decimal(5,2);not null;default:0"`

	Notes     string
	LineOrder int `gorm:"not null;default:0;index"`

	CalculationMode CalculationMode `gorm:"type:varchar(20);not null;default:'price_to_total'"`
	// TargetTotal is required in total_to_price mode; in price_to_total mode
	// it is kept in sync with the computed total.
	TargetTotal *decimal.Decimal `gorm:"type:decimal(12,2)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalcInput adapts the line to the calculator's input.
func (i *QuoteItem) CalcInput() calc.LineInput {
	return calc.LineInput{
		Quantity:      i.Quantity,
		UnitPrice:     i.UnitPrice,
		DiscountType:  i.DiscountType,
		DiscountValue: i.DiscountValue,
		TaxPercentage: i.TaxPercentage,
	}
}

// Amounts computes the line's monetary breakdown.
func (i *QuoteItem) Amounts() calc.Amounts { return calc.Compute(i.CalcInput()) }
