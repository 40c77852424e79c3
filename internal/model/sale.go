package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/melafrancom/erp-bulonera/internal/calc"
)

// SaleStatus is the commercial process state.
// draft → confirmed → in_preparation → ready → delivered; cancelled reachable
// from every state except delivered and cancelled itself.
type SaleStatus string

const (
	SaleDraft         SaleStatus = "draft"
	SaleConfirmed     SaleStatus = "confirmed"
	SaleInPreparation SaleStatus = "in_preparation"
	SaleReady         SaleStatus = "ready"
	SaleDelivered     SaleStatus = "delivered"
	SaleCancelled     SaleStatus = "cancelled"
)

// PaymentStatus is the financial state, maintained by the payments app.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentOverpaid      PaymentStatus = "overpaid"
)

// FiscalStatus tracks the invoice lifecycle in front of the tax authority.
type FiscalStatus string

const (
	FiscalNotRequired FiscalStatus = "not_required"
	FiscalPending     FiscalStatus = "pending"
	FiscalAuthorized  FiscalStatus = "authorized"
	FiscalRejected    FiscalStatus = "rejected"
	FiscalCancelled   FiscalStatus = "cancelled"
)

// SyncStatus tracks reconciliation of offline-created sales.
type SyncStatus string

const (
	SyncSynced   SyncStatus = "synced"
	SyncPending  SyncStatus = "pending"
	SyncConflict SyncStatus = "conflict"
	SyncError    SyncStatus = "error"
)

// ConflictResolution records how a sync conflict was settled.
type ConflictResolution string

const (
	ResolutionServerWins ConflictResolution = "server_wins"
	ResolutionClientWins ConflictResolution = "client_wins"
	ResolutionManual     ConflictResolution = "manual"
)

// Sale is the commercial document a quote converts into, with offline-sync
// support for PWA clients.
type Sale struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Number      string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	Date        time.Time `gorm:"autoCreateTime"`
	ConfirmedAt *time.Time

	CustomerID *uuid.UUID `gorm:"type:uuid;index"`
	Customer   *Customer  `gorm:"foreignKey:CustomerID"`

	CustomerName  string `gorm:"type:varchar(200)"`
	CustomerPhone string `gorm:"type:varchar(20)"`
	CustomerEmail string
	CustomerCuit  string `gorm:"type:varchar(13)"`

	// QuoteID back-references the originating quote, 1:1 when present.
	QuoteID     *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Quote       *Quote     `gorm:"foreignKey:QuoteID"`
	CreatedByID *uuid.UUID `gorm:"type:uuid;index"`

	Status        SaleStatus    `gorm:"type:varchar(20);not null;default:'draft';index"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'unpaid';index"`
	FiscalStatus  FiscalStatus  `gorm:"type:varchar(20);not null;default:'not_required';index"`

	// InvoiceNumber is a snapshot taken when the bills app authorizes one.
	InvoiceNumber *string `gorm:"type:varchar(50)"`

	Notes         string
	InternalNotes string

	DeliveryAddress string
	DeliveryDate    *time.Time `gorm:"type:date"`

	// Stock reservation marker — timestamp/actor only, actual inventory
	// movements belong to the inventory app.
	StockReservedAt   *time.Time
	StockReservedByID *uuid.UUID `gorm:"type:uuid"`

	CachedSubtotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CachedDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CachedTax      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CachedTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	// ── Sync metadata (optimistic concurrency for offline clients) ──
	SyncStatus SyncStatus `gorm:"type:varchar(20);not null;default:'synced';index:idx_sales_sync,priority:1"`
	// LocalID is the client-generated UUID; uniqueness among non-null values
	// is enforced by a partial index (see infra schema patches).
	LocalID *string `gorm:"type:varchar(36);index"`
	// Version increments exactly once per persisted content mutation, through
	// SaleRepository.BumpVersion. It is the single source of truth for
	// conflict detection.
	Version            int        `gorm:"not null;default:1"`
	SyncLastAttempt    *time.Time `gorm:"index:idx_sales_sync,priority:2"`
	SyncSucceededAt    *time.Time
	SyncAttemptCount   int                 `gorm:"not null;default:0"`
	SyncError          string
	ConflictResolution *ConflictResolution `gorm:"type:varchar(20)"`
	ConflictData       json.RawMessage     `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
	// ArchivedAt is a plain status column, not a soft-delete scope: listings
	// filter it out explicitly, while lookups by local_id include archived
	// rows so idempotency survives an archive.
	ArchivedAt *time.Time `gorm:"index"`

	Items []SaleItem `gorm:"constraint:OnDelete:CASCADE"`
}

// IsArchived reports whether the sale was removed from active listings.
func (s *Sale) IsArchived() bool { return s.ArchivedAt != nil }

// CustomerDisplay returns the counterparty name regardless of mode.
func (s *Sale) CustomerDisplay() string {
	if s.Customer != nil {
		return s.Customer.BusinessName
	}
	if s.CustomerName != "" {
		return s.CustomerName
	}
	return "Consumidor Final"
}

// IsEditable reports whether lines may still be mutated: drafts only.
func (s *Sale) IsEditable() bool { return s.Status == SaleDraft }

// TaxID returns the tax identifier from the linked customer or the walk-in
// field, empty when neither is available.
func (s *Sale) TaxID() string {
	if s.Customer != nil && s.Customer.CuitCuil != "" {
		return s.Customer.CuitCuil
	}
	return s.CustomerCuit
}

// CanBeInvoiced reports whether an invoice may be requested: confirmed or
// delivered, fiscal status not yet in flight, and a tax identifier available.
func (s *Sale) CanBeInvoiced() bool {
	return (s.Status == SaleConfirmed || s.Status == SaleDelivered) &&
		(s.FiscalStatus == FiscalNotRequired || s.FiscalStatus == FiscalPending) &&
		s.TaxID() != ""
}

// IsStockReserved reports whether the reservation marker is set.
func (s *Sale) IsStockReserved() bool { return s.StockReservedAt != nil }

// SaleItem mirrors QuoteItem and additionally snapshots the product cost at
// creation time for margin reporting. The snapshot is never re-derived from
// the live product cost.
type SaleItem struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID uuid.UUID `gorm:"type:uuid;index;not null"`

	ProductID uuid.UUID `gorm:"type:uuid;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID"`

	Quantity  decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	DiscountType   calc.DiscountType `gorm:"type:varchar(10);not null;default:'none'"`
	DiscountValue  decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0"`
	DiscountReason string            `gorm:"type:varchar(100)"`
	TaxPercentage  decimal.Decimal   `gorm:"type:decimal(5,2);not null;default:0"`

	Notes     string
	LineOrder int `gorm:"not null;default:0;index"`

	CalculationMode CalculationMode  `gorm:"type:varchar(20);not null;default:'price_to_total'"`
	TargetTotal     *decimal.Decimal `gorm:"type:decimal(12,2)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalcInput adapts the line to the calculator's input.
func (i *SaleItem) CalcInput() calc.LineInput {
	return calc.LineInput{
		Quantity:      i.Quantity,
		UnitPrice:     i.UnitPrice,
		DiscountType:  i.DiscountType,
		DiscountValue: i.DiscountValue,
		TaxPercentage: i.TaxPercentage,
	}
}

// Amounts computes the line's monetary breakdown.
func (i *SaleItem) Amounts() calc.Amounts { return calc.Compute(i.CalcInput()) }

// Profit is the gross margin of the line against the cost snapshot.
func (i *SaleItem) Profit() decimal.Decimal {
	costTotal := i.UnitCost.Mul(i.Quantity)
	return i.Amounts().SubtotalWithDiscount.Sub(costTotal)
}
