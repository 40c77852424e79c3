package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuoteConversion is the immutable audit record of a quote → sale conversion.
// Created once inside the conversion transaction and never updated.
type QuoteConversion struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	QuoteID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	SaleID  uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	ConvertedAt   time.Time  `gorm:"autoCreateTime"`
	ConvertedByID *uuid.UUID `gorm:"type:uuid"`

	// OriginalQuoteData is the full snapshot of the quote's lines as they
	// were at conversion time.
	OriginalQuoteData json.RawMessage `gorm:"type:jsonb;not null"`
	// Modifications stores the price overrides applied during conversion,
	// verbatim as submitted.
	Modifications json.RawMessage `gorm:"type:jsonb;not null"`
}
