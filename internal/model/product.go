package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog reference a document line points at. The engine only
// reads CurrentCost (margin snapshot at sale time) and CurrentPrice (default
// unit price); catalog management lives elsewhere.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code        string    `gorm:"uniqueIndex;not null"`
	Name        string    `gorm:"index;not null"`
	Description *string

	CurrentCost  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CurrentPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Unit         string          `gorm:"not null;default:'unidad'"`
	Active       bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
