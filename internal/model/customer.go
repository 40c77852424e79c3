package model

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the registered counterparty a document can reference. Documents
// for walk-in buyers carry the free-text customer fields instead.
type Customer struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BusinessName string    `gorm:"index;not null"`
	// CuitCuil is the tax identifier; required only at invoicing time.
	CuitCuil string `gorm:"type:varchar(13);index"`
	Email    string
	Phone    string `gorm:"type:varchar(20)"`
	Address  string
	Active   bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
