package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/model"
)

// ConversionRepository persists the immutable conversion audit records.
// No update or delete: a QuoteConversion is written once.
type ConversionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, c *model.QuoteConversion) error
	FindByQuoteID(ctx context.Context, quoteID uuid.UUID) (*model.QuoteConversion, error)
}

type conversionRepo struct{ db *gorm.DB }

func NewConversionRepository(db *gorm.DB) ConversionRepository { return &conversionRepo{db: db} }

func (r *conversionRepo) Create(ctx context.Context, tx *gorm.DB, c *model.QuoteConversion) error {
	return tx.WithContext(ctx).Create(c).Error
}

func (r *conversionRepo) FindByQuoteID(ctx context.Context, quoteID uuid.UUID) (*model.QuoteConversion, error) {
	var c model.QuoteConversion
	err := r.db.WithContext(ctx).First(&c, "quote_id = ?", quoteID).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
