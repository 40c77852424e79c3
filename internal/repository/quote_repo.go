package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/model"
)

// DocumentTotals are the four cached aggregates a document carries. Written
// only by the aggregation step, always inside the mutating transaction.
type DocumentTotals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type QuoteRepository interface {
	Create(ctx context.Context, tx *gorm.DB, q *model.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	FindItem(ctx context.Context, quoteID, itemID uuid.UUID) (*model.QuoteItem, error)
	// Items reads the quote's current lines inside tx so the aggregation that
	// follows a line mutation observes the mutation itself.
	Items(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID) ([]model.QuoteItem, error)
	SaveItem(ctx context.Context, tx *gorm.DB, item *model.QuoteItem) error
	DeleteItem(ctx context.Context, tx *gorm.DB, item *model.QuoteItem) error
	UpdateTotals(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, t DocumentTotals) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, status model.QuoteStatus) error
	AppendInternalNotes(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, notes string) error
	NextNumber(ctx context.Context, tx *gorm.DB) (int, error)
	// ExpireStale flips sent quotes past their validity date to expired.
	ExpireStale(ctx context.Context, before time.Time) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type quoteRepo struct{ db *gorm.DB }

func NewQuoteRepository(db *gorm.DB) QuoteRepository { return &quoteRepo{db: db} }

func (r *quoteRepo) DB() *gorm.DB { return r.db }

func (r *quoteRepo) Create(ctx context.Context, tx *gorm.DB, q *model.Quote) error {
	return tx.WithContext(ctx).Create(q).Error
}

func (r *quoteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	var q model.Quote
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_order, created_at") }).
		Preload("Items.Product").
		Preload("Customer").
		First(&q, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quoteRepo) FindItem(ctx context.Context, quoteID, itemID uuid.UUID) (*model.QuoteItem, error) {
	var item model.QuoteItem
	err := r.db.WithContext(ctx).
		Where("quote_id = ? AND id = ?", quoteID, itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *quoteRepo) Items(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID) ([]model.QuoteItem, error) {
	var items []model.QuoteItem
	err := tx.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("line_order, created_at").
		Find(&items).Error
	return items, err
}

func (r *quoteRepo) SaveItem(ctx context.Context, tx *gorm.DB, item *model.QuoteItem) error {
	return tx.WithContext(ctx).Save(item).Error
}

func (r *quoteRepo) DeleteItem(ctx context.Context, tx *gorm.DB, item *model.QuoteItem) error {
	return tx.WithContext(ctx).Delete(item).Error
}

func (r *quoteRepo) UpdateTotals(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, t DocumentTotals) error {
	return tx.WithContext(ctx).Model(&model.Quote{}).Where("id = ?", quoteID).
		Updates(map[string]interface{}{
			"cached_subtotal": t.Subtotal,
			"cached_discount": t.Discount,
			"cached_tax":      t.Tax,
			"cached_total":    t.Total,
		}).Error
}

func (r *quoteRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, status model.QuoteStatus) error {
	return tx.WithContext(ctx).Model(&model.Quote{}).Where("id = ?", quoteID).
		Update("status", status).Error
}

func (r *quoteRepo) AppendInternalNotes(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, notes string) error {
	return tx.WithContext(ctx).Model(&model.Quote{}).Where("id = ?", quoteID).
		Update("internal_notes", gorm.Expr("internal_notes || ?", notes)).Error
}

func (r *quoteRepo) NextNumber(ctx context.Context, tx *gorm.DB) (int, error) {
	// PostgreSQL sequence keeps numbering gapless-enough and race-free.
	var num int
	err := tx.WithContext(ctx).Raw("SELECT nextval('quotes_number_seq')").Scan(&num).Error
	return num, err
}

func (r *quoteRepo) ExpireStale(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Quote{}).
		Where("status = ? AND valid_until < ?", model.QuoteSent, before.Format("2006-01-02")).
		Update("status", model.QuoteExpired)
	return res.RowsAffected, res.Error
}

func (r *quoteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Quote{}, "id = ?", id).Error
}
