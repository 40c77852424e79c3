package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/model"
)

type SaleRepository interface {
	Create(ctx context.Context, tx *gorm.DB, s *model.Sale) error
	Save(ctx context.Context, tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindOwnedByID(ctx context.Context, id, actorID uuid.UUID) (*model.Sale, error)
	// FindByLocalID looks up a sale by its client-generated UUID. Archived
	// rows are included on purpose: upload idempotency must hold even after
	// a sale is archived.
	FindByLocalID(ctx context.Context, localID string) (*model.Sale, error)
	FindItem(ctx context.Context, saleID, itemID uuid.UUID) (*model.SaleItem, error)
	Items(ctx context.Context, tx *gorm.DB, saleID uuid.UUID) ([]model.SaleItem, error)
	SaveItem(ctx context.Context, tx *gorm.DB, item *model.SaleItem) error
	DeleteItem(ctx context.Context, tx *gorm.DB, item *model.SaleItem) error
	// ReplaceItems swaps the sale's full line set for the given one.
	ReplaceItems(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, items []model.SaleItem) error
	UpdateTotals(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, t DocumentTotals) error
	UpdateFields(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, fields map[string]interface{}) error
	// BumpVersion is the single step every content-mutating transaction runs;
	// version semantics stay centralized here.
	BumpVersion(ctx context.Context, tx *gorm.DB, saleID uuid.UUID) error
	NextNumber(ctx context.Context, tx *gorm.DB) (int, error)
	ListPendingSync(ctx context.Context, actorID uuid.UUID, limit int) ([]model.Sale, error)
	// Archive flags the row out of active listings without dropping it.
	Archive(ctx context.Context, id uuid.UUID) error
	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) Create(ctx context.Context, tx *gorm.DB, s *model.Sale) error {
	return tx.WithContext(ctx).Create(s).Error
}

func (r *saleRepo) Save(ctx context.Context, tx *gorm.DB, s *model.Sale) error {
	return tx.WithContext(ctx).Save(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_order, created_at") }).
		Preload("Items.Product").
		Preload("Customer").
		Where("archived_at IS NULL").
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) FindOwnedByID(ctx context.Context, id, actorID uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND created_by_id = ? AND archived_at IS NULL", id, actorID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) FindByLocalID(ctx context.Context, localID string) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Where("local_id = ?", localID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) FindItem(ctx context.Context, saleID, itemID uuid.UUID) (*model.SaleItem, error) {
	var item model.SaleItem
	err := r.db.WithContext(ctx).
		Where("sale_id = ? AND id = ?", saleID, itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *saleRepo) Items(ctx context.Context, tx *gorm.DB, saleID uuid.UUID) ([]model.SaleItem, error) {
	var items []model.SaleItem
	err := tx.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("line_order, created_at").
		Find(&items).Error
	return items, err
}

func (r *saleRepo) SaveItem(ctx context.Context, tx *gorm.DB, item *model.SaleItem) error {
	return tx.WithContext(ctx).Save(item).Error
}

func (r *saleRepo) DeleteItem(ctx context.Context, tx *gorm.DB, item *model.SaleItem) error {
	return tx.WithContext(ctx).Delete(item).Error
}

func (r *saleRepo) ReplaceItems(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, items []model.SaleItem) error {
	if err := tx.WithContext(ctx).Where("sale_id = ?", saleID).Delete(&model.SaleItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].SaleID = saleID
		if err := tx.WithContext(ctx).Create(&items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *saleRepo) UpdateTotals(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, t DocumentTotals) error {
	return tx.WithContext(ctx).Model(&model.Sale{}).Where("id = ?", saleID).
		Updates(map[string]interface{}{
			"cached_subtotal": t.Subtotal,
			"cached_discount": t.Discount,
			"cached_tax":      t.Tax,
			"cached_total":    t.Total,
		}).Error
}

func (r *saleRepo) UpdateFields(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, fields map[string]interface{}) error {
	return tx.WithContext(ctx).Model(&model.Sale{}).Where("id = ?", saleID).
		Updates(fields).Error
}

func (r *saleRepo) BumpVersion(ctx context.Context, tx *gorm.DB, saleID uuid.UUID) error {
	return tx.WithContext(ctx).Model(&model.Sale{}).Where("id = ?", saleID).
		UpdateColumn("version", gorm.Expr("version + 1")).Error
}

func (r *saleRepo) NextNumber(ctx context.Context, tx *gorm.DB) (int, error) {
	var num int
	err := tx.WithContext(ctx).Raw("SELECT nextval('sales_number_seq')").Scan(&num).Error
	return num, err
}

func (r *saleRepo) ListPendingSync(ctx context.Context, actorID uuid.UUID, limit int) ([]model.Sale, error) {
	var sales []model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("created_by_id = ? AND archived_at IS NULL AND sync_status IN ?", actorID,
			[]model.SyncStatus{model.SyncPending, model.SyncError}).
		Order("created_at DESC").
		Limit(limit).
		Find(&sales).Error
	return sales, err
}

func (r *saleRepo) Archive(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Sale{}).Where("id = ?", id).
		UpdateColumn("archived_at", gorm.Expr("now()")).Error
}
