package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/melafrancom/erp-bulonera/internal/model"
	"github.com/melafrancom/erp-bulonera/internal/repository"
)

// In-memory repository stubs. DB() returns nil so runTx executes the
// transaction body directly.

// ─── customers / products ────────────────────────────────────────────────────

type customerRepoStub struct {
	customers map[uuid.UUID]*model.Customer
}

func newCustomerRepoStub() *customerRepoStub {
	return &customerRepoStub{customers: map[uuid.UUID]*model.Customer{}}
}

func (r *customerRepoStub) add(c *model.Customer) *model.Customer {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.customers[c.ID] = c
	return c
}

func (r *customerRepoStub) FindByID(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

type productRepoStub struct {
	products map[uuid.UUID]*model.Product
}

func newProductRepoStub() *productRepoStub {
	return &productRepoStub{products: map[uuid.UUID]*model.Product{}}
}

func (r *productRepoStub) add(p *model.Product) *model.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.products[p.ID] = p
	return p
}

func (r *productRepoStub) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

// ─── quotes ──────────────────────────────────────────────────────────────────

type quoteRepoStub struct {
	quotes    map[uuid.UUID]*model.Quote
	customers *customerRepoStub
	seq       int
}

func newQuoteRepoStub(customers *customerRepoStub) *quoteRepoStub {
	return &quoteRepoStub{quotes: map[uuid.UUID]*model.Quote{}, customers: customers}
}

func (r *quoteRepoStub) DB() *gorm.DB { return nil }

func (r *quoteRepoStub) Create(_ context.Context, _ *gorm.DB, q *model.Quote) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	for i := range q.Items {
		if q.Items[i].ID == uuid.Nil {
			q.Items[i].ID = uuid.New()
		}
		q.Items[i].QuoteID = q.ID
	}
	r.quotes[q.ID] = q
	return nil
}

func (r *quoteRepoStub) FindByID(_ context.Context, id uuid.UUID) (*model.Quote, error) {
	q, ok := r.quotes[id]
	if !ok || q.DeletedAt.Valid {
		return nil, gorm.ErrRecordNotFound
	}
	// the real repository preloads the customer association
	if q.CustomerID != nil {
		q.Customer = r.customers.customers[*q.CustomerID]
	}
	return q, nil
}

func (r *quoteRepoStub) FindItem(_ context.Context, quoteID, itemID uuid.UUID) (*model.QuoteItem, error) {
	q, ok := r.quotes[quoteID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range q.Items {
		if q.Items[i].ID == itemID {
			return &q.Items[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *quoteRepoStub) Items(_ context.Context, _ *gorm.DB, quoteID uuid.UUID) ([]model.QuoteItem, error) {
	q, ok := r.quotes[quoteID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return q.Items, nil
}

func (r *quoteRepoStub) SaveItem(_ context.Context, _ *gorm.DB, item *model.QuoteItem) error {
	q, ok := r.quotes[item.QuoteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	for i := range q.Items {
		if q.Items[i].ID == item.ID {
			q.Items[i] = *item
			return nil
		}
	}
	q.Items = append(q.Items, *item)
	return nil
}

func (r *quoteRepoStub) DeleteItem(_ context.Context, _ *gorm.DB, item *model.QuoteItem) error {
	q, ok := r.quotes[item.QuoteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range q.Items {
		if q.Items[i].ID == item.ID {
			q.Items = append(q.Items[:i], q.Items[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *quoteRepoStub) UpdateTotals(_ context.Context, _ *gorm.DB, quoteID uuid.UUID, t repository.DocumentTotals) error {
	q, ok := r.quotes[quoteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	q.CachedSubtotal, q.CachedDiscount, q.CachedTax, q.CachedTotal = t.Subtotal, t.Discount, t.Tax, t.Total
	return nil
}

func (r *quoteRepoStub) UpdateStatus(_ context.Context, _ *gorm.DB, quoteID uuid.UUID, status model.QuoteStatus) error {
	q, ok := r.quotes[quoteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	q.Status = status
	return nil
}

func (r *quoteRepoStub) AppendInternalNotes(_ context.Context, _ *gorm.DB, quoteID uuid.UUID, notes string) error {
	q, ok := r.quotes[quoteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	q.InternalNotes += notes
	return nil
}

func (r *quoteRepoStub) NextNumber(_ context.Context, _ *gorm.DB) (int, error) {
	r.seq++
	return r.seq, nil
}

func (r *quoteRepoStub) ExpireStale(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for _, q := range r.quotes {
		if q.Status == model.QuoteSent && q.ValidUntil.Before(before) {
			q.Status = model.QuoteExpired
			n++
		}
	}
	return n, nil
}

func (r *quoteRepoStub) Delete(_ context.Context, id uuid.UUID) error {
	q, ok := r.quotes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	q.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

// ─── sales ───────────────────────────────────────────────────────────────────

type saleRepoStub struct {
	sales     map[uuid.UUID]*model.Sale
	customers *customerRepoStub
	seq       int
}

func newSaleRepoStub(customers *customerRepoStub) *saleRepoStub {
	return &saleRepoStub{sales: map[uuid.UUID]*model.Sale{}, customers: customers}
}

func (r *saleRepoStub) DB() *gorm.DB { return nil }

func (r *saleRepoStub) Create(_ context.Context, _ *gorm.DB, s *model.Sale) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	for i := range s.Items {
		if s.Items[i].ID == uuid.Nil {
			s.Items[i].ID = uuid.New()
		}
		s.Items[i].SaleID = s.ID
	}
	r.sales[s.ID] = s
	return nil
}

func (r *saleRepoStub) Save(_ context.Context, _ *gorm.DB, s *model.Sale) error {
	r.sales[s.ID] = s
	return nil
}

func (r *saleRepoStub) FindByID(_ context.Context, id uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok || s.IsArchived() {
		return nil, gorm.ErrRecordNotFound
	}
	// the real repository preloads the customer association
	if s.CustomerID != nil {
		s.Customer = r.customers.customers[*s.CustomerID]
	}
	return s, nil
}

func (r *saleRepoStub) FindOwnedByID(_ context.Context, id, actorID uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok || s.IsArchived() || s.CreatedByID == nil || *s.CreatedByID != actorID {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *saleRepoStub) FindByLocalID(_ context.Context, localID string) (*model.Sale, error) {
	// archived rows included, matching the repository contract
	for _, s := range r.sales {
		if s.LocalID != nil && *s.LocalID == localID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *saleRepoStub) FindItem(_ context.Context, saleID, itemID uuid.UUID) (*model.SaleItem, error) {
	s, ok := r.sales[saleID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range s.Items {
		if s.Items[i].ID == itemID {
			return &s.Items[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *saleRepoStub) Items(_ context.Context, _ *gorm.DB, saleID uuid.UUID) ([]model.SaleItem, error) {
	s, ok := r.sales[saleID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.Items, nil
}

func (r *saleRepoStub) SaveItem(_ context.Context, _ *gorm.DB, item *model.SaleItem) error {
	s, ok := r.sales[item.SaleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	for i := range s.Items {
		if s.Items[i].ID == item.ID {
			s.Items[i] = *item
			return nil
		}
	}
	s.Items = append(s.Items, *item)
	return nil
}

func (r *saleRepoStub) DeleteItem(_ context.Context, _ *gorm.DB, item *model.SaleItem) error {
	s, ok := r.sales[item.SaleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range s.Items {
		if s.Items[i].ID == item.ID {
			s.Items = append(s.Items[:i], s.Items[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *saleRepoStub) ReplaceItems(_ context.Context, _ *gorm.DB, saleID uuid.UUID, items []model.SaleItem) error {
	s, ok := r.sales[saleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].SaleID = saleID
	}
	s.Items = items
	return nil
}

func (r *saleRepoStub) UpdateTotals(_ context.Context, _ *gorm.DB, saleID uuid.UUID, t repository.DocumentTotals) error {
	s, ok := r.sales[saleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.CachedSubtotal, s.CachedDiscount, s.CachedTax, s.CachedTotal = t.Subtotal, t.Discount, t.Tax, t.Total
	return nil
}

func (r *saleRepoStub) UpdateFields(_ context.Context, _ *gorm.DB, saleID uuid.UUID, fields map[string]interface{}) error {
	s, ok := r.sales[saleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "status":
			s.Status = value.(model.SaleStatus)
		case "fiscal_status":
			s.FiscalStatus = value.(model.FiscalStatus)
		case "notes":
			s.Notes = value.(string)
		case "internal_notes":
			if e, ok := value.(clause.Expr); ok {
				s.InternalNotes += e.Vars[0].(string)
			} else {
				s.InternalNotes = value.(string)
			}
		case "delivery_address":
			s.DeliveryAddress = value.(string)
		case "delivery_date":
			s.DeliveryDate = timePtr(value)
		case "confirmed_at":
			s.ConfirmedAt = timePtr(value)
		case "stock_reserved_at":
			s.StockReservedAt = timePtr(value)
		case "stock_reserved_by_id":
			if value == nil {
				s.StockReservedByID = nil
			} else {
				id := value.(uuid.UUID)
				s.StockReservedByID = &id
			}
		case "sync_status":
			s.SyncStatus = value.(model.SyncStatus)
		case "sync_last_attempt":
			s.SyncLastAttempt = timePtr(value)
		case "sync_succeeded_at":
			s.SyncSucceededAt = timePtr(value)
		case "sync_attempt_count":
			if _, ok := value.(clause.Expr); ok {
				s.SyncAttemptCount++
			} else {
				s.SyncAttemptCount = value.(int)
			}
		case "sync_error":
			s.SyncError = value.(string)
		case "conflict_resolution":
			res := value.(model.ConflictResolution)
			s.ConflictResolution = &res
		case "conflict_data":
			if value == nil {
				s.ConflictData = nil
			} else {
				s.ConflictData = json.RawMessage(value.([]byte))
			}
		}
	}
	return nil
}

func timePtr(value interface{}) *time.Time {
	if value == nil {
		return nil
	}
	t := value.(time.Time)
	return &t
}

func (r *saleRepoStub) BumpVersion(_ context.Context, _ *gorm.DB, saleID uuid.UUID) error {
	s, ok := r.sales[saleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Version++
	return nil
}

func (r *saleRepoStub) NextNumber(_ context.Context, _ *gorm.DB) (int, error) {
	r.seq++
	return r.seq, nil
}

func (r *saleRepoStub) ListPendingSync(_ context.Context, actorID uuid.UUID, limit int) ([]model.Sale, error) {
	var out []model.Sale
	for _, s := range r.sales {
		if s.CreatedByID == nil || *s.CreatedByID != actorID || s.IsArchived() {
			continue
		}
		if s.SyncStatus != model.SyncPending && s.SyncStatus != model.SyncError {
			continue
		}
		out = append(out, *s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *saleRepoStub) Archive(_ context.Context, id uuid.UUID) error {
	s, ok := r.sales[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	s.ArchivedAt = &now
	return nil
}

// ─── conversions ─────────────────────────────────────────────────────────────

type conversionRepoStub struct {
	records []*model.QuoteConversion
}

func newConversionRepoStub() *conversionRepoStub { return &conversionRepoStub{} }

func (r *conversionRepoStub) Create(_ context.Context, _ *gorm.DB, c *model.QuoteConversion) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.ConvertedAt = time.Now()
	r.records = append(r.records, c)
	return nil
}

func (r *conversionRepoStub) FindByQuoteID(_ context.Context, quoteID uuid.UUID) (*model.QuoteConversion, error) {
	for _, c := range r.records {
		if c.QuoteID == quoteID {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ─── notifier ────────────────────────────────────────────────────────────────

type notifierStub struct {
	notices []string
}

func (n *notifierStub) EnqueueConversionNotice(_ context.Context, quoteNumber, saleNumber string) error {
	n.notices = append(n.notices, quoteNumber+"->"+saleNumber)
	return nil
}
