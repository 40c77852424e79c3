package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/dto"
	"github.com/melafrancom/erp-bulonera/internal/model"
	"github.com/melafrancom/erp-bulonera/internal/repository"
)

// ConversionNotifier enqueues the post-conversion notification job. Satisfied
// by worker.Dispatcher; nil disables notifications.
type ConversionNotifier interface {
	EnqueueConversionNotice(ctx context.Context, quoteNumber, saleNumber string) error
}

type ConversionService interface {
	// Convert turns an accepted, unexpired quote into a draft sale inside one
	// transaction, leaving an immutable audit record behind.
	Convert(ctx context.Context, quoteID uuid.UUID, actor Actor, mods []dto.PriceOverride) (*dto.SaleResponse, error)
	// Record returns the audit record of a quote's conversion.
	Record(ctx context.Context, quoteID uuid.UUID) (*dto.ConversionResponse, error)
}

type conversionService struct {
	quoteRepo      repository.QuoteRepository
	saleRepo       repository.SaleRepository
	conversionRepo repository.ConversionRepository
	productRepo    repository.ProductRepository
	notifier       ConversionNotifier
}

func NewConversionService(
	quoteRepo repository.QuoteRepository,
	saleRepo repository.SaleRepository,
	conversionRepo repository.ConversionRepository,
	productRepo repository.ProductRepository,
	notifier ConversionNotifier,
) ConversionService {
	return &conversionService{
		quoteRepo:      quoteRepo,
		saleRepo:       saleRepo,
		conversionRepo: conversionRepo,
		productRepo:    productRepo,
		notifier:       notifier,
	}
}

// snapshotItem is the per-line shape stored in original_quote_data. Amounts go
// out as strings so the snapshot survives any JSON number handling.
type snapshotItem struct {
	ProductID string `json:"product_id"`
	Quantity  string `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type quoteSnapshot struct {
	QuoteID     string         `json:"quote_id"`
	QuoteNumber string         `json:"quote_number"`
	Items       []snapshotItem `json:"items"`
}

func (s *conversionService) Convert(ctx context.Context, quoteID uuid.UUID, actor Actor, mods []dto.PriceOverride) (*dto.SaleResponse, error) {
	quote, err := s.quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !quote.CanBeConverted(time.Now()) {
		return nil, &NotConvertibleError{
			Number:     quote.Number,
			Status:     quote.Status,
			ValidUntil: quote.ValidUntil,
		}
	}

	overrides := make(map[uuid.UUID]decimal.Decimal, len(mods))
	for _, m := range mods {
		itemID, err := uuid.Parse(m.QuoteItemID)
		if err != nil {
			return nil, fmt.Errorf("quote_item_id inválido: %w", err)
		}
		if m.NewPrice.IsNegative() {
			return nil, fmt.Errorf("new_price negativo para el item %s", itemID)
		}
		found := false
		for i := range quote.Items {
			if quote.Items[i].ID == itemID {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("item %s no pertenece al presupuesto %s", itemID, quote.Number)
		}
		overrides[itemID] = m.NewPrice
	}

	// Snapshot the quote as it stands, before any override is applied.
	snapshot := quoteSnapshot{
		QuoteID:     quote.ID.String(),
		QuoteNumber: quote.Number,
		Items:       make([]snapshotItem, 0, len(quote.Items)),
	}
	for i := range quote.Items {
		it := &quote.Items[i]
		snapshot.Items = append(snapshot.Items, snapshotItem{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity.String(),
			UnitPrice: it.UnitPrice.String(),
		})
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	if mods == nil {
		mods = []dto.PriceOverride{}
	}
	modsJSON, err := json.Marshal(mods)
	if err != nil {
		return nil, err
	}

	// Resolve sale lines up front; product cost lookups stay outside the tx.
	items := make([]model.SaleItem, 0, len(quote.Items))
	for i := range quote.Items {
		src := &quote.Items[i]
		item, err := s.convertItem(ctx, src, overrides)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	sale := &model.Sale{
		CustomerID:    quote.CustomerID,
		CustomerName:  quote.CustomerName,
		CustomerPhone: quote.CustomerPhone,
		CustomerEmail: quote.CustomerEmail,
		CustomerCuit:  quote.CustomerCuit,
		QuoteID:       &quote.ID,
		CreatedByID:   &actor.ID,
		Status:        model.SaleDraft,
		PaymentStatus: model.PaymentUnpaid,
		FiscalStatus:  model.FiscalNotRequired,
		SyncStatus:    model.SyncSynced,
		Notes:         quote.Notes,
		InternalNotes: fmt.Sprintf("Convertido desde presupuesto %s", quote.Number),
	}

	txErr := runTx(ctx, s.quoteRepo.DB(), func(tx *gorm.DB) error {
		seq, err := s.saleRepo.NextNumber(ctx, tx)
		if err != nil {
			return err
		}
		sale.Number = formatDocumentNumber("VTA", seq, time.Now())
		sale.Items = items
		if err := s.saleRepo.Create(ctx, tx, sale); err != nil {
			return err
		}

		current, err := s.saleRepo.Items(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		if err := s.saleRepo.UpdateTotals(ctx, tx, sale.ID, totalsFromSaleItems(current)); err != nil {
			return err
		}

		conv := &model.QuoteConversion{
			QuoteID:           quote.ID,
			SaleID:            sale.ID,
			ConvertedByID:     &actor.ID,
			OriginalQuoteData: snapshotJSON,
			Modifications:     modsJSON,
		}
		if err := s.conversionRepo.Create(ctx, tx, conv); err != nil {
			return err
		}

		return s.quoteRepo.UpdateStatus(ctx, tx, quote.ID, model.QuoteConverted)
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("quote_id", quote.ID.String()).
		Str("quote_number", quote.Number).
		Str("sale_id", sale.ID.String()).
		Str("sale_number", sale.Number).
		Str("user_id", actor.ID.String()).
		Int("modifications", len(mods)).
		Msg("quote converted")

	if s.notifier != nil {
		if err := s.notifier.EnqueueConversionNotice(ctx, quote.Number, sale.Number); err != nil {
			log.Warn().Err(err).
				Str("sale_id", sale.ID.String()).
				Msg("conversion notice not enqueued")
		}
	}

	fresh, err := s.saleRepo.FindByID(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	return saleToResponse(fresh), nil
}

// convertItem copies a quote line into a sale line. Overridden prices replace
// the quoted ones, the mode is fixed to price_to_total with the target synced,
// and the cost is snapshotted from the product's current cost.
func (s *conversionService) convertItem(ctx context.Context, src *model.QuoteItem, overrides map[uuid.UUID]decimal.Decimal) (*model.SaleItem, error) {
	price := src.UnitPrice
	if override, ok := overrides[src.ID]; ok {
		price = override
	}

	product, err := s.productRepo.FindByID(ctx, src.ProductID)
	if err != nil {
		return nil, fmt.Errorf("producto %s no encontrado", src.ProductID)
	}

	item := &model.SaleItem{
		ProductID:       src.ProductID,
		Quantity:        src.Quantity,
		UnitPrice:       price,
		UnitCost:        product.CurrentCost,
		DiscountType:    src.DiscountType,
		DiscountValue:   src.DiscountValue,
		DiscountReason:  src.DiscountReason,
		TaxPercentage:   src.TaxPercentage,
		Notes:           src.Notes,
		LineOrder:       src.LineOrder,
		CalculationMode: model.ModePriceToTotal,
	}
	if err := resolveSaleItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *conversionService) Record(ctx context.Context, quoteID uuid.UUID) (*dto.ConversionResponse, error) {
	conv, err := s.conversionRepo.FindByQuoteID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ConversionResponse{
		ID:          conv.ID.String(),
		QuoteID:     conv.QuoteID.String(),
		SaleID:      conv.SaleID.String(),
		ConvertedAt: conv.ConvertedAt.Format(time.RFC3339),
	}
	if conv.ConvertedByID != nil {
		resp.ConvertedByID = conv.ConvertedByID.String()
	}
	if len(conv.OriginalQuoteData) > 0 {
		var original any
		if err := json.Unmarshal(conv.OriginalQuoteData, &original); err == nil {
			resp.OriginalQuoteData = original
		}
	}
	if len(conv.Modifications) > 0 {
		var modifications any
		if err := json.Unmarshal(conv.Modifications, &modifications); err == nil {
			resp.Modifications = modifications
		}
	}
	return resp, nil
}
