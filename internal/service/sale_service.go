package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/calc"
	"github.com/melafrancom/erp-bulonera/internal/dto"
	"github.com/melafrancom/erp-bulonera/internal/model"
	"github.com/melafrancom/erp-bulonera/internal/repository"
)

var errConfirmWithoutItems = errors.New("no se puede confirmar una venta sin items")

type SaleService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
	AddLine(ctx context.Context, saleID uuid.UUID, req dto.LineRequest) (*dto.SaleResponse, error)
	UpdateLine(ctx context.Context, saleID, itemID uuid.UUID, req dto.LineRequest) (*dto.SaleResponse, error)
	RemoveLine(ctx context.Context, saleID, itemID uuid.UUID) (*dto.SaleResponse, error)
	Transition(ctx context.Context, saleID uuid.UUID, actor Actor, action, reason string) (*dto.SaleResponse, error)
	RequestInvoice(ctx context.Context, saleID uuid.UUID, actor Actor) (*dto.SaleResponse, error)
	Delete(ctx context.Context, saleID uuid.UUID) error
}

type saleService struct {
	repo         repository.SaleRepository
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
}

func NewSaleService(
	repo repository.SaleRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
) SaleService {
	return &saleService{repo: repo, customerRepo: customerRepo, productRepo: productRepo}
}

// ── Create ───────────────────────────────────────────────────────────────────

func (s *saleService) Create(ctx context.Context, actor Actor, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	sale := &model.Sale{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		CustomerCuit:    req.CustomerCuit,
		Status:          model.SaleDraft,
		PaymentStatus:   model.PaymentUnpaid,
		FiscalStatus:    model.FiscalNotRequired,
		SyncStatus:      model.SyncSynced,
		Notes:           req.Notes,
		InternalNotes:   req.InternalNotes,
		DeliveryAddress: req.DeliveryAddress,
		CreatedByID:     &actor.ID,
	}

	if req.CustomerID != nil {
		cid, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("customer_id inválido: %w", err)
		}
		if _, err := s.customerRepo.FindByID(ctx, cid); err != nil {
			return nil, fmt.Errorf("cliente %s no encontrado", cid)
		}
		sale.CustomerID = &cid
	} else if req.CustomerName == "" {
		return nil, errCounterpartyRequired
	}

	if req.DeliveryDate != nil {
		d, err := time.Parse(dateLayout, *req.DeliveryDate)
		if err != nil {
			return nil, fmt.Errorf("delivery_date inválido: %w", err)
		}
		sale.DeliveryDate = &d
	}

	items := make([]model.SaleItem, 0, len(req.Items))
	for idx, lineReq := range req.Items {
		item, err := s.buildItem(ctx, lineReq, idx)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		seq, err := s.repo.NextNumber(ctx, tx)
		if err != nil {
			return err
		}
		sale.Number = formatDocumentNumber("VTA", seq, time.Now())
		sale.Items = items
		if err := s.repo.Create(ctx, tx, sale); err != nil {
			return err
		}
		current, err := s.repo.Items(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		return s.repo.UpdateTotals(ctx, tx, sale.ID, totalsFromSaleItems(current))
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("sale_id", sale.ID.String()).
		Str("number", sale.Number).
		Str("user_id", actor.ID.String()).
		Int("items", len(items)).
		Msg("sale created")

	return s.Get(ctx, sale.ID)
}

// buildItem maps a line request onto a new SaleItem. The unit cost is
// snapshotted from the product's current cost at creation time.
func (s *saleService) buildItem(ctx context.Context, req dto.LineRequest, order int) (*model.SaleItem, error) {
	pid, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("producto_id inválido: %w", err)
	}
	product, err := s.productRepo.FindByID(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("producto %s no encontrado", pid)
	}

	item := &model.SaleItem{
		ProductID:       pid,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		UnitCost:        product.CurrentCost,
		DiscountType:    calc.DiscountType(req.DiscountType),
		DiscountValue:   req.DiscountValue,
		DiscountReason:  req.DiscountReason,
		TaxPercentage:   req.TaxPercentage,
		Notes:           req.Notes,
		LineOrder:       req.LineOrder,
		CalculationMode: model.CalculationMode(req.CalculationMode),
		TargetTotal:     req.TargetTotal,
	}
	if item.DiscountType == "" {
		item.DiscountType = calc.DiscountNone
	}
	if item.CalculationMode == "" {
		item.CalculationMode = model.ModePriceToTotal
	}
	if item.LineOrder == 0 {
		item.LineOrder = order
	}
	if err := resolveSaleItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// ── Read ─────────────────────────────────────────────────────────────────────

func (s *saleService) Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return saleToResponse(sale), nil
}

// ── Line mutations ───────────────────────────────────────────────────────────
// Sales accept line edits in draft only. Each mutation re-aggregates the
// cached totals and bumps the version in the same transaction.

func (s *saleService) AddLine(ctx context.Context, saleID uuid.UUID, req dto.LineRequest) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !sale.IsEditable() {
		return nil, &IllegalTransitionError{Entity: "venta", Current: string(sale.Status), Action: "edit"}
	}

	item, err := s.buildItem(ctx, req, len(sale.Items))
	if err != nil {
		return nil, err
	}
	item.SaleID = saleID

	if err := s.mutateAndAggregate(ctx, saleID, func(tx *gorm.DB) error {
		return s.repo.SaveItem(ctx, tx, item)
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, saleID)
}

func (s *saleService) UpdateLine(ctx context.Context, saleID, itemID uuid.UUID, req dto.LineRequest) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !sale.IsEditable() {
		return nil, &IllegalTransitionError{Entity: "venta", Current: string(sale.Status), Action: "edit"}
	}

	item, err := s.repo.FindItem(ctx, saleID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.applyLineRequest(ctx, item, req); err != nil {
		return nil, err
	}

	if err := s.mutateAndAggregate(ctx, saleID, func(tx *gorm.DB) error {
		return s.repo.SaveItem(ctx, tx, item)
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, saleID)
}

func (s *saleService) RemoveLine(ctx context.Context, saleID, itemID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !sale.IsEditable() {
		return nil, &IllegalTransitionError{Entity: "venta", Current: string(sale.Status), Action: "edit"}
	}

	item, err := s.repo.FindItem(ctx, saleID, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.mutateAndAggregate(ctx, saleID, func(tx *gorm.DB) error {
		return s.repo.DeleteItem(ctx, tx, item)
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, saleID)
}

func (s *saleService) applyLineRequest(ctx context.Context, item *model.SaleItem, req dto.LineRequest) error {
	pid, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fmt.Errorf("producto_id inválido: %w", err)
	}
	if pid != item.ProductID {
		product, err := s.productRepo.FindByID(ctx, pid)
		if err != nil {
			return fmt.Errorf("producto %s no encontrado", pid)
		}
		item.ProductID = pid
		item.Product = nil
		item.UnitCost = product.CurrentCost
	}

	item.Quantity = req.Quantity
	item.UnitPrice = req.UnitPrice
	item.DiscountType = calc.DiscountType(req.DiscountType)
	item.DiscountValue = req.DiscountValue
	item.DiscountReason = req.DiscountReason
	item.TaxPercentage = req.TaxPercentage
	item.Notes = req.Notes
	item.LineOrder = req.LineOrder
	item.CalculationMode = model.CalculationMode(req.CalculationMode)
	item.TargetTotal = req.TargetTotal
	if item.DiscountType == "" {
		item.DiscountType = calc.DiscountNone
	}
	if item.CalculationMode == "" {
		item.CalculationMode = model.ModePriceToTotal
	}
	return resolveSaleItem(item)
}

func (s *saleService) mutateAndAggregate(ctx context.Context, saleID uuid.UUID, mutate func(tx *gorm.DB) error) error {
	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := mutate(tx); err != nil {
			return err
		}
		items, err := s.repo.Items(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateTotals(ctx, tx, saleID, totalsFromSaleItems(items)); err != nil {
			return err
		}
		return s.repo.BumpVersion(ctx, tx, saleID)
	})
}

// ── Transitions ──────────────────────────────────────────────────────────────

func (s *saleService) Transition(ctx context.Context, saleID uuid.UUID, actor Actor, action, reason string) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	next, err := NextSaleStatus(sale.Status, action)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fields := map[string]interface{}{"status": next}
	switch action {
	case SaleActionConfirm:
		if len(sale.Items) == 0 {
			return nil, errConfirmWithoutItems
		}
		// Confirmation stamps the document and marks the stock reservation;
		// actual inventory movements belong to the inventory app.
		fields["confirmed_at"] = now
		fields["stock_reserved_at"] = now
		fields["stock_reserved_by_id"] = actor.ID
	case SaleActionCancel:
		if sale.IsStockReserved() {
			fields["stock_reserved_at"] = nil
			fields["stock_reserved_by_id"] = nil
		}
		note := fmt.Sprintf("\n\nCancelado por %s el %s: %s",
			actor.Username, now.Format(time.RFC3339), reason)
		fields["internal_notes"] = gorm.Expr("internal_notes || ?", note)
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.UpdateFields(ctx, tx, saleID, fields); err != nil {
			return err
		}
		return s.repo.BumpVersion(ctx, tx, saleID)
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("sale_id", saleID.String()).
		Str("from", string(sale.Status)).
		Str("to", string(next)).
		Str("user_id", actor.ID.String()).
		Msg("sale transition")

	return s.Get(ctx, saleID)
}

// RequestInvoice marks the sale as awaiting fiscal authorization. The bills
// app picks it up from there.
func (s *saleService) RequestInvoice(ctx context.Context, saleID uuid.UUID, actor Actor) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !sale.CanBeInvoiced() {
		return nil, &IllegalTransitionError{Entity: "venta", Current: string(sale.Status), Action: "request_invoice"}
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.UpdateFields(ctx, tx, saleID, map[string]interface{}{
			"fiscal_status": model.FiscalPending,
		}); err != nil {
			return err
		}
		return s.repo.BumpVersion(ctx, tx, saleID)
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("sale_id", saleID.String()).
		Str("user_id", actor.ID.String()).
		Msg("invoice requested")

	return s.Get(ctx, saleID)
}

// ── Delete ───────────────────────────────────────────────────────────────────

func (s *saleService) Delete(ctx context.Context, saleID uuid.UUID) error {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Status != model.SaleDraft {
		return &IllegalTransitionError{Entity: "venta", Current: string(sale.Status), Action: "delete"}
	}
	return s.repo.Archive(ctx, saleID)
}
