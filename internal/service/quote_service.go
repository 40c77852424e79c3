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

var errCounterpartyRequired = errors.New("se requiere un cliente registrado o los datos del cliente ocasional")

type QuoteService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateQuoteRequest) (*dto.QuoteResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.QuoteResponse, error)
	AddLine(ctx context.Context, quoteID uuid.UUID, req dto.LineRequest) (*dto.QuoteResponse, error)
	UpdateLine(ctx context.Context, quoteID, itemID uuid.UUID, req dto.LineRequest) (*dto.QuoteResponse, error)
	RemoveLine(ctx context.Context, quoteID, itemID uuid.UUID) (*dto.QuoteResponse, error)
	Transition(ctx context.Context, quoteID uuid.UUID, actor Actor, action, reason string) (*dto.QuoteResponse, error)
	Delete(ctx context.Context, quoteID uuid.UUID) error
}

type quoteService struct {
	repo         repository.QuoteRepository
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
}

func NewQuoteService(
	repo repository.QuoteRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
) QuoteService {
	return &quoteService{repo: repo, customerRepo: customerRepo, productRepo: productRepo}
}

// ── Create ───────────────────────────────────────────────────────────────────

func (s *quoteService) Create(ctx context.Context, actor Actor, req dto.CreateQuoteRequest) (*dto.QuoteResponse, error) {
	validUntil, err := time.Parse(dateLayout, req.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("valid_until inválido: %w", err)
	}

	quote := &model.Quote{
		ValidUntil:    validUntil,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		CustomerCuit:  req.CustomerCuit,
		Status:        model.QuoteDraft,
		Notes:         req.Notes,
		InternalNotes: req.InternalNotes,
	}

	// Counterparty: a registered customer or the walk-in fields, at least one.
	if req.CustomerID != nil {
		cid, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("customer_id inválido: %w", err)
		}
		if _, err := s.customerRepo.FindByID(ctx, cid); err != nil {
			return nil, fmt.Errorf("cliente %s no encontrado", cid)
		}
		quote.CustomerID = &cid
	} else if req.CustomerName == "" {
		return nil, errCounterpartyRequired
	}

	// Resolve lines outside the transaction (product lookups, mode math).
	items := make([]model.QuoteItem, 0, len(req.Items))
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
		quote.Number = formatDocumentNumber("PRES", seq, time.Now())
		quote.Items = items
		if err := s.repo.Create(ctx, tx, quote); err != nil {
			return err
		}
		current, err := s.repo.Items(ctx, tx, quote.ID)
		if err != nil {
			return err
		}
		return s.repo.UpdateTotals(ctx, tx, quote.ID, totalsFromQuoteItems(current))
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("quote_id", quote.ID.String()).
		Str("number", quote.Number).
		Str("user_id", actor.ID.String()).
		Int("items", len(items)).
		Msg("quote created")

	return s.Get(ctx, quote.ID)
}

// buildItem maps a line request onto a new QuoteItem, validates the product
// reference and runs the calculation-mode resolution.
func (s *quoteService) buildItem(ctx context.Context, req dto.LineRequest, order int) (*model.QuoteItem, error) {
	pid, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("producto_id inválido: %w", err)
	}
	if _, err := s.productRepo.FindByID(ctx, pid); err != nil {
		return nil, fmt.Errorf("producto %s no encontrado", pid)
	}

	item := &model.QuoteItem{
		ProductID:       pid,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
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
	if err := resolveQuoteItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// ── Read ─────────────────────────────────────────────────────────────────────

func (s *quoteService) Get(ctx context.Context, id uuid.UUID) (*dto.QuoteResponse, error) {
	quote, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return quoteToResponse(quote), nil
}

// ── Line mutations ───────────────────────────────────────────────────────────
// Every path: editability guard, resolve, persist line + re-aggregate the
// parent's cached totals, all inside one transaction.

func (s *quoteService) AddLine(ctx context.Context, quoteID uuid.UUID, req dto.LineRequest) (*dto.QuoteResponse, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !quote.IsEditable() {
		return nil, &IllegalTransitionError{Entity: "presupuesto", Current: string(quote.Status), Action: "edit"}
	}

	item, err := s.buildItem(ctx, req, len(quote.Items))
	if err != nil {
		return nil, err
	}
	item.QuoteID = quoteID

	if err := s.mutateAndAggregate(ctx, quoteID, func(tx *gorm.DB) error {
		return s.repo.SaveItem(ctx, tx, item)
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, quoteID)
}

func (s *quoteService) UpdateLine(ctx context.Context, quoteID, itemID uuid.UUID, req dto.LineRequest) (*dto.QuoteResponse, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !quote.IsEditable() {
		return nil, &IllegalTransitionError{Entity: "presupuesto", Current: string(quote.Status), Action: "edit"}
	}

	item, err := s.repo.FindItem(ctx, quoteID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.applyLineRequest(ctx, item, req); err != nil {
		return nil, err
	}

	if err := s.mutateAndAggregate(ctx, quoteID, func(tx *gorm.DB) error {
		return s.repo.SaveItem(ctx, tx, item)
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, quoteID)
}

func (s *quoteService) RemoveLine(ctx context.Context, quoteID, itemID uuid.UUID) (*dto.QuoteResponse, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !quote.IsEditable() {
		return nil, &IllegalTransitionError{Entity: "presupuesto", Current: string(quote.Status), Action: "edit"}
	}

	item, err := s.repo.FindItem(ctx, quoteID, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.mutateAndAggregate(ctx, quoteID, func(tx *gorm.DB) error {
		return s.repo.DeleteItem(ctx, tx, item)
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, quoteID)
}

// applyLineRequest copies the editable fields onto an existing item and
// re-runs the mode resolution.
func (s *quoteService) applyLineRequest(ctx context.Context, item *model.QuoteItem, req dto.LineRequest) error {
	pid, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fmt.Errorf("producto_id inválido: %w", err)
	}
	if pid != item.ProductID {
		if _, err := s.productRepo.FindByID(ctx, pid); err != nil {
			return fmt.Errorf("producto %s no encontrado", pid)
		}
		item.ProductID = pid
		item.Product = nil
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
	return resolveQuoteItem(item)
}

// mutateAndAggregate runs the line mutation and the totals recomputation as
// one transaction so readers never observe totals for a partial line set.
func (s *quoteService) mutateAndAggregate(ctx context.Context, quoteID uuid.UUID, mutate func(tx *gorm.DB) error) error {
	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := mutate(tx); err != nil {
			return err
		}
		items, err := s.repo.Items(ctx, tx, quoteID)
		if err != nil {
			return err
		}
		return s.repo.UpdateTotals(ctx, tx, quoteID, totalsFromQuoteItems(items))
	})
}

// ── Transitions ──────────────────────────────────────────────────────────────

func (s *quoteService) Transition(ctx context.Context, quoteID uuid.UUID, actor Actor, action, reason string) (*dto.QuoteResponse, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	next, err := NextQuoteStatus(quote.Status, action)
	if err != nil {
		return nil, err
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.UpdateStatus(ctx, tx, quoteID, next); err != nil {
			return err
		}
		if action == QuoteActionCancel {
			note := fmt.Sprintf("\n\nCancelado por %s el %s: %s",
				actor.Username, time.Now().Format(time.RFC3339), reason)
			return s.repo.AppendInternalNotes(ctx, tx, quoteID, note)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("quote_id", quoteID.String()).
		Str("from", string(quote.Status)).
		Str("to", string(next)).
		Str("user_id", actor.ID.String()).
		Msg("quote transition")

	return s.Get(ctx, quoteID)
}

// ── Delete ───────────────────────────────────────────────────────────────────

func (s *quoteService) Delete(ctx context.Context, quoteID uuid.UUID) error {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return err
	}
	if quote.Status != model.QuoteDraft {
		return &IllegalTransitionError{Entity: "presupuesto", Current: string(quote.Status), Action: "delete"}
	}
	return s.repo.Delete(ctx, quoteID)
}
