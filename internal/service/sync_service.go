package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/calc"
	"github.com/melafrancom/erp-bulonera/internal/dto"
	"github.com/melafrancom/erp-bulonera/internal/model"
	"github.com/melafrancom/erp-bulonera/internal/repository"
)

const (
	syncResultSuccess  = "success"
	syncResultConflict = "conflict"
	syncResultError    = "error"

	defaultPendingLimit = 50
	maxPendingLimit     = 200
)

// clientSaleStatuses are the states an offline client may submit.
var clientSaleStatuses = map[model.SaleStatus]bool{
	model.SaleDraft:         true,
	model.SaleConfirmed:     true,
	model.SaleInPreparation: true,
	model.SaleReady:         true,
	model.SaleDelivered:     true,
	model.SaleCancelled:     true,
}

type SyncService interface {
	// Upload reconciles a batch of offline-created sales. Each document is
	// processed independently: one malformed or conflicting document never
	// rejects its siblings.
	Upload(ctx context.Context, actor Actor, req dto.SyncUploadRequest) (*dto.SyncUploadResponse, error)
	ResolveConflict(ctx context.Context, actor Actor, req dto.ResolveConflictRequest) (*dto.SaleResponse, error)
	Retry(ctx context.Context, actor Actor, req dto.SyncRetryRequest) (*dto.SyncRetryResponse, error)
	Pending(ctx context.Context, actor Actor, limit int) (*dto.SyncPendingResponse, error)
	Status(ctx context.Context, actor Actor, saleID uuid.UUID) (*dto.SyncStatusResponse, error)
}

type syncService struct {
	saleRepo     repository.SaleRepository
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
}

func NewSyncService(
	saleRepo repository.SaleRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
) SyncService {
	return &syncService{saleRepo: saleRepo, customerRepo: customerRepo, productRepo: productRepo}
}

// ── Upload ───────────────────────────────────────────────────────────────────

func (s *syncService) Upload(ctx context.Context, actor Actor, req dto.SyncUploadRequest) (*dto.SyncUploadResponse, error) {
	resp := &dto.SyncUploadResponse{
		Results: make([]dto.SyncResult, 0, len(req.Sales)),
		Summary: dto.SyncSummary{Total: len(req.Sales)},
	}

	for i := range req.Sales {
		result := s.syncOne(ctx, actor, &req.Sales[i])
		switch result.Status {
		case syncResultSuccess:
			resp.Summary.Successful++
		case syncResultConflict:
			resp.Summary.Conflicts++
		default:
			resp.Summary.Errors++
		}
		resp.Results = append(resp.Results, result)
	}

	log.Info().
		Str("user_id", actor.ID.String()).
		Int("total", resp.Summary.Total).
		Int("successful", resp.Summary.Successful).
		Int("conflicts", resp.Summary.Conflicts).
		Int("errors", resp.Summary.Errors).
		Msg("sync upload processed")

	return resp, nil
}

func (s *syncService) syncOne(ctx context.Context, actor Actor, doc *dto.SyncSale) dto.SyncResult {
	localID := doc.LocalID
	if localID == "" {
		localID = "MISSING"
	}
	fail := func(msg string) dto.SyncResult {
		return dto.SyncResult{LocalID: localID, Status: syncResultError, Error: msg}
	}

	// Document validation, in order. Every failure is a per-document error.
	if doc.LocalID == "" {
		return fail("local_id requerido")
	}
	if _, err := uuid.Parse(doc.LocalID); err != nil {
		return fail(fmt.Sprintf("local_id %q no es un UUID válido", doc.LocalID))
	}

	// Offline clients only sell to registered customers, so the reference is
	// mandatory here even though in-store sales allow a walk-in counterparty.
	if doc.CustomerID == "" {
		return fail("customer_id requerido")
	}
	cid, err := uuid.Parse(doc.CustomerID)
	if err != nil {
		return fail(fmt.Sprintf("customer_id %q no es un UUID válido", doc.CustomerID))
	}
	if _, err := s.customerRepo.FindByID(ctx, cid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(fmt.Sprintf("cliente %s no encontrado", cid))
		}
		return s.unexpected(localID, err)
	}
	customerID := &cid

	if len(doc.Items) == 0 {
		return fail("la venta no tiene items")
	}

	status := model.SaleDraft
	if doc.Status != "" {
		status = model.SaleStatus(doc.Status)
		if !clientSaleStatuses[status] {
			return fail(fmt.Sprintf("estado %q desconocido", doc.Status))
		}
	}

	// Resolve all lines before touching the database.
	items := make([]model.SaleItem, 0, len(doc.Items))
	for idx := range doc.Items {
		item, errMsg := s.syncItem(ctx, &doc.Items[idx], idx)
		if errMsg != "" {
			return fail(errMsg)
		}
		if item == nil {
			return s.unexpected(localID, errors.New("item lookup failed"))
		}
		items = append(items, *item)
	}

	existing, err := s.saleRepo.FindByLocalID(ctx, doc.LocalID)
	switch {
	case err == nil:
		return s.syncExisting(ctx, doc, existing, items)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.syncCreate(ctx, actor, doc, customerID, status, items)
	default:
		return s.unexpected(localID, err)
	}
}

// syncItem validates and resolves one uploaded line. Returns a non-empty
// message on validation failure.
func (s *syncService) syncItem(ctx context.Context, raw *dto.SyncItem, order int) (*model.SaleItem, string) {
	pid, err := uuid.Parse(raw.ProductID)
	if err != nil {
		return nil, fmt.Sprintf("item %d: product_id %q no es un UUID válido", order, raw.ProductID)
	}
	product, err := s.productRepo.FindByID(ctx, pid)
	if err != nil {
		return nil, fmt.Sprintf("item %d: producto %s no encontrado", order, pid)
	}

	quantity, err := decimal.NewFromString(raw.Quantity)
	if err != nil || !quantity.IsPositive() {
		return nil, fmt.Sprintf("item %d: cantidad %q inválida", order, raw.Quantity)
	}
	price, err := decimal.NewFromString(raw.UnitPrice)
	if err != nil || price.IsNegative() {
		return nil, fmt.Sprintf("item %d: precio %q inválido", order, raw.UnitPrice)
	}

	item := &model.SaleItem{
		ProductID:       pid,
		Quantity:        quantity,
		UnitPrice:       price,
		UnitCost:        product.CurrentCost,
		DiscountType:    calc.DiscountNone,
		Notes:           raw.Notes,
		LineOrder:       order,
		CalculationMode: model.ModePriceToTotal,
	}
	if raw.DiscountType != "" {
		item.DiscountType = calc.DiscountType(raw.DiscountType)
		if v, err := decimal.NewFromString(raw.DiscountValue); err == nil {
			item.DiscountValue = v
		} else {
			return nil, fmt.Sprintf("item %d: descuento %q inválido", order, raw.DiscountValue)
		}
	}
	if raw.TaxPercentage != "" {
		v, err := decimal.NewFromString(raw.TaxPercentage)
		if err != nil {
			return nil, fmt.Sprintf("item %d: iva %q inválido", order, raw.TaxPercentage)
		}
		item.TaxPercentage = v
	}
	if err := resolveSaleItem(item); err != nil {
		return nil, fmt.Sprintf("item %d: %s", order, err.Error())
	}
	return item, ""
}

// syncExisting handles the local_id hit: duplicate upload, version conflict,
// or a matching-version resync applied as a normal content update.
func (s *syncService) syncExisting(ctx context.Context, doc *dto.SyncSale, existing *model.Sale, items []model.SaleItem) dto.SyncResult {
	now := time.Now()

	if doc.Version != existing.Version {
		// Conflict detection writes sync bookkeeping only: the server content
		// and its version stay untouched until someone resolves.
		conflictData, _ := json.Marshal(map[string]int{
			"server_version": existing.Version,
			"client_version": doc.Version,
		})
		err := runTx(ctx, s.saleRepo.DB(), func(tx *gorm.DB) error {
			return s.saleRepo.UpdateFields(ctx, tx, existing.ID, map[string]interface{}{
				"sync_status":        model.SyncConflict,
				"sync_last_attempt":  now,
				"sync_attempt_count": gorm.Expr("sync_attempt_count + 1"),
				"conflict_data":      conflictData,
			})
		})
		if err != nil {
			return s.unexpected(doc.LocalID, err)
		}
		return dto.SyncResult{
			LocalID:    doc.LocalID,
			Status:     syncResultConflict,
			SaleID:     existing.ID.String(),
			SaleNumber: existing.Number,
			Message:    "la versión del servidor difiere de la del cliente",
			ConflictData: &dto.ConflictInfo{
				ServerVersion: existing.Version,
				ClientVersion: doc.Version,
			},
		}
	}

	if existing.SyncStatus == model.SyncSynced {
		// Same version, already synced: duplicate upload, nothing to apply.
		return dto.SyncResult{
			LocalID:    doc.LocalID,
			Status:     syncResultSuccess,
			SaleID:     existing.ID.String(),
			SaleNumber: existing.Number,
			Message:    "venta ya sincronizada",
		}
	}

	err := runTx(ctx, s.saleRepo.DB(), func(tx *gorm.DB) error {
		if err := s.saleRepo.ReplaceItems(ctx, tx, existing.ID, items); err != nil {
			return err
		}
		current, err := s.saleRepo.Items(ctx, tx, existing.ID)
		if err != nil {
			return err
		}
		if err := s.saleRepo.UpdateTotals(ctx, tx, existing.ID, totalsFromSaleItems(current)); err != nil {
			return err
		}
		if err := s.saleRepo.UpdateFields(ctx, tx, existing.ID, map[string]interface{}{
			"notes":              doc.Notes,
			"sync_status":        model.SyncSynced,
			"sync_last_attempt":  now,
			"sync_succeeded_at":  now,
			"sync_attempt_count": gorm.Expr("sync_attempt_count + 1"),
			"sync_error":         "",
		}); err != nil {
			return err
		}
		return s.saleRepo.BumpVersion(ctx, tx, existing.ID)
	})
	if err != nil {
		return s.unexpected(doc.LocalID, err)
	}
	return dto.SyncResult{
		LocalID:    doc.LocalID,
		Status:     syncResultSuccess,
		SaleID:     existing.ID.String(),
		SaleNumber: existing.Number,
	}
}

func (s *syncService) syncCreate(ctx context.Context, actor Actor, doc *dto.SyncSale, customerID *uuid.UUID, status model.SaleStatus, items []model.SaleItem) dto.SyncResult {
	now := time.Now()
	localID := doc.LocalID
	sale := &model.Sale{
		CustomerID:       customerID,
		CreatedByID:      &actor.ID,
		Status:           status,
		PaymentStatus:    model.PaymentUnpaid,
		FiscalStatus:     model.FiscalNotRequired,
		Notes:            doc.Notes,
		SyncStatus:       model.SyncSynced,
		LocalID:          &localID,
		SyncLastAttempt:  &now,
		SyncSucceededAt:  &now,
		SyncAttemptCount: 1,
	}

	err := runTx(ctx, s.saleRepo.DB(), func(tx *gorm.DB) error {
		seq, err := s.saleRepo.NextNumber(ctx, tx)
		if err != nil {
			return err
		}
		sale.Number = formatDocumentNumber("VTA", seq, now)
		sale.Items = items
		if err := s.saleRepo.Create(ctx, tx, sale); err != nil {
			return err
		}
		current, err := s.saleRepo.Items(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		return s.saleRepo.UpdateTotals(ctx, tx, sale.ID, totalsFromSaleItems(current))
	})
	if err != nil {
		return s.unexpected(doc.LocalID, err)
	}
	return dto.SyncResult{
		LocalID:    doc.LocalID,
		Status:     syncResultSuccess,
		SaleID:     sale.ID.String(),
		SaleNumber: sale.Number,
	}
}

func (s *syncService) unexpected(localID string, err error) dto.SyncResult {
	log.Error().Err(err).Str("local_id", localID).Msg("sync document failed")
	return dto.SyncResult{
		LocalID: localID,
		Status:  syncResultError,
		Error:   "error interno al sincronizar la venta",
	}
}

// ── Conflict resolution ──────────────────────────────────────────────────────

func (s *syncService) ResolveConflict(ctx context.Context, actor Actor, req dto.ResolveConflictRequest) (*dto.SaleResponse, error) {
	saleID, err := uuid.Parse(req.SaleID)
	if err != nil {
		return nil, fmt.Errorf("sale_id inválido: %w", err)
	}
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.SyncStatus != model.SyncConflict {
		return nil, &NotInConflictError{SaleID: saleID, SyncStatus: sale.SyncStatus}
	}

	now := time.Now()
	resolution := model.ConflictResolution(req.Resolution)

	txErr := runTx(ctx, s.saleRepo.DB(), func(tx *gorm.DB) error {
		switch resolution {
		case model.ResolutionServerWins:
			// Server content stands; only sync bookkeeping changes.
			return s.saleRepo.UpdateFields(ctx, tx, saleID, map[string]interface{}{
				"sync_status":         model.SyncSynced,
				"sync_succeeded_at":   now,
				"conflict_resolution": resolution,
				"conflict_data":       nil,
			})

		case model.ResolutionClientWins:
			fields := map[string]interface{}{
				"sync_status":         model.SyncSynced,
				"sync_succeeded_at":   now,
				"conflict_resolution": resolution,
				"conflict_data":       nil,
			}
			if req.ClientData != nil {
				if req.ClientData.Notes != nil {
					fields["notes"] = *req.ClientData.Notes
				}
				if req.ClientData.Status != nil {
					st := model.SaleStatus(*req.ClientData.Status)
					if !clientSaleStatuses[st] {
						return fmt.Errorf("estado %q desconocido", *req.ClientData.Status)
					}
					fields["status"] = st
				}
				if req.ClientData.DeliveryAddress != nil {
					fields["delivery_address"] = *req.ClientData.DeliveryAddress
				}
				if req.ClientData.DeliveryDate != nil {
					d, err := time.Parse(dateLayout, *req.ClientData.DeliveryDate)
					if err != nil {
						return fmt.Errorf("delivery_date inválido: %w", err)
					}
					fields["delivery_date"] = d
				}
			}
			if err := s.saleRepo.UpdateFields(ctx, tx, saleID, fields); err != nil {
				return err
			}
			// Client data replaced server content, so the version moves on.
			return s.saleRepo.BumpVersion(ctx, tx, saleID)

		case model.ResolutionManual:
			// Marks the conflict as handled by a human; conflict_data stays
			// available for reference.
			return s.saleRepo.UpdateFields(ctx, tx, saleID, map[string]interface{}{
				"sync_status":         model.SyncSynced,
				"sync_succeeded_at":   now,
				"conflict_resolution": resolution,
			})

		default:
			return fmt.Errorf("resolución %q desconocida", req.Resolution)
		}
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("sale_id", saleID.String()).
		Str("resolution", req.Resolution).
		Str("user_id", actor.ID.String()).
		Msg("sync conflict resolved")

	fresh, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return saleToResponse(fresh), nil
}

// ── Retry ────────────────────────────────────────────────────────────────────

func (s *syncService) Retry(ctx context.Context, actor Actor, req dto.SyncRetryRequest) (*dto.SyncRetryResponse, error) {
	resp := &dto.SyncRetryResponse{Results: make([]dto.SyncRetryResult, 0, len(req.SaleIDs))}

	for _, raw := range req.SaleIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			resp.Results = append(resp.Results, dto.SyncRetryResult{SaleID: raw, Status: "not_found"})
			continue
		}

		sale, err := s.saleRepo.FindOwnedByID(ctx, id, actor.ID)
		if err != nil || (sale.SyncStatus != model.SyncPending && sale.SyncStatus != model.SyncError) {
			resp.Results = append(resp.Results, dto.SyncRetryResult{SaleID: raw, Status: "not_found"})
			continue
		}

		now := time.Now()
		attempt := sale.SyncAttemptCount + 1
		updateErr := runTx(ctx, s.saleRepo.DB(), func(tx *gorm.DB) error {
			return s.saleRepo.UpdateFields(ctx, tx, id, map[string]interface{}{
				"sync_status":        model.SyncPending,
				"sync_last_attempt":  now,
				"sync_attempt_count": gorm.Expr("sync_attempt_count + 1"),
				"sync_error":         "",
			})
		})
		if updateErr != nil {
			log.Error().Err(updateErr).Str("sale_id", raw).Msg("sync retry failed")
			resp.Results = append(resp.Results, dto.SyncRetryResult{SaleID: raw, Status: "not_found"})
			continue
		}

		resp.Processed++
		resp.Results = append(resp.Results, dto.SyncRetryResult{
			SaleID:     raw,
			SaleNumber: sale.Number,
			Status:     "queued",
			Attempt:    attempt,
		})
	}

	return resp, nil
}

// ── Pending / status ─────────────────────────────────────────────────────────

func (s *syncService) Pending(ctx context.Context, actor Actor, limit int) (*dto.SyncPendingResponse, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}

	sales, err := s.saleRepo.ListPendingSync(ctx, actor.ID, limit)
	if err != nil {
		return nil, err
	}

	resp := &dto.SyncPendingResponse{
		Count:   len(sales),
		Limit:   limit,
		Results: make([]dto.SaleResponse, 0, len(sales)),
	}
	for i := range sales {
		resp.Results = append(resp.Results, *saleToResponse(&sales[i]))
	}
	return resp, nil
}

func (s *syncService) Status(ctx context.Context, actor Actor, saleID uuid.UUID) (*dto.SyncStatusResponse, error) {
	sale, err := s.saleRepo.FindOwnedByID(ctx, saleID, actor.ID)
	if err != nil {
		return nil, err
	}

	resp := &dto.SyncStatusResponse{
		SaleID:           sale.ID.String(),
		SaleNumber:       sale.Number,
		LocalID:          sale.LocalID,
		SyncStatus:       string(sale.SyncStatus),
		SyncAttemptCount: sale.SyncAttemptCount,
		Version:          sale.Version,
	}
	if sale.SyncSucceededAt != nil {
		v := sale.SyncSucceededAt.Format(time.RFC3339)
		resp.SyncSucceededAt = &v
	}
	if sale.SyncLastAttempt != nil {
		v := sale.SyncLastAttempt.Format(time.RFC3339)
		resp.SyncLastAttempt = &v
	}
	if sale.ConflictResolution != nil {
		v := string(*sale.ConflictResolution)
		resp.ConflictResolution = &v
	}
	if sale.SyncError != "" {
		resp.Error = &sale.SyncError
	}
	return resp, nil
}
