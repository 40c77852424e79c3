package service

import (
	"fmt"
	"time"

	"github.com/melafrancom/erp-bulonera/internal/dto"
	"github.com/melafrancom/erp-bulonera/internal/model"
)

const dateLayout = "2006-01-02"

// formatDocumentNumber renders the human-readable sequential number,
// e.g. PRES-2026-00042 or VTA-2026-00042.
func formatDocumentNumber(prefix string, seq int, at time.Time) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, at.Year(), seq)
}

func quoteLineToResponse(item *model.QuoteItem) dto.LineResponse {
	a := item.Amounts()
	name := ""
	if item.Product != nil {
		name = item.Product.Name
	}
	return dto.LineResponse{
		ID:              item.ID.String(),
		ProductID:       item.ProductID.String(),
		Product:         name,
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice,
		DiscountType:    string(item.DiscountType),
		DiscountValue:   item.DiscountValue,
		TaxPercentage:   item.TaxPercentage,
		LineOrder:       item.LineOrder,
		Notes:           item.Notes,
		CalculationMode: string(item.CalculationMode),
		TargetTotal:     item.TargetTotal,
		Subtotal:        a.Subtotal,
		DiscountAmount:  a.DiscountAmount,
		TaxAmount:       a.TaxAmount,
		Total:           a.Total,
	}
}

func saleLineToResponse(item *model.SaleItem) dto.LineResponse {
	a := item.Amounts()
	name := ""
	if item.Product != nil {
		name = item.Product.Name
	}
	return dto.LineResponse{
		ID:              item.ID.String(),
		ProductID:       item.ProductID.String(),
		Product:         name,
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice,
		UnitCost:        item.UnitCost,
		DiscountType:    string(item.DiscountType),
		DiscountValue:   item.DiscountValue,
		TaxPercentage:   item.TaxPercentage,
		LineOrder:       item.LineOrder,
		Notes:           item.Notes,
		CalculationMode: string(item.CalculationMode),
		TargetTotal:     item.TargetTotal,
		Subtotal:        a.Subtotal,
		DiscountAmount:  a.DiscountAmount,
		TaxAmount:       a.TaxAmount,
		Total:           a.Total,
	}
}

func quoteToResponse(q *model.Quote) *dto.QuoteResponse {
	items := make([]dto.LineResponse, 0, len(q.Items))
	for i := range q.Items {
		items = append(items, quoteLineToResponse(&q.Items[i]))
	}
	customerID := ""
	if q.CustomerID != nil {
		customerID = q.CustomerID.String()
	}
	return &dto.QuoteResponse{
		ID:            q.ID.String(),
		Number:        q.Number,
		Date:          q.Date.Format(time.RFC3339),
		ValidUntil:    q.ValidUntil.Format(dateLayout),
		CustomerID:    customerID,
		Customer:      q.CustomerDisplay(),
		Status:        string(q.Status),
		Notes:         q.Notes,
		InternalNotes: q.InternalNotes,
		Items:         items,
		Subtotal:      q.CachedSubtotal,
		Discount:      q.CachedDiscount,
		Tax:           q.CachedTax,
		Total:         q.CachedTotal,
	}
}

func saleToResponse(s *model.Sale) *dto.SaleResponse {
	items := make([]dto.LineResponse, 0, len(s.Items))
	for i := range s.Items {
		items = append(items, saleLineToResponse(&s.Items[i]))
	}
	customerID := ""
	if s.CustomerID != nil {
		customerID = s.CustomerID.String()
	}
	quoteID := ""
	if s.QuoteID != nil {
		quoteID = s.QuoteID.String()
	}
	var confirmedAt, reservedAt, deliveryDate *string
	if s.ConfirmedAt != nil {
		v := s.ConfirmedAt.Format(time.RFC3339)
		confirmedAt = &v
	}
	if s.StockReservedAt != nil {
		v := s.StockReservedAt.Format(time.RFC3339)
		reservedAt = &v
	}
	if s.DeliveryDate != nil {
		v := s.DeliveryDate.Format(dateLayout)
		deliveryDate = &v
	}
	var resolution *string
	if s.ConflictResolution != nil {
		v := string(*s.ConflictResolution)
		resolution = &v
	}
	return &dto.SaleResponse{
		ID:                 s.ID.String(),
		Number:             s.Number,
		Date:               s.Date.Format(time.RFC3339),
		ConfirmedAt:        confirmedAt,
		CustomerID:         customerID,
		Customer:           s.CustomerDisplay(),
		QuoteID:            quoteID,
		Status:             string(s.Status),
		PaymentStatus:      string(s.PaymentStatus),
		FiscalStatus:       string(s.FiscalStatus),
		Notes:              s.Notes,
		InternalNotes:      s.InternalNotes,
		DeliveryAddress:    s.DeliveryAddress,
		DeliveryDate:       deliveryDate,
		StockReservedAt:    reservedAt,
		Items:              items,
		Subtotal:           s.CachedSubtotal,
		Discount:           s.CachedDiscount,
		Tax:                s.CachedTax,
		Total:              s.CachedTotal,
		SyncStatus:         string(s.SyncStatus),
		LocalID:            s.LocalID,
		Version:            s.Version,
		ConflictResolution: resolution,
	}
}
