package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/melafrancom/erp-bulonera/internal/model"
)

// Actor identifies the authenticated user a mutation is attributed to.
type Actor struct {
	ID       uuid.UUID
	Username string
}

// IllegalTransitionError names the current state and the operation it forbids.
// No partial state change is persisted when one is returned.
type IllegalTransitionError struct {
	Entity  string // "quote" | "sale"
	Current string
	Action  string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s en estado %q no permite la operación %q", e.Entity, e.Current, e.Action)
}

// NotConvertibleError is returned when a quote fails the convertibility guard:
// it must be accepted and not past its validity date.
type NotConvertibleError struct {
	Number     string
	Status     model.QuoteStatus
	ValidUntil time.Time
}

func (e *NotConvertibleError) Error() string {
	return fmt.Sprintf("presupuesto %s no puede convertirse: estado %q, válido hasta %s",
		e.Number, e.Status, e.ValidUntil.Format("2006-01-02"))
}

// NotInConflictError is returned when conflict resolution is requested on a
// sale whose sync status is not conflict.
type NotInConflictError struct {
	SaleID     uuid.UUID
	SyncStatus model.SyncStatus
}

func (e *NotInConflictError) Error() string {
	return fmt.Sprintf("venta %s no está en conflicto (sync_status %q)", e.SaleID, e.SyncStatus)
}

// ─── Transition tables ───────────────────────────────────────────────────────

// Quote actions. Conversion is not listed here: it runs through the
// conversion service, which additionally checks the validity date.
const (
	QuoteActionSend   = "send"
	QuoteActionAccept = "accept"
	QuoteActionReject = "reject"
	QuoteActionExpire = "expire"
	QuoteActionCancel = "cancel"
)

var quoteTransitions = map[string]struct {
	from []model.QuoteStatus
	to   model.QuoteStatus
}{
	QuoteActionSend:   {[]model.QuoteStatus{model.QuoteDraft}, model.QuoteSent},
	QuoteActionAccept: {[]model.QuoteStatus{model.QuoteSent}, model.QuoteAccepted},
	QuoteActionReject: {[]model.QuoteStatus{model.QuoteSent}, model.QuoteRejected},
	QuoteActionExpire: {[]model.QuoteStatus{model.QuoteSent}, model.QuoteExpired},
	QuoteActionCancel: {[]model.QuoteStatus{model.QuoteDraft, model.QuoteSent}, model.QuoteCancelled},
}

// NextQuoteStatus resolves an action against the quote transition table.
func NextQuoteStatus(current model.QuoteStatus, action string) (model.QuoteStatus, error) {
	t, ok := quoteTransitions[action]
	if !ok {
		return "", &IllegalTransitionError{Entity: "presupuesto", Current: string(current), Action: action}
	}
	for _, from := range t.from {
		if current == from {
			return t.to, nil
		}
	}
	return "", &IllegalTransitionError{Entity: "presupuesto", Current: string(current), Action: action}
}

// Sale actions.
const (
	SaleActionConfirm = "confirm"
	SaleActionPrepare = "prepare"
	SaleActionReady   = "ready"
	SaleActionDeliver = "deliver"
	SaleActionCancel  = "cancel"
)

var saleTransitions = map[string]struct {
	from []model.SaleStatus
	to   model.SaleStatus
}{
	SaleActionConfirm: {[]model.SaleStatus{model.SaleDraft}, model.SaleConfirmed},
	SaleActionPrepare: {[]model.SaleStatus{model.SaleConfirmed}, model.SaleInPreparation},
	SaleActionReady:   {[]model.SaleStatus{model.SaleInPreparation}, model.SaleReady},
	SaleActionDeliver: {[]model.SaleStatus{model.SaleReady}, model.SaleDelivered},
	SaleActionCancel: {[]model.SaleStatus{
		model.SaleDraft, model.SaleConfirmed, model.SaleInPreparation, model.SaleReady,
	}, model.SaleCancelled},
}

// NextSaleStatus resolves an action against the sale transition table.
func NextSaleStatus(current model.SaleStatus, action string) (model.SaleStatus, error) {
	t, ok := saleTransitions[action]
	if !ok {
		return "", &IllegalTransitionError{Entity: "venta", Current: string(current), Action: action}
	}
	for _, from := range t.from {
		if current == from {
			return t.to, nil
		}
	}
	return "", &IllegalTransitionError{Entity: "venta", Current: string(current), Action: action}
}
