package dto

// Sync DTOs deliberately carry quantities and prices as strings: offline
// clients serialize decimals as text and the reconciler must classify parse
// failures as per-document errors, never as a rejected batch.

type SyncItem struct {
	ProductID     string `json:"product_id"`
	Quantity      string `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
	TaxPercentage string `json:"tax_percentage"`
	Notes         string `json:"notes"`
}

// SyncSale is one client-generated document inside an upload batch. Inner
// fields are validated by the reconciler document-by-document, not by
// validator tags — a malformed document must yield a per-document error
// result, not reject its siblings.
type SyncSale struct {
	LocalID    string     `json:"local_id"`
	CustomerID string     `json:"customer_id"`
	Version    int        `json:"version"`
	Status     string     `json:"status"`
	Notes      string     `json:"notes"`
	Items      []SyncItem `json:"items"`
	CreatedAt  string     `json:"created_at"`
}

type SyncUploadRequest struct {
	Sales []SyncSale `json:"sales" validate:"required,min=1"`
}

type ConflictInfo struct {
	ServerVersion int `json:"server_version"`
	ClientVersion int `json:"client_version"`
}

// SyncResult is the per-document outcome: success, conflict or error.
type SyncResult struct {
	LocalID      string        `json:"local_id"`
	Status       string        `json:"status"`
	SaleID       string        `json:"sale_id,omitempty"`
	SaleNumber   string        `json:"sale_number,omitempty"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`
	ConflictData *ConflictInfo `json:"conflict_data,omitempty"`
}

type SyncSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Conflicts  int `json:"conflicts"`
	Errors     int `json:"errors"`
}

type SyncUploadResponse struct {
	Results []SyncResult `json:"results"`
	Summary SyncSummary  `json:"summary"`
}

// ─── Conflict resolution ─────────────────────────────────────────────────────

// ClientSaleData is the allow-listed subset of editable fields a client may
// push onto the server record when resolution is client_wins.
type ClientSaleData struct {
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
	DeliveryAddress *string `json:"delivery_address"`
	DeliveryDate    *string `json:"delivery_date"`
}

type ResolveConflictRequest struct {
	SaleID     string          `json:"sale_id"    validate:"required,uuid"`
	Resolution string          `json:"resolution" validate:"required,oneof=server_wins client_wins manual"`
	ClientData *ClientSaleData `json:"client_data"`
}

// ─── Retry ───────────────────────────────────────────────────────────────────

type SyncRetryRequest struct {
	SaleIDs []string `json:"sale_ids" validate:"required,min=1,dive,uuid"`
}

type SyncRetryResult struct {
	SaleID     string `json:"sale_id"`
	SaleNumber string `json:"sale_number,omitempty"`
	Status     string `json:"status"` // queued | not_found
	Attempt    int    `json:"attempt,omitempty"`
}

type SyncRetryResponse struct {
	Processed int               `json:"processed"`
	Results   []SyncRetryResult `json:"results"`
}

// ─── Pending / status ────────────────────────────────────────────────────────

type SyncPendingResponse struct {
	Count   int            `json:"count"`
	Limit   int            `json:"limit"`
	Results []SaleResponse `json:"results"`
}

type SyncStatusResponse struct {
	SaleID             string  `json:"sale_id"`
	SaleNumber         string  `json:"sale_number"`
	LocalID            *string `json:"local_id"`
	SyncStatus         string  `json:"sync_status"`
	SyncSucceededAt    *string `json:"sync_succeeded_at"`
	SyncLastAttempt    *string `json:"sync_last_attempt"`
	SyncAttemptCount   int     `json:"sync_attempt_count"`
	Version            int     `json:"version"`
	ConflictResolution *string `json:"conflict_resolution"`
	Error              *string `json:"error"`
}
