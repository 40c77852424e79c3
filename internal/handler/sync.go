package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/melafrancom/erp-bulonera/internal/dto"
	"github.com/melafrancom/erp-bulonera/internal/service"
)

type SyncHandler struct{ svc service.SyncService }

func NewSyncHandler(svc service.SyncService) *SyncHandler { return &SyncHandler{svc: svc} }

// Upload godoc
// @Summary      Sincronizar ventas offline
// @Description  Reconcilia un lote de ventas creadas offline. Cada documento se procesa de forma independiente: un documento inválido o en conflicto nunca rechaza al resto del lote.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.SyncUploadRequest true "Lote de ventas offline"
// @Success      200  {object} dto.SyncUploadResponse
// @Failure      400  {object} apierror.APIError
// @Failure      429  {object} apierror.APIError
// @Router       /v1/sync/upload [post]
func (h *SyncHandler) Upload(c *gin.Context) {
	var req dto.SyncUploadRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Upload(c.Request.Context(), actorFromClaims(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Resolve godoc
// @Summary      Resolver conflicto de sincronización
// @Description  Cierra un conflicto de versiones con server_wins, client_wins o manual.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.ResolveConflictRequest true "Resolución"
// @Success      200  {object} dto.SaleResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/sync/resolve [post]
func (h *SyncHandler) Resolve(c *gin.Context) {
	var req dto.ResolveConflictRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ResolveConflict(c.Request.Context(), actorFromClaims(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Retry godoc
// @Summary      Reintentar sincronización
// @Description  Re-encola ventas propias en estado pending o error.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.SyncRetryRequest true "IDs de ventas"
// @Success      200  {object} dto.SyncRetryResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/sync/retry [post]
func (h *SyncHandler) Retry(c *gin.Context) {
	var req dto.SyncRetryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Retry(c.Request.Context(), actorFromClaims(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Pending godoc
// @Summary      Ventas pendientes de sincronización
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Máximo de resultados (default 50, tope 200)"
// @Success      200   {object} dto.SyncPendingResponse
// @Router       /v1/sync/pending [get]
func (h *SyncHandler) Pending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	resp, err := h.svc.Pending(c.Request.Context(), actorFromClaims(c), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status godoc
// @Summary      Estado de sincronización de una venta
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        sale_id path string true "UUID de la venta"
// @Success      200     {object} dto.SyncStatusResponse
// @Failure      404     {object} apierror.APIError
// @Router       /v1/sync/status/{sale_id} [get]
func (h *SyncHandler) Status(c *gin.Context) {
	saleID, ok := parseUUIDParam(c, "sale_id")
	if !ok {
		return
	}
	resp, err := h.svc.Status(c.Request.Context(), actorFromClaims(c), saleID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
