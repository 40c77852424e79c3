package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/melafrancom/erp-bulonera/internal/dto"
	"github.com/melafrancom/erp-bulonera/internal/service"
)

type QuotesHandler struct {
	svc        service.QuoteService
	conversion service.ConversionService
}

func NewQuotesHandler(svc service.QuoteService, conversion service.ConversionService) *QuotesHandler {
	return &QuotesHandler{svc: svc, conversion: conversion}
}

// Create godoc
// @Summary      Crear presupuesto
// @Description  Crea un presupuesto en borrador con sus líneas y totales calculados.
// @Tags         presupuestos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateQuoteRequest true "Detalle del presupuesto"
// @Success      201  {object} dto.QuoteResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/presupuestos [post]
func (h *QuotesHandler) Create(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), actorFromClaims(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get godoc
// @Summary      Obtener presupuesto
// @Tags         presupuestos
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del presupuesto"
// @Success      200 {object} dto.QuoteResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/presupuestos/{id} [get]
func (h *QuotesHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddItem godoc
// @Summary      Agregar línea
// @Description  Agrega una línea al presupuesto y recalcula los totales en la misma transacción.
// @Tags         presupuestos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string        true "UUID del presupuesto"
// @Param        body body dto.LineRequest true "Línea"
// @Success      200  {object} dto.QuoteResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/presupuestos/{id}/items [post]
func (h *QuotesHandler) AddItem(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.LineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddLine(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateItem godoc
// @Summary      Modificar línea
// @Tags         presupuestos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string        true "UUID del presupuesto"
// @Param        item_id path string        true "UUID de la línea"
// @Param        body    body dto.LineRequest true "Línea"
// @Success      200     {object} dto.QuoteResponse
// @Failure      409     {object} apierror.APIError
// @Router       /v1/presupuestos/{id}/items/{item_id} [put]
func (h *QuotesHandler) UpdateItem(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseUUIDParam(c, "item_id")
	if !ok {
		return
	}
	var req dto.LineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateLine(c.Request.Context(), id, itemID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveItem godoc
// @Summary      Eliminar línea
// @Tags         presupuestos
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string true "UUID del presupuesto"
// @Param        item_id path string true "UUID de la línea"
// @Success      200     {object} dto.QuoteResponse
// @Failure      409     {object} apierror.APIError
// @Router       /v1/presupuestos/{id}/items/{item_id} [delete]
func (h *QuotesHandler) RemoveItem(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseUUIDParam(c, "item_id")
	if !ok {
		return
	}
	resp, err := h.svc.RemoveLine(c.Request.Context(), id, itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Transition godoc
// @Summary      Transicionar presupuesto
// @Description  Ejecuta una acción del ciclo de vida: send, accept, reject, expire, cancel.
// @Tags         presupuestos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                true "UUID del presupuesto"
// @Param        body body dto.TransitionRequest true "Acción"
// @Success      200  {object} dto.QuoteResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/presupuestos/{id}/transition [post]
func (h *QuotesHandler) Transition(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Transition(c.Request.Context(), id, actorFromClaims(c), req.Action, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Convert godoc
// @Summary      Convertir presupuesto en venta
// @Description  Convierte un presupuesto aceptado y vigente en una venta borrador, con registro de auditoría.
// @Tags         presupuestos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string             true "UUID del presupuesto"
// @Param        body body dto.ConvertRequest false "Modificaciones de precio"
// @Success      201  {object} dto.SaleResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/presupuestos/{id}/convert [post]
func (h *QuotesHandler) Convert(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.ConvertRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.conversion.Convert(c.Request.Context(), id, actorFromClaims(c), req.Modifications)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Conversion godoc
// @Summary      Registro de conversión
// @Description  Retorna el registro inmutable de auditoría de la conversión del presupuesto.
// @Tags         presupuestos
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del presupuesto"
// @Success      200 {object} dto.ConversionResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/presupuestos/{id}/conversion [get]
func (h *QuotesHandler) Conversion(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.conversion.Record(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete godoc
// @Summary      Eliminar presupuesto
// @Description  Baja lógica, solo en borrador.
// @Tags         presupuestos
// @Security     BearerAuth
// @Param        id path string true "UUID del presupuesto"
// @Success      204
// @Failure      409 {object} apierror.APIError
// @Router       /v1/presupuestos/{id} [delete]
func (h *QuotesHandler) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
