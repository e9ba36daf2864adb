package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type DocumentHandler struct {
	documentService service.DocumentService
}

func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.POST("/proformas", middleware.RequireRole(model.RoleStaff, model.RoleFinance), h.UploadProforma)
		api.POST("/receipts", middleware.RequireRole(model.RoleStaff, model.RoleFinance), h.UploadReceipt)
		api.POST("/receipts/:id/validate", middleware.RequireRole(model.AllRoles...), h.ValidateReceipt)
		api.GET("/purchase-orders", middleware.RequireRole(model.AllRoles...), h.ListPurchaseOrders)
		api.GET("/purchase-orders/:id", middleware.RequireRole(model.AllRoles...), h.GetPurchaseOrder)
	}
}

// UploadProforma attaches a proforma invoice to a pending request.
// Re-uploading replaces the previous proforma.
func (h *DocumentHandler) UploadProforma(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	requestID := c.PostForm("request")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, response.CodeValidation, "request field is required"))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, response.CodeValidation, "file field is required"))
		return
	}

	result, err := h.documentService.UploadProforma(c.Request.Context(), actor, requestID, fh)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// UploadReceipt attaches a receipt to an approved request. Receipts
// accumulate; uploading never replaces an earlier receipt.
func (h *DocumentHandler) UploadReceipt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	requestID := c.PostForm("request")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, response.CodeValidation, "request field is required"))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, response.CodeValidation, "file field is required"))
		return
	}

	result, err := h.documentService.UploadReceipt(c.Request.Context(), actor, requestID, fh)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ValidateReceipt reconciles a pending receipt against the purchase
// order and records the terminal outcome
func (h *DocumentHandler) ValidateReceipt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := h.documentService.ValidateReceipt(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListPurchaseOrders returns generated purchase orders visible to the caller
func (h *DocumentHandler) ListPurchaseOrders(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	items, total, err := h.documentService.ListPurchaseOrders(c.Request.Context(), actor, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.Paged{
		Items: items,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}))
}

// GetPurchaseOrder returns a single purchase order if visible to the caller
func (h *DocumentHandler) GetPurchaseOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := h.documentService.GetPurchaseOrder(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
