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

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.GET("", middleware.RequireRole(model.AllRoles...), h.ListRequests)
		requests.POST("", middleware.RequireRole(model.RoleStaff), h.CreateRequest)
		requests.GET("/:id", middleware.RequireRole(model.AllRoles...), h.GetRequest)
		requests.PUT("/:id", middleware.RequireRole(model.RoleStaff), h.UpdateRequest)
		requests.PATCH("/:id/approve", middleware.RequireRole(model.RoleApproverLevel1, model.RoleApproverLevel2), h.ApproveRequest)
		requests.PATCH("/:id/reject", middleware.RequireRole(model.RoleApproverLevel1, model.RoleApproverLevel2), h.RejectRequest)
		requests.GET("/:id/history", middleware.RequireRole(model.AllRoles...), h.RequestHistory)
	}
}

// ListRequests returns the purchase requests visible to the caller,
// optionally filtered by status. Visibility depends on role: staff see
// their own requests, approvers see pending work plus their own
// decisions, finance sees approved requests.
func (h *RequestHandler) ListRequests(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	filter := service.RequestFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	items, total, err := h.requestService.List(c.Request.Context(), actor, filter)
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

// CreateRequest creates a new pending purchase request for the caller
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, response.CodeValidation, err.Error()))
		return
	}

	result, err := h.requestService.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// GetRequest returns a single purchase request if visible to the caller
func (h *RequestHandler) GetRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := h.requestService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UpdateRequest replaces the editable fields of a pending request.
// Only the creator may edit, and only while the request is pending.
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, response.CodeValidation, err.Error()))
		return
	}

	result, err := h.requestService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ApproveRequest records an approval at the caller's level. Requests at
// or above the level-2 threshold stay pending after the first approval
// until a level-2 approver signs off.
func (h *RequestHandler) ApproveRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := h.requestService.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

type rejectRequestDTO struct {
	Reason string `json:"reason"`
}

// RejectRequest rejects a pending request with a mandatory reason
func (h *RequestHandler) RejectRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req rejectRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, response.CodeValidation, err.Error()))
		return
	}

	result, err := h.requestService.Reject(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RequestHistory returns the decision trail for a request
func (h *RequestHandler) RequestHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	entries, err := h.requestService.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}
