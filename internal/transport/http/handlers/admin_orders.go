package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khushwant-singh1/bundle-market/internal/transport/http/middleware"
	"github.com/khushwant-singh1/bundle-market/internal/usecase"
)

// AdminOrderHandler exposes the admin review endpoints. Routes must be
// mounted behind RequireAuth and RequireAdmin.
type AdminOrderHandler struct {
	approvals *usecase.ApprovalService
}

// NewAdminOrderHandler constructs AdminOrderHandler.
func NewAdminOrderHandler(approvals *usecase.ApprovalService) *AdminOrderHandler {
	return &AdminOrderHandler{approvals: approvals}
}

// RegisterRoutes binds the admin review routes.
func (h *AdminOrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders/:orderId/approve", h.approve)
	r.POST("/orders/:orderId/reject", h.reject)
}

var approveErrorCases = []ErrorCase{
	{Err: usecase.ErrOrderNotFound, Status: http.StatusNotFound, Message: "order not found"},
	{Err: usecase.ErrOrderNotApprovable, Status: http.StatusConflict, Message: "only orders with an uploaded payment can be approved"},
	{Err: usecase.ErrAdminRequired, Status: http.StatusForbidden, Message: "admin role required"},
}

func (h *AdminOrderHandler) approve(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	if admin == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ApproveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}

	order, err := h.approvals.Approve(c.Request.Context(), *admin, c.Param("orderId"), req.Notes)
	if err != nil {
		RespondWithMappedError(c, err, approveErrorCases, http.StatusInternalServerError, "failed to approve order")
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(*order))
}

var rejectErrorCases = []ErrorCase{
	{Err: usecase.ErrOrderNotFound, Status: http.StatusNotFound, Message: "order not found"},
	{Err: usecase.ErrOrderNotRejectable, Status: http.StatusConflict, Message: "only orders with an uploaded payment can be rejected"},
	{Err: usecase.ErrRejectReasonRequired, Status: http.StatusBadRequest, Message: "a rejection reason is required"},
	{Err: usecase.ErrAdminRequired, Status: http.StatusForbidden, Message: "admin role required"},
}

func (h *AdminOrderHandler) reject(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	if admin == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req RejectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "a rejection reason is required"))
		return
	}

	order, err := h.approvals.Reject(c.Request.Context(), *admin, c.Param("orderId"), req.Reason)
	if err != nil {
		RespondWithMappedError(c, err, rejectErrorCases, http.StatusInternalServerError, "failed to reject order")
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(*order))
}
