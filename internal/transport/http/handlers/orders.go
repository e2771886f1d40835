package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khushwant-singh1/bundle-market/internal/transport/http/middleware"
	"github.com/khushwant-singh1/bundle-market/internal/usecase"
)

const maxPaymentProofBytes = 10 << 20

// OrderHandler exposes buyer-side order endpoints.
type OrderHandler struct {
	orders *usecase.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *usecase.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes binds order routes. optionalAuth, when present, populates
// the user context without requiring it, so both guests and accounts can
// check out.
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup, optionalAuth ...gin.HandlerFunc) {
	checkoutChain := append([]gin.HandlerFunc{}, optionalAuth...)
	checkoutChain = append(checkoutChain, h.checkout)
	r.POST("/checkout", checkoutChain...)

	r.POST("/:orderId/payment-proof", h.uploadPaymentProof)
	r.GET("/:orderId", h.getOrder)
}

var checkoutErrorCases = []ErrorCase{
	{Err: usecase.ErrBundleNotFound, Status: http.StatusNotFound, Message: "one of the requested bundles does not exist"},
	{Err: usecase.ErrBundleUnavailable, Status: http.StatusConflict, Message: "one of the requested bundles is no longer available"},
}

func (h *OrderHandler) checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "at least one item is required"))
		return
	}

	user := middleware.CurrentUser(c)
	if user == nil && req.Email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required for guest checkout"))
		return
	}

	items := make([]usecase.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, usecase.CheckoutItem{BundleID: item.BundleID, Quantity: item.Quantity})
	}

	order, err := h.orders.Checkout(c.Request.Context(), usecase.CheckoutInput{
		User:         user,
		Email:        req.Email,
		CustomerName: req.CustomerName,
		Items:        items,
	})
	if err != nil {
		RespondWithMappedError(c, err, checkoutErrorCases, http.StatusInternalServerError, "failed to create order")
		return
	}

	c.JSON(http.StatusCreated, newOrderResponse(*order))
}

var paymentProofErrorCases = []ErrorCase{
	{Err: usecase.ErrOrderNotFound, Status: http.StatusNotFound, Message: "no order matches this id and email"},
	{Err: usecase.ErrOrderStateInvalid, Status: http.StatusConflict, Message: "this order is not accepting a payment proof right now"},
}

func (h *OrderHandler) uploadPaymentProof(c *gin.Context) {
	orderID := c.Param("orderId")
	email := c.Query("email")
	if email == "" {
		email = c.PostForm("email")
	}
	if email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	file, header, err := c.Request.FormFile("screenshot")
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "a screenshot file is required"))
		return
	}
	defer file.Close()

	if header.Size > maxPaymentProofBytes {
		c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse(c, "screenshot exceeds the 10MB limit"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxPaymentProofBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "failed to read screenshot"))
		return
	}
	if len(data) > maxPaymentProofBytes {
		c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse(c, "screenshot exceeds the 10MB limit"))
		return
	}

	contentType := header.Header.Get("Content-Type")

	order, err := h.orders.AttachPaymentProof(c.Request.Context(), orderID, email, data, contentType)
	if err != nil {
		RespondWithMappedError(c, err, paymentProofErrorCases, http.StatusInternalServerError, "failed to upload payment proof")
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(*order))
}

func (h *OrderHandler) getOrder(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	order, err := h.orders.GetForEmail(c.Request.Context(), c.Param("orderId"), email)
	if err != nil {
		RespondWithMappedError(c, err, paymentProofErrorCases, http.StatusInternalServerError, "failed to load order")
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(*order))
}
