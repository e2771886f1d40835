package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khushwant-singh1/bundle-market/internal/transport/http/middleware"
	"github.com/khushwant-singh1/bundle-market/internal/usecase"
)

// DownloadHandler exposes token issuance and the secure download gateway.
type DownloadHandler struct {
	tokens  *usecase.DownloadTokenService
	gateway *usecase.DownloadGateway
	metrics *middleware.HTTPMetrics
}

// NewDownloadHandler constructs DownloadHandler.
func NewDownloadHandler(tokens *usecase.DownloadTokenService, gateway *usecase.DownloadGateway, metrics *middleware.HTTPMetrics) *DownloadHandler {
	return &DownloadHandler{tokens: tokens, gateway: gateway, metrics: metrics}
}

// RegisterRoutes binds download routes. The token mint requires an
// authenticated session; the secure gateway authenticates via credentials in
// the request itself.
func (h *DownloadHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, gatewayMiddlewares ...gin.HandlerFunc) {
	r.POST("/token/:bundleId", requireAuth, h.issueToken)

	resolveChain := append([]gin.HandlerFunc{}, gatewayMiddlewares...)
	resolveChain = append(resolveChain, h.resolve)
	r.GET("/secure/:bundleId", resolveChain...)
}

var issueTokenErrorCases = []ErrorCase{
	{Err: usecase.ErrBundleAccessDenied, Status: http.StatusForbidden, Message: "user does not have access to this bundle"},
}

func (h *DownloadHandler) issueToken(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "order_id is required"))
		return
	}

	token, err := h.tokens.Issue(c.Request.Context(), usecase.IssueInput{
		UserID:    user.ID,
		BundleID:  c.Param("bundleId"),
		OrderID:   req.OrderID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		RespondWithMappedError(c, err, issueTokenErrorCases, http.StatusInternalServerError, "failed to issue download token")
		return
	}

	c.JSON(http.StatusOK, DownloadTokenResponse{
		Token:     token.Token,
		BundleID:  token.BundleID,
		ExpiresAt: token.ExpiresAt,
	})
}

var resolveErrorCases = []ErrorCase{
	{Err: usecase.ErrBundleNotFound, Status: http.StatusNotFound, Message: "bundle not found"},
	{Err: usecase.ErrDownloadUnauthorized, Status: http.StatusUnauthorized, Message: "download token invalid or expired"},
	{Err: usecase.ErrBundleMismatch, Status: http.StatusForbidden, Message: "this token was issued for a different bundle"},
	{Err: usecase.ErrBundleAccessDenied, Status: http.StatusForbidden, Message: "this order does not include the requested bundle"},
}

func (h *DownloadHandler) resolve(c *gin.Context) {
	bundleID := c.Param("bundleId")

	creds := usecase.DownloadCredentials{
		Token:     c.Query("token"),
		OrderID:   c.Query("orderId"),
		Email:     c.Query("email"),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	path := "legacy"
	if creds.Token != "" {
		path = "token"
	}

	grant, err := h.gateway.Resolve(c.Request.Context(), bundleID, creds)
	if err != nil {
		h.metrics.ObserveDownload(path, "denied")

		var notReady *usecase.OrderNotReadyError
		if errors.As(err, &notReady) {
			c.JSON(http.StatusForbidden, OrderStatusGuidance{
				Status:   string(notReady.Status),
				Guidance: notReady.Guidance,
				TraceID:  middleware.GetTraceID(c),
			})
			return
		}

		RespondWithMappedError(c, err, resolveErrorCases, http.StatusInternalServerError, "failed to resolve download")
		return
	}

	h.metrics.ObserveDownload(path, "granted")

	c.JSON(http.StatusOK, DownloadGrantResponse{
		DownloadURL: grant.URL,
		ExpiresIn:   int(grant.ExpiresIn.Seconds()),
		BundleName:  grant.Bundle.Name,
	})
}
