package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name,omitempty"`
	Role  domain.Role `json:"role"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}

// SendOTPRequest defines the payload for issuing a verification code.
type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Type  string `json:"type" binding:"required,oneof=LOGIN SIGNUP"`
	Name  string `json:"name"`
}

// SendOTPResponse confirms issuance without echoing the code.
type SendOTPResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyOTPRequest defines the payload for redeeming a verification code.
type VerifyOTPRequest struct {
	Email    string `json:"email" binding:"required,email"`
	OTP      string `json:"otp" binding:"required"`
	Type     string `json:"type" binding:"required,oneof=LOGIN SIGNUP"`
	Name     string `json:"name"`
	Password string `json:"password"`
	OrderID  string `json:"order_id"`
}

// LoginRequest defines the payload for password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse describes a successful authentication.
type SessionResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserSummary `json:"user"`
}

// CheckoutItemRequest is one requested bundle line.
type CheckoutItemRequest struct {
	BundleID string `json:"bundle_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

// CheckoutRequest defines the payload to create an order.
type CheckoutRequest struct {
	Email        string                `json:"email"`
	CustomerName string                `json:"customer_name"`
	Items        []CheckoutItemRequest `json:"items" binding:"required,min=1"`
}

// OrderItemView is one order line in API responses.
type OrderItemView struct {
	BundleID       string `json:"bundle_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// OrderResponse is the API view of an order.
type OrderResponse struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	CustomerName string          `json:"customer_name,omitempty"`
	Status       string          `json:"status"`
	Items        []OrderItemView `json:"items"`
	TotalCents   int64           `json:"total_cents"`
	AdminNotes   *string         `json:"admin_notes,omitempty"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newOrderResponse(order domain.Order) OrderResponse {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			BundleID:       item.BundleID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	return OrderResponse{
		ID:           order.ID,
		Email:        order.Email,
		CustomerName: order.CustomerName,
		Status:       string(order.Status),
		Items:        items,
		TotalCents:   order.TotalCents(),
		AdminNotes:   order.AdminNotes,
		ApprovedAt:   order.ApprovedAt,
		CreatedAt:    order.CreatedAt,
	}
}

// ApproveOrderRequest defines the optional approval payload.
type ApproveOrderRequest struct {
	Notes string `json:"notes"`
}

// RejectOrderRequest defines the rejection payload; the reason is mandatory.
type RejectOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// IssueTokenRequest names the authorizing order for a download token.
type IssueTokenRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// DownloadTokenResponse returns the capability token and its expiry.
type DownloadTokenResponse struct {
	Token     string    `json:"token"`
	BundleID  string    `json:"bundle_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DownloadGrantResponse returns the minted retrieval URL.
type DownloadGrantResponse struct {
	DownloadURL string `json:"download_url"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	BundleName  string `json:"bundle_name"`
}

// OrderStatusGuidance explains why a legacy download was refused and what the
// buyer should do next.
type OrderStatusGuidance struct {
	Status   string `json:"status"`
	Guidance string `json:"guidance"`
	TraceID  string `json:"trace_id,omitempty"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
