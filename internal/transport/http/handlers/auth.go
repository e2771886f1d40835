package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/usecase"
)

// AuthHandler exposes OTP and password authentication endpoints.
type AuthHandler struct {
	auth   *usecase.AuthService
	otps   *usecase.OTPService
	orders *usecase.OrderService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, otps *usecase.OTPService, orders *usecase.OrderService) *AuthHandler {
	return &AuthHandler{auth: auth, otps: otps, orders: orders}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the OTP endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, otpMiddlewares ...gin.HandlerFunc) {
	sendChain := append([]gin.HandlerFunc{}, otpMiddlewares...)
	sendChain = append(sendChain, h.sendOTP)
	r.POST("/send-otp", sendChain...)

	verifyChain := append([]gin.HandlerFunc{}, otpMiddlewares...)
	verifyChain = append(verifyChain, h.verifyOTP)
	r.POST("/verify-otp", verifyChain...)

	r.POST("/login", h.login)
}

var sendOTPErrorCases = []ErrorCase{
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "no account exists for this email; sign up first"},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusForbidden, Message: "this account is disabled"},
	{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "an account already exists for this email; log in instead"},
	{Err: usecase.ErrOTPDeliveryFailed, Status: http.StatusBadGateway, Message: "we could not send the code; please try again"},
}

func (h *AuthHandler) sendOTP(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and type are required"))
		return
	}

	result, err := h.otps.Issue(c.Request.Context(), req.Email, domain.OTPType(req.Type), req.Name)
	if err != nil {
		RespondWithMappedError(c, err, sendOTPErrorCases, http.StatusInternalServerError, "failed to send verification code")
		return
	}

	c.JSON(http.StatusOK, SendOTPResponse{
		Message:   "verification code sent",
		ExpiresAt: result.ExpiresAt,
	})
}

var verifyOTPErrorCases = []ErrorCase{
	{Err: usecase.ErrOTPInvalid, Status: http.StatusBadRequest, Message: "the code is incorrect; check your inbox for the latest one"},
	{Err: usecase.ErrOTPExpired, Status: http.StatusBadRequest, Message: "this code has expired; request a new one"},
	{Err: usecase.ErrOTPAlreadyUsed, Status: http.StatusBadRequest, Message: "this code was already used; request a new one"},
	{Err: usecase.ErrOTPTooManyAttempts, Status: http.StatusTooManyRequests, Message: "too many attempts; request a new code"},
	{Err: usecase.ErrPasswordTooWeak, Status: http.StatusBadRequest, Message: "please choose a stronger password"},
	{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "an account already exists for this email; log in instead"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "no account exists for this email; sign up first"},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusForbidden, Message: "this account is disabled"},
}

func (h *AuthHandler) verifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email, otp, and type are required"))
		return
	}

	user, err := h.otps.Verify(c.Request.Context(), usecase.VerifyInput{
		Email:    req.Email,
		Code:     req.OTP,
		Type:     domain.OTPType(req.Type),
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		RespondWithMappedError(c, err, verifyOTPErrorCases, http.StatusInternalServerError, "verification failed")
		return
	}

	// A guest order placed before verification advances once the email is
	// proven, and only when the order was placed under that same email.
	if req.OrderID != "" {
		if err := h.orders.MarkEmailVerified(c.Request.Context(), req.OrderID, user.Email); err != nil &&
			!errors.Is(err, usecase.ErrOrderStateInvalid) && !errors.Is(err, usecase.ErrOrderNotFound) {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "verification failed"))
			return
		}
	}

	session, err := h.auth.SessionFor(*user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "verification failed"))
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

var loginErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusForbidden, Message: "this account is disabled"},
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

func newSessionResponse(session *usecase.Session) SessionResponse {
	return SessionResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(session.ExpiresAt).Seconds()),
		User:        newUserSummary(session.User),
	}
}
