package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/infra/config"
	"github.com/khushwant-singh1/bundle-market/internal/transport/http/handlers"
	"github.com/khushwant-singh1/bundle-market/internal/transport/http/middleware"
	"github.com/khushwant-singh1/bundle-market/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth      *usecase.AuthService
	OTPs      *usecase.OTPService
	Orders    *usecase.OrderService
	Approvals *usecase.ApprovalService
	Tokens    *usecase.DownloadTokenService
	Gateway   *usecase.DownloadGateway
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	Services       ServiceSet
	RateLimitStore port.RateLimitStore
	Metrics        *middleware.HTTPMetrics
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	requireAuth := middleware.RequireAuth(deps.Services.Auth)
	optionalAuth := middleware.OptionalAuth(deps.Services.Auth)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.OTPs, deps.Services.Orders)
		authHandler.RegisterRoutes(authGroup, buildOTPMiddlewares(deps)...)

		orderGroup := api.Group("/orders")
		orderHandler := handlers.NewOrderHandler(deps.Services.Orders)
		orderHandler.RegisterRoutes(orderGroup, optionalAuth)

		adminGroup := api.Group("/admin")
		adminGroup.Use(requireAuth, middleware.RequireAdmin())
		adminHandler := handlers.NewAdminOrderHandler(deps.Services.Approvals)
		adminHandler.RegisterRoutes(adminGroup)

		downloadGroup := api.Group("/download")
		downloadHandler := handlers.NewDownloadHandler(deps.Services.Tokens, deps.Services.Gateway, deps.Metrics)
		downloadHandler.RegisterRoutes(downloadGroup, requireAuth, buildDownloadMiddlewares(deps)...)
	}

	return r
}

func buildOTPMiddlewares(deps Dependencies) []gin.HandlerFunc {
	limiter := buildLimiter(deps, "send-otp", deps.Config.RateLimit.SendOTPMaxAttempts)
	if limiter == nil {
		return nil
	}
	return []gin.HandlerFunc{middleware.RateLimit(limiter, deps.Logger)}
}

func buildDownloadMiddlewares(deps Dependencies) []gin.HandlerFunc {
	limiter := buildLimiter(deps, "download", deps.Config.RateLimit.DownloadMaxAttempts)
	if limiter == nil {
		return nil
	}
	return []gin.HandlerFunc{middleware.RateLimit(limiter, deps.Logger)}
}

func buildLimiter(deps Dependencies, scope string, limit int) *usecase.RateLimiter {
	if deps.RateLimitStore == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return usecase.NewRateLimiter(deps.RateLimitStore, scope, limit, window, deps.Logger)
}
