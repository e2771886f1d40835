package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/infra/blob"
	"github.com/khushwant-singh1/bundle-market/internal/infra/config"
	"github.com/khushwant-singh1/bundle-market/internal/infra/database"
	kafkainfra "github.com/khushwant-singh1/bundle-market/internal/infra/kafka"
	"github.com/khushwant-singh1/bundle-market/internal/infra/logger"
	"github.com/khushwant-singh1/bundle-market/internal/infra/mail"
	redisinfra "github.com/khushwant-singh1/bundle-market/internal/infra/redis"
	"github.com/khushwant-singh1/bundle-market/internal/infra/security"
	postgresrepo "github.com/khushwant-singh1/bundle-market/internal/repository/postgres"
	redisrepo "github.com/khushwant-singh1/bundle-market/internal/repository/redis"
	"github.com/khushwant-singh1/bundle-market/internal/transport/http/middleware"
	"github.com/khushwant-singh1/bundle-market/internal/transport/http/routes"
	"github.com/khushwant-singh1/bundle-market/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	consumer *kafkainfra.FulfillmentConsumer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	kid := "dev"
	if kidProvider, ok := keyProvider.(interface{ SigningKID() string }); ok {
		kid = kidProvider.SigningKID()
	}
	jwtManager, err := security.NewJWTManager(keyProvider, kid, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init jwt manager: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "market:rate-limit",
		TTL:       rateLimitWindow * 2,
	})

	mailer := mail.NewLogMailer(cfg.Mail, log)
	blobs := blob.NewHMACPresigner(cfg.Blob, log)

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka disabled, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	passwordValidator := security.DefaultPasswordValidator()

	authService := usecase.NewAuthService(repos.Users, jwtManager, log)
	authService.WithSessionTTL(cfg.JWT.AccessTokenTTL)

	otpService := usecase.NewOTPService(repos.Users, repos.OTPs, mailer, passwordValidator, log)
	otpService.WithTTL(cfg.OTP.TTL)
	otpService.WithMaxAttempts(cfg.OTP.MaxAttempts)

	orderService := usecase.NewOrderService(repos.Orders, repos.Bundles, blobs, log)
	approvalService := usecase.NewApprovalService(repos.Orders, eventPublisher, log)

	tokenService := usecase.NewDownloadTokenService(repos.DownloadTokens, repos.Orders, jwtManager, log)
	tokenService.WithTTL(cfg.Download.TokenTTL)

	gateway := usecase.NewDownloadGateway(repos.Bundles, repos.Orders, repos.Downloads, tokenService, blobs, log)
	gateway.WithPresignTTL(cfg.Download.PresignTTL)

	fulfillmentService := usecase.NewFulfillmentService(repos.Orders, repos.Bundles, mailer, eventPublisher, cfg.App.BaseURL, log)

	var consumer *kafkainfra.FulfillmentConsumer
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		consumer, err = kafkainfra.NewFulfillmentConsumer(cfg.Kafka, fulfillmentService, log)
		if err != nil {
			log.Warn("failed to init fulfillment consumer, approvals will not auto-complete", zap.Error(err))
			consumer = nil
		}
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		RateLimitStore: rateLimitStore,
		Metrics:        metrics,
		Database:       pool,
		Cache:          redisClient,
		Services: routes.ServiceSet{
			Auth:      authService,
			OTPs:      otpService,
			Orders:    orderService,
			Approvals: approvalService,
			Tokens:    tokenService,
			Gateway:   gateway,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	consumerErrCh := make(chan error, 1)
	if a.consumer != nil {
		a.logger.Info("starting fulfillment consumer")
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				consumerErrCh <- fmt.Errorf("run fulfillment consumer: %w", err)
			}
		}()
		defer func() {
			_ = a.consumer.Close()
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting bundle market API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-consumerErrCh:
		return err
	}
}
