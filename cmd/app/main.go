package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glxy/internal/ai"
	"glxy/internal/config"
	"glxy/internal/db"
	httpServer "glxy/internal/http"
	"glxy/internal/http/handlers"
	"glxy/internal/http/middleware"
	"glxy/internal/logger"
	"glxy/internal/payments"
	"glxy/internal/realtime"
	"glxy/internal/repository"
	"glxy/internal/repository/memory"
	"glxy/internal/repository/postgres"
	"glxy/internal/retry"
	"glxy/internal/service"
	"glxy/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := retry.Policy{MaxAttempts: cfg.StoreRetries, BaseDelay: cfg.StoreRetryBackoff}

	// Store
	var store repository.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.New()
	default:
		if cfg.AutoMigrate {
			m, err := db.NewMigrator(cfg.DatabaseURL, log.With("component", "migrate"))
			if err != nil {
				logger.Fatal("migrator setup failed", "error", err)
			}
			if err := m.Up(ctx); err != nil {
				logger.Fatal("migrations failed", "error", err)
			}
		}
		pool, err := db.Connect(ctx, cfg.DatabaseURL, policy)
		if err != nil {
			logger.Fatal("database unavailable", "error", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}

	// Redis is optional: rate limits, fan-out and revocations fall back to
	// in-process versions without it
	redisClient := connectRedis(cfg)
	var (
		broker      realtime.Broker = realtime.NewMemoryBroker()
		revocations service.RevocationStore
		redisPinger handlers.Pinger
	)
	if redisClient != nil {
		defer redisClient.Close()
		broker = realtime.NewRedisBroker(redisClient, log)
		revocations = service.NewRedisRevocations(redisClient, log)
		redisPinger = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	defer broker.Close()

	billing, err := service.ParseBillingPolicy(cfg.BillingPolicy)
	if err != nil {
		logger.Fatal("invalid BILLING_POLICY", "error", err)
	}

	objects, err := storage.NewFileStore(cfg.MediaDir, cfg.MediaBaseURL, cfg.MaxUploadBytes)
	if err != nil {
		logger.Fatal("media store unavailable", "error", err)
	}
	stylist := ai.NewOpenAIAdapter(ai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		VisionModel: cfg.VisionModel,
		TextModel:   cfg.TextModel,
		Timeout:     cfg.AITimeout,
	}, log)

	// Services
	audit := service.NewAuditService(store)
	ledger := service.NewLedger(store, policy, broker, log)
	profiles := service.NewProfileService(store, broker, policy, cfg.InitialStardust, log)
	planets := service.NewPlanetGateway(ledger, store, audit, billing, log)
	paymentSvc := service.NewPaymentService(ledger,
		payments.NewVerifier(cfg.StripeWebhookSecret),
		payments.NewCheckout(cfg.StripeSecretKey, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, nil),
		audit,
		service.PaymentConfig{StardustPerUSD: cfg.StardustPerUSD, MinUSD: cfg.MinPurchaseUSD, MaxUSD: cfg.MaxPurchaseUSD},
		log)
	wardrobe := service.NewWardrobeService(planets, store, objects, stylist, log)
	reconciler := service.NewReconciler(store, audit, broker, log)
	admin := service.NewAdminService(store, ledger, audit, reconciler)

	var identity *service.IdentityVerifier
	if cfg.IdentitySecret != "" {
		identity = service.NewIdentityVerifier(cfg.IdentitySecret, cfg.IdentityIssuer)
	}

	scheduler := startReconcileSchedule(cfg, reconciler)

	// HTTP
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(middleware.CORS(cfg.AllowedOrigin))

	h := handlers.NewHandler(handlers.Handler{
		Profiles:       profiles,
		Ledger:         ledger,
		Planets:        planets,
		Payments:       paymentSvc,
		Wardrobe:       wardrobe,
		Admin:          admin,
		Audit:          audit,
		Sessions:       service.NewSessionManager(cfg.JWTSecret, cfg.SessionTTL, revocations),
		Identity:       identity,
		DevMode:        cfg.DevMode,
		AllowedOrigin:  cfg.AllowedOrigin,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, log)

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler: h,
		Health:  handlers.NewHealthHandler(store, redisPinger, cfg.Version),
		Limiter: middleware.NewRateLimiter(redisClient, log),
		IsAdmin: cfg.IsAdmin,
		Limits: httpServer.Limits{
			API:         cfg.APIRateLimit,
			APIWindow:   cfg.APIRateWindow,
			Auth:        cfg.AuthRateLimit,
			AuthWindow:  cfg.AuthRateWindow,
			Spend:       cfg.SpendRateLimit,
			SpendWindow: cfg.SpendRateWindow,
		},
		MediaDir: objects.Dir(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.StoreDriver, "billing_policy", billing)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

// connectRedis returns nil when Redis is not configured or not reachable
func connectRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, continuing without it", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return client
}

func startReconcileSchedule(cfg *config.Config, reconciler *service.Reconciler) *cron.Cron {
	if cfg.ReconcileSchedule == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(cfg.ReconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := reconciler.Run(ctx, cfg.ReconcileRepair); err != nil {
			logger.Error("scheduled reconciliation failed", "error", err)
		}
	})
	if err != nil {
		logger.Fatal("invalid RECONCILE_SCHEDULE", "schedule", cfg.ReconcileSchedule, "error", err)
	}
	c.Start()
	logger.Info("reconciliation scheduled", "schedule", cfg.ReconcileSchedule, "repair", cfg.ReconcileRepair)
	return c
}
