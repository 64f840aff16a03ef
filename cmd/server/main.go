package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/jobmatch/credits/docs"
	"github.com/jobmatch/credits/internal/audit"
	"github.com/jobmatch/credits/internal/cache"
	"github.com/jobmatch/credits/internal/config"
	"github.com/jobmatch/credits/internal/database"
	"github.com/jobmatch/credits/internal/handlers"
	"github.com/jobmatch/credits/internal/logging"
	"github.com/jobmatch/credits/internal/metrics"
	mW "github.com/jobmatch/credits/internal/middleware"
	"github.com/jobmatch/credits/internal/services"
	"github.com/jobmatch/credits/internal/store"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Job Matching Credits API
// @version 1.0
// @description Credit balance, top-up and usage gating for the job matching app
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	configErr := loadConfig()

	logger, err := logging.New(viper.GetString("app.env"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if configErr != nil {
		logger.Info("Config file not found, using defaults and environment", zap.Error(configErr))
	}

	if err := run(logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func loadConfig() error {
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("app.env", "APP_ENV")
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("ledger.driver", "LEDGER_DRIVER")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("credits.currency", "CREDITS_CURRENCY")
	viper.BindEnv("credits.provider", "CREDITS_PROVIDER")
	viper.BindEnv("credits.intent_ttl", "CREDITS_INTENT_TTL")
	viper.BindEnv("credits.intent_retention", "CREDITS_INTENT_RETENTION")
	viper.BindEnv("credits.cache_ttl", "CREDITS_CACHE_TTL")
	viper.BindEnv("payment.webhook_secret", "PAYMENT_WEBHOOK_SECRET")
	viper.BindEnv("payment.settle_max_tries", "PAYMENT_SETTLE_MAX_TRIES")

	viper.SetDefault("app.env", "development")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("ledger.driver", "postgres")
	config.SetCreditDefaults()

	return viper.ReadInConfig()
}

func run(logger *zap.Logger) error {
	ctx := context.Background()

	creditConfig, err := config.LoadCreditConfig()
	if err != nil {
		return err
	}

	ledger, db, err := openLedger(ctx, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient := database.InitRedis(ctx, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	balanceCache, intentStore := openCaches(redisClient, creditConfig, logger)

	collector := metrics.NewCollector()
	auditLogger := audit.NewLogger(logger)

	intentService := services.NewPaymentIntentService(intentStore, creditConfig, logger, auditLogger)
	creditService := services.NewCreditService(ledger, balanceCache, intentService, logger, auditLogger, collector)
	usageGate := services.NewUsageGate(creditService, creditConfig.FeatureCosts, auditLogger, logger)

	creditHandler := handlers.NewCreditHandler(creditService, intentService, usageGate, logger)
	webhookHandler := handlers.NewPaymentWebhookHandler(creditService, creditConfig.WebhookSecret, creditConfig.SettleMaxTries, logger, auditLogger)
	if creditConfig.WebhookSecret == "" {
		logger.Warn("payment.webhook_secret is not set, provider webhooks will be rejected")
	}

	auth := mW.NewAuth(viper.GetString("jwt.secret_key"), redisClient, logger)

	docs.SwaggerInfo.Host = "localhost:" + viper.GetString("server.port")

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.SecurityHeaders)
	r.Use(collector.Middleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		services.SendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", collector.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Provider callbacks authenticate with a body signature
		r.Post("/webhooks/payments", webhookHandler.HandlePayment)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Get("/credits/balance", creditHandler.GetBalance)
			r.Get("/credits/history", creditHandler.GetHistory)
			r.Get("/credits/packages", creditHandler.ListPackages)
			r.Post("/credits/payment-intents", creditHandler.CreatePaymentIntent)
			r.Post("/credits/charge", creditHandler.Charge)
			r.Post("/credits/deduct", creditHandler.Deduct)
		})
	})

	port := viper.GetString("server.port")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info("Server shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// openLedger returns the configured ledger store. The returned *sql.DB is
// nil for the memory driver.
func openLedger(ctx context.Context, logger *zap.Logger) (store.LedgerStore, *sql.DB, error) {
	switch driver := viper.GetString("ledger.driver"); driver {
	case "memory":
		logger.Warn("Using in-memory ledger, balances are lost on restart")
		return store.NewMemoryStore(), nil, nil
	case "postgres":
		db, err := database.InitDB(ctx, database.GetConfig(), logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store.NewPostgresStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger.driver %q", driver)
	}
}

func openCaches(redisClient *redis.Client, cfg *config.CreditConfig, logger *zap.Logger) (cache.BalanceCache, cache.IntentStore) {
	if redisClient == nil {
		logger.Warn("Using in-process balance cache and intent store")
		return cache.NewMemoryBalanceCache(cfg.CacheTTL), cache.NewMemoryIntentStore(cfg.IntentRetention)
	}
	return cache.NewRedisBalanceCache(redisClient, cfg.CacheTTL), cache.NewRedisIntentStore(redisClient, cfg.IntentRetention)
}
