package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/restory/server/internal"
	"github.com/restory/server/internal/auth"
	"github.com/restory/server/internal/billing"
	"github.com/restory/server/internal/cart"
	"github.com/restory/server/internal/handler/api"
	"github.com/restory/server/internal/handler/webhook"
	"github.com/restory/server/internal/middleware"
	"github.com/restory/server/internal/postgres"
	"github.com/restory/server/internal/router"
	"github.com/restory/server/internal/routes"
	"github.com/restory/server/internal/service"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Run migrations through database/sql, then hand the pool to the app
	logger.Info("Running database migrations...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := internal.RunMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	sqlDB.Close()
	logger.Info("Database migrations completed")

	// Initialize pgx connection pool for the application
	pool, err := postgres.Connect(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()
	logger.Info("Database connection established")

	// Initialize services
	bookService := postgres.NewBookService(pool)
	userService := postgres.NewUserService(pool)
	profileService := postgres.NewProfileService(pool)
	orderService := postgres.NewOrderService(pool)

	cartStore := postgres.NewCartStore(pool, logger)
	cartManager := cart.NewManager(cartStore, logger)

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	// Initialize Stripe billing provider
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Initialize checkout service
	checkoutService := service.NewCheckoutService(
		cartManager,
		bookService,
		orderService,
		billingProvider,
		service.CheckoutConfig{
			Currency:       cfg.Currency,
			SuccessURL:     cfg.ClientURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:      cfg.ClientURL + "/checkout/cancel",
			RequestTimeout: cfg.Checkout.RequestTimeout,
			AttemptTTL:     cfg.Checkout.AttemptTTL,
		},
		logger,
	)

	// Sweep abandoned checkout attempts in the background
	go checkoutService.RunExpiry(ctx, time.Minute)

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	apiDeps := routes.APIDeps{
		BookHandler:     api.NewBookHandler(bookService, logger),
		AuthHandler:     api.NewAuthHandler(userService, tokenManager, logger),
		ProfileHandler:  api.NewProfileHandler(profileService, logger),
		CartHandler:     api.NewCartHandler(cartManager, bookService, logger),
		CheckoutHandler: api.NewCheckoutHandler(checkoutService, logger),
		OrderHandler:    api.NewOrderHandler(orderService, logger),
	}

	stripeWebhookHandler := webhook.NewStripeHandler(billingProvider, checkoutService, cfg.Stripe.WebhookSecret, logger)
	webhookDeps := routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	metrics := middleware.NewMetrics("restory")

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.WithUser(tokenManager, userService),
		middleware.WithRequestLogger(logger),
		middleware.RequestLog,
	)

	// Metrics endpoint. Protect at the network layer in production.
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	routes.RegisterAPIRoutes(r, apiDeps, cfg.Env == "prod")
	routes.RegisterWebhookRoutes(r, webhookDeps)

	// CORS wraps the whole router so preflight OPTIONS requests are
	// answered even though routes register with explicit methods
	handler := router.CORS(cfg.AllowedOrigins)(r)

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
