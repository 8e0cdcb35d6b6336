package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/adapters/postgres"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/adapters/trustpayments"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/adapters/zaplog"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/config"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
	cronHandler "github.com/common-repository/trust-payments-gateway-3ds2/internal/handlers/cron"
	paymentHandler "github.com/common-repository/trust-payments-gateway-3ds2/internal/handlers/payment"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/middleware"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/billing"
	paymentService "github.com/common-repository/trust-payments-gateway-3ds2/internal/services/payment"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/reconciliation"
	"github.com/common-repository/trust-payments-gateway-3ds2/internal/services/vault"
	pkghttp "github.com/common-repository/trust-payments-gateway-3ds2/pkg/http"
	pkgmiddleware "github.com/common-repository/trust-payments-gateway-3ds2/pkg/middleware"
	"github.com/common-repository/trust-payments-gateway-3ds2/pkg/observability"
	"github.com/common-repository/trust-payments-gateway-3ds2/pkg/shutdown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := zaplog.NewFromLevel(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting trust payments gateway service",
		ports.String("mode", cfg.Gateway.Mode),
		ports.String("site_reference", cfg.Gateway.SiteReference),
	)

	ctx := context.Background()

	secretManager, err := buildSecretManager(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize secret backend", ports.Err(err))
		os.Exit(1)
	}
	if err := resolveSecrets(ctx, cfg, secretManager, logger); err != nil {
		logger.Error("failed to resolve secrets", ports.Err(err))
		os.Exit(1)
	}

	pool, err := initDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize database", ports.Err(err))
		os.Exit(1)
	}

	logger.Info("database connection established", ports.String("database", cfg.Database.Database))

	deps := initDependencies(pool, cfg, logger)

	// Public endpoints share one per-IP limiter
	rateLimiter := pkgmiddleware.NewRateLimiter(10, 20)

	securityHeaders := middleware.NewSecurityHeaders(cfg.Logger.Development)
	gzipHandler := pkgmiddleware.GzipHandler()

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/checkout",
		observability.HTTPMetrics("/api/v1/checkout",
			rateLimiter.HTTPHandlerFunc(deps.checkoutHandler.Checkout)))
	mux.HandleFunc("GET /api/v1/payments/callback",
		observability.HTTPMetrics("/api/v1/payments/callback",
			rateLimiter.HTTPHandlerFunc(deps.callbackHandler.Callback)))
	mux.HandleFunc("POST /api/v1/payments/notification",
		observability.HTTPMetrics("/api/v1/payments/notification",
			rateLimiter.HTTPHandlerFunc(deps.notificationAuth.Middleware(deps.notificationHandler.Notify))))

	mux.HandleFunc("GET /api/v1/customers/{customerID}/cards",
		observability.HTTPMetrics("/api/v1/customers/cards", deps.cardsHandler.List))
	mux.HandleFunc("POST /api/v1/customers/{customerID}/cards/{cardID}/activate",
		observability.HTTPMetrics("/api/v1/customers/cards/activate", deps.cardsHandler.Activate))
	mux.HandleFunc("POST /api/v1/customers/{customerID}/cards/deactivate",
		observability.HTTPMetrics("/api/v1/customers/cards/deactivate", deps.cardsHandler.Deactivate))
	mux.HandleFunc("DELETE /api/v1/customers/{customerID}/cards/{cardID}",
		observability.HTTPMetrics("/api/v1/customers/cards/delete", deps.cardsHandler.Delete))

	mux.HandleFunc("DELETE /api/v1/admin/customers/{customerID}/cards",
		observability.HTTPMetrics("/api/v1/admin/customers/cards",
			deps.actorAuth.Middleware(deps.cardsHandler.DeleteAll)))
	mux.HandleFunc("POST /api/v1/payments/refund",
		observability.HTTPMetrics("/api/v1/payments/refund",
			deps.actorAuth.Middleware(deps.refundHandler.Refund)))

	mux.HandleFunc("POST /cron/process-renewals",
		observability.HTTPMetrics("/cron/process-renewals", deps.renewalHandler.ProcessRenewals))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      securityHeaders.Middleware(gzipHandler(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(pool)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker)

	// Shut down in reverse registration order: servers drain before the
	// pool closes under them.
	shutdownManager := shutdown.NewManager(logger.Zap(), 10*time.Second)
	shutdownManager.RegisterNoErr("database", pool.Close)
	shutdownManager.RegisterNoErr("rate_limiter", rateLimiter.Shutdown)
	shutdownManager.RegisterHTTPServer("metrics_server", metricsServer)
	shutdownManager.RegisterHTTPServer("http_server", server)

	go func() {
		logger.Info("HTTP server listening", ports.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", ports.Err(err))
			os.Exit(1)
		}
	}()

	shutdownManager.WaitForShutdown()
	logger.Info("servers stopped")
}

// Dependencies holds all initialized services and handlers
type Dependencies struct {
	checkoutHandler     *paymentHandler.CheckoutHandler
	callbackHandler     *paymentHandler.CallbackHandler
	notificationHandler *paymentHandler.NotificationHandler
	cardsHandler        *paymentHandler.CardsHandler
	refundHandler       *paymentHandler.RefundHandler
	renewalHandler      *cronHandler.RenewalHandler
	notificationAuth    *middleware.NotificationAuth
	actorAuth           *middleware.ActorAuth
}

// initDatabase initializes the PostgreSQL connection pool
func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(poolCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(poolCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// initDependencies wires adapters, services and handlers
func initDependencies(pool *pgxpool.Pool, cfg *config.Config, logger ports.Logger) *Dependencies {
	db := postgres.NewDBExecutor(pool)

	orderRepo := postgres.NewOrderRepository(db, logger)
	cardRepo := postgres.NewCardRepository(db, logger)
	subRepo := postgres.NewSubscriptionRepository(db, logger)

	gatewayHTTPClient := pkghttp.NewHTTPClient(
		pkghttp.GatewayClientConfig(),
		time.Duration(cfg.Gateway.Timeout)*time.Second,
	)
	processor := trustpayments.NewClient(trustpayments.Config{
		BaseURL:       cfg.Gateway.BaseURL,
		Alias:         cfg.Gateway.Alias,
		Username:      cfg.Gateway.Username,
		Password:      cfg.Gateway.Password,
		SiteReference: cfg.Gateway.SiteReference,
	}, gatewayHTTPClient, logger)

	builder := paymentService.NewSignedRequestBuilder(paymentService.BuilderConfig{
		JWTUsername:   cfg.JWT.Username,
		JWTSecret:     cfg.JWT.Secret,
		SiteReference: cfg.Gateway.SiteReference,
		Locale:        cfg.JWT.Locale,
		AuthMethod:    cfg.JWT.AuthMethod,
	}, logger)

	planner := billing.NewPlanner()
	checkoutSvc := paymentService.NewCheckoutService(db, orderRepo, cardRepo, subRepo, planner, builder, logger)
	vaultSvc := vault.NewService(db, cardRepo, logger)
	reconSvc := reconciliation.NewService(db, orderRepo, processor, vaultSvc, logger)
	renewalSvc := billing.NewRenewalService(db, orderRepo, subRepo, processor, logger)

	notificationAuth := middleware.NewNotificationAuth(
		cfg.Notification.Secret,
		cfg.Notification.AllowedRanges,
		cfg.Notification.CloudflareRanges,
		logger,
	)
	actorAuth := middleware.NewActorAuth(staffTokens(cfg), logger)

	return &Dependencies{
		checkoutHandler:     paymentHandler.NewCheckoutHandler(checkoutSvc, logger),
		callbackHandler:     paymentHandler.NewCallbackHandler(reconSvc, logger),
		notificationHandler: paymentHandler.NewNotificationHandler(reconSvc, logger),
		cardsHandler:        paymentHandler.NewCardsHandler(vaultSvc, logger),
		refundHandler:       paymentHandler.NewRefundHandler(reconSvc, logger),
		renewalHandler:      cronHandler.NewRenewalHandler(renewalSvc, logger, cfg.Cron.Secret, cfg.Cron.RenewalBatch),
		notificationAuth:    notificationAuth,
		actorAuth:           actorAuth,
	}
}

// staffTokens builds the bearer token table for staff endpoints. A role with
// no configured token stays unreachable.
func staffTokens(cfg *config.Config) map[string]domain.Actor {
	tokens := make(map[string]domain.Actor)
	if cfg.Auth.AdminToken != "" {
		tokens[cfg.Auth.AdminToken] = domain.Actor{ID: "admin", Role: domain.RoleAdmin}
	}
	if cfg.Auth.ManagerToken != "" {
		tokens[cfg.Auth.ManagerToken] = domain.Actor{ID: "manager", Role: domain.RoleManager}
	}
	return tokens
}
