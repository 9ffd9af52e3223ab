package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/scootsmagoo/filtersfast-next-sub010/internal/handlers"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/auth"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/config"
	pfirestore "github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/firestore"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/jobs"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/observability"
	ppostgres "github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/postgres"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/ratelimit"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/secrets"
	firestoreRepo "github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories/firestore"
	postgresRepo "github.com/scootsmagoo/filtersfast-next-sub010/internal/repositories/postgres"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
	"github.com/scootsmagoo/filtersfast-next-sub010/internal/taxoracle"
)

const meterName = "github.com/scootsmagoo/filtersfast-next-sub010/cmd/api"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcherOpts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(firstNonEmpty(envValues["API_SECRETS_PROJECT_ID"], envValues["API_FIREBASE_PROJECT_ID"])),
		secrets.WithMeter(otel.Meter(meterName)),
	}
	if path := strings.TrimSpace(envValues["API_SECRETS_FALLBACK_FILE"]); path != "" {
		fetcherOpts = append(fetcherOpts, secrets.WithFallbackFile(path))
	}
	fetcher, err := secrets.NewFetcher(ctx, fetcherOpts...)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	pool, err := ppostgres.NewPool(ctx, cfg.Postgres, cfg.Security)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()
	if err := ppostgres.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("failed to ensure postgres schema", zap.Error(err))
	}

	limiter, redisClient := newLimiter(cfg, logger.Named("ratelimit"))
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	ledger, stopLedger := newLedgerPublisher(ctx, cfg, logger.Named("ledger"))
	defer stopLedger()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	promoRepo, err := firestoreRepo.NewPromoCodeRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise promo code repository", zap.Error(err))
	}
	historyRepo, err := firestoreRepo.NewCustomerHistoryRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise customer history repository", zap.Error(err))
	}
	giftCardRepo, err := firestoreRepo.NewGiftCardRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise gift card repository", zap.Error(err))
	}
	shipmentRepo, err := postgresRepo.NewShipmentHistoryRepository(pool)
	if err != nil {
		logger.Fatal("failed to initialise shipment history repository", zap.Error(err))
	}
	taxLogRepo, err := postgresRepo.NewTaxLogRepository(pool)
	if err != nil {
		logger.Fatal("failed to initialise tax log repository", zap.Error(err))
	}

	promotionService, err := services.NewPromotionService(services.PromotionServiceDeps{
		Promotions:      promoRepo,
		CustomerHistory: historyRepo,
		Ledger:          ledger,
		Clock:           time.Now,
		Logger:          observability.EventLogger(logger.Named("promotions")),
	})
	if err != nil {
		logger.Fatal("failed to initialise promotion service", zap.Error(err))
	}

	giftCardService, err := services.NewGiftCardService(services.GiftCardServiceDeps{
		GiftCards: giftCardRepo,
		Ledger:    ledger,
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("gift_cards")),
	})
	if err != nil {
		logger.Fatal("failed to initialise gift card service", zap.Error(err))
	}

	taxService, err := services.NewTaxService(services.TaxServiceDeps{
		Oracle: taxoracle.New(cfg.Tax.BaseURL, cfg.Tax.APIKey, cfg.Tax.Timeout),
		Logs:   taxLogRepo,
		Ledger: ledger,
		Meter:  otel.Meter(meterName),
		Clock:  time.Now,
		Logger: observability.EventLogger(logger.Named("tax")),
	})
	if err != nil {
		logger.Fatal("failed to initialise tax service", zap.Error(err))
	}

	shipmentService, err := services.NewShipmentHistoryService(services.ShipmentHistoryServiceDeps{
		Shipments: shipmentRepo,
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("shipments")),
	})
	if err != nil {
		logger.Fatal("failed to initialise shipment history service", zap.Error(err))
	}

	promotionHandlers := handlers.NewPromotionHandlers(promotionService)
	taxHandlers := handlers.NewTaxHandlers(taxService)
	dealHandlers := handlers.NewDealHandlers()
	giftCardHandlers := handlers.NewAdminGiftCardHandlers(giftCardService)
	shipmentHandlers := handlers.NewAdminShipmentHandlers(shipmentService)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthVersion(envValues["API_BUILD_VERSION"], startedAt),
		handlers.WithHealthChecks(dependencyChecks(firestoreProvider, pool, redisClient)...),
	)

	projectID := cfg.Firestore.ProjectID
	staffOnly := authenticator.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin)
	serviceOnly, err := buildOIDCMiddleware(logger.Named("oidc"), cfg.Security.OIDC)
	if err != nil {
		logger.Fatal("failed to initialise oidc validator", zap.Error(err))
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicMiddlewares(ratelimit.Middleware(limiter, "public", cfg.RateLimits.PublicPerMinute)),
		handlers.WithPromotionRoutes(promotionHandlers.Routes),
		handlers.WithTaxRoutes(taxHandlers.Routes),
		handlers.WithAdminMiddlewares(staffOnly),
		handlers.WithAdminRoutes(dealHandlers.Routes),
		handlers.WithAdminRoutes(giftCardHandlers.Routes),
		handlers.WithAdminRoutes(shipmentHandlers.Routes),
		handlers.WithInternalMiddlewares(serviceOnly),
		handlers.WithInternalRoutes(promotionHandlers.InternalRoutes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("filtersfast api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// requiredSecretNames lists secrets that must resolve outside local environments.
func requiredSecretNames(env map[string]string) []string {
	security := config.SecurityConfig{Environment: env["API_SECURITY_ENVIRONMENT"]}
	if security.IsLocal() {
		return nil
	}
	return []string{"Postgres.DSN", "Tax.APIKey"}
}

// buildOIDCMiddleware guards the internal routes with Google-signed service
// tokens. Without an audience every internal request is refused.
func buildOIDCMiddleware(logger *zap.Logger, cfg config.OIDCConfig) (func(http.Handler) http.Handler, error) {
	cache := auth.NewJWKSCache(cfg.JWKSURL)
	validator, err := auth.NewOIDCValidator(cache,
		auth.WithOIDCLogger(logger),
		auth.WithOIDCMeter(otel.Meter(meterName)),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		logger.Warn("oidc audience not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(cfg.Audience, cfg.Issuers), nil
}

func newLimiter(cfg config.Config, logger *zap.Logger) (ratelimit.Limiter, *redis.Client) {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		logger.Info("redis not configured; using in-memory rate limiter")
		return ratelimit.NewInMemory(cfg.RateLimits.Window), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	limiter := ratelimit.NewRedis(client, cfg.RateLimits.Window, func(err error) {
		logger.Warn("redis limiter error; falling back to memory", zap.Error(err))
	})
	return limiter, client
}

func newLedgerPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (services.LedgerPublisher, func()) {
	noop := func() {}
	topicName := strings.TrimSpace(cfg.PubSub.LedgerTopic)
	if topicName == "" || strings.TrimSpace(cfg.PubSub.ProjectID) == "" {
		logger.Info("ledger topic not configured; ledger events disabled")
		return nil, noop
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Warn("pubsub client init failed; ledger events disabled", zap.Error(err))
		return nil, noop
	}
	publisher, err := jobs.NewPubSubLedgerPublisher(client.Topic(topicName))
	if err != nil {
		_ = client.Close()
		logger.Warn("ledger publisher init failed; ledger events disabled", zap.Error(err))
		return nil, noop
	}
	return publisher, func() {
		publisher.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
}

func dependencyChecks(provider *pfirestore.Provider, pool *pgxpool.Pool, redisClient *redis.Client) []handlers.DependencyCheck {
	checks := []handlers.DependencyCheck{
		{Name: "firestore", Timeout: 1500 * time.Millisecond, Check: provider.Ping},
		{Name: "postgres", Timeout: time.Second, Check: pool.Ping},
	}
	if redisClient != nil {
		checks = append(checks, handlers.DependencyCheck{
			Name:    "redis",
			Timeout: 500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return checks
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
