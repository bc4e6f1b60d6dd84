package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kasuwa-market/kasuwa-backend/api/controllers"
	"github.com/kasuwa-market/kasuwa-backend/api/routes"
	"github.com/kasuwa-market/kasuwa-backend/internal/checkout"
	"github.com/kasuwa-market/kasuwa-backend/internal/commissions"
	"github.com/kasuwa-market/kasuwa-backend/internal/dispatch"
	"github.com/kasuwa-market/kasuwa-backend/internal/orders"
	"github.com/kasuwa-market/kasuwa-backend/internal/payments"
	"github.com/kasuwa-market/kasuwa-backend/internal/payouts"
	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/db"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
	"github.com/kasuwa-market/kasuwa-backend/pkg/metrics"
	"github.com/kasuwa-market/kasuwa-backend/pkg/migrate"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox/idempotency"
	"github.com/kasuwa-market/kasuwa-backend/pkg/paystack"
	"github.com/kasuwa-market/kasuwa-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paystackClient, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack client", err)
		os.Exit(1)
	}

	dedupe, err := idempotency.NewManager(redisClient, cfg.Paystack.WebhookDedupeTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dedupe manager", err)
		os.Exit(1)
	}

	settlement := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	currency, err := enums.ParseCurrency(cfg.Paystack.Currency)
	if err != nil {
		logg.Error(context.Background(), "unsupported settlement currency", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(
		checkout.NewRepository(dbClient.DB()), dbClient, outboxSvc, settlement, cfg.Platform, currency)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(
		orders.NewRepository(dbClient.DB()), dbClient, outboxSvc,
		orders.NewLedgerChecker(), orders.NewRiderReleaser())
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	commissionsSvc, err := commissions.NewService(
		commissions.NewRepository(dbClient.DB()), dbClient, settlement, cfg.Platform)
	if err != nil {
		logg.Error(context.Background(), "failed to create commissions service", err)
		os.Exit(1)
	}

	dispatchSvc, err := dispatch.NewService(
		dispatch.NewRepository(dbClient.DB()), dbClient, outboxSvc, settlement, cfg.Platform)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(
		payments.NewRepository(dbClient.DB()), dbClient, outboxSvc,
		paystackClient, redisClient, ordersSvc, commissionsSvc, dispatchSvc,
		dedupe, settlement, cfg.Platform)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	payoutsSvc, err := payouts.NewService(
		payouts.NewRepository(dbClient.DB()), dbClient, outboxSvc, settlement, cfg.Platform)
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Dependencies{
		Logger: logg,
		ReadyChecks: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
		},
		Checkout:    checkoutSvc,
		Orders:      ordersSvc,
		Payments:    paymentsSvc,
		Commissions: commissionsSvc,
		Payouts:     payoutsSvc,
		Dispatch:    dispatchSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
