package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mercura-io/storefront-backend/internal/bundle"
	"github.com/mercura-io/storefront-backend/internal/cart"
	"github.com/mercura-io/storefront-backend/internal/catalog"
	"github.com/mercura-io/storefront-backend/internal/checkout"
	"github.com/mercura-io/storefront-backend/internal/coupons"
	"github.com/mercura-io/storefront-backend/internal/cron"
	"github.com/mercura-io/storefront-backend/internal/inventory"
	"github.com/mercura-io/storefront-backend/internal/pricing"
	"github.com/mercura-io/storefront-backend/pkg/config"
	"github.com/mercura-io/storefront-backend/pkg/db"
	"github.com/mercura-io/storefront-backend/pkg/logger"
	"github.com/mercura-io/storefront-backend/pkg/metrics"
	"github.com/mercura-io/storefront-backend/pkg/migrate"
	"github.com/mercura-io/storefront-backend/pkg/outbox"
	"github.com/mercura-io/storefront-backend/pkg/redis"
)

const lockKeyFormat = "mc:sweeper-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweeper-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sweeper-worker",
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

	checkoutService, err := buildCheckoutService(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build checkout service", err)
		os.Exit(1)
	}

	reservationJob, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:    logg,
		Orders:    checkoutService,
		StuckTTL:  cfg.Sweeper.CheckoutStuckTTL,
		BatchSize: cfg.Sweeper.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation expiry job", err)
		os.Exit(1)
	}

	cartJob, err := cron.NewCartExpiryJob(cron.CartExpiryJobParams{
		Logger:    logg,
		Carts:     cart.NewRepository(dbClient.DB()),
		BatchSize: cfg.Sweeper.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart expiry job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewSweepJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(reservationJob, cartJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting sweeper worker")

	go serveMetrics(ctx, logg, cfg.Sweeper.MetricsListenAddr)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweeper worker shutting down gracefully")
}

// buildCheckoutService wires the order manager the sweeps run through.
// The provider client is not needed for sweeping, so a disabled stub
// stands in and the jobs never touch it.
func buildCheckoutService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (checkout.Service, error) {
	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	inventoryService, err := inventory.NewService(
		inventory.NewRepository(dbClient.DB()),
		catalogService,
		cfg.Inventory.ReservationTTL,
	)
	if err != nil {
		return nil, err
	}
	bundleComposer, err := bundle.NewComposer(catalogService, inventoryService)
	if err != nil {
		return nil, err
	}
	couponRepo := coupons.NewRepository(dbClient.DB())
	couponService, err := coupons.NewService(couponRepo)
	if err != nil {
		return nil, err
	}
	calculator, err := pricing.NewCalculator(catalogService)
	if err != nil {
		return nil, err
	}
	cartService, err := cart.NewService(
		cart.NewRepository(dbClient.DB()),
		couponRepo,
		dbClient,
		catalogService,
		calculator,
		inventoryService,
		bundleComposer,
		couponService,
		cart.Options{
			TTL:             cfg.Cart.TTL,
			MaxItemQuantity: cfg.Cart.MaxItemQuantity,
			ShippingFlat:    cfg.Cart.ShippingFlat,
		},
	)
	if err != nil {
		return nil, err
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	return checkout.NewService(
		checkout.NewRepository(dbClient.DB()),
		dbClient,
		cartService,
		catalogService,
		inventoryService,
		bundleComposer,
		couponRepo,
		couponService,
		disabledProvider{},
		outboxService,
		logg,
		checkout.Options{ShippingFlat: cfg.Cart.ShippingFlat},
	)
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	logg.Info(logg.WithField(ctx, "addr", addr), "serving sweeper metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics listener stopped unexpectedly", err)
	}
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
