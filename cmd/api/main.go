package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/mercura-io/storefront-backend/api/routes"
	"github.com/mercura-io/storefront-backend/internal/bundle"
	"github.com/mercura-io/storefront-backend/internal/cart"
	"github.com/mercura-io/storefront-backend/internal/catalog"
	"github.com/mercura-io/storefront-backend/internal/checkout"
	"github.com/mercura-io/storefront-backend/internal/coupons"
	"github.com/mercura-io/storefront-backend/internal/inventory"
	"github.com/mercura-io/storefront-backend/internal/pricing"
	paypalwebhook "github.com/mercura-io/storefront-backend/internal/webhooks/paypal"
	"github.com/mercura-io/storefront-backend/pkg/config"
	"github.com/mercura-io/storefront-backend/pkg/db"
	"github.com/mercura-io/storefront-backend/pkg/logger"
	"github.com/mercura-io/storefront-backend/pkg/migrate"
	"github.com/mercura-io/storefront-backend/pkg/outbox"
	"github.com/mercura-io/storefront-backend/pkg/paypal"
	"github.com/mercura-io/storefront-backend/pkg/redis"
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

	paypalClient, err := paypal.NewClient(context.Background(), cfg.PayPal, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize paypal client", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(
		inventory.NewRepository(dbClient.DB()),
		catalogService,
		cfg.Inventory.ReservationTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	calculator, err := pricing.NewCalculator(catalogService)
	if err != nil {
		logg.Error(context.Background(), "failed to create price calculator", err)
		os.Exit(1)
	}

	bundleComposer, err := bundle.NewComposer(catalogService, inventoryService)
	if err != nil {
		logg.Error(context.Background(), "failed to create bundle composer", err)
		os.Exit(1)
	}

	couponRepo := coupons.NewRepository(dbClient.DB())
	couponService, err := coupons.NewService(couponRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
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
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkout.NewService(
		checkout.NewRepository(dbClient.DB()),
		dbClient,
		cartService,
		catalogService,
		inventoryService,
		bundleComposer,
		couponRepo,
		couponService,
		paypalClient,
		outboxService,
		logg,
		checkout.Options{ShippingFlat: cfg.Cart.ShippingFlat},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookService, err := paypalwebhook.NewService(paypalwebhook.ServiceParams{
		Orders:   checkoutService,
		Capturer: paypalClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := paypalwebhook.NewIdempotencyGuard(redisClient, cfg.Idempotency.TTL, "webhooks:paypal")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

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
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			catalogService,
			calculator,
			inventoryService,
			bundleComposer,
			cartService,
			checkoutService,
			paypalClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
