package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mercura-io/storefront-backend/api/controllers"
	cartcontrollers "github.com/mercura-io/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/mercura-io/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/mercura-io/storefront-backend/api/controllers/webhooks"
	"github.com/mercura-io/storefront-backend/api/middleware"
	"github.com/mercura-io/storefront-backend/internal/bundle"
	"github.com/mercura-io/storefront-backend/internal/cart"
	"github.com/mercura-io/storefront-backend/internal/catalog"
	checkoutsvc "github.com/mercura-io/storefront-backend/internal/checkout"
	"github.com/mercura-io/storefront-backend/internal/inventory"
	"github.com/mercura-io/storefront-backend/internal/pricing"
	paypalwebhook "github.com/mercura-io/storefront-backend/internal/webhooks/paypal"
	"github.com/mercura-io/storefront-backend/pkg/config"
	"github.com/mercura-io/storefront-backend/pkg/db"
	"github.com/mercura-io/storefront-backend/pkg/logger"
	"github.com/mercura-io/storefront-backend/pkg/redis"
)

type webhookVerifier interface {
	VerifyWebhook(ctx context.Context, req *http.Request) error
}

type redisStore interface {
	redis.IdempotencyStore
	Ping(ctx context.Context) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

const (
	checkoutRateWindow = time.Minute
	checkoutRateLimit  = 10
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	catalogService catalog.Service,
	calculator pricing.Calculator,
	stockService inventory.Service,
	bundleComposer bundle.Composer,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	paypalVerifier webhookVerifier,
	paypalWebhookService *paypalwebhook.Service,
	paypalWebhookGuard *paypalwebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paypal", webhookcontrollers.PayPalWebhook(paypalWebhookService, paypalVerifier, paypalWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		// Catalog reads work for anonymous shoppers too.
		r.Route("/products/{productId}", func(r chi.Router) {
			r.Get("/", controllers.ProductDetail(catalogService, logg))
			r.Post("/availability", controllers.ProductAvailability(catalogService, stockService, bundleComposer, logg))
			r.Post("/quote", controllers.ProductQuote(calculator, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity(logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Get("/ping", controllers.PrivatePing())

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(cartService, logg))
				r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
				r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(cartService, logg))
				r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(cartService, logg))
				r.Post("/coupons", cartcontrollers.CartApplyCoupon(cartService, logg))
				r.Delete("/coupons/{code}", cartcontrollers.CartRemoveCoupon(cartService, logg))
				r.Post("/merge", cartcontrollers.CartMerge(cartService, logg))
			})

			checkoutLimiter := middleware.RateLimit(
				middleware.NewRateLimitPolicy("checkout", checkoutRateWindow, checkoutRateLimit),
				redisClient,
				logg,
			)

			r.With(checkoutLimiter).Post("/checkout", ordercontrollers.Checkout(checkoutService, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(checkoutService, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(checkoutService, logg))
				r.With(checkoutLimiter).Post("/{orderId}/payment", ordercontrollers.CreatePayment(checkoutService, logg))
				r.With(checkoutLimiter).Post("/{orderId}/capture", ordercontrollers.Capture(checkoutService, logg))
			})
		})
	})

	return r
}
