package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/internal/bundle"
	"github.com/mercura-io/storefront-backend/internal/cart"
	"github.com/mercura-io/storefront-backend/internal/catalog"
	checkoutsvc "github.com/mercura-io/storefront-backend/internal/checkout"
	"github.com/mercura-io/storefront-backend/internal/inventory"
	"github.com/mercura-io/storefront-backend/internal/pricing"
	paypalwebhook "github.com/mercura-io/storefront-backend/internal/webhooks/paypal"
	pkgAuth "github.com/mercura-io/storefront-backend/pkg/auth"
	"github.com/mercura-io/storefront-backend/pkg/config"
	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/logger"
	"github.com/mercura-io/storefront-backend/pkg/pagination"
	"github.com/mercura-io/storefront-backend/pkg/paypal"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubRedis struct{}

func (stubRedis) Ping(context.Context) error { return nil }

func (stubRedis) Get(context.Context, string) (string, error) { return "", nil }

func (stubRedis) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return true, nil
}

func (stubRedis) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func (stubRedis) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

func (stubRedis) Del(context.Context, ...string) error { return nil }

type stubCatalog struct{}

func (stubCatalog) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	return &models.Product{ID: id, Name: "Widget", IsActive: true}, nil
}

func (stubCatalog) GetProductDetail(_ context.Context, id uuid.UUID) (*models.Product, error) {
	return &models.Product{ID: id, Name: "Widget", IsActive: true}, nil
}

func (stubCatalog) GetVariations(context.Context, uuid.UUID) ([]models.ProductVariation, error) {
	return nil, nil
}

func (stubCatalog) GetBundleItems(context.Context, uuid.UUID) ([]models.BundleItem, error) {
	return nil, nil
}

func (stubCatalog) AssignBundleItem(context.Context, catalog.AssignBundleItemInput) (*models.BundleItem, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubCatalog) RemoveBundleItem(context.Context, uuid.UUID, int64) error {
	return fmt.Errorf("not implemented")
}

type stubCalculator struct{}

func (stubCalculator) Calculate(_ context.Context, productID uuid.UUID, _ types.ProductConfiguration, quantity int) (*pricing.Quote, error) {
	return &pricing.Quote{ProductID: productID, Quantity: quantity}, nil
}

type stubInventory struct{}

func (stubInventory) CheckAvailability(context.Context, uuid.UUID, types.ProductConfiguration) (*inventory.StockCheckResult, error) {
	return &inventory.StockCheckResult{Available: true, AvailableQuantity: 5}, nil
}

func (stubInventory) GetAvailableStock(context.Context, uuid.UUID, *types.ProductConfiguration) (int, error) {
	return 5, nil
}

func (stubInventory) ReserveVariationStock(context.Context, *gorm.DB, uuid.UUID, int64, int) (*models.VariationStockReservation, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubInventory) ReserveStock(context.Context, *gorm.DB, uuid.UUID, uuid.UUID, int) (*models.StockReservation, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubInventory) ConfirmReservations(context.Context, *gorm.DB, uuid.UUID) error { return nil }

func (stubInventory) ReleaseVariationStock(context.Context, *gorm.DB, uuid.UUID, *int64) error {
	return nil
}

func (stubInventory) CancelReservations(context.Context, *gorm.DB, uuid.UUID) error { return nil }

func (stubInventory) ReleaseOrderHolds(context.Context, *gorm.DB, uuid.UUID) error { return nil }

func (stubInventory) ExpireOrderHolds(context.Context, *gorm.DB, uuid.UUID) error { return nil }

func (stubInventory) DueReservationOrders(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return nil, nil
}

type stubBundles struct{}

func (stubBundles) CheckBundleAvailability(context.Context, uuid.UUID, types.ProductConfiguration) (*bundle.Result, error) {
	return &bundle.Result{Available: true, AvailableQuantity: 3}, nil
}

func (stubBundles) ValidateBundleConfiguration(context.Context, uuid.UUID, types.ProductConfiguration) error {
	return nil
}

type stubCart struct{}

func (stubCart) GetCart(context.Context, cart.Identity) (*cart.CartView, error) {
	return &cart.CartView{ID: uuid.New()}, nil
}

func (stubCart) AddItem(context.Context, cart.Identity, cart.AddItemInput) (*cart.MutationResult, error) {
	return &cart.MutationResult{Cart: &cart.CartView{ID: uuid.New()}}, nil
}

func (stubCart) UpdateItemQuantity(context.Context, cart.Identity, uuid.UUID, int) (*cart.CartView, error) {
	return &cart.CartView{ID: uuid.New()}, nil
}

func (stubCart) RemoveItem(context.Context, cart.Identity, uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{ID: uuid.New()}, nil
}

func (stubCart) ApplyCoupon(context.Context, cart.Identity, string) (*cart.CartView, error) {
	return &cart.CartView{ID: uuid.New()}, nil
}

func (stubCart) RemoveCoupon(context.Context, cart.Identity, string) (*cart.CartView, error) {
	return &cart.CartView{ID: uuid.New()}, nil
}

func (stubCart) MergeGuestCart(context.Context, string, uuid.UUID) (*cart.CartView, error) {
	return &cart.CartView{ID: uuid.New()}, nil
}

func (stubCart) ActiveCart(context.Context, cart.Identity) (*models.Cart, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubCart) BeginCheckout(context.Context, *gorm.DB, uuid.UUID) error { return nil }

func (stubCart) MarkConverted(context.Context, *gorm.DB, uuid.UUID) error { return nil }

func (stubCart) RestoreActive(context.Context, *gorm.DB, uuid.UUID) error { return nil }

type stubCheckout struct{}

func (stubCheckout) CreateOrder(context.Context, cart.Identity) (*checkoutsvc.CheckoutResult, error) {
	return &checkoutsvc.CheckoutResult{Order: &models.Order{ID: uuid.New()}}, nil
}

func (stubCheckout) CreatePayment(context.Context, cart.Identity, uuid.UUID) (*paypal.Payment, error) {
	return &paypal.Payment{PaymentID: "PAY-1"}, nil
}

func (stubCheckout) CapturePayment(context.Context, cart.Identity, uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: uuid.New()}, nil
}

func (stubCheckout) ApplyPaymentOutcome(context.Context, uuid.UUID, checkoutsvc.PaymentOutcome) (*models.Order, error) {
	return &models.Order{ID: uuid.New()}, nil
}

func (stubCheckout) GetOrder(context.Context, cart.Identity, uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: uuid.New()}, nil
}

func (stubCheckout) ListOrders(context.Context, cart.Identity, pagination.Params) (*checkoutsvc.OrderPage, error) {
	return nil, nil
}

func (stubCheckout) OrderByProviderID(context.Context, string) (*models.Order, error) {
	return &models.Order{ID: uuid.New()}, nil
}

func (stubCheckout) ReclaimExpiredHolds(context.Context, int) (int, error) { return 0, nil }

func (stubCheckout) ExpireStaleOrders(context.Context, time.Duration, int) (int, error) {
	return 0, nil
}

type stubVerifier struct{}

func (stubVerifier) VerifyWebhook(context.Context, *http.Request) error { return nil }

type stubCapturer struct{}

func (stubCapturer) CapturePayment(context.Context, string) (*paypal.CaptureResult, error) {
	return &paypal.CaptureResult{Status: "COMPLETED", ExternalTransactionID: "TX-1"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "mercura"},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test"})

	webhookService, err := paypalwebhook.NewService(paypalwebhook.ServiceParams{
		Orders:   stubCheckout{},
		Capturer: stubCapturer{},
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	guard, err := paypalwebhook.NewIdempotencyGuard(stubRedis{}, time.Minute, "test")
	if err != nil {
		t.Fatalf("idempotency guard: %v", err)
	}

	return NewRouter(
		testConfig(),
		logg,
		stubPinger{},
		stubRedis{},
		stubCatalog{},
		stubCalculator{},
		stubInventory{},
		stubBundles{},
		stubCart{},
		stubCheckout{},
		stubVerifier{},
		webhookService,
		guard,
	)
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestProductDetailIsPublic(t *testing.T) {
	router := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCartRequiresIdentity(t *testing.T) {
	router := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAcceptsGuestSession(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Session-Id", "guest-session-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCartAcceptsBearerToken(t *testing.T) {
	router := newTestRouter(t)
	cfg := testConfig()

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now().UTC(), uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestInvalidBearerTokenRejected(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader("{}"))
	req.Header.Set("X-Session-Id", "guest-session-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestWebhookRouteAcceptsEvent(t *testing.T) {
	router := newTestRouter(t)

	body := `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1","supplementary_data":{"related_ids":{"order_id":"PP-ORDER-1"}}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
