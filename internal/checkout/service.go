package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/internal/bundle"
	"github.com/mercura-io/storefront-backend/internal/cart"
	"github.com/mercura-io/storefront-backend/internal/coupons"
	"github.com/mercura-io/storefront-backend/internal/inventory"
	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/logger"
	"github.com/mercura-io/storefront-backend/pkg/outbox"
	"github.com/mercura-io/storefront-backend/pkg/outbox/payloads"
	"github.com/mercura-io/storefront-backend/pkg/pagination"
	"github.com/mercura-io/storefront-backend/pkg/paypal"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartManager interface {
	ActiveCart(ctx context.Context, identity cart.Identity) (*models.Cart, error)
	BeginCheckout(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	RestoreActive(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type catalogReader interface {
	GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type stockManager interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, cfg types.ProductConfiguration) (*inventory.StockCheckResult, error)
	ReserveVariationStock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, optionID int64, quantity int) (*models.VariationStockReservation, error)
	ReserveStock(ctx context.Context, tx *gorm.DB, orderID, productID uuid.UUID, quantity int) (*models.StockReservation, error)
	ConfirmReservations(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ReleaseOrderHolds(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ExpireOrderHolds(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	DueReservationOrders(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type bundleChecker interface {
	CheckBundleAvailability(ctx context.Context, bundleProductID uuid.UUID, cfg types.ProductConfiguration) (*bundle.Result, error)
}

type couponRedeemer interface {
	RecordRedemption(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) error
}

type paymentProvider interface {
	CreatePayment(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, currency string) (*paypal.Payment, error)
	CapturePayment(ctx context.Context, paymentID string) (*paypal.CaptureResult, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the order manager: it converts a cart into an order with
// inventory held, drives the payment provider, and applies payment
// outcomes so stock, order state, and cart state move together.
type Service interface {
	CreateOrder(ctx context.Context, identity cart.Identity) (*CheckoutResult, error)
	CreatePayment(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*paypal.Payment, error)
	CapturePayment(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*models.Order, error)
	ApplyPaymentOutcome(ctx context.Context, orderID uuid.UUID, outcome PaymentOutcome) (*models.Order, error)
	GetOrder(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, identity cart.Identity, params pagination.Params) (*OrderPage, error)
	OrderByProviderID(ctx context.Context, providerOrderID string) (*models.Order, error)

	ReclaimExpiredHolds(ctx context.Context, batchSize int) (int, error)
	ExpireStaleOrders(ctx context.Context, stuckFor time.Duration, batchSize int) (int, error)
}

// OrderPage is one page of an identity's order history. NextCursor is
// empty on the last page.
type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// CheckoutResult is a freshly created order with its provider payment,
// when the provider call succeeded. A nil Payment means the order and
// its holds are live but the payment must be re-initialized.
type CheckoutResult struct {
	Order   *models.Order   `json:"order"`
	Payment *paypal.Payment `json:"payment,omitempty"`
}

// PaymentOutcome is the settled result of a payment attempt, from a
// synchronous capture or a provider webhook.
type PaymentOutcome struct {
	Succeeded     bool
	TransactionID string
	Reason        string
}

// Options carries checkout policy knobs.
type Options struct {
	ShippingFlat decimal.Decimal
}

type service struct {
	repo       *Repository
	client     txRunner
	carts      cartManager
	catalog    catalogReader
	stock      stockManager
	bundles    bundleChecker
	couponRepo *coupons.Repository
	redeemer   couponRedeemer
	provider   paymentProvider
	outbox     outboxPublisher
	logg       *logger.Logger
	opts       Options
	now        func() time.Time
}

// NewService builds the order manager.
func NewService(
	repo *Repository,
	client txRunner,
	carts cartManager,
	catalog catalogReader,
	stock stockManager,
	bundles bundleChecker,
	couponRepo *coupons.Repository,
	redeemer couponRedeemer,
	provider paymentProvider,
	publisher outboxPublisher,
	logg *logger.Logger,
	opts Options,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock manager required")
	}
	if bundles == nil {
		return nil, fmt.Errorf("bundle checker required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if redeemer == nil {
		return nil, fmt.Errorf("coupon redeemer required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		client:     client,
		carts:      carts,
		catalog:    catalog,
		stock:      stock,
		bundles:    bundles,
		couponRepo: couponRepo,
		redeemer:   redeemer,
		provider:   provider,
		outbox:     publisher,
		logg:       logg,
		opts:       opts,
		now:        time.Now,
	}, nil
}

// CreateOrder snapshots the identity's active cart into an order and
// places inventory holds, all in one transaction; oversell is rejected
// here, never discovered later. The provider payment is created after
// commit: a provider outage leaves a retriable awaiting_payment order
// with its holds live rather than a rolled-back checkout.
func (s *service) CreateOrder(ctx context.Context, identity cart.Identity) (*CheckoutResult, error) {
	current, err := s.carts.ActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(current.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	var order *models.Order
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.carts.BeginCheckout(ctx, tx, current.ID); err != nil {
			return err
		}

		products := make(map[uuid.UUID]models.Product, len(current.Items))
		items := make([]models.OrderItem, 0, len(current.Items))
		orderID := uuid.New()

		for i := range current.Items {
			line := &current.Items[i]
			product, err := s.catalog.GetProductDetail(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available").
					WithDetails(map[string]any{"product_id": product.ID, "product_name": product.Name})
			}
			products[product.ID] = *product

			if err := s.reserveLine(ctx, tx, orderID, line, product); err != nil {
				return err
			}

			items = append(items, models.OrderItem{
				ID:            uuid.New(),
				OrderID:       orderID,
				ProductID:     line.ProductID,
				ProductName:   product.Name,
				Quantity:      line.Quantity,
				Configuration: line.Configuration,
				UnitPrice:     line.UnitPrice,
				TotalPrice:    line.TotalPrice,
			})
		}

		totals := cart.ComputeTotals(current, products, s.opts.ShippingFlat, s.now().UTC())
		order = &models.Order{
			ID:             orderID,
			UserID:         current.UserID,
			SessionID:      current.SessionID,
			CartID:         current.ID,
			Status:         enums.OrderStatusAwaitingPayment,
			Currency:       current.Currency,
			Subtotal:       totals.Subtotal,
			SaleDiscount:   totals.SaleDiscount,
			CouponDiscount: totals.CouponDiscount,
			ShippingTotal:  totals.ShippingTotal,
			TaxTotal:       totals.TaxTotal,
			GrandTotal:     totals.GrandTotal,
			Items:          items,
		}
		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorFor(order),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CartID:      order.CartID,
				UserID:      order.UserID,
				GrandTotal:  order.GrandTotal,
				Currency:    order.Currency,
				ItemCount:   len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{Order: order}
	payment, err := s.initProviderPayment(ctx, order)
	if err != nil {
		// The order and its holds stand; the client retries payment
		// initialization against the existing order.
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
		}), fmt.Sprintf("provider payment init failed: %v", err))
		return result, nil
	}
	result.Payment = payment
	return result, nil
}

// CreatePayment initializes (or re-initializes) the provider payment
// for an existing awaiting_payment order.
func (s *service) CreatePayment(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*paypal.Payment, error) {
	order, err := s.GetOrder(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusAwaitingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	return s.initProviderPayment(ctx, order)
}

func (s *service) initProviderPayment(ctx context.Context, order *models.Order) (*paypal.Payment, error) {
	payment, err := s.provider.CreatePayment(ctx, order.ID, order.GrandTotal, string(order.Currency))
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetProviderOrderID(ctx, order.ID, payment.PaymentID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store provider order id")
	}
	providerID := payment.PaymentID
	order.ProviderOrderID = &providerID
	return payment, nil
}

// CapturePayment drives a synchronous capture of the provider payment
// and applies the outcome.
func (s *service) CapturePayment(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, identity, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled").
			WithDetails(map[string]any{"status": order.Status})
	}
	if order.ProviderOrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not been initialized")
	}

	capture, err := s.provider.CapturePayment(ctx, *order.ProviderOrderID)
	if err != nil {
		// Holds stay live; the webhook or the sweeper resolves the order.
		return nil, err
	}

	return s.ApplyPaymentOutcome(ctx, order.ID, PaymentOutcome{
		Succeeded:     capture.Succeeded(),
		TransactionID: capture.ExternalTransactionID,
		Reason:        capture.Status,
	})
}

// ApplyPaymentOutcome settles an order in one transaction. Success
// performs the deferred stock deduction, records coupon redemptions,
// and converts the cart; failure releases every hold and hands the
// cart back. Replays against a settled order are no-ops.
func (s *service) ApplyPaymentOutcome(ctx context.Context, orderID uuid.UUID, outcome PaymentOutcome) (*models.Order, error) {
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status.IsTerminal() {
			// Webhook retries and capture races land here.
			return nil
		}
		if !outcome.Succeeded && order.Status == enums.OrderStatusPaymentFailed {
			return nil
		}

		if outcome.Succeeded {
			if order.Status != enums.OrderStatusAwaitingPayment {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be paid from its current state").
					WithDetails(map[string]any{"status": order.Status})
			}
			return s.settleSuccess(ctx, tx, order, outcome)
		}
		return s.settleFailure(ctx, tx, order, outcome)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}

func (s *service) settleSuccess(ctx context.Context, tx *gorm.DB, order *models.Order, outcome PaymentOutcome) error {
	if err := s.stock.ConfirmReservations(ctx, tx, order.ID); err != nil {
		return err
	}

	attached, err := s.couponRepo.WithTx(tx).FindCartCoupons(ctx, order.CartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart coupons")
	}
	for i := range attached {
		if err := s.redeemer.RecordRedemption(ctx, tx, attached[i].CouponID, order.UserID, order.ID); err != nil {
			return err
		}
	}

	paidAt := s.now().UTC()
	if err := s.repo.WithTx(tx).RecordPayment(ctx, order.ID, outcome.TransactionID, paidAt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	if err := s.carts.MarkConverted(ctx, tx, order.CartID); err != nil {
		return err
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorFor(order),
		Data: payloads.OrderPaidEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			GrandTotal:    order.GrandTotal,
			Currency:      order.Currency,
			TransactionID: outcome.TransactionID,
			PaidAt:        paidAt,
		},
	}); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCartConverted,
		AggregateType: enums.AggregateCart,
		AggregateID:   order.CartID,
		Actor:         actorFor(order),
		Data:          payloads.CartConvertedEvent{CartID: order.CartID, OrderID: order.ID},
	})
}

func (s *service) settleFailure(ctx context.Context, tx *gorm.DB, order *models.Order, outcome PaymentOutcome) error {
	if err := s.stock.ReleaseOrderHolds(ctx, tx, order.ID); err != nil {
		return err
	}
	if err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusPaymentFailed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	if err := s.carts.RestoreActive(ctx, tx, order.CartID); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaymentFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorFor(order),
		Data: payloads.OrderPaymentFailedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Reason:      outcome.Reason,
		},
	})
}

// GetOrder loads an order for its owning identity. Foreign orders read
// as not found rather than forbidden, so ids cannot be probed.
func (s *service) GetOrder(ctx context.Context, identity cart.Identity, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !order.BelongsTo(identity.UserRef(), identity.SessionRef()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListOrders returns one page of the identity's order history, newest
// first. One extra row is fetched to decide whether a next page exists.
func (s *service) ListOrders(ctx context.Context, identity cart.Identity, params pagination.Params) (*OrderPage, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identity required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByIdentity(ctx, identity.UserRef(), identity.SessionRef(), cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := &OrderPage{Orders: rows}
	if len(rows) > limit {
		page.Orders = rows[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// OrderByProviderID resolves the order a provider webhook refers to.
func (s *service) OrderByProviderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	order, err := s.repo.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// ReclaimExpiredHolds flips due pending holds to expired, order by
// order, each in its own transaction. The orders themselves stay
// awaiting payment; a late confirmation still deducts stock.
func (s *service) ReclaimExpiredHolds(ctx context.Context, batchSize int) (int, error) {
	ids, err := s.stock.DueReservationOrders(ctx, s.now().UTC(), batchSize)
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	for _, orderID := range ids {
		err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
			return s.stock.ExpireOrderHolds(ctx, tx, orderID)
		})
		if err != nil {
			return reclaimed, err
		}
		reclaimed++
	}
	return reclaimed, nil
}

// ExpireStaleOrders reaps orders stuck awaiting payment past the
// cutoff: holds expire, the order closes, the cart goes back to its
// owner.
func (s *service) ExpireStaleOrders(ctx context.Context, stuckFor time.Duration, batchSize int) (int, error) {
	cutoff := s.now().UTC().Add(-stuckFor)
	stale, err := s.repo.FindStaleAwaitingPayment(ctx, cutoff, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}

	expired := 0
	for i := range stale {
		order := &stale[i]
		err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.stock.ExpireOrderHolds(ctx, tx, order.ID); err != nil {
				return err
			}
			if err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusExpired); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire order")
			}
			if err := s.carts.RestoreActive(ctx, tx, order.CartID); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{System: true},
				Data: payloads.OrderExpiredEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					ExpiredAt:   s.now().UTC(),
				},
			})
		})
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// reserveLine places the holds for one order line. Tracked option
// selections hold at option granularity; everything else holds at the
// product. Bundle lines hold per member.
func (s *service) reserveLine(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, line *models.CartItem, product *models.Product) error {
	if product.IsBundle {
		check, err := s.bundles.CheckBundleAvailability(ctx, product.ID, line.Configuration)
		if err != nil {
			return err
		}
		for _, member := range check.Items {
			if err := s.reserveTarget(ctx, tx, orderID, member.ProductID, member.Breakdown, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	}

	check, err := s.stock.CheckAvailability(ctx, product.ID, line.Configuration)
	if err != nil {
		return err
	}
	return s.reserveTarget(ctx, tx, orderID, product.ID, check.Breakdown, line.Quantity)
}

func (s *service) reserveTarget(ctx context.Context, tx *gorm.DB, orderID, productID uuid.UUID, breakdown []inventory.OptionAvailability, quantity int) error {
	if len(breakdown) == 0 {
		_, err := s.stock.ReserveStock(ctx, tx, orderID, productID, quantity)
		return err
	}
	for _, option := range breakdown {
		if _, err := s.stock.ReserveVariationStock(ctx, tx, orderID, option.OptionID, quantity); err != nil {
			return err
		}
	}
	return nil
}

func actorFor(order *models.Order) *outbox.ActorRef {
	if order.UserID == nil && order.SessionID == nil {
		return &outbox.ActorRef{System: true}
	}
	return &outbox.ActorRef{UserID: order.UserID, SessionID: order.SessionID}
}
