package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/internal/bundle"
	"github.com/mercura-io/storefront-backend/internal/coupons"
	"github.com/mercura-io/storefront-backend/internal/pricing"
	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type priceCalculator interface {
	Calculate(ctx context.Context, productID uuid.UUID, cfg types.ProductConfiguration, quantity int) (*pricing.Quote, error)
}

type stockReader interface {
	GetAvailableStock(ctx context.Context, productID uuid.UUID, cfg *types.ProductConfiguration) (int, error)
}

type bundleChecker interface {
	CheckBundleAvailability(ctx context.Context, bundleProductID uuid.UUID, cfg types.ProductConfiguration) (*bundle.Result, error)
	ValidateBundleConfiguration(ctx context.Context, bundleProductID uuid.UUID, cfg types.ProductConfiguration) error
}

type couponValidator interface {
	ValidateForCart(ctx context.Context, input coupons.ValidateInput) (*coupons.Validated, error)
}

// Service is the cart manager: one active cart per identity, line
// merging by product plus canonical configuration, stored price
// snapshots, and the checkout-side lifecycle hooks the order flow
// drives inside its own transaction.
type Service interface {
	GetCart(ctx context.Context, identity Identity) (*CartView, error)
	AddItem(ctx context.Context, identity Identity, input AddItemInput) (*MutationResult, error)
	UpdateItemQuantity(ctx context.Context, identity Identity, itemID uuid.UUID, quantity int) (*CartView, error)
	RemoveItem(ctx context.Context, identity Identity, itemID uuid.UUID) (*CartView, error)
	ApplyCoupon(ctx context.Context, identity Identity, code string) (*CartView, error)
	RemoveCoupon(ctx context.Context, identity Identity, code string) (*CartView, error)
	MergeGuestCart(ctx context.Context, sessionID string, userID uuid.UUID) (*CartView, error)

	ActiveCart(ctx context.Context, identity Identity) (*models.Cart, error)
	BeginCheckout(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	RestoreActive(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// AddItemInput is one add-to-cart request. Configuration must already
// be in canonical form.
type AddItemInput struct {
	ProductID     uuid.UUID
	Quantity      int
	Configuration types.ProductConfiguration
}

// Options carries the cart policy knobs.
type Options struct {
	TTL             time.Duration
	MaxItemQuantity int
	ShippingFlat    decimal.Decimal
}

type service struct {
	repo       *Repository
	couponRepo *coupons.Repository
	client     txRunner
	catalog    catalogReader
	pricing    priceCalculator
	stock      stockReader
	bundles    bundleChecker
	coupons    couponValidator
	opts       Options
	now        func() time.Time
}

// NewService builds the cart manager.
func NewService(
	repo *Repository,
	couponRepo *coupons.Repository,
	client txRunner,
	catalog catalogReader,
	calculator priceCalculator,
	stock stockReader,
	bundles bundleChecker,
	couponSvc couponValidator,
	opts Options,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if calculator == nil {
		return nil, fmt.Errorf("price calculator required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	if bundles == nil {
		return nil, fmt.Errorf("bundle checker required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("cart TTL must be positive")
	}
	if opts.MaxItemQuantity < 1 {
		return nil, fmt.Errorf("max item quantity must be at least 1")
	}
	return &service{
		repo:       repo,
		couponRepo: couponRepo,
		client:     client,
		catalog:    catalog,
		pricing:    calculator,
		stock:      stock,
		bundles:    bundles,
		coupons:    couponSvc,
		opts:       opts,
		now:        time.Now,
	}, nil
}

// GetCart returns the identity's cart, creating one when none exists.
func (s *service) GetCart(ctx context.Context, identity Identity) (*CartView, error) {
	cart, err := s.getOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart.ID)
}

// ActiveCart returns the identity's current cart without creating one.
func (s *service) ActiveCart(ctx context.Context, identity Identity) (*models.Cart, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart identity required")
	}
	cart, err := s.repo.FindActiveByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.IsExpired(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return cart, nil
}

// getOrCreate resolves the identity's live cart. An expired cart is
// deleted and replaced with a fresh row under a new id, so its stale
// price snapshots and coupons never resurface.
func (s *service) getOrCreate(ctx context.Context, identity Identity) (*models.Cart, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart identity required")
	}

	now := s.now().UTC()
	cart, err := s.repo.FindActiveByIdentity(ctx, identity)
	switch {
	case err == nil:
		if !cart.IsExpired(now) {
			return cart, nil
		}
		if cart.Status == enums.CartStatusCheckout {
			// A checkout-locked cart is the order sweeper's to restore.
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is locked for checkout")
		}
		if err := s.repo.Delete(ctx, cart.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete expired cart")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Fall through to create.
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	fresh := &models.Cart{
		ID:        uuid.New(),
		UserID:    identity.UserRef(),
		SessionID: identity.SessionRef(),
		Status:    enums.CartStatusActive,
		Currency:  enums.CurrencyUSD,
		ExpiresAt: now.Add(s.opts.TTL),
	}
	created, err := s.repo.Create(ctx, fresh)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// AddItem adds a configured product to the cart. A line matching the
// same product and canonical configuration is merged instead of
// duplicated, and the merged quantity is re-priced as one line.
//
// Bundles are admitted member by member: a required member with no
// stock rejects the add, an out-of-stock optional member is dropped
// from the configuration with a warning, and the surviving members'
// minimum bounds the quantity.
func (s *service) AddItem(ctx context.Context, identity Identity, input AddItemInput) (*MutationResult, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.Quantity > s.opts.MaxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-line maximum").
			WithDetails(map[string]any{"max_quantity": s.opts.MaxItemQuantity})
	}

	cart, err := s.getOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := mutable(cart); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProductDetail(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	cfg := input.Configuration
	var warnings []Warning
	var check *bundle.Result

	if product.IsBundle {
		check, err = s.bundles.CheckBundleAvailability(ctx, product.ID, cfg)
		if err != nil {
			return nil, err
		}
		cfg, warnings, err = pruneUnavailableOptional(check, cfg)
		if err != nil {
			return nil, err
		}
		if err := s.bundles.ValidateBundleConfiguration(ctx, product.ID, cfg); err != nil {
			return nil, err
		}
	}

	existing := matchLine(cart, product.ID, cfg)
	newQuantity := input.Quantity
	if existing != nil {
		newQuantity += existing.Quantity
	}
	if newQuantity > s.opts.MaxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-line maximum").
			WithDetails(map[string]any{
				"max_quantity": s.opts.MaxItemQuantity,
				"in_cart":      newQuantity - input.Quantity,
				"requested":    input.Quantity,
			})
	}

	if product.IsBundle {
		available := effectiveBundleAvailability(check, cfg)
		if newQuantity > available {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for bundle").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  available,
					"requested":  newQuantity,
				})
		}
	} else {
		available, err := s.stock.GetAvailableStock(ctx, product.ID, &cfg)
		if err != nil {
			return nil, err
		}
		if newQuantity > available && !product.AllowsBackorder() {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  available,
					"requested":  newQuantity,
				})
		}
	}

	quote, err := s.pricing.Calculate(ctx, product.ID, cfg, newQuantity)
	if err != nil {
		return nil, err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if existing != nil {
			existing.Quantity = newQuantity
			existing.UnitPrice = quote.Subtotal
			existing.TotalPrice = quote.Total
			if _, err := repo.UpdateItem(ctx, existing); err != nil {
				return err
			}
		} else {
			line := &models.CartItem{
				ID:            uuid.New(),
				CartID:        cart.ID,
				ProductID:     product.ID,
				Quantity:      newQuantity,
				Configuration: cfg,
				UnitPrice:     quote.Subtotal,
				TotalPrice:    quote.Total,
			}
			if _, err := repo.CreateItem(ctx, line); err != nil {
				return err
			}
		}
		return repo.TouchExpiry(ctx, cart.ID, s.now().UTC().Add(s.opts.TTL))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write cart line")
	}

	view, err := s.view(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return &MutationResult{Cart: view, Warnings: warnings}, nil
}

// UpdateItemQuantity re-checks availability and re-prices the line at
// the new quantity.
func (s *service) UpdateItemQuantity(ctx context.Context, identity Identity, itemID uuid.UUID, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if quantity > s.opts.MaxItemQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-line maximum").
			WithDetails(map[string]any{"max_quantity": s.opts.MaxItemQuantity})
	}

	cart, err := s.ActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := mutable(cart); err != nil {
		return nil, err
	}
	item := cart.Item(itemID)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	product, err := s.catalog.GetProductDetail(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}

	if product.IsBundle {
		check, err := s.bundles.CheckBundleAvailability(ctx, product.ID, item.Configuration)
		if err != nil {
			return nil, err
		}
		available := effectiveBundleAvailability(check, item.Configuration)
		if quantity > available {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for bundle").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  available,
					"requested":  quantity,
				})
		}
	} else {
		available, err := s.stock.GetAvailableStock(ctx, product.ID, &item.Configuration)
		if err != nil {
			return nil, err
		}
		if quantity > available && !product.AllowsBackorder() {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  available,
					"requested":  quantity,
				})
		}
	}

	quote, err := s.pricing.Calculate(ctx, product.ID, item.Configuration, quantity)
	if err != nil {
		return nil, err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item.Quantity = quantity
		item.UnitPrice = quote.Subtotal
		item.TotalPrice = quote.Total
		if _, err := repo.UpdateItem(ctx, item); err != nil {
			return err
		}
		return repo.TouchExpiry(ctx, cart.ID, s.now().UTC().Add(s.opts.TTL))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}

	return s.view(ctx, cart.ID)
}

// RemoveItem deletes one line.
func (s *service) RemoveItem(ctx context.Context, identity Identity, itemID uuid.UUID) (*CartView, error) {
	cart, err := s.ActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := mutable(cart); err != nil {
		return nil, err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
			return err
		}
		return repo.TouchExpiry(ctx, cart.ID, s.now().UTC().Add(s.opts.TTL))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}

	return s.view(ctx, cart.ID)
}

// ApplyCoupon validates the code against the cart's current payable
// subtotal and stores the discount snapshot. Reapplying the same code
// overwrites the snapshot.
func (s *service) ApplyCoupon(ctx context.Context, identity Identity, code string) (*CartView, error) {
	cart, err := s.ActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := mutable(cart); err != nil {
		return nil, err
	}

	products, err := s.repo.LoadProducts(ctx, productIDs(cart))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	totals := ComputeTotals(cart, products, s.opts.ShippingFlat, s.now().UTC())
	payable := totals.Subtotal.Sub(totals.SaleDiscount)
	if payable.IsNegative() {
		payable = decimal.Zero
	}

	validated, err := s.coupons.ValidateForCart(ctx, coupons.ValidateInput{
		Code:     code,
		Subtotal: payable,
		UserID:   identity.UserRef(),
	})
	if err != nil {
		return nil, err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		row := &models.CartCoupon{
			ID:             uuid.New(),
			CartID:         cart.ID,
			CouponID:       validated.Coupon.ID,
			DiscountAmount: validated.Discount,
		}
		if err := s.couponRepo.WithTx(tx).UpsertCartCoupon(ctx, row); err != nil {
			return err
		}
		return s.repo.WithTx(tx).TouchExpiry(ctx, cart.ID, s.now().UTC().Add(s.opts.TTL))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach coupon")
	}

	return s.view(ctx, cart.ID)
}

// RemoveCoupon detaches a coupon by code.
func (s *service) RemoveCoupon(ctx context.Context, identity Identity, code string) (*CartView, error) {
	cart, err := s.ActiveCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := mutable(cart); err != nil {
		return nil, err
	}

	coupon, err := s.couponRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if err := s.couponRepo.DeleteCartCoupon(ctx, cart.ID, coupon.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon is not applied to this cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach coupon")
	}

	return s.view(ctx, cart.ID)
}

// MergeGuestCart folds a guest session's cart into the user's cart at
// sign-in. Matching lines merge with a re-price at the combined
// quantity, capped at the per-line maximum; the rest move over. The
// guest cart and its coupons are then deleted; the user cart's coupons
// stand.
func (s *service) MergeGuestCart(ctx context.Context, sessionID string, userID uuid.UUID) (*CartView, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	now := s.now().UTC()
	guest, err := s.repo.FindActiveByIdentity(ctx, Guest(sessionID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.GetCart(ctx, User(userID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}
	if guest.IsExpired(now) || guest.Status != enums.CartStatusActive {
		return s.GetCart(ctx, User(userID))
	}

	target, err := s.repo.FindActiveByIdentity(ctx, User(userID))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		target = nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart")
	case target.Status == enums.CartStatusCheckout:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is locked for checkout")
	case target.IsExpired(now):
		if err := s.repo.Delete(ctx, target.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete expired cart")
		}
		target = nil
	}

	// No user cart: the guest cart changes hands wholesale.
	if target == nil {
		err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.SetOwner(ctx, guest.ID, userID); err != nil {
				return err
			}
			return repo.TouchExpiry(ctx, guest.ID, now.Add(s.opts.TTL))
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adopt guest cart")
		}
		return s.view(ctx, guest.ID)
	}

	type merge struct {
		item  *models.CartItem
		quote *pricing.Quote
	}
	var merges []merge
	var moves []uuid.UUID
	for i := range guest.Items {
		guestItem := &guest.Items[i]
		existing := matchLine(target, guestItem.ProductID, guestItem.Configuration)
		if existing == nil {
			moves = append(moves, guestItem.ID)
			continue
		}
		combined := existing.Quantity + guestItem.Quantity
		if combined > s.opts.MaxItemQuantity {
			combined = s.opts.MaxItemQuantity
		}
		quote, err := s.pricing.Calculate(ctx, existing.ProductID, existing.Configuration, combined)
		if err != nil {
			return nil, err
		}
		existing.Quantity = combined
		merges = append(merges, merge{item: existing, quote: quote})
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, m := range merges {
			m.item.UnitPrice = m.quote.Subtotal
			m.item.TotalPrice = m.quote.Total
			if _, err := repo.UpdateItem(ctx, m.item); err != nil {
				return err
			}
		}
		for _, itemID := range moves {
			if err := repo.MoveItem(ctx, itemID, target.ID); err != nil {
				return err
			}
		}
		if err := repo.Delete(ctx, guest.ID); err != nil {
			return err
		}
		return repo.TouchExpiry(ctx, target.ID, now.Add(s.opts.TTL))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge guest cart")
	}

	return s.view(ctx, target.ID)
}

// BeginCheckout locks an active cart for the order flow.
func (s *service) BeginCheckout(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	cart, err := repo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.Status != enums.CartStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not active").
			WithDetails(map[string]any{"status": cart.Status})
	}
	if err := repo.UpdateStatus(ctx, cartID, enums.CartStatusCheckout); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart for checkout")
	}
	return nil
}

// MarkConverted finalizes the cart after payment settles. The cart row
// survives as a historical marker; its lines do not.
func (s *service) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.UpdateStatus(ctx, cartID, enums.CartStatusConverted); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
	}
	if err := repo.DeleteItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear converted cart")
	}
	return nil
}

// RestoreActive hands a checkout-locked cart back to the shopper after
// a failed or abandoned payment, with a fresh TTL.
func (s *service) RestoreActive(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	if err := repo.UpdateStatus(ctx, cartID, enums.CartStatusActive); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore cart")
	}
	if err := repo.TouchExpiry(ctx, cartID, s.now().UTC().Add(s.opts.TTL)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "extend restored cart")
	}
	return nil
}

func (s *service) view(ctx context.Context, cartID uuid.UUID) (*CartView, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	products, err := s.repo.LoadProducts(ctx, productIDs(cart))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	return buildView(cart, products, s.opts.ShippingFlat, s.now().UTC()), nil
}

// mutable rejects writes against a cart the order flow has locked.
func mutable(cart *models.Cart) error {
	if cart.Status == enums.CartStatusCheckout {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is locked for checkout")
	}
	return nil
}

func matchLine(cart *models.Cart, productID uuid.UUID, cfg types.ProductConfiguration) *models.CartItem {
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.ProductID == productID && item.Configuration.Equal(cfg) {
			return item
		}
	}
	return nil
}

func productIDs(cart *models.Cart) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(cart.Items))
	var ids []uuid.UUID
	for i := range cart.Items {
		id := cart.Items[i].ProductID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// pruneUnavailableOptional enforces the bundle admission rules: a
// required member with no stock is fatal, an out-of-stock optional
// member is dropped from the configuration with a warning.
func pruneUnavailableOptional(check *bundle.Result, cfg types.ProductConfiguration) (types.ProductConfiguration, []Warning, error) {
	var warnings []Warning
	for _, item := range check.Items {
		if item.AvailableQuantity > 0 {
			continue
		}
		if item.Required {
			return cfg, nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("bundle item %q is out of stock", item.Label)).
				WithDetails(map[string]any{
					"bundle_item_id": item.BundleItemID,
					"product_id":     item.ProductID,
				})
		}
		cfg = cfg.WithoutOptionalItem(item.BundleItemID)
		warnings = append(warnings, Warning{
			Type:    enums.CartWarningTypeOptionalItemRemoved,
			Message: fmt.Sprintf("optional item %q is out of stock and was removed", item.Label),
		})
	}
	return cfg, warnings, nil
}

// effectiveBundleAvailability is the minimum across the members still
// selected after pruning.
func effectiveBundleAvailability(check *bundle.Result, cfg types.ProductConfiguration) int {
	selected := cfg.SelectedOptionalSet()
	min := -1
	for _, item := range check.Items {
		if !item.Required && !selected[item.BundleItemID] {
			continue
		}
		if min < 0 || item.AvailableQuantity < min {
			min = item.AvailableQuantity
		}
	}
	if min < 0 {
		min = 0
	}
	return min
}
