package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

type catalogReader interface {
	GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service is the stock reservation manager: availability reads at both
// product and variation-option granularity, and the hold lifecycle
// (reserve, confirm, release, expire) tied to an order.
//
// Mutating calls take the caller's transaction so the availability
// check, the hold row, and the counter move commit or roll back as one.
type Service interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, cfg types.ProductConfiguration) (*StockCheckResult, error)
	GetAvailableStock(ctx context.Context, productID uuid.UUID, cfg *types.ProductConfiguration) (int, error)

	ReserveVariationStock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, optionID int64, quantity int) (*models.VariationStockReservation, error)
	ReserveStock(ctx context.Context, tx *gorm.DB, orderID, productID uuid.UUID, quantity int) (*models.StockReservation, error)
	ConfirmReservations(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ReleaseVariationStock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, optionID *int64) error
	CancelReservations(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ReleaseOrderHolds(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ExpireOrderHolds(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error

	DueReservationOrders(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// StockCheckResult answers "how many of this configuration are free".
// With tracked selections, the available quantity is the minimum across
// the checked options: a configuration is only as available as its
// scarcest selected option.
type StockCheckResult struct {
	Available         bool                 `json:"available"`
	AvailableQuantity int                  `json:"available_quantity"`
	Breakdown         []OptionAvailability `json:"breakdown,omitempty"`
}

// OptionAvailability is the per-option slice of a stock check.
type OptionAvailability struct {
	VariationID      int64  `json:"variation_id"`
	VariationName    string `json:"variation_name"`
	OptionID         int64  `json:"option_id"`
	OptionLabel      string `json:"option_label"`
	StockQuantity    int    `json:"stock_quantity"`
	ReservedQuantity int    `json:"reserved_quantity"`
	Free             int    `json:"free"`
}

type service struct {
	repo    *Repository
	catalog catalogReader
	holdTTL time.Duration
	now     func() time.Time
}

// NewService builds the reservation manager. holdTTL bounds how long a
// pending hold subtracts from availability before the sweeper reclaims it.
func NewService(repo *Repository, catalog catalogReader, holdTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if holdTTL <= 0 {
		return nil, fmt.Errorf("hold TTL must be positive")
	}
	return &service{
		repo:    repo,
		catalog: catalog,
		holdTTL: holdTTL,
		now:     time.Now,
	}, nil
}

// CheckAvailability computes availability for a configuration. Only
// selected variations that track stock participate; with none, the
// product's own stock count is the answer (product-level holds are the
// reservation manager's concern, not the ledger's).
func (s *service) CheckAvailability(ctx context.Context, productID uuid.UUID, cfg types.ProductConfiguration) (*StockCheckResult, error) {
	product, err := s.catalog.GetProductDetail(ctx, productID)
	if err != nil {
		return nil, err
	}
	return availabilityFor(product, cfg), nil
}

func availabilityFor(product *models.Product, cfg types.ProductConfiguration) *StockCheckResult {
	checked := trackedSelections(product, cfg)
	if len(checked) == 0 {
		return &StockCheckResult{
			Available:         product.StockQuantity > 0,
			AvailableQuantity: product.StockQuantity,
		}
	}

	result := &StockCheckResult{AvailableQuantity: -1}
	for _, entry := range checked {
		free := entry.option.FreeStock()
		result.Breakdown = append(result.Breakdown, OptionAvailability{
			VariationID:      entry.variation.ID,
			VariationName:    entry.variation.Name,
			OptionID:         entry.option.ID,
			OptionLabel:      entry.option.Label,
			StockQuantity:    entry.option.StockQuantity,
			ReservedQuantity: entry.option.ReservedQuantity,
			Free:             free,
		})
		if result.AvailableQuantity < 0 || free < result.AvailableQuantity {
			result.AvailableQuantity = free
		}
	}
	result.Available = result.AvailableQuantity > 0
	return result
}

type trackedSelection struct {
	variation *models.ProductVariation
	option    *models.VariationOption
}

// trackedSelections resolves the configuration's selections to option
// rows on stock-tracked variations. Boolean values resolve to their
// yes/no row; selections that match no row are skipped like untracked
// variations.
func trackedSelections(product *models.Product, cfg types.ProductConfiguration) []trackedSelection {
	var checked []trackedSelection
	for i := range product.Variations {
		variation := &product.Variations[i]
		if !variation.TracksStock || !variation.VariationType.SelectsOption() {
			continue
		}

		var option *models.VariationOption
		if value, ok := cfg.Variations[variation.ID]; ok {
			switch {
			case value.OptionID != nil:
				option = variation.Option(*value.OptionID)
			case value.Flag != nil:
				label := "No"
				if *value.Flag {
					label = "Yes"
				}
				option = variation.OptionByLabel(label)
			}
		} else if variation.VariationType == enums.VariationTypeModel && cfg.ModelVariationID != nil {
			option = variation.Option(*cfg.ModelVariationID)
		}

		if option != nil {
			checked = append(checked, trackedSelection{variation: variation, option: option})
		}
	}
	return checked
}

// GetAvailableStock is the single read path cart and order code use
// before admitting a quantity. Tracked selections route through the
// ledger; everything else is product stock minus live pending holds,
// floored at zero so backorderable products report "order via
// backorder" rather than a negative count.
func (s *service) GetAvailableStock(ctx context.Context, productID uuid.UUID, cfg *types.ProductConfiguration) (int, error) {
	product, err := s.catalog.GetProductDetail(ctx, productID)
	if err != nil {
		return 0, err
	}

	if cfg != nil {
		if checked := trackedSelections(product, *cfg); len(checked) > 0 {
			return availabilityFor(product, *cfg).AvailableQuantity, nil
		}
	}

	reserved, err := s.repo.SumPendingProductReservations(ctx, productID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending reservations")
	}
	available := product.StockQuantity - reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

// ReserveVariationStock places an option-level hold. The counter bump
// is a compare-and-swap against the stock count, so two shoppers racing
// for the last unit cannot both hold it.
func (s *service) ReserveVariationStock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, optionID int64, quantity int) (*models.VariationStockReservation, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be at least 1")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	ok, err := repo.TryReserveOptionStock(ctx, optionID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve option stock")
	}
	if !ok {
		option, err := repo.FindVariationOption(ctx, optionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variation option not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variation option")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for variation option").
			WithDetails(map[string]any{
				"option_id": optionID,
				"available": option.FreeStock(),
				"requested": quantity,
			})
	}

	reservation := &models.VariationStockReservation{
		ID:                uuid.New(),
		OrderID:           orderID,
		VariationOptionID: optionID,
		Quantity:          quantity,
		Status:            enums.ReservationStatusPending,
		ExpiresAt:         s.now().UTC().Add(s.holdTTL),
	}
	created, err := repo.CreateVariationReservation(ctx, reservation)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert variation reservation")
	}
	return created, nil
}

// ReserveStock places a product-level hold for products whose stock is
// not tracked per option. Backorderable products reserve regardless of
// shortfall; that oversell is policy, not a bug.
func (s *service) ReserveStock(ctx context.Context, tx *gorm.DB, orderID, productID uuid.UUID, quantity int) (*models.StockReservation, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be at least 1")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	product, err := repo.LockProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
	}

	if !product.AllowsBackorder() {
		reserved, err := repo.SumPendingProductReservations(ctx, productID, s.now().UTC())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending reservations")
		}
		available := product.StockQuantity - reserved
		if available < 0 {
			available = 0
		}
		if quantity > available {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": productID,
					"available":  available,
					"requested":  quantity,
				})
		}
	}

	reservation := &models.StockReservation{
		ID:        uuid.New(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    enums.ReservationStatusPending,
		ExpiresAt: s.now().UTC().Add(s.holdTTL),
	}
	created, err := repo.CreateProductReservation(ctx, reservation)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock reservation")
	}
	return created, nil
}

// ConfirmReservations performs the real stock decrement for every hold
// of the order and flips it to confirmed. Holds the sweeper already
// expired are still confirmed: the buyer paid, and the sweeper returned
// the reserved counter, so only the stock decrement remains.
func (s *service) ConfirmReservations(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	variationHolds, err := repo.FindVariationReservations(ctx, orderID,
		enums.ReservationStatusPending, enums.ReservationStatusExpired)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variation reservations")
	}
	for _, hold := range variationHolds {
		reservedDelta := -hold.Quantity
		if hold.Status == enums.ReservationStatusExpired {
			reservedDelta = 0
		}
		if err := repo.AdjustOptionCounters(ctx, hold.VariationOptionID, -hold.Quantity, reservedDelta); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement option stock")
		}
		if err := repo.UpdateVariationReservationStatus(ctx, hold.ID, enums.ReservationStatusConfirmed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm variation reservation")
		}
	}

	productHolds, err := repo.FindProductReservations(ctx, orderID,
		enums.ReservationStatusPending, enums.ReservationStatusExpired)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock reservations")
	}
	for _, hold := range productHolds {
		if err := repo.AdjustProductStock(ctx, hold.ProductID, -hold.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement product stock")
		}
		if err := repo.UpdateProductReservationStatus(ctx, hold.ID, enums.ReservationStatusConfirmed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm stock reservation")
		}
	}

	return nil
}

// ReleaseVariationStock returns held option stock to the pool, scoped
// to one option when given, otherwise every pending hold of the order.
func (s *service) ReleaseVariationStock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, optionID *int64) error {
	repo := s.repo.WithTx(tx)
	holds, err := repo.FindVariationReservations(ctx, orderID, enums.ReservationStatusPending)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variation reservations")
	}
	for _, hold := range holds {
		if optionID != nil && hold.VariationOptionID != *optionID {
			continue
		}
		if err := repo.AdjustOptionCounters(ctx, hold.VariationOptionID, 0, -hold.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release option stock")
		}
		if err := repo.UpdateVariationReservationStatus(ctx, hold.ID, enums.ReservationStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel variation reservation")
		}
	}
	return nil
}

// CancelReservations flips the order's pending product-level holds to
// cancelled. Nothing was deducted, so stock is untouched.
func (s *service) CancelReservations(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	holds, err := repo.FindProductReservations(ctx, orderID, enums.ReservationStatusPending)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock reservations")
	}
	for _, hold := range holds {
		if err := repo.UpdateProductReservationStatus(ctx, hold.ID, enums.ReservationStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stock reservation")
		}
	}
	return nil
}

// ReleaseOrderHolds releases everything an order holds at both
// granularities. The payment-failure path uses this.
func (s *service) ReleaseOrderHolds(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if err := s.ReleaseVariationStock(ctx, tx, orderID, nil); err != nil {
		return err
	}
	return s.CancelReservations(ctx, tx, orderID)
}

// ExpireOrderHolds is the sweeper's reclaim: pending holds flip to
// expired and option counters come back down. Stock counts are never
// touched; nothing was deducted for a pending hold.
func (s *service) ExpireOrderHolds(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	variationHolds, err := repo.FindVariationReservations(ctx, orderID, enums.ReservationStatusPending)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variation reservations")
	}
	for _, hold := range variationHolds {
		if err := repo.AdjustOptionCounters(ctx, hold.VariationOptionID, 0, -hold.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release option stock")
		}
		if err := repo.UpdateVariationReservationStatus(ctx, hold.ID, enums.ReservationStatusExpired); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire variation reservation")
		}
	}

	productHolds, err := repo.FindProductReservations(ctx, orderID, enums.ReservationStatusPending)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock reservations")
	}
	for _, hold := range productHolds {
		if err := repo.UpdateProductReservationStatus(ctx, hold.ID, enums.ReservationStatusExpired); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire stock reservation")
		}
	}

	return nil
}

// DueReservationOrders lists orders with pending holds past the cutoff.
func (s *service) DueReservationOrders(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.FindDueReservationOrders(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query due reservations")
	}
	return ids, nil
}
