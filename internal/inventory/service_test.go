package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

func newInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT,
  currency TEXT NOT NULL DEFAULT 'USD',
  regular_price NUMERIC NOT NULL DEFAULT 0,
  sale_price NUMERIC,
  sale_starts_at DATETIME,
  sale_ends_at DATETIME,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  backorders TEXT NOT NULL DEFAULT 'no',
  is_active INTEGER NOT NULL DEFAULT 1,
  is_bundle INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	variationOptions := `
CREATE TABLE IF NOT EXISTS variation_options (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  variation_id INTEGER NOT NULL,
  label TEXT NOT NULL,
  price_adjustment NUMERIC NOT NULL DEFAULT 0,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  reserved_quantity INTEGER NOT NULL DEFAULT 0,
  sort_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	stockReservations := `
CREATE TABLE IF NOT EXISTS stock_reservations (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	variationReservations := `
CREATE TABLE IF NOT EXISTS variation_stock_reservations (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  variation_option_id INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(variationOptions).Error)
	require.NoError(t, db.Exec(stockReservations).Error)
	require.NoError(t, db.Exec(variationReservations).Error)
	return db
}

type stubCatalog struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubCatalog) GetProductDetail(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func newInventoryService(t *testing.T, db *gorm.DB, products ...*models.Product) Service {
	t.Helper()

	catalog := &stubCatalog{products: make(map[uuid.UUID]*models.Product, len(products))}
	for _, p := range products {
		catalog.products[p.ID] = p
	}
	svc, err := NewService(NewRepository(db), catalog, 15*time.Minute)
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, stock int, backorders string) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:            uuid.New(),
		SKU:           "SKU-" + uuid.NewString()[:8],
		Name:          "Test Product",
		StockQuantity: stock,
		Backorders:    backorders,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func seedOption(t *testing.T, db *gorm.DB, stock, reserved int) *models.VariationOption {
	t.Helper()

	option := &models.VariationOption{
		VariationID:      1,
		Label:            "Large",
		StockQuantity:    stock,
		ReservedQuantity: reserved,
	}
	require.NoError(t, db.Create(option).Error)
	return option
}

func TestReserveVariationStockCompareAndSwap(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)
	ctx := context.Background()
	option := seedOption(t, db, 5, 0)

	first, err := svc.ReserveVariationStock(ctx, db, uuid.New(), option.ID, 3)
	require.NoError(t, err)
	require.Equal(t, enums.ReservationStatusPending, first.Status)

	var reloaded models.VariationOption
	require.NoError(t, db.First(&reloaded, "id = ?", option.ID).Error)
	require.Equal(t, 3, reloaded.ReservedQuantity)
	require.Equal(t, 5, reloaded.StockQuantity)

	// Only two units remain free; a second hold for three must lose.
	_, err = svc.ReserveVariationStock(ctx, db, uuid.New(), option.ID, 3)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	require.NoError(t, db.First(&reloaded, "id = ?", option.ID).Error)
	require.Equal(t, 3, reloaded.ReservedQuantity)
}

func TestReserveVariationStockUnknownOption(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)

	_, err := svc.ReserveVariationStock(context.Background(), db, uuid.New(), 404, 1)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestReserveStockRespectsPendingHolds(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)
	ctx := context.Background()
	product := seedProduct(t, db, 5, "no")

	_, err := svc.ReserveStock(ctx, db, uuid.New(), product.ID, 3)
	require.NoError(t, err)

	// 3 of 5 held; 3 more do not fit.
	_, err = svc.ReserveStock(ctx, db, uuid.New(), product.ID, 3)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	_, err = svc.ReserveStock(ctx, db, uuid.New(), product.ID, 2)
	require.NoError(t, err)
}

func TestReserveStockBackorderAllowsOversell(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)
	product := seedProduct(t, db, 1, "yes")

	hold, err := svc.ReserveStock(context.Background(), db, uuid.New(), product.ID, 10)
	require.NoError(t, err)
	require.Equal(t, 10, hold.Quantity)
}

func TestConfirmReservationsDecrementsStock(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)
	ctx := context.Background()
	orderID := uuid.New()
	option := seedOption(t, db, 5, 0)
	product := seedProduct(t, db, 8, "no")

	_, err := svc.ReserveVariationStock(ctx, db, orderID, option.ID, 2)
	require.NoError(t, err)
	_, err = svc.ReserveStock(ctx, db, orderID, product.ID, 3)
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmReservations(ctx, db, orderID))

	var reloadedOption models.VariationOption
	require.NoError(t, db.First(&reloadedOption, "id = ?", option.ID).Error)
	require.Equal(t, 3, reloadedOption.StockQuantity)
	require.Equal(t, 0, reloadedOption.ReservedQuantity)

	var reloadedProduct models.Product
	require.NoError(t, db.First(&reloadedProduct, "id = ?", product.ID).Error)
	require.Equal(t, 5, reloadedProduct.StockQuantity)

	var holds []models.VariationStockReservation
	require.NoError(t, db.Find(&holds, "order_id = ?", orderID).Error)
	require.Len(t, holds, 1)
	require.Equal(t, enums.ReservationStatusConfirmed, holds[0].Status)
}

func TestConfirmAfterExpiryStillDecrementsStock(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)
	ctx := context.Background()
	orderID := uuid.New()
	option := seedOption(t, db, 5, 0)

	_, err := svc.ReserveVariationStock(ctx, db, orderID, option.ID, 2)
	require.NoError(t, err)

	// The sweeper already returned the reserved counter; a late payment
	// confirmation must only take the stock.
	require.NoError(t, svc.ExpireOrderHolds(ctx, db, orderID))
	require.NoError(t, svc.ConfirmReservations(ctx, db, orderID))

	var reloaded models.VariationOption
	require.NoError(t, db.First(&reloaded, "id = ?", option.ID).Error)
	require.Equal(t, 3, reloaded.StockQuantity)
	require.Equal(t, 0, reloaded.ReservedQuantity)
}

func TestExpireOrderHoldsReturnsReservedCounter(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)
	ctx := context.Background()
	orderID := uuid.New()
	option := seedOption(t, db, 5, 0)
	product := seedProduct(t, db, 8, "no")

	_, err := svc.ReserveVariationStock(ctx, db, orderID, option.ID, 2)
	require.NoError(t, err)
	_, err = svc.ReserveStock(ctx, db, orderID, product.ID, 3)
	require.NoError(t, err)

	require.NoError(t, svc.ExpireOrderHolds(ctx, db, orderID))

	var reloadedOption models.VariationOption
	require.NoError(t, db.First(&reloadedOption, "id = ?", option.ID).Error)
	require.Equal(t, 5, reloadedOption.StockQuantity)
	require.Equal(t, 0, reloadedOption.ReservedQuantity)

	var reloadedProduct models.Product
	require.NoError(t, db.First(&reloadedProduct, "id = ?", product.ID).Error)
	require.Equal(t, 8, reloadedProduct.StockQuantity)

	var productHolds []models.StockReservation
	require.NoError(t, db.Find(&productHolds, "order_id = ?", orderID).Error)
	require.Len(t, productHolds, 1)
	require.Equal(t, enums.ReservationStatusExpired, productHolds[0].Status)
}

func TestReleaseOrderHoldsCancelsEverything(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)
	ctx := context.Background()
	orderID := uuid.New()
	option := seedOption(t, db, 5, 0)
	product := seedProduct(t, db, 8, "no")

	_, err := svc.ReserveVariationStock(ctx, db, orderID, option.ID, 2)
	require.NoError(t, err)
	_, err = svc.ReserveStock(ctx, db, orderID, product.ID, 3)
	require.NoError(t, err)

	require.NoError(t, svc.ReleaseOrderHolds(ctx, db, orderID))

	var reloadedOption models.VariationOption
	require.NoError(t, db.First(&reloadedOption, "id = ?", option.ID).Error)
	require.Equal(t, 0, reloadedOption.ReservedQuantity)

	var variationHolds []models.VariationStockReservation
	require.NoError(t, db.Find(&variationHolds, "order_id = ?", orderID).Error)
	require.Len(t, variationHolds, 1)
	require.Equal(t, enums.ReservationStatusCancelled, variationHolds[0].Status)

	var productHolds []models.StockReservation
	require.NoError(t, db.Find(&productHolds, "order_id = ?", orderID).Error)
	require.Len(t, productHolds, 1)
	require.Equal(t, enums.ReservationStatusCancelled, productHolds[0].Status)
}

func TestGetAvailableStockSubtractsPendingHolds(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	product := seedProduct(t, db, 5, "no")
	svc := newInventoryService(t, db, product)
	ctx := context.Background()

	_, err := svc.ReserveStock(ctx, db, uuid.New(), product.ID, 4)
	require.NoError(t, err)

	available, err := svc.GetAvailableStock(ctx, product.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, available)
}

func TestCheckAvailabilityUsesScarcestTrackedOption(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	product := &models.Product{
		ID:            uuid.New(),
		SKU:           "CFG-1",
		Name:          "Configured",
		StockQuantity: 50,
		Variations: []models.ProductVariation{
			{
				ID:            1,
				Name:          "Size",
				VariationType: enums.VariationTypeDropdown,
				TracksStock:   true,
				Options: []models.VariationOption{
					{ID: 10, Label: "Small", StockQuantity: 9, ReservedQuantity: 2},
					{ID: 11, Label: "Large", StockQuantity: 1, ReservedQuantity: 0},
				},
			},
			{
				ID:            2,
				Name:          "Gift Wrap",
				VariationType: enums.VariationTypeBoolean,
				TracksStock:   true,
				Options: []models.VariationOption{
					{ID: 20, Label: "Yes", StockQuantity: 3, ReservedQuantity: 0},
					{ID: 21, Label: "No", StockQuantity: 100, ReservedQuantity: 0},
				},
			},
		},
	}
	svc := newInventoryService(t, db, product)

	cfg := types.ProductConfiguration{
		Variations: map[int64]types.VariationValue{
			1: types.OptionValue(10),
			2: types.FlagValue(true),
		},
	}
	result, err := svc.CheckAvailability(context.Background(), product.ID, cfg)
	require.NoError(t, err)
	require.True(t, result.Available)
	require.Equal(t, 3, result.AvailableQuantity)
	require.Len(t, result.Breakdown, 2)

	// Without tracked selections the product count answers.
	plain, err := svc.CheckAvailability(context.Background(), product.ID, types.ProductConfiguration{})
	require.NoError(t, err)
	require.Equal(t, 50, plain.AvailableQuantity)
}

func TestDueReservationOrdersFindsBothGranularities(t *testing.T) {
	t.Parallel()

	db := newInventoryTestDB(t)
	svc := newInventoryService(t, db)
	ctx := context.Background()
	option := seedOption(t, db, 5, 0)
	product := seedProduct(t, db, 5, "no")

	orderA := uuid.New()
	orderB := uuid.New()
	_, err := svc.ReserveVariationStock(ctx, db, orderA, option.ID, 1)
	require.NoError(t, err)
	_, err = svc.ReserveStock(ctx, db, orderB, product.ID, 1)
	require.NoError(t, err)

	due, err := svc.DueReservationOrders(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{orderA, orderB}, due)

	none, err := svc.DueReservationOrders(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Empty(t, none)
}
