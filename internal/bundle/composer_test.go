package bundle

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/internal/inventory"
	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

type fakeBundleCatalog struct {
	products   map[uuid.UUID]*models.Product
	items      map[uuid.UUID][]models.BundleItem
	variations map[uuid.UUID][]models.ProductVariation
}

func (f *fakeBundleCatalog) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (f *fakeBundleCatalog) GetBundleItems(_ context.Context, bundleProductID uuid.UUID) ([]models.BundleItem, error) {
	return f.items[bundleProductID], nil
}

func (f *fakeBundleCatalog) GetVariations(_ context.Context, productID uuid.UUID) ([]models.ProductVariation, error) {
	return f.variations[productID], nil
}

type fakeStock struct {
	free map[uuid.UUID]int
}

func (f *fakeStock) CheckAvailability(_ context.Context, productID uuid.UUID, _ types.ProductConfiguration) (*inventory.StockCheckResult, error) {
	qty := f.free[productID]
	return &inventory.StockCheckResult{Available: qty > 0, AvailableQuantity: qty}, nil
}

type bundleFixture struct {
	bundleID uuid.UUID
	deskID   uuid.UUID
	chairID  uuid.UUID
	lampID   uuid.UUID
	composer Composer
	stock    *fakeStock
	catalog  *fakeBundleCatalog
}

func newBundleFixture(t *testing.T) *bundleFixture {
	t.Helper()

	f := &bundleFixture{
		bundleID: uuid.New(),
		deskID:   uuid.New(),
		chairID:  uuid.New(),
		lampID:   uuid.New(),
	}
	f.catalog = &fakeBundleCatalog{
		products: map[uuid.UUID]*models.Product{
			f.bundleID: {ID: f.bundleID, Name: "Office Set", IsBundle: true},
			f.deskID:   {ID: f.deskID, Name: "Desk"},
		},
		items: map[uuid.UUID][]models.BundleItem{
			f.bundleID: {
				{ID: 1, BundleProductID: f.bundleID, ItemProductID: f.deskID, ItemType: enums.BundleItemTypeRequired, IsConfigurable: true},
				{ID: 2, BundleProductID: f.bundleID, ItemProductID: f.chairID, ItemType: enums.BundleItemTypeRequired},
				{ID: 3, BundleProductID: f.bundleID, ItemProductID: f.lampID, ItemType: enums.BundleItemTypeOptional},
			},
		},
		variations: map[uuid.UUID][]models.ProductVariation{
			f.deskID: {
				{
					ID:            7,
					ProductID:     f.deskID,
					Name:          "Surface",
					VariationType: enums.VariationTypeDropdown,
					IsRequired:    true,
					Options:       []models.VariationOption{{ID: 70, Label: "Bamboo"}},
				},
			},
		},
	}
	f.stock = &fakeStock{free: map[uuid.UUID]int{f.deskID: 5, f.chairID: 3, f.lampID: 0}}

	composer, err := NewComposer(f.catalog, f.stock)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	f.composer = composer
	return f
}

func TestCheckBundleAvailabilityUsesScarcestRequiredMember(t *testing.T) {
	t.Parallel()

	f := newBundleFixture(t)
	result, err := f.composer.CheckBundleAvailability(context.Background(), f.bundleID, types.ProductConfiguration{})
	if err != nil {
		t.Fatalf("CheckBundleAvailability: %v", err)
	}
	if !result.Available {
		t.Fatal("expected bundle to be available")
	}
	if result.AvailableQuantity != 3 {
		t.Fatalf("available quantity = %d, want 3 (chair binds)", result.AvailableQuantity)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 checked members, got %d", len(result.Items))
	}
}

func TestCheckBundleAvailabilityCountsSelectedOptional(t *testing.T) {
	t.Parallel()

	f := newBundleFixture(t)
	cfg := types.ProductConfiguration{
		BundleItems: &types.BundleSelection{SelectedOptional: []int64{3}},
	}
	result, err := f.composer.CheckBundleAvailability(context.Background(), f.bundleID, cfg)
	if err != nil {
		t.Fatalf("CheckBundleAvailability: %v", err)
	}
	if result.Available {
		t.Fatal("expected out-of-stock lamp to make the bundle unavailable")
	}
	if result.AvailableQuantity != 0 {
		t.Fatalf("available quantity = %d, want 0", result.AvailableQuantity)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 checked members, got %d", len(result.Items))
	}
}

func TestCheckBundleAvailabilityRejectsUnknownOptional(t *testing.T) {
	t.Parallel()

	f := newBundleFixture(t)
	cfg := types.ProductConfiguration{
		BundleItems: &types.BundleSelection{SelectedOptional: []int64{99}},
	}
	_, err := f.composer.CheckBundleAvailability(context.Background(), f.bundleID, cfg)
	if err == nil {
		t.Fatal("expected unknown bundle item error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCheckBundleAvailabilityRejectsNonBundle(t *testing.T) {
	t.Parallel()

	f := newBundleFixture(t)
	_, err := f.composer.CheckBundleAvailability(context.Background(), f.deskID, types.ProductConfiguration{})
	if err == nil {
		t.Fatal("expected non-bundle error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateBundleConfigurationRequiresMemberSelections(t *testing.T) {
	t.Parallel()

	f := newBundleFixture(t)

	// The configurable desk carries a required variation with no
	// selection supplied.
	err := f.composer.ValidateBundleConfiguration(context.Background(), f.bundleID, types.ProductConfiguration{})
	if err == nil {
		t.Fatal("expected missing member selections to fail")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	cfg := types.ProductConfiguration{
		BundleItems: &types.BundleSelection{
			Configurations: map[int64]types.ItemConfiguration{
				1: {Variations: map[int64]types.VariationValue{7: types.OptionValue(70)}},
			},
		},
	}
	if err := f.composer.ValidateBundleConfiguration(context.Background(), f.bundleID, cfg); err != nil {
		t.Fatalf("ValidateBundleConfiguration with selections: %v", err)
	}
}
