package bundle

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/internal/inventory"
	"github.com/mercura-io/storefront-backend/internal/pricing"
	"github.com/mercura-io/storefront-backend/pkg/db/models"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

type catalogReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetBundleItems(ctx context.Context, bundleProductID uuid.UUID) ([]models.BundleItem, error)
	GetVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error)
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, cfg types.ProductConfiguration) (*inventory.StockCheckResult, error)
}

// Composer derives a bundle's availability from its members and
// validates per-member configurations.
type Composer interface {
	CheckBundleAvailability(ctx context.Context, bundleProductID uuid.UUID, cfg types.ProductConfiguration) (*Result, error)
	ValidateBundleConfiguration(ctx context.Context, bundleProductID uuid.UUID, cfg types.ProductConfiguration) error
}

// Result is a bundle-level stock check: the binding minimum across
// every required member and every selected optional member, with the
// per-member slices kept for callers that need to drop optional items.
type Result struct {
	Available         bool               `json:"available"`
	AvailableQuantity int                `json:"available_quantity"`
	Items             []ItemAvailability `json:"items"`
}

// ItemAvailability is one checked member's contribution.
type ItemAvailability struct {
	BundleItemID      int64                         `json:"bundle_item_id"`
	ProductID         uuid.UUID                     `json:"product_id"`
	Label             string                        `json:"label"`
	Required          bool                          `json:"required"`
	Available         bool                          `json:"available"`
	AvailableQuantity int                           `json:"available_quantity"`
	Breakdown         []inventory.OptionAvailability `json:"breakdown,omitempty"`
}

type composer struct {
	catalog catalogReader
	stock   availabilityChecker
}

// NewComposer builds the bundle composer.
func NewComposer(catalog catalogReader, stock availabilityChecker) (Composer, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	return &composer{catalog: catalog, stock: stock}, nil
}

// CheckBundleAvailability folds member availability into one figure.
// Every required member counts; optional members count only when
// selected, and then exactly like a required one.
func (c *composer) CheckBundleAvailability(ctx context.Context, bundleProductID uuid.UUID, cfg types.ProductConfiguration) (*Result, error) {
	items, err := c.loadBundle(ctx, bundleProductID)
	if err != nil {
		return nil, err
	}

	selected := cfg.SelectedOptionalSet()
	if err := validateSelectedOptional(items, selected); err != nil {
		return nil, err
	}

	result := &Result{AvailableQuantity: -1}
	for i := range items {
		item := &items[i]
		if !item.IsRequired() && !selected[item.ID] {
			continue
		}

		memberCheck, err := c.stock.CheckAvailability(ctx, item.ItemProductID, cfg.BundleItemConfiguration(item.ID))
		if err != nil {
			return nil, err
		}

		result.Items = append(result.Items, ItemAvailability{
			BundleItemID:      item.ID,
			ProductID:         item.ItemProductID,
			Label:             item.Label(),
			Required:          item.IsRequired(),
			Available:         memberCheck.Available,
			AvailableQuantity: memberCheck.AvailableQuantity,
			Breakdown:         memberCheck.Breakdown,
		})
		if result.AvailableQuantity < 0 || memberCheck.AvailableQuantity < result.AvailableQuantity {
			result.AvailableQuantity = memberCheck.AvailableQuantity
		}
	}

	if result.AvailableQuantity < 0 {
		// A bundle with no members to check has nothing binding it.
		result.AvailableQuantity = 0
	}
	result.Available = result.AvailableQuantity > 0
	return result, nil
}

// ValidateBundleConfiguration enforces each configurable member's own
// required-variation rules: every configurable required member, and
// every configurable selected optional member, must carry a complete
// sub-configuration.
func (c *composer) ValidateBundleConfiguration(ctx context.Context, bundleProductID uuid.UUID, cfg types.ProductConfiguration) error {
	items, err := c.loadBundle(ctx, bundleProductID)
	if err != nil {
		return err
	}

	selected := cfg.SelectedOptionalSet()
	if err := validateSelectedOptional(items, selected); err != nil {
		return err
	}

	for i := range items {
		item := &items[i]
		if !item.IsConfigurable {
			continue
		}
		if !item.IsRequired() && !selected[item.ID] {
			continue
		}

		variations, err := c.catalog.GetVariations(ctx, item.ItemProductID)
		if err != nil {
			return err
		}
		if err := pricing.RequireSelections(variations, cfg.BundleItemConfiguration(item.ID)); err != nil {
			details := map[string]any{"bundle_item_id": item.ID, "bundle_item": item.Label()}
			if typed := pkgerrors.As(err); typed != nil {
				if inner, ok := typed.Details().(map[string]any); ok {
					for key, value := range inner {
						details[key] = value
					}
				}
			}
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("bundle item %q is missing required selections", item.Label())).
				WithDetails(details)
		}
	}
	return nil
}

func (c *composer) loadBundle(ctx context.Context, bundleProductID uuid.UUID) ([]models.BundleItem, error) {
	product, err := c.catalog.GetProduct(ctx, bundleProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsBundle {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not a bundle")
	}
	return c.catalog.GetBundleItems(ctx, bundleProductID)
}

func validateSelectedOptional(items []models.BundleItem, selected map[int64]bool) error {
	if len(selected) == 0 {
		return nil
	}
	known := make(map[int64]bool, len(items))
	for i := range items {
		known[items[i].ID] = true
	}
	for itemID := range selected {
		if !known[itemID] {
			return pkgerrors.New(pkgerrors.CodeNotFound, "bundle item not found").
				WithDetails(map[string]any{"bundle_item_id": itemID})
		}
	}
	return nil
}
