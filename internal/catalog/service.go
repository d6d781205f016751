package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/pkg/db"
	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
)

// Service exposes the catalog read surface consumed by pricing, stock,
// and cart code, plus bundle membership management.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error)
	GetBundleItems(ctx context.Context, bundleProductID uuid.UUID) ([]models.BundleItem, error)
	AssignBundleItem(ctx context.Context, input AssignBundleItemInput) (*models.BundleItem, error)
	RemoveBundleItem(ctx context.Context, bundleProductID uuid.UUID, bundleItemID int64) error
}

// AssignBundleItemInput holds the payload to add a member to a bundle.
type AssignBundleItemInput struct {
	BundleProductID uuid.UUID
	ItemProductID   uuid.UUID
	ItemType        enums.BundleItemType
	IsConfigurable  bool
	PriceAdjustment decimal.Decimal
	DisplayName     *string
	SortOrder       int
}

type service struct {
	repo *Repository
}

// NewService builds a catalog service backed by the provided repository.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// GetProduct returns the bare product row.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "product not found")
	}
	return product, nil
}

// GetProductDetail returns the product with variations, add-ons, and
// bundle members preloaded.
func (s *service) GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "product not found")
	}
	return product, nil
}

// GetVariations returns the product's variations with options.
func (s *service) GetVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error) {
	rows, err := s.repo.FindVariations(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variations")
	}
	return rows, nil
}

// GetBundleItems returns a bundle's member rows.
func (s *service) GetBundleItems(ctx context.Context, bundleProductID uuid.UUID) ([]models.BundleItem, error) {
	rows, err := s.repo.FindBundleItems(ctx, bundleProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bundle items")
	}
	return rows, nil
}

// AssignBundleItem adds a member product to a bundle. A product can be
// a member of a given bundle at most once; a second assignment is a
// conflict, not an upsert.
func (s *service) AssignBundleItem(ctx context.Context, input AssignBundleItemInput) (*models.BundleItem, error) {
	if !input.ItemType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid bundle item type")
	}
	if input.BundleProductID == input.ItemProductID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle cannot contain itself")
	}

	bundle, err := s.repo.FindByID(ctx, input.BundleProductID)
	if err != nil {
		return nil, mapNotFound(err, "bundle product not found")
	}
	if !bundle.IsBundle {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not a bundle")
	}
	member, err := s.repo.FindByID(ctx, input.ItemProductID)
	if err != nil {
		return nil, mapNotFound(err, "member product not found")
	}
	if member.IsBundle {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundles cannot nest bundles")
	}

	item := &models.BundleItem{
		BundleProductID: input.BundleProductID,
		ItemProductID:   input.ItemProductID,
		ItemType:        input.ItemType,
		IsConfigurable:  input.IsConfigurable,
		PriceAdjustment: input.PriceAdjustment,
		DisplayName:     input.DisplayName,
		SortOrder:       input.SortOrder,
	}
	created, err := s.repo.CreateBundleItem(ctx, item)
	if err != nil {
		if db.IsUniqueViolation(err, "idx_bundle_member") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already assigned to bundle").
				WithDetails(map[string]any{
					"bundle_product_id": input.BundleProductID,
					"item_product_id":   input.ItemProductID,
				})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert bundle item")
	}
	created.ItemProduct = member
	return created, nil
}

// RemoveBundleItem removes a member from a bundle.
func (s *service) RemoveBundleItem(ctx context.Context, bundleProductID uuid.UUID, bundleItemID int64) error {
	if err := s.repo.DeleteBundleItem(ctx, bundleProductID, bundleItemID); err != nil {
		return mapNotFound(err, "bundle item not found")
	}
	return nil
}

func mapNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog query")
}
