package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
)

// Repository wires together catalog persistence: products, variations,
// add-ons, and bundle membership.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindDetail fetches a product with its variations, add-ons, and bundle
// membership preloaded in display order.
func (r *Repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variations", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Variations.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Addons", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("sort_order ASC, id ASC")
		}).
		Preload("Addons.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("BundleItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("BundleItems.ItemProduct").
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariations loads a product's variations with their options.
func (r *Repository) FindVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error) {
	var rows []models.ProductVariation
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Where("product_id = ?", productID).
		Order("sort_order ASC, id ASC").
		Find(&rows).
		Error
	return rows, err
}

// FindAddons loads a product's active add-ons with their options.
func (r *Repository) FindAddons(ctx context.Context, productID uuid.UUID) ([]models.ProductAddon, error) {
	var rows []models.ProductAddon
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("sort_order ASC, id ASC").
		Find(&rows).
		Error
	return rows, err
}

// FindBundleItems loads a bundle's member rows with their products.
func (r *Repository) FindBundleItems(ctx context.Context, bundleProductID uuid.UUID) ([]models.BundleItem, error) {
	var rows []models.BundleItem
	err := r.db.WithContext(ctx).
		Preload("ItemProduct").
		Where("bundle_product_id = ?", bundleProductID).
		Order("sort_order ASC, id ASC").
		Find(&rows).
		Error
	return rows, err
}

// FindBundleItem loads one bundle member row with its product.
func (r *Repository) FindBundleItem(ctx context.Context, bundleItemID int64) (*models.BundleItem, error) {
	var row models.BundleItem
	err := r.db.WithContext(ctx).
		Preload("ItemProduct").
		First(&row, "id = ?", bundleItemID).
		Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindVariationOption loads one option row.
func (r *Repository) FindVariationOption(ctx context.Context, optionID int64) (*models.VariationOption, error) {
	var option models.VariationOption
	if err := r.db.WithContext(ctx).First(&option, "id = ?", optionID).Error; err != nil {
		return nil, err
	}
	return &option, nil
}

// CreateBundleItem inserts a bundle membership row.
func (r *Repository) CreateBundleItem(ctx context.Context, item *models.BundleItem) (*models.BundleItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteBundleItem removes a member from a bundle. Returns
// gorm.ErrRecordNotFound when no row matched.
func (r *Repository) DeleteBundleItem(ctx context.Context, bundleProductID uuid.UUID, bundleItemID int64) error {
	result := r.db.WithContext(ctx).
		Where("bundle_product_id = ? AND id = ?", bundleProductID, bundleItemID).
		Delete(&models.BundleItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
