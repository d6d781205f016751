package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// BundleItem links a bundle product to one of its member products.
// A member product can appear in a bundle at most once.
type BundleItem struct {
	ID              int64                `gorm:"column:id;primaryKey;autoIncrement"`
	BundleProductID uuid.UUID            `gorm:"column:bundle_product_id;type:uuid;not null;uniqueIndex:idx_bundle_member"`
	ItemProductID   uuid.UUID            `gorm:"column:item_product_id;type:uuid;not null;uniqueIndex:idx_bundle_member"`
	ItemType        enums.BundleItemType `gorm:"column:item_type;not null;default:'required'"`
	IsConfigurable  bool                 `gorm:"column:is_configurable;not null;default:false"`
	PriceAdjustment decimal.Decimal      `gorm:"column:price_adjustment;type:numeric(12,2);not null;default:0"`
	DisplayName     *string              `gorm:"column:display_name"`
	SortOrder       int                  `gorm:"column:sort_order;not null;default:0"`
	ItemProduct     *Product             `gorm:"foreignKey:ItemProductID"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// Label is the customer-facing name for this member, falling back to
// the member product's name when no display name is set.
func (b *BundleItem) Label() string {
	if b.DisplayName != nil && *b.DisplayName != "" {
		return *b.DisplayName
	}
	if b.ItemProduct != nil {
		return b.ItemProduct.Name
	}
	return b.ItemProductID.String()
}

// IsRequired reports whether this member ships with every bundle purchase.
func (b *BundleItem) IsRequired() bool {
	return b.ItemType == enums.BundleItemTypeRequired
}
