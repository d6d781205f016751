package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// ProductVariation is one configurable axis of a product.
type ProductVariation struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID     uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	Name          string              `gorm:"column:name;not null"`
	VariationType enums.VariationType `gorm:"column:variation_type;not null"`
	IsRequired    bool                `gorm:"column:is_required;not null;default:false"`
	TracksStock   bool                `gorm:"column:tracks_stock;not null;default:false"`
	SortOrder     int                 `gorm:"column:sort_order;not null;default:0"`
	Options       []VariationOption   `gorm:"foreignKey:VariationID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Option returns the loaded option with the given id.
func (v *ProductVariation) Option(optionID int64) *VariationOption {
	for i := range v.Options {
		if v.Options[i].ID == optionID {
			return &v.Options[i]
		}
	}
	return nil
}

// OptionByLabel matches an option label case-insensitively. Boolean
// variations resolve their yes/no rows this way.
func (v *ProductVariation) OptionByLabel(label string) *VariationOption {
	for i := range v.Options {
		if strings.EqualFold(v.Options[i].Label, label) {
			return &v.Options[i]
		}
	}
	return nil
}

// VariationOption is a selectable value carrying its own price
// adjustment and, for stock-tracked variations, its own counters.
// reserved_quantity never exceeds stock_quantity except transiently
// between a hold and its confirmation or release.
type VariationOption struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement"`
	VariationID      int64           `gorm:"column:variation_id;not null;index"`
	Label            string          `gorm:"column:label;not null"`
	PriceAdjustment  decimal.Decimal `gorm:"column:price_adjustment;type:numeric(12,2);not null;default:0"`
	StockQuantity    int             `gorm:"column:stock_quantity;not null;default:0"`
	ReservedQuantity int             `gorm:"column:reserved_quantity;not null;default:0"`
	SortOrder        int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// FreeStock is the unreserved quantity, floored at zero.
func (o *VariationOption) FreeStock() int {
	free := o.StockQuantity - o.ReservedQuantity
	if free < 0 {
		return 0
	}
	return free
}
