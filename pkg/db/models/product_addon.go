package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductAddon is an optional extra offered with a product.
type ProductAddon struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name;not null"`
	BasePrice decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null;default:0"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	SortOrder int             `gorm:"column:sort_order;not null;default:0"`
	Options   []AddonOption   `gorm:"foreignKey:AddonID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Option returns the loaded addon option with the given id.
func (a *ProductAddon) Option(optionID int64) *AddonOption {
	for i := range a.Options {
		if a.Options[i].ID == optionID {
			return &a.Options[i]
		}
	}
	return nil
}

// AddonOption refines an add-on choice with its own price adjustment.
type AddonOption struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement"`
	AddonID         int64           `gorm:"column:addon_id;not null;index"`
	Label           string          `gorm:"column:label;not null"`
	PriceAdjustment decimal.Decimal `gorm:"column:price_adjustment;type:numeric(12,2);not null;default:0"`
	SortOrder       int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
