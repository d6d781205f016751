package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/types"
)

// CartItem is one cart line: a product, its normalized configuration,
// and the price snapshot taken when the line was last written. Two
// lines are the same line when product and canonical configuration
// match; adds merge instead of duplicating.
type CartItem struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID        uuid.UUID                  `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID     uuid.UUID                  `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity      int                        `gorm:"column:quantity;not null"`
	Configuration types.ProductConfiguration `gorm:"column:configuration;type:jsonb;not null"`
	UnitPrice     decimal.Decimal            `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice    decimal.Decimal            `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
