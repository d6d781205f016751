package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/types"
)

// OrderItem is an immutable snapshot of one cart line at checkout.
type OrderItem struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID                  `gorm:"column:product_id;type:uuid;not null"`
	ProductName   string                     `gorm:"column:product_name;not null"`
	Quantity      int                        `gorm:"column:quantity;not null"`
	Configuration types.ProductConfiguration `gorm:"column:configuration;type:jsonb;not null"`
	UnitPrice     decimal.Decimal            `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice    decimal.Decimal            `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
