package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// Coupon is a merchant-defined discount code. Codes are unique
// case-insensitively (enforced by a LOWER(code) index) and matched the
// same way.
type Coupon struct {
	ID                    uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                  string                   `gorm:"column:code;not null"`
	Description           *string                  `gorm:"column:description"`
	DiscountType          enums.CouponDiscountType `gorm:"column:discount_type;not null"`
	DiscountValue         decimal.Decimal          `gorm:"column:discount_value;type:numeric(12,2);not null;default:0"`
	MinimumOrderAmount    *decimal.Decimal         `gorm:"column:minimum_order_amount;type:numeric(12,2)"`
	MaximumDiscountAmount *decimal.Decimal         `gorm:"column:maximum_discount_amount;type:numeric(12,2)"`
	UsageLimit            *int                     `gorm:"column:usage_limit"`
	UsageCount            int                      `gorm:"column:usage_count;not null;default:0"`
	PerUserLimit          *int                     `gorm:"column:per_user_limit"`
	StartsAt              *time.Time               `gorm:"column:starts_at"`
	ExpiresAt             *time.Time               `gorm:"column:expires_at"`
	AllowedRegions        pq.StringArray           `gorm:"column:allowed_regions;type:text[]"`
	IsActive              bool                     `gorm:"column:is_active;not null;default:true"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLive reports whether the coupon is active and inside its validity
// window at the given instant.
func (c *Coupon) IsLive(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}

// HasRemainingUses reports whether the global usage limit still allows
// another redemption.
func (c *Coupon) HasRemainingUses() bool {
	if c.UsageLimit == nil {
		return true
	}
	return c.UsageCount < *c.UsageLimit
}

// CartCoupon attaches a coupon to a cart with the discount snapshot
// computed at apply time. Reapplying the same coupon overwrites the
// snapshot rather than stacking.
type CartCoupon struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_coupon"`
	CouponID       uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:idx_cart_coupon"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	Coupon         *Coupon         `gorm:"foreignKey:CouponID"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// CouponUsage is one successful redemption, written when payment for
// the order settles. Per-user limits count these rows; guest checkouts
// record a nil user and are only bounded by the global limit.
type CouponUsage struct {
	ID       uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID uuid.UUID  `gorm:"column:coupon_id;type:uuid;not null;index"`
	UserID   *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	OrderID  uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	UsedAt   time.Time  `gorm:"column:used_at;autoCreateTime"`
}
