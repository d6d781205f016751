package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// Cart is a shopping cart owned by exactly one of a user or a guest
// session. Converted carts survive as historical markers; everything
// else is reaped after its TTL.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	SessionID *string          `gorm:"column:session_id;index"`
	Status    enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	Currency  enums.Currency   `gorm:"column:currency;not null;default:'USD'"`
	ExpiresAt time.Time        `gorm:"column:expires_at;not null"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Coupons   []CartCoupon     `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExpired reports whether the cart's TTL has lapsed.
func (c *Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Item returns the loaded line with the given id.
func (c *Cart) Item(itemID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}
