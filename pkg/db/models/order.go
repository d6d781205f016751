package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// Order snapshots a cart at checkout. Line items and totals are frozen
// at creation; only the status and provider references move afterwards.
type Order struct {
	ID                    uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber           int64             `gorm:"column:order_number;->"`
	UserID                *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	SessionID             *string           `gorm:"column:session_id;index"`
	CartID                uuid.UUID         `gorm:"column:cart_id;type:uuid;not null;index"`
	Status                enums.OrderStatus `gorm:"column:status;not null;default:'awaiting_payment'"`
	Currency              enums.Currency    `gorm:"column:currency;not null;default:'USD'"`
	Subtotal              decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	SaleDiscount          decimal.Decimal   `gorm:"column:sale_discount;type:numeric(12,2);not null;default:0"`
	CouponDiscount        decimal.Decimal   `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	ShippingTotal         decimal.Decimal   `gorm:"column:shipping_total;type:numeric(12,2);not null;default:0"`
	TaxTotal              decimal.Decimal   `gorm:"column:tax_total;type:numeric(12,2);not null;default:0"`
	GrandTotal            decimal.Decimal   `gorm:"column:grand_total;type:numeric(12,2);not null"`
	ProviderOrderID       *string           `gorm:"column:provider_order_id;index"`
	ProviderTransactionID *string           `gorm:"column:provider_transaction_id"`
	Items                 []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt                *time.Time        `gorm:"column:paid_at"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BelongsTo reports whether the order was placed by the given identity.
func (o *Order) BelongsTo(userID *uuid.UUID, sessionID *string) bool {
	if userID != nil {
		return o.UserID != nil && *o.UserID == *userID
	}
	if sessionID != nil {
		return o.SessionID != nil && *o.SessionID == *sessionID
	}
	return false
}
