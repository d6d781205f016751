package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order awaiting payment, with its
// inventory held.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber int64           `json:"order_number"`
	CartID      uuid.UUID       `json:"cart_id"`
	UserID      *uuid.UUID      `json:"user_id,omitempty"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	Currency    enums.Currency  `json:"currency"`
	ItemCount   int             `json:"item_count"`
}

// OrderPaidEvent is emitted when payment settles and stock is deducted.
type OrderPaidEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   int64           `json:"order_number"`
	UserID        *uuid.UUID      `json:"user_id,omitempty"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Currency      enums.Currency  `json:"currency"`
	TransactionID string          `json:"transaction_id,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

// OrderPaymentFailedEvent reports a failed or cancelled payment whose
// holds have been released.
type OrderPaymentFailedEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber int64      `json:"order_number"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// OrderExpiredEvent reports an order reclaimed by the expiry sweeper.
type OrderExpiredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// CartConvertedEvent marks a cart that became an order.
type CartConvertedEvent struct {
	CartID  uuid.UUID `json:"cart_id"`
	OrderID uuid.UUID `json:"order_id"`
}
