package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// StockReservation is a product-level hold placed when an order is
// created. Stock is not decremented until the hold is confirmed by a
// successful payment; until then the hold only subtracts from computed
// availability.
type StockReservation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity  int                     `gorm:"column:quantity;not null"`
	Status    enums.ReservationStatus `gorm:"column:status;not null;default:'pending'"`
	ExpiresAt time.Time               `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// IsDue reports whether a pending hold has outlived its window.
func (r *StockReservation) IsDue(now time.Time) bool {
	return r.Status == enums.ReservationStatusPending && now.After(r.ExpiresAt)
}
