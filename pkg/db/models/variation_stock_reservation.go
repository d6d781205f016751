package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// VariationStockReservation is an option-level hold. Unlike product
// holds, placing one increments the option's reserved_quantity counter,
// so availability math never needs to sum these rows.
type VariationStockReservation struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	VariationOptionID int64                   `gorm:"column:variation_option_id;not null;index"`
	Quantity          int                     `gorm:"column:quantity;not null"`
	Status            enums.ReservationStatus `gorm:"column:status;not null;default:'pending'"`
	ExpiresAt         time.Time               `gorm:"column:expires_at;not null;index"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// IsDue reports whether a pending hold has outlived its window.
func (r *VariationStockReservation) IsDue(now time.Time) bool {
	return r.Status == enums.ReservationStatusPending && now.After(r.ExpiresAt)
}
