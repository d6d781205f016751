package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	"github.com/mercura-io/storefront-backend/pkg/pagination"
)

// Repository persists orders and their immutable line snapshots.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the order with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindByID loads one order with its items.
func (r *Repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&order, "id = ?", orderID).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByProviderOrderID resolves the order a provider webhook refers to.
func (r *Repository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "provider_order_id = ?", providerOrderID).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus moves the order's lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).
		Error
}

// SetProviderOrderID stores the provider-side payment reference.
func (r *Repository) SetProviderOrderID(ctx context.Context, orderID uuid.UUID, providerOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("provider_order_id", providerOrderID).
		Error
}

// RecordPayment marks the order paid with its settlement reference.
func (r *Repository) RecordPayment(ctx context.Context, orderID uuid.UUID, transactionID string, paidAt time.Time) error {
	updates := map[string]any{
		"status":  enums.OrderStatusPaid,
		"paid_at": paidAt,
	}
	if transactionID != "" {
		updates["provider_transaction_id"] = transactionID
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).
		Error
}

// FindStaleAwaitingPayment lists orders stuck awaiting payment since
// before the cutoff, oldest first, for the sweeper.
func (r *Repository) FindStaleAwaitingPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", enums.OrderStatusAwaitingPayment, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	return rows, err
}

// ListByIdentity returns an identity's orders, newest first. A cursor
// resumes the page after the given (created_at, id) pair.
func (r *Repository) ListByIdentity(ctx context.Context, userID *uuid.UUID, sessionID *string, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Preload("Items")
	switch {
	case userID != nil:
		query = query.Where("user_id = ?", *userID)
	case sessionID != nil:
		query = query.Where("session_id = ?", *sessionID)
	default:
		return nil, gorm.ErrRecordNotFound
	}
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.Order
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
