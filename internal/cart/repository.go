package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// Repository persists carts and their lines.
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

func (r *Repository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Coupons.Coupon")
}

// FindActiveByIdentity loads the identity's non-converted cart with
// items and coupons. Converted carts are historical markers and never
// resolved here.
func (r *Repository) FindActiveByIdentity(ctx context.Context, identity Identity) (*models.Cart, error) {
	query := r.preloaded(ctx).Where("status <> ?", enums.CartStatusConverted)
	if userID, ok := identity.UserID(); ok {
		query = query.Where("user_id = ?", userID)
	} else if sessionID, ok := identity.SessionID(); ok {
		query = query.Where("session_id = ?", sessionID)
	} else {
		return nil, gorm.ErrRecordNotFound
	}

	var cart models.Cart
	if err := query.Order("created_at DESC").First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID loads one cart with items and coupons.
func (r *Repository) FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.preloaded(ctx).First(&cart, "id = ?", cartID).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a cart row.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// Delete removes a cart and its dependents.
func (r *Repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartCoupon{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", cartID).Delete(&models.Cart{}).Error
}

// DeleteItems clears every line of a cart.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// UpdateStatus moves the cart's lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, cartID uuid.UUID, status enums.CartStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("status", status).
		Error
}

// TouchExpiry pushes the cart's TTL out after a write.
func (r *Repository) TouchExpiry(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("expires_at", expiresAt).
		Error
}

// SetOwner reassigns a cart to a user, clearing the guest session ref.
func (r *Repository) SetOwner(ctx context.Context, cartID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"user_id": userID, "session_id": nil}).
		Error
}

// CreateItem inserts a cart line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem rewrites a line's quantity and price snapshot.
func (r *Repository) UpdateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"quantity":    item.Quantity,
			"unit_price":  item.UnitPrice,
			"total_price": item.TotalPrice,
		}).
		Error
	if err != nil {
		return nil, err
	}
	return item, nil
}

// MoveItem re-points a line at another cart.
func (r *Repository) MoveItem(ctx context.Context, itemID, targetCartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("cart_id", targetCartID).
		Error
}

// FindItem loads one cart line.
func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes one cart line. Returns gorm.ErrRecordNotFound when
// no row matched.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LoadProducts batch-loads live product rows for display joins.
func (r *Repository) LoadProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]models.Product{}, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

// FindExpiredCarts lists active carts past their TTL, oldest first, for
// the sweeper. Carts parked in checkout belong to a live order attempt
// and are the order sweeper's to restore, never this query's to delete.
func (r *Repository) FindExpiredCarts(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var rows []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.CartStatusActive, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	return rows, err
}
