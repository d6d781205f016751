package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
)

// Repository persists coupons, their cart attachments, and the
// redemption history that backs per-user limits.
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

// FindByCode matches a coupon code case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("LOWER(code) = LOWER(?)", code).
		First(&coupon).
		Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// FindByID loads one coupon row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).First(&coupon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// CountUserRedemptions is the coupon usage history read: how many times
// this user has redeemed this coupon across past orders.
func (r *Repository) CountUserRedemptions(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).
		Error
	return int(count), err
}

// UpsertCartCoupon writes the discount snapshot for a (cart, coupon)
// pair, overwriting any previous snapshot for the same pair.
func (r *Repository) UpsertCartCoupon(ctx context.Context, row *models.CartCoupon) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "coupon_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"discount_amount", "updated_at"}),
		}).
		Create(row).
		Error
}

// FindCartCoupons returns a cart's attached coupons with their rows.
func (r *Repository) FindCartCoupons(ctx context.Context, cartID uuid.UUID) ([]models.CartCoupon, error) {
	var rows []models.CartCoupon
	err := r.db.WithContext(ctx).
		Preload("Coupon").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).
		Error
	return rows, err
}

// DeleteCartCoupon detaches one coupon from a cart. Returns
// gorm.ErrRecordNotFound when nothing was attached.
func (r *Repository) DeleteCartCoupon(ctx context.Context, cartID, couponID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("cart_id = ? AND coupon_id = ?", cartID, couponID).
		Delete(&models.CartCoupon{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateUsage records one successful redemption.
func (r *Repository) CreateUsage(ctx context.Context, usage *models.CouponUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// IncrementUsageCount bumps the coupon's global redemption counter.
func (r *Repository) IncrementUsageCount(ctx context.Context, couponID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).
		Error
}
