package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// Repository persists stock holds at both granularities and owns the
// option reservation counter.
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

// FindVariationOption loads one option row.
func (r *Repository) FindVariationOption(ctx context.Context, optionID int64) (*models.VariationOption, error) {
	var option models.VariationOption
	if err := r.db.WithContext(ctx).First(&option, "id = ?", optionID).Error; err != nil {
		return nil, err
	}
	return &option, nil
}

// TryReserveOptionStock bumps the option's reserved counter by qty only
// when the hold still fits under the stock count. Zero rows affected is
// the rejection signal: a concurrent hold got there first. This
// compare-and-swap is the oversell guard for option-level stock.
func (r *Repository) TryReserveOptionStock(ctx context.Context, optionID int64, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.VariationOption{}).
		Where("id = ? AND reserved_quantity + ? <= stock_quantity", optionID, qty).
		UpdateColumn("reserved_quantity", gorm.Expr("reserved_quantity + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AdjustOptionCounters applies deltas to one option's counters.
func (r *Repository) AdjustOptionCounters(ctx context.Context, optionID int64, stockDelta, reservedDelta int) error {
	updates := map[string]any{}
	if stockDelta != 0 {
		updates["stock_quantity"] = gorm.Expr("stock_quantity + ?", stockDelta)
	}
	if reservedDelta != 0 {
		updates["reserved_quantity"] = gorm.Expr("reserved_quantity + ?", reservedDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.VariationOption{}).
		Where("id = ?", optionID).
		UpdateColumns(updates).
		Error
}

// CreateVariationReservation inserts an option-level hold row.
func (r *Repository) CreateVariationReservation(ctx context.Context, reservation *models.VariationStockReservation) (*models.VariationStockReservation, error) {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return nil, err
	}
	return reservation, nil
}

// CreateProductReservation inserts a product-level hold row.
func (r *Repository) CreateProductReservation(ctx context.Context, reservation *models.StockReservation) (*models.StockReservation, error) {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return nil, err
	}
	return reservation, nil
}

// FindVariationReservations returns an order's option-level holds in
// the given statuses, oldest first.
func (r *Repository) FindVariationReservations(ctx context.Context, orderID uuid.UUID, statuses ...enums.ReservationStatus) ([]models.VariationStockReservation, error) {
	var rows []models.VariationStockReservation
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("created_at ASC").Find(&rows).Error
	return rows, err
}

// FindProductReservations returns an order's product-level holds in the
// given statuses, oldest first.
func (r *Repository) FindProductReservations(ctx context.Context, orderID uuid.UUID, statuses ...enums.ReservationStatus) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("created_at ASC").Find(&rows).Error
	return rows, err
}

// UpdateVariationReservationStatus flips one option-level hold.
func (r *Repository) UpdateVariationReservationStatus(ctx context.Context, reservationID uuid.UUID, status enums.ReservationStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.VariationStockReservation{}).
		Where("id = ?", reservationID).
		Update("status", status).
		Error
}

// UpdateProductReservationStatus flips one product-level hold.
func (r *Repository) UpdateProductReservationStatus(ctx context.Context, reservationID uuid.UUID, status enums.ReservationStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ?", reservationID).
		Update("status", status).
		Error
}

// SumPendingProductReservations totals the unexpired pending holds on a
// product. Product-level availability subtracts this from stock.
func (r *Repository) SumPendingProductReservations(ctx context.Context, productID uuid.UUID, now time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("product_id = ? AND status = ? AND expires_at > ?", productID, enums.ReservationStatusPending, now).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).
		Error
	return int(total), err
}

// AdjustProductStock applies a delta to a product's stock count.
func (r *Repository) AdjustProductStock(ctx context.Context, productID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", delta)).
		Error
}

// LockProduct reads the product row under a row-level lock so the
// availability sum and the hold insert see a stable stock count.
// SQLite (tests) has no row locks; writes there serialize on the
// database lock instead.
func (r *Repository) LockProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var product models.Product
	if err := query.First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindDueReservationOrders lists order ids that still carry pending
// holds past their expiry, at either granularity.
func (r *Repository) FindDueReservationOrders(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT order_id FROM (
			SELECT order_id FROM stock_reservations
			WHERE status = ? AND expires_at <= ?
			UNION
			SELECT order_id FROM variation_stock_reservations
			WHERE status = ? AND expires_at <= ?
		) due
		LIMIT ?`,
		enums.ReservationStatusPending, cutoff,
		enums.ReservationStatusPending, cutoff,
		limit,
	).Scan(&ids).Error
	return ids, err
}
