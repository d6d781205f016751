package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
)

// Service validates coupon codes against a cart and records
// redemptions when payment settles.
type Service interface {
	ValidateForCart(ctx context.Context, input ValidateInput) (*Validated, error)
	RecordRedemption(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) error
}

// ValidateInput carries everything coupon validation needs. UserID is
// nil for guest carts, which skips per-user limits: there is no durable
// identity to count against.
type ValidateInput struct {
	Code     string
	Subtotal decimal.Decimal
	UserID   *uuid.UUID
	Region   string
}

// Validated is an accepted coupon with its computed discount snapshot.
// Free-shipping coupons contribute a zero direct discount; the cart
// waives its shipping line instead.
type Validated struct {
	Coupon   *models.Coupon
	Discount decimal.Decimal
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds a coupon service backed by the provided repository.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// ValidateForCart checks the code end to end: existence, validity
// window, minimum order, global limit, per-user limit, and region, then
// computes the capped discount for the given subtotal.
func (s *service) ValidateForCart(ctx context.Context, input ValidateInput) (*Validated, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if !coupon.IsLive(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not active")
	}
	if coupon.MinimumOrderAmount != nil && input.Subtotal.LessThan(*coupon.MinimumOrderAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order does not meet coupon minimum").
			WithDetails(map[string]any{
				"minimum_order_amount": coupon.MinimumOrderAmount.String(),
				"subtotal":             input.Subtotal.String(),
			})
	}
	if !coupon.HasRemainingUses() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")
	}
	if coupon.PerUserLimit != nil && input.UserID != nil {
		used, err := s.repo.CountUserRedemptions(ctx, coupon.ID, *input.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usage")
		}
		if used >= *coupon.PerUserLimit {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon per-user limit reached").
				WithDetails(map[string]any{"per_user_limit": *coupon.PerUserLimit})
		}
	}
	if len(coupon.AllowedRegions) > 0 && input.Region != "" && !regionAllowed(coupon.AllowedRegions, input.Region) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon not valid in this region")
	}

	return &Validated{
		Coupon:   coupon,
		Discount: ComputeDiscount(coupon, input.Subtotal),
	}, nil
}

// ComputeDiscount applies the coupon's formula to a subtotal, capped at
// the coupon's maximum discount and at the subtotal itself.
func ComputeDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.CouponDiscountTypePercentage:
		discount = subtotal.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100))
	case enums.CouponDiscountTypeFixed:
		discount = coupon.DiscountValue
	case enums.CouponDiscountTypeFreeShipping:
		return decimal.Zero
	default:
		return decimal.Zero
	}

	if coupon.MaximumDiscountAmount != nil && discount.GreaterThan(*coupon.MaximumDiscountAmount) {
		discount = *coupon.MaximumDiscountAmount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount.Round(2)
}

// RecordRedemption writes the usage row and bumps the global counter
// inside the payment-confirmation transaction.
func (s *service) RecordRedemption(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	usage := &models.CouponUsage{
		ID:       uuid.New(),
		CouponID: couponID,
		UserID:   userID,
		OrderID:  orderID,
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
	}
	if err := repo.IncrementUsageCount(ctx, couponID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage count")
	}
	return nil
}

func regionAllowed(regions []string, region string) bool {
	for _, candidate := range regions {
		if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(region)) {
			return true
		}
	}
	return false
}
