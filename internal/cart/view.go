package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

// CartView is the cart as the storefront renders it: lines joined to
// live product rows for display, plus derived totals. Line prices come
// from the stored snapshots; only the sale-discount figure is live.
type CartView struct {
	ID        uuid.UUID        `json:"id"`
	Status    enums.CartStatus `json:"status"`
	Currency  enums.Currency   `json:"currency"`
	ExpiresAt time.Time        `json:"expires_at"`
	Items     []LineView       `json:"items"`
	Coupons   []CouponView     `json:"coupons"`
	Totals    Totals           `json:"totals"`
}

// LineView is one cart line with its product join.
type LineView struct {
	ID            uuid.UUID                  `json:"id"`
	ProductID     uuid.UUID                  `json:"product_id"`
	ProductName   string                     `json:"product_name"`
	SKU           string                     `json:"sku"`
	Quantity      int                        `json:"quantity"`
	Configuration types.ProductConfiguration `json:"configuration"`
	UnitPrice     decimal.Decimal            `json:"unit_price"`
	TotalPrice    decimal.Decimal            `json:"total_price"`
	OnSale        bool                       `json:"on_sale"`
	SaleDiscount  decimal.Decimal            `json:"sale_discount"`
}

// CouponView is one attached coupon with its discount snapshot.
type CouponView struct {
	Code           string                   `json:"code"`
	DiscountType   enums.CouponDiscountType `json:"discount_type"`
	DiscountAmount decimal.Decimal          `json:"discount_amount"`
}

// Totals is the cart's money summary.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	SaleDiscount   decimal.Decimal `json:"sale_discount"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	ShippingTotal  decimal.Decimal `json:"shipping_total"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	FreeShipping   bool            `json:"free_shipping"`
}

// Warning reports a non-fatal adjustment made during a cart mutation,
// such as an out-of-stock optional bundle item being dropped.
type Warning struct {
	Type    enums.CartWarningType `json:"type"`
	Message string                `json:"message"`
}

// MutationResult pairs the post-mutation cart with any warnings.
type MutationResult struct {
	Cart     *CartView `json:"cart"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ComputeTotals derives the cart's money summary. Subtotal sums stored
// line totals. The sale discount is recomputed against live product
// rows so an expired sale stops discounting without a cart write.
// Coupon snapshots are re-capped at the remaining payable amount, in
// apply order, so stacked coupons never push the total negative.
func ComputeTotals(cart *models.Cart, products map[uuid.UUID]models.Product, shippingFlat decimal.Decimal, now time.Time) Totals {
	totals := Totals{
		Subtotal:       decimal.Zero,
		SaleDiscount:   decimal.Zero,
		CouponDiscount: decimal.Zero,
		ShippingTotal:  decimal.Zero,
		TaxTotal:       decimal.Zero,
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		totals.Subtotal = totals.Subtotal.Add(item.TotalPrice)
		if product, ok := products[item.ProductID]; ok {
			perUnit := product.SaleDiscountPerUnit(now)
			if perUnit.IsPositive() {
				totals.SaleDiscount = totals.SaleDiscount.
					Add(perUnit.Mul(decimal.NewFromInt(int64(item.Quantity))))
			}
		}
	}

	remaining := totals.Subtotal.Sub(totals.SaleDiscount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	for i := range cart.Coupons {
		attached := &cart.Coupons[i]
		discount := attached.DiscountAmount
		if discount.GreaterThan(remaining) {
			discount = remaining
		}
		totals.CouponDiscount = totals.CouponDiscount.Add(discount)
		remaining = remaining.Sub(discount)
		if attached.Coupon != nil && attached.Coupon.DiscountType == enums.CouponDiscountTypeFreeShipping {
			totals.FreeShipping = true
		}
	}

	if len(cart.Items) > 0 && !totals.FreeShipping {
		totals.ShippingTotal = shippingFlat
	}
	totals.GrandTotal = remaining.Add(totals.ShippingTotal).Add(totals.TaxTotal)
	return totals
}

func buildView(cart *models.Cart, products map[uuid.UUID]models.Product, shippingFlat decimal.Decimal, now time.Time) *CartView {
	view := &CartView{
		ID:        cart.ID,
		Status:    cart.Status,
		Currency:  cart.Currency,
		ExpiresAt: cart.ExpiresAt,
		Items:     []LineView{},
		Coupons:   []CouponView{},
		Totals:    ComputeTotals(cart, products, shippingFlat, now),
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		line := LineView{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Configuration: item.Configuration,
			UnitPrice:     item.UnitPrice,
			TotalPrice:    item.TotalPrice,
			SaleDiscount:  decimal.Zero,
		}
		if product, ok := products[item.ProductID]; ok {
			line.ProductName = product.Name
			line.SKU = product.SKU
			line.OnSale = product.SaleActive(now)
			perUnit := product.SaleDiscountPerUnit(now)
			if perUnit.IsPositive() {
				line.SaleDiscount = perUnit.Mul(decimal.NewFromInt(int64(item.Quantity)))
			}
		}
		view.Items = append(view.Items, line)
	}

	for i := range cart.Coupons {
		attached := &cart.Coupons[i]
		couponView := CouponView{DiscountAmount: attached.DiscountAmount}
		if attached.Coupon != nil {
			couponView.Code = attached.Coupon.Code
			couponView.DiscountType = attached.Coupon.DiscountType
		}
		view.Coupons = append(view.Coupons, couponView)
	}

	return view
}
