package enums

import "fmt"

// CouponDiscountType determines how a coupon's value is applied to cart totals.
type CouponDiscountType string

const (
	CouponDiscountTypePercentage   CouponDiscountType = "percentage"
	CouponDiscountTypeFixed        CouponDiscountType = "fixed"
	CouponDiscountTypeFreeShipping CouponDiscountType = "free_shipping"
)

var validCouponDiscountTypes = []CouponDiscountType{
	CouponDiscountTypePercentage,
	CouponDiscountTypeFixed,
	CouponDiscountTypeFreeShipping,
}

// String implements fmt.Stringer.
func (c CouponDiscountType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CouponDiscountType.
func (c CouponDiscountType) IsValid() bool {
	for _, candidate := range validCouponDiscountTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCouponDiscountType converts raw input into a CouponDiscountType.
func ParseCouponDiscountType(value string) (CouponDiscountType, error) {
	for _, candidate := range validCouponDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon discount type %q", value)
}
