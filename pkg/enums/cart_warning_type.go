package enums

import "fmt"

// CartWarningType enumerates non-fatal adjustments reported alongside cart mutations.
type CartWarningType string

const (
	CartWarningTypeOptionalItemRemoved CartWarningType = "optional_item_removed"
	CartWarningTypeItemUnavailable     CartWarningType = "item_unavailable"
	CartWarningTypeCouponRemoved       CartWarningType = "coupon_removed"
)

var validCartWarningTypes = []CartWarningType{
	CartWarningTypeOptionalItemRemoved,
	CartWarningTypeItemUnavailable,
	CartWarningTypeCouponRemoved,
}

// String implements fmt.Stringer.
func (c CartWarningType) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CartWarningType) IsValid() bool {
	for _, candidate := range validCartWarningTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartWarningType converts raw input into a CartWarningType.
func ParseCartWarningType(value string) (CartWarningType, error) {
	for _, candidate := range validCartWarningTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart warning type %q", value)
}
