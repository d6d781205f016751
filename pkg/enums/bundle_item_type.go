package enums

import "fmt"

// BundleItemType marks whether a bundle member ships with every purchase or is opt-in.
type BundleItemType string

const (
	BundleItemTypeRequired BundleItemType = "required"
	BundleItemTypeOptional BundleItemType = "optional"
)

var validBundleItemTypes = []BundleItemType{
	BundleItemTypeRequired,
	BundleItemTypeOptional,
}

// String implements fmt.Stringer.
func (b BundleItemType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BundleItemType.
func (b BundleItemType) IsValid() bool {
	for _, candidate := range validBundleItemTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBundleItemType converts raw input into a BundleItemType.
func ParseBundleItemType(value string) (BundleItemType, error) {
	for _, candidate := range validBundleItemTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bundle item type %q", value)
}
