package enums

import "fmt"

// VariationType describes how a product variation is rendered and selected.
type VariationType string

const (
	VariationTypeModel    VariationType = "model"
	VariationTypeDropdown VariationType = "dropdown"
	VariationTypeImage    VariationType = "image"
	VariationTypeBoolean  VariationType = "boolean"
	VariationTypeText     VariationType = "text"
)

var validVariationTypes = []VariationType{
	VariationTypeModel,
	VariationTypeDropdown,
	VariationTypeImage,
	VariationTypeBoolean,
	VariationTypeText,
}

// String implements fmt.Stringer.
func (v VariationType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VariationType.
func (v VariationType) IsValid() bool {
	for _, candidate := range validVariationTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// SelectsOption reports whether a selection for this variation resolves to an
// option row. Text variations carry free-form input and never do.
func (v VariationType) SelectsOption() bool {
	switch v {
	case VariationTypeModel, VariationTypeDropdown, VariationTypeImage, VariationTypeBoolean:
		return true
	}
	return false
}

// ParseVariationType converts raw input into a VariationType.
func ParseVariationType(value string) (VariationType, error) {
	for _, candidate := range validVariationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid variation type %q", value)
}
