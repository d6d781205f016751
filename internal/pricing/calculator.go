package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/db/models"
	"github.com/mercura-io/storefront-backend/pkg/enums"
	pkgerrors "github.com/mercura-io/storefront-backend/pkg/errors"
	"github.com/mercura-io/storefront-backend/pkg/types"
)

type catalogReader interface {
	GetProductDetail(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Calculator computes a deterministic price for a product in a given
// configuration. It is a pure read of catalog pricing; reservation
// state never enters the math.
type Calculator interface {
	Calculate(ctx context.Context, productID uuid.UUID, cfg types.ProductConfiguration, quantity int) (*Quote, error)
}

// Quote breaks a computed price into its components. Subtotal is the
// per-unit price; Total is Subtotal times quantity.
type Quote struct {
	ProductID            uuid.UUID             `json:"product_id"`
	Quantity             int                   `json:"quantity"`
	BasePrice            decimal.Decimal       `json:"base_price"`
	ColorAdjustment      decimal.Decimal       `json:"color_adjustment"`
	VariationAdjustments []VariationAdjustment `json:"variation_adjustments"`
	AddonsTotal          decimal.Decimal       `json:"addons_total"`
	BundleAdjustment     decimal.Decimal       `json:"bundle_adjustment"`
	Subtotal             decimal.Decimal       `json:"subtotal"`
	Total                decimal.Decimal       `json:"total"`
	Currency             enums.Currency        `json:"currency"`
}

// VariationAdjustment records one selected option's contribution.
type VariationAdjustment struct {
	VariationID   int64           `json:"variation_id"`
	VariationName string          `json:"variation_name"`
	OptionID      int64           `json:"option_id"`
	OptionLabel   string          `json:"option_label"`
	Amount        decimal.Decimal `json:"amount"`
}

type calculator struct {
	catalog catalogReader
}

// NewCalculator builds a calculator reading from the given catalog.
func NewCalculator(catalog catalogReader) (Calculator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &calculator{catalog: catalog}, nil
}

// Calculate prices one line: the product's base price plus every
// selected option's adjustment, add-on totals, and opt-in bundle member
// adjustments. Missing required variations fail the call rather than
// defaulting.
func (c *calculator) Calculate(ctx context.Context, productID uuid.UUID, cfg types.ProductConfiguration, quantity int) (*Quote, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := c.catalog.GetProductDetail(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := RequireSelections(product.Variations, cfg); err != nil {
		return nil, err
	}

	quote := &Quote{
		ProductID:       productID,
		Quantity:        quantity,
		BasePrice:       product.RegularPrice,
		ColorAdjustment: decimal.Zero,
		AddonsTotal:     decimal.Zero,
		Currency:        product.Currency,
	}

	// Color selection carries no adjustment today; the component exists
	// so per-color pricing can land without changing the quote shape.
	if cfg.ModelVariationID != nil {
		adjustment, err := resolveModelAdjustment(product.Variations, *cfg.ModelVariationID)
		if err != nil {
			return nil, err
		}
		if adjustment != nil {
			quote.VariationAdjustments = append(quote.VariationAdjustments, *adjustment)
		}
	}

	variationAdjustments, err := resolveVariationAdjustments(product.Variations, cfg.Variations)
	if err != nil {
		return nil, err
	}
	quote.VariationAdjustments = append(quote.VariationAdjustments, variationAdjustments...)

	addonsTotal, err := resolveAddonsTotal(product.Addons, cfg.Addons)
	if err != nil {
		return nil, err
	}
	quote.AddonsTotal = addonsTotal

	bundleAdjustment, err := resolveBundleAdjustment(product, cfg)
	if err != nil {
		return nil, err
	}
	quote.BundleAdjustment = bundleAdjustment

	subtotal := quote.BasePrice.Add(quote.ColorAdjustment).Add(quote.AddonsTotal).Add(quote.BundleAdjustment)
	for _, adjustment := range quote.VariationAdjustments {
		subtotal = subtotal.Add(adjustment.Amount)
	}
	quote.Subtotal = subtotal
	quote.Total = subtotal.Mul(decimal.NewFromInt(int64(quantity)))
	return quote, nil
}

// RequireSelections verifies that every required variation has a
// selection in the configuration. The bundle composer reuses this for
// each configurable member's own variation rules.
func RequireSelections(variations []models.ProductVariation, cfg types.ProductConfiguration) error {
	var missing []string
	for _, variation := range variations {
		if !variation.IsRequired {
			continue
		}
		if hasSelection(variation, cfg) {
			continue
		}
		missing = append(missing, variation.Name)
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "required variation selection missing").
			WithDetails(map[string]any{"missing_variations": missing})
	}
	return nil
}

func hasSelection(variation models.ProductVariation, cfg types.ProductConfiguration) bool {
	if _, ok := cfg.Variations[variation.ID]; ok {
		return true
	}
	if variation.VariationType == enums.VariationTypeModel && cfg.ModelVariationID != nil {
		return variation.Option(*cfg.ModelVariationID) != nil
	}
	return false
}

func resolveModelAdjustment(variations []models.ProductVariation, optionID int64) (*VariationAdjustment, error) {
	for _, variation := range variations {
		if variation.VariationType != enums.VariationTypeModel {
			continue
		}
		if option := variation.Option(optionID); option != nil {
			return &VariationAdjustment{
				VariationID:   variation.ID,
				VariationName: variation.Name,
				OptionID:      option.ID,
				OptionLabel:   option.Label,
				Amount:        option.PriceAdjustment,
			}, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown model variation option").
		WithDetails(map[string]any{"option_id": optionID})
}

func resolveVariationAdjustments(variations []models.ProductVariation, selections map[int64]types.VariationValue) ([]VariationAdjustment, error) {
	if len(selections) == 0 {
		return nil, nil
	}

	byID := make(map[int64]*models.ProductVariation, len(variations))
	ordered := make([]int64, 0, len(variations))
	for i := range variations {
		byID[variations[i].ID] = &variations[i]
		if _, ok := selections[variations[i].ID]; ok {
			ordered = append(ordered, variations[i].ID)
		}
	}

	var adjustments []VariationAdjustment
	for _, variationID := range ordered {
		variation := byID[variationID]
		value := selections[variationID]

		switch variation.VariationType {
		case enums.VariationTypeText:
			// Free text never adjusts price.
			continue
		case enums.VariationTypeBoolean:
			option := resolveBooleanOption(variation, value)
			if option == nil {
				continue
			}
			adjustments = append(adjustments, VariationAdjustment{
				VariationID:   variation.ID,
				VariationName: variation.Name,
				OptionID:      option.ID,
				OptionLabel:   option.Label,
				Amount:        option.PriceAdjustment,
			})
		default:
			if value.OptionID == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation requires an option selection").
					WithDetails(map[string]any{"variation_id": variation.ID})
			}
			option := variation.Option(*value.OptionID)
			if option == nil {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown variation option").
					WithDetails(map[string]any{"variation_id": variation.ID, "option_id": *value.OptionID})
			}
			adjustments = append(adjustments, VariationAdjustment{
				VariationID:   variation.ID,
				VariationName: variation.Name,
				OptionID:      option.ID,
				OptionLabel:   option.Label,
				Amount:        option.PriceAdjustment,
			})
		}
	}

	for variationID := range selections {
		if _, ok := byID[variationID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection references unknown variation").
				WithDetails(map[string]any{"variation_id": variationID})
		}
	}

	return adjustments, nil
}

// resolveBooleanOption maps a boolean selection to its yes/no option
// row, or to the option selected by id when the client sent one.
func resolveBooleanOption(variation *models.ProductVariation, value types.VariationValue) *models.VariationOption {
	switch {
	case value.OptionID != nil:
		return variation.Option(*value.OptionID)
	case value.Flag != nil:
		label := "No"
		if *value.Flag {
			label = "Yes"
		}
		return variation.OptionByLabel(label)
	}
	return nil
}

func resolveAddonsTotal(addons []models.ProductAddon, selections []types.AddonSelection) (decimal.Decimal, error) {
	total := decimal.Zero
	if len(selections) == 0 {
		return total, nil
	}

	byID := make(map[int64]*models.ProductAddon, len(addons))
	for i := range addons {
		byID[addons[i].ID] = &addons[i]
	}

	for _, selection := range selections {
		addon, ok := byID[selection.AddonID]
		if !ok {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown add-on").
				WithDetails(map[string]any{"addon_id": selection.AddonID})
		}
		if selection.OptionID == nil {
			total = total.Add(addon.BasePrice)
			continue
		}
		option := addon.Option(*selection.OptionID)
		if option == nil {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown add-on option").
				WithDetails(map[string]any{"addon_id": selection.AddonID, "option_id": *selection.OptionID})
		}
		total = total.Add(option.PriceAdjustment)
	}
	return total, nil
}

// resolveBundleAdjustment sums the price adjustments of opt-in bundle
// members. Required members are priced into the bundle's base price.
func resolveBundleAdjustment(product *models.Product, cfg types.ProductConfiguration) (decimal.Decimal, error) {
	total := decimal.Zero
	if cfg.BundleItems == nil || len(cfg.BundleItems.SelectedOptional) == 0 {
		return total, nil
	}
	if !product.IsBundle {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "bundle selections on a non-bundle product")
	}

	byID := make(map[int64]*models.BundleItem, len(product.BundleItems))
	for i := range product.BundleItems {
		byID[product.BundleItems[i].ID] = &product.BundleItems[i]
	}

	for _, itemID := range cfg.BundleItems.SelectedOptional {
		item, ok := byID[itemID]
		if !ok {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown bundle item").
				WithDetails(map[string]any{"bundle_item_id": itemID})
		}
		if item.IsRequired() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "required bundle items cannot be opted into").
				WithDetails(map[string]any{"bundle_item_id": itemID})
		}
		total = total.Add(item.PriceAdjustment)
	}
	return total, nil
}
