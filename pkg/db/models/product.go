package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercura-io/storefront-backend/pkg/enums"
)

// Product represents a purchasable catalog listing, simple or bundle.
type Product struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU           string              `gorm:"column:sku;not null;uniqueIndex"`
	Name          string              `gorm:"column:name;not null"`
	Description   *string             `gorm:"column:description"`
	Currency      enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	RegularPrice  decimal.Decimal     `gorm:"column:regular_price;type:numeric(12,2);not null"`
	SalePrice     *decimal.Decimal    `gorm:"column:sale_price;type:numeric(12,2)"`
	SaleStartsAt  *time.Time          `gorm:"column:sale_starts_at"`
	SaleEndsAt    *time.Time          `gorm:"column:sale_ends_at"`
	StockQuantity int                 `gorm:"column:stock_quantity;not null;default:0"`
	Backorders    string              `gorm:"column:backorders;not null;default:'no'"`
	IsActive      bool                `gorm:"column:is_active;not null;default:true"`
	IsBundle      bool                `gorm:"column:is_bundle;not null;default:false"`
	Variations    []ProductVariation  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Addons        []ProductAddon      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	BundleItems   []BundleItem        `gorm:"foreignKey:BundleProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// SaleActive reports whether the sale price applies at the given instant.
// A sale needs a price and must be inside its window; open-ended bounds
// are treated as always-started or never-ending.
func (p *Product) SaleActive(now time.Time) bool {
	if p.SalePrice == nil {
		return false
	}
	if p.SaleStartsAt != nil && now.Before(*p.SaleStartsAt) {
		return false
	}
	if p.SaleEndsAt != nil && now.After(*p.SaleEndsAt) {
		return false
	}
	return true
}

// EffectivePrice returns the sale price during an active sale window and
// the regular price otherwise.
func (p *Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.SaleActive(now) {
		return *p.SalePrice
	}
	return p.RegularPrice
}

// SaleDiscountPerUnit is the per-unit saving during an active sale, zero
// otherwise. Negative differences (sale above regular) count as zero.
func (p *Product) SaleDiscountPerUnit(now time.Time) decimal.Decimal {
	if !p.SaleActive(now) {
		return decimal.Zero
	}
	diff := p.RegularPrice.Sub(*p.SalePrice)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}

// AllowsBackorder derives the boolean policy from the stored backorders
// setting. Unrecognized values behave like "no".
func (p *Product) AllowsBackorder() bool {
	policy, err := enums.ParseBackorderPolicy(p.Backorders)
	if err != nil {
		return false
	}
	return policy.Allows()
}

// StockTrackedVariations filters the loaded variations down to those
// that gate stock through their options.
func (p *Product) StockTrackedVariations() []ProductVariation {
	var tracked []ProductVariation
	for _, variation := range p.Variations {
		if variation.TracksStock && variation.VariationType.SelectsOption() {
			tracked = append(tracked, variation)
		}
	}
	return tracked
}
