package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ProductConfiguration is the normalized form of a customer's product
// configuration: variation selections, add-ons, and bundle choices. Two
// configurations describe the same line when their canonical JSON is
// byte-equal, so every field is coerced and ordered deterministically
// before the struct is built or stored.
type ProductConfiguration struct {
	ColorID          *int64                   `json:"colorId,omitempty"`
	ModelVariationID *int64                   `json:"modelVariationId,omitempty"`
	Variations       map[int64]VariationValue `json:"variations,omitempty"`
	Addons           []AddonSelection         `json:"addons,omitempty"`
	BundleItems      *BundleSelection         `json:"bundleItems,omitempty"`
}

// VariationValue is one selection: an option id for option-backed
// variations, a flag for boolean ones, or free text. Exactly one field
// is set.
type VariationValue struct {
	OptionID *int64
	Flag     *bool
	Text     *string
}

// AddonSelection names a chosen add-on and, when the add-on has options,
// the chosen option.
type AddonSelection struct {
	AddonID  int64  `json:"addonId"`
	OptionID *int64 `json:"optionId,omitempty"`
}

// BundleSelection carries the opt-in bundle members and the per-member
// variation selections for configurable members.
type BundleSelection struct {
	SelectedOptional []int64                     `json:"selectedOptional,omitempty"`
	Configurations   map[int64]ItemConfiguration `json:"configurations,omitempty"`
}

// ItemConfiguration is the variation selection set for one bundle member.
type ItemConfiguration struct {
	Variations map[int64]VariationValue `json:"variations,omitempty"`
}

// OptionValue builds a VariationValue holding an option id.
func OptionValue(id int64) VariationValue {
	return VariationValue{OptionID: &id}
}

// FlagValue builds a VariationValue holding a boolean selection.
func FlagValue(b bool) VariationValue {
	return VariationValue{Flag: &b}
}

// TextValue builds a VariationValue holding free-form text.
func TextValue(s string) VariationValue {
	return VariationValue{Text: &s}
}

// MarshalJSON renders the selection as a bare number, bool, or string.
func (v VariationValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.OptionID != nil:
		return json.Marshal(*v.OptionID)
	case v.Flag != nil:
		return json.Marshal(*v.Flag)
	case v.Text != nil:
		return json.Marshal(*v.Text)
	}
	return []byte("null"), nil
}

// UnmarshalJSON applies the same coercion as normalization: numbers and
// numeric strings become option ids, booleans stay flags, everything
// else is text.
func (v *VariationValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	coerced, ok := coerceVariationValue(raw)
	if !ok {
		return fmt.Errorf("configuration: unsupported variation value %s", string(data))
	}
	*v = coerced
	return nil
}

// UnmarshalJSON decodes loosely-typed input through normalization, so a
// configuration unmarshaled from any JSON source is already canonical.
func (p *ProductConfiguration) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = ProductConfiguration{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	*p = NormalizeConfiguration(raw)
	return nil
}

// ParseConfiguration normalizes a raw JSON payload into a canonical
// configuration. A nil or empty payload yields the zero configuration.
func ParseConfiguration(raw json.RawMessage) (ProductConfiguration, error) {
	var cfg ProductConfiguration
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := cfg.UnmarshalJSON(raw); err != nil {
		return ProductConfiguration{}, err
	}
	return cfg, nil
}

// NormalizeConfiguration coerces a loosely-typed configuration map into
// canonical form. Identifier fields accept numbers and base-10 numeric
// strings; pairs whose identifier cannot be parsed are dropped, as are
// unknown top-level keys. The result is idempotent under renormalization.
func NormalizeConfiguration(raw map[string]any) ProductConfiguration {
	var cfg ProductConfiguration
	if len(raw) == 0 {
		return cfg
	}

	if id, ok := coerceID(raw["colorId"]); ok {
		cfg.ColorID = &id
	}
	if id, ok := coerceID(raw["modelVariationId"]); ok {
		cfg.ModelVariationID = &id
	}
	cfg.Variations = normalizeVariationMap(raw["variations"])
	cfg.Addons = normalizeAddons(raw["addons"])
	cfg.BundleItems = normalizeBundleSelection(raw["bundleItems"])
	return cfg
}

func normalizeVariationMap(raw any) map[int64]VariationValue {
	entries, ok := raw.(map[string]any)
	if !ok || len(entries) == 0 {
		return nil
	}
	out := make(map[int64]VariationValue, len(entries))
	for key, value := range entries {
		id, ok := coerceID(key)
		if !ok {
			continue
		}
		coerced, ok := coerceVariationValue(value)
		if !ok {
			continue
		}
		out[id] = coerced
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeAddons(raw any) []AddonSelection {
	entries, ok := raw.([]any)
	if !ok || len(entries) == 0 {
		return nil
	}
	out := make([]AddonSelection, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		sel, ok := coerceAddonSelection(entry)
		if !ok {
			continue
		}
		key := strconv.FormatInt(sel.AddonID, 10)
		if sel.OptionID != nil {
			key += ":" + strconv.FormatInt(*sel.OptionID, 10)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, sel)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddonID != out[j].AddonID {
			return out[i].AddonID < out[j].AddonID
		}
		left, right := out[i].OptionID, out[j].OptionID
		if left == nil {
			return right != nil
		}
		if right == nil {
			return false
		}
		return *left < *right
	})
	return out
}

func coerceAddonSelection(raw any) (AddonSelection, bool) {
	// Plain numeric entries select an add-on with no option.
	if id, ok := coerceID(raw); ok {
		return AddonSelection{AddonID: id}, true
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return AddonSelection{}, false
	}
	id, ok := coerceID(obj["addonId"])
	if !ok {
		return AddonSelection{}, false
	}
	sel := AddonSelection{AddonID: id}
	if optID, ok := coerceID(obj["optionId"]); ok {
		sel.OptionID = &optID
	}
	return sel, true
}

func normalizeBundleSelection(raw any) *BundleSelection {
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}

	sel := BundleSelection{}
	if entries, ok := obj["selectedOptional"].([]any); ok {
		ids := make([]int64, 0, len(entries))
		seen := make(map[int64]bool, len(entries))
		for _, entry := range entries {
			id, ok := coerceID(entry)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			sel.SelectedOptional = ids
		}
	}

	if entries, ok := obj["configurations"].(map[string]any); ok {
		configs := make(map[int64]ItemConfiguration, len(entries))
		for key, value := range entries {
			itemID, ok := coerceID(key)
			if !ok {
				continue
			}
			itemCfg := coerceItemConfiguration(value)
			if itemCfg.Variations == nil {
				continue
			}
			configs[itemID] = itemCfg
		}
		if len(configs) > 0 {
			sel.Configurations = configs
		}
	}

	if sel.SelectedOptional == nil && sel.Configurations == nil {
		return nil
	}
	return &sel
}

func coerceItemConfiguration(raw any) ItemConfiguration {
	obj, ok := raw.(map[string]any)
	if !ok {
		return ItemConfiguration{}
	}
	// Accept both {"variations": {...}} and a bare selection map.
	if nested, ok := obj["variations"].(map[string]any); ok {
		return ItemConfiguration{Variations: normalizeVariationMap(nested)}
	}
	return ItemConfiguration{Variations: normalizeVariationMap(obj)}
}

func coerceVariationValue(raw any) (VariationValue, bool) {
	switch v := raw.(type) {
	case bool:
		return FlagValue(v), true
	case string:
		if id, ok := coerceID(v); ok {
			return OptionValue(id), true
		}
		return TextValue(v), true
	default:
		if id, ok := coerceID(raw); ok {
			return OptionValue(id), true
		}
		return VariationValue{}, false
	}
}

// coerceID parses an identifier from the loose JSON types clients send.
// Fractional numbers and non-numeric strings are not identifiers.
func coerceID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return id, true
		}
		if f, err := v.Float64(); err == nil && f == math.Trunc(f) && f <= math.MaxInt64 && f >= math.MinInt64 {
			return int64(f), true
		}
		return 0, false
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// IsEmpty reports whether no selection of any kind is present.
func (p ProductConfiguration) IsEmpty() bool {
	return p.ColorID == nil &&
		p.ModelVariationID == nil &&
		len(p.Variations) == 0 &&
		len(p.Addons) == 0 &&
		p.BundleItems == nil
}

// CanonicalJSON renders the configuration in its canonical byte form.
// Map keys marshal as sorted base-10 strings, so equal configurations
// always produce identical bytes.
func (p ProductConfiguration) CanonicalJSON() ([]byte, error) {
	return json.Marshal(p)
}

// Equal reports whether two configurations have identical canonical forms.
func (p ProductConfiguration) Equal(other ProductConfiguration) bool {
	left, err := p.CanonicalJSON()
	if err != nil {
		return false
	}
	right, err := other.CanonicalJSON()
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// SelectedOptionalSet returns the opt-in bundle member ids as a set.
func (p ProductConfiguration) SelectedOptionalSet() map[int64]bool {
	if p.BundleItems == nil || len(p.BundleItems.SelectedOptional) == 0 {
		return nil
	}
	set := make(map[int64]bool, len(p.BundleItems.SelectedOptional))
	for _, id := range p.BundleItems.SelectedOptional {
		set[id] = true
	}
	return set
}

// BundleItemConfiguration returns the nested selections for one bundle
// member as a standalone configuration.
func (p ProductConfiguration) BundleItemConfiguration(itemID int64) ProductConfiguration {
	if p.BundleItems == nil {
		return ProductConfiguration{}
	}
	item, ok := p.BundleItems.Configurations[itemID]
	if !ok {
		return ProductConfiguration{}
	}
	return ProductConfiguration{Variations: item.Variations}
}

// WithoutOptionalItem returns a copy with one opt-in member and its
// nested configuration removed. Used when an optional member is dropped
// for being out of stock.
func (p ProductConfiguration) WithoutOptionalItem(itemID int64) ProductConfiguration {
	if p.BundleItems == nil {
		return p
	}
	sel := BundleSelection{}
	for _, id := range p.BundleItems.SelectedOptional {
		if id != itemID {
			sel.SelectedOptional = append(sel.SelectedOptional, id)
		}
	}
	if len(p.BundleItems.Configurations) > 0 {
		configs := make(map[int64]ItemConfiguration, len(p.BundleItems.Configurations))
		for id, cfg := range p.BundleItems.Configurations {
			if id != itemID {
				configs[id] = cfg
			}
		}
		if len(configs) > 0 {
			sel.Configurations = configs
		}
	}

	out := p
	if sel.SelectedOptional == nil && sel.Configurations == nil {
		out.BundleItems = nil
	} else {
		out.BundleItems = &sel
	}
	return out
}

// Value stores the canonical JSON form.
func (p ProductConfiguration) Value() (driver.Value, error) {
	if p.IsEmpty() {
		return []byte("{}"), nil
	}
	return p.CanonicalJSON()
}

// Scan decodes a stored configuration, renormalizing on the way in.
func (p *ProductConfiguration) Scan(value interface{}) error {
	if value == nil {
		*p = ProductConfiguration{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return p.UnmarshalJSON(raw)
}
