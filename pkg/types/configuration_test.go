package types

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestParseConfigurationCoercesIdentifiers(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfiguration([]byte(`{
		"colorId": "2",
		"modelVariationId": 5,
		"variations": {"3": "7", "5": true, "6": "engrave me"},
		"addons": [{"addonId": "1", "optionId": 4}, 2]
	}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}

	if cfg.ColorID == nil || *cfg.ColorID != 2 {
		t.Fatalf("expected colorId 2, got %v", cfg.ColorID)
	}
	if cfg.ModelVariationID == nil || *cfg.ModelVariationID != 5 {
		t.Fatalf("expected modelVariationId 5, got %v", cfg.ModelVariationID)
	}

	sel, ok := cfg.Variations[3]
	if !ok || sel.OptionID == nil || *sel.OptionID != 7 {
		t.Fatalf("expected variation 3 coerced to option 7, got %+v", sel)
	}
	if flag, ok := cfg.Variations[5]; !ok || flag.Flag == nil || !*flag.Flag {
		t.Fatalf("expected variation 5 to stay boolean true")
	}
	if text, ok := cfg.Variations[6]; !ok || text.Text == nil || *text.Text != "engrave me" {
		t.Fatalf("expected variation 6 to stay text, got %+v", text)
	}

	if len(cfg.Addons) != 2 {
		t.Fatalf("expected 2 addons, got %d", len(cfg.Addons))
	}
	if cfg.Addons[0].AddonID != 1 || cfg.Addons[0].OptionID == nil || *cfg.Addons[0].OptionID != 4 {
		t.Fatalf("unexpected first addon %+v", cfg.Addons[0])
	}
	if cfg.Addons[1].AddonID != 2 || cfg.Addons[1].OptionID != nil {
		t.Fatalf("unexpected second addon %+v", cfg.Addons[1])
	}
}

func TestParseConfigurationDropsUnparseablePairs(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfiguration([]byte(`{
		"colorId": "teal",
		"variations": {"abc": 1, "2": 9, "3": null},
		"addons": [{"addonId": "x"}, {"optionId": 4}],
		"unknownField": {"nested": true}
	}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}

	if cfg.ColorID != nil {
		t.Fatalf("expected unparseable colorId to be dropped, got %v", *cfg.ColorID)
	}
	if len(cfg.Variations) != 1 {
		t.Fatalf("expected only variation 2 to survive, got %v", cfg.Variations)
	}
	if _, ok := cfg.Variations[2]; !ok {
		t.Fatalf("expected variation 2 to survive")
	}
	if cfg.Addons != nil {
		t.Fatalf("expected addons without ids to be dropped, got %v", cfg.Addons)
	}
}

func TestCanonicalJSONIsDeterministic(t *testing.T) {
	t.Parallel()

	left, err := ParseConfiguration([]byte(`{"variations": {"3": 7, "1": 2}, "addons": [2, {"addonId": 1}]}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}
	right, err := ParseConfiguration([]byte(`{"addons": [{"addonId": 1}, "2"], "variations": {"1": "2", "3": "7"}}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}

	leftJSON, err := left.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	rightJSON, err := right.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if !bytes.Equal(leftJSON, rightJSON) {
		t.Fatalf("expected identical canonical JSON:\n%s\n%s", leftJSON, rightJSON)
	}
	if !left.Equal(right) {
		t.Fatalf("expected configurations to compare equal")
	}
}

func TestNormalizeConfigurationIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfiguration([]byte(`{
		"modelVariationId": 4,
		"variations": {"9": "12", "10": false},
		"bundleItems": {"selectedOptional": [3, "1", 3], "configurations": {"1": {"variations": {"2": 5}}}}
	}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}

	first, err := cfg.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}

	var again ProductConfiguration
	if err := json.Unmarshal(first, &again); err != nil {
		t.Fatalf("Unmarshal(canonical) error = %v", err)
	}
	second, err := again.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("renormalization changed canonical form:\n%s\n%s", first, second)
	}

	if got := again.BundleItems.SelectedOptional; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected deduped sorted selectedOptional [1 3], got %v", got)
	}
}

func TestConfigurationValueAndScan(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfiguration([]byte(`{"variations": {"3": 7}, "addons": [{"addonId": 2, "optionId": 4}]}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}

	val, err := cfg.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var decoded ProductConfiguration
	if err := decoded.Scan(val); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !cfg.Equal(decoded) {
		t.Fatalf("expected scan to restore an equal configuration")
	}
}

func TestWithoutOptionalItem(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfiguration([]byte(`{
		"bundleItems": {
			"selectedOptional": [1, 2],
			"configurations": {"2": {"variations": {"5": 6}}}
		}
	}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}

	trimmed := cfg.WithoutOptionalItem(2)
	if trimmed.BundleItems == nil {
		t.Fatalf("expected remaining optional selection")
	}
	if got := trimmed.BundleItems.SelectedOptional; len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected selectedOptional [1], got %v", got)
	}
	if trimmed.BundleItems.Configurations != nil {
		t.Fatalf("expected member 2 configuration removed, got %v", trimmed.BundleItems.Configurations)
	}

	emptied := trimmed.WithoutOptionalItem(1)
	if emptied.BundleItems != nil {
		t.Fatalf("expected bundle selection cleared once empty")
	}

	// The original is untouched.
	if got := cfg.BundleItems.SelectedOptional; len(got) != 2 {
		t.Fatalf("expected source configuration unchanged, got %v", got)
	}
}

func TestEqualDistinguishesConfigurations(t *testing.T) {
	t.Parallel()

	base, err := ParseConfiguration([]byte(`{"variations": {"3": 7}}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}
	other, err := ParseConfiguration([]byte(`{"variations": {"3": 8}}`))
	if err != nil {
		t.Fatalf("ParseConfiguration() error = %v", err)
	}

	if base.Equal(other) {
		t.Fatalf("expected differing selections to compare unequal")
	}
	if !base.Equal(base) {
		t.Fatalf("expected configuration to equal itself")
	}
}
