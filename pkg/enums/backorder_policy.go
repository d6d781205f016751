package enums

import "fmt"

// BackorderPolicy is the merchant's setting for selling past available stock.
// Stored as text on products; unrecognized values are treated as "no".
type BackorderPolicy string

const (
	BackorderPolicyNo     BackorderPolicy = "no"
	BackorderPolicyNotify BackorderPolicy = "notify"
	BackorderPolicyYes    BackorderPolicy = "yes"
)

var validBackorderPolicies = []BackorderPolicy{
	BackorderPolicyNo,
	BackorderPolicyNotify,
	BackorderPolicyYes,
}

// String implements fmt.Stringer.
func (b BackorderPolicy) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BackorderPolicy.
func (b BackorderPolicy) IsValid() bool {
	for _, candidate := range validBackorderPolicies {
		if candidate == b {
			return true
		}
	}
	return false
}

// Allows reports whether orders may exceed available stock under this policy.
func (b BackorderPolicy) Allows() bool {
	return b == BackorderPolicyYes || b == BackorderPolicyNotify
}

// ParseBackorderPolicy converts raw input into a BackorderPolicy.
func ParseBackorderPolicy(value string) (BackorderPolicy, error) {
	for _, candidate := range validBackorderPolicies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid backorder policy %q", value)
}
