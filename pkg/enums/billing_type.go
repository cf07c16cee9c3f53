package enums

import "fmt"

// BillingType classifies entries in the billing history ledger.
type BillingType string

const (
	BillingTypeSubscription BillingType = "subscription"
	BillingTypeRenewal      BillingType = "renewal"
	BillingTypeUpgrade      BillingType = "upgrade"
	BillingTypeDowngrade    BillingType = "downgrade"
	BillingTypeRefund       BillingType = "refund"
	BillingTypeCredit       BillingType = "credit"
)

var validBillingTypes = []BillingType{
	BillingTypeSubscription,
	BillingTypeRenewal,
	BillingTypeUpgrade,
	BillingTypeDowngrade,
	BillingTypeRefund,
	BillingTypeCredit,
}

// String implements fmt.Stringer.
func (b BillingType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingType.
func (b BillingType) IsValid() bool {
	for _, candidate := range validBillingTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingType converts raw input into a BillingType.
func ParseBillingType(value string) (BillingType, error) {
	for _, candidate := range validBillingTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing type %q", value)
}
