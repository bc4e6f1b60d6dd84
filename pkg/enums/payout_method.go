package enums

import "fmt"

// PayoutMethod selects how a seller receives a payout.
type PayoutMethod string

const (
	PayoutMethodBankAccount PayoutMethod = "bank_account"
	PayoutMethodMobileMoney PayoutMethod = "mobile_money"
)

var validPayoutMethods = []PayoutMethod{
	PayoutMethodBankAccount,
	PayoutMethodMobileMoney,
}

// String implements fmt.Stringer.
func (m PayoutMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PayoutMethod.
func (m PayoutMethod) IsValid() bool {
	for _, candidate := range validPayoutMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePayoutMethod converts raw input into a PayoutMethod.
func ParsePayoutMethod(value string) (PayoutMethod, error) {
	for _, candidate := range validPayoutMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout method %q", value)
}
