package enums

import "fmt"

// PlatformMode gates whether a checkout may span multiple sellers.
type PlatformMode string

const (
	PlatformModeMultiVendor  PlatformMode = "multi_vendor"
	PlatformModeSingleVendor PlatformMode = "single_vendor"
)

var validPlatformModes = []PlatformMode{
	PlatformModeMultiVendor,
	PlatformModeSingleVendor,
}

// String implements fmt.Stringer.
func (m PlatformMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PlatformMode.
func (m PlatformMode) IsValid() bool {
	for _, candidate := range validPlatformModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePlatformMode converts raw input into a PlatformMode.
func ParsePlatformMode(value string) (PlatformMode, error) {
	for _, candidate := range validPlatformModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform mode %q", value)
}
