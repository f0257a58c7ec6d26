package valueobject

import "fmt"

// Classification is an immutable value object representing the trust verdict for a product.
type Classification struct {
	value string
}

var (
	ClassificationTrustworthy = Classification{value: "trustworthy"}
	ClassificationSuspicious  = Classification{value: "suspicious"}
	ClassificationHighRisk    = Classification{value: "high-risk"}
)

// ClassificationFromString reconstructs a Classification from its string representation.
func ClassificationFromString(s string) (Classification, error) {
	switch s {
	case "trustworthy":
		return ClassificationTrustworthy, nil
	case "suspicious":
		return ClassificationSuspicious, nil
	case "high-risk":
		return ClassificationHighRisk, nil
	default:
		return Classification{}, fmt.Errorf("invalid classification: %s", s)
	}
}

// String returns the string representation.
func (c Classification) String() string {
	return c.value
}

// Severity orders classifications from least (0) to most (2) severe.
func (c Classification) Severity() int {
	switch c.value {
	case "suspicious":
		return 1
	case "high-risk":
		return 2
	default:
		return 0
	}
}

// IsZero returns true if the Classification has not been set.
func (c Classification) IsZero() bool {
	return c.value == ""
}

// Equal checks equality with another Classification.
func (c Classification) Equal(other Classification) bool {
	return c.value == other.value
}
