package valueobject

import "fmt"

// Polarity states which direction of an evaluator's score means "more trustworthy".
type Polarity struct {
	value string
}

var (
	// PolarityRisk marks scores where higher means riskier.
	PolarityRisk = Polarity{value: "risk"}
	// PolarityAuthenticity marks scores where higher means more authentic.
	PolarityAuthenticity = Polarity{value: "authenticity"}
)

// PolarityFromString reconstructs a Polarity from its string representation.
func PolarityFromString(s string) (Polarity, error) {
	switch s {
	case "risk":
		return PolarityRisk, nil
	case "authenticity":
		return PolarityAuthenticity, nil
	default:
		return Polarity{}, fmt.Errorf("invalid polarity: %s", s)
	}
}

// ToTrust converts a raw 0-100 score into the trust scale, where higher is
// always more trustworthy.
func (p Polarity) ToTrust(score float64) float64 {
	if p == PolarityAuthenticity {
		return score
	}
	return 100 - score
}

// String returns the string representation.
func (p Polarity) String() string {
	return p.value
}

// IsZero returns true if the Polarity has not been set.
func (p Polarity) IsZero() bool {
	return p.value == ""
}
