package valueobject

import (
	"fmt"
	"strings"
)

// SignalName identifies the evaluator that produced a signal.
type SignalName struct {
	value string
}

// Built-in signals.
var (
	SignalCounterfeit        = SignalName{value: "counterfeit"}
	SignalSellerRisk         = SignalName{value: "sellerRisk"}
	SignalReviewAuthenticity = SignalName{value: "reviewAuthenticity"}
)

// NewSignalName creates a SignalName. Any non-blank identifier is accepted so
// that additional detectors can be registered next to the built-in ones.
func NewSignalName(s string) (SignalName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SignalName{}, fmt.Errorf("signal name is required")
	}
	if len(s) > 64 {
		return SignalName{}, fmt.Errorf("signal name too long: %d characters", len(s))
	}
	return SignalName{value: s}, nil
}

// MustSignalName is NewSignalName for compile-time constants; it panics on invalid input.
func MustSignalName(s string) SignalName {
	name, err := NewSignalName(s)
	if err != nil {
		panic(err)
	}
	return name
}

// DefaultPolarity returns the polarity documented for the built-in signals.
// Unknown signals are assumed to report risk.
func (n SignalName) DefaultPolarity() Polarity {
	if n == SignalReviewAuthenticity {
		return PolarityAuthenticity
	}
	return PolarityRisk
}

// DisplayName returns a human-readable label used in verdict messages.
func (n SignalName) DisplayName() string {
	switch n {
	case SignalCounterfeit:
		return "Counterfeit risk"
	case SignalSellerRisk:
		return "Seller risk"
	case SignalReviewAuthenticity:
		return "Review authenticity"
	default:
		return n.value
	}
}

// String returns the string representation.
func (n SignalName) String() string {
	return n.value
}

// IsZero returns true if the SignalName has not been set.
func (n SignalName) IsZero() bool {
	return n.value == ""
}

// Equal checks equality with another SignalName.
func (n SignalName) Equal(other SignalName) bool {
	return n.value == other.value
}
