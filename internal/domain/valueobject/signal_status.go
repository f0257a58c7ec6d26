package valueobject

import "fmt"

// SignalStatus describes how a single evaluator invocation ended.
type SignalStatus struct {
	value string
}

var (
	SignalStatusOK      = SignalStatus{value: "ok"}
	SignalStatusTimeout = SignalStatus{value: "timeout"}
	SignalStatusError   = SignalStatus{value: "error"}
)

// SignalStatusFromString reconstructs a SignalStatus from its string representation.
func SignalStatusFromString(s string) (SignalStatus, error) {
	switch s {
	case "ok":
		return SignalStatusOK, nil
	case "timeout":
		return SignalStatusTimeout, nil
	case "error":
		return SignalStatusError, nil
	default:
		return SignalStatus{}, fmt.Errorf("invalid signal status: %s", s)
	}
}

// String returns the string representation.
func (s SignalStatus) String() string {
	return s.value
}

// IsAvailable reports whether a result with this status may contribute to fusion.
func (s SignalStatus) IsAvailable() bool {
	return s == SignalStatusOK
}

// IsZero returns true if the SignalStatus has not been set.
func (s SignalStatus) IsZero() bool {
	return s.value == ""
}

// Equal checks equality with another SignalStatus.
func (s SignalStatus) Equal(other SignalStatus) bool {
	return s.value == other.value
}
