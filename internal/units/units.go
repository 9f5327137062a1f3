// Package units provides shared constants and validation for length units
package units

import "fmt"

// Unit constants
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M}

// metres per unit
var perUnit = map[string]float64{
	MM: 0.001,
	CM: 0.01,
	M:  1,
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mm, cm, m"
}

// ScaleFactor returns the multiplier that converts a length in from units to
// to units. Depth cameras typically report millimetres; the codec windows are
// configured in metres.
func ScaleFactor(from, to string) (float64, error) {
	f, ok := perUnit[from]
	if !ok {
		return 0, fmt.Errorf("unknown length unit %q (valid: %s)", from, GetValidUnitsString())
	}
	t, ok := perUnit[to]
	if !ok {
		return 0, fmt.Errorf("unknown length unit %q (valid: %s)", to, GetValidUnitsString())
	}
	return f / t, nil
}

// ConvertLength converts a length between units
// Unknown units leave the value unchanged
func ConvertLength(v float64, from, to string) float64 {
	s, err := ScaleFactor(from, to)
	if err != nil {
		return v
	}
	return v * s
}
