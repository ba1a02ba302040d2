package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Default accepted range for a body temperature, in degrees Celsius.
const (
	DefaultMinTemperature = 35.0
	DefaultMaxTemperature = 42.0
)

// ValidationKind tells why a submission was rejected.
type ValidationKind int

const (
	NotANumber ValidationKind = iota + 1
	TooLow
	TooHigh
)

func (k ValidationKind) String() string {
	switch k {
	case NotANumber:
		return "not_a_number"
	case TooLow:
		return "too_low"
	case TooHigh:
		return "too_high"
	default:
		return "unknown"
	}
}

// ValidationError is returned for submissions that are not a plausible reading.
type ValidationError struct {
	Kind  ValidationKind
	Input string
	Value float64
}

func (e *ValidationError) Error() string {
	if e.Kind == NotANumber {
		return fmt.Sprintf("invalid temperature %q: %s", e.Input, e.Kind)
	}
	return fmt.Sprintf("invalid temperature %g: %s", e.Value, e.Kind)
}

// TemperatureValidator accepts readings inside the closed range [Min, Max].
type TemperatureValidator struct {
	Min float64
	Max float64
}

// NewTemperatureValidator returns a validator for [lo, hi]. A zero or
// inverted range falls back to the defaults.
func NewTemperatureValidator(lo, hi float64) *TemperatureValidator {
	if lo == 0 && hi == 0 || lo > hi {
		lo, hi = DefaultMinTemperature, DefaultMaxTemperature
	}
	return &TemperatureValidator{Min: lo, Max: hi}
}

// ParseAndValidate turns raw user text into a reading. Surrounding whitespace
// is ignored and full-width digits are folded to ASCII before parsing.
func (v *TemperatureValidator) ParseAndValidate(raw string) (float64, error) {
	s := strings.TrimSpace(width.Fold.String(raw))
	if isHexLiteral(s) {
		return 0, &ValidationError{Kind: NotANumber, Input: raw}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Kind: NotANumber, Input: raw}
	}
	if f < v.Min {
		return 0, &ValidationError{Kind: TooLow, Input: raw, Value: f}
	}
	if f > v.Max {
		return 0, &ValidationError{Kind: TooHigh, Input: raw, Value: f}
	}
	return f, nil
}

// isHexLiteral reports whether s uses the 0x prefix that ParseFloat would
// read as a hexadecimal float. Readings are decimal only.
func isHexLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
