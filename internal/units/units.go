// Package units provides shared constants and conversions for frequency units
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit constants
const (
	Hz  = "Hz"
	KHz = "kHz"
	MHz = "MHz"
	GHz = "GHz"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Hz, KHz, MHz, GHz}

var scale = map[string]float64{
	Hz:  1,
	KHz: 1e3,
	MHz: 1e6,
	GHz: 1e9,
}

// IsValid reports whether unit is a known frequency unit. Matching ignores case.
func IsValid(unit string) bool {
	_, ok := lookup(unit)
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

func lookup(unit string) (float64, bool) {
	for name, f := range scale {
		if strings.EqualFold(name, unit) {
			return f, true
		}
	}
	return 0, false
}

// ConvertFrequency converts a frequency in Hz to the target units.
// Unknown units return hz unchanged.
func ConvertFrequency(hz float64, targetUnits string) float64 {
	f, ok := lookup(targetUnits)
	if !ok {
		return hz
	}
	return hz / f
}

// FormatFrequency renders hz in the largest unit that keeps the value >= 1,
// with three decimals: 915000000 -> "915.000 MHz".
func FormatFrequency(hz float64) string {
	abs := math.Abs(hz)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.3f %s", hz/1e9, GHz)
	case abs >= 1e6:
		return fmt.Sprintf("%.3f %s", hz/1e6, MHz)
	case abs >= 1e3:
		return fmt.Sprintf("%.3f %s", hz/1e3, KHz)
	default:
		return fmt.Sprintf("%.0f %s", hz, Hz)
	}
}

// ParseFrequency parses a number with an optional unit suffix ("2.45GHz",
// "915 MHz", "100000") and returns whole hertz.
func ParseFrequency(s string) (int64, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != 'e' && r != 'E' && r != '+' && r != '-'
	})
	num, unit := s, Hz
	if i >= 0 {
		num, unit = strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
	}
	f, ok := lookup(unit)
	if !ok {
		return 0, fmt.Errorf("invalid frequency unit %q, want one of %s", unit, GetValidUnitsString())
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	hz := math.Round(v * f)
	if hz < 0 || hz > math.MaxInt64 {
		return 0, fmt.Errorf("frequency %q out of range", s)
	}
	return int64(hz), nil
}
