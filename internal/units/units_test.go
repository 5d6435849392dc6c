package units

import (
	"math"
	"testing"
)

func TestConvertFrequency(t *testing.T) {
	tests := []struct {
		name     string
		hz       float64
		units    string
		expected float64
	}{
		{"915 MHz to MHz", 915e6, MHz, 915},
		{"2.45 GHz to GHz", 2.45e9, GHz, 2.45},
		{"100 kHz to kHz", 100e3, KHz, 100},
		{"Hz is identity", 12345, Hz, 12345},
		{"case insensitive", 915e6, "mhz", 915},
		{"unknown units default to Hz", 915e6, "furlong", 915e6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertFrequency(tt.hz, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertFrequency(%f, %s) = %f, want %f", tt.hz, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		unit     string
		expected bool
	}{
		{Hz, true},
		{KHz, true},
		{MHz, true},
		{GHz, true},
		{"ghz", true},
		{"THz", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.unit); got != tt.expected {
			t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
		}
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "Hz, kHz, MHz, GHz" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
}

func TestFormatFrequency(t *testing.T) {
	tests := []struct {
		hz       float64
		expected string
	}{
		{915e6, "915.000 MHz"},
		{2.45e9, "2.450 GHz"},
		{100e3, "100.000 kHz"},
		{433.92e6, "433.920 MHz"},
		{50, "50 Hz"},
		{0, "0 Hz"},
	}

	for _, tt := range tests {
		if got := FormatFrequency(tt.hz); got != tt.expected {
			t.Errorf("FormatFrequency(%v) = %q, want %q", tt.hz, got, tt.expected)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"915000000", 915_000_000, false},
		{"915MHz", 915_000_000, false},
		{"915 MHz", 915_000_000, false},
		{"2.45GHz", 2_450_000_000, false},
		{"2.45 ghz", 2_450_000_000, false},
		{"100kHz", 100_000, false},
		{"1e9", 1_000_000_000, false},
		{" 433.92MHz ", 433_920_000, false},
		{"915 furlongs", 0, true},
		{"MHz", 0, true},
		{"", 0, true},
		{"-5MHz", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseFrequency(%q) = %d, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFrequency(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
