// Package config holds the immutable run configuration: instrument sweep
// settings, positioner geometry and output options, with the bounds checks
// that must pass before any hardware is touched.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bounds enforced at load time.
const (
	MinFrequencyHz   = 100_000
	MaxFrequencyHz   = 6_000_000_000
	MinStimulusDBm   = -40
	MaxStimulusDBm   = 0
	MinIFBandwidthHz = 10
	MaxIFBandwidthHz = 50_000
	MinMotorID       = 1
	MaxMotorID       = 4
	MinAverageCount  = 1
	MaxAverageCount  = 99
	MinPoints        = 2
)

// DefaultVNAPort is the SCPI control port exposed by the VNA GUI/server.
const DefaultVNAPort = 19542

// DefaultReadyLogLine is printed by the VNA GUI once it has attached to a device.
const DefaultReadyLogLine = "[info] Connected to"

// Config is the complete, validated run configuration. Treat it as read-only
// once returned by Load.
type Config struct {
	// Instrument process and control channel
	VNAPath      string
	VNAArgs      []string
	VNAHost      string
	VNAPort      int
	ReadyLogLine string
	ReadyTimeout time.Duration // 0 waits forever

	// Sweep
	Window        FrequencyWindow
	StimulusDBm   int
	IFBandwidthHz int
	AverageCount  int // pts_1
	Points        int // pts_2

	// Positioner
	SerialPort   string
	MotorEOL     string
	MotorID      int
	StepsPerRev  int64
	InitMotorPos int64
	NAngles      int

	// Polling
	PollInterval   time.Duration
	MoveTimeout    time.Duration // 0 = unbounded
	AcquireTimeout time.Duration // 0 = unbounded

	// Output
	PlotMin     float64
	OutputDir   string
	ArchivePath string // empty disables the run archive
}

// Defaults returns the configuration used for any key a file leaves unset.
func Defaults() *Config {
	return &Config{
		VNAHost:        "localhost",
		VNAPort:        DefaultVNAPort,
		ReadyLogLine:   DefaultReadyLogLine,
		ReadyTimeout:   5 * time.Second,
		Window:         CenterWindow(915_000_000),
		StimulusDBm:    -10,
		IFBandwidthHz:  100,
		AverageCount:   1,
		Points:         3,
		SerialPort:     "/dev/ttyUSB0",
		MotorEOL:       "lf",
		MotorID:        1,
		StepsPerRev:    14400,
		InitMotorPos:   0,
		NAngles:        360,
		PollInterval:   100 * time.Millisecond,
		MoveTimeout:    2 * time.Minute,
		AcquireTimeout: 5 * time.Minute,
		PlotMin:        -40,
		OutputDir:      ".",
	}
}

// ValidationError reports a configuration value outside its valid range.
type ValidationError struct {
	Field string
	Value string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s = %s: %s", e.Field, e.Value, e.Rule)
}

func rangeError(field string, v int64, lo, hi int64, what string) error {
	return &ValidationError{Field: field, Value: fmt.Sprint(v), Rule: fmt.Sprintf("%s must be between %d and %d", what, lo, hi)}
}

// Validate checks every bounded field.
func (c *Config) Validate() error {
	if err := c.Window.validate(); err != nil {
		return err
	}
	if c.StimulusDBm < MinStimulusDBm || c.StimulusDBm > MaxStimulusDBm {
		return rangeError("stim_pwr", int64(c.StimulusDBm), MinStimulusDBm, MaxStimulusDBm, "stimulus power (dBm)")
	}
	if c.IFBandwidthHz < MinIFBandwidthHz || c.IFBandwidthHz > MaxIFBandwidthHz {
		return &ValidationError{Field: "if_bandwidth", Value: fmt.Sprint(c.IFBandwidthHz), Rule: "IF bandwidth must be between 10Hz and 50kHz"}
	}
	if c.MotorID < MinMotorID || c.MotorID > MaxMotorID {
		return &ValidationError{Field: "motor_dut", Value: fmt.Sprint(c.MotorID), Rule: "motor ID must be 1, 2, 3, or 4"}
	}
	if c.AverageCount < MinAverageCount || c.AverageCount > MaxAverageCount {
		return rangeError("pts_1", int64(c.AverageCount), MinAverageCount, MaxAverageCount, "averaging count")
	}
	if c.Points < MinPoints {
		return &ValidationError{Field: "pts_2", Value: fmt.Sprint(c.Points), Rule: "collection must contain at least 2 points"}
	}
	if c.StepsPerRev < 1 {
		return &ValidationError{Field: "steps_per_rev", Value: fmt.Sprint(c.StepsPerRev), Rule: "must be at least 1"}
	}
	if c.NAngles < 1 || int64(c.NAngles) > c.StepsPerRev {
		return &ValidationError{Field: "n_angles", Value: fmt.Sprint(c.NAngles), Rule: fmt.Sprintf("must be between 1 and steps_per_rev (%d)", c.StepsPerRev)}
	}
	if c.PlotMin >= 0 {
		return &ValidationError{Field: "plot_min", Value: fmt.Sprint(c.PlotMin), Rule: "polar plot floor must be negative (dB)"}
	}
	if c.VNAPort < 1 || c.VNAPort > 65535 {
		return rangeError("vna_port", int64(c.VNAPort), 1, 65535, "TCP port")
	}
	if c.PollInterval <= 0 {
		return &ValidationError{Field: "poll_interval_ms", Value: c.PollInterval.String(), Rule: "must be positive"}
	}
	for field, d := range map[string]time.Duration{
		"move_timeout_s":    c.MoveTimeout,
		"acquire_timeout_s": c.AcquireTimeout,
		"ready_timeout_s":   c.ReadyTimeout,
	} {
		if d < 0 {
			return &ValidationError{Field: field, Value: d.String(), Rule: "must not be negative (0 disables the limit)"}
		}
	}
	switch c.MotorEOL {
	case "none", "lf", "cr", "crlf":
	default:
		return &ValidationError{Field: "motor_eol", Value: c.MotorEOL, Rule: "must be one of none, lf, cr, crlf"}
	}
	return nil
}

// AngleStep returns the step-count spacing between consecutive angles.
func (c *Config) AngleStep() int64 {
	return c.StepsPerRev / int64(c.NAngles)
}

// VNAAddress returns the host:port of the instrument control channel.
func (c *Config) VNAAddress() string {
	return net.JoinHostPort(c.VNAHost, strconv.Itoa(c.VNAPort))
}
