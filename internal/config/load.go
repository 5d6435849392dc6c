package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Separator splits key from value on each line of a legacy config file.
const Separator = "🐥"

// DefaultConfigPath is the legacy config file read when no path is given.
const DefaultConfigPath = ".config"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Load reads, resolves and validates the configuration at path. Files with a
// .json, .yaml, .yml or .toml extension are read as structured documents;
// anything else is read as legacy key🐥value lines. Keys are the same in
// both forms and any key left unset keeps its value from Defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	var values []keyValue
	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json", ".yaml", ".yml", ".toml":
		values, err = readStructured(cleanPath)
	default:
		var f *os.File
		f, err = os.Open(cleanPath)
		if err == nil {
			values, err = readLegacy(f)
			f.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	cfg, err := build(values)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse reads legacy key🐥value lines from r and returns the validated
// configuration.
func Parse(r io.Reader) (*Config, error) {
	values, err := readLegacy(r)
	if err != nil {
		return nil, err
	}
	return build(values)
}

type keyValue struct {
	key   string
	value string
	line  int
}

// readLegacy splits each non-blank line on Separator. Lines starting with #
// are comments.
func readLegacy(r io.Reader) ([]keyValue, error) {
	var values []keyValue
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := strings.TrimRight(scan.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, Separator)
		if !ok {
			return nil, fmt.Errorf("line %d: missing %q separator in %q", lineNo, Separator, line)
		}
		values = append(values, keyValue{key: strings.TrimSpace(key), value: strings.TrimSpace(value), line: lineNo})
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// build applies values over Defaults, resolves the frequency window and
// validates the result.
func build(values []keyValue) (*Config, error) {
	cfg := Defaults()
	window := windowKeys{}
	seen := make(map[string]bool, len(values))

	for _, kv := range values {
		if seen[kv.key] {
			return nil, fmt.Errorf("duplicate key %q", kv.key)
		}
		seen[kv.key] = true
		if err := apply(cfg, &window, kv.key, kv.value); err != nil {
			if kv.line > 0 {
				return nil, fmt.Errorf("line %d: %w", kv.line, err)
			}
			return nil, err
		}
	}

	w, err := window.resolve(cfg.Window)
	if err != nil {
		return nil, err
	}
	cfg.Window = w

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type windowKeys struct {
	center, min, max          int64
	hasCenter, hasMin, hasMax bool
}

func (k windowKeys) resolve(fallback FrequencyWindow) (FrequencyWindow, error) {
	switch {
	case k.hasCenter && (k.hasMin || k.hasMax):
		return FrequencyWindow{}, &ValidationError{Field: "freq", Value: fmt.Sprint(k.center), Rule: "cannot be combined with freq_min/freq_max"}
	case k.hasCenter:
		return CenterWindow(k.center), nil
	case k.hasMin && k.hasMax:
		return StartStopWindow(k.min, k.max), nil
	case k.hasMin:
		return FrequencyWindow{}, &ValidationError{Field: "freq_max", Value: "unset", Rule: "required when freq_min is set"}
	case k.hasMax:
		return FrequencyWindow{}, &ValidationError{Field: "freq_min", Value: "unset", Rule: "required when freq_max is set"}
	default:
		return fallback, nil
	}
}

func parseInt(key, value string) (int64, error) {
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: key, Value: strconv.Quote(value), Rule: "must be an integer"}
	}
	return v, nil
}

func apply(cfg *Config, window *windowKeys, key, value string) error {
	// string-valued keys
	switch key {
	case "vna_path":
		cfg.VNAPath = value
		return nil
	case "vna_args":
		cfg.VNAArgs = strings.Fields(value)
		return nil
	case "vna_host":
		cfg.VNAHost = value
		return nil
	case "ready_log_line":
		cfg.ReadyLogLine = value
		return nil
	case "serial_port":
		cfg.SerialPort = value
		return nil
	case "motor_eol":
		cfg.MotorEOL = strings.ToLower(value)
		return nil
	case "output_dir":
		cfg.OutputDir = value
		return nil
	case "archive_path":
		cfg.ArchivePath = value
		return nil
	}

	v, err := parseInt(key, value)
	if err != nil {
		if _, known := integerKeys[key]; !known {
			return fmt.Errorf("unknown key %q", key)
		}
		return err
	}

	switch key {
	case "freq":
		window.center, window.hasCenter = v, true
	case "freq_min":
		window.min, window.hasMin = v, true
	case "freq_max":
		window.max, window.hasMax = v, true
	case "stim_pwr":
		cfg.StimulusDBm = int(v)
	case "if_bandwidth":
		cfg.IFBandwidthHz = int(v)
	case "motor_dut":
		cfg.MotorID = int(v)
	case "pts_1":
		cfg.AverageCount = int(v)
	case "pts_2":
		cfg.Points = int(v)
	case "n_angles":
		cfg.NAngles = int(v)
	case "steps_per_rev":
		cfg.StepsPerRev = v
	case "init_motor_pos":
		cfg.InitMotorPos = v
	case "plot_min":
		cfg.PlotMin = float64(v)
	case "vna_port":
		cfg.VNAPort = int(v)
	case "poll_interval_ms":
		cfg.PollInterval = time.Duration(v) * time.Millisecond
	case "move_timeout_s":
		cfg.MoveTimeout = time.Duration(v) * time.Second
	case "acquire_timeout_s":
		cfg.AcquireTimeout = time.Duration(v) * time.Second
	case "ready_timeout_s":
		cfg.ReadyTimeout = time.Duration(v) * time.Second
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

var integerKeys = map[string]struct{}{
	"freq": {}, "freq_min": {}, "freq_max": {}, "stim_pwr": {}, "if_bandwidth": {},
	"motor_dut": {}, "pts_1": {}, "pts_2": {}, "n_angles": {}, "steps_per_rev": {},
	"init_motor_pos": {}, "plot_min": {}, "vna_port": {}, "poll_interval_ms": {},
	"move_timeout_s": {}, "acquire_timeout_s": {}, "ready_timeout_s": {},
}
