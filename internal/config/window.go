package config

import "fmt"

// WindowKind selects how the instrument frequency window is programmed.
type WindowKind int

const (
	// WindowCenter sets a centre frequency with zero span (CW sweep).
	WindowCenter WindowKind = iota
	// WindowStartStop sets explicit start and stop frequencies.
	WindowStartStop
)

func (k WindowKind) String() string {
	switch k {
	case WindowCenter:
		return "center"
	case WindowStartStop:
		return "start/stop"
	default:
		return "unknown"
	}
}

// FrequencyWindow is the frequency window of every sweep, resolved once at
// load time. Only the fields belonging to Kind are meaningful.
type FrequencyWindow struct {
	Kind   WindowKind
	Center int64 // Hz, WindowCenter
	Start  int64 // Hz, WindowStartStop
	Stop   int64 // Hz, WindowStartStop
}

// CenterWindow returns a zero-span window at hz.
func CenterWindow(hz int64) FrequencyWindow {
	return FrequencyWindow{Kind: WindowCenter, Center: hz}
}

// StartStopWindow returns an explicit [start, stop] window.
func StartStopWindow(start, stop int64) FrequencyWindow {
	return FrequencyWindow{Kind: WindowStartStop, Start: start, Stop: stop}
}

// Frequencies returns the nominal frequency of each of n sweep points: evenly
// spaced over [Start, Stop] inclusive, or Center repeated for a zero span.
func (w FrequencyWindow) Frequencies(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	switch w.Kind {
	case WindowStartStop:
		if n == 1 {
			out[0] = float64(w.Start)
			return out
		}
		step := float64(w.Stop-w.Start) / float64(n-1)
		for i := range out {
			out[i] = float64(w.Start) + float64(i)*step
		}
	default:
		for i := range out {
			out[i] = float64(w.Center)
		}
	}
	return out
}

func (w FrequencyWindow) String() string {
	if w.Kind == WindowStartStop {
		return fmt.Sprintf("%d-%d Hz", w.Start, w.Stop)
	}
	return fmt.Sprintf("%d Hz (zero span)", w.Center)
}

func (w FrequencyWindow) validate() error {
	switch w.Kind {
	case WindowCenter:
		if err := checkFrequency("freq", w.Center); err != nil {
			return err
		}
	case WindowStartStop:
		if err := checkFrequency("freq_min", w.Start); err != nil {
			return err
		}
		if err := checkFrequency("freq_max", w.Stop); err != nil {
			return err
		}
		if w.Start >= w.Stop {
			return &ValidationError{Field: "freq_max", Value: fmt.Sprint(w.Stop), Rule: fmt.Sprintf("must be greater than freq_min (%d)", w.Start)}
		}
	default:
		return &ValidationError{Field: "freq", Value: w.Kind.String(), Rule: "unknown frequency window kind"}
	}
	return nil
}

func checkFrequency(field string, hz int64) error {
	if hz < MinFrequencyHz || hz > MaxFrequencyHz {
		return &ValidationError{Field: field, Value: fmt.Sprint(hz), Rule: "frequency must be between 100kHz and 6GHz"}
	}
	return nil
}
