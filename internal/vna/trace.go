package vna

import (
	"fmt"
	"strconv"
	"strings"
)

// TracePoint is one sample of a trace: the stimulus value (frequency in Hz
// for a frequency sweep) and the complex S-parameter.
type TracePoint struct {
	X     float64
	Value complex128
}

// ParseTraceData decodes a :VNA:TRACE:DATA? reply of the form
// "[x,re,im],[x,re,im],...". An empty reply is an empty trace. Every group
// must be bracketed and hold exactly three numbers.
func ParseTraceData(data string) ([]TracePoint, error) {
	rest := strings.TrimSpace(data)
	if rest == "" {
		return nil, nil
	}

	var points []TracePoint
	for {
		if !strings.HasPrefix(rest, "[") {
			return nil, fmt.Errorf("invalid trace data at point %d: expected '['", len(points))
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("invalid trace data at point %d: unterminated group", len(points))
		}
		p, err := parseTracePoint(rest[1:end])
		if err != nil {
			return nil, fmt.Errorf("invalid trace data at point %d: %w", len(points), err)
		}
		points = append(points, p)

		rest = strings.TrimSpace(rest[end+1:])
		if rest == "" {
			return points, nil
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("invalid trace data after point %d: expected ','", len(points)-1)
		}
		rest = strings.TrimSpace(rest[1:])
	}
}

func parseTracePoint(group string) (TracePoint, error) {
	fields := strings.Split(group, ",")
	if len(fields) != 3 {
		return TracePoint{}, fmt.Errorf("%d values, want 3", len(fields))
	}
	var v [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return TracePoint{}, err
		}
		v[i] = x
	}
	return TracePoint{X: v[0], Value: complex(v[1], v[2])}, nil
}

// FormatTraceData encodes points the way the instrument reports them.
func FormatTraceData(points []TracePoint) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = "[" + strconv.FormatFloat(p.X, 'g', -1, 64) + "," +
			strconv.FormatFloat(real(p.Value), 'g', -1, 64) + "," +
			strconv.FormatFloat(imag(p.Value), 'g', -1, 64) + "]"
	}
	return strings.Join(parts, ",")
}

// Values projects the complex column of points in order.
func Values(points []TracePoint) []complex128 {
	out := make([]complex128, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
