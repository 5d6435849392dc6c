// Package monitoring carries the command-level logger, the per-package log
// stream configuration and the live run status served on /debug/.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/banshee-data/antenna.report/internal/motor"
	"github.com/banshee-data/antenna.report/internal/serialio"
	"github.com/banshee-data/antenna.report/internal/sweep"
	"github.com/banshee-data/antenna.report/internal/vna"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Verbosity selects which package log streams are enabled.
type Verbosity int

const (
	Quiet Verbosity = iota // nothing
	Ops                    // lifecycle and progress
	Diag                   // plus readiness probes, commands and move targets
	Trace                  // plus every poll and serial line
)

var verbosityNames = []string{"quiet", "ops", "diag", "trace"}

func (v Verbosity) String() string {
	if v < Quiet || int(v) >= len(verbosityNames) {
		return fmt.Sprintf("Verbosity(%d)", int(v))
	}
	return verbosityNames[v]
}

// ParseVerbosity accepts the names printed by Verbosity.String.
func ParseVerbosity(s string) (Verbosity, error) {
	for i, name := range verbosityNames {
		if strings.EqualFold(s, name) {
			return Verbosity(i), nil
		}
	}
	return Quiet, fmt.Errorf("invalid log level %q, want one of %s", s, strings.Join(verbosityNames, ", "))
}

// ConfigureLogs routes the ops/diag/trace streams of every package to w,
// enabling the streams at or below v.
func ConfigureLogs(v Verbosity, w io.Writer) {
	var ops, diag, trace io.Writer
	if v >= Ops {
		ops = w
	}
	if v >= Diag {
		diag = w
	}
	if v >= Trace {
		trace = w
	}
	motor.SetLogWriters(ops, diag, trace)
	vna.SetLogWriters(ops, diag, trace)
	sweep.SetLogWriters(ops, diag, trace)
	serialio.SetLogWriters(ops, diag, trace)
}
