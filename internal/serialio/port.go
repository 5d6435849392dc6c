// Package serialio provides the serial transport used to talk to the
// positioner controller: port abstraction, connection options and a
// line-oriented request/response framing that tolerates read timeouts.
package serialio

import (
	"io"
	"time"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities.
// go.bug.st/serial ports implement it; a Read that times out returns 0, nil.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens a serial port at path. It is swapped out in tests and in dev
// mode to attach a simulated controller instead of a device node.
type Opener func(path string, opts PortOptions) (SerialPorter, error)
