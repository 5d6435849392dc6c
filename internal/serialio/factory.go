package serialio

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenPort opens the serial device at path with the given options and applies
// the read timeout, so that a silent controller yields short reads instead of
// blocking forever.
func OpenPort(path string, opts PortOptions) (SerialPorter, error) {
	norm, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := norm.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(norm.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}

	diagf("opened %s at %d baud %d%s%d, read timeout %v",
		path, norm.BaudRate, norm.DataBits, norm.Parity, norm.StopBits, norm.ReadTimeout)
	return port, nil
}

var _ Opener = OpenPort
