package serialio

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrWriteFailed is returned when the port accepts fewer bytes than a command.
var ErrWriteFailed = errors.New("failed to write to serial port")

// EOL names the terminator appended to outgoing commands.
type EOL string

const (
	EOLNone EOL = ""
	EOLLF   EOL = "\n"
	EOLCR   EOL = "\r"
	EOLCRLF EOL = "\r\n"
)

// ParseEOL converts a configuration token (none, lf, cr, crlf) into an EOL.
func ParseEOL(s string) (EOL, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lf":
		return EOLLF, nil
	case "none":
		return EOLNone, nil
	case "cr":
		return EOLCR, nil
	case "crlf":
		return EOLCRLF, nil
	default:
		return EOLNone, fmt.Errorf("unsupported line terminator %q: expected none, lf, cr or crlf", s)
	}
}

// LineConn frames ASCII request/response exchanges over a serial port.
// Commands are written with the configured terminator; a response line ends
// at CR or LF, or at the first read that returns no data (read timeout).
type LineConn struct {
	port SerialPorter
	eol  EOL
	mu   sync.Mutex
	one  [1]byte
}

// NewLineConn wraps port for line-oriented exchanges.
func NewLineConn(port SerialPorter, eol EOL) *LineConn {
	return &LineConn{port: port, eol: eol}
}

// WriteCommand writes command followed by the terminator.
func (c *LineConn) WriteCommand(command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := command
	if c.eol != EOLNone && !strings.HasSuffix(frame, string(c.eol)) {
		frame += string(c.eol)
	}
	n, err := c.port.Write([]byte(frame))
	if err != nil {
		return fmt.Errorf("write %q: %w", command, err)
	}
	if n != len(frame) {
		return ErrWriteFailed
	}
	tracef("tx %q", command)
	return nil
}

// ReadLine reads one response line without its terminator. Leading CR/LF
// bytes left over from a previous CRLF response are skipped. A timeout
// returns whatever has been received so far, possibly an empty string.
func (c *LineConn) ReadLine() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sb strings.Builder
	for {
		n, err := c.port.Read(c.one[:])
		if n == 1 {
			b := c.one[0]
			if b == '\n' || b == '\r' {
				if sb.Len() == 0 {
					continue
				}
				break
			}
			sb.WriteByte(b)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return sb.String(), fmt.Errorf("read line: %w", err)
		}
		// n == 0: read timeout or drained buffer.
		break
	}
	line := sb.String()
	tracef("rx %q", line)
	return line, nil
}

// Exchange writes command and returns the next response line.
func (c *LineConn) Exchange(command string) (string, error) {
	if err := c.WriteCommand(command); err != nil {
		return "", err
	}
	return c.ReadLine()
}

// Close closes the underlying port.
func (c *LineConn) Close() error {
	if err := c.port.Close(); err != nil {
		opsf("close failed: %v", err)
		return err
	}
	return nil
}
