// Package vna drives a LibreVNA-compatible network analyzer over its SCPI
// control socket: command/query transport, trace decoding, the single-sweep
// acquisition sequence, and the lifecycle of the GUI/server process that
// exposes the socket.
package vna

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds a single query round trip when the context carries
// no deadline.
const DefaultTimeout = 5 * time.Second

// Standard event status register bits reported by *ESR?.
const (
	ESRQueryError     = 0x04
	ESRDeviceError    = 0x08
	ESRExecutionError = 0x10
	ESRCommandError   = 0x20

	esrErrorMask = ESRQueryError | ESRDeviceError | ESRExecutionError | ESRCommandError
)

// NotConnected is the device string reported when no instrument is attached.
const NotConnected = "Not connected"

// ErrNotConnected is returned by Connected when the server has no device.
var ErrNotConnected = errors.New("VNA server is not connected to a device")

// CommandError reports a command the instrument flagged in its event status
// register.
type CommandError struct {
	Command string
	Status  int
}

func (e *CommandError) Error() string {
	var kinds []string
	if e.Status&ESRCommandError != 0 {
		kinds = append(kinds, "command error")
	}
	if e.Status&ESRExecutionError != 0 {
		kinds = append(kinds, "execution error")
	}
	if e.Status&ESRDeviceError != 0 {
		kinds = append(kinds, "device error")
	}
	if e.Status&ESRQueryError != 0 {
		kinds = append(kinds, "query error")
	}
	return fmt.Sprintf("%q rejected (ESR 0x%02x): %s", e.Command, e.Status, strings.Join(kinds, ", "))
}

// Client is a newline-framed SCPI connection.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex

	// Timeout bounds each query when ctx has no deadline.
	Timeout time.Duration
	// CheckStatus makes Cmd read *ESR? after every command.
	CheckStatus bool
}

// Dial connects to the SCPI server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to VNA at %s: %w", addr, err)
	}
	diagf("connected to %s", addr)
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		writer:      bufio.NewWriter(conn),
		Timeout:     DefaultTimeout,
		CheckStatus: true,
	}
}

func ensureNewline(s string) string {
	if !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}

func (c *Client) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return time.Now().Add(timeout)
}

func (c *Client) send(ctx context.Context, s string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.conn.SetWriteDeadline(c.deadline(ctx))
	if _, err := c.writer.WriteString(ensureNewline(s)); err != nil {
		return fmt.Errorf("send %q: %w", s, err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("send %q: %w", s, err)
	}
	return nil
}

func (c *Client) readLine(ctx context.Context) (string, error) {
	c.conn.SetReadDeadline(c.deadline(ctx))
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Cmd sends a command that has no response. With CheckStatus set, the event
// status register is read back and any error bit fails the command.
func (c *Client) Cmd(ctx context.Context, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(ctx, cmd); err != nil {
		return err
	}
	tracef("cmd %s", cmd)
	if !c.CheckStatus {
		return nil
	}
	status, err := c.status(ctx)
	if err != nil {
		return fmt.Errorf("status after %q: %w", cmd, err)
	}
	if status&esrErrorMask != 0 {
		return &CommandError{Command: cmd, Status: status}
	}
	return nil
}

// Query sends q and returns its one-line reply without the terminator.
func (c *Client) Query(ctx context.Context, q string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query(ctx, q)
}

func (c *Client) query(ctx context.Context, q string) (string, error) {
	if err := c.send(ctx, q); err != nil {
		return "", err
	}
	line, err := c.readLine(ctx)
	if err != nil {
		return "", fmt.Errorf("read reply to %q: %w", q, err)
	}
	tracef("query %s -> %.80q", q, line)
	return line, nil
}

// Status reads and clears the event status register.
func (c *Client) Status(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status(ctx)
}

func (c *Client) status(ctx context.Context) (int, error) {
	resp, err := c.query(ctx, "*ESR?")
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(resp)
	if err != nil {
		return 0, fmt.Errorf("malformed *ESR? reply %q", resp)
	}
	return v, nil
}

// Connected asks the server to attach to a device and returns its
// identifier, or ErrNotConnected.
func (c *Client) Connected(ctx context.Context) (string, error) {
	if err := c.Cmd(ctx, ":DEV:CONN"); err != nil {
		return "", err
	}
	dev, err := c.Query(ctx, ":DEV:CONN?")
	if err != nil {
		return "", err
	}
	if dev == "" || dev == NotConnected {
		return "", ErrNotConnected
	}
	return dev, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
