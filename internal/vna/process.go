package vna

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
)

var (
	// ErrNotReady is returned when the process does not become ready within
	// its ReadyTimeout.
	ErrNotReady = errors.New("VNA process not ready")
	// ErrExited is returned when the process exits before it is ready.
	ErrExited = errors.New("VNA process exited")
)

// DefaultDialInterval spaces connection attempts during a dial readiness check.
const DefaultDialInterval = 250 * time.Millisecond

// Process is the GUI/server that owns the instrument and exposes the SCPI
// port. Readiness is a log line, a successful dial, or both in that order.
type Process struct {
	Path string
	Args []string

	// ReadyLogLine is a substring of the output line announcing the device
	// connection. Empty skips the check.
	ReadyLogLine string
	// ReadyDial is the control port address to dial until it accepts.
	// Empty skips the check.
	ReadyDial    string
	DialInterval time.Duration
	// ReadyTimeout bounds WaitReady; 0 waits until ctx is done.
	ReadyTimeout time.Duration

	// Output, when set, receives a copy of every output line.
	Output io.Writer

	cmd       *exec.Cmd
	ready     chan struct{}
	exited    chan struct{}
	waitErr   error
	readyOnce sync.Once
	stopOnce  sync.Once
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Start launches the process. It is killed when ctx is done or on Stop.
func (p *Process) Start(ctx context.Context) error {
	if p.cmd != nil {
		return errors.New("VNA process already started")
	}
	if strings.TrimSpace(p.Path) == "" {
		return errors.New("VNA executable path is empty")
	}
	path, err := expandHome(p.Path)
	if err != nil {
		return fmt.Errorf("resolve VNA path: %w", err)
	}

	pr, pw := io.Pipe()
	cmd := exec.CommandContext(ctx, path, p.Args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	// grandchildren may hold the output pipe open after a kill
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("start %s: %w", path, err)
	}
	p.cmd = cmd
	p.ready = make(chan struct{})
	p.exited = make(chan struct{})
	opsf("started %s (pid %d)", path, cmd.Process.Pid)

	go p.scan(pr)
	go func() {
		p.waitErr = cmd.Wait()
		pw.Close()
		close(p.exited)
		diagf("process exited: %v", p.waitErr)
	}()
	return nil
}

func (p *Process) scan(r io.Reader) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		tracef("gui: %s", line)
		if p.Output != nil {
			fmt.Fprintln(p.Output, line)
		}
		if p.ReadyLogLine != "" && strings.Contains(line, p.ReadyLogLine) {
			p.readyOnce.Do(func() { close(p.ready) })
		}
	}
	// keep draining so the child never blocks on a full pipe
	io.Copy(io.Discard, r)
}

// WaitReady blocks until the readiness checks pass.
func (p *Process) WaitReady(ctx context.Context) error {
	if p.cmd == nil {
		return errors.New("VNA process not started")
	}
	if p.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ReadyTimeout)
		defer cancel()
	}

	if p.ReadyLogLine != "" {
		select {
		case <-p.ready:
			diagf("ready line seen: %q", p.ReadyLogLine)
		case <-p.exited:
			return fmt.Errorf("%w before ready: %v", ErrExited, p.waitErr)
		case <-ctx.Done():
			return p.notReady(ctx, fmt.Sprintf("waiting for %q", p.ReadyLogLine))
		}
	}

	if p.ReadyDial != "" {
		if err := p.dialUntilReady(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Process) dialUntilReady(ctx context.Context) error {
	interval := p.DialInterval
	if interval <= 0 {
		interval = DefaultDialInterval
	}
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.exited:
			cancel()
		case <-dctx.Done():
		}
	}()

	b := backoff.WithContext(backoff.NewConstantBackOff(interval), dctx)
	op := func() error {
		var d net.Dialer
		conn, err := d.DialContext(dctx, "tcp", p.ReadyDial)
		if err != nil {
			return err
		}
		return conn.Close()
	}
	notify := func(err error, next time.Duration) {
		tracef("dial %s: %v (retry in %v)", p.ReadyDial, err, next)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		select {
		case <-p.exited:
			return fmt.Errorf("%w before ready: %v", ErrExited, p.waitErr)
		default:
		}
		return p.notReady(ctx, "dialing "+p.ReadyDial)
	}
	diagf("control port %s accepting connections", p.ReadyDial)
	return nil
}

func (p *Process) notReady(ctx context.Context, what string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && p.ReadyTimeout > 0 {
		return fmt.Errorf("%w: %s for %v", ErrNotReady, what, p.ReadyTimeout)
	}
	return fmt.Errorf("%w: %s: %v", ErrNotReady, what, ctx.Err())
}

// Stop kills the process and waits for it to exit. It is safe to call more
// than once and on a process that already exited.
func (p *Process) Stop() error {
	if p.cmd == nil {
		return nil
	}
	var err error
	p.stopOnce.Do(func() {
		select {
		case <-p.exited:
			return
		default:
		}
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = fmt.Errorf("kill VNA process: %w", kerr)
			return
		}
		<-p.exited
		opsf("stopped VNA process")
	})
	return err
}

// Exited is closed when the process has exited.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}
