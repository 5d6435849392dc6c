package motor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/antenna.report/internal/serialio"
)

// Simulator is an in-memory rotator controller. It implements
// serialio.TimeoutSerialPorter so it can stand in for the serial port in tests
// and in -dev runs. Each Write is treated as one command; replies are queued
// for Read, and an empty queue reads like a port timeout.
type Simulator struct {
	mu sync.Mutex

	// MotorID is the axis this controller drives. Queries for other axes
	// report +0.
	MotorID int
	// Increment is how far the counter advances toward the commanded target
	// on each position query; 0 reaches the target immediately.
	Increment int64
	// Modulus, when positive, makes the counter and targets wrap into
	// [0, Modulus).
	Modulus int64
	// Busy makes V report B until a K is received.
	Busy bool
	// IgnoreKill keeps the controller busy after K.
	IgnoreKill bool
	// Stalled stops the counter from advancing.
	Stalled bool
	// ReplyEOL terminates every reply; "\r" when empty.
	ReplyEOL string

	position int64
	target   int64
	moves    []int64
	commands []string
	out      bytes.Buffer
	closed   bool
}

// NewSimulator returns a ready controller for motorID at position.
func NewSimulator(motorID int, position int64) *Simulator {
	return &Simulator{MotorID: motorID, position: position, target: position}
}

// Position returns the simulated absolute counter.
func (s *Simulator) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Moves returns the absolute targets of every move command received.
func (s *Simulator) Moves() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.moves...)
}

// Commands returns every command received, without terminators.
func (s *Simulator) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Write accepts one command.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("simulator closed")
	}
	cmd := strings.TrimRight(string(p), "\r\n")
	s.commands = append(s.commands, cmd)
	s.handle(cmd)
	return len(p), nil
}

// Read drains queued replies.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("simulator closed")
	}
	if s.out.Len() == 0 {
		return 0, nil
	}
	return s.out.Read(p)
}

// Close marks the simulator closed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetReadTimeout is a no-op; reads never block.
func (s *Simulator) SetReadTimeout(time.Duration) error { return nil }

func (s *Simulator) reply(line string) {
	eol := s.ReplyEOL
	if eol == "" {
		eol = "\r"
	}
	s.out.WriteString(line)
	s.out.WriteString(eol)
}

func (s *Simulator) handle(cmd string) {
	s.wrap()
	switch cmd {
	case CmdVerify:
		if s.Busy {
			s.reply(StatusBusy)
		} else {
			s.reply(StatusReady)
		}
		return
	case CmdKill:
		if !s.IgnoreKill {
			s.Busy = false
			s.target = s.position
		}
		return
	}

	for id := 1; id < len(axes); id++ {
		if cmd != axes[id] {
			continue
		}
		if id != s.MotorID {
			s.reply("+0")
			return
		}
		s.reply(fmt.Sprintf("%+d", s.position))
		s.step()
		return
	}

	var id int
	var pos int64
	if n, err := fmt.Sscanf(cmd, "C E IA%dM%d,R", &id, &pos); err == nil && n == 2 {
		if id == s.MotorID {
			s.target = pos
			s.moves = append(s.moves, pos)
			s.wrap()
		}
		s.reply("^")
		return
	}
	s.reply("?")
}

// wrap reduces the counter and target when Modulus is set, so the reported
// position and the one travelled from always agree.
func (s *Simulator) wrap() {
	if s.Modulus > 0 {
		s.position = Mod(s.position, s.Modulus)
		s.target = Mod(s.target, s.Modulus)
	}
}

func (s *Simulator) step() {
	if s.Stalled || s.position == s.target {
		return
	}
	if s.Increment <= 0 {
		s.position = s.target
		return
	}
	d := s.target - s.position
	switch {
	case d > s.Increment:
		s.position += s.Increment
	case d < -s.Increment:
		s.position -= s.Increment
	default:
		s.position = s.target
	}
}

var _ serialio.TimeoutSerialPorter = (*Simulator)(nil)
